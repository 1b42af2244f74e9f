package service

import (
	"sync"
)

// missTracker counts in-progress upstream fetches per cache key. A count above
// one means several requests missed the same key at once and each is calling
// upstream independently.
type missTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newMissTracker() *missTracker {
	return &missTracker{active: make(map[string]int)}
}

// begin registers a miss for key and returns the number now in progress,
// including this one. Every begin must be paired with end.
func (t *missTracker) begin(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[key]++
	return t.active[key]
}

func (t *missTracker) end(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[key] <= 1 {
		delete(t.active, key)
		return
	}
	t.active[key]--
}
