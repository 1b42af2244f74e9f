package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LocalBackend keeps fixed-window counters in process memory.
type LocalBackend struct {
	mu        sync.Mutex
	windows   map[string]*localWindow
	now       func() time.Time
	lastSweep time.Time
}

type localWindow struct {
	count   int
	resetAt time.Time
}

// NewLocalBackend returns an empty LocalBackend on the wall clock.
func NewLocalBackend() *LocalBackend {
	return NewLocalBackendWithClock(time.Now)
}

// NewLocalBackendWithClock returns a LocalBackend that reads time from now.
func NewLocalBackendWithClock(now func() time.Time) *LocalBackend {
	return &LocalBackend{
		windows:   make(map[string]*localWindow),
		now:       now,
		lastSweep: now(),
	}
}

// Allow implements Backend.
func (l *LocalBackend) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now, window)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &localWindow{resetAt: now.Add(window)}
		l.windows[key] = w
	}
	w.count++
	return newResult(w.count, limit, w.resetAt), nil
}

// sweep drops closed windows at most once per window length. Caller holds mu.
func (l *LocalBackend) sweep(now time.Time, window time.Duration) {
	if now.Sub(l.lastSweep) < window {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
	l.lastSweep = now
}

// Len returns the number of tracked windows.
func (l *LocalBackend) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
