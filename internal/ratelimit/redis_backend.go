package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript counts one request and returns {count, pttl}. The expiry is
// set only when the window opens so later requests do not extend it. A key left
// without an expiry is repaired rather than counted forever.
//
// Keys: KEYS[1] = counter key
// Args: ARGV[1] = window length in milliseconds
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisBackend shares window counters across instances through Redis.
type RedisBackend struct {
	client redis.Scripter
	now    func() time.Time
}

// NewRedisBackend returns a backend using client.
func NewRedisBackend(client redis.Scripter) *RedisBackend {
	return &RedisBackend{client: client, now: time.Now}
}

// Allow implements Backend.
func (b *RedisBackend) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	res, err := fixedWindowScript.Run(ctx, b.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit check: %w", err)
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("redis rate limit check: unexpected result length %d", len(res))
	}
	resetAt := b.now().Add(time.Duration(res[1]) * time.Millisecond)
	return newResult(int(res[0]), limit, resetAt), nil
}
