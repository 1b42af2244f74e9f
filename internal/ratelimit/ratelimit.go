// Package ratelimit implements fixed-window request counting with a shared Redis
// backend and an in-process fallback.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// Result describes the window state after counting one request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Backend counts a request against key within a fixed window of the given length.
// The first request for a key opens its window; the count resets when it closes.
type Backend interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// KeyPrefix namespaces limiter counters in the shared store.
const KeyPrefix = "ratelimit:"

// KeyForClient returns the counter key for a client address.
func KeyForClient(ip string) string {
	return KeyPrefix + ip
}

// ClientIP returns the host part of RemoteAddr. X-Forwarded-For is client supplied,
// so its first hop is used only when trustProxy is set (the service runs behind a
// proxy that overwrites the header).
func ClientIP(r *http.Request, trustProxy bool) string {
	if xff := r.Header.Get("X-Forwarded-For"); trustProxy && xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func newResult(count, limit int, resetAt time.Time) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
