package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

const (
	// probeInterval is the minimum time between recovery probes of the primary.
	probeInterval = 5 * time.Second
	probeTimeout  = time.Second
	probeKey      = KeyPrefix + "probe:health"
)

// FallbackBackend uses primary until it fails, then counts locally and probes
// primary in the background until it answers again. It never returns an error.
type FallbackBackend struct {
	primary Backend
	local   *LocalBackend
	logger  *zap.Logger

	degraded  atomic.Bool
	probeMu   sync.Mutex
	lastProbe atomic.Int64 // unix nanos
	interval  time.Duration
	now       func() time.Time
}

// NewFallbackBackend wraps primary with a local fallback. logger may be nil.
func NewFallbackBackend(primary Backend, logger *zap.Logger) *FallbackBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackBackend{
		primary:  primary,
		local:    NewLocalBackend(),
		logger:   logger,
		interval: probeInterval,
		now:      time.Now,
	}
}

// Allow implements Backend.
func (f *FallbackBackend) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if f.degraded.Load() {
		if f.now().UnixNano()-f.lastProbe.Load() > int64(f.interval) {
			go f.probe(window)
		}
		return f.local.Allow(ctx, key, limit, window)
	}

	res, err := f.primary.Allow(ctx, key, limit, window)
	if err != nil {
		f.logger.Warn("rate limit backend error, degrading to local counters", zap.Error(err))
		f.lastProbe.Store(f.now().UnixNano())
		f.setDegraded(true)
		return f.local.Allow(ctx, key, limit, window)
	}
	return res, nil
}

// Degraded reports whether requests are currently counted locally.
func (f *FallbackBackend) Degraded() bool {
	return f.degraded.Load()
}

func (f *FallbackBackend) probe(window time.Duration) {
	if !f.probeMu.TryLock() {
		return
	}
	defer f.probeMu.Unlock()
	f.lastProbe.Store(f.now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if _, err := f.primary.Allow(ctx, probeKey, 1<<30, window); err != nil {
		f.logger.Debug("rate limit backend still unavailable", zap.Error(err))
		return
	}
	f.logger.Info("rate limit backend recovered, resuming shared counters")
	f.setDegraded(false)
}

func (f *FallbackBackend) setDegraded(v bool) {
	f.degraded.Store(v)
	if v {
		observability.RateLimitFallbackActive.Set(1)
	} else {
		observability.RateLimitFallbackActive.Set(0)
	}
}
