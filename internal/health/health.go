// Package health probes the cache store and the weather provider.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/weather-cache-proxy/internal/client"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

const (
	// DefaultTimeout bounds each probe independently.
	DefaultTimeout = 5 * time.Second

	// ReferenceLocation is the fixed location used to probe the provider.
	ReferenceLocation = "London"
)

// Component labels for the healthCheckStatus gauge.
const (
	ComponentApp        = "app"
	ComponentRedis      = "redis"
	ComponentWeatherAPI = "weatherApi"
)

// Pinger is the cache store's liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Report is the aggregated result. App mirrors WeatherAPI: the service keeps
// answering from upstream while the cache is down.
type Report struct {
	App        bool `json:"app"`
	Redis      bool `json:"redis"`
	WeatherAPI bool `json:"weatherApi"`
}

// Checker runs bounded probes against the service's dependencies.
type Checker struct {
	cache    Pinger
	upstream client.WeatherClient
	timeout  time.Duration
	logger   *zap.Logger
}

// NewChecker returns a Checker. A non-positive timeout selects DefaultTimeout.
func NewChecker(cache Pinger, upstream client.WeatherClient, timeout time.Duration, logger *zap.Logger) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{cache: cache, upstream: upstream, timeout: timeout, logger: logger}
}

// CheckCache reports whether the cache answered a ping within the timeout.
func (c *Checker) CheckCache(ctx context.Context) bool {
	return c.probe(ctx, ComponentRedis, c.cache.Ping)
}

// CheckUpstream reports whether a real request for ReferenceLocation succeeded
// within the timeout.
func (c *Checker) CheckUpstream(ctx context.Context) bool {
	return c.probe(ctx, ComponentWeatherAPI, func(ctx context.Context) error {
		_, err := c.upstream.GetCurrentWeather(ctx, ReferenceLocation)
		return err
	})
}

// Report runs both probes concurrently and waits for both.
func (c *Checker) Report(ctx context.Context) Report {
	var r Report
	var g errgroup.Group
	g.Go(func() error {
		r.Redis = c.CheckCache(ctx)
		return nil
	})
	g.Go(func() error {
		r.WeatherAPI = c.CheckUpstream(ctx)
		return nil
	})
	_ = g.Wait()

	r.App = r.WeatherAPI
	observability.SetHealthStatus(ComponentApp, r.App)
	return r
}

// probe runs fn in its own goroutine so a call that ignores its context still
// cannot hold the caller past the timeout. Timeouts and errors both count as failure.
func (c *Checker) probe(ctx context.Context, component string, fn func(context.Context) error) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	healthy := err == nil
	observability.SetHealthStatus(component, healthy)
	if !healthy {
		c.logger.Warn("health probe failed", zap.String("component", component), zap.Error(err))
	}
	return healthy
}
