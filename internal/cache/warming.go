package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/models"
)

// WeatherFetcher is implemented by the service layer. Fetching on a miss populates
// the cache, so the warmer never writes entries itself.
type WeatherFetcher interface {
	GetCurrentWeather(ctx context.Context, location string) (models.WeatherSnapshot, bool, error)
}

// CacheWarmer prefetches weather for a fixed list of locations.
type CacheWarmer struct {
	fetcher WeatherFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given fetcher and logger.
func NewCacheWarmer(fetcher WeatherFetcher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches every location concurrently. Returns the joined per-location errors.
func (w *CacheWarmer) Warm(ctx context.Context, locations []string) error {
	start := time.Now()
	w.logger.Info("warming cache", zap.Int("locations", len(locations)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
		hits int
	)
	for _, loc := range locations {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()
			_, cached, err := w.fetcher.GetCurrentWeather(ctx, loc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("warm %s: %w", loc, err))
				return
			}
			if cached {
				hits++
			}
		}(loc)
	}
	wg.Wait()

	w.logger.Info("cache warming complete",
		zap.Int("locations", len(locations)),
		zap.Int("already_cached", hits),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)))
	return errors.Join(errs...)
}
