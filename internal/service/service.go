package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/cache"
	"github.com/kjstillabower/weather-cache-proxy/internal/client"
	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
	"github.com/kjstillabower/weather-cache-proxy/internal/validation"
)

// CacheTTL is the lifetime of every weather entry.
const CacheTTL = 900 * time.Second

// cacheWriteTimeout bounds the write-through, which outlives a cancelled request.
const cacheWriteTimeout = 2 * time.Second

// WeatherService orchestrates retrieval with a cache-aside read and a write-through
// on successful upstream fetches.
type WeatherService struct {
	client   client.WeatherClient
	cache    cache.Cache
	logger   *zap.Logger
	inflight *missTracker
}

// NewWeatherService creates a WeatherService. logger may be nil.
func NewWeatherService(client client.WeatherClient, cache cache.Cache, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		client:   client,
		cache:    cache,
		logger:   logger,
		inflight: newMissTracker(),
	}
}

// GetCurrentWeather returns the snapshot for location and whether it came from cache.
// Validation and upstream errors are returned unchanged. Cache failures never
// surface; they degrade to a miss or a skipped write.
func (s *WeatherService) GetCurrentWeather(ctx context.Context, location string) (models.WeatherSnapshot, bool, error) {
	start := time.Now()

	location, err := validation.ValidateLocation([]string{location})
	if err != nil {
		return models.WeatherSnapshot{}, false, err
	}
	logger := observability.LoggerFromContext(ctx, s.logger).With(zap.String("location", location))
	key := cache.Key(location)

	if snap, ok := s.cache.Get(ctx, key); ok {
		observability.CacheHitsTotal.Inc()
		logger.Debug("weather served", zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return snap, true, nil
	}
	observability.CacheMissesTotal.Inc()

	if n := s.inflight.begin(key); n > 1 {
		observability.CacheConcurrentMissesTotal.Inc()
		logger.Debug("concurrent cache miss", zap.Int("in_progress", n))
	}
	defer s.inflight.end(key)

	snap, err := s.client.GetCurrentWeather(ctx, location)
	if err != nil {
		logger.Error("weather fetch failed", zap.Error(err))
		return models.WeatherSnapshot{}, false, err
	}

	// A client that disconnects after the fetch still gets the result cached.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	s.cache.Set(writeCtx, key, snap, CacheTTL)
	cancel()
	logger.Debug("weather served", zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return snap, false, nil
}
