package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

// KeyPrefix namespaces weather entries in the shared store.
const KeyPrefix = "weather:"

// Key returns the cache key for a sanitized location.
func Key(location string) string {
	return KeyPrefix + location
}

// Cache is a best-effort weather snapshot store. Get reports a miss for absent,
// unreadable, or undecodable entries; Set abandons the write on failure. Neither
// surfaces store errors to the caller.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherSnapshot, bool)
	Set(ctx context.Context, key string, value models.WeatherSnapshot, ttl time.Duration)
}

// RedisCache implements Cache over a shared go-redis client. The client is owned
// by the caller and is not closed here.
type RedisCache struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewRedisCache wraps client. logger may be nil.
func NewRedisCache(client redis.Cmdable, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, logger: logger}
}

// Get implements Cache.Get.
func (c *RedisCache) Get(ctx context.Context, key string) (models.WeatherSnapshot, bool) {
	logger := observability.LoggerFromContext(ctx, c.logger)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
			logger.Warn("cache read error", zap.String("key", key), zap.Error(err))
		}
		return models.WeatherSnapshot{}, false
	}

	var snap models.WeatherSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("decode").Inc()
		logger.Warn("cache entry malformed", zap.String("key", key), zap.Error(err))
		return models.WeatherSnapshot{}, false
	}
	return snap, true
}

// Set implements Cache.Set. Non-positive TTLs are rejected so every entry expires.
func (c *RedisCache) Set(ctx context.Context, key string, value models.WeatherSnapshot, ttl time.Duration) {
	logger := observability.LoggerFromContext(ctx, c.logger)

	if ttl <= 0 {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("cache write skipped: non-positive ttl", zap.String("key", key), zap.Duration("ttl", ttl))
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("cache write error", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("cache write error", zap.String("key", key), zap.Error(err))
		return
	}
	logger.Debug("cache write", zap.String("key", key), zap.Duration("ttl", ttl))
}

// Ping checks store reachability. Used by the health checker.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
