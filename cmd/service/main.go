package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/cache"
	"github.com/kjstillabower/weather-cache-proxy/internal/client"
	"github.com/kjstillabower/weather-cache-proxy/internal/config"
	"github.com/kjstillabower/weather-cache-proxy/internal/health"
	httphandler "github.com/kjstillabower/weather-cache-proxy/internal/http"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
	"github.com/kjstillabower/weather-cache-proxy/internal/ratelimit"
	"github.com/kjstillabower/weather-cache-proxy/internal/service"
)

const (
	redisPingTimeout   = 3 * time.Second
	warmTimeout        = 30 * time.Second
	inFlightPollPeriod = 50 * time.Millisecond

	// Redis budgets. A hung store must fail fast so the cache degrades to a miss.
	redisDialTimeout = 500 * time.Millisecond
	redisIOTimeout   = 300 * time.Millisecond
	redisMaxRetries  = 1
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	rdb, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), redisPingTimeout)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// The cache degrades to misses and the limiter to local counting, so start anyway.
		logger.Warn("redis unreachable at startup", zap.Error(err))
	} else {
		logger.Info("redis connected")
	}
	pingCancel()

	weatherClient, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIBaseURL, cfg.WeatherAPITimeout, logger)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	weatherClient.SetMaxRPS(cfg.WeatherAPIMaxRPS)

	weatherCache := cache.NewRedisCache(rdb, logger)
	weatherService := service.NewWeatherService(weatherClient, weatherCache, logger)
	checker := health.NewChecker(weatherCache, weatherClient, cfg.HealthCheckTimeout, logger)
	limiter := ratelimit.NewFallbackBackend(ratelimit.NewRedisBackend(rdb), logger)

	if len(cfg.CacheWarmLocations) > 0 {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), warmTimeout)
		if err := cache.NewCacheWarmer(weatherService, logger).Warm(warmCtx, cfg.CacheWarmLocations); err != nil {
			logger.Warn("cache warming incomplete", zap.Error(err))
		}
		warmCancel()
	}

	errs := httphandler.NewErrorBoundary(cfg.AppEnv, logger)
	router := httphandler.NewRouter(httphandler.RouterConfig{
		Handler:         httphandler.NewHandler(weatherService, checker, errs, logger),
		Errors:          errs,
		Logger:          logger,
		RateLimiter:     limiter,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		TrustProxy:      cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.WeatherAPITimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightPollPeriod); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logger.Error("redis close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newRedisClient builds a client from a redis:// or rediss:// URL. It does not dial.
// Timeouts and retries not set in the URL get short service defaults.
func newRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = redisDialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = redisIOTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = redisIOTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = redisMaxRetries
	}
	return redis.NewClient(opts), nil
}
