package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate by route template and status class.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Watch p95/p99 for cache-miss heavy traffic.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// WeatherAPI call rate by outcome.
	WeatherAPICallsTotal *prometheus.CounterVec

	// WeatherAPI latency, bounded by WEATHERAPI_TIMEOUT.
	WeatherAPIDuration *prometheus.HistogramVec

	// WeatherAPI failures by category (see client.CategorizeError).
	WeatherAPIErrorsTotal *prometheus.CounterVec

	// Cache hits and misses. Hit rate = hits/(hits+misses).
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Cache failures absorbed as miss/no-op, by operation (get, set, decode).
	CacheErrorsTotal *prometheus.CounterVec

	// Misses that overlapped another in-progress miss for the same key.
	// No de-duplication is performed; this only measures how often it happens.
	CacheConcurrentMissesTotal prometheus.Counter

	// Requests rejected with 429.
	RateLimitDeniedTotal prometheus.Counter

	// 1 while the limiter is running on the local fallback backend.
	RateLimitFallbackActive prometheus.Gauge

	// Last probe result per dependency: 1 healthy, 0 unhealthy.
	HealthCheckStatus *prometheus.GaugeVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of WeatherAPI calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "WeatherAPI latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiErrorsTotal",
			Help: "WeatherAPI failures by category",
		},
		[]string{"category"},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of weather cache hits",
		},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of weather cache misses, including degraded reads",
		},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache store failures absorbed as miss or no-op",
		},
		[]string{"operation"},
	)
	CacheConcurrentMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheConcurrentMissesTotal",
			Help: "Cache misses that overlapped another in-progress miss for the same key",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	RateLimitFallbackActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rateLimitFallbackActive",
			Help: "1 while rate limiting runs on the local fallback backend",
		},
	)
	HealthCheckStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "healthCheckStatus",
			Help: "Result of the last health probe per component (1 healthy, 0 unhealthy)",
		},
		[]string{"component"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIErrorsTotal,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal, CacheConcurrentMissesTotal,
		RateLimitDeniedTotal, RateLimitFallbackActive,
		HealthCheckStatus,
	)
}

// SetHealthStatus records a probe result for component.
func SetHealthStatus(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	HealthCheckStatus.WithLabelValues(component).Set(v)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
