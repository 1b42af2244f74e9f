package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
	"github.com/kjstillabower/weather-cache-proxy/internal/ratelimit"
)

// RouterConfig wires the handler and middleware into a router.
type RouterConfig struct {
	Handler *Handler
	Errors  *ErrorBoundary
	Logger  *zap.Logger

	// RateLimiter counts weather and health requests. /metrics is never limited.
	RateLimiter     ratelimit.Backend
	RateLimitMax    int
	RateLimitWindow time.Duration
	// TrustProxy keys clients by X-Forwarded-For instead of the socket address.
	TrustProxy bool
}

// NewRouter returns the service's HTTP handler.
func NewRouter(cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(
		CorrelationIDMiddleware(logger),
		SecurityHeadersMiddleware,
		MetricsMiddleware,
		cfg.Errors.Recover,
	)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	if cfg.RateLimiter != nil {
		api.Use(RateLimitMiddleware(cfg.RateLimiter, cfg.RateLimitMax, cfg.RateLimitWindow, cfg.TrustProxy, cfg.Errors))
	}
	api.HandleFunc("/weather/current", cfg.Handler.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/health", cfg.Handler.GetHealth).Methods(http.MethodGet)

	// Router middleware only runs on matched routes.
	unmatched := func(h http.Handler) http.Handler {
		return CorrelationIDMiddleware(logger)(SecurityHeadersMiddleware(MetricsMiddleware(h)))
	}
	router.NotFoundHandler = unmatched(cfg.Errors.NotFound())
	router.MethodNotAllowedHandler = unmatched(cfg.Errors.MethodNotAllowed())

	return router
}
