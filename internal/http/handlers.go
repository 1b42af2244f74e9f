package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/health"
	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
	"github.com/kjstillabower/weather-cache-proxy/internal/validation"
)

// Success messages.
const (
	MsgCurrentWeather = "Current weather data"
	MsgCachedWeather  = "Cached weather data"
	MsgServiceStatus  = "Service status"
)

// WeatherGetter is implemented by service.WeatherService.
type WeatherGetter interface {
	GetCurrentWeather(ctx context.Context, location string) (models.WeatherSnapshot, bool, error)
}

// HealthReporter is implemented by health.Checker.
type HealthReporter interface {
	Report(ctx context.Context) health.Report
}

// successResponse is the uniform success body.
type successResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather WeatherGetter
	health  HealthReporter
	errors  *ErrorBoundary
	logger  *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(weather WeatherGetter, health HealthReporter, errors *ErrorBoundary, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weather: weather,
		health:  health,
		errors:  errors,
		logger:  logger,
	}
}

// GetWeather handles GET /weather/current?city={location}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	location, err := validation.ValidateLocation(r.URL.Query()["city"])
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	snap, cached, err := h.weather.GetCurrentWeather(r.Context(), location)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	msg := MsgCurrentWeather
	if cached {
		msg = MsgCachedWeather
	}
	writeSuccess(w, msg, snap)
}

// GetHealth handles GET /health. Component health is reported in the body; the
// transport status is always 200.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := h.health.Report(r.Context())
	observability.LoggerFromContext(r.Context(), h.logger).Debug("health report",
		zap.Bool("app", report.App),
		zap.Bool("redis", report.Redis),
		zap.Bool("weather_api", report.WeatherAPI))
	writeSuccess(w, MsgServiceStatus, report)
}

func writeSuccess(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, successResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
