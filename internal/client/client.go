package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-cache-proxy/internal/apierror"
	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

// WeatherClient fetches current conditions for a sanitized location. Every error
// returned is an *apierror.Error.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, location string) (models.WeatherSnapshot, error)
}

var (
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

const (
	currentPath = "/current.json"

	msgUpstreamValidation = "WeatherAPI request failed"
	msgUpstreamServer     = "Weather service unavailable"
)

// WeatherAPIClient calls the WeatherAPI.com current-conditions endpoint.
type WeatherAPIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter // nil when outbound throttling is disabled
	logger  *zap.Logger
}

// NewWeatherAPIClient validates credentials and endpoint and returns a client.
// timeout is the transport timeout for a single call; zero means no timeout.
func NewWeatherAPIClient(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) (*WeatherAPIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WeatherAPIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// SetMaxRPS throttles outbound calls to rps requests per second. Zero disables.
// Callers block until a slot is free or their context ends.
func (c *WeatherAPIClient) SetMaxRPS(rps int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
}

type weatherAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type weatherAPIResponse struct {
	Location struct {
		Name    string `json:"name"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		TempC       float64 `json:"temp_c"`
		Humidity    int     `json:"humidity"`
		WindKph     float64 `json:"wind_kph"`
		LastUpdated string  `json:"last_updated"`
		Condition   struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
	Error *weatherAPIError `json:"error"`
}

// GetCurrentWeather performs a single call. There are no retries.
func (c *WeatherAPIClient) GetCurrentWeather(ctx context.Context, location string) (models.WeatherSnapshot, error) {
	logger := observability.LoggerFromContext(ctx, c.logger).With(zap.String("location", location))
	logger.Debug("calling weather api")

	req, err := c.buildRequest(ctx, location)
	if err != nil {
		return models.WeatherSnapshot{}, c.fail(logger, apierror.Internal(err), zap.Error(err))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.WeatherSnapshot{}, c.fail(logger, apierror.UpstreamUnreachable(err), zap.Error(err), zap.String("stage", "throttle"))
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.redact(req.URL)
		}
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return models.WeatherSnapshot{}, c.fail(logger, apierror.UpstreamUnreachable(err), zap.Error(err), zap.String("url", c.redact(req.URL)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		return models.WeatherSnapshot{}, c.fail(logger, apierror.UpstreamUnreachable(err), zap.Error(err), zap.Int("status", resp.StatusCode))
	}

	var payload weatherAPIResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := msgUpstreamServer
		if decodeErr == nil && payload.Error != nil && payload.Error.Message != "" {
			msg = payload.Error.Message
		}
		return models.WeatherSnapshot{}, c.fail(logger, apierror.UpstreamServer(msg, resp.StatusCode),
			zap.Int("status", resp.StatusCode), zap.ByteString("body", truncate(body)))
	}

	if decodeErr != nil {
		return models.WeatherSnapshot{}, c.fail(logger, apierror.Internal(fmt.Errorf("parse response: %w", decodeErr)),
			zap.Error(decodeErr), zap.ByteString("body", truncate(body)))
	}

	// WeatherAPI can report an unknown location inside a 2xx payload.
	if payload.Error != nil {
		msg := payload.Error.Message
		if msg == "" {
			msg = msgUpstreamValidation
		}
		return models.WeatherSnapshot{}, c.fail(logger, apierror.UpstreamValidation(msg),
			zap.Int("status", resp.StatusCode), zap.Int("api_error_code", payload.Error.Code))
	}

	logger.Debug("weather api call succeeded", zap.Duration("duration", time.Since(start)))
	return mapResponse(payload), nil
}

// fail logs err with diagnostics and records its category before it is returned.
func (c *WeatherAPIClient) fail(logger *zap.Logger, err *apierror.Error, fields ...zap.Field) *apierror.Error {
	category := CategorizeError(err)
	observability.WeatherAPIErrorsTotal.WithLabelValues(string(category)).Inc()
	fields = append(fields,
		zap.String("error_code", err.Code),
		zap.Int("status_code", err.StatusCode),
		zap.String("category", string(category)))
	logger.Error("weather api call failed: "+err.Message, fields...)
	return err
}

// buildRequest restores the commas the validator encoded as %2C so the provider
// receives them once-encoded. Other escapes are sent as typed, matching the cache
// key. Air-quality data is excluded.
func (c *WeatherAPIClient) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + currentPath)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	q := strings.ReplaceAll(location, "%2C", ",")

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", q)
	params.Set("aqi", "no")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *WeatherAPIClient) redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}

func mapResponse(p weatherAPIResponse) models.WeatherSnapshot {
	return models.WeatherSnapshot{
		City:        p.Location.Name,
		Region:      p.Location.Region,
		Country:     p.Location.Country,
		Temperature: p.Current.TempC,
		Condition:   p.Current.Condition.Text,
		Humidity:    p.Current.Humidity,
		WindSpeed:   p.Current.WindKph,
		LastUpdated: p.Current.LastUpdated,
	}
}

const maxLoggedBody = 512

func truncate(b []byte) []byte {
	if len(b) > maxLoggedBody {
		return b[:maxLoggedBody]
	}
	return b
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
