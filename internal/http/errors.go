package http

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/apierror"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

// errorResponse is the uniform failure body.
type errorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
	Stack     string `json:"stack,omitempty"`
}

// ErrorBoundary renders every failure the same way. It is shared by handlers and
// middleware so rate-limit rejections, routing misses and panics use one shape.
type ErrorBoundary struct {
	env    string
	logger *zap.Logger
}

// NewErrorBoundary returns a boundary for the given deployment environment.
// Stack traces are logged and returned only outside production.
func NewErrorBoundary(env string, logger *zap.Logger) *ErrorBoundary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorBoundary{env: env, logger: logger}
}

// Write logs err and writes the error response. Untyped errors become a 500
// SERVER_ERROR with the default message.
func (b *ErrorBoundary) Write(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.From(err)
	debug := b.env != observability.EnvProduction

	fields := []zap.Field{
		zap.Int("status_code", apiErr.StatusCode),
		zap.String("error_code", apiErr.Code),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if debug {
		fields = append(fields, zap.String("stack", apiErr.Stack()))
	}
	logger := observability.LoggerFromContext(r.Context(), b.logger)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.Error(apiErr.Message, fields...)
	} else {
		logger.Warn(apiErr.Message, fields...)
	}

	resp := errorResponse{
		Status:    "error",
		Message:   apiErr.Message,
		ErrorCode: apiErr.Code,
	}
	if debug {
		resp.Stack = apiErr.Stack()
	}
	writeJSON(w, apiErr.StatusCode, resp)
}

// NotFound is installed as the router's NotFoundHandler.
func (b *ErrorBoundary) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.Write(w, r, apierror.New("Route not found", http.StatusNotFound, apierror.CodeNotFound))
	})
}

// MethodNotAllowed is installed as the router's MethodNotAllowedHandler.
func (b *ErrorBoundary) MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.Write(w, r, apierror.New("Method not allowed", http.StatusMethodNotAllowed, apierror.CodeMethodNotAllowed))
	})
}

// Recover turns a handler panic into a 500 response.
func (b *ErrorBoundary) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				b.Write(w, r, fmt.Errorf("panic: %v", v))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
