package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/kjstillabower/weather-cache-proxy/internal/apierror"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as the weatherApiErrorsTotal label.
const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey    ErrorCategory = "invalid_api_key"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryRateLimited      ErrorCategory = "rate_limited"
	ErrorCategoryUpstream4xx      ErrorCategory = "upstream_4xx"
	ErrorCategoryUpstream5xx      ErrorCategory = "upstream_5xx"
	ErrorCategoryInternal         ErrorCategory = "internal"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return ErrorCategoryTimeout
	}

	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		return ErrorCategoryUnknown
	}

	switch apiErr.Code {
	case apierror.CodeUpstreamUnreachable:
		return ErrorCategoryNetwork
	case apierror.CodeUpstreamValidation:
		return ErrorCategoryLocationNotFound
	case apierror.CodeInternal:
		return ErrorCategoryInternal
	case apierror.CodeUpstreamServer:
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return ErrorCategoryInvalidAPIKey
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return ErrorCategoryRateLimited
		case apiErr.StatusCode >= 500:
			return ErrorCategoryUpstream5xx
		default:
			return ErrorCategoryUpstream4xx
		}
	}
	return ErrorCategoryUnknown
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
