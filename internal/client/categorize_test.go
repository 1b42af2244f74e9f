package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kjstillabower/weather-cache-proxy/internal/apierror"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"wrapped deadline", apierror.UpstreamUnreachable(fmt.Errorf("do: %w", context.DeadlineExceeded)), ErrorCategoryTimeout},
		{"network", apierror.UpstreamUnreachable(errors.New("connection refused")), ErrorCategoryNetwork},
		{"location not found", apierror.UpstreamValidation("No matching location found."), ErrorCategoryLocationNotFound},
		{"invalid key", apierror.UpstreamServer("API key is invalid.", http.StatusUnauthorized), ErrorCategoryInvalidAPIKey},
		{"disabled key", apierror.UpstreamServer("API key has been disabled.", http.StatusForbidden), ErrorCategoryInvalidAPIKey},
		{"rate limited", apierror.UpstreamServer("quota", http.StatusTooManyRequests), ErrorCategoryRateLimited},
		{"upstream 4xx", apierror.UpstreamServer("bad", http.StatusBadRequest), ErrorCategoryUpstream4xx},
		{"upstream 5xx", apierror.UpstreamServer("down", http.StatusBadGateway), ErrorCategoryUpstream5xx},
		{"internal", apierror.Internal(errors.New("bad url")), ErrorCategoryInternal},
		{"untyped", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
