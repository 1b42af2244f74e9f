// Package apierror defines the structured error carried from the point of failure
// to the HTTP error boundary.
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Error codes rendered in the errorCode field of error responses.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUpstreamValidation  = "WEATHER_API_ERROR"
	CodeUpstreamServer      = "EXTERNAL_API_ERROR"
	CodeUpstreamUnreachable = "NETWORK_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
	CodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeServer              = "SERVER_ERROR"
)

// DefaultMessage is used for errors that carry no structured information.
const DefaultMessage = "Internal Server Error"

// Error is a failure with an HTTP status and a stable machine-readable code.
type Error struct {
	Message    string
	StatusCode int
	Code       string

	cause error // carries the stack captured at construction
}

// New returns an Error and records the caller's stack.
func New(message string, statusCode int, code string) *Error {
	return &Error{
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
		cause:      pkgerrors.New(message),
	}
}

// Wrap returns an Error whose stack and unwrap chain include err.
func Wrap(err error, message string, statusCode int, code string) *Error {
	if err == nil {
		return New(message, statusCode, code)
	}
	return &Error{
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
		cause:      pkgerrors.WithStack(err),
	}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	if e.cause == nil {
		return nil
	}
	return pkgerrors.Cause(e.cause)
}

// Stack renders the captured stack trace. Empty for zero-value errors.
func (e *Error) Stack() string {
	if e.cause == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.cause)
}

func Validation(message string) *Error {
	return New(message, http.StatusBadRequest, CodeValidation)
}

func UpstreamValidation(message string) *Error {
	return New(message, http.StatusBadRequest, CodeUpstreamValidation)
}

// UpstreamServer reports a non-success transport status from the provider.
// The provider's status is passed through as the response status.
func UpstreamServer(message string, statusCode int) *Error {
	return New(message, statusCode, CodeUpstreamServer)
}

func UpstreamUnreachable(err error) *Error {
	return Wrap(err, "Weather service unreachable", http.StatusServiceUnavailable, CodeUpstreamUnreachable)
}

func Internal(err error) *Error {
	msg := DefaultMessage
	if err != nil {
		msg = err.Error()
	}
	return Wrap(err, msg, http.StatusInternalServerError, CodeInternal)
}

func RateLimited() *Error {
	return New("Too many requests - please try again later.", http.StatusTooManyRequests, CodeRateLimited)
}

// From extracts the structured error from err's chain. Untyped errors map to
// a 500 SERVER_ERROR with the default message, keeping the original as cause.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 0 {
			apiErr.StatusCode = http.StatusInternalServerError
		}
		if apiErr.Code == "" {
			apiErr.Code = CodeServer
		}
		if apiErr.Message == "" {
			apiErr.Message = DefaultMessage
		}
		return apiErr
	}
	return Wrap(err, DefaultMessage, http.StatusInternalServerError, CodeServer)
}
