// Package errors defines structured error types and error handling utilities for
// the limitd rate limiting service. Errors carry a stable machine code, an HTTP
// status, and optional details so the admin surface can surface them verbatim
// while infrastructure failures stay internal.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Stable error codes exposed on the wire.
const (
	ErrCodeValidation       = "validation_error"
	ErrCodeConflict         = "conflict"
	ErrCodeNotFound         = "not_found"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeRateLimited      = "rate_limit_exceeded"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeKeyDerivation    = "key_derivation_failed"
	ErrCodeInternal         = "internal_error"
)

// AppError is the structured application error used across all layers.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	httpStatus int
	cause      error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// HTTPStatus returns the HTTP status code mapped to this error.
func (e *AppError) HTTPStatus() int {
	if e.httpStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.httpStatus
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithError attaches a cause to the error chain and returns a copy.
func (e *AppError) WithError(cause error) *AppError {
	clone := *e
	clone.cause = cause
	return &clone
}

// WithDetail attaches a named detail and returns a copy.
func (e *AppError) WithDetail(key, value string) *AppError {
	clone := *e
	clone.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

// New creates a new AppError with the given code, status, and message.
func New(code string, httpStatus int, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		httpStatus: httpStatus,
	}
}

// AsAppError extracts an *AppError from an error chain, if present.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// ErrValidation creates a validation error (400).
func ErrValidation(message string) *AppError {
	return New(ErrCodeValidation, http.StatusBadRequest, message)
}

// ErrValidationField creates a validation error annotated with the failing field.
func ErrValidationField(field, message string) *AppError {
	return ErrValidation(message).WithDetail("field", field)
}

// ErrConflict creates a conflict error (409), e.g. duplicate config name.
func ErrConflict(message string) *AppError {
	return New(ErrCodeConflict, http.StatusConflict, message)
}

// ErrConfigExists creates a duplicate configuration name error.
func ErrConfigExists(name string) *AppError {
	return ErrConflict(fmt.Sprintf("rate limit config already exists: %s", name)).
		WithDetail("name", name)
}

// ErrNotFound creates a not found error (404).
func ErrNotFound(message string) *AppError {
	return New(ErrCodeNotFound, http.StatusNotFound, message)
}

// ErrConfigNotFound creates an unknown configuration error.
func ErrConfigNotFound(name string) *AppError {
	return ErrNotFound(fmt.Sprintf("rate limit config not found: %s", name)).
		WithDetail("name", name)
}

// ErrKeyNotFound creates an unknown counter key error.
func ErrKeyNotFound(key string) *AppError {
	return ErrNotFound(fmt.Sprintf("no active window for key: %s", key)).
		WithDetail("key", key)
}

// ErrUnauthorized creates a missing/invalid credential error (401).
func ErrUnauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, http.StatusUnauthorized, message)
}

// ErrForbidden creates an insufficient privilege error (403).
func ErrForbidden(message string) *AppError {
	return New(ErrCodeForbidden, http.StatusForbidden, message)
}

// ErrRateLimited creates a rate limit exceeded error (429). The message comes
// from the matched configuration so well-behaved clients see operator intent.
func ErrRateLimited(message string, resetTime time.Time) *AppError {
	return New(ErrCodeRateLimited, http.StatusTooManyRequests, message).
		WithDetail("reset_time", fmt.Sprintf("%d", resetTime.UnixMilli()))
}

// ErrStoreUnavailable creates a counter store unavailability error. It is
// handled by the fail-open/closed policy and never surfaced raw to end users.
func ErrStoreUnavailable(cause error) *AppError {
	return New(ErrCodeStoreUnavailable, http.StatusServiceUnavailable, "counter store unavailable").
		WithError(cause)
}

// ErrKeyDerivation creates a custom key generator failure error. It is always
// recovered via the IP fallback and only logged.
func ErrKeyDerivation(cause error) *AppError {
	return New(ErrCodeKeyDerivation, http.StatusInternalServerError, "custom key generator failed").
		WithError(cause)
}

// ErrInternal creates an internal error (500).
func ErrInternal(message string) *AppError {
	return New(ErrCodeInternal, http.StatusInternalServerError, message)
}

// ErrDatabase wraps a persistence failure.
func ErrDatabase(cause error) *AppError {
	return ErrInternal("database operation failed").WithError(cause)
}
