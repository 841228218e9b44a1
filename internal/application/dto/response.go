// Package dto defines the wire-level request and response shapes of the
// admin HTTP surface.
package dto

import (
	"time"

	"github.com/limitd/limitd/pkg/errors"
)

// APIResponse is the uniform envelope for every admin API response.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorDTO carries a structured error to the caller.
type ErrorDTO struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// SuccessResponse wraps data in the response envelope.
func SuccessResponse(data interface{}, requestID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// ErrorResponse wraps an error in the response envelope. AppError codes and
// details surface verbatim; anything else is masked as an internal error.
func ErrorResponse(err error, requestID string) *APIResponse {
	var errorDTO *ErrorDTO

	if appErr, ok := errors.AsAppError(err); ok {
		errorDTO = &ErrorDTO{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}
	} else {
		errorDTO = &ErrorDTO{
			Code:    errors.ErrCodeInternal,
			Message: "internal server error",
		}
	}

	return &APIResponse{
		Success:   false,
		Error:     errorDTO,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
