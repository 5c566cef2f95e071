package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"TaskStream/internal/domain/errs"
)

// AppError represents an application-level error with an HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

func UnprocessableError(message string) *AppError {
	return NewAppError("ERR_CONFIGURATION", "", message, http.StatusUnprocessableEntity)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError("ERR_RATE_LIMITED", "", message, http.StatusTooManyRequests)
}

func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// FromDomainError maps analytics error kinds to HTTP statuses: bad data is the
// caller's fault (400), bad parameters are unprocessable (422) and numerical
// failures are ours (500).
func FromDomainError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch errs.KindOf(err) {
	case errs.KindDataValidation:
		return NewAppError("ERR_DATA_VALIDATION", "", err.Error(), http.StatusBadRequest).WithError(err)
	case errs.KindConfiguration:
		return UnprocessableError(err.Error()).WithError(err)
	case errs.KindComputation:
		return NewAppError("ERR_COMPUTATION", "", "forecast computation failed", http.StatusInternalServerError).WithError(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAppError("ERR_TIMEOUT", "", "request timed out", http.StatusGatewayTimeout).WithError(err)
	}
	return InternalError("something went wrong").WithError(err)
}
