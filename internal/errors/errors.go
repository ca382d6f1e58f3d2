package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "VALIDATION_ERROR"
	ErrorTypeStateConflict  ErrorType = "STATE_CONFLICT"
	ErrorTypeRemoteFailure  ErrorType = "REMOTE_FAILURE"
	ErrorTypePartialFailure ErrorType = "PARTIAL_FAILURE"
	ErrorTypeRefreshFailure ErrorType = "REFRESH_FAILURE"
	ErrorTypeBusy           ErrorType = "BUSY"
	ErrorTypeExpired        ErrorType = "EXPIRED"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypeForbidden      ErrorType = "FORBIDDEN"
	ErrorTypeInternal       ErrorType = "INTERNAL_ERROR"
	ErrorTypeTimeout        ErrorType = "TIMEOUT"
	ErrorTypeServiceDown    ErrorType = "SERVICE_DOWN"
)

// AppError represents an application error with additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// Cause returns the message of the wrapped error, or the AppError message when
// nothing is wrapped. Remote diagnostics are shown to users verbatim through it.
func (e *AppError) Cause() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Common error constructors.

// NewValidationError creates a validation error for malformed user input.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewStateConflict downgrades a remote "already in that state" failure.
func NewStateConflict(err error) *AppError {
	return Wrap(err, ErrorTypeStateConflict, "application is already in the requested state", http.StatusConflict)
}

// WrapRemoteFailure wraps a failed hosting API call made for op.
func WrapRemoteFailure(err error, op string) *AppError {
	return Wrap(err, ErrorTypeRemoteFailure, fmt.Sprintf("%s failed", op), http.StatusBadGateway)
}

// NewPartialFailure reports a batch in which some items failed.
func NewPartialFailure(message string) *AppError {
	return New(ErrorTypePartialFailure, message, http.StatusMultiStatus)
}

// WrapRefreshFailure marks a snapshot refresh that fell back to cached data.
func WrapRefreshFailure(err error) *AppError {
	return Wrap(err, ErrorTypeRefreshFailure, "could not refresh application list", http.StatusOK)
}

// NewBusyError rejects an action while another one is in flight.
func NewBusyError() *AppError {
	return New(ErrorTypeBusy, "another operation is still running on this panel", http.StatusConflict)
}

// NewExpiredError rejects callbacks that arrive after a panel expired.
func NewExpiredError() *AppError {
	return New(ErrorTypeExpired, "this panel has expired", http.StatusGone)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewForbiddenError creates a forbidden error.
func NewForbiddenError(message string) *AppError {
	return New(ErrorTypeForbidden, message, http.StatusForbidden)
}

// NewInternalError creates an internal server error.
func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// WrapInternalError wraps an error as internal server error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string) *AppError {
	return New(ErrorTypeTimeout, message, http.StatusRequestTimeout)
}

// NewServiceDownError creates a service down error.
func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s service is currently unavailable", service), http.StatusServiceUnavailable)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts the first AppError in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err's chain holds an AppError of type t.
func IsType(err error, t ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == t
}
