package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound         ErrorType = "NOT_FOUND"
	ErrorTypeMethodNotAllowed ErrorType = "METHOD_NOT_ALLOWED"
	ErrorTypeNoSnapshot       ErrorType = "NO_SNAPSHOT"
	ErrorTypeSessionHalted    ErrorType = "SESSION_HALTED"
	ErrorTypeInternal         ErrorType = "INTERNAL_ERROR"
	ErrorTypeServiceDown      ErrorType = "SERVICE_DOWN"
)

// AppError is an error that knows how it should be rendered over HTTP.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a single key to the error's details.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{Type: errType, Message: message, HTTPStatus: httpStatus}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{Type: errType, Message: message, HTTPStatus: httpStatus, Err: err}
}

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewNoSnapshotError is returned before the first frame has been published.
func NewNoSnapshotError() *AppError {
	return New(ErrorTypeNoSnapshot, "no frame has been published yet", http.StatusNotFound)
}

// NewSessionHaltedError reports a session that stopped on cause.
func NewSessionHaltedError(cause error) *AppError {
	return Wrap(cause, ErrorTypeSessionHalted, "streaming session has halted", http.StatusConflict)
}

func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s is currently unavailable", service), http.StatusServiceUnavailable)
}

// GetAppError finds an AppError anywhere in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
