package apperr

import (
	"errors"
	"net/http"
)

// AppError carries a stable code alongside the human message
type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (e *AppError) Error() string {
	if e.Origin != nil {
		return e.Message + ": " + e.Origin.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Origin
}

// Error codes
const (
	ErrNotFound               = "NOT_FOUND"
	ErrConflict               = "CONFLICT"
	ErrInvalidInput           = "INVALID_INPUT"
	ErrInvalidStateTransition = "INVALID_STATE_TRANSITION"
	ErrDatabase               = "DATABASE_ERROR"
)

// New creates an AppError with the given code
func New(code, message string, origin error) *AppError {
	return &AppError{Code: code, Message: message, Origin: origin}
}

func NotFound(message string) *AppError {
	return &AppError{Code: ErrNotFound, Message: message}
}

func Conflict(message string, origin error) *AppError {
	return &AppError{Code: ErrConflict, Message: message, Origin: origin}
}

func InvalidInput(message string) *AppError {
	return &AppError{Code: ErrInvalidInput, Message: message}
}

func Database(message string, origin error) *AppError {
	return &AppError{Code: ErrDatabase, Message: message, Origin: origin}
}

// Code returns the code of the first AppError in err's chain, or "".
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

// HTTPStatus converts an error code to an HTTP status code
func HTTPStatus(code string) int {
	switch code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrConflict:
		return http.StatusConflict
	case ErrInvalidStateTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
