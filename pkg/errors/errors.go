// Package errors defines the sentinel errors shared by the ingestion, index,
// and query layers, and maps them onto HTTP status codes for the API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMalformedInput  = errors.New("malformed input")
	ErrCycleDetected   = errors.New("cycle detected in conversation tree")
	ErrStorageFailure  = errors.New("storage failure")
	ErrIndexNotFound   = errors.New("index not found")
	ErrIndexCorrupt    = errors.New("index corrupt")
	ErrBuildInProgress = errors.New("build already in progress for path")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IsRetriable reports whether opening the index may succeed after a rebuild.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrIndexNotFound) || errors.Is(err, ErrIndexCorrupt)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrBuildInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrIndexNotFound), errors.Is(err, ErrIndexCorrupt), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
