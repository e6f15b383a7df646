package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Configuration errors. These abort a poll invocation and are never
	// retried automatically.
	ErrMissingStream  = errors.New("stream name not configured")
	ErrMissingShardID = errors.New("specific shard id not configured")
	ErrShardNotFound  = errors.New("shard not found in poll state")
	ErrNoShards       = errors.New("stream has no shards")

	// Per-shard recoverable errors.
	ErrCursorExpired = errors.New("cursor expired")

	ErrStateUnavailable = errors.New("state store unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
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

// IsFatal reports whether err is a configuration error that will not be
// fixed by polling again.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMissingStream) ||
		errors.Is(err, ErrMissingShardID) ||
		errors.Is(err, ErrShardNotFound) ||
		errors.Is(err, ErrNoShards)
}

// IsCursorExpired reports whether err indicates an expired or invalid
// cursor, as classified by the stream client.
func IsCursorExpired(err error) bool {
	return errors.Is(err, ErrCursorExpired)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrShardNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMissingStream), errors.Is(err, ErrMissingShardID),
		errors.Is(err, ErrNoShards), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrStateUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
