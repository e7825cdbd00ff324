package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameters indicates malformed input such as chunking
	// parameters that would never advance the window.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrConfiguration indicates missing credentials or index settings.
	// Not retryable.
	ErrConfiguration = errors.New("configuration error")

	// ErrRemote indicates a failed call to the vector store or a model API.
	// Callers may retry with backoff.
	ErrRemote = errors.New("remote error")

	// ErrSessionNotFound indicates an unknown or expired session id.
	ErrSessionNotFound = errors.New("session not found")
)

// RemoteError describes a failed call to an external service.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is reports ErrRemote as a match so callers can use errors.Is.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// NewRemoteError wraps err as a RemoteError for operation op.
func NewRemoteError(op string, status int, err error) error {
	return &RemoteError{Op: op, StatusCode: status, Err: err}
}

// Configurationf returns an error wrapping ErrConfiguration.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// InvalidParametersf returns an error wrapping ErrInvalidParameters.
func InvalidParametersf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameters, fmt.Sprintf(format, args...))
}
