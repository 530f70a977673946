package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means the credential is missing, expired or refused.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidServer means the host does not speak the memos API.
	ErrInvalidServer = errors.New("invalid server")
	// ErrUnavailable is a transient failure: network, 5xx or an open breaker.
	ErrUnavailable = errors.New("server unavailable")
	// ErrConflict means the remote record changed since it was last seen.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrRejected is a non-retryable 4xx for a single request.
	ErrRejected = errors.New("request rejected")
)

// StatusError carries the HTTP status and server message of a failed call.
// It unwraps to one of the sentinel errors above.
type StatusError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (http %d)", e.kind, e.StatusCode)
	}
	return fmt.Sprintf("%v (http %d): %s", e.kind, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
