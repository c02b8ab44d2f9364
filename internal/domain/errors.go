package domain

import (
	"errors"
	"fmt"
)

// Resolution error taxonomy. A miss at any layer is not an error and is
// reported as absence, never through these values.
var (
	// ErrRepositoryUnavailable means the persistent layer could not be
	// consulted at all (connectivity, timeout, pool exhaustion, integrity).
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrDataUnavailable means no layer could answer and no stale fallback existed.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrNotFound is the authoritative answer from the remote source that
	// no such data exists.
	ErrNotFound = errors.New("not found")

	ErrRateLimited     = errors.New("rate limited")
	ErrNetworkFailure  = errors.New("network failure")
	ErrTimeout         = errors.New("timeout")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidKey      = errors.New("invalid natural key")
)

// RemoteError describes a failed call to the remote source.
// errors.Is matches both Kind and the underlying cause.
type RemoteError struct {
	Kind   error // one of ErrRateLimited, ErrNetworkFailure, ErrTimeout, ErrNotFound
	Status int   // HTTP status, 0 when the request never completed
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		if e.Err != nil {
			return fmt.Sprintf("%v (status %d): %v", e.Kind, e.Status, e.Err)
		}
		return fmt.Sprintf("%v (status %d)", e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsTransient reports whether err is a remote failure that may succeed on a
// later attempt. NotFound is authoritative and therefore never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	return true
}
