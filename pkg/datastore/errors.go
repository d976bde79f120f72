package datastore

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/tabkit/pkg/lock"
	"github.com/dmitrymomot/tabkit/pkg/serializer"
)

var (
	// ErrSessionNotFound indicates the session does not exist or has expired
	ErrSessionNotFound = errors.New("datastore.session_not_found")

	// ErrSessionExists indicates a create for an id that is already live
	ErrSessionExists = errors.New("datastore.session_exists")

	// ErrNoHistory indicates an undo with an empty version list
	ErrNoHistory = errors.New("datastore.no_history")

	// ErrBackendUnavailable indicates the remote store could not be reached
	ErrBackendUnavailable = errors.New("datastore.backend_unavailable")

	// ErrTempNotFound indicates temp storage does not exist or has expired
	ErrTempNotFound = errors.New("datastore.temp_not_found")

	ErrInvalidInput = errors.New("datastore.invalid_input")

	ErrInvalidConfig = errors.New("datastore.invalid_config")

	// ErrLockTimeout indicates the per-session mutex stayed contended for the
	// whole retry budget. The operation can be retried.
	ErrLockTimeout = lock.ErrLockTimeout

	ErrPayloadTooLarge = serializer.ErrPayloadTooLarge
	ErrSerialization   = serializer.ErrSerialization
)

// IsRetryable reports whether err is transient: a lock timeout or an
// unreachable backend.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrBackendUnavailable)
}

func invalidInput(format string, args ...any) error {
	return errors.Join(ErrInvalidInput, fmt.Errorf(format, args...))
}
