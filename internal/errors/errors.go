// Package errors defines the broker's tagged error kinds.
//
// Startup errors (ErrConfigInvalid, ErrKeyLoadFailed, ErrStoreUnavailable)
// abort the process. The rest are per-request outcomes: handlers map them
// to an HTTP status and a JSON or HTML error response, never retried.
package errors

import (
	"errors"
	"fmt"
)

var (
	// Startup errors
	ErrConfigInvalid    = errors.New("config invalid")
	ErrKeyLoadFailed    = errors.New("key load failed")
	ErrStoreUnavailable = errors.New("session store unavailable")

	// Per-request errors
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("not found")
	ErrMismatch         = errors.New("mismatch")
	ErrProviderMismatch = errors.New("provider mismatch")
	ErrInvalidIDToken   = errors.New("invalid id token")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrEmailSendFailure = errors.New("email send failure")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
