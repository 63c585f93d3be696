package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means an authenticated upstream call was rejected with
	// 401. Any cached credential has already been invalidated.
	ErrUnauthorized = errors.New("upstream rejected credentials")

	// ErrConfiguration means required settings are missing or invalid. It is
	// never worth retrying.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrThreatNotFound is returned when a threat id has no stored row.
	ErrThreatNotFound = errors.New("threat not found")
)

// ValidationError marks an inbound message as unprocessable as authored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid envelope: %s %s", e.Field, e.Reason)
}

// TransientError wraps an upstream failure that may succeed on a later call:
// timeouts, 5xx responses and malformed response bodies.
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must stop a fallback chain instead of moving on
// to the next tier.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrConfiguration)
}

// IsValidation reports whether err is a systemic envelope failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
