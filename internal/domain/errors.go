package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidSeverity is returned when a value falls outside the closed
// severity set.
var ErrInvalidSeverity = errors.New("invalid severity")

// ValidationError describes a malformed inbound record. Records that fail
// validation are never applied to the store.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError wraps a fetch or socket failure. It is always recoverable:
// callers retry, reconnect, or keep the last good state.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTransport reports whether err is (or wraps) a *TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}
