// Package arerr defines the error kinds shared across every Aruna component,
// and the propagation policy attached to each.
package arerr

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error kinds the system distinguishes.
type Kind string

const (
	// Unauthorized: missing or expired token. Surfaced immediately, never logged to L.
	Unauthorized Kind = "unauthorized"
	// Forbidden: AZ denial or unregistered principal. Surfaced immediately.
	Forbidden Kind = "forbidden"
	// NotFound: ULID→idx miss or absent endpoint info. Terminal outcome if past L append.
	NotFound Kind = "not_found"
	// Conflict: uniqueness violation. Write transaction aborts; terminal outcome recorded.
	Conflict Kind = "conflict"
	// Invalid: malformed request, missing required field, forbidden mutation. Terminal on write.
	Invalid Kind = "invalid"
	// Unavailable: RS/L append failure. Retryable.
	Unavailable Kind = "unavailable"
	// Internal: programmer-invariant breach. Transaction aborted; service continues.
	Internal Kind = "internal"
)

// Error is the single error type every component boundary returns.
type Error struct {
	Kind  Kind
	Msg   string
	Param string // optional, e.g. the conflicting field name for Conflict
	cause error
}

func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is supports errors.Is(err, &arerr.Error{Kind: arerr.Conflict}) style
// comparisons against a Kind wrapped as a sentinel *Error with no message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func new_(kind Kind, msg string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(msg, args...)}
}

func NewUnauthorized(msg string, args ...any) *Error { return new_(Unauthorized, msg, args...) }
func NewForbidden(msg string, args ...any) *Error    { return new_(Forbidden, msg, args...) }
func NewNotFound(msg string, args ...any) *Error     { return new_(NotFound, msg, args...) }
func NewInvalid(msg string, args ...any) *Error      { return new_(Invalid, msg, args...) }
func NewUnavailable(msg string, args ...any) *Error  { return new_(Unavailable, msg, args...) }
func NewInternal(msg string, args ...any) *Error     { return new_(Internal, msg, args...) }

// NewConflict records the name of the field whose uniqueness was violated.
func NewConflict(param, msg string, args ...any) *Error {
	e := new_(Conflict, msg, args...)
	e.Param = param
	return e
}

// Wrap attaches cause to err for errors.Unwrap chains while preserving Kind.
func Wrap(kind Kind, cause error, msg string, args ...any) *Error {
	e := new_(kind, msg, args...)
	e.cause = cause
	return e
}

// KindOf extracts the Kind of err, defaulting to Internal if err is not an
// *Error (or wraps one).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err's Kind equals kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
