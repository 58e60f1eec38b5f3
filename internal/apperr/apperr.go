// Package apperr defines the error kinds shared by the service and storage
// layers so that callers can branch on the kind instead of the message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Internal is any failure that is not one of the kinds below.
	Internal Kind = iota
	// Validation means the input is malformed or violates a policy.
	Validation
	// Invalid means the input is well formed but a business rule rejected it.
	Invalid
	// Conflict means a uniqueness constraint was violated.
	Conflict
	// Unauthenticated means credentials or token could not be verified.
	Unauthenticated
	// NotFound means the requested record does not exist.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Invalid:
		return "invalid"
	case Conflict:
		return "conflict"
	case Unauthenticated:
		return "unauthenticated"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error carries a kind, a caller-safe message and optional per-field detail.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

// New returns an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Fields returns a Validation error with field-level detail.
func Fields(message string, fields map[string]string) *Error {
	return &Error{Kind: Validation, Message: message, Fields: fields}
}

// KindOf reports the kind of err, looking through wrapping.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As extracts the *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
