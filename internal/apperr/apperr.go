// Package apperr carries the operation error taxonomy shared by the
// transition engine and its callers. Kinds map one-to-one onto HTTP
// statuses at the interface layer, but the core only ever reasons in kinds.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure
type Kind string

const (
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindInternal           Kind = "INTERNAL"
)

// Error is a kind-classified operation error
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying cause
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// InvalidArgument flags malformed or out-of-range input
func InvalidArgument(format string, args ...interface{}) *Error {
	return New(KindInvalidArgument, format, args...)
}

// Unauthorized flags a missing actor identity
func Unauthorized(format string, args ...interface{}) *Error {
	return New(KindUnauthorized, format, args...)
}

// Forbidden flags an actor that does not own the resource
func Forbidden(format string, args ...interface{}) *Error {
	return New(KindForbidden, format, args...)
}

// NotFound flags a missing entity
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// Conflict flags an in-flight duplicate
func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

// PreconditionFailed flags entity state that violates a business rule
func PreconditionFailed(format string, args ...interface{}) *Error {
	return New(KindPreconditionFailed, format, args...)
}

// Internal wraps an unexpected infrastructure failure
func Internal(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindInternal, cause, format, args...)
}

// KindOf extracts the kind from an error chain, KindInternal if unclassified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
