package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "INVALID_INPUT"
	KindUnauthorized       ErrorKind = "UNAUTHORIZED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindConflict           ErrorKind = "CONFLICT"
	KindInvalidTransition  ErrorKind = "INVALID_TRANSITION"
	KindInsufficientStock  ErrorKind = "INSUFFICIENT_STOCK"
	KindVerificationFailed ErrorKind = "VERIFICATION_FAILED"
	KindInternal           ErrorKind = "INTERNAL"
)

// Error is returned by services for every failure a client can act on.
// Anything that is not an *Error is treated as internal.
type Error struct {
	Kind    ErrorKind
	Message string
	Details []string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(format string, args ...any) *Error {
	return newError(KindInvalidInput, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return newError(KindInvalidTransition, format, args...)
}

func InsufficientStock(format string, args ...any) *Error {
	return newError(KindInsufficientStock, format, args...)
}

func VerificationFailed(format string, args ...any) *Error {
	return newError(KindVerificationFailed, format, args...)
}

// WithDetails attaches per-field messages, e.g. validation failures.
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
