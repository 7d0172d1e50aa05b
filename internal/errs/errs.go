// Package errs defines the error kinds callers must be able to recognize
// programmatically, per spec.md §7. The HTTP collaborator (out of scope
// here) maps Kind to a status code; nothing in this module emits HTTP
// codes directly.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed classification of failure modes.
type Kind int

const (
	// KindValidation is bad config or bad input; no state change occurred.
	KindValidation Kind = iota
	// KindConflict is a uniqueness violation remapped to a domain error.
	KindConflict
	// KindNotFound is a deterministic "no such id" error.
	KindNotFound
	// KindTransient is an upstream flood-wait or lock-contention condition.
	KindTransient
	// KindFatal aborts startup or a job outright (migration failure,
	// missing required file, failed integrity check).
	KindFatal
	// KindContractViolation is an invalid dedupe-strategy result.
	KindContractViolation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindContractViolation:
		return "contract_violation"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged error. Use errors.As to recover the Kind and
// errors.Is/errors.Unwrap to inspect the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Cause: cause}
}

func Validation(msg string, args ...any) *Error {
	return newErr(KindValidation, fmt.Sprintf(msg, args...), nil)
}

func Conflict(msg string, args ...any) *Error {
	return newErr(KindConflict, fmt.Sprintf(msg, args...), nil)
}

func NotFound(msg string, args ...any) *Error {
	return newErr(KindNotFound, fmt.Sprintf(msg, args...), nil)
}

func Transient(cause error, msg string, args ...any) *Error {
	return newErr(KindTransient, fmt.Sprintf(msg, args...), cause)
}

func Fatal(cause error, msg string, args ...any) *Error {
	return newErr(KindFatal, fmt.Sprintf(msg, args...), cause)
}

func ContractViolation(msg string, args ...any) *Error {
	return newErr(KindContractViolation, fmt.Sprintf(msg, args...), nil)
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
