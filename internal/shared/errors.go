package shared

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Every domain error wraps exactly one of these.
var (
	// ErrNotFound indicates a referenced party, document or country is missing.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller role lacks the capability.
	ErrForbidden = errors.New("forbidden")
	// ErrAccountingLocked indicates the transaction date falls within a locked period.
	ErrAccountingLocked = errors.New("accounting period locked")
	// ErrDocumentLocked indicates the document reached the Locked workflow state.
	ErrDocumentLocked = errors.New("document locked")
	// ErrInvalidTransition indicates the workflow transition is not permitted from the current state.
	ErrInvalidTransition = errors.New("invalid workflow transition")
	// ErrConflict indicates a concurrent writer changed the record first.
	ErrConflict = errors.New("conflict")
)

// Error carries a human message on top of one of the error kinds.
type Error struct {
	kind error
	msg  string
}

// NewError builds an Error of the given kind.
func NewError(kind error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.kind.Error()
	}
	return e.msg
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	return e.kind
}

// Validationf reports malformed input.
func Validationf(format string, args ...any) error {
	return NewError(ErrValidation, format, args...)
}

// Forbiddenf reports a missing capability.
func Forbiddenf(format string, args ...any) error {
	return NewError(ErrForbidden, format, args...)
}

// NotFoundf reports a missing record.
func NotFoundf(format string, args ...any) error {
	return NewError(ErrNotFound, format, args...)
}

// KindName returns the machine readable kind for err.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountingLocked):
		return "ACCOUNTING_LOCKED"
	case errors.Is(err, ErrDocumentLocked):
		return "DOCUMENT_LOCKED"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}
