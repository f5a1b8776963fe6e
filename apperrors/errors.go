// Package apperrors holds the error kinds surfaced by the identity and invitation core.
// Every error the core returns carries a stable machine-readable Kind and a human message.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable category of an error
type Kind string

const (
	KindNotFound                   Kind = "NOT_FOUND"
	KindInvalidState               Kind = "INVALID_STATE"
	KindDuplicatePendingInvitation Kind = "DUPLICATE_PENDING_INVITATION"
	KindExpired                    Kind = "EXPIRED"
	KindCodeGenerationExhausted    Kind = "CODE_GENERATION_EXHAUSTED"
	KindInvalidRole                Kind = "INVALID_ROLE"
	KindPartialMigration           Kind = "PARTIAL_MIGRATION"
	KindStoreUnavailable           Kind = "STORE_UNAVAILABLE"
	KindValidation                 Kind = "VALIDATION_ERROR"
	KindDuplicateAccount           Kind = "DUPLICATE_ACCOUNT"
	KindInternal                   Kind = "INTERNAL_ERROR"
)

// Error is a categorized error. Err is the optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match any *Error of the same Kind, so callers can compare
// against a bare &Error{Kind: k}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to err. A nil err returns nil.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the human message of the outermost *Error in err's chain
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return "internal error"
}

// Is reports whether err carries the given kind anywhere in its chain
func Is(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// Retryable reports whether the caller may retry the operation that produced err.
// Store outages and exhausted code generation are transient; everything else is
// deterministic and must not be retried blindly.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindStoreUnavailable, KindCodeGenerationExhausted:
		return true
	default:
		return false
	}
}

// StoreUnavailable wraps a transient store failure
func StoreUnavailable(err error, op string) error {
	return Wrap(err, KindStoreUnavailable, fmt.Sprintf("store unavailable during %s", op))
}
