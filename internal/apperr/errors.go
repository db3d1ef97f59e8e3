// Package apperr defines the error kinds surfaced by the domain services and
// classified once at the HTTP boundary.
package apperr

import (
	"errors"
	"strings"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified domain error. Message is safe to show to callers.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a referenced entity that does not exist.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: cause}
}

// Validation reports every rejected field at once.
func Validation(fields ...FieldError) *Error {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	msg := "Validation failed"
	if len(msgs) > 0 {
		msg += ": " + strings.Join(msgs, "; ")
	}
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Internal wraps an unexpected failure. Its message never leaves the process.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}
