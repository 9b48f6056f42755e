// Package apperr defines the structured error taxonomy shared by the
// workflow services. Every error surfaced to a caller carries a
// discriminated kind so transport adapters can map it without string
// matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates the error classes of the workflow engine.
type Kind string

const (
	// KindValidation marks a missing or malformed required field.
	KindValidation Kind = "VALIDATION"
	// KindNotFound marks a referenced Task or Expense that does not exist.
	KindNotFound Kind = "NOT_FOUND"
	// KindForbidden marks a caller that is neither admin nor the Task's assignee.
	KindForbidden Kind = "FORBIDDEN"
	// KindPrecondition marks a logically out-of-order action.
	KindPrecondition Kind = "PRECONDITION"
	// KindUpstream marks a rejected or timed-out external call.
	KindUpstream Kind = "UPSTREAM"
)

// Error is a structured application error with a discriminated kind.
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

// Is lets errors.Is match on kind: apperr.Is(err, apperr.KindNotFound)
// reads better, but errors.Is(err, &Error{Kind: k}) also works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Validation builds a KindValidation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a KindForbidden error.
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Precondition builds a KindPrecondition error.
func Precondition(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

// Upstream builds a KindUpstream error wrapping the external failure.
func Upstream(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or the empty kind when err is not an
// application error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
