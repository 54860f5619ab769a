// Package swerr implements the unified error taxonomy shared by every component:
// template rendering, prompt/workflow lookups, storage, workflow execution, rate
// limiting, and the abort-error escape hatch. A single tagged Kind keeps the
// taxonomy closed at the call site while still allowing error.Is/As-style
// unwrapping of the underlying cause.
package swerr

import (
	"errors"
	"fmt"
)

// Kind tags the category of failure represented by an *Error.
type Kind string

const (
	KindIO                        Kind = "io"
	KindTemplate                  Kind = "template"
	KindMissingRequiredArgument   Kind = "missing_required_argument"
	KindPromptNotFound            Kind = "prompt_not_found"
	KindWorkflowNotFound          Kind = "workflow_not_found"
	KindWorkflowRunNotFound       Kind = "workflow_run_not_found"
	KindSerialization             Kind = "serialization"
	KindJSON                      Kind = "json"
	KindStorage                   Kind = "storage"
	KindWorkflowCircular          Kind = "workflow_circular"
	KindWorkflowInvalidTransition Kind = "workflow_invalid_transition"
	KindWorkflowStateNotFound     Kind = "workflow_state_not_found"
	KindWorkflowTimeout           Kind = "workflow_timeout"
	KindActionRateLimit           Kind = "action_rate_limit"
	KindActionAbort               Kind = "action_abort"
	KindValidation                Kind = "validation"
	KindConfig                    Kind = "config"
	KindOther                     Kind = "other"
)

// Error is the concrete error type returned by every package in this module.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// RetryAfterMillis is populated only for KindActionRateLimit.
	RetryAfterMillis int64
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, swerr.New(swerr.KindPromptNotFound, "")) style checks.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New creates an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind that wraps cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf creates an *Error of the given kind that wraps cause with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, and reports
// whether extraction succeeded.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
