package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies run and tool failures into the closed taxonomy consumers
// and the control loop branch on. Membership decides whether a failure is
// fatal to the enclosing run or merely surfaced to the model as a tool result.
type Kind string

const (
	// KindToolInputInvalid marks arguments rejected by schema validation
	// before the tool handler ran.
	KindToolInputInvalid Kind = "tool_input_invalid"
	// KindToolExecutionFailed marks a tool handler that ran and failed.
	KindToolExecutionFailed Kind = "tool_execution_failed"
	// KindDependencyMissing marks a required dependency absent at run
	// construction or delegation time.
	KindDependencyMissing Kind = "dependency_missing"
	// KindIterationLimitExceeded marks a run that hit its model call budget
	// without producing a final answer.
	KindIterationLimitExceeded Kind = "iteration_limit_exceeded"
	// KindTransportFailure marks a model endpoint error (network, provider).
	KindTransportFailure Kind = "transport_failure"
	// KindCancelled marks a run stopped through context cancellation.
	KindCancelled Kind = "cancelled"
)

// Error is the typed error carried across package boundaries. It pairs a
// taxonomy kind with a message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a typed error with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps a cause with a taxonomy kind and context message.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the taxonomy kind from any error. Context cancellation maps
// to KindCancelled; everything untyped defaults to KindToolExecutionFailed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindToolExecutionFailed
}

// IsFatal reports whether a failure of the given kind terminates the run it
// occurs in AND every enclosing run. Non-fatal kinds are surfaced to the model
// as tool results so it can retry or route around them.
func IsFatal(k Kind) bool {
	return k == KindCancelled || k == KindTransportFailure
}

// Failure is the serializable failure payload attached to events. Messages
// are redacted before a Failure is constructed from an error.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// NewFailure builds a failure payload from an already-safe message.
func NewFailure(kind Kind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// FailureFrom converts an error into an event failure payload, redacting any
// of the given secret values from the message.
func FailureFrom(err error, secrets []string) *Failure {
	return &Failure{Kind: KindOf(err), Message: Redact(err.Error(), secrets)}
}

// Redact replaces every occurrence of the given secret values in msg with a
// placeholder. Empty secrets are skipped.
func Redact(msg string, secrets []string) string {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, s, "[redacted]")
	}
	return msg
}
