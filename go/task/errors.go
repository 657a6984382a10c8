package task

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass is the surfaced classification of a failed task, carried on
// the task's error field and in stream error events.
type ErrorClass string

const (
	ErrorInvalidInput      ErrorClass = "invalid_input"
	ErrorCapacityExceeded  ErrorClass = "capacity_exceeded"
	ErrorModelUnavailable  ErrorClass = "model_unavailable"
	ErrorTimeout           ErrorClass = "timeout"
	ErrorCancelled         ErrorClass = "cancelled"
	ErrorPersistenceFailed ErrorClass = "persistence_failed"
	ErrorInternal          ErrorClass = "internal"
)

// Error couples a pipeline error with its surfaced classification.
type Error struct {
	Class ErrorClass
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified Error from a format string.
func Errorf(class ErrorClass, format string, args ...interface{}) *Error {
	return &Error{Class: class, Err: fmt.Errorf(format, args...)}
}

// WrapError classifies an underlying error, preserving it for unwrapping.
func WrapError(class ErrorClass, err error) *Error {
	return &Error{Class: class, Err: err}
}

// Classify maps an error returned by a pipeline into its surfaced class
// and human-readable message. Unclassified errors are internal: their
// detail is logged by the caller but not surfaced.
func Classify(err error) (ErrorClass, string) {
	var te *Error
	if errors.As(err, &te) {
		return te.Class, te.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout, "task deadline exceeded"
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCancelled, "cancelled"
	}
	if errors.Is(err, ErrCapacityExceeded) {
		return ErrorCapacityExceeded, "capacity exceeded"
	}
	return ErrorInternal, "internal error"
}
