package jobs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition indicates the action is not an edge from the current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrValidation indicates missing or malformed input for an action.
	ErrValidation = errors.New("validation error")

	// ErrConflict indicates another transition holds the job or changed it first.
	ErrConflict = errors.New("conflict")

	// ErrRender indicates document generation failed.
	ErrRender = errors.New("render error")

	// ErrStorage indicates the blob store or database write failed.
	ErrStorage = errors.New("storage error")

	// ErrNotFound indicates the job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTimeout indicates the transition ran past its deadline.
	ErrTimeout = errors.New("timeout")
)

// TransitionError carries the failure kind plus the offending field.
type TransitionError struct {
	Kind   error
	Field  string
	Detail string
}

func (e *TransitionError) Error() string {
	switch {
	case e.Field != "" && e.Detail != "":
		return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Detail)
	case e.Field != "":
		return fmt.Sprintf("%v: %s is required", e.Kind, e.Field)
	case e.Detail != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	default:
		return e.Kind.Error()
	}
}

func (e *TransitionError) Unwrap() error {
	return e.Kind
}

func missing(field string) error {
	return &TransitionError{Kind: ErrValidation, Field: field}
}

func invalid(field, detail string) error {
	return &TransitionError{Kind: ErrValidation, Field: field, Detail: detail}
}

// FieldOf returns the field named by a validation error, if any.
func FieldOf(err error) string {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Field
	}
	return ""
}

// Retryable reports whether the caller may retry the same transition unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) || errors.Is(err, ErrTimeout)
}

// Reason is a short metric label for err.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrRender):
		return "render_error"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal_error"
	}
}
