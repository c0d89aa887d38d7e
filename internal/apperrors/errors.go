// Package apperrors defines the failure kinds shared by the lending core.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition means a status change is not permitted from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrForbidden means the actor lacks authority for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means a concurrent mutation won, or date ranges collide.
	ErrConflict = errors.New("conflict")
	// ErrNotFound means the referenced entity is absent or already soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrInvalid means the input itself is malformed.
	ErrInvalid = errors.New("invalid input")
	// ErrCascadeStepFailed means the deletion cascade was aborted and rolled back.
	ErrCascadeStepFailed = errors.New("cascade step failed")
)

// TransitionError names the source and attempted target of a rejected status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NewTransitionError returns a TransitionError for the given statuses.
func NewTransitionError[S ~string](from, to S) error {
	return &TransitionError{From: string(from), To: string(to)}
}

// CascadeError reports the deletion step at which the cascade failed.
type CascadeError struct {
	Step string
	Err  error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("account deletion failed at step %q: %v", e.Step, e.Err)
}

// Unwrap exposes the step's underlying error.
func (e *CascadeError) Unwrap() error {
	return e.Err
}

// Is matches ErrCascadeStepFailed in addition to the wrapped error.
func (e *CascadeError) Is(target error) bool {
	return target == ErrCascadeStepFailed
}

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s with ID %s: %w", kind, id, ErrNotFound)
}

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrForbidden)
}

// Conflict wraps ErrConflict with a reason.
func Conflict(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrConflict)
}

// Invalid wraps ErrInvalid with a reason.
func Invalid(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalid)
}
