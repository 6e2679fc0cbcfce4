package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the request number allocator.
var (
	// ErrSequenceExhausted means the PR-###### number space is used up. Permanent.
	ErrSequenceExhausted = errors.New("request number sequence exhausted")
	// ErrAllocationFailed means the allocator hit its retry bound under
	// contention. A later attempt may succeed.
	ErrAllocationFailed = errors.New("request number allocation failed after retries")
)

// ValidationError reports malformed input the caller can correct.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing target entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ReferenceNotFoundError reports that one or more referenced catalog entries
// do not exist. The check is a batch count, so only the entity kind is named,
// not the specific ids.
type ReferenceNotFoundError struct {
	Kind string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("one or more referenced %ss do not exist", e.Kind)
}

// InvalidTransitionError reports an event that is illegal from the current
// status. The stored aggregate is guaranteed unchanged.
type InvalidTransitionError struct {
	Status RequestStatus
	Event  RequestEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to a purchase request in status %s", e.Event, e.Status)
}
