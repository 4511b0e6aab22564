package domain

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Classes
// =============================================================================

var (
	// ErrReferenceNotFound is returned when a supplied identifier (version,
	// application, target) does not resolve against the hub's current state.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrPreconditionFailed is returned when an operation needs prior state
	// that does not exist, e.g. updating a target with nothing deployed.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInvalidArgument is returned for malformed caller input that is
	// rejected before any remote call.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ResolveError wraps an error class with the operation and entity it concerns.
type ResolveError struct {
	Op      string // e.g. "ResolveNewerVersions"
	Entity  string // e.g. "application_version"
	ID      string
	Message string
	Err     error
}

func (e *ResolveError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// NewResolveError creates a new ResolveError.
func NewResolveError(op, entity, id, message string, err error) *ResolveError {
	return &ResolveError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// IsReferenceNotFound reports whether err is in the ReferenceNotFound class.
func IsReferenceNotFound(err error) bool {
	return errors.Is(err, ErrReferenceNotFound)
}

// IsPreconditionFailed reports whether err is in the PreconditionFailed class.
func IsPreconditionFailed(err error) bool {
	return errors.Is(err, ErrPreconditionFailed)
}

// =============================================================================
// Partial Failure
// =============================================================================

// PartialFailureError is returned by multi-step operations that fail after at
// least one remote mutation succeeded. Nothing is rolled back; Created lists
// what now exists on the hub.
type PartialFailureError struct {
	Op      string
	Step    string
	Created []string // e.g. "deployment_target:<id>"
	Err     error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s failed at %s (left behind: %s): %v",
		e.Op, e.Step, strings.Join(e.Created, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
