// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrJourneyNotFound indicates a journey was not found by the given identifier.
	ErrJourneyNotFound = errors.New("journey not found")

	// ErrVersionNotFound indicates a journey version does not exist.
	ErrVersionNotFound = errors.New("version not found")

	// ErrVersionAlreadyExists indicates a (journey_id, version) pair is already taken.
	ErrVersionAlreadyExists = errors.New("version already exists")

	// ErrTaskNotFound indicates a journey task was not found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrDeliveryNotFound indicates an engagement delivery was not found.
	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrTaskNotClaimable indicates a task left the pending state before it could be claimed.
	ErrTaskNotClaimable = errors.New("task is not claimable")
)

// JourneyError wraps journey-related errors with additional context.
type JourneyError struct {
	Op        string // Operation being performed (e.g., "ByID", "SaveVersion")
	JourneyID string // Journey ID if applicable
	Version   int    // Version if applicable
	Err       error  // Underlying error
}

func (e *JourneyError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("%s operation failed for journey %s version %d: %v", e.Op, e.JourneyID, e.Version, e.Err)
	}

	return fmt.Sprintf("%s operation failed for journey %s: %v", e.Op, e.JourneyID, e.Err)
}

func (e *JourneyError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for journey errors.
func (e *JourneyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewJourneyError creates a new journey error with context.
func NewJourneyError(op, journeyID string, err error) *JourneyError {
	return &JourneyError{Op: op, JourneyID: journeyID, Err: err}
}

// NewVersionError creates a new journey error for a specific version.
func NewVersionError(op, journeyID string, version int, err error) *JourneyError {
	return &JourneyError{Op: op, JourneyID: journeyID, Version: version, Err: err}
}

// TaskError wraps task and delivery errors with additional context.
type TaskError struct {
	Op  string
	ID  string
	Err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.ID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTaskError creates a new task error with context.
func NewTaskError(op, id string, err error) *TaskError {
	return &TaskError{Op: op, ID: id, Err: err}
}

// IsJourneyNotFound checks if an error indicates a journey was not found.
func IsJourneyNotFound(err error) bool {
	return errors.Is(err, ErrJourneyNotFound)
}

// IsVersionNotFound checks if an error indicates a version was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsTaskNotFound checks if an error indicates a task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsTaskNotClaimable checks if an error indicates a lost claim.
func IsTaskNotClaimable(err error) bool {
	return errors.Is(err, ErrTaskNotClaimable)
}

// IsDeliveryNotFound checks if an error indicates a delivery was not found.
func IsDeliveryNotFound(err error) bool {
	return errors.Is(err, ErrDeliveryNotFound)
}
