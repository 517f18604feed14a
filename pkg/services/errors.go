// Package services provides the journey authoring and event ingestion operations
// behind the HTTP API and the command line.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/journeys/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidSchema  = errors.New("invalid journey schema")

	// Publishing Validation Errors (400 Bad Request).
	ErrNodesRequired       = errors.New("journey must have at least one node")
	ErrTriggerNodeRequired = errors.New("journey must have at least one trigger node")
	ErrDuplicateNodeID     = errors.New("node ids must be unique")
	ErrDanglingEdge        = errors.New("edge references a missing node")
	ErrInvalidNodeData     = errors.New("invalid node data")

	// Business Logic Conflicts (409 Conflict).
	ErrCannotModifyPublished = errors.New("cannot modify published version")
	ErrNoPublishedVersion    = errors.New("journey has no published version")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSchema) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrTriggerNodeRequired) ||
		errors.Is(err, ErrDuplicateNodeID) ||
		errors.Is(err, ErrDanglingEdge) ||
		errors.Is(err, ErrInvalidNodeData)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyPublished) ||
		errors.Is(err, ErrNoPublishedVersion) ||
		errors.Is(err, persistence.ErrVersionAlreadyExists)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsJourneyNotFound(err) ||
		persistence.IsVersionNotFound(err) ||
		persistence.IsTaskNotFound(err) ||
		persistence.IsDeliveryNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
