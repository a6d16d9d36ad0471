/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every structured error unwraps to exactly one sentinel so callers (and the
  HTTP layer) can branch with errors.Is without knowing the concrete type.

ERROR CATEGORIES:
  1. Validation    - Malformed input (missing relief teacher, bad range)
  2. Conflict      - Overlapping non-terminal leave on submit
  3. State         - Transition not allowed from the current status
  4. Authorization - Caller doesn't own the request
  5. Not found     - Unknown id, or relief teacher mismatch
  6. Persistence   - Storage failure; the unit of work was rolled back

USAGE:
  if errors.Is(err, generic.ErrState) {
      // e.g., approving before the relief teacher accepted
  }

  var conflict *generic.ConflictError
  if errors.As(err, &conflict) {
      log.Printf("overlaps request %d", conflict.ExistingID)
  }

SEE ALSO:
  - leave/request.go: Raises these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input is malformed or self-referential.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a new leave request overlaps an existing
	// pending or approved request of the same applicant.
	ErrConflict = errors.New("conflicting leave request")

	// ErrState is returned when a transition is not allowed from the current state.
	ErrState = errors.New("invalid state transition")

	// ErrAuthorization is returned when the caller is not the owner of the record.
	ErrAuthorization = errors.New("not authorized")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrPersistence is returned when storage fails. All writes of the
	// operation have been rolled back.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError provides details about invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError provides details about an overlapping leave request.
type ConflictError struct {
	TeacherID  TeacherID
	ExistingID RequestID
	Existing   DateRange
	Requested  DateRange
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("leave %s overlaps existing request %d %s for teacher %d",
		e.Requested, e.ExistingID, e.Existing, e.TeacherID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StateError provides details about a rejected transition.
type StateError struct {
	RequestID RequestID
	Status    string
	Message   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("request %d (%s): %s", e.RequestID, e.Status, e.Message)
}

func (e *StateError) Unwrap() error { return ErrState }

// AuthorizationError provides details about an ownership mismatch.
type AuthorizationError struct {
	RequestID RequestID
	ActorID   TeacherID
	Action    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("teacher %d may not %s request %d", e.ActorID, e.Action, e.RequestID)
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorization }

// NotFoundError provides details about a missing record. Key replaces ID
// for records with string identifiers.
type NotFoundError struct {
	Resource string
	ID       int64
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a request that is not allowed in the current state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrState) ||
		errors.Is(err, ErrAuthorization)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDomainError returns true for every error kind except persistence.
func IsDomainError(err error) bool {
	return IsClientError(err) || IsNotFound(err)
}

// WrapPersistence turns a storage error into a PersistenceError, leaving
// domain errors (and nil) untouched.
func WrapPersistence(op string, err error) error {
	if err == nil || IsDomainError(err) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
