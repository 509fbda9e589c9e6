/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error types shared across packages live here so callers can classify
  failures with errors.Is / errors.As without importing engine internals.

ERROR CATEGORIES:
  1. Validation errors - malformed or out-of-range input. Always fatal and
     synchronous: the offending construction or mutation is rejected and
     no partial state becomes visible.
  2. Store errors - not found, concurrent modification, duplicate punch ID.

  Plausibility anomalies (duplicate punch inside the window, broken code
  sequence, low confidence) are NOT errors. They travel as conflicts on the
  reconciliation result; see biometric.Conflict.

SEE ALSO:
  - attendance/record.go: Validate() returns *ValidationError
  - store/sqlite/sqlite.go: maps SQL failures onto these sentinels
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a record, profile or holiday does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when a version check fails on save.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateEvent is returned when a punch with the same ID is journaled twice.
	ErrDuplicateEvent = errors.New("duplicate event id")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field and why it was rejected.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a *ValidationError.
func Invalid(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NotFoundError carries what was being looked up.
type NotFoundError struct {
	Kind string // "record", "profile", "holiday"
	Key  string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.Key) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// VersionConflictError reports the versions seen by an optimistic save.
type VersionConflictError struct {
	Key      string
	Expected int
	Actual   int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, found %d", e.Key, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrConcurrentModification }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrDuplicateEvent)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
