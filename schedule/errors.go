/*
errors.go - Error taxonomy for the scheduling engine

ERROR CATEGORIES:
  1. Validation  - malformed input, rejected before reaching the store
  2. Conflict    - overlap detected without override; an expected outcome
                   the caller resolves by re-submitting with force or giving up
  3. Not found   - referenced record does not exist
  4. Anything else is a store/transaction failure and is surfaced as internal

USAGE:
  var conflict *schedule.ConflictError
  if errors.As(err, &conflict) {
      // present conflict.Occurrences to a human
  }

SEE ALSO:
  - leave/errors.go: leave overlap and transition errors
  - api/handlers.go: maps these to HTTP status codes
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	// ErrConflict is wrapped by ConflictError. Overridable with force.
	ErrConflict = errors.New("scheduling conflict")

	ErrWorkerNotFound   = errors.New("worker not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskTypeNotFound = errors.New("task type not found")
	ErrLeaveNotFound    = errors.New("leave request not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError pinpoints the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// OccurrenceConflicts ties a conflict map to the occurrence that produced it.
// Single-interval writes carry exactly one entry.
type OccurrenceConflicts struct {
	Occurrence Occurrence
	Conflicts  Conflicts
}

// ConflictError is returned when a write would overlap existing tasks or
// approved leave and no force flag was given. Nothing was written.
type ConflictError struct {
	Occurrences []OccurrenceConflicts
}

func (e *ConflictError) Error() string {
	workers := make(map[WorkerID]bool)
	for _, oc := range e.Occurrences {
		for id := range oc.Conflicts {
			workers[id] = true
		}
	}
	return fmt.Sprintf("scheduling conflict: %d occurrence(s), %d worker(s)", len(e.Occurrences), len(workers))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Merged folds every occurrence's conflicts into one map.
func (e *ConflictError) Merged() Conflicts {
	out := make(Conflicts)
	for _, oc := range e.Occurrences {
		out.Merge(oc.Conflicts)
	}
	return out
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrTaskTypeNotFound) ||
		errors.Is(err, ErrLeaveNotFound)
}

// IsConflict returns true for overridable scheduling conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
