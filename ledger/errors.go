/*
errors.go - Error taxonomy for the reconciliation engine

PURPOSE:
  All domain error categories in one place. Callers branch with errors.Is on
  the sentinels and extract context with errors.As on the structured types.

CATEGORIES:
  ErrValidation   - malformed input or dangling references on write
  ErrPrecondition - the target entity lacks a required capability
  ErrConsistency  - stored records contradict each other; surfaced, never
                    silently repaired
  ErrNotFound     - a referenced record does not exist

RECOVERY POLICY:
  All errors are surfaced to the caller. The engine performs no retries and
  no partial writes; multi-row operations either complete or change nothing.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation   = errors.New("validation failed")
	ErrPrecondition = errors.New("precondition failed")
	ErrConsistency  = errors.New("consistency violation")
	ErrNotFound     = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed input or a dangling reference on a write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PreconditionError reports an operation attempted against an entity that
// lacks the required capability, e.g. billing-cycle sync on a non-revolving
// account.
type PreconditionError struct {
	Subject string
	Reason  string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: %s", e.Subject, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// ConsistencyError reports a schedule whose linked entry references a
// different obligation. This cannot happen for writes that go through the
// engine; when it is detected the read fails loudly instead of picking a side.
type ConsistencyError struct {
	ScheduleID     ScheduleID
	EntryID        EntryID
	WantObligation ObligationID
	GotObligation  ObligationID
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("entry %s linked to schedule %s references obligation %s, schedule belongs to %s",
		e.EntryID, e.ScheduleID, e.GotObligation, e.WantObligation)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// NotFoundError reports a missing record by kind and identifier.
type NotFoundError struct {
	Kind string // "account", "entry", "obligation", "schedule"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrConsistency)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
