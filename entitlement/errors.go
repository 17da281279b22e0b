/*
errors.go - Centralized error types for the entitlement engine

PURPOSE:
  All engine errors in one place. Every outcome the engine cares about
  is a typed result: the HTTP layer translates types to statuses without
  inspecting message text.

ERROR CATEGORIES:
  1. Validation errors - malformed commit input (bad category, no items)
  2. Cycle errors - the half-month window is already consumed
  3. Conflict errors - the store-level uniqueness constraint rejected an
     insert that the optimistic gate had allowed

USAGE:
  if errors.Is(err, entitlement.ErrCycleConsumed) {
      // 409 for the caller, regardless of which path detected it
  }
  var conflict *entitlement.ConflictError
  if errors.As(err, &conflict) {
      // same user-visible outcome, but log the lost race distinctly
  }

SEE ALSO:
  - gate.go: Returns CycleExhaustedError
  - coordinator.go: Returns ValidationError and ConflictError
  - store/sqlite: Maps unique-index violations to ErrCycleConsumed
*/
package entitlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all commit-input validation failures.
	ErrValidation = errors.New("invalid visit input")

	// ErrCycleConsumed is returned when the (employee, month, cycle) tuple
	// already has a committed visit. Both the optimistic gate and the
	// store-level constraint surface through this sentinel.
	ErrCycleConsumed = errors.New("cycle already consumed")

	// ErrEmployeeNotFound is returned by lookups for unknown employees.
	// The engine never gates eligibility on it; only enrichment paths do.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrVisitNotFound is returned when a serial number or verification
	// code resolves to no committed visit.
	ErrVisitNotFound = errors.New("visit not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field of a commit request was unusable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CycleExhaustedError is the gate's rejection: the employee already has a
// committed visit in this half-month window.
type CycleExhaustedError struct {
	EmpNo          string
	Cycle          Cycle
	ExistingSerial int64
}

func (e *CycleExhaustedError) Error() string {
	return fmt.Sprintf("cycle already consumed: %s in %s (serial %d)",
		e.EmpNo, e.Cycle, e.ExistingSerial)
}

func (e *CycleExhaustedError) Unwrap() error { return ErrCycleConsumed }

// ConflictError means the optimistic gate allowed a commit but the store's
// uniqueness constraint rejected the insert: a concurrent commit won the
// race. Identical to CycleExhaustedError from the caller's perspective, but
// kept as a distinct type so the lost race can be logged and counted.
type ConflictError struct {
	EmpNo string
	Cycle Cycle
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent commit won the cycle: %s in %s", e.EmpNo, e.Cycle)
}

func (e *ConflictError) Unwrap() error { return ErrCycleConsumed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input or an
// already-consumed cycle, i.e. nothing on the server side is broken.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrCycleConsumed)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) || errors.Is(err, ErrVisitNotFound)
}
