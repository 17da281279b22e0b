/*
store.go - Persistence interfaces for the entitlement engine

PURPOSE:
  Defines the boundary between the engine and its only shared mutable
  resource, the visit-record store. All mutation goes through InsertVisit;
  every other method is read-only and may run with relaxed isolation.

UNIQUENESS CONTRACT:
  Implementations MUST enforce (emp_no, month_label, cycle_number)
  uniqueness at the storage layer and return ErrCycleConsumed (wrapped is
  fine) when an insert violates it. The optimistic gate read is only a
  fast path for good error messages; the store constraint is the actual
  correctness guarantee under concurrent commits.

IMPLEMENTATIONS:
  - store/sqlite: production store with a unique index
  - entitlement/store: in-memory store for tests and dev

SEE ALSO:
  - coordinator.go: The only writer
  - ledger.go, projector.go: Read-only consumers
*/
package entitlement

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VISIT STORE - The shared mutable resource
// =============================================================================

// VisitStore persists committed visits.
type VisitStore interface {
	// InsertVisit persists a visit as Committed and assigns its serial
	// number (monotonic within the store, never reused). Returns an error
	// wrapping ErrCycleConsumed if (EmpNo, MonthLabel, CycleNumber) is
	// already committed. This is the ONLY write operation.
	InsertVisit(ctx context.Context, v Visit) (int64, error)

	// FindByCycle returns the committed visit occupying the tuple, or nil
	// when the cycle is still open. Read-only.
	FindByCycle(ctx context.Context, empNo, monthLabel string, cycleNumber int) (*Visit, error)

	// SpentTotal returns the sum of TotalAmount over all committed visits
	// for the employee. One aggregate pass, no business logic replay.
	SpentTotal(ctx context.Context, empNo string) (decimal.Decimal, error)

	// RecentVisits returns up to limit committed visits for the employee,
	// most recent visit timestamp first.
	RecentVisits(ctx context.Context, empNo string, limit int) ([]Visit, error)

	// FindByVerificationCode resolves a scanned code to its visit.
	// Returns ErrVisitNotFound when the code is unknown.
	FindByVerificationCode(ctx context.Context, code string) (*Visit, error)
}

// =============================================================================
// OUTBOUND COLLABORATORS - Enrichment only, never gating
// =============================================================================

// EmployeeDirectory looks up registration data for display. A missing
// employee never blocks an engine operation.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, empNo string) (*Employee, error)
}

// PolicyProvider looks up the configured annual limit for an employee.
// A nil policy means "use the system default"; it is not an error.
type PolicyProvider interface {
	GetPolicy(ctx context.Context, empNo string) (*Policy, error)
}
