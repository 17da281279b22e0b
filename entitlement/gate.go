/*
gate.go - Eligibility check for new treatment visits

PURPOSE:
  Decides whether an employee may commit a new visit on a candidate date.
  One committed visit per half-month cycle: the gate computes the cycle
  from the date and checks whether that window is already occupied.

WHY THE GATE IS NOT THE GUARANTEE:
  Check never mutates state and never reserves a slot. Two concurrent
  commits can both pass the gate; the store's uniqueness constraint is
  what keeps exactly one of them. The gate exists for cheap rejection
  with a precise reason before any work is done.

DATE SCOPING:
  Eligibility is evaluated against the cycle the candidate date falls in,
  not against "today". A back-dated entry correcting a missed visit is
  subject to the same one-per-cycle rule in its own historical window.

SEE ALSO:
  - cycle.go: Window computation
  - coordinator.go: Re-runs the check on the commit path
*/
package entitlement

import (
	"context"
	"time"
)

// =============================================================================
// ELIGIBILITY GATE
// =============================================================================

// Decision is the outcome of an eligibility check.
type Decision struct {
	Allowed        bool
	Cycle          Cycle
	Reason         string
	ExistingSerial int64 // serial of the occupying visit when not allowed
}

// Gate answers "may this employee commit a visit on this date?".
// Pure read: calling Check any number of times changes nothing.
type Gate struct {
	visits VisitStore
}

func NewGate(visits VisitStore) *Gate {
	return &Gate{visits: visits}
}

// Check evaluates the one-visit-per-cycle rule for empNo on date.
// An employee with no history at all is always allowed (new record case).
func (g *Gate) Check(ctx context.Context, empNo string, date time.Time) (Decision, error) {
	cycle := CycleOf(date)

	existing, err := g.visits.FindByCycle(ctx, empNo, cycle.MonthLabel, cycle.Number)
	if err != nil {
		return Decision{}, err
	}
	if existing != nil {
		return Decision{
			Allowed:        false,
			Cycle:          cycle,
			Reason:         "cycle already consumed",
			ExistingSerial: existing.SerialNumber,
		}, nil
	}

	return Decision{Allowed: true, Cycle: cycle}, nil
}
