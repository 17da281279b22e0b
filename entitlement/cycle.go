package entitlement

import (
	"fmt"
	"time"
)

// =============================================================================
// CYCLE - Half-month entitlement window
// =============================================================================

// Cycle identifies the half-month window a date falls into. Together with an
// employee number it forms the uniqueness partition for visit commits.
type Cycle struct {
	Number     int    // 1 for days 1-15, 2 for day 16 through end of month
	MonthLabel string // stable month+year key, e.g. "Mar-2025"
}

// CycleOf computes the cycle for a calendar date. Pure and total: correct for
// every month length (28-31 days) and across year boundaries. Computed fresh
// per call from the candidate date, never cached across requests.
func CycleOf(date time.Time) Cycle {
	number := 1
	if date.Day() > 15 {
		number = 2
	}
	return Cycle{
		Number:     number,
		MonthLabel: date.Format("Jan-2006"),
	}
}

func (c Cycle) String() string {
	return fmt.Sprintf("%s/%d", c.MonthLabel, c.Number)
}
