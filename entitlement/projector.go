/*
projector.go - Card-facing balance projection

PURPOSE:
  The stateless query surface behind card-scan and staff lookup flows.
  Composed from the entitlement ledger and a recent-visit read; it holds
  no eligibility or cycle logic of its own, so entitlement rule changes
  never touch the balance-display code path.
*/
package entitlement

import "context"

// MaxRecentVisits caps how many visits a projection carries for display.
const MaxRecentVisits = 10

// Projection is what the card-scan surface renders.
type Projection struct {
	EmpNo        string
	Employee     *Employee // nil when the directory has no record
	Balance      Balance
	RecentVisits []Visit
}

// Projector assembles projections. Read-only.
type Projector struct {
	ledger    *Ledger
	visits    VisitStore
	directory EmployeeDirectory
}

func NewProjector(ledger *Ledger, visits VisitStore, directory EmployeeDirectory) *Projector {
	return &Projector{ledger: ledger, visits: visits, directory: directory}
}

// Project returns the employee's balance and up to limit recent visits,
// newest first. limit is clamped to [1, MaxRecentVisits]. A missing
// employee record leaves Employee nil but never fails the projection.
func (p *Projector) Project(ctx context.Context, empNo string, limit int) (Projection, error) {
	if limit <= 0 || limit > MaxRecentVisits {
		limit = MaxRecentVisits
	}

	balance, err := p.ledger.Balance(ctx, empNo)
	if err != nil {
		return Projection{}, err
	}

	recent, err := p.visits.RecentVisits(ctx, empNo, limit)
	if err != nil {
		return Projection{}, err
	}

	proj := Projection{EmpNo: empNo, Balance: balance, RecentVisits: recent}
	if p.directory != nil {
		emp, err := p.directory.GetEmployee(ctx, empNo)
		if err == nil && emp != nil {
			proj.Employee = emp
		}
	}
	return proj, nil
}
