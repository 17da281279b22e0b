/*
ledger.go - Spent and remaining allowance, derived from committed visits

PURPOSE:
  The read model over the visit ledger. Spent is the sum of committed
  visit totals; Remaining is the configured annual limit minus Spent.
  There is no stored balance anywhere - the staff view and the
  card-scanning surface both read through here, so they cannot disagree.

SEMANTICS:
  - No time windowing: the annual limit is a standing total. Cycles gate
    frequency; the limit gates amount.
  - Remaining may go negative. An over-limit employee is reported as
    data; refusing further spend is a policy decision outside this core.
  - Missing policy falls back to DefaultAnnualLimit. Never an error.

SEE ALSO:
  - store.go: SpentTotal contract (single aggregate pass)
  - projector.go: Card-facing composition over this ledger
*/
package entitlement

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTITLEMENT LEDGER
// =============================================================================

// Ledger derives spendable state from the visit store and policy lookup.
type Ledger struct {
	visits   VisitStore
	policies PolicyProvider
}

func NewLedger(visits VisitStore, policies PolicyProvider) *Ledger {
	return &Ledger{visits: visits, policies: policies}
}

// Spent returns the total amount consumed by the employee across all
// committed visits. Zero for an employee with no history.
func (l *Ledger) Spent(ctx context.Context, empNo string) (decimal.Decimal, error) {
	return l.visits.SpentTotal(ctx, empNo)
}

// LimitFor resolves the employee's annual limit, falling back to the
// system default when no policy is configured.
func (l *Ledger) LimitFor(ctx context.Context, empNo string) (decimal.Decimal, error) {
	if l.policies == nil {
		return DefaultAnnualLimit, nil
	}
	policy, err := l.policies.GetPolicy(ctx, empNo)
	if err != nil {
		return decimal.Zero, err
	}
	if policy == nil {
		return DefaultAnnualLimit, nil
	}
	return policy.AnnualLimit, nil
}

// Balance computes {limit, spent, remaining} for the employee.
// Remaining = limit - spent and may be negative.
func (l *Ledger) Balance(ctx context.Context, empNo string) (Balance, error) {
	limit, err := l.LimitFor(ctx, empNo)
	if err != nil {
		return Balance{}, err
	}
	spent, err := l.Spent(ctx, empNo)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		Limit:     limit,
		Spent:     spent,
		Remaining: limit.Sub(spent),
	}, nil
}
