/*
coordinator.go - Atomic commit of a new treatment visit

PURPOSE:
  The only writer in the engine. Validates the request, re-runs the
  eligibility gate, assigns the serial number and verification code via
  the store, and persists the visit as Committed. A successful commit is
  the only event that changes what the ledger reports for an employee.

COMMIT PIPELINE:
  1. Validate the category against the fixed set
  2. Normalize line items: drop empty names, parse amounts (empty or
     non-numeric contributes zero), cap at ten, reject when nothing
     usable remains
  3. Re-run the gate for the candidate date's cycle
  4. Insert; the store's unique index on (emp_no, month_label,
     cycle_number) is authoritative - a constraint violation here means
     a concurrent commit won the race after our gate read
  5. Return the serial number and verification code; rendering them into
     a printable slip is the caller's problem

FAILURE MODES:
  ValidationError      -> nothing usable in the request
  CycleExhaustedError  -> gate saw the window already occupied
  ConflictError        -> gate said yes, insert lost the race (logged
                          distinctly: the optimistic fast path failed)
  On any rejection no partial state is written.

SEE ALSO:
  - gate.go: The optimistic check
  - store.go: InsertVisit uniqueness contract
*/
package entitlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// COMMIT REQUEST / RECEIPT
// =============================================================================

// CommitRequest is a draft visit as submitted by the caller.
type CommitRequest struct {
	EmpNo    string
	Category string
	Items    []LineItemInput
	Date     time.Time
}

// Receipt is returned on a successful commit. The external PDF/QR renderer
// turns the verification code into a scannable artifact; the engine never
// renders anything.
type Receipt struct {
	SerialNumber     int64
	VerificationCode string
	Cycle            Cycle
	TotalAmount      string
}

// =============================================================================
// TREATMENT COMMIT COORDINATOR
// =============================================================================

// Coordinator orchestrates validation and atomic persistence of visits.
type Coordinator struct {
	visits VisitStore
	gate   *Gate
	log    zerolog.Logger
}

func NewCoordinator(visits VisitStore, gate *Gate, log zerolog.Logger) *Coordinator {
	return &Coordinator{visits: visits, gate: gate, log: log}
}

// Commit validates and persists a new visit. Exactly one concurrent commit
// per (employee, month, cycle) succeeds; the rest are rejected.
func (c *Coordinator) Commit(ctx context.Context, req CommitRequest) (*Receipt, error) {
	category, ok := ParseCategory(strings.ToLower(strings.TrimSpace(req.Category)))
	if !ok {
		return nil, &ValidationError{Field: "category", Message: "unknown visit category: " + req.Category}
	}
	if req.EmpNo == "" {
		return nil, &ValidationError{Field: "empNo", Message: "employee number is required"}
	}
	if len(req.Items) > MaxLineItems {
		return nil, &ValidationError{Field: "items", Message: "a visit carries at most 10 line items"}
	}

	items, total := normalizeItems(req.Items)
	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Message: "a visit must record at least one item"}
	}

	decision, err := c.gate.Check(ctx, req.EmpNo, req.Date)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &CycleExhaustedError{
			EmpNo:          req.EmpNo,
			Cycle:          decision.Cycle,
			ExistingSerial: decision.ExistingSerial,
		}
	}

	visit := Visit{
		EmpNo:            req.EmpNo,
		Category:         category,
		VisitedAt:        req.Date,
		Items:            items,
		TotalAmount:      total,
		CycleNumber:      decision.Cycle.Number,
		MonthLabel:       decision.Cycle.MonthLabel,
		VerificationCode: newVerificationCode(),
	}

	serial, err := c.visits.InsertVisit(ctx, visit)
	if err != nil {
		if errors.Is(err, ErrCycleConsumed) {
			// The gate allowed this commit moments ago: a concurrent commit
			// for the same tuple beat us to the insert.
			c.log.Warn().
				Str("event", "commit_conflict").
				Str("emp_no", req.EmpNo).
				Str("cycle", decision.Cycle.String()).
				Msg("optimistic eligibility check lost the race")
			return nil, &ConflictError{EmpNo: req.EmpNo, Cycle: decision.Cycle}
		}
		return nil, err
	}

	c.log.Info().
		Str("event", "visit_committed").
		Str("emp_no", req.EmpNo).
		Str("cycle", decision.Cycle.String()).
		Int64("serial", serial).
		Str("total", total.String()).
		Msg("treatment visit committed")

	return &Receipt{
		SerialNumber:     serial,
		VerificationCode: visit.VerificationCode,
		Cycle:            decision.Cycle,
		TotalAmount:      total.String(),
	}, nil
}

// normalizeItems filters out entries with empty names and sums the usable
// amounts. Blank or unparsable amounts contribute zero but keep the item.
func normalizeItems(inputs []LineItemInput) ([]LineItem, decimal.Decimal) {
	var items []LineItem
	total := decimal.Zero
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}
		amount := AmountOrZero(strings.TrimSpace(in.Amount))
		items = append(items, LineItem{Name: name, Amount: amount})
		total = total.Add(amount)
	}
	return items, total
}

// newVerificationCode returns an opaque token embeddable in a scannable
// image. Practically collision-free is all that is required.
func newVerificationCode() string {
	return uuid.NewString()
}
