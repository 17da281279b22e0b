/*
Package entitlement contains the benefit cycle entitlement engine.

PURPOSE:
  This package decides whether an employee may record a new treatment visit
  in a given half-month window, and computes how much of the employee's
  annual medical allowance remains. Everything else in the clinic system
  (registration, card printing, dashboards) consumes this engine through
  narrow contracts and owns no entitlement decisions of its own.

KEY CONCEPTS IN THIS FILE (types.go):
  - Visit: An immutable record of one committed treatment visit
  - LineItem: One (name, amount) pair inside a visit, at most ten per visit
  - Category: The fixed set of visit kinds (medicine, laboratory, ...)
  - Policy: Per-employee annual limit with a system default fallback
  - Balance: Derived spendable state, never stored

DESIGN PRINCIPLES:
  1. Ledger-derived balances: spendable balance is always computed from
     committed visits, never kept as a counter that can drift
  2. Precision: decimal.Decimal for every currency amount, never float
  3. Immutability: a committed Visit is never modified
  4. One consumption per cycle: (EmpNo, MonthLabel, CycleNumber) is unique

SEE ALSO:
  - cycle.go: Half-month cycle calculation
  - gate.go: Eligibility check (optimistic fast path)
  - coordinator.go: Atomic visit commit
  - ledger.go: Spent/remaining aggregation
  - projector.go: Card-facing balance projection
*/
package entitlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VISIT CATEGORY - Fixed set of treatment kinds
// =============================================================================

type Category string

const (
	CategoryMedicine   Category = "medicine"
	CategoryLaboratory Category = "laboratory"
	CategoryHospital   Category = "hospital"
	CategoryNoteSheet  Category = "notesheet"
)

// ParseCategory returns the Category for s, or false if s is not one of the
// fixed set. Matching is exact; the HTTP layer lowercases its input.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryMedicine, CategoryLaboratory, CategoryHospital, CategoryNoteSheet:
		return Category(s), true
	}
	return "", false
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// MaxLineItems is the most line items a single visit may carry.
const MaxLineItems = 10

// LineItem is one priced entry inside a committed visit.
type LineItem struct {
	Name   string
	Amount decimal.Decimal
}

// LineItemInput is a raw (name, amount) pair as submitted by a caller.
// Amounts arrive as strings from form fields; AmountOrZero normalizes them.
type LineItemInput struct {
	Name   string
	Amount string
}

// AmountOrZero parses a currency amount string. Empty or non-numeric values
// contribute zero rather than failing the whole visit.
func AmountOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// VISIT - The ledger's unit of truth
// =============================================================================

// Visit is a committed treatment visit. Once committed it is immutable;
// SerialNumber is assigned by the store at insert time and never reused.
//
// INVARIANT: no two committed visits share (EmpNo, MonthLabel, CycleNumber).
type Visit struct {
	SerialNumber     int64
	EmpNo            string
	Category         Category
	VisitedAt        time.Time
	Items            []LineItem
	TotalAmount      decimal.Decimal
	CycleNumber      int
	MonthLabel       string
	VerificationCode string
	CreatedAt        time.Time
}

// =============================================================================
// EMPLOYEE - Read-only enrichment data
// =============================================================================

// Employee is created by the registration surface and read-only here.
// It is used only to enrich returned data, never to gate eligibility.
type Employee struct {
	EmpNo       string
	Name        string
	BookNumber  string
	PatientType string
	NationalID  string
	CreatedAt   time.Time
}

// =============================================================================
// POLICY AND BALANCE
// =============================================================================

// DefaultAnnualLimit applies when no policy is configured for an employee.
// Missing policy is a fallback, never an error.
var DefaultAnnualLimit = decimal.NewFromInt(100000)

// Policy is the per-employee annual allowance. Mutated only by the
// administrative card-issuance surface.
type Policy struct {
	EmpNo       string
	AnnualLimit decimal.Decimal
	UpdatedAt   time.Time
}

// Balance is derived state: Remaining = Limit - Spent. It may be negative;
// an over-limit employee is valid data, not an error.
type Balance struct {
	Limit     decimal.Decimal
	Spent     decimal.Decimal
	Remaining decimal.Decimal
}
