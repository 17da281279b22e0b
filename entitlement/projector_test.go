package entitlement_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinix/benefit-engine/entitlement"
	"github.com/clinix/benefit-engine/entitlement/store"
)

// =============================================================================
// PROJECTOR TESTS
// =============================================================================

func newTestProjector(mem *store.Memory) *entitlement.Projector {
	ledger := entitlement.NewLedger(mem, mem)
	return entitlement.NewProjector(ledger, mem, mem)
}

func TestProject_ComposesLedgerAndRecentVisits(t *testing.T) {
	// GIVEN: Two committed visits and a registered employee
	// WHEN: Projecting the balance
	// THEN: Limit/spent/remaining match the ledger and visits come newest first

	mem := store.NewMemory()
	mem.PutEmployee(entitlement.Employee{EmpNo: "E1", Name: "Ayesha Khan", BookNumber: "B-17"})
	ctx := context.Background()

	_, err := mem.InsertVisit(ctx, committedVisit("E1", time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)
	_, err = mem.InsertVisit(ctx, committedVisit("E1", time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC), "60"))
	require.NoError(t, err)

	proj, err := newTestProjector(mem).Project(ctx, "E1", 10)
	require.NoError(t, err)

	assert.True(t, proj.Balance.Spent.Equal(decimal.NewFromInt(160)))
	assert.True(t, proj.Balance.Remaining.Equal(entitlement.DefaultAnnualLimit.Sub(decimal.NewFromInt(160))))
	require.NotNil(t, proj.Employee)
	assert.Equal(t, "Ayesha Khan", proj.Employee.Name)

	require.Len(t, proj.RecentVisits, 2)
	assert.True(t, proj.RecentVisits[0].VisitedAt.After(proj.RecentVisits[1].VisitedAt),
		"recent visits must be newest first")
}

func TestProject_CapsRecentVisits(t *testing.T) {
	// Twelve months of visits, but the projection carries at most ten.
	mem := store.NewMemory()
	ctx := context.Background()

	for month := 1; month <= 12; month++ {
		date := time.Date(2025, time.Month(month), 5, 0, 0, 0, 0, time.UTC)
		v := committedVisit("E1", date, "10")
		v.VerificationCode = fmt.Sprintf("code-%d", month)
		_, err := mem.InsertVisit(ctx, v)
		require.NoError(t, err)
	}

	proj, err := newTestProjector(mem).Project(ctx, "E1", 0)
	require.NoError(t, err)
	assert.Len(t, proj.RecentVisits, entitlement.MaxRecentVisits)

	proj, err = newTestProjector(mem).Project(ctx, "E1", 3)
	require.NoError(t, err)
	assert.Len(t, proj.RecentVisits, 3)
}

func TestProject_UnknownEmployee_StillProjects(t *testing.T) {
	// The directory is enrichment only: no employee record means a nil
	// Employee, a default limit and an empty history, never an error.
	mem := store.NewMemory()

	proj, err := newTestProjector(mem).Project(context.Background(), "ghost", 10)
	require.NoError(t, err)

	assert.Nil(t, proj.Employee)
	assert.True(t, proj.Balance.Spent.IsZero())
	assert.Empty(t, proj.RecentVisits)
}
