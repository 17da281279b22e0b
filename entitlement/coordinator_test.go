package entitlement_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinix/benefit-engine/entitlement"
	"github.com/clinix/benefit-engine/entitlement/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestCoordinator(t *testing.T) (*entitlement.Coordinator, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	gate := entitlement.NewGate(mem)
	return entitlement.NewCoordinator(mem, gate, zerolog.Nop()), mem
}

func commitReq(empNo, date string, items ...entitlement.LineItemInput) entitlement.CommitRequest {
	d, _ := time.Parse("2006-01-02", date)
	return entitlement.CommitRequest{
		EmpNo:    empNo,
		Category: "medicine",
		Items:    items,
		Date:     d,
	}
}

// =============================================================================
// COMMIT FLOW TESTS
// =============================================================================

func TestCommit_FirstVisit_Succeeds(t *testing.T) {
	// GIVEN: Employee E1 with no prior visits
	// WHEN: Committing [("Panadol", 100)] on 2025-03-10
	// THEN: Receipt with serial and code, cycle (1, "Mar-2025"), spent == 100

	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	receipt, err := coord.Commit(ctx, commitReq("E1", "2025-03-10",
		entitlement.LineItemInput{Name: "Panadol", Amount: "100"}))
	require.NoError(t, err)

	assert.Equal(t, int64(1), receipt.SerialNumber)
	assert.NotEmpty(t, receipt.VerificationCode)
	assert.Equal(t, 1, receipt.Cycle.Number)
	assert.Equal(t, "Mar-2025", receipt.Cycle.MonthLabel)
	assert.Equal(t, "100", receipt.TotalAmount)

	spent, err := mem.SpentTotal(ctx, "E1")
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.NewFromInt(100)))
}

func TestCommit_SameCycle_Rejected(t *testing.T) {
	// GIVEN: E1 committed on March 10 (cycle 1)
	// WHEN: Committing again on March 12 (still cycle 1)
	// THEN: CycleExhaustedError, no second record

	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Commit(ctx, commitReq("E1", "2025-03-10",
		entitlement.LineItemInput{Name: "Panadol", Amount: "100"}))
	require.NoError(t, err)

	_, err = coord.Commit(ctx, commitReq("E1", "2025-03-12",
		entitlement.LineItemInput{Name: "Brufen", Amount: "40"}))

	var exhausted *entitlement.CycleExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.True(t, errors.Is(err, entitlement.ErrCycleConsumed))
	assert.Equal(t, int64(1), exhausted.ExistingSerial)

	spent, err := mem.SpentTotal(ctx, "E1")
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.NewFromInt(100)), "rejected commit must write nothing")
}

func TestCommit_NextCycle_AccumulatesSpend(t *testing.T) {
	// GIVEN: E1 committed 100 in cycle 1 of March
	// WHEN: Committing 60 on March 20 (cycle 2)
	// THEN: Allowed; spent == 160

	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Commit(ctx, commitReq("E1", "2025-03-10",
		entitlement.LineItemInput{Name: "Panadol", Amount: "100"}))
	require.NoError(t, err)

	receipt, err := coord.Commit(ctx, commitReq("E1", "2025-03-20",
		entitlement.LineItemInput{Name: "Lab panel", Amount: "60"}))
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Cycle.Number)

	spent, err := mem.SpentTotal(ctx, "E1")
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.NewFromInt(160)))
}

func TestCommit_SerialNumbersAreMonotonic(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	ctx := context.Background()

	first, err := coord.Commit(ctx, commitReq("E1", "2025-03-10",
		entitlement.LineItemInput{Name: "A", Amount: "1"}))
	require.NoError(t, err)
	second, err := coord.Commit(ctx, commitReq("E2", "2025-03-10",
		entitlement.LineItemInput{Name: "B", Amount: "2"}))
	require.NoError(t, err)

	assert.Greater(t, second.SerialNumber, first.SerialNumber)
	assert.NotEqual(t, first.VerificationCode, second.VerificationCode)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestCommit_NoItems_Rejected(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	_, err := coord.Commit(context.Background(), commitReq("E1", "2025-03-10"))

	var validation *entitlement.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "items", validation.Field)
}

func TestCommit_OnlyEmptyNames_Rejected(t *testing.T) {
	// Entries without a name are dropped; if nothing usable remains the
	// visit is rejected, not committed empty.
	coord, _ := newTestCoordinator(t)

	_, err := coord.Commit(context.Background(), commitReq("E1", "2025-03-10",
		entitlement.LineItemInput{Name: "", Amount: "100"},
		entitlement.LineItemInput{Name: "   ", Amount: "50"}))

	var validation *entitlement.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "items", validation.Field)
}

func TestCommit_BlankAndMalformedAmounts_ContributeZero(t *testing.T) {
	// GIVEN: Items with an empty amount and a non-numeric amount
	// WHEN: Committing
	// THEN: Those items survive at zero; total counts only parsable amounts

	coord, _ := newTestCoordinator(t)

	receipt, err := coord.Commit(context.Background(), commitReq("E1", "2025-03-10",
		entitlement.LineItemInput{Name: "Panadol", Amount: "100.50"},
		entitlement.LineItemInput{Name: "Dressing", Amount: ""},
		entitlement.LineItemInput{Name: "Syrup", Amount: "abc"}))
	require.NoError(t, err)

	assert.Equal(t, "100.5", receipt.TotalAmount)
}

func TestCommit_TooManyItems_Rejected(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	items := make([]entitlement.LineItemInput, 11)
	for i := range items {
		items[i] = entitlement.LineItemInput{Name: "item", Amount: "1"}
	}

	_, err := coord.Commit(context.Background(), commitReq("E1", "2025-03-10", items...))

	var validation *entitlement.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "items", validation.Field)
}

func TestCommit_UnknownCategory_Rejected(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	req := commitReq("E1", "2025-03-10", entitlement.LineItemInput{Name: "A", Amount: "1"})
	req.Category = "surgery"

	_, err := coord.Commit(context.Background(), req)

	var validation *entitlement.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "category", validation.Field)
}

func TestCommit_CategoryIsCaseInsensitive(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	req := commitReq("E1", "2025-03-10", entitlement.LineItemInput{Name: "A", Amount: "1"})
	req.Category = "Laboratory"

	_, err := coord.Commit(context.Background(), req)
	assert.NoError(t, err)
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

// staleGateStore makes the optimistic gate blind: FindByCycle always reports
// an open cycle, so the store constraint alone must reject the second commit.
type staleGateStore struct {
	*store.Memory
}

func (s *staleGateStore) FindByCycle(ctx context.Context, empNo, monthLabel string, cycleNumber int) (*entitlement.Visit, error) {
	return nil, nil
}

func TestCommit_GateAllowedButInsertLostRace_Conflict(t *testing.T) {
	// GIVEN: A gate whose read is stale (cycle looks open)
	// WHEN: Committing into a tuple another commit already occupies
	// THEN: ConflictError - same sentinel as cycle exhaustion, distinct type

	stale := &staleGateStore{Memory: store.NewMemory()}
	gate := entitlement.NewGate(stale)
	coord := entitlement.NewCoordinator(stale, gate, zerolog.Nop())
	ctx := context.Background()

	_, err := coord.Commit(ctx, commitReq("E3", "2025-04-02",
		entitlement.LineItemInput{Name: "First", Amount: "10"}))
	require.NoError(t, err)

	_, err = coord.Commit(ctx, commitReq("E3", "2025-04-02",
		entitlement.LineItemInput{Name: "Second", Amount: "20"}))

	var conflict *entitlement.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, errors.Is(err, entitlement.ErrCycleConsumed))

	var exhausted *entitlement.CycleExhaustedError
	assert.False(t, errors.As(err, &exhausted), "a lost race is not a gate rejection")
}

func TestCommit_ConcurrentSameCycle_ExactlyOneWins(t *testing.T) {
	// GIVEN: Many simultaneous commits for E3 on 2025-04-02 (cycle 1)
	// WHEN: All run concurrently
	// THEN: Exactly one receives a serial number; the rest are rejected
	//       with a cycle/conflict outcome, and only one record exists

	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := coord.Commit(ctx, commitReq("E3", "2025-04-02",
				entitlement.LineItemInput{Name: "item", Amount: "10"}))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, rejections int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.True(t, errors.Is(err, entitlement.ErrCycleConsumed), "unexpected error: %v", err)
		rejections++
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, rejections)

	spent, err := mem.SpentTotal(ctx, "E3")
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.NewFromInt(10)), "only the winner's amount counts")
}
