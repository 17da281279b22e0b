package entitlement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinix/benefit-engine/entitlement"
)

// =============================================================================
// CYCLE PARTITION TESTS
// =============================================================================

func TestCycleOf_HalfMonthBoundary(t *testing.T) {
	// Day 1-15 is cycle 1, day 16 onward is cycle 2, for every month length.
	tests := []struct {
		name       string
		date       time.Time
		wantNumber int
		wantLabel  string
	}{
		{"first of month", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 1, "Mar-2025"},
		{"mid cycle 1", time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), 1, "Mar-2025"},
		{"day 15 is still cycle 1", time.Date(2025, time.March, 15, 23, 59, 59, 0, time.UTC), 1, "Mar-2025"},
		{"day 16 opens cycle 2", time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC), 2, "Mar-2025"},
		{"end of 31-day month", time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), 2, "Mar-2025"},
		{"end of 30-day month", time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC), 2, "Apr-2025"},
		{"end of february", time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), 2, "Feb-2025"},
		{"leap day", time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), 2, "Feb-2024"},
		{"new year's eve", time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), 2, "Dec-2024"},
		{"new year's day", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 1, "Jan-2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := entitlement.CycleOf(tt.date)
			assert.Equal(t, tt.wantNumber, c.Number)
			assert.Equal(t, tt.wantLabel, c.MonthLabel)
		})
	}
}

func TestCycleOf_EveryDayOfYear(t *testing.T) {
	// Sweep a leap year: the cycle number must always be 1 or 2, and must
	// equal 1 exactly when the day of month is <= 15.
	day := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for day.Year() == 2024 {
		c := entitlement.CycleOf(day)
		assert.Contains(t, []int{1, 2}, c.Number, "date %s", day)
		if day.Day() <= 15 {
			assert.Equal(t, 1, c.Number, "date %s", day)
		} else {
			assert.Equal(t, 2, c.Number, "date %s", day)
		}
		assert.Equal(t, day.Format("Jan-2006"), c.MonthLabel, "date %s", day)
		day = day.AddDate(0, 0, 1)
	}
}

func TestCycleOf_MonthLabelSeparatesYears(t *testing.T) {
	// The same month in different years must never share a partition key.
	dec24 := entitlement.CycleOf(time.Date(2024, time.December, 5, 0, 0, 0, 0, time.UTC))
	dec25 := entitlement.CycleOf(time.Date(2025, time.December, 5, 0, 0, 0, 0, time.UTC))
	assert.NotEqual(t, dec24.MonthLabel, dec25.MonthLabel)
}
