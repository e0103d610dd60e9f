package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		months   int
		expected time.Time
	}{
		{
			name:     "plain month step",
			start:    time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "jan 31 clamps to feb 28",
			start:    time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "leap year keeps feb 29",
			start:    time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "year rollover",
			start:    time.Date(2025, time.November, 5, 0, 0, 0, 0, time.UTC),
			months:   3,
			expected: time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "many months at once",
			start:    time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC),
			months:   239,
			expected: time.Date(2044, time.December, 5, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddMonths(tt.start, tt.months))
		})
	}
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28, DaysInMonth(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 29, DaysInMonth(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 30, DaysInMonth(time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC)))
}

func TestMonthsBetween(t *testing.T) {
	jan5 := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, MonthsBetween(jan5, jan5))
	assert.Equal(t, 1, MonthsBetween(jan5, time.Date(2025, time.February, 5, 0, 0, 0, 0, time.UTC)))
	// A day short of the anniversary does not count as a whole month.
	assert.Equal(t, 0, MonthsBetween(jan5, time.Date(2025, time.February, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 12, MonthsBetween(jan5, time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)))
	// Reversed order clamps to zero.
	assert.Equal(t, 0, MonthsBetween(jan5, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRoundMoney(t *testing.T) {
	assert.True(t, RoundMoney(decimal.NewFromFloat(10.005)).Equal(decimal.NewFromFloat(10.01)))
	assert.True(t, RoundMoney(decimal.NewFromFloat(10.004)).Equal(decimal.NewFromFloat(10.0)))
	assert.True(t, RoundMoney(decimal.NewFromInt(10)).Equal(decimal.NewFromInt(10)))
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2025, time.June, 15, 13, 45, 12, 0, time.FixedZone("IST", 5*3600+1800))
	got := DateOnly(ts)
	assert.Equal(t, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestSameDate(t *testing.T) {
	a := time.Date(2025, time.June, 15, 1, 0, 0, 0, time.UTC)
	b := time.Date(2025, time.June, 15, 23, 59, 0, 0, time.UTC)
	c := time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDate(a, b))
	assert.False(t, SameDate(a, c))
}
