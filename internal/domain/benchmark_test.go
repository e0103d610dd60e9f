package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBenchmarkName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"mclr 1y", "MCLR_1Y"},
		{"MCLR_1Y", "MCLR_1Y"},
		{"  repo-rate  ", "REPO_RATE"},
		{"t bill  91d", "T_BILL_91D"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeBenchmarkName(tt.in))
	}
}

func TestValidBenchmarkName(t *testing.T) {
	assert.True(t, ValidBenchmarkName("MCLR_1Y"))
	assert.True(t, ValidBenchmarkName("SOFR"))
	assert.False(t, ValidBenchmarkName(""))
	assert.False(t, ValidBenchmarkName("mclr"))
	assert.False(t, ValidBenchmarkName("MCLR 1Y"))
	assert.False(t, ValidBenchmarkName("MCLR-1Y"))
}

func TestBenchmarkCurrent(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2025, time.July, d, 0, 0, 0, 0, time.UTC)
	}
	b := &Benchmark{
		Name: "MCLR_1Y",
		History: []BenchmarkRate{
			{Rate: decimal.NewFromFloat(11.5), EffectiveDate: day(20)},
			{Rate: decimal.NewFromInt(11), EffectiveDate: day(10)},
			{Rate: decimal.NewFromInt(10), EffectiveDate: day(1)},
		},
	}

	got, ok := b.Current(day(15))
	require.True(t, ok)
	assert.True(t, got.Rate.Equal(decimal.NewFromInt(11)))

	got, ok = b.Current(day(20))
	require.True(t, ok)
	assert.True(t, got.Rate.Equal(decimal.NewFromFloat(11.5)))

	// Nothing effective before the first entry.
	_, ok = b.Current(time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestNormalizeChangeReason(t *testing.T) {
	assert.Equal(t, ReasonRateModification, NormalizeChangeReason("rate_modification"))
	assert.Equal(t, ReasonBenchmarkChange, NormalizeChangeReason(" BENCHMARK_CHANGE "))
	assert.Equal(t, ReasonCustomerRequest, NormalizeChangeReason("CUSTOMER_REQUEST"))
	// Anything unrecognized records as a manual correction.
	assert.Equal(t, ReasonManualCorrection, NormalizeChangeReason("typo fix"))
	assert.Equal(t, ReasonManualCorrection, NormalizeChangeReason(""))
}
