package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var benchmarkNamePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// NormalizeBenchmarkName canonicalizes a benchmark name to
// uppercase-with-underscores form ("mclr 6m" -> "MCLR_6M").
func NormalizeBenchmarkName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "_")
	return strings.ReplaceAll(name, "-", "_")
}

// ValidBenchmarkName reports whether a canonical name is well formed.
func ValidBenchmarkName(name string) bool {
	return name != "" && benchmarkNamePattern.MatchString(name)
}

// BenchmarkRate is one entry in a benchmark's effective-date history.
type BenchmarkRate struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	BenchmarkName string          `json:"benchmark_name" db:"benchmark_name"`
	Rate          decimal.Decimal `json:"rate" db:"rate"`
	EffectiveDate time.Time       `json:"effective_date" db:"effective_date"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Benchmark is a named reference rate with its ordered history, newest
// effective date first. Ties on effective date resolve to the latest
// created entry.
type Benchmark struct {
	Name    string          `json:"name"`
	History []BenchmarkRate `json:"history"`
}

// Current returns the entry governing asOf, or false when none is effective
// yet.
func (b *Benchmark) Current(asOf time.Time) (BenchmarkRate, bool) {
	for _, r := range b.History {
		if !r.EffectiveDate.After(asOf) {
			return r, true
		}
	}
	return BenchmarkRate{}, false
}

// ResetOutcome describes a single per-loan result of a benchmark fan-out.
type ResetOutcome string

const (
	ResetApplied        ResetOutcome = "APPLIED"
	ResetAlreadyApplied ResetOutcome = "ALREADY_APPLIED"
	ResetFailed         ResetOutcome = "FAILED"
)

// ResetResult reports one loan's outcome in a benchmark rate fan-out.
// Failures carry their error without blocking other loans.
type ResetResult struct {
	LoanID        uuid.UUID       `json:"loan_id"`
	Outcome       ResetOutcome    `json:"outcome"`
	VersionNumber int             `json:"version_number,omitempty"`
	EffectiveRate decimal.Decimal `json:"effective_rate,omitempty"`
	Error         string          `json:"error,omitempty"`
}
