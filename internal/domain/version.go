package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChangeReason string

const (
	ReasonInitialCreation    ChangeReason = "INITIAL_CREATION"
	ReasonRateModification   ChangeReason = "RATE_MODIFICATION"
	ReasonSpreadModification ChangeReason = "SPREAD_MODIFICATION"
	ReasonTermModification   ChangeReason = "TERM_MODIFICATION"
	ReasonBenchmarkChange    ChangeReason = "BENCHMARK_CHANGE"
	ReasonManualCorrection   ChangeReason = "MANUAL_CORRECTION"
	ReasonRegulatoryChange   ChangeReason = "REGULATORY_CHANGE"
	ReasonCustomerRequest    ChangeReason = "CUSTOMER_REQUEST"
)

// NormalizeChangeReason maps free-text input onto the closed reason set.
// Unrecognized input falls back to MANUAL_CORRECTION.
func NormalizeChangeReason(s string) ChangeReason {
	switch ChangeReason(strings.ToUpper(strings.TrimSpace(s))) {
	case ReasonInitialCreation:
		return ReasonInitialCreation
	case ReasonRateModification:
		return ReasonRateModification
	case ReasonSpreadModification:
		return ReasonSpreadModification
	case ReasonTermModification:
		return ReasonTermModification
	case ReasonBenchmarkChange:
		return ReasonBenchmarkChange
	case ReasonRegulatoryChange:
		return ReasonRegulatoryChange
	case ReasonCustomerRequest:
		return ReasonCustomerRequest
	default:
		return ReasonManualCorrection
	}
}

// KFSSnapshot is the Key Facts Statement frozen alongside every version:
// the regulatory disclosure of the loan's terms and cost at that point.
type KFSSnapshot struct {
	LoanID        uuid.UUID       `json:"loan_id"`
	VersionNumber int             `json:"version_number"`
	ProductType   ProductType     `json:"product_type"`
	Principal     decimal.Decimal `json:"principal"`
	AnnualRate    decimal.Decimal `json:"annual_rate"`
	RateType      RateType        `json:"rate_type"`
	TenureMonths  int             `json:"tenure_months"`
	BenchmarkName string          `json:"benchmark_name,omitempty"`
	Spread        decimal.Decimal `json:"spread"`
	EMI           decimal.Decimal `json:"emi"`
	APR           decimal.Decimal `json:"apr"`
	TotalPayable  decimal.Decimal `json:"total_payable"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	Charges       []Charge        `json:"charges,omitempty"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// LoanVersion is an immutable record of the loan at one point in its
// history: the terms, the regenerated schedule and the KFS snapshot.
// Versions are append-only; mutations repoint "current" instead of editing.
type LoanVersion struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	LoanID            uuid.UUID    `json:"loan_id" db:"loan_id"`
	VersionNumber     int          `json:"version_number" db:"version_number"`
	ChangeReason      ChangeReason `json:"change_reason" db:"change_reason"`
	ChangeDescription string       `json:"change_description" db:"change_description"`
	EffectiveFrom     time.Time    `json:"effective_from" db:"effective_from"`
	IsCurrent         bool         `json:"is_current" db:"is_current"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`

	Terms    LoanTerms          `json:"terms"`
	Schedule *RepaymentSchedule `json:"schedule,omitempty"`
	KFS      *KFSSnapshot       `json:"kfs,omitempty"`
}
