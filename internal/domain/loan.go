package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductHome     ProductType = "HOME"
	ProductPersonal ProductType = "PERSONAL"
	ProductCar      ProductType = "CAR"
	ProductBusiness ProductType = "BUSINESS"
)

type RateType string

const (
	RateFixed    RateType = "FIXED"
	RateFloating RateType = "FLOATING"
)

type Compounding string

const (
	CompoundingDaily   Compounding = "DAILY"
	CompoundingMonthly Compounding = "MONTHLY"
)

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "ACTIVE"
	LoanStatusClosed    LoanStatus = "CLOSED"
	LoanStatusSuspended LoanStatus = "SUSPENDED"
)

type FloatingStrategy string

const (
	StrategyEMIConstant    FloatingStrategy = "EMI_CONSTANT"
	StrategyTenureConstant FloatingStrategy = "TENURE_CONSTANT"
)

type MoratoriumType string

const (
	MoratoriumFull         MoratoriumType = "FULL"
	MoratoriumInterestOnly MoratoriumType = "INTEREST_ONLY"
	MoratoriumPartial      MoratoriumType = "PARTIAL"
)

// PrepaymentMode decides whether a lump-sum payment shortens the tenure or
// reduces the EMI. Tenure shortening is the default.
type PrepaymentMode string

const (
	PrepayReduceTenure PrepaymentMode = "REDUCE_TENURE"
	PrepayReduceEMI    PrepaymentMode = "REDUCE_EMI"
)

const (
	MinTenureMonths = 1
	MaxTenureMonths = 600
)

// Loan is the aggregate root. The scalar columns mirror the current terms so
// floating-rate fan-out and status filters can run as plain queries; the full
// term snapshot including child records lives on each LoanVersion.
type Loan struct {
	ID                     uuid.UUID        `json:"id" db:"id"`
	CustomerID             string           `json:"customer_id" db:"customer_id"`
	ProductType            ProductType      `json:"product_type" db:"product_type"`
	Principal              decimal.Decimal  `json:"principal" db:"principal"`
	AnnualRate             decimal.Decimal  `json:"annual_rate" db:"annual_rate"`
	TenureMonths           int              `json:"tenure_months" db:"tenure_months"`
	IssueDate              time.Time        `json:"issue_date" db:"issue_date"`
	EMIStartDate           time.Time        `json:"emi_start_date" db:"emi_start_date"`
	RateType               RateType         `json:"rate_type" db:"rate_type"`
	Compounding            Compounding      `json:"compounding" db:"compounding"`
	Status                 LoanStatus       `json:"status" db:"status"`
	BenchmarkName          string           `json:"benchmark_name,omitempty" db:"benchmark_name"`
	Spread                 decimal.Decimal  `json:"spread" db:"spread"`
	FloatingStrategy       FloatingStrategy `json:"floating_strategy,omitempty" db:"floating_strategy"`
	ResetPeriodicityMonths int              `json:"reset_periodicity_months,omitempty" db:"reset_periodicity_months"`
	PrepaymentMode         PrepaymentMode   `json:"prepayment_mode" db:"prepayment_mode"`
	CurrentVersion         int              `json:"current_version" db:"current_version"`
	CreatedAt              time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at" db:"updated_at"`
}

// DisbursementPhase is one tranche of a phased disbursement. A phase becomes
// immutable once its disbursement date has passed.
type DisbursementPhase struct {
	Sequence    int             `json:"sequence"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// Disbursed reports whether the tranche has already been paid out as of now.
func (p DisbursementPhase) Disbursed(now time.Time) bool {
	return !p.Date.After(now)
}

// MoratoriumPeriod suspends or alters collection for a window of the
// schedule. Offsets are 1-indexed month numbers, inclusive on both ends.
type MoratoriumPeriod struct {
	StartMonth    int             `json:"start_month"`
	EndMonth      int             `json:"end_month"`
	Type          MoratoriumType  `json:"type"`
	PartialAmount decimal.Decimal `json:"partial_amount,omitempty"`
}

// Covers reports whether the 1-indexed month falls inside the window.
func (m MoratoriumPeriod) Covers(month int) bool {
	return month >= m.StartMonth && month <= m.EndMonth
}

// Overlaps reports whether two windows share any month.
func (m MoratoriumPeriod) Overlaps(other MoratoriumPeriod) bool {
	return m.StartMonth <= other.EndMonth && other.StartMonth <= m.EndMonth
}

// Charge is a fee attached to the loan. Recurring charges apply once per
// installment; one-time charges apply once at disbursement.
type Charge struct {
	ChargeType string          `json:"charge_type"`
	PayableTo  string          `json:"payable_to,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Recurring  bool            `json:"recurring"`
}

// Prepayment is a lump-sum principal reduction at a date.
type Prepayment struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description,omitempty"`
}

// LoanTerms is the complete term snapshot frozen into every LoanVersion.
type LoanTerms struct {
	CustomerID             string              `json:"customer_id"`
	ProductType            ProductType         `json:"product_type"`
	Principal              decimal.Decimal     `json:"principal"`
	AnnualRate             decimal.Decimal     `json:"annual_rate"`
	TenureMonths           int                 `json:"tenure_months"`
	IssueDate              time.Time           `json:"issue_date"`
	EMIStartDate           time.Time           `json:"emi_start_date"`
	RateType               RateType            `json:"rate_type"`
	Compounding            Compounding         `json:"compounding"`
	Status                 LoanStatus          `json:"status"`
	BenchmarkName          string              `json:"benchmark_name,omitempty"`
	Spread                 decimal.Decimal     `json:"spread"`
	FloatingStrategy       FloatingStrategy    `json:"floating_strategy,omitempty"`
	ResetPeriodicityMonths int                 `json:"reset_periodicity_months,omitempty"`
	PrepaymentMode         PrepaymentMode      `json:"prepayment_mode"`
	Phases                 []DisbursementPhase `json:"disbursement_phases,omitempty"`
	Charges                []Charge            `json:"charges,omitempty"`
	Moratoriums            []MoratoriumPeriod  `json:"moratorium_periods,omitempty"`
	Prepayments            []Prepayment        `json:"prepayments,omitempty"`
}

// TermsFromLoan lifts the loan's scalar columns into a LoanTerms snapshot.
// Child collections are carried separately by the caller.
func TermsFromLoan(loan *Loan) LoanTerms {
	return LoanTerms{
		CustomerID:             loan.CustomerID,
		ProductType:            loan.ProductType,
		Principal:              loan.Principal,
		AnnualRate:             loan.AnnualRate,
		TenureMonths:           loan.TenureMonths,
		IssueDate:              loan.IssueDate,
		EMIStartDate:           loan.EMIStartDate,
		RateType:               loan.RateType,
		Compounding:            loan.Compounding,
		Status:                 loan.Status,
		BenchmarkName:          loan.BenchmarkName,
		Spread:                 loan.Spread,
		FloatingStrategy:       loan.FloatingStrategy,
		ResetPeriodicityMonths: loan.ResetPeriodicityMonths,
		PrepaymentMode:         loan.PrepaymentMode,
	}
}

// ApplyToLoan writes the snapshot's scalar terms back onto the loan row.
func (t LoanTerms) ApplyToLoan(loan *Loan) {
	loan.CustomerID = t.CustomerID
	loan.ProductType = t.ProductType
	loan.Principal = t.Principal
	loan.AnnualRate = t.AnnualRate
	loan.TenureMonths = t.TenureMonths
	loan.IssueDate = t.IssueDate
	loan.EMIStartDate = t.EMIStartDate
	loan.RateType = t.RateType
	loan.Compounding = t.Compounding
	loan.Status = t.Status
	loan.BenchmarkName = t.BenchmarkName
	loan.Spread = t.Spread
	loan.FloatingStrategy = t.FloatingStrategy
	loan.ResetPeriodicityMonths = t.ResetPeriodicityMonths
	loan.PrepaymentMode = t.PrepaymentMode
}
