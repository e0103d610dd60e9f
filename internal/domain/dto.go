package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DTOs for requests and responses

type CreateLoanRequest struct {
	CustomerID             string          `json:"customer_id" validate:"required"`
	ProductType            string          `json:"product_type" validate:"required,oneof=HOME PERSONAL CAR BUSINESS"`
	Principal              decimal.Decimal `json:"principal" validate:"required"`
	AnnualRate             decimal.Decimal `json:"annual_rate" validate:"required"`
	TenureMonths           int             `json:"tenure_months" validate:"required,gte=1,lte=600"`
	IssueDate              time.Time       `json:"issue_date" validate:"required"`
	EMIStartDate           time.Time       `json:"emi_start_date" validate:"required"`
	RateType               string          `json:"rate_type" validate:"required,oneof=FIXED FLOATING"`
	Compounding            string          `json:"compounding" validate:"required,oneof=DAILY MONTHLY"`
	BenchmarkName          string          `json:"benchmark_name,omitempty"`
	Spread                 decimal.Decimal `json:"spread"`
	FloatingStrategy       string          `json:"floating_strategy,omitempty" validate:"omitempty,oneof=EMI_CONSTANT TENURE_CONSTANT"`
	ResetPeriodicityMonths int             `json:"reset_periodicity_months,omitempty" validate:"omitempty,gte=1"`
	PrepaymentMode         string          `json:"prepayment_mode,omitempty" validate:"omitempty,oneof=REDUCE_TENURE REDUCE_EMI"`

	Phases      []DisbursementPhaseRequest `json:"disbursement_phases,omitempty" validate:"omitempty,dive"`
	Charges     []ChargeRequest            `json:"charges,omitempty" validate:"omitempty,dive"`
	Moratoriums []MoratoriumRequest        `json:"moratorium_periods,omitempty" validate:"omitempty,dive"`
}

type EditLoanRequest struct {
	AnnualRate        *decimal.Decimal `json:"annual_rate,omitempty"`
	TenureMonths      *int             `json:"tenure_months,omitempty" validate:"omitempty,gte=1,lte=600"`
	Spread            *decimal.Decimal `json:"spread,omitempty"`
	BenchmarkName     *string          `json:"benchmark_name,omitempty"`
	FloatingStrategy  *string          `json:"floating_strategy,omitempty" validate:"omitempty,oneof=EMI_CONSTANT TENURE_CONSTANT"`
	Status            *string          `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE CLOSED SUSPENDED"`
	ChangeReason      string           `json:"change_reason" validate:"required"`
	ChangeDescription string           `json:"change_description,omitempty"`
	EffectiveFrom     *time.Time       `json:"effective_from,omitempty"`
}

type DisbursementPhaseRequest struct {
	Sequence    int             `json:"sequence" validate:"required,gte=1"`
	Date        time.Time       `json:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description,omitempty"`
}

type ChargeRequest struct {
	ChargeType string          `json:"charge_type" validate:"required"`
	PayableTo  string          `json:"payable_to,omitempty"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Recurring  bool            `json:"recurring"`
}

type MoratoriumRequest struct {
	StartMonth    int             `json:"start_month" validate:"required,gte=1"`
	EndMonth      int             `json:"end_month" validate:"required,gte=1"`
	Type          string          `json:"type" validate:"required,oneof=FULL INTEREST_ONLY PARTIAL"`
	PartialAmount decimal.Decimal `json:"partial_amount,omitempty"`
}

type PrepaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Date        time.Time       `json:"date" validate:"required"`
	Description string          `json:"description,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

type AddBenchmarkRateRequest struct {
	Rate          decimal.Decimal `json:"rate" validate:"required"`
	EffectiveDate time.Time       `json:"effective_date" validate:"required"`
}

type AddBenchmarkRateResponse struct {
	Benchmark *Benchmark    `json:"benchmark"`
	Resets    []ResetResult `json:"resets"`
}

type CreateLoanResponse struct {
	Loan    *Loan        `json:"loan"`
	Version *LoanVersion `json:"version"`
}

func (r DisbursementPhaseRequest) ToDomain() DisbursementPhase {
	return DisbursementPhase{
		Sequence:    r.Sequence,
		Date:        r.Date,
		Amount:      r.Amount,
		Description: r.Description,
	}
}

func (r ChargeRequest) ToDomain() Charge {
	return Charge{
		ChargeType: r.ChargeType,
		PayableTo:  r.PayableTo,
		Amount:     r.Amount,
		Recurring:  r.Recurring,
	}
}

func (r MoratoriumRequest) ToDomain() MoratoriumPeriod {
	return MoratoriumPeriod{
		StartMonth:    r.StartMonth,
		EndMonth:      r.EndMonth,
		Type:          MoratoriumType(r.Type),
		PartialAmount: r.PartialAmount,
	}
}
