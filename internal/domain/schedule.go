package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentRegular            PaymentType = "REGULAR"
	PaymentPreEMI             PaymentType = "PRE_EMI"
	PaymentMoratoriumFull     PaymentType = "MORATORIUM_FULL"
	PaymentMoratoriumInterest PaymentType = "MORATORIUM_INTEREST"
	PaymentMoratoriumPartial  PaymentType = "MORATORIUM_PARTIAL"
)

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentDue     InstallmentStatus = "DUE"
	InstallmentPaid    InstallmentStatus = "PAID"
)

// Installment is one due-month row of a repayment schedule.
type Installment struct {
	MonthNumber    int               `json:"month_number" db:"month_number"`
	DueDate        time.Time         `json:"due_date" db:"due_date"`
	EMI            decimal.Decimal   `json:"emi" db:"emi"`
	Principal      decimal.Decimal   `json:"principal" db:"principal"`
	Interest       decimal.Decimal   `json:"interest" db:"interest"`
	ClosingBalance decimal.Decimal   `json:"closing_balance" db:"closing_balance"`
	AnnualRate     decimal.Decimal   `json:"annual_rate" db:"annual_rate"`
	PaymentType    PaymentType       `json:"payment_type" db:"payment_type"`
	Status         InstallmentStatus `json:"status" db:"status"`
}

// BrokenPeriodInterest is the simple interest accrued between the loan issue
// date and the EMI start date. Short gaps fold into the first EMI.
type BrokenPeriodInterest struct {
	FromDate        time.Time       `json:"from_date"`
	ToDate          time.Time       `json:"to_date"`
	Days            int             `json:"days"`
	Amount          decimal.Decimal `json:"amount"`
	AddedToFirstEMI bool            `json:"added_to_first_emi"`
}

// RepaymentSchedule is the ordered installment sequence plus the aggregates
// disclosed on the KFS.
type RepaymentSchedule struct {
	Installments []Installment `json:"installments"`

	EMI              decimal.Decimal       `json:"emi"`
	TotalPayable     decimal.Decimal       `json:"total_payable"`
	TotalInterest    decimal.Decimal       `json:"total_interest"`
	APR              decimal.Decimal       `json:"apr"`
	CurrentRate      decimal.Decimal       `json:"current_rate"`
	MonthsRemaining  int                   `json:"months_remaining"`
	PrincipalBalance decimal.Decimal       `json:"principal_balance"`
	SnapshotDate     time.Time             `json:"snapshot_date"`
	BPI              *BrokenPeriodInterest `json:"broken_period_interest,omitempty"`
}

// OutstandingAt returns the principal balance as of a date: the closing
// balance of the last installment due on or before it, or the full
// starting balance when no installment has fallen due yet.
func (s *RepaymentSchedule) OutstandingAt(date time.Time) decimal.Decimal {
	balance := s.PrincipalBalance
	for _, row := range s.Installments {
		if row.DueDate.After(date) {
			break
		}
		balance = row.ClosingBalance
	}
	return balance
}

// MonthAt returns the 1-indexed installment month containing the date, or 0
// when the date precedes the first due date.
func (s *RepaymentSchedule) MonthAt(date time.Time) int {
	month := 0
	for _, row := range s.Installments {
		if row.DueDate.After(date) {
			break
		}
		month = row.MonthNumber
	}
	return month
}

// TotalInterestPaid sums the interest components of all installments.
func (s *RepaymentSchedule) TotalInterestPaid() decimal.Decimal {
	total := decimal.Zero
	for _, row := range s.Installments {
		total = total.Add(row.Interest)
	}
	return total
}
