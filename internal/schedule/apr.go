package schedule

import (
	"github.com/shopspring/decimal"

	"github.com/mybank/loan-engine/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	aprCap  = decimal.NewFromFloat(9999.9999)
)

// APR expresses the effective cost of borrowing:
// ((total fees + total interest) / principal / months) * 100 + nominal rate.
// Recurring charges count once per installment, one-time charges once.
// Falls back to the nominal rate when the inputs degenerate.
func APR(principal, annualRate decimal.Decimal, months int, totalInterest decimal.Decimal, charges []domain.Charge) decimal.Decimal {
	if principal.Sign() <= 0 || months <= 0 {
		return annualRate.Round(4)
	}

	monthsDec := decimal.NewFromInt(int64(months))
	fees := decimal.Zero
	for _, c := range charges {
		if c.Recurring {
			fees = fees.Add(c.Amount.Mul(monthsDec))
		} else {
			fees = fees.Add(c.Amount)
		}
	}

	feeAndInterestRate := fees.Add(totalInterest).Div(principal).Div(monthsDec).Mul(hundred)
	apr := feeAndInterestRate.Add(annualRate).Round(4)

	if apr.GreaterThan(aprCap) {
		return annualRate.Round(4)
	}
	return apr
}
