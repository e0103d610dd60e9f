package schedule

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mybank/loan-engine/internal/domain"
	customError "github.com/mybank/loan-engine/pkg/errors"
)

// Timeline is the resolved per-month view of disbursement tranches and
// moratorium windows that the generator consumes. Construct it through
// Resolve; invalid inputs fail there, never silently corrected.
type Timeline struct {
	principal   decimal.Decimal
	phases      []domain.DisbursementPhase
	moratoriums []domain.MoratoriumPeriod
}

// Resolve validates disbursement phases and moratorium periods against the
// loan's principal and tenure and returns the resolved timeline.
func Resolve(principal decimal.Decimal, tenureMonths int, phases []domain.DisbursementPhase, moratoriums []domain.MoratoriumPeriod) (*Timeline, error) {
	if principal.Sign() <= 0 {
		return nil, customError.WrapValidation("principal must be positive")
	}
	if tenureMonths < domain.MinTenureMonths || tenureMonths > domain.MaxTenureMonths {
		return nil, customError.WrapValidationf("tenure must be between %d and %d months, got %d",
			domain.MinTenureMonths, domain.MaxTenureMonths, tenureMonths)
	}

	if len(phases) > 0 {
		sorted := make([]domain.DisbursementPhase, len(phases))
		copy(sorted, phases)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

		total := decimal.Zero
		for i, p := range sorted {
			if p.Sequence != i+1 {
				return nil, customError.WrapValidationf("disbursement sequence numbers must be contiguous starting at 1, got %d at position %d", p.Sequence, i+1)
			}
			if p.Amount.Sign() <= 0 {
				return nil, customError.WrapValidationf("disbursement phase %d amount must be positive", p.Sequence)
			}
			if i > 0 && p.Date.Before(sorted[i-1].Date) {
				return nil, customError.WrapValidationf("disbursement phase %d dated before phase %d", p.Sequence, sorted[i-1].Sequence)
			}
			total = total.Add(p.Amount)
		}
		if !total.Equal(principal) {
			return nil, customError.WrapValidationf("sum of disbursement phases %s does not equal principal %s", total, principal)
		}
		phases = sorted
	}

	if len(moratoriums) > 0 {
		sorted := make([]domain.MoratoriumPeriod, len(moratoriums))
		copy(sorted, moratoriums)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMonth < sorted[j].StartMonth })

		for i, m := range sorted {
			if m.StartMonth < 1 || m.EndMonth < m.StartMonth {
				return nil, customError.WrapValidationf("moratorium months %d-%d are not a valid 1-indexed window", m.StartMonth, m.EndMonth)
			}
			if m.EndMonth >= tenureMonths {
				// The final month must be a collecting installment or the
				// balance can never close within the tenure.
				return nil, customError.WrapValidationf("moratorium through month %d leaves no closing installment within a tenure of %d months", m.EndMonth, tenureMonths)
			}
			if m.Type == domain.MoratoriumPartial && m.PartialAmount.Sign() <= 0 {
				return nil, customError.WrapValidation("partial moratorium requires a positive partial payment amount")
			}
			if i > 0 && sorted[i-1].Overlaps(m) {
				return nil, customError.WrapValidationf("moratorium %d-%d overlaps %d-%d",
					sorted[i-1].StartMonth, sorted[i-1].EndMonth, m.StartMonth, m.EndMonth)
			}
		}
		moratoriums = sorted
	}

	return &Timeline{principal: principal, phases: phases, moratoriums: moratoriums}, nil
}

// HasPhases reports whether the loan disburses in tranches.
func (t *Timeline) HasPhases() bool {
	return len(t.phases) > 0
}

// DisbursedThrough returns the cumulative principal paid out on or before
// the date. Without phases the full principal counts as disbursed.
func (t *Timeline) DisbursedThrough(date time.Time) decimal.Decimal {
	if len(t.phases) == 0 {
		return t.principal
	}
	total := decimal.Zero
	for _, p := range t.phases {
		if p.Date.After(date) {
			break
		}
		total = total.Add(p.Amount)
	}
	return total
}

// FullyDisbursed reports whether every tranche is out by the date.
func (t *Timeline) FullyDisbursed(date time.Time) bool {
	return t.DisbursedThrough(date).Equal(t.principal)
}

// MoratoriumFor returns the window covering the 1-indexed month, if any.
func (t *Timeline) MoratoriumFor(month int) (domain.MoratoriumPeriod, bool) {
	return moratoriumFor(t.moratoriums, month)
}
