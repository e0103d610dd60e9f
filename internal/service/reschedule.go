package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mybank/loan-engine/internal/domain"
	"github.com/mybank/loan-engine/internal/schedule"
	customError "github.com/mybank/loan-engine/pkg/errors"
	"github.com/mybank/loan-engine/pkg/utils"
)

// buildPrepaymentSchedule keeps the installments already due, reduces the
// outstanding balance by the lump sum, and regenerates the remainder. The
// rate is untouched; mode decides whether the tenure shortens or the EMI
// drops.
func (s *LoanService) buildPrepaymentSchedule(terms domain.LoanTerms, current *domain.RepaymentSchedule, amount decimal.Decimal, date time.Time) (*domain.RepaymentSchedule, error) {
	if current == nil || len(current.Installments) == 0 {
		return nil, customError.WrapValidation("loan has no schedule to prepay against")
	}
	last := current.Installments[len(current.Installments)-1].DueDate
	if date.Before(terms.IssueDate) || date.After(last) {
		return nil, customError.WrapValidationf("prepayment date %s is outside the loan's active tenure", date.Format("2006-01-02"))
	}

	outstanding := current.OutstandingAt(date)
	if amount.Cmp(outstanding) >= 0 {
		return nil, customError.WrapValidationf("prepayment %s is not below outstanding principal %s as of %s",
			amount, outstanding, date.Format("2006-01-02"))
	}

	cut := current.MonthAt(date)
	newBalance := outstanding.Sub(amount)
	nextDue := s.nextDueDate(terms, current, cut)

	mode := terms.PrepaymentMode
	if mode == "" {
		mode = s.config.DefaultPrepaymentMode()
	}

	var future []domain.Installment
	var newEMI decimal.Decimal
	switch mode {
	case domain.PrepayReduceEMI:
		remaining := terms.TenureMonths - cut
		if remaining < 1 {
			return nil, customError.WrapValidation("no remaining tenure to regenerate after prepayment")
		}
		sub, err := schedule.Generate(schedule.Input{
			Principal:    newBalance,
			AnnualRate:   terms.AnnualRate,
			TenureMonths: remaining,
			Compounding:  terms.Compounding,
			IssueDate:    nextDue,
			StartDate:    nextDue,
			Moratoriums:  remainingMoratoriums(terms.Moratoriums, cut, remaining),
		})
		if err != nil {
			return nil, err
		}
		future = renumber(sub.Installments, cut)
		newEMI = sub.EMI
	default: // REDUCE_TENURE: hold the EMI, the balance closes sooner
		heldEMI := s.heldEMI(current, cut)
		rows, err := schedule.GenerateWithEMI(schedule.FixedEMIInput{
			Balance:     newBalance,
			AnnualRate:  terms.AnnualRate,
			EMI:         heldEMI,
			Compounding: terms.Compounding,
			StartDate:   nextDue,
			StartMonth:  cut + 1,
			Moratoriums: terms.Moratoriums,
		})
		if err != nil {
			return nil, err
		}
		future = rows
		newEMI = heldEMI
	}

	return s.stitch(terms, current, cut, future, newEMI, terms.AnnualRate, newBalance, date), nil
}

// buildResetSchedule recomputes the remainder of the schedule at the new
// effective rate per the loan's floating strategy: EMI_CONSTANT holds the
// EMI and lets the tenure move, TENURE_CONSTANT holds the months remaining
// and moves the EMI.
func (s *LoanService) buildResetSchedule(terms domain.LoanTerms, current *domain.RepaymentSchedule, newRate decimal.Decimal, effectiveDate time.Time) (*domain.RepaymentSchedule, error) {
	if current == nil || len(current.Installments) == 0 {
		return nil, customError.WrapValidation("loan has no schedule to reset")
	}

	cut := current.MonthAt(effectiveDate)
	balance := current.OutstandingAt(effectiveDate)
	if balance.Sign() <= 0 {
		return nil, customError.WrapValidation("loan is fully amortized; nothing to reset")
	}
	nextDue := s.nextDueDate(terms, current, cut)

	var future []domain.Installment
	var newEMI decimal.Decimal
	switch terms.FloatingStrategy {
	case domain.StrategyTenureConstant:
		remaining := len(current.Installments) - cut
		if remaining < 1 {
			return nil, customError.WrapValidation("no remaining tenure to reset")
		}
		sub, err := schedule.Generate(schedule.Input{
			Principal:    balance,
			AnnualRate:   newRate,
			TenureMonths: remaining,
			Compounding:  terms.Compounding,
			IssueDate:    nextDue,
			StartDate:    nextDue,
			Moratoriums:  remainingMoratoriums(terms.Moratoriums, cut, remaining),
		})
		if err != nil {
			return nil, err
		}
		future = renumber(sub.Installments, cut)
		newEMI = sub.EMI
	default: // EMI_CONSTANT
		heldEMI := s.heldEMI(current, cut)
		rows, err := schedule.GenerateWithEMI(schedule.FixedEMIInput{
			Balance:     balance,
			AnnualRate:  newRate,
			EMI:         heldEMI,
			Compounding: terms.Compounding,
			StartDate:   nextDue,
			StartMonth:  cut + 1,
			Moratoriums: terms.Moratoriums,
		})
		if err != nil {
			return nil, err
		}
		future = rows
		newEMI = heldEMI
	}

	return s.stitch(terms, current, cut, future, newEMI, newRate, balance, effectiveDate), nil
}

// heldEMI picks the EMI to carry forward: the next pending regular
// installment's, falling back to the schedule-level EMI.
func (s *LoanService) heldEMI(current *domain.RepaymentSchedule, cut int) decimal.Decimal {
	if cut < len(current.Installments) {
		row := current.Installments[cut]
		if row.PaymentType == domain.PaymentRegular && row.EMI.Sign() > 0 {
			return row.EMI
		}
	}
	return current.EMI
}

// nextDueDate is the due date of the first regenerated installment.
func (s *LoanService) nextDueDate(terms domain.LoanTerms, current *domain.RepaymentSchedule, cut int) time.Time {
	if cut < len(current.Installments) {
		return current.Installments[cut].DueDate
	}
	return utils.AddMonths(terms.EMIStartDate, cut)
}

// stitch joins the retained past rows with the regenerated future rows and
// recomputes the schedule-level aggregates.
func (s *LoanService) stitch(terms domain.LoanTerms, current *domain.RepaymentSchedule, cut int, future []domain.Installment, emi, rate, balance decimal.Decimal, snapshotDate time.Time) *domain.RepaymentSchedule {
	rows := make([]domain.Installment, 0, cut+len(future))
	rows = append(rows, current.Installments[:cut]...)
	rows = append(rows, future...)

	totalPayable := decimal.Zero
	totalInterest := decimal.Zero
	for _, row := range rows {
		totalPayable = totalPayable.Add(row.EMI)
		totalInterest = totalInterest.Add(row.Interest)
	}
	if current.BPI != nil && !current.BPI.AddedToFirstEMI {
		totalPayable = totalPayable.Add(current.BPI.Amount)
		totalInterest = totalInterest.Add(current.BPI.Amount)
	}

	return &domain.RepaymentSchedule{
		Installments:     rows,
		EMI:              emi,
		TotalPayable:     totalPayable,
		TotalInterest:    totalInterest,
		APR:              schedule.APR(terms.Principal, rate, terms.TenureMonths, totalInterest, terms.Charges),
		CurrentRate:      rate,
		MonthsRemaining:  len(future),
		PrincipalBalance: balance,
		SnapshotDate:     utils.DateOnly(snapshotDate),
		BPI:              current.BPI,
	}
}

// remainingMoratoriums shifts the loan's moratorium windows into the local
// 1-indexed numbering of a regeneration that starts after month cut. Windows
// fully elapsed or fully beyond the regenerated range drop out; a window
// straddling the cut keeps its surviving tail.
func remainingMoratoriums(mors []domain.MoratoriumPeriod, cut, remaining int) []domain.MoratoriumPeriod {
	out := make([]domain.MoratoriumPeriod, 0, len(mors))
	for _, m := range mors {
		start := m.StartMonth - cut
		end := m.EndMonth - cut
		if end < 1 || start > remaining {
			continue
		}
		if start < 1 {
			start = 1
		}
		m.StartMonth = start
		m.EndMonth = end
		out = append(out, m)
	}
	return out
}

func renumber(rows []domain.Installment, offset int) []domain.Installment {
	out := make([]domain.Installment, len(rows))
	for i, row := range rows {
		row.MonthNumber += offset
		out[i] = row
	}
	return out
}
