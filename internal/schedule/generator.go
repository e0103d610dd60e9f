package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mybank/loan-engine/internal/domain"
	"github.com/mybank/loan-engine/pkg/errors"
	"github.com/mybank/loan-engine/pkg/utils"
)

// maxScheduleMonths caps fixed-EMI simulation at 100 years.
const maxScheduleMonths = 1200

// bpiFoldThresholdDays: broken-period gaps shorter than this fold into the
// first installment instead of being disclosed separately.
const bpiFoldThresholdDays = 15

var (
	one            = decimal.NewFromInt(1)
	twelveHundred  = decimal.NewFromInt(1200)
	daysPerYearPct = decimal.NewFromInt(36500)
	closeTolerance = decimal.NewFromFloat(0.01)
)

// Input carries a loan's effective terms into schedule generation.
type Input struct {
	Principal    decimal.Decimal
	AnnualRate   decimal.Decimal // percent per annum, e.g. 8.5
	TenureMonths int
	Compounding  domain.Compounding
	IssueDate    time.Time
	StartDate    time.Time // first EMI due date
	Phases       []domain.DisbursementPhase
	Moratoriums  []domain.MoratoriumPeriod
	Charges      []domain.Charge
}

// Generate produces the full repayment schedule for the terms: a pre-EMI
// phase while disbursement is partial, then reducing-balance amortization
// with moratorium windows applied. Monetary values are rounded to the minor
// unit per installment and the final installment absorbs residual drift so
// the closing balance reaches exactly zero.
func Generate(in Input) (*domain.RepaymentSchedule, error) {
	if in.AnnualRate.Sign() < 0 {
		return nil, errors.WrapValidation("annual rate must not be negative")
	}
	tl, err := Resolve(in.Principal, in.TenureMonths, in.Phases, in.Moratoriums)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.Installment, 0, in.TenureMonths)

	// Pre-EMI phase: interest only on the disbursed amount for every month
	// up to and including full disbursement. Amortization starts the month
	// after, or at the EMI start date when that is later. Pre-EMI months
	// take precedence over moratorium windows; relief applies to the
	// amortization phase only.
	preMonths := 0
	if tl.HasPhases() {
		finalPhase := in.Phases[0].Date
		for _, p := range in.Phases {
			if p.Date.After(finalPhase) {
				finalPhase = p.Date
			}
		}
		for m := 1; m <= in.TenureMonths; m++ {
			due := utils.AddMonths(in.StartDate, m-1)
			if due.After(finalPhase) {
				break
			}
			disbursed := tl.DisbursedThrough(due)
			interest := utils.RoundMoney(periodInterest(disbursed, in.AnnualRate, due, in.Compounding))
			rows = append(rows, domain.Installment{
				MonthNumber:    m,
				DueDate:        due,
				EMI:            interest,
				Principal:      decimal.Zero,
				Interest:       interest,
				ClosingBalance: disbursed,
				AnnualRate:     in.AnnualRate,
				PaymentType:    domain.PaymentPreEMI,
				Status:         domain.InstallmentPending,
			})
			preMonths++
		}
	}

	amortMonths := in.TenureMonths - preMonths
	if amortMonths < 1 {
		return nil, errors.WrapValidation("disbursement plan leaves no months for amortization within the tenure")
	}

	balance := utils.RoundMoney(in.Principal)
	emi := utils.RoundMoney(annuityEMI(balance, in.AnnualRate, amortMonths))
	initialEMI := emi

	capitalized := decimal.Zero
	sumPrincipal := decimal.Zero
	rateReset := false

	for m := preMonths + 1; m <= in.TenureMonths; m++ {
		due := utils.AddMonths(in.StartDate, m-1)
		interest := utils.RoundMoney(periodInterest(balance, in.AnnualRate, due, in.Compounding))

		row := domain.Installment{
			MonthNumber: m,
			DueDate:     due,
			AnnualRate:  in.AnnualRate,
			Status:      domain.InstallmentPending,
		}

		if mor, ok := tl.MoratoriumFor(m); ok {
			capAmt, paid := applyMoratorium(&row, mor, interest, &balance)
			capitalized = capitalized.Add(capAmt)
			sumPrincipal = sumPrincipal.Add(paid)
			rows = append(rows, row)
			rateReset = true
			continue
		}

		if rateReset {
			// A moratorium window changed the balance/months pairing the
			// EMI was computed for; re-anchor it so the schedule still
			// closes to zero at tenure end.
			remaining := in.TenureMonths - m + 1
			emi = utils.RoundMoney(annuityEMI(balance, in.AnnualRate, remaining))
			rateReset = false
		}

		pc := emi.Sub(interest)
		if pc.Sign() <= 0 {
			return nil, errors.WrapComputationInvariant("EMI does not cover accrued interest")
		}

		if m == in.TenureMonths || balance.Cmp(pc.Add(closeTolerance)) <= 0 {
			// Final installment absorbs rounding drift.
			pc = balance
			row.EMI = utils.RoundMoney(balance.Add(interest))
			balance = decimal.Zero
		} else {
			balance = balance.Sub(pc)
			row.EMI = emi
		}
		sumPrincipal = sumPrincipal.Add(pc)

		row.Principal = pc
		row.Interest = interest
		row.ClosingBalance = balance
		row.PaymentType = domain.PaymentRegular
		rows = append(rows, row)

		if balance.IsZero() {
			break
		}
	}

	if !balance.IsZero() {
		return nil, errors.WrapComputationInvariant("schedule does not close to zero balance at tenure end")
	}
	expected := in.Principal.Add(capitalized)
	if sumPrincipal.Sub(expected).Abs().GreaterThan(closeTolerance) {
		return nil, errors.WrapComputationInvariant("principal components do not sum to outstanding principal")
	}

	sched := &domain.RepaymentSchedule{
		Installments:     rows,
		EMI:              initialEMI,
		CurrentRate:      in.AnnualRate,
		MonthsRemaining:  len(rows),
		PrincipalBalance: in.Principal,
		SnapshotDate:     in.StartDate,
	}
	applyBrokenPeriodInterest(sched, in)
	finalizeTotals(sched, in.Charges, in.AnnualRate, in.Principal, in.TenureMonths)
	return sched, nil
}

// FixedEMIInput drives fixed-EMI simulation: amortize a balance at a rate
// holding the EMI constant until the balance closes. Used by EMI-constant
// rate resets and tenure-shortening prepayments, where the tenure is the
// unknown.
type FixedEMIInput struct {
	Balance     decimal.Decimal
	AnnualRate  decimal.Decimal
	EMI         decimal.Decimal
	Compounding domain.Compounding
	StartDate   time.Time                 // due date of the first generated row
	StartMonth  int                       // month number of the first generated row
	Moratoriums []domain.MoratoriumPeriod // windows in the same numbering as StartMonth
}

// GenerateWithEMI returns installment rows until the balance reaches zero.
func GenerateWithEMI(in FixedEMIInput) ([]domain.Installment, error) {
	if in.Balance.Sign() <= 0 {
		return nil, errors.WrapValidation("balance must be positive")
	}
	if in.EMI.Sign() <= 0 {
		return nil, errors.WrapValidation("EMI must be positive")
	}

	balance := utils.RoundMoney(in.Balance)
	rows := make([]domain.Installment, 0, 64)

	for i := 0; ; i++ {
		if i >= maxScheduleMonths {
			return nil, errors.WrapComputationInvariant("fixed-EMI schedule exceeds maximum tenure; EMI barely covers interest")
		}
		month := in.StartMonth + i
		due := utils.AddMonths(in.StartDate, i)
		interest := utils.RoundMoney(periodInterest(balance, in.AnnualRate, due, in.Compounding))

		row := domain.Installment{
			MonthNumber: month,
			DueDate:     due,
			Interest:    interest,
			AnnualRate:  in.AnnualRate,
			PaymentType: domain.PaymentRegular,
			Status:      domain.InstallmentPending,
		}

		// The EMI stays fixed through a moratorium window; the window just
		// pushes the close-out further out.
		if mor, ok := moratoriumFor(in.Moratoriums, month); ok {
			applyMoratorium(&row, mor, interest, &balance)
			rows = append(rows, row)
			continue
		}

		pc := in.EMI.Sub(interest)
		if pc.Sign() <= 0 {
			return nil, errors.WrapValidation("EMI does not cover accrued interest at the new rate")
		}

		if balance.Cmp(pc.Add(closeTolerance)) <= 0 {
			row.Principal = balance
			row.EMI = utils.RoundMoney(balance.Add(interest))
			row.ClosingBalance = decimal.Zero
			rows = append(rows, row)
			return rows, nil
		}

		balance = balance.Sub(pc)
		row.Principal = pc
		row.EMI = in.EMI
		row.ClosingBalance = balance
		rows = append(rows, row)
	}
}

// applyMoratorium fills one suspended-collection row and mutates the running
// balance. It returns the interest capitalized into the balance and the
// principal collected so callers can keep their conservation accounting.
func applyMoratorium(row *domain.Installment, mor domain.MoratoriumPeriod, interest decimal.Decimal, balance *decimal.Decimal) (capitalized, principal decimal.Decimal) {
	capitalized = decimal.Zero
	principal = decimal.Zero
	switch mor.Type {
	case domain.MoratoriumFull:
		// Collection fully suspended; accrued interest capitalizes into
		// the outstanding balance.
		*balance = balance.Add(interest)
		capitalized = interest
		row.EMI = decimal.Zero
		row.Principal = decimal.Zero
		row.Interest = decimal.Zero
		row.PaymentType = domain.PaymentMoratoriumFull
	case domain.MoratoriumInterestOnly:
		row.EMI = interest
		row.Principal = decimal.Zero
		row.Interest = interest
		row.PaymentType = domain.PaymentMoratoriumInterest
	case domain.MoratoriumPartial:
		amt := utils.RoundMoney(mor.PartialAmount)
		pc := amt.Sub(interest)
		if pc.Sign() < 0 {
			// Fixed payment does not cover interest; the shortfall
			// capitalizes.
			capitalized = pc.Neg()
			*balance = balance.Add(capitalized)
			pc = decimal.Zero
		} else {
			*balance = balance.Sub(pc)
			principal = pc
		}
		row.EMI = amt
		row.Principal = pc
		row.Interest = interest
		row.PaymentType = domain.PaymentMoratoriumPartial
	}
	row.ClosingBalance = *balance
	return capitalized, principal
}

func moratoriumFor(mors []domain.MoratoriumPeriod, month int) (domain.MoratoriumPeriod, bool) {
	for _, m := range mors {
		if m.Covers(month) {
			return m, true
		}
	}
	return domain.MoratoriumPeriod{}, false
}

// annuityEMI is the standard reducing-balance annuity formula at a monthly
// periodic rate. Zero-rate loans amortize linearly.
func annuityEMI(principal, annualRate decimal.Decimal, months int) decimal.Decimal {
	n := decimal.NewFromInt(int64(months))
	r := annualRate.Div(twelveHundred)
	if r.IsZero() {
		return principal.Div(n)
	}
	pow := one.Add(r).Pow(n)
	return principal.Mul(r).Mul(pow).Div(pow.Sub(one))
}

// periodInterest accrues one period of interest on the balance. MONTHLY
// compounding charges annualRate/12; DAILY charges annualRate/365 times the
// actual days in the due month (actual/365 basis).
func periodInterest(balance, annualRate decimal.Decimal, due time.Time, compounding domain.Compounding) decimal.Decimal {
	if compounding == domain.CompoundingDaily {
		days := decimal.NewFromInt(int64(utils.DaysInMonth(due)))
		return balance.Mul(annualRate).Mul(days).Div(daysPerYearPct)
	}
	return balance.Mul(annualRate).Div(twelveHundred)
}

// applyBrokenPeriodInterest charges simple interest for the gap between the
// issue date and the EMI start date. Gaps under 15 days fold into the first
// installment; longer gaps are disclosed as a separate amount.
func applyBrokenPeriodInterest(sched *domain.RepaymentSchedule, in Input) {
	if len(in.Phases) > 0 || len(sched.Installments) == 0 {
		return
	}
	days := int(in.StartDate.Sub(in.IssueDate).Hours() / 24)
	if days <= 0 {
		return
	}

	amount := utils.RoundMoney(in.Principal.Mul(in.AnnualRate).Mul(decimal.NewFromInt(int64(days))).Div(daysPerYearPct))
	fold := days < bpiFoldThresholdDays
	sched.BPI = &domain.BrokenPeriodInterest{
		FromDate:        in.IssueDate,
		ToDate:          in.StartDate,
		Days:            days,
		Amount:          amount,
		AddedToFirstEMI: fold,
	}
	if fold {
		first := &sched.Installments[0]
		first.EMI = first.EMI.Add(amount)
		first.Interest = first.Interest.Add(amount)
	}
}

// finalizeTotals fills the schedule-level aggregates and APR.
func finalizeTotals(sched *domain.RepaymentSchedule, charges []domain.Charge, annualRate, principal decimal.Decimal, tenureMonths int) {
	totalPayable := decimal.Zero
	totalInterest := decimal.Zero
	for _, row := range sched.Installments {
		totalPayable = totalPayable.Add(row.EMI)
		totalInterest = totalInterest.Add(row.Interest)
	}
	if sched.BPI != nil && !sched.BPI.AddedToFirstEMI {
		totalPayable = totalPayable.Add(sched.BPI.Amount)
		totalInterest = totalInterest.Add(sched.BPI.Amount)
	}
	sched.TotalPayable = totalPayable
	sched.TotalInterest = totalInterest
	sched.APR = APR(principal, annualRate, tenureMonths, totalInterest, charges)
}
