package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mybank/loan-engine/internal/config"
	"github.com/mybank/loan-engine/internal/domain"
	"github.com/mybank/loan-engine/internal/schedule"
	customError "github.com/mybank/loan-engine/pkg/errors"
	"github.com/mybank/loan-engine/tests/mocks"
)

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{DefaultPrepaymentMode: string(domain.PrepayReduceTenure)},
	}
}

func newTestService(loanRepo *mocks.MockLoanRepository, versionRepo *mocks.MockVersionRepository) *LoanService {
	return NewLoanService(loanRepo, versionRepo, nil, testConfig(), zap.NewNop().Sugar())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedTerms() domain.LoanTerms {
	return domain.LoanTerms{
		CustomerID:     "CUST001",
		ProductType:    domain.ProductHome,
		Principal:      decimal.NewFromInt(1000000),
		AnnualRate:     decimal.NewFromInt(12),
		TenureMonths:   24,
		IssueDate:      date(2025, time.January, 1),
		EMIStartDate:   date(2025, time.January, 1),
		RateType:       domain.RateFixed,
		Compounding:    domain.CompoundingMonthly,
		Status:         domain.LoanStatusActive,
		PrepaymentMode: domain.PrepayReduceTenure,
	}
}

func floatingTerms(strategy domain.FloatingStrategy) domain.LoanTerms {
	terms := fixedTerms()
	terms.RateType = domain.RateFloating
	terms.BenchmarkName = "MCLR_1Y"
	terms.Spread = decimal.NewFromInt(2)
	terms.FloatingStrategy = strategy
	terms.AnnualRate = decimal.NewFromInt(12) // benchmark 10 + spread 2
	return terms
}

func versionFor(t *testing.T, loanID uuid.UUID, terms domain.LoanTerms) *domain.LoanVersion {
	t.Helper()
	sched, err := schedule.Generate(schedule.Input{
		Principal:    terms.Principal,
		AnnualRate:   terms.AnnualRate,
		TenureMonths: terms.TenureMonths,
		Compounding:  terms.Compounding,
		IssueDate:    terms.IssueDate,
		StartDate:    terms.EMIStartDate,
		Phases:       terms.Phases,
		Moratoriums:  terms.Moratoriums,
		Charges:      terms.Charges,
	})
	require.NoError(t, err)
	return &domain.LoanVersion{
		ID:            uuid.New(),
		LoanID:        loanID,
		VersionNumber: 1,
		ChangeReason:  domain.ReasonInitialCreation,
		IsCurrent:     true,
		Terms:         terms,
		Schedule:      sched,
	}
}

func TestCreateLoan_Success(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(v *domain.LoanVersion) bool {
		return v.VersionNumber == 1 && v.ChangeReason == domain.ReasonInitialCreation
	})).Return(nil)

	resp, err := service.CreateLoan(context.Background(), &domain.CreateLoanRequest{
		CustomerID:   "CUST001",
		ProductType:  "HOME",
		Principal:    decimal.NewFromInt(1000000),
		AnnualRate:   decimal.NewFromInt(12),
		TenureMonths: 24,
		IssueDate:    date(2025, time.January, 1),
		EMIStartDate: date(2025, time.January, 1),
		RateType:     "FIXED",
		Compounding:  "MONTHLY",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, resp.Loan.Status)
	assert.Equal(t, 1, resp.Version.VersionNumber)
	assert.True(t, resp.Version.IsCurrent)
	assert.Len(t, resp.Version.Schedule.Installments, 24)
	require.NotNil(t, resp.Version.KFS)
	assert.True(t, resp.Version.KFS.EMI.Equal(resp.Version.Schedule.EMI))
	// Loan defaults to the configured prepayment mode.
	assert.Equal(t, domain.PrepayReduceTenure, resp.Version.Terms.PrepaymentMode)

	loanRepo.AssertExpectations(t)
}

func TestCreateLoan_FloatingRequiresBenchmark(t *testing.T) {
	service := newTestService(&mocks.MockLoanRepository{}, &mocks.MockVersionRepository{})

	_, err := service.CreateLoan(context.Background(), &domain.CreateLoanRequest{
		CustomerID:   "CUST001",
		ProductType:  "HOME",
		Principal:    decimal.NewFromInt(1000000),
		AnnualRate:   decimal.NewFromInt(12),
		TenureMonths: 24,
		IssueDate:    date(2025, time.January, 1),
		EMIStartDate: date(2025, time.January, 1),
		RateType:     "FLOATING",
		Compounding:  "MONTHLY",
	})

	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestEditLoan_RateChangeAppendsVersion(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	current := versionFor(t, loanID, fixedTerms())

	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.MatchedBy(func(v *domain.LoanVersion) bool {
		return v.VersionNumber == 2 && v.ChangeReason == domain.ReasonRateModification
	})).Return(nil)

	newRate := decimal.NewFromInt(10)
	version, err := service.EditLoan(context.Background(), loanID, &domain.EditLoanRequest{
		AnnualRate:   &newRate,
		ChangeReason: "RATE_MODIFICATION",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, version.VersionNumber)
	assert.True(t, version.Terms.AnnualRate.Equal(newRate))
	// Rate down, same tenure: cheaper EMI than before.
	assert.True(t, version.Schedule.EMI.LessThan(current.Schedule.EMI))

	versionRepo.AssertExpectations(t)
}

func TestEditLoan_DefaultDescriptionPersisted(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(versionFor(t, loanID, fixedTerms()), nil)

	var appended *domain.LoanVersion
	versionRepo.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		appended = args.Get(1).(*domain.LoanVersion)
	}).Return(nil)

	newRate := decimal.NewFromInt(10)
	version, err := service.EditLoan(context.Background(), loanID, &domain.EditLoanRequest{
		AnnualRate:   &newRate,
		ChangeReason: "RATE_MODIFICATION",
	})

	require.NoError(t, err)
	require.NotNil(t, appended)
	// The derived change summary is on the stored row, not patched onto the
	// returned copy afterwards.
	assert.Contains(t, appended.ChangeDescription, "annual_rate")
	assert.Equal(t, appended.ChangeDescription, version.ChangeDescription)

	versionRepo.AssertExpectations(t)
}

func TestEditLoan_NoChangesRejected(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(versionFor(t, loanID, fixedTerms()), nil)

	_, err := service.EditLoan(context.Background(), loanID, &domain.EditLoanRequest{
		ChangeReason: "MANUAL_CORRECTION",
	})

	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestEditLoan_ClosedLoanRejected(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	terms := fixedTerms()
	terms.Status = domain.LoanStatusClosed
	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(versionFor(t, loanID, terms), nil)

	newRate := decimal.NewFromInt(10)
	_, err := service.EditLoan(context.Background(), loanID, &domain.EditLoanRequest{
		AnnualRate:   &newRate,
		ChangeReason: "RATE_MODIFICATION",
	})

	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestRecordPrepayment_ReduceTenureKeepsEMI(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	current := versionFor(t, loanID, fixedTerms())

	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	version, err := service.RecordPrepayment(context.Background(), loanID, domain.PrepaymentRequest{
		Amount: decimal.NewFromInt(200000),
		Date:   date(2025, time.June, 15), // six installments in
	})

	require.NoError(t, err)
	assert.Len(t, version.Terms.Prepayments, 1)
	// EMI held, tenure shortened.
	assert.True(t, version.Schedule.EMI.Equal(current.Schedule.EMI))
	assert.Less(t, len(version.Schedule.Installments), len(current.Schedule.Installments))
	// The first six rows are untouched history.
	for i := 0; i < 6; i++ {
		assert.True(t, version.Schedule.Installments[i].EMI.Equal(current.Schedule.Installments[i].EMI))
	}
	assert.True(t, version.Schedule.TotalInterest.LessThan(current.Schedule.TotalInterest))

	versionRepo.AssertExpectations(t)
}

func TestRecordPrepayment_ReduceEMIKeepsTenure(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	terms := fixedTerms()
	terms.PrepaymentMode = domain.PrepayReduceEMI
	current := versionFor(t, loanID, terms)

	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	version, err := service.RecordPrepayment(context.Background(), loanID, domain.PrepaymentRequest{
		Amount: decimal.NewFromInt(200000),
		Date:   date(2025, time.June, 15),
	})

	require.NoError(t, err)
	assert.Len(t, version.Schedule.Installments, 24)
	assert.True(t, version.Schedule.EMI.LessThan(current.Schedule.EMI))

	versionRepo.AssertExpectations(t)
}

func TestRecordPrepayment_KeepsLaterMoratorium(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	terms := fixedTerms()
	terms.Moratoriums = []domain.MoratoriumPeriod{
		{StartMonth: 12, EndMonth: 14, Type: domain.MoratoriumFull},
	}
	current := versionFor(t, loanID, terms)

	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	version, err := service.RecordPrepayment(context.Background(), loanID, domain.PrepaymentRequest{
		Amount: decimal.NewFromInt(200000),
		Date:   date(2025, time.June, 15),
	})

	require.NoError(t, err)
	// The relief window past the prepayment survives regeneration.
	byMonth := make(map[int]domain.Installment)
	for _, row := range version.Schedule.Installments {
		byMonth[row.MonthNumber] = row
	}
	for m := 12; m <= 14; m++ {
		row, ok := byMonth[m]
		require.True(t, ok, "month %d missing", m)
		assert.Equal(t, domain.PaymentMoratoriumFull, row.PaymentType)
		assert.True(t, row.EMI.IsZero())
	}
	last := version.Schedule.Installments[len(version.Schedule.Installments)-1]
	assert.True(t, last.ClosingBalance.IsZero())

	versionRepo.AssertExpectations(t)
}

func TestRecordPrepayment_ExceedingOutstandingRejected(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(versionFor(t, loanID, fixedTerms()), nil)

	_, err := service.RecordPrepayment(context.Background(), loanID, domain.PrepaymentRequest{
		Amount: decimal.NewFromInt(2000000),
		Date:   date(2025, time.June, 15),
	})

	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestApplyBenchmarkReset_EMIConstantExtendsTenure(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	current := versionFor(t, loanID, floatingTerms(domain.StrategyEMIConstant))

	effectiveDate := date(2025, time.July, 10)
	versionRepo.On("HasBenchmarkReset", mock.Anything, loanID, effectiveDate).Return(false, nil)
	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	// Benchmark up 10 -> 11, effective rate 13 with the 2 spread.
	version, applied, err := service.ApplyBenchmarkReset(context.Background(), loanID, "MCLR_1Y", decimal.NewFromInt(11), effectiveDate)

	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, version.Terms.AnnualRate.Equal(decimal.NewFromInt(13)))
	assert.Equal(t, domain.ReasonBenchmarkChange, version.ChangeReason)
	// EMI held, so a costlier rate needs more months.
	assert.True(t, version.Schedule.EMI.Equal(current.Schedule.EMI))
	assert.Greater(t, len(version.Schedule.Installments), len(current.Schedule.Installments))

	versionRepo.AssertExpectations(t)
}

func TestApplyBenchmarkReset_TenureConstantRaisesEMI(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	current := versionFor(t, loanID, floatingTerms(domain.StrategyTenureConstant))

	effectiveDate := date(2025, time.July, 10)
	versionRepo.On("HasBenchmarkReset", mock.Anything, loanID, effectiveDate).Return(false, nil)
	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	version, applied, err := service.ApplyBenchmarkReset(context.Background(), loanID, "MCLR_1Y", decimal.NewFromInt(11), effectiveDate)

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Len(t, version.Schedule.Installments, 24)
	// Same months remaining, so the EMI absorbs the rate increase.
	last := version.Schedule.Installments[len(version.Schedule.Installments)-1]
	assert.True(t, last.ClosingBalance.IsZero())
	assert.True(t, version.Schedule.Installments[7].EMI.GreaterThan(current.Schedule.Installments[7].EMI))

	versionRepo.AssertExpectations(t)
}

func TestApplyBenchmarkReset_KeepsLaterMoratorium(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	terms := floatingTerms(domain.StrategyTenureConstant)
	terms.Moratoriums = []domain.MoratoriumPeriod{
		{StartMonth: 12, EndMonth: 14, Type: domain.MoratoriumFull},
	}
	current := versionFor(t, loanID, terms)

	effectiveDate := date(2025, time.July, 10)
	versionRepo.On("HasBenchmarkReset", mock.Anything, loanID, effectiveDate).Return(false, nil)
	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	version, applied, err := service.ApplyBenchmarkReset(context.Background(), loanID, "MCLR_1Y", decimal.NewFromInt(11), effectiveDate)

	require.NoError(t, err)
	assert.True(t, applied)
	require.Len(t, version.Schedule.Installments, 24)

	// Months 12-14 stay under the relief window at the new rate.
	for _, row := range version.Schedule.Installments[11:14] {
		assert.Equal(t, domain.PaymentMoratoriumFull, row.PaymentType)
		assert.True(t, row.EMI.IsZero())
		assert.True(t, row.AnnualRate.Equal(decimal.NewFromInt(13)))
	}
	assert.True(t, version.Schedule.Installments[23].ClosingBalance.IsZero())

	versionRepo.AssertExpectations(t)
}

func TestApplyBenchmarkReset_IdempotentPerEffectiveDate(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	effectiveDate := date(2025, time.July, 10)
	versionRepo.On("HasBenchmarkReset", mock.Anything, loanID, effectiveDate).Return(true, nil)

	version, applied, err := service.ApplyBenchmarkReset(context.Background(), loanID, "MCLR_1Y", decimal.NewFromInt(11), effectiveDate)

	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, version)
	versionRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestApplyBenchmarkReset_FixedRateLoanRejected(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	effectiveDate := date(2025, time.July, 10)
	versionRepo.On("HasBenchmarkReset", mock.Anything, loanID, effectiveDate).Return(false, nil)
	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(versionFor(t, loanID, fixedTerms()), nil)

	_, _, err := service.ApplyBenchmarkReset(context.Background(), loanID, "MCLR_1Y", decimal.NewFromInt(11), effectiveDate)

	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestAppendVersion_ConcurrentMutationConflicts(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	service := newTestService(loanRepo, versionRepo)

	loanID := uuid.New()
	release, ok := service.locks.acquire(loanID)
	require.True(t, ok)
	defer release()

	newRate := decimal.NewFromInt(10)
	_, err := service.EditLoan(context.Background(), loanID, &domain.EditLoanRequest{
		AnnualRate:   &newRate,
		ChangeReason: "RATE_MODIFICATION",
	})

	assert.Equal(t, customError.ErrCodeConflict, customError.Code(err))
}
