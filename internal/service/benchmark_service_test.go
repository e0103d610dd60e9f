package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mybank/loan-engine/internal/domain"
	customError "github.com/mybank/loan-engine/pkg/errors"
	"github.com/mybank/loan-engine/pkg/utils"
	"github.com/mybank/loan-engine/tests/mocks"
)

func newBenchmarkFixture() (*mocks.MockLoanRepository, *mocks.MockVersionRepository, *mocks.MockBenchmarkRepository, *BenchmarkService) {
	loanRepo := &mocks.MockLoanRepository{}
	versionRepo := &mocks.MockVersionRepository{}
	benchmarkRepo := &mocks.MockBenchmarkRepository{}
	loans := newTestService(loanRepo, versionRepo)
	svc := NewBenchmarkService(benchmarkRepo, loanRepo, loans, zap.NewNop().Sugar())
	return loanRepo, versionRepo, benchmarkRepo, svc
}

func floatingLoan(id uuid.UUID, rate decimal.Decimal) *domain.Loan {
	return &domain.Loan{
		ID:            id,
		RateType:      domain.RateFloating,
		Status:        domain.LoanStatusActive,
		BenchmarkName: "MCLR_1Y",
		Spread:        decimal.NewFromInt(2),
		AnnualRate:    rate,
	}
}

func TestAddRate_InvalidNameRejected(t *testing.T) {
	_, _, _, svc := newBenchmarkFixture()

	_, err := svc.AddRate(context.Background(), "mclr 1y!", &domain.AddBenchmarkRateRequest{
		Rate:          decimal.NewFromInt(10),
		EffectiveDate: date(2025, time.July, 1),
	})
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
}

func TestAddRate_NormalizesNameAndFansOut(t *testing.T) {
	loanRepo, versionRepo, benchmarkRepo, svc := newBenchmarkFixture()

	effectiveDate := date(2025, time.July, 10)
	loanID := uuid.New()
	current := versionFor(t, loanID, floatingTerms(domain.StrategyTenureConstant))

	benchmarkRepo.On("InsertRate", mock.Anything, mock.MatchedBy(func(r *domain.BenchmarkRate) bool {
		return r.BenchmarkName == "MCLR_1Y" && r.EffectiveDate.Equal(effectiveDate)
	})).Return(nil)
	benchmarkRepo.On("LatestAsOf", mock.Anything, "MCLR_1Y", effectiveDate).Return(&domain.BenchmarkRate{
		BenchmarkName: "MCLR_1Y",
		Rate:          decimal.NewFromInt(11),
		EffectiveDate: effectiveDate,
	}, nil)
	benchmarkRepo.On("History", mock.Anything, "MCLR_1Y").Return([]domain.BenchmarkRate{
		{BenchmarkName: "MCLR_1Y", Rate: decimal.NewFromInt(11), EffectiveDate: effectiveDate},
	}, nil)

	loanRepo.On("ActiveFloatingByBenchmark", mock.Anything, "MCLR_1Y").
		Return([]*domain.Loan{floatingLoan(loanID, decimal.NewFromInt(12))}, nil)
	versionRepo.On("HasBenchmarkReset", mock.Anything, loanID, effectiveDate).Return(false, nil)
	versionRepo.On("GetCurrent", mock.Anything, loanID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	// Lowercase input canonicalizes to MCLR_1Y before anything persists.
	resp, err := svc.AddRate(context.Background(), "mclr 1y", &domain.AddBenchmarkRateRequest{
		Rate:          decimal.NewFromInt(11),
		EffectiveDate: effectiveDate,
	})

	require.NoError(t, err)
	assert.Equal(t, "MCLR_1Y", resp.Benchmark.Name)
	require.Len(t, resp.Resets, 1)
	assert.Equal(t, domain.ResetApplied, resp.Resets[0].Outcome)
	assert.Equal(t, 2, resp.Resets[0].VersionNumber)
	assert.True(t, resp.Resets[0].EffectiveRate.Equal(decimal.NewFromInt(13)))

	benchmarkRepo.AssertExpectations(t)
	versionRepo.AssertExpectations(t)
}

func TestAddRate_OneBadLoanDoesNotBlockOthers(t *testing.T) {
	loanRepo, versionRepo, benchmarkRepo, svc := newBenchmarkFixture()

	effectiveDate := date(2025, time.July, 10)
	goodID := uuid.New()
	badID := uuid.New()
	current := versionFor(t, goodID, floatingTerms(domain.StrategyTenureConstant))

	benchmarkRepo.On("InsertRate", mock.Anything, mock.Anything).Return(nil)
	benchmarkRepo.On("LatestAsOf", mock.Anything, "MCLR_1Y", effectiveDate).Return(&domain.BenchmarkRate{
		BenchmarkName: "MCLR_1Y",
		Rate:          decimal.NewFromInt(11),
		EffectiveDate: effectiveDate,
	}, nil)
	benchmarkRepo.On("History", mock.Anything, "MCLR_1Y").Return([]domain.BenchmarkRate{}, nil)

	loanRepo.On("ActiveFloatingByBenchmark", mock.Anything, "MCLR_1Y").Return([]*domain.Loan{
		floatingLoan(badID, decimal.NewFromInt(12)),
		floatingLoan(goodID, decimal.NewFromInt(12)),
	}, nil)

	versionRepo.On("HasBenchmarkReset", mock.Anything, badID, effectiveDate).Return(false, nil)
	versionRepo.On("GetCurrent", mock.Anything, badID).Return(nil, errors.New("connection reset"))
	versionRepo.On("HasBenchmarkReset", mock.Anything, goodID, effectiveDate).Return(false, nil)
	versionRepo.On("GetCurrent", mock.Anything, goodID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.AddRate(context.Background(), "MCLR_1Y", &domain.AddBenchmarkRateRequest{
		Rate:          decimal.NewFromInt(11),
		EffectiveDate: effectiveDate,
	})

	require.NoError(t, err)
	require.Len(t, resp.Resets, 2)
	assert.Equal(t, domain.ResetFailed, resp.Resets[0].Outcome)
	assert.NotEmpty(t, resp.Resets[0].Error)
	assert.Equal(t, domain.ResetApplied, resp.Resets[1].Outcome)
}

func TestAddRate_AlreadyAppliedReported(t *testing.T) {
	loanRepo, versionRepo, benchmarkRepo, svc := newBenchmarkFixture()

	effectiveDate := date(2025, time.July, 10)
	loanID := uuid.New()

	benchmarkRepo.On("InsertRate", mock.Anything, mock.Anything).Return(nil)
	benchmarkRepo.On("LatestAsOf", mock.Anything, "MCLR_1Y", effectiveDate).Return(&domain.BenchmarkRate{
		BenchmarkName: "MCLR_1Y",
		Rate:          decimal.NewFromInt(11),
		EffectiveDate: effectiveDate,
	}, nil)
	benchmarkRepo.On("History", mock.Anything, "MCLR_1Y").Return([]domain.BenchmarkRate{}, nil)
	loanRepo.On("ActiveFloatingByBenchmark", mock.Anything, "MCLR_1Y").
		Return([]*domain.Loan{floatingLoan(loanID, decimal.NewFromInt(13))}, nil)
	versionRepo.On("HasBenchmarkReset", mock.Anything, loanID, effectiveDate).Return(true, nil)

	resp, err := svc.AddRate(context.Background(), "MCLR_1Y", &domain.AddBenchmarkRateRequest{
		Rate:          decimal.NewFromInt(11),
		EffectiveDate: effectiveDate,
	})

	require.NoError(t, err)
	require.Len(t, resp.Resets, 1)
	assert.Equal(t, domain.ResetAlreadyApplied, resp.Resets[0].Outcome)
	versionRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestCurrentRate_UnknownBenchmark(t *testing.T) {
	_, _, benchmarkRepo, svc := newBenchmarkFixture()

	asOf := date(2025, time.July, 1)
	benchmarkRepo.On("LatestAsOf", mock.Anything, "SOFR", asOf).Return(nil, sql.ErrNoRows)

	_, err := svc.CurrentRate(context.Background(), "SOFR", asOf)
	assert.Equal(t, customError.ErrCodeNotFound, customError.Code(err))
}

func TestHistory_EmptyMeansUnknown(t *testing.T) {
	_, _, benchmarkRepo, svc := newBenchmarkFixture()

	benchmarkRepo.On("History", mock.Anything, "SOFR").Return([]domain.BenchmarkRate{}, nil)

	_, err := svc.History(context.Background(), "SOFR")
	assert.Equal(t, customError.ErrCodeNotFound, customError.Code(err))
}

func TestProcessScheduledResets_SkipsLoansAlreadyAtRate(t *testing.T) {
	loanRepo, versionRepo, benchmarkRepo, svc := newBenchmarkFixture()

	driftedID := uuid.New()
	// The sweep resets as of today, so the fixture loan must be mid-tenure
	// right now.
	terms := floatingTerms(domain.StrategyTenureConstant)
	start := utils.DateOnly(time.Now().UTC().AddDate(0, -6, 0))
	terms.IssueDate = start
	terms.EMIStartDate = start
	current := versionFor(t, driftedID, terms)

	// One loan already sits at benchmark 10 + spread 2; the other drifted.
	loanRepo.On("ActiveFloating", mock.Anything).Return([]*domain.Loan{
		floatingLoan(uuid.New(), decimal.NewFromInt(13)),
		floatingLoan(driftedID, decimal.NewFromInt(12)),
	}, nil)
	benchmarkRepo.On("LatestAsOf", mock.Anything, "MCLR_1Y", mock.Anything).Return(&domain.BenchmarkRate{
		BenchmarkName: "MCLR_1Y",
		Rate:          decimal.NewFromInt(11),
	}, nil)

	versionRepo.On("HasBenchmarkReset", mock.Anything, driftedID, mock.Anything).Return(false, nil)
	versionRepo.On("GetCurrent", mock.Anything, driftedID).Return(current, nil)
	versionRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	results, err := svc.ProcessScheduledResets(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, driftedID, results[0].LoanID)
	assert.Equal(t, domain.ResetApplied, results[0].Outcome)
	loanRepo.AssertExpectations(t)
}
