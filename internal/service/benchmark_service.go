package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mybank/loan-engine/internal/domain"
	"github.com/mybank/loan-engine/internal/repository"
	customError "github.com/mybank/loan-engine/pkg/errors"
	"github.com/mybank/loan-engine/pkg/utils"
)

// BenchmarkService manages reference-rate histories and fans benchmark
// changes out to the floating loans that track them.
type BenchmarkService struct {
	benchmarkRepo repository.BenchmarkRepository
	loanRepo      repository.LoanRepository
	loans         *LoanService
	log           *zap.SugaredLogger
}

func NewBenchmarkService(
	benchmarkRepo repository.BenchmarkRepository,
	loanRepo repository.LoanRepository,
	loans *LoanService,
	log *zap.SugaredLogger,
) *BenchmarkService {
	return &BenchmarkService{
		benchmarkRepo: benchmarkRepo,
		loanRepo:      loanRepo,
		loans:         loans,
		log:           log,
	}
}

// AddRate appends an entry to the benchmark's history and fans the change
// out to every ACTIVE floating loan tracking it. Individual loan failures
// are collected, not propagated: one bad loan never blocks the rest.
func (s *BenchmarkService) AddRate(ctx context.Context, name string, req *domain.AddBenchmarkRateRequest) (*domain.AddBenchmarkRateResponse, error) {
	name = domain.NormalizeBenchmarkName(name)
	if !domain.ValidBenchmarkName(name) {
		return nil, customError.WrapValidationf("invalid benchmark name %q", name)
	}
	if req.Rate.Sign() <= 0 {
		return nil, customError.WrapValidation("benchmark rate must be positive")
	}

	entry := &domain.BenchmarkRate{
		ID:            uuid.New(),
		BenchmarkName: name,
		Rate:          req.Rate,
		EffectiveDate: utils.DateOnly(req.EffectiveDate),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.benchmarkRepo.InsertRate(ctx, entry); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	s.log.Infow("benchmark rate added",
		"benchmark", name, "rate", req.Rate, "effective_date", entry.EffectiveDate)

	// A backdated insert may not govern its own effective date; resets use
	// whatever entry actually governs it.
	governing, err := s.benchmarkRepo.LatestAsOf(ctx, name, entry.EffectiveDate)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	resets, err := s.fanOut(ctx, name, governing.Rate, entry.EffectiveDate)
	if err != nil {
		return nil, err
	}

	history, err := s.benchmarkRepo.History(ctx, name)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return &domain.AddBenchmarkRateResponse{
		Benchmark: &domain.Benchmark{Name: name, History: history},
		Resets:    resets,
	}, nil
}

// CurrentRate resolves the entry governing asOf.
func (s *BenchmarkService) CurrentRate(ctx context.Context, name string, asOf time.Time) (*domain.BenchmarkRate, error) {
	name = domain.NormalizeBenchmarkName(name)
	rate, err := s.benchmarkRepo.LatestAsOf(ctx, name, asOf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapBenchmarkNotFound(name)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return rate, nil
}

// History returns the benchmark with its full ordered history.
func (s *BenchmarkService) History(ctx context.Context, name string) (*domain.Benchmark, error) {
	name = domain.NormalizeBenchmarkName(name)
	history, err := s.benchmarkRepo.History(ctx, name)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if len(history) == 0 {
		return nil, customError.WrapBenchmarkNotFound(name)
	}
	return &domain.Benchmark{Name: name, History: history}, nil
}

// Names lists all known benchmark names.
func (s *BenchmarkService) Names(ctx context.Context) ([]string, error) {
	names, err := s.benchmarkRepo.Names(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return names, nil
}

// ProcessScheduledResets is the daily sweep: every ACTIVE floating loan
// whose effective rate has drifted from its benchmark's governing rate plus
// spread gets a reset version effective today. Loans already reset today
// are reported as ALREADY_APPLIED via the per-date idempotency guard.
func (s *BenchmarkService) ProcessScheduledResets(ctx context.Context) ([]domain.ResetResult, error) {
	today := utils.DateOnly(time.Now().UTC())
	loans, err := s.loanRepo.ActiveFloating(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	results := make([]domain.ResetResult, 0, len(loans))
	for _, loan := range loans {
		if loan.BenchmarkName == "" {
			continue
		}
		// updated_at moves on every version append, so it bounds the time
		// since the loan last repriced.
		if loan.ResetPeriodicityMonths > 0 && utils.MonthsBetween(loan.UpdatedAt, today) < loan.ResetPeriodicityMonths {
			continue
		}
		governing, err := s.benchmarkRepo.LatestAsOf(ctx, loan.BenchmarkName, today)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue // benchmark has no history yet
			}
			return results, customError.WrapDatabaseError(err)
		}
		if governing.Rate.Add(loan.Spread).Equal(loan.AnnualRate) {
			continue // already at the benchmark-implied rate
		}
		results = append(results, s.applyOne(ctx, loan, loan.BenchmarkName, governing.Rate, today))
	}
	s.log.Infow("scheduled reset sweep finished", "candidates", len(loans), "resets", len(results))
	return results, nil
}

// fanOut applies one benchmark rate to every active loan tracking it.
func (s *BenchmarkService) fanOut(ctx context.Context, name string, rate decimal.Decimal, effectiveDate time.Time) ([]domain.ResetResult, error) {
	loans, err := s.loanRepo.ActiveFloatingByBenchmark(ctx, name)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	results := make([]domain.ResetResult, 0, len(loans))
	for _, loan := range loans {
		results = append(results, s.applyOne(ctx, loan, name, rate, effectiveDate))
	}
	return results, nil
}

func (s *BenchmarkService) applyOne(ctx context.Context, loan *domain.Loan, name string, rate decimal.Decimal, effectiveDate time.Time) domain.ResetResult {
	result := domain.ResetResult{LoanID: loan.ID}
	version, applied, err := s.loans.ApplyBenchmarkReset(ctx, loan.ID, name, rate, effectiveDate)
	switch {
	case err != nil:
		result.Outcome = domain.ResetFailed
		result.Error = err.Error()
		s.log.Warnw("benchmark reset failed", "loan_id", loan.ID, "benchmark", name, "error", err)
	case !applied:
		result.Outcome = domain.ResetAlreadyApplied
	default:
		result.Outcome = domain.ResetApplied
		result.VersionNumber = version.VersionNumber
		result.EffectiveRate = rate.Add(loan.Spread)
	}
	return result
}
