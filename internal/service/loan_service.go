package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mybank/loan-engine/internal/config"
	"github.com/mybank/loan-engine/internal/domain"
	"github.com/mybank/loan-engine/internal/repository"
	"github.com/mybank/loan-engine/internal/schedule"
	customError "github.com/mybank/loan-engine/pkg/errors"
	"github.com/mybank/loan-engine/pkg/utils"
)

// errAlreadyApplied short-circuits an append whose effect is already
// reflected by an existing version.
var errAlreadyApplied = errors.New("already applied")

// LoanService is the version/snapshot manager: every mutating operation
// funnels through appendVersion, which computes the new schedule and KFS
// before anything becomes observable.
type LoanService struct {
	loanRepo    repository.LoanRepository
	versionRepo repository.VersionRepository
	redis       *redis.Client
	config      *config.Config
	log         *zap.SugaredLogger
	locks       *loanLocks
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	versionRepo repository.VersionRepository,
	redisClient *redis.Client,
	cfg *config.Config,
	log *zap.SugaredLogger,
) *LoanService {
	return &LoanService{
		loanRepo:    loanRepo,
		versionRepo: versionRepo,
		redis:       redisClient,
		config:      cfg,
		log:         log,
		locks:       newLoanLocks(),
	}
}

// CreateLoan validates the terms, generates the initial schedule and
// persists the loan with its INITIAL_CREATION version atomically.
func (s *LoanService) CreateLoan(ctx context.Context, req *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	terms, err := s.termsFromCreateRequest(req)
	if err != nil {
		return nil, err
	}

	sched, err := s.generate(terms)
	if err != nil {
		return nil, err
	}

	loanID := uuid.New()
	now := time.Now()
	version := &domain.LoanVersion{
		ID:                uuid.New(),
		LoanID:            loanID,
		VersionNumber:     1,
		ChangeReason:      domain.ReasonInitialCreation,
		ChangeDescription: "Initial loan creation",
		EffectiveFrom:     now,
		IsCurrent:         true,
		CreatedAt:         now,
		Terms:             terms,
		Schedule:          sched,
		KFS:               buildKFS(loanID, 1, terms, sched),
	}

	loan := &domain.Loan{ID: loanID, Status: domain.LoanStatusActive}
	terms.ApplyToLoan(loan)

	if err := s.loanRepo.Create(ctx, loan, version); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.log.Infow("loan created", "loan_id", loanID, "principal", terms.Principal, "tenure_months", terms.TenureMonths)
	return &domain.CreateLoanResponse{Loan: loan, Version: version}, nil
}

// EditLoan applies changed terms as a new version with a full schedule
// regeneration.
func (s *LoanService) EditLoan(ctx context.Context, loanID uuid.UUID, req *domain.EditLoanRequest) (*domain.LoanVersion, error) {
	reason := domain.NormalizeChangeReason(req.ChangeReason)
	effectiveFrom := time.Now()
	if req.EffectiveFrom != nil {
		effectiveFrom = *req.EffectiveFrom
	}

	changes := make([]string, 0, 4)
	benchmark := ""
	if req.AnnualRate != nil {
		changes = append(changes, fmt.Sprintf("annual_rate -> %s", req.AnnualRate))
	}
	if req.TenureMonths != nil {
		changes = append(changes, fmt.Sprintf("tenure_months -> %d", *req.TenureMonths))
	}
	if req.Spread != nil {
		changes = append(changes, fmt.Sprintf("spread -> %s", req.Spread))
	}
	if req.BenchmarkName != nil {
		benchmark = domain.NormalizeBenchmarkName(*req.BenchmarkName)
		if !domain.ValidBenchmarkName(benchmark) {
			return nil, customError.WrapValidationf("invalid benchmark name %q", *req.BenchmarkName)
		}
		changes = append(changes, fmt.Sprintf("benchmark -> %s", benchmark))
	}
	if req.FloatingStrategy != nil {
		changes = append(changes, fmt.Sprintf("floating_strategy -> %s", *req.FloatingStrategy))
	}
	if req.Status != nil {
		changes = append(changes, fmt.Sprintf("status -> %s", *req.Status))
	}
	if len(changes) == 0 {
		return nil, customError.WrapValidation("no changed terms supplied")
	}

	// Recorded change set doubles as the description when none given; it is
	// resolved here so the persisted version carries it too.
	description := req.ChangeDescription
	if description == "" {
		description = "Changed " + strings.Join(changes, "; ")
	}

	mutate := func(terms *domain.LoanTerms) error {
		if req.AnnualRate != nil {
			terms.AnnualRate = *req.AnnualRate
		}
		if req.TenureMonths != nil {
			terms.TenureMonths = *req.TenureMonths
		}
		if req.Spread != nil {
			terms.Spread = *req.Spread
		}
		if req.BenchmarkName != nil {
			terms.BenchmarkName = benchmark
		}
		if req.FloatingStrategy != nil {
			terms.FloatingStrategy = domain.FloatingStrategy(*req.FloatingStrategy)
		}
		if req.Status != nil {
			terms.Status = domain.LoanStatus(*req.Status)
		}
		return nil
	}

	return s.appendVersion(ctx, loanID, reason, description, effectiveFrom, nil, mutate, nil)
}

// AddCharge attaches a fee and reversions the loan, since recurring charges
// change the APR disclosure.
func (s *LoanService) AddCharge(ctx context.Context, loanID uuid.UUID, req domain.ChargeRequest) (*domain.LoanVersion, error) {
	if req.Amount.Sign() <= 0 {
		return nil, customError.WrapValidation("charge amount must be positive")
	}
	mutate := func(terms *domain.LoanTerms) error {
		terms.Charges = append(terms.Charges, req.ToDomain())
		return nil
	}
	desc := fmt.Sprintf("Added charge %s of %s", req.ChargeType, req.Amount)
	return s.appendVersion(ctx, loanID, domain.ReasonTermModification, desc, time.Now(), nil, mutate, nil)
}

// AddDisbursementPhase appends a tranche to the disbursement plan.
func (s *LoanService) AddDisbursementPhase(ctx context.Context, loanID uuid.UUID, req domain.DisbursementPhaseRequest) (*domain.LoanVersion, error) {
	if req.Amount.Sign() <= 0 {
		return nil, customError.WrapValidation("disbursement amount must be positive")
	}
	mutate := func(terms *domain.LoanTerms) error {
		terms.Phases = append(terms.Phases, req.ToDomain())
		return nil
	}
	desc := fmt.Sprintf("Added disbursement phase %d of %s", req.Sequence, req.Amount)
	return s.appendVersion(ctx, loanID, domain.ReasonTermModification, desc, time.Now(), nil, mutate, nil)
}

// UpdateDisbursementPhase edits a pending tranche. Disbursed tranches are
// immutable.
func (s *LoanService) UpdateDisbursementPhase(ctx context.Context, loanID uuid.UUID, req domain.DisbursementPhaseRequest) (*domain.LoanVersion, error) {
	mutate := func(terms *domain.LoanTerms) error {
		for i, p := range terms.Phases {
			if p.Sequence != req.Sequence {
				continue
			}
			if p.Disbursed(time.Now()) {
				return customError.NewBusinessError(customError.ErrCodeValidation,
					fmt.Sprintf("disbursement phase %d is already disbursed and cannot be edited", p.Sequence),
					customError.ErrPhaseDisbursed)
			}
			terms.Phases[i] = req.ToDomain()
			return nil
		}
		return customError.WrapValidationf("disbursement phase %d does not exist", req.Sequence)
	}
	desc := fmt.Sprintf("Edited disbursement phase %d", req.Sequence)
	return s.appendVersion(ctx, loanID, domain.ReasonManualCorrection, desc, time.Now(), nil, mutate, nil)
}

// AddMoratorium attaches a moratorium window; overlap is rejected by the
// resolver during regeneration.
func (s *LoanService) AddMoratorium(ctx context.Context, loanID uuid.UUID, req domain.MoratoriumRequest) (*domain.LoanVersion, error) {
	mutate := func(terms *domain.LoanTerms) error {
		terms.Moratoriums = append(terms.Moratoriums, req.ToDomain())
		return nil
	}
	desc := fmt.Sprintf("Added %s moratorium for months %d-%d", req.Type, req.StartMonth, req.EndMonth)
	return s.appendVersion(ctx, loanID, domain.ReasonCustomerRequest, desc, time.Now(), nil, mutate, nil)
}

// RecordPrepayment reduces outstanding principal as of the payment date and
// regenerates the remaining schedule. The rate never changes; tenure
// shortens by default, EMI reduces when the loan is configured so.
func (s *LoanService) RecordPrepayment(ctx context.Context, loanID uuid.UUID, req domain.PrepaymentRequest) (*domain.LoanVersion, error) {
	if req.Amount.Sign() <= 0 {
		return nil, customError.WrapValidation("prepayment amount must be positive")
	}

	reason := domain.ReasonCustomerRequest
	if req.Reason != "" {
		reason = domain.NormalizeChangeReason(req.Reason)
	}

	prepay := domain.Prepayment{Amount: req.Amount, Date: req.Date, Description: req.Description}
	mutate := func(terms *domain.LoanTerms) error {
		terms.Prepayments = append(terms.Prepayments, prepay)
		return nil
	}
	build := func(terms domain.LoanTerms, current *domain.LoanVersion) (*domain.RepaymentSchedule, error) {
		return s.buildPrepaymentSchedule(terms, current.Schedule, req.Amount, req.Date)
	}

	desc := req.Description
	if desc == "" {
		desc = fmt.Sprintf("Prepayment of %s on %s", req.Amount, req.Date.Format("2006-01-02"))
	}
	return s.appendVersion(ctx, loanID, reason, desc, req.Date, nil, mutate, build)
}

// ApplyBenchmarkReset recomputes a floating loan's schedule for a new
// benchmark rate. Idempotent per (loan, effective date): a reset already
// reflected by a version is reported as not applied, without error.
func (s *LoanService) ApplyBenchmarkReset(ctx context.Context, loanID uuid.UUID, benchmarkName string, benchmarkRate decimal.Decimal, effectiveDate time.Time) (*domain.LoanVersion, bool, error) {
	guard := func(ctx context.Context) error {
		exists, err := s.versionRepo.HasBenchmarkReset(ctx, loanID, effectiveDate)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		if exists {
			return errAlreadyApplied
		}
		return nil
	}

	var newRate decimal.Decimal
	mutate := func(terms *domain.LoanTerms) error {
		if terms.RateType != domain.RateFloating {
			return customError.WrapValidation("cannot apply benchmark rate to a fixed rate loan")
		}
		if terms.BenchmarkName != benchmarkName {
			return customError.WrapValidationf("loan tracks benchmark %s, not %s", terms.BenchmarkName, benchmarkName)
		}
		newRate = benchmarkRate.Add(terms.Spread)
		terms.AnnualRate = newRate
		return nil
	}
	build := func(terms domain.LoanTerms, current *domain.LoanVersion) (*domain.RepaymentSchedule, error) {
		return s.buildResetSchedule(terms, current.Schedule, newRate, effectiveDate)
	}

	desc := fmt.Sprintf("Benchmark %s reset; effective rate %s%%", benchmarkName, benchmarkRate)
	version, err := s.appendVersion(ctx, loanID, domain.ReasonBenchmarkChange, desc, effectiveDate, guard, mutate, build)
	if errors.Is(err, errAlreadyApplied) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return version, true, nil
}

// GetLoan returns the loan aggregate row.
func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

// ListLoans returns all loans.
func (s *LoanService) ListLoans(ctx context.Context) ([]*domain.Loan, error) {
	loans, err := s.loanRepo.List(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}

// GetCurrent returns the loan's current version, cache-first.
func (s *LoanService) GetCurrent(ctx context.Context, loanID uuid.UUID) (*domain.LoanVersion, error) {
	if cached := s.cachedCurrent(ctx, loanID); cached != nil {
		return cached, nil
	}

	version, err := s.versionRepo.GetCurrent(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	s.cacheCurrent(ctx, version)
	return version, nil
}

// GetVersion returns one immutable version of the loan's history.
func (s *LoanService) GetVersion(ctx context.Context, loanID uuid.UUID, versionNumber int) (*domain.LoanVersion, error) {
	version, err := s.versionRepo.GetByNumber(ctx, loanID, versionNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapVersionNotFound(loanID.String(), versionNumber)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return version, nil
}

// ListVersions returns the loan's full version history, newest first.
func (s *LoanService) ListVersions(ctx context.Context, loanID uuid.UUID) ([]*domain.LoanVersion, error) {
	versions, err := s.versionRepo.List(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if len(versions) == 0 {
		return nil, customError.WrapLoanNotFound(loanID.String())
	}
	return versions, nil
}

// GetSchedule returns the current version's repayment schedule.
func (s *LoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) (*domain.RepaymentSchedule, error) {
	version, err := s.GetCurrent(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return version.Schedule, nil
}

// appendVersion is the single choke point for all mutations: it serializes
// per loan, loads current state, applies the mutation, computes the new
// schedule and KFS, and appends the version atomically. No partially
// written version is ever observable.
func (s *LoanService) appendVersion(
	ctx context.Context,
	loanID uuid.UUID,
	reason domain.ChangeReason,
	description string,
	effectiveFrom time.Time,
	guard func(context.Context) error,
	mutate func(*domain.LoanTerms) error,
	build func(domain.LoanTerms, *domain.LoanVersion) (*domain.RepaymentSchedule, error),
) (*domain.LoanVersion, error) {
	release, ok := s.locks.acquire(loanID)
	if !ok {
		return nil, customError.WrapConflict(loanID.String())
	}
	defer release()

	if guard != nil {
		if err := guard(ctx); err != nil {
			return nil, err
		}
	}

	current, err := s.versionRepo.GetCurrent(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	terms := current.Terms
	if err := mutate(&terms); err != nil {
		return nil, err
	}
	if terms.Status == domain.LoanStatusClosed && current.Terms.Status == domain.LoanStatusClosed {
		return nil, customError.NewBusinessError(customError.ErrCodeValidation,
			fmt.Sprintf("loan %s is closed", loanID), customError.ErrLoanNotActive)
	}

	var sched *domain.RepaymentSchedule
	if build != nil {
		sched, err = build(terms, current)
	} else {
		sched, err = s.generate(terms)
	}
	if err != nil {
		return nil, err
	}

	next := current.VersionNumber + 1
	version := &domain.LoanVersion{
		ID:                uuid.New(),
		LoanID:            loanID,
		VersionNumber:     next,
		ChangeReason:      reason,
		ChangeDescription: description,
		EffectiveFrom:     effectiveFrom,
		IsCurrent:         true,
		CreatedAt:         time.Now(),
		Terms:             terms,
		Schedule:          sched,
		KFS:               buildKFS(loanID, next, terms, sched),
	}

	if err := s.versionRepo.Append(ctx, version); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.invalidateCurrent(ctx, loanID)
	s.log.Infow("loan version appended",
		"loan_id", loanID, "version", next, "reason", reason)
	return version, nil
}

func (s *LoanService) generate(terms domain.LoanTerms) (*domain.RepaymentSchedule, error) {
	return schedule.Generate(schedule.Input{
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
}

func (s *LoanService) termsFromCreateRequest(req *domain.CreateLoanRequest) (domain.LoanTerms, error) {
	var terms domain.LoanTerms

	if req.Principal.Sign() <= 0 {
		return terms, customError.WrapValidation("principal must be positive")
	}
	if req.AnnualRate.Sign() < 0 {
		return terms, customError.WrapValidation("annual rate must not be negative")
	}
	rateType := domain.RateType(req.RateType)

	benchmark := ""
	if rateType == domain.RateFloating {
		benchmark = domain.NormalizeBenchmarkName(req.BenchmarkName)
		if !domain.ValidBenchmarkName(benchmark) {
			return terms, customError.WrapValidation("floating loans require a valid benchmark name")
		}
		if req.FloatingStrategy == "" {
			return terms, customError.WrapValidation("floating loans require a floating strategy")
		}
	}

	prepayMode := domain.PrepaymentMode(req.PrepaymentMode)
	if prepayMode == "" {
		prepayMode = s.config.DefaultPrepaymentMode()
	}

	terms = domain.LoanTerms{
		CustomerID:             req.CustomerID,
		ProductType:            domain.ProductType(req.ProductType),
		Principal:              req.Principal,
		AnnualRate:             req.AnnualRate,
		TenureMonths:           req.TenureMonths,
		IssueDate:              utils.DateOnly(req.IssueDate),
		EMIStartDate:           utils.DateOnly(req.EMIStartDate),
		RateType:               rateType,
		Compounding:            domain.Compounding(req.Compounding),
		Status:                 domain.LoanStatusActive,
		BenchmarkName:          benchmark,
		Spread:                 req.Spread,
		FloatingStrategy:       domain.FloatingStrategy(req.FloatingStrategy),
		ResetPeriodicityMonths: req.ResetPeriodicityMonths,
		PrepaymentMode:         prepayMode,
	}
	for _, p := range req.Phases {
		terms.Phases = append(terms.Phases, p.ToDomain())
	}
	for _, c := range req.Charges {
		terms.Charges = append(terms.Charges, c.ToDomain())
	}
	for _, m := range req.Moratoriums {
		terms.Moratoriums = append(terms.Moratoriums, m.ToDomain())
	}
	return terms, nil
}

func buildKFS(loanID uuid.UUID, versionNumber int, terms domain.LoanTerms, sched *domain.RepaymentSchedule) *domain.KFSSnapshot {
	return &domain.KFSSnapshot{
		LoanID:        loanID,
		VersionNumber: versionNumber,
		ProductType:   terms.ProductType,
		Principal:     terms.Principal,
		AnnualRate:    terms.AnnualRate,
		RateType:      terms.RateType,
		TenureMonths:  terms.TenureMonths,
		BenchmarkName: terms.BenchmarkName,
		Spread:        terms.Spread,
		EMI:           sched.EMI,
		APR:           sched.APR,
		TotalPayable:  sched.TotalPayable,
		TotalInterest: sched.TotalInterest,
		Charges:       terms.Charges,
		GeneratedAt:   time.Now(),
	}
}

func (s *LoanService) currentCacheKey(loanID uuid.UUID) string {
	return fmt.Sprintf("loan:%s:current", loanID)
}

func (s *LoanService) cachedCurrent(ctx context.Context, loanID uuid.UUID) *domain.LoanVersion {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, s.currentCacheKey(loanID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warnw("current version cache read failed", "loan_id", loanID, "error", err)
		}
		return nil
	}
	var version domain.LoanVersion
	if err := json.Unmarshal(raw, &version); err != nil {
		return nil
	}
	return &version
}

func (s *LoanService) cacheCurrent(ctx context.Context, version *domain.LoanVersion) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(version)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.currentCacheKey(version.LoanID), raw, s.config.Redis.CacheTTL).Err(); err != nil {
		s.log.Warnw("current version cache write failed", "loan_id", version.LoanID, "error", err)
	}
}

func (s *LoanService) invalidateCurrent(ctx context.Context, loanID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, s.currentCacheKey(loanID)).Err(); err != nil {
		s.log.Warnw("current version cache invalidation failed", "loan_id", loanID, "error", err)
	}
}
