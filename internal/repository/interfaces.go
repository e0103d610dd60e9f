package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mybank/loan-engine/internal/domain"
)

// LoanRepository defines the interface for loan aggregate data operations
type LoanRepository interface {
	// Create inserts the loan row together with its initial version in one
	// transaction
	Create(ctx context.Context, loan *domain.Loan, initial *domain.LoanVersion) error

	// GetByID retrieves a loan by its identifier
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// List retrieves all loans
	List(ctx context.Context) ([]*domain.Loan, error)

	// ActiveFloating retrieves all ACTIVE loans with FLOATING rate type
	ActiveFloating(ctx context.Context) ([]*domain.Loan, error)

	// ActiveFloatingByBenchmark retrieves ACTIVE floating loans referencing
	// the benchmark
	ActiveFloatingByBenchmark(ctx context.Context, benchmarkName string) ([]*domain.Loan, error)
}

// VersionRepository defines the interface for the append-only version store
type VersionRepository interface {
	// Append atomically inserts the version, repoints "current" and syncs
	// the loan row's scalar terms. The version must be fully computed.
	Append(ctx context.Context, version *domain.LoanVersion) error

	// GetCurrent retrieves the version marked current for the loan
	GetCurrent(ctx context.Context, loanID uuid.UUID) (*domain.LoanVersion, error)

	// GetByNumber retrieves a specific version of the loan
	GetByNumber(ctx context.Context, loanID uuid.UUID, versionNumber int) (*domain.LoanVersion, error)

	// List retrieves all versions of the loan, newest first
	List(ctx context.Context, loanID uuid.UUID) ([]*domain.LoanVersion, error)

	// HasBenchmarkReset reports whether a BENCHMARK_CHANGE version already
	// exists for the loan effective on the given date
	HasBenchmarkReset(ctx context.Context, loanID uuid.UUID, effectiveDate time.Time) (bool, error)
}

// BenchmarkRepository defines the interface for benchmark rate history
type BenchmarkRepository interface {
	// InsertRate appends an entry to the benchmark's history
	InsertRate(ctx context.Context, rate *domain.BenchmarkRate) error

	// LatestAsOf retrieves the entry governing asOf: latest effective date
	// not after asOf, ties broken by creation timestamp
	LatestAsOf(ctx context.Context, benchmarkName string, asOf time.Time) (*domain.BenchmarkRate, error)

	// History retrieves the full ordered history, newest first
	History(ctx context.Context, benchmarkName string) ([]domain.BenchmarkRate, error)

	// Names retrieves all distinct benchmark names
	Names(ctx context.Context) ([]string, error)
}
