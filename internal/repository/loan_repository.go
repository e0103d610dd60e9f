package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mybank/loan-engine/internal/domain"
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

const loanColumns = `
	id, customer_id, product_type, principal, annual_rate, tenure_months,
	issue_date, emi_start_date, rate_type, compounding, status,
	benchmark_name, spread, floating_strategy, reset_periodicity_months,
	prepayment_mode, current_version, created_at, updated_at
`

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan, initial *domain.LoanVersion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	loan.CreatedAt = now
	loan.UpdatedAt = now
	loan.CurrentVersion = initial.VersionNumber

	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = tx.ExecContext(ctx, query,
		loan.ID,
		loan.CustomerID,
		loan.ProductType,
		loan.Principal,
		loan.AnnualRate,
		loan.TenureMonths,
		loan.IssueDate,
		loan.EMIStartDate,
		loan.RateType,
		loan.Compounding,
		loan.Status,
		loan.BenchmarkName,
		loan.Spread,
		loan.FloatingStrategy,
		loan.ResetPeriodicityMonths,
		loan.PrepaymentMode,
		loan.CurrentVersion,
		loan.CreatedAt,
		loan.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err = insertVersion(ctx, tx, initial); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, id); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans ORDER BY created_at`

	var loans []*domain.Loan
	if err := r.db.SelectContext(ctx, &loans, query); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *loanRepository) ActiveFloating(ctx context.Context) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = $1 AND rate_type = $2
		ORDER BY created_at
	`

	var loans []*domain.Loan
	if err := r.db.SelectContext(ctx, &loans, query, domain.LoanStatusActive, domain.RateFloating); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *loanRepository) ActiveFloatingByBenchmark(ctx context.Context, benchmarkName string) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = $1 AND rate_type = $2 AND benchmark_name = $3
		ORDER BY created_at
	`

	var loans []*domain.Loan
	if err := r.db.SelectContext(ctx, &loans, query, domain.LoanStatusActive, domain.RateFloating, benchmarkName); err != nil {
		return nil, err
	}
	return loans, nil
}
