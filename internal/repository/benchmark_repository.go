package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mybank/loan-engine/internal/domain"
)

type benchmarkRepository struct {
	db *sqlx.DB
}

func NewBenchmarkRepository(db *sqlx.DB) BenchmarkRepository {
	return &benchmarkRepository{db: db}
}

func (r *benchmarkRepository) InsertRate(ctx context.Context, rate *domain.BenchmarkRate) error {
	query := `
		INSERT INTO benchmark_rates (id, benchmark_name, rate, effective_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		rate.ID,
		rate.BenchmarkName,
		rate.Rate,
		rate.EffectiveDate,
		rate.CreatedAt,
	)
	return err
}

func (r *benchmarkRepository) LatestAsOf(ctx context.Context, benchmarkName string, asOf time.Time) (*domain.BenchmarkRate, error) {
	query := `
		SELECT id, benchmark_name, rate, effective_date, created_at
		FROM benchmark_rates
		WHERE benchmark_name = $1 AND effective_date <= $2
		ORDER BY effective_date DESC, created_at DESC
		LIMIT 1
	`

	var rate domain.BenchmarkRate
	if err := r.db.GetContext(ctx, &rate, query, benchmarkName, asOf); err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *benchmarkRepository) History(ctx context.Context, benchmarkName string) ([]domain.BenchmarkRate, error) {
	query := `
		SELECT id, benchmark_name, rate, effective_date, created_at
		FROM benchmark_rates
		WHERE benchmark_name = $1
		ORDER BY effective_date DESC, created_at DESC
	`

	var rates []domain.BenchmarkRate
	if err := r.db.SelectContext(ctx, &rates, query, benchmarkName); err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *benchmarkRepository) Names(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT benchmark_name FROM benchmark_rates ORDER BY benchmark_name`

	var names []string
	if err := r.db.SelectContext(ctx, &names, query); err != nil {
		return nil, err
	}
	return names, nil
}
