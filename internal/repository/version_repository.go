package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mybank/loan-engine/internal/domain"
)

type versionRepository struct {
	db *sqlx.DB
}

func NewVersionRepository(db *sqlx.DB) VersionRepository {
	return &versionRepository{db: db}
}

// versionRow is the flat row shape; terms, schedule and KFS travel as jsonb.
// Versions are immutable, so the schedule is stored whole rather than as
// updatable per-installment rows.
type versionRow struct {
	ID                uuid.UUID `db:"id"`
	LoanID            uuid.UUID `db:"loan_id"`
	VersionNumber     int       `db:"version_number"`
	ChangeReason      string    `db:"change_reason"`
	ChangeDescription string    `db:"change_description"`
	EffectiveFrom     time.Time `db:"effective_from"`
	IsCurrent         bool      `db:"is_current"`
	CreatedAt         time.Time `db:"created_at"`
	Terms             []byte    `db:"terms"`
	Schedule          []byte    `db:"schedule"`
	KFS               []byte    `db:"kfs"`
}

const versionColumns = `
	id, loan_id, version_number, change_reason, change_description,
	effective_from, is_current, created_at, terms, schedule, kfs
`

func (r *versionRepository) Append(ctx context.Context, version *domain.LoanVersion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	demote := `UPDATE loan_versions SET is_current = FALSE WHERE loan_id = $1 AND is_current`
	if _, err = tx.ExecContext(ctx, demote, version.LoanID); err != nil {
		return err
	}

	if err = insertVersion(ctx, tx, version); err != nil {
		return err
	}

	// Keep the loan row's scalar terms in sync with the new current version
	// so benchmark fan-out and status filters stay plain queries.
	sync := `
		UPDATE loans
		SET principal = $2, annual_rate = $3, tenure_months = $4, status = $5,
		    benchmark_name = $6, spread = $7, floating_strategy = $8,
		    reset_periodicity_months = $9, prepayment_mode = $10,
		    current_version = $11, updated_at = $12
		WHERE id = $1
	`
	t := version.Terms
	_, err = tx.ExecContext(ctx, sync,
		version.LoanID,
		t.Principal,
		t.AnnualRate,
		t.TenureMonths,
		t.Status,
		t.BenchmarkName,
		t.Spread,
		t.FloatingStrategy,
		t.ResetPeriodicityMonths,
		t.PrepaymentMode,
		version.VersionNumber,
		time.Now(),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *versionRepository) GetCurrent(ctx context.Context, loanID uuid.UUID) (*domain.LoanVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM loan_versions WHERE loan_id = $1 AND is_current`

	var row versionRow
	if err := r.db.GetContext(ctx, &row, query, loanID); err != nil {
		return nil, err
	}
	return fromRow(&row)
}

func (r *versionRepository) GetByNumber(ctx context.Context, loanID uuid.UUID, versionNumber int) (*domain.LoanVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM loan_versions WHERE loan_id = $1 AND version_number = $2`

	var row versionRow
	if err := r.db.GetContext(ctx, &row, query, loanID, versionNumber); err != nil {
		return nil, err
	}
	return fromRow(&row)
}

func (r *versionRepository) List(ctx context.Context, loanID uuid.UUID) ([]*domain.LoanVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM loan_versions
		WHERE loan_id = $1
		ORDER BY version_number DESC
	`

	var rows []versionRow
	if err := r.db.SelectContext(ctx, &rows, query, loanID); err != nil {
		return nil, err
	}

	versions := make([]*domain.LoanVersion, 0, len(rows))
	for i := range rows {
		v, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func (r *versionRepository) HasBenchmarkReset(ctx context.Context, loanID uuid.UUID, effectiveDate time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM loan_versions
			WHERE loan_id = $1 AND change_reason = $2 AND effective_from::date = $3::date
		)
	`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, loanID, domain.ReasonBenchmarkChange, effectiveDate)
	return exists, err
}

func insertVersion(ctx context.Context, tx *sqlx.Tx, version *domain.LoanVersion) error {
	terms, err := json.Marshal(version.Terms)
	if err != nil {
		return err
	}
	sched, err := json.Marshal(version.Schedule)
	if err != nil {
		return err
	}
	kfs, err := json.Marshal(version.KFS)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO loan_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.ExecContext(ctx, query,
		version.ID,
		version.LoanID,
		version.VersionNumber,
		version.ChangeReason,
		version.ChangeDescription,
		version.EffectiveFrom,
		version.IsCurrent,
		version.CreatedAt,
		terms,
		sched,
		kfs,
	)
	return err
}

func fromRow(row *versionRow) (*domain.LoanVersion, error) {
	v := &domain.LoanVersion{
		ID:                row.ID,
		LoanID:            row.LoanID,
		VersionNumber:     row.VersionNumber,
		ChangeReason:      domain.ChangeReason(row.ChangeReason),
		ChangeDescription: row.ChangeDescription,
		EffectiveFrom:     row.EffectiveFrom,
		IsCurrent:         row.IsCurrent,
		CreatedAt:         row.CreatedAt,
	}
	if err := json.Unmarshal(row.Terms, &v.Terms); err != nil {
		return nil, err
	}
	if len(row.Schedule) > 0 {
		if err := json.Unmarshal(row.Schedule, &v.Schedule); err != nil {
			return nil, err
		}
	}
	if len(row.KFS) > 0 {
		if err := json.Unmarshal(row.KFS, &v.KFS); err != nil {
			return nil, err
		}
	}
	return v, nil
}
