package investments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"farmlink/platform/platform-backend/internal/apperr"
)

type Repository interface {
	// Pledge books inv against its project and returns the new pledged total.
	// It fails with a conflict when the project is closed, past its deadline
	// or the pledge would exceed the goal.
	Pledge(ctx context.Context, inv *Investment, now time.Time) (decimal.Decimal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Investment, error)
	ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]Investment, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Investment, error)
	// Claim marks the investment paid and books payout against escrow
	Claim(ctx context.Context, id, investorID uuid.UUID, payout decimal.Decimal, at time.Time) (*Investment, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Pledge(ctx context.Context, inv *Investment, now time.Time) (decimal.Decimal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	var pledged decimal.Decimal
	err = tx.GetContext(ctx, &pledged, `
		UPDATE projects SET total_pledged = total_pledged + $2, updated_at = NOW()
		WHERE id = $1 AND status = 'funding' AND funding_deadline > $3
		  AND total_pledged + $2 <= goal
		RETURNING total_pledged`, inv.ProjectID, inv.Amount, now)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, apperr.New(apperr.ErrConflict, "project is not accepting this pledge")
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to book pledge: %w", err)
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO investments (id, project_id, project_address, investor_id, investor_address, amount, claimed, claimed_amount, created_at)
		VALUES (:id, :project_id, :project_address, :investor_id, :investor_address, :amount, :claimed, :claimed_amount, :created_at)`, inv); err != nil {
		return decimal.Zero, fmt.Errorf("failed to insert investment: %w", err)
	}
	return pledged, tx.Commit()
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Investment, error) {
	var inv Investment
	err := r.db.GetContext(ctx, &inv, "SELECT * FROM investments WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "investment not found")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *postgresRepository) ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]Investment, error) {
	var out []Investment
	err := r.db.SelectContext(ctx, &out, "SELECT * FROM investments WHERE investor_id = $1 ORDER BY created_at DESC", investorID)
	return out, err
}

func (r *postgresRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]Investment, error) {
	var out []Investment
	err := r.db.SelectContext(ctx, &out, "SELECT * FROM investments WHERE project_id = $1 ORDER BY created_at ASC", projectID)
	return out, err
}

func (r *postgresRepository) Claim(ctx context.Context, id, investorID uuid.UUID, payout decimal.Decimal, at time.Time) (*Investment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var inv Investment
	err = tx.GetContext(ctx, &inv, `
		UPDATE investments SET claimed = TRUE, claimed_amount = $3, claimed_at = $4
		WHERE id = $1 AND investor_id = $2 AND claimed = FALSE
		RETURNING *`, id, investorID, payout, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrConflict, "investment already claimed")
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE projects SET total_claimed = total_claimed + $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('completed', 'failed')
		  AND total_pledged - total_released + total_repaid - total_claimed >= $2`, inv.ProjectID, payout)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.ErrConflict, "escrow balance cannot cover this claim yet")
	}
	return &inv, tx.Commit()
}
