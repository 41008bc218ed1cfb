package farmers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"farmlink/platform/platform-backend/internal/apperr"
)

const uniqueViolation = "23505"

type Repository interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*Application, error)
	GetLatestByUser(ctx context.Context, userID uuid.UUID) (*Application, error)
	HasActive(ctx context.Context, userID uuid.UUID) (bool, error)
	List(ctx context.Context, status *ApplicationStatus) ([]Application, error)
	UpdateReview(ctx context.Context, id uuid.UUID, from, to ApplicationStatus, note *string, reviewer uuid.UUID, at time.Time) (*Application, error)
	Approve(ctx context.Context, id uuid.UUID, from ApplicationStatus, note *string, reviewer uuid.UUID, at time.Time, ensName string) (*Application, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, app *Application) error {
	query := `
		INSERT INTO farmer_applications (
			id, user_id, name, bio, farm_location, document_cid, document_keys,
			status, created_at, updated_at
		) VALUES (
			:id, :user_id, :name, :bio, :farm_location, :document_cid, :document_keys,
			:status, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, app)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperr.New(apperr.ErrConflict, "an application is already pending or approved")
	}
	return err
}

func (r *postgresRepository) get(ctx context.Context, query string, args ...interface{}) (*Application, error) {
	var app Application
	err := r.db.GetContext(ctx, &app, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "application not found")
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	return r.get(ctx, "SELECT * FROM farmer_applications WHERE id = $1", id)
}

func (r *postgresRepository) GetLatestByUser(ctx context.Context, userID uuid.UUID) (*Application, error) {
	return r.get(ctx, "SELECT * FROM farmer_applications WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1", userID)
}

func (r *postgresRepository) HasActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM farmer_applications
			WHERE user_id = $1 AND status IN ('pending', 'approved')
		)`, userID)
	return exists, err
}

func (r *postgresRepository) List(ctx context.Context, status *ApplicationStatus) ([]Application, error) {
	var apps []Application
	var err error
	if status != nil {
		err = r.db.SelectContext(ctx, &apps, "SELECT * FROM farmer_applications WHERE status = $1 ORDER BY created_at ASC", *status)
	} else {
		err = r.db.SelectContext(ctx, &apps, "SELECT * FROM farmer_applications ORDER BY created_at DESC")
	}
	return apps, err
}

// UpdateReview applies a decision only if the application is still in from
func (r *postgresRepository) UpdateReview(ctx context.Context, id uuid.UUID, from, to ApplicationStatus, note *string, reviewer uuid.UUID, at time.Time) (*Application, error) {
	return updateReview(ctx, r.db, id, from, to, note, reviewer, at)
}

// Approve records the decision and vets the applicant in one transaction,
// so an application is never approved for a user who is not a farmer.
func (r *postgresRepository) Approve(ctx context.Context, id uuid.UUID, from ApplicationStatus, note *string, reviewer uuid.UUID, at time.Time, ensName string) (*Application, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	app, err := updateReview(ctx, tx, id, from, StatusApproved, note, reviewer, at)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET role = 'farmer', is_vetted = TRUE, ens_name = $2, updated_at = $3
		WHERE id = $1`, app.UserID, ensName, at)
	if err != nil {
		return nil, fmt.Errorf("failed to vet applicant: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, apperr.New(apperr.ErrNotFound, "applicant not found")
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return app, nil
}

func updateReview(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, from, to ApplicationStatus, note *string, reviewer uuid.UUID, at time.Time) (*Application, error) {
	var app Application
	err := sqlx.GetContext(ctx, q, &app, `
		UPDATE farmer_applications
		SET status = $3, review_note = $4, reviewed_by = $5, reviewed_at = $6, updated_at = $6
		WHERE id = $1 AND status = $2
		RETURNING *`, id, from, to, note, reviewer, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrConflict, "application was already reviewed")
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}
