package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"farmlink/platform/platform-backend/internal/apperr"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByAddress(ctx context.Context, address string) (*User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error)
	Upsert(ctx context.Context, address string) (*User, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email *string) (*User, error)
	SetRole(ctx context.Context, id uuid.UUID, role Role) (*User, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) get(ctx context.Context, query string, args ...interface{}) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, "SELECT * FROM users WHERE id = $1", id)
}

func (r *postgresRepository) GetByAddress(ctx context.Context, address string) (*User, error) {
	return r.get(ctx, "SELECT * FROM users WHERE wallet_address = $1", address)
}

func (r *postgresRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM users WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	var out []User
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...)
	return out, err
}

// Upsert creates the user on first login and returns the stored row either way
func (r *postgresRepository) Upsert(ctx context.Context, address string) (*User, error) {
	query := `
		INSERT INTO users (id, wallet_address)
		VALUES ($1, $2)
		ON CONFLICT (wallet_address) DO UPDATE SET updated_at = NOW()
		RETURNING *`
	return r.get(ctx, query, uuid.New(), address)
}

func (r *postgresRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email *string) (*User, error) {
	return r.get(ctx, "UPDATE users SET email = $2, updated_at = NOW() WHERE id = $1 RETURNING *", id, email)
}

// SetRole only applies while the user is not vetted
func (r *postgresRepository) SetRole(ctx context.Context, id uuid.UUID, role Role) (*User, error) {
	u, err := r.get(ctx, `
		UPDATE users SET role = $2, updated_at = NOW()
		WHERE id = $1 AND is_vetted = FALSE
		RETURNING *`, id, role)
	if errors.Is(err, apperr.ErrNotFound) {
		if _, lookupErr := r.GetByID(ctx, id); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, apperr.New(apperr.ErrConflict, "vetted farmers cannot change role")
	}
	return u, err
}
