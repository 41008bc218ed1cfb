package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"farmlink/platform/platform-backend/internal/apperr"
)

type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	GetByAddress(ctx context.Context, address string) (*Project, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Project, error)
	List(ctx context.Context, f Filter) ([]Project, int, error)
	ListExpiredFunding(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	InvestorIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error)

	// UpdateStatus moves a project from one of from to to. When fullyFunded is
	// set the move also requires total_pledged = goal. Returns false if no row matched.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, fullyFunded bool) (bool, error)
	AddRepayment(ctx context.Context, id, farmerID uuid.UUID, amount decimal.Decimal) (*Project, error)
	Outstanding(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)

	SubmitProof(ctx context.Context, projectID uuid.UUID, index int, proofCID, signature string, at time.Time) error
	RejectProof(ctx context.Context, projectID uuid.UUID, index int, note string) error
	ReleaseMilestone(ctx context.Context, projectID uuid.UUID, index int, signature string, at time.Time) (completed bool, err error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, p *Project) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO projects (
			id, address, title, description, farmer_id, farmer_address, farmer_ens,
			crop_type, location, farm_size, boundary, centroid_lon, centroid_lat, goal, total_pledged, total_released,
			total_repaid, total_claimed, min_investment, expected_roi, risk_level,
			funding_deadline, season_start, status, document_cid, created_at, updated_at
		) VALUES (
			:id, :address, :title, :description, :farmer_id, :farmer_address, :farmer_ens,
			:crop_type, :location, :farm_size, :boundary, :centroid_lon, :centroid_lat, :goal, :total_pledged, :total_released,
			:total_repaid, :total_claimed, :min_investment, :expected_roi, :risk_level,
			:funding_deadline, :season_start, :status, :document_cid, :created_at, :updated_at
		)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	for i := range p.Milestones {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO milestones (project_id, idx, description, percentage, amount, status)
			VALUES (:project_id, :idx, :description, :percentage, :amount, :status)`, &p.Milestones[i]); err != nil {
			return fmt.Errorf("failed to insert milestone %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (r *postgresRepository) getOne(ctx context.Context, query string, arg interface{}) (*Project, error) {
	var p Project
	err := r.db.GetContext(ctx, &p, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "project not found")
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachMilestones(ctx, []*Project{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	return r.getOne(ctx, "SELECT * FROM projects WHERE id = $1", id)
}

func (r *postgresRepository) GetByAddress(ctx context.Context, address string) (*Project, error) {
	return r.getOne(ctx, "SELECT * FROM projects WHERE address = $1", address)
}

func (r *postgresRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Project, error) {
	if len(ids) == 0 {
		return []Project{}, nil
	}
	query, args, err := sqlx.In("SELECT * FROM projects WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var out []Project
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, r.attachList(ctx, out)
}

func (r *postgresRepository) List(ctx context.Context, f Filter) ([]Project, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	argCount := 1

	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *f.Status)
		argCount++
	}
	if f.CropType != nil {
		where = append(where, fmt.Sprintf("crop_type = $%d", argCount))
		args = append(args, *f.CropType)
		argCount++
	}
	if f.FarmerID != nil {
		where = append(where, fmt.Sprintf("farmer_id = $%d", argCount))
		args = append(args, *f.FarmerID)
		argCount++
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", argCount, argCount, argCount))
		args = append(args, "%"+escapeLike(f.Search)+"%")
		argCount++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM projects WHERE "+clause, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT * FROM projects WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", clause, argCount, argCount+1)
	args = append(args, f.Limit, f.Offset)

	var out []Project
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, err
	}
	return out, total, r.attachList(ctx, out)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *postgresRepository) attachList(ctx context.Context, list []Project) error {
	ptrs := make([]*Project, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	return r.attachMilestones(ctx, ptrs)
}

func (r *postgresRepository) attachMilestones(ctx context.Context, list []*Project) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(list))
	byID := make(map[uuid.UUID]*Project, len(list))
	for i, p := range list {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Milestones = []Milestone{}
	}

	query, args, err := sqlx.In("SELECT * FROM milestones WHERE project_id IN (?) ORDER BY project_id, idx", ids)
	if err != nil {
		return err
	}
	var ms []Milestone
	if err := r.db.SelectContext(ctx, &ms, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load milestones: %w", err)
	}
	for _, m := range ms {
		if p, ok := byID[m.ProjectID]; ok {
			p.Milestones = append(p.Milestones, m)
		}
	}
	return nil
}

func (r *postgresRepository) ListExpiredFunding(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM projects
		WHERE status = 'funding' AND funding_deadline <= $1
		ORDER BY funding_deadline ASC`, now)
	return ids, err
}

func (r *postgresRepository) InvestorIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, "SELECT DISTINCT investor_id FROM investments WHERE project_id = $1", projectID)
	return ids, err
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, fullyFunded bool) (bool, error) {
	query, args, err := sqlx.In(`
		UPDATE projects SET status = ?, updated_at = NOW()
		WHERE id = ? AND status IN (?)`, to, id, from)
	if err != nil {
		return false, err
	}
	if fullyFunded {
		query += " AND total_pledged = goal"
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// outstandingExpr is what investors are owed on a completed project minus what was repaid
const outstandingExpr = `
	(SELECT COALESCE(SUM(i.amount + TRUNC(i.amount * p.expected_roi / 100)), 0)
	 FROM investments i WHERE i.project_id = p.id) - p.total_repaid`

func (r *postgresRepository) AddRepayment(ctx context.Context, id, farmerID uuid.UUID, amount decimal.Decimal) (*Project, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects p SET total_repaid = p.total_repaid + $3, updated_at = NOW()
		WHERE p.id = $1 AND p.farmer_id = $2 AND p.status = 'completed'
		  AND $3 <= `+outstandingExpr, id, farmerID, amount)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.ErrConflict, "repayment not accepted: project must be completed and amount within outstanding balance")
	}
	return r.GetByID(ctx, id)
}

func (r *postgresRepository) Outstanding(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := r.db.GetContext(ctx, &out, "SELECT "+outstandingExpr+" FROM projects p WHERE p.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, apperr.New(apperr.ErrNotFound, "project not found")
	}
	return out, err
}

// SubmitProof requires the project in progress, the milestone pending and every earlier milestone completed
func (r *postgresRepository) SubmitProof(ctx context.Context, projectID uuid.UUID, index int, proofCID, signature string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones m
		SET status = 'submitted', proof_cid = $3, farmer_signature = $4, submitted_at = $5, rejection_note = NULL
		WHERE m.project_id = $1 AND m.idx = $2 AND m.status = 'pending'
		  AND EXISTS (SELECT 1 FROM projects p WHERE p.id = m.project_id AND p.status = 'in-progress')
		  AND NOT EXISTS (
			SELECT 1 FROM milestones e
			WHERE e.project_id = m.project_id AND e.idx < m.idx AND e.status <> 'completed'
		  )`, projectID, index, proofCID, signature, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.ErrConflict, "milestone %d cannot accept proof", index)
	}
	return nil
}

func (r *postgresRepository) RejectProof(ctx context.Context, projectID uuid.UUID, index int, note string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones
		SET status = 'pending', rejection_note = $3, proof_cid = NULL, farmer_signature = NULL, submitted_at = NULL
		WHERE project_id = $1 AND idx = $2 AND status = 'submitted'`, projectID, index, note)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.ErrConflict, "milestone %d has no submitted proof", index)
	}
	return nil
}

// ReleaseMilestone completes the milestone, moves its amount to released and
// completes the project when no milestone is left
func (r *postgresRepository) ReleaseMilestone(ctx context.Context, projectID uuid.UUID, index int, signature string, at time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var amount decimal.Decimal
	err = tx.GetContext(ctx, &amount, `
		UPDATE milestones SET status = 'completed', admin_signature = $3, completed_at = $4
		WHERE project_id = $1 AND idx = $2 AND status = 'submitted'
		RETURNING amount`, projectID, index, signature, at)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperr.New(apperr.ErrConflict, "milestone %d has no submitted proof", index)
	}
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE projects SET total_released = total_released + $2, updated_at = NOW()
		WHERE id = $1 AND status = 'in-progress' AND total_released + $2 <= total_pledged`, projectID, amount)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, apperr.New(apperr.ErrConflict, "project is not in progress or escrow is insufficient")
	}

	var remaining int
	if err := tx.GetContext(ctx, &remaining, "SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status <> 'completed'", projectID); err != nil {
		return false, err
	}
	completed := remaining == 0
	if completed {
		if _, err := tx.ExecContext(ctx, "UPDATE projects SET status = 'completed', updated_at = NOW() WHERE id = $1", projectID); err != nil {
			return false, err
		}
	}
	return completed, tx.Commit()
}
