package projects

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ActivityRepository interface {
	Record(ctx context.Context, a *Activity) error
	List(ctx context.Context, projectID uuid.UUID, limit int) ([]Activity, error)
}

type gormActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository migrates the activity table and returns a repository over it
func NewActivityRepository(db *gorm.DB) (ActivityRepository, error) {
	if err := db.AutoMigrate(&Activity{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &gormActivityRepository{db: db}, nil
}

func (r *gormActivityRepository) Record(ctx context.Context, a *Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *gormActivityRepository) List(ctx context.Context, projectID uuid.UUID, limit int) ([]Activity, error) {
	var out []Activity
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func metadata(m map[string]interface{}) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
