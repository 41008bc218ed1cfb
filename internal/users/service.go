package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/pkg/security"
)

type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]User, error)
	FindOrCreateByAddress(ctx context.Context, address string) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*User, error)
	SelectRole(ctx context.Context, id uuid.UUID, role Role) (*User, error)
}

type userService struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &userService{repo: repo, logger: logger}
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *userService) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]User, error) {
	list, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]User, len(list))
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}

func (s *userService) FindOrCreateByAddress(ctx context.Context, address string) (*User, error) {
	normalized, err := security.NormalizeAddress(address)
	if err != nil {
		return nil, apperr.Validation("invalid wallet address")
	}
	return s.repo.Upsert(ctx, normalized)
}

func (s *userService) UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*User, error) {
	var email *string
	if e := strings.TrimSpace(req.Email); e != "" {
		e = strings.ToLower(e)
		email = &e
	}
	return s.repo.UpdateEmail(ctx, id, email)
}

func (s *userService) SelectRole(ctx context.Context, id uuid.UUID, role Role) (*User, error) {
	if !role.Valid() {
		return nil, apperr.Validation("role must be farmer or investor")
	}
	u, err := s.repo.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User selected role", zap.String("user_id", id.String()), zap.String("role", string(role)))
	return u, nil
}

