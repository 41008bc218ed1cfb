package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) user(args mock.Arguments) (*User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockRepository) GetByAddress(ctx context.Context, address string) (*User, error) {
	return m.user(m.Called(ctx, address))
}

func (m *MockRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockRepository) Upsert(ctx context.Context, address string) (*User, error) {
	return m.user(m.Called(ctx, address))
}

func (m *MockRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email *string) (*User, error) {
	return m.user(m.Called(ctx, id, email))
}

func (m *MockRepository) SetRole(ctx context.Context, id uuid.UUID, role Role) (*User, error) {
	return m.user(m.Called(ctx, id, role))
}

func TestFindOrCreateNormalizesAddress(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	want := &User{ID: uuid.New(), WalletAddress: "0xabcdef0123456789abcdef0123456789abcdef01"}
	repo.On("Upsert", ctx, "0xabcdef0123456789abcdef0123456789abcdef01").Return(want, nil)

	got, err := svc.FindOrCreateByAddress(ctx, "0xABCDEF0123456789abcdef0123456789ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	repo.AssertExpectations(t)
}

func TestFindOrCreateRejectsBadAddress(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, zap.NewNop())

	_, err := svc.FindOrCreateByAddress(context.Background(), "0x1234")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestSelectRole(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	id := uuid.New()

	_, err := svc.SelectRole(ctx, id, Role("admin"))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	investor := RoleInvestor
	repo.On("SetRole", ctx, id, RoleInvestor).Return(&User{ID: id, Role: &investor}, nil)
	u, err := svc.SelectRole(ctx, id, RoleInvestor)
	require.NoError(t, err)
	assert.True(t, u.HasRole(RoleInvestor))
	assert.Equal(t, "investor", u.RoleString())
}

func TestSelectRoleConflictForVettedFarmer(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	id := uuid.New()

	repo.On("SetRole", ctx, id, RoleInvestor).Return(nil, apperr.New(apperr.ErrConflict, "vetted farmers cannot change role"))
	_, err := svc.SelectRole(ctx, id, RoleInvestor)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestUpdateProfileClearsEmptyEmail(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	id := uuid.New()

	repo.On("UpdateEmail", ctx, id, (*string)(nil)).Return(&User{ID: id}, nil)
	_, err := svc.UpdateProfile(ctx, id, UpdateProfileRequest{Email: "  "})
	require.NoError(t, err)

	repo.On("UpdateEmail", ctx, id, mock.MatchedBy(func(e *string) bool {
		return e != nil && *e == "ama@example.com"
	})).Return(&User{ID: id}, nil)
	_, err = svc.UpdateProfile(ctx, id, UpdateProfileRequest{Email: " Ama@Example.com "})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestGetByIDsIndexesUsers(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	repo.On("GetByIDs", ctx, []uuid.UUID{a, b}).Return([]User{{ID: a}, {ID: b}}, nil)
	out, err := svc.GetByIDs(ctx, []uuid.UUID{a, b})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, b, out[b].ID)
}
