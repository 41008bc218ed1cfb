package farmers

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/notifications"
	"farmlink/platform/platform-backend/internal/testutil"
	"farmlink/platform/platform-backend/internal/users"
)

const manifestCID = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) app(args mock.Arguments) (*Application, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Application), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, app *Application) error {
	return m.Called(ctx, app).Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	return m.app(m.Called(ctx, id))
}

func (m *MockRepository) GetLatestByUser(ctx context.Context, userID uuid.UUID) (*Application, error) {
	return m.app(m.Called(ctx, userID))
}

func (m *MockRepository) HasActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, status *ApplicationStatus) ([]Application, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]Application), args.Error(1)
}

func (m *MockRepository) UpdateReview(ctx context.Context, id uuid.UUID, from, to ApplicationStatus, note *string, reviewer uuid.UUID, at time.Time) (*Application, error) {
	return m.app(m.Called(ctx, id, from, to, note, reviewer, at))
}

func (m *MockRepository) Approve(ctx context.Context, id uuid.UUID, from ApplicationStatus, note *string, reviewer uuid.UUID, at time.Time, ensName string) (*Application, error) {
	return m.app(m.Called(ctx, id, from, note, reviewer, at, ensName))
}

// MockAccounts is a mock implementation of the Accounts interface
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

type fixture struct {
	repo     *MockRepository
	accounts *MockAccounts
	objects  *testutil.MockS3Client
	ipfs     *testutil.MockIPFSClient
	notifier *testutil.Publisher
	svc      Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     new(MockRepository),
		accounts: new(MockAccounts),
		objects:  new(testutil.MockS3Client),
		ipfs:     new(testutil.MockIPFSClient),
		notifier: &testutil.Publisher{},
	}
	f.svc = NewService(f.repo, f.accounts, f.objects, f.ipfs, f.notifier, Config{
		Bucket:          "farmlink-docs",
		ENSParent:       "farmlink.eth",
		MaxDocumentSize: 1024,
		MaxDocuments:    3,
	}, zap.NewNop())
	return f
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		Name:         "Kwame <b>Mensah</b>",
		Bio:          "Cocoa farmer for 12 years",
		FarmLocation: "Ashanti, Ghana",
		Documents: []DocumentUpload{
			{Name: "../id card.pdf", ContentType: "application/pdf", Size: 11, Body: strings.NewReader("%PDF-1.4 id")},
		},
	}
}

func TestSubmitStoresDocumentsAndPinsManifest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	f.accounts.On("GetByID", ctx, userID).Return(&users.User{ID: userID}, nil)
	f.repo.On("HasActive", ctx, userID).Return(false, nil)
	f.objects.On("Upload", ctx, "farmlink-docs", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "applications/"+userID.String()+"/") && strings.HasSuffix(key, "/01-id_card.pdf")
	}), "application/pdf", mock.Anything).Return(nil)

	var manifestBody string
	f.ipfs.On("PinFile", ctx, "manifest.json", mock.Anything).Run(func(args mock.Arguments) {
		b, _ := io.ReadAll(args.Get(2).(io.Reader))
		manifestBody = string(b)
	}).Return(manifestCID, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*farmers.Application")).Return(nil)

	app, err := f.svc.Submit(ctx, userID, validRequest())
	require.NoError(t, err)
	assert.Equal(t, "Kwame Mensah", app.Name)
	assert.Equal(t, StatusPending, app.Status)
	assert.Equal(t, manifestCID, app.DocumentCID)
	assert.Len(t, app.DocumentKeys, 1)
	assert.Contains(t, manifestBody, `"sha256":"`)
	assert.Contains(t, manifestBody, `"name":"id_card.pdf"`)

	f.objects.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestSubmitValidation(t *testing.T) {
	cases := map[string]func(*SubmitRequest){
		"no documents":     func(r *SubmitRequest) { r.Documents = nil },
		"short name":       func(r *SubmitRequest) { r.Name = "<i>K</i>" },
		"missing location": func(r *SubmitRequest) { r.FarmLocation = "  " },
		"too large":        func(r *SubmitRequest) { r.Documents[0].Size = 4096 },
		"bad type":         func(r *SubmitRequest) { r.Documents[0].ContentType = "text/html" },
		"long bio":         func(r *SubmitRequest) { r.Bio = strings.Repeat("a", 1001) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			req := validRequest()
			mutate(&req)
			_, err := f.svc.Submit(context.Background(), uuid.New(), req)
			assert.True(t, errors.Is(err, apperr.ErrValidation), err)
		})
	}
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.accounts.On("GetByID", ctx, userID).Return(&users.User{ID: userID}, nil)
	f.repo.On("HasActive", ctx, userID).Return(true, nil)

	_, err := f.svc.Submit(ctx, userID, validRequest())
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	f.objects.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitCleansUpWhenPinFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.accounts.On("GetByID", ctx, userID).Return(&users.User{ID: userID}, nil)
	f.repo.On("HasActive", ctx, userID).Return(false, nil)
	f.objects.On("Upload", ctx, "farmlink-docs", mock.Anything, "application/pdf", mock.Anything).Return(nil)
	f.objects.On("Delete", ctx, "farmlink-docs", mock.Anything).Return(nil)
	f.ipfs.On("PinFile", ctx, "manifest.json", mock.Anything).Return("", errors.New("ipfs down"))

	_, err := f.svc.Submit(ctx, userID, validRequest())
	assert.Error(t, err)
	f.objects.AssertCalled(t, "Delete", ctx, "farmlink-docs", mock.Anything)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReviewApproveVetsFarmer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reviewer, appID, userID := uuid.New(), uuid.New(), uuid.New()
	address := "0xabcdef0123456789abcdef0123456789abcdef01"

	pending := &Application{ID: appID, UserID: userID, Status: StatusPending}
	approved := &Application{ID: appID, UserID: userID, Status: StatusApproved}
	f.repo.On("GetByID", ctx, appID).Return(pending, nil)
	f.accounts.On("GetByID", ctx, userID).Return(&users.User{ID: userID, WalletAddress: address}, nil)
	f.repo.On("Approve", ctx, appID, StatusPending, (*string)(nil), reviewer, mock.Anything, "farmer-abcdef.farmlink.eth").Return(approved, nil)

	result, err := f.svc.Review(ctx, reviewer, appID, ReviewRequest{Decision: DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, "farmer-abcdef.farmlink.eth", result.ENSName)
	assert.True(t, strings.HasPrefix(result.ENSNode, "0x"))
	assert.Len(t, result.ENSNode, 66)
	assert.Equal(t, []notifications.Kind{notifications.KindApplicationApproved}, f.notifier.Kinds())
	f.repo.AssertNotCalled(t, "UpdateReview", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewApproveFailureLeavesNoTrace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reviewer, appID, userID := uuid.New(), uuid.New(), uuid.New()

	f.repo.On("GetByID", ctx, appID).Return(&Application{ID: appID, UserID: userID, Status: StatusPending}, nil)
	f.accounts.On("GetByID", ctx, userID).Return(&users.User{ID: userID, WalletAddress: "0xabcdef0123456789abcdef0123456789abcdef01"}, nil)
	f.repo.On("Approve", ctx, appID, StatusPending, (*string)(nil), reviewer, mock.Anything, mock.Anything).
		Return(nil, errors.New("failed to vet applicant: connection reset"))

	result, err := f.svc.Review(ctx, reviewer, appID, ReviewRequest{Decision: DecisionApprove})
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, f.notifier.Kinds())
}

func TestReviewRejectRequiresNote(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Review(context.Background(), uuid.New(), uuid.New(), ReviewRequest{Decision: DecisionReject})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestReviewAlreadyReviewed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appID := uuid.New()
	f.repo.On("GetByID", ctx, appID).Return(&Application{ID: appID, Status: StatusRejected}, nil)

	_, err := f.svc.Review(ctx, uuid.New(), appID, ReviewRequest{Decision: DecisionApprove})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	f.repo.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewRejectNotifiesWithReason(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reviewer, appID, userID := uuid.New(), uuid.New(), uuid.New()
	note := "ID document unreadable"

	f.repo.On("GetByID", ctx, appID).Return(&Application{ID: appID, UserID: userID, Status: StatusPending}, nil)
	f.accounts.On("GetByID", ctx, userID).Return(&users.User{ID: userID, WalletAddress: "0xabcdef0123456789abcdef0123456789abcdef01"}, nil)
	f.repo.On("UpdateReview", ctx, appID, StatusPending, StatusRejected, mock.Anything, reviewer, mock.Anything).
		Return(&Application{ID: appID, UserID: userID, Status: StatusRejected, ReviewNote: &note}, nil)

	_, err := f.svc.Review(ctx, reviewer, appID, ReviewRequest{Decision: DecisionReject, Note: note})
	require.NoError(t, err)
	require.Len(t, f.notifier.Messages, 1)
	assert.Contains(t, f.notifier.Messages[0].Body, note)
	f.repo.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentLinks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appID := uuid.New()
	key := "applications/u/a/01-id.pdf"
	f.repo.On("GetByID", ctx, appID).Return(&Application{ID: appID, DocumentKeys: []string{key}}, nil)
	f.objects.On("GetPresignedURL", ctx, "farmlink-docs", key, documentLinkTTL).Return("https://s3/signed", nil)

	links, err := f.svc.DocumentLinks(ctx, appID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://s3/signed", links[0].URL)
	assert.Equal(t, "u/a/01-id.pdf", links[0].Key)
}
