package farmers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/notifications"
	"farmlink/platform/platform-backend/internal/users"
	"farmlink/platform/platform-backend/pkg/ens"
	"farmlink/platform/platform-backend/pkg/sanitize"
	"farmlink/platform/platform-backend/pkg/storage"
	"farmlink/platform/platform-backend/pkg/workflows"
)

const documentLinkTTL = 15 * time.Minute

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

type Service interface {
	Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*Application, error)
	GetMine(ctx context.Context, userID uuid.UUID) (*Application, error)
	List(ctx context.Context, status *ApplicationStatus) ([]Application, error)
	Review(ctx context.Context, reviewer, id uuid.UUID, req ReviewRequest) (*ReviewResult, error)
	DocumentLinks(ctx context.Context, id uuid.UUID) ([]DocumentLink, error)
}

// Accounts is the slice of the users service vetting needs
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

type Config struct {
	Bucket          string
	ENSParent       string
	MaxDocumentSize int64
	MaxDocuments    int
}

type farmerService struct {
	repo     Repository
	accounts Accounts
	objects  storage.S3Client
	ipfs     storage.IPFSClient
	notifier notifications.Publisher
	workflow *workflows.StateMachine
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, accounts Accounts, objects storage.S3Client, ipfs storage.IPFSClient, notifier notifications.Publisher, cfg Config, logger *zap.Logger) Service {
	return &farmerService{
		repo:     repo,
		accounts: accounts,
		objects:  objects,
		ipfs:     ipfs,
		notifier: notifier,
		workflow: workflows.NewApplicationStateMachine(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *farmerService) validate(req *SubmitRequest) error {
	req.Name = sanitize.Text(req.Name)
	req.Bio = sanitize.Text(req.Bio)
	req.FarmLocation = sanitize.Text(req.FarmLocation)

	if n := sanitize.Length(req.Name); n < 2 || n > 100 {
		return apperr.Validation("name must be between 2 and 100 characters")
	}
	if sanitize.Length(req.Bio) > 1000 {
		return apperr.Validation("bio must be at most 1000 characters")
	}
	if req.FarmLocation == "" {
		return apperr.Validation("farm location is required")
	}
	if len(req.Documents) == 0 {
		return apperr.Validation("at least one document is required")
	}
	if len(req.Documents) > s.cfg.MaxDocuments {
		return apperr.Validation("at most %d documents may be attached", s.cfg.MaxDocuments)
	}
	for _, d := range req.Documents {
		if d.Size <= 0 || d.Size > s.cfg.MaxDocumentSize {
			return apperr.Validation("document %q must be between 1 byte and %d bytes", d.Name, s.cfg.MaxDocumentSize)
		}
		if !allowedContentTypes[d.ContentType] {
			return apperr.Validation("document %q has unsupported type %q", d.Name, d.ContentType)
		}
	}
	return nil
}

func (s *farmerService) Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*Application, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	user, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsVetted {
		return nil, apperr.New(apperr.ErrConflict, "user is already a vetted farmer")
	}
	active, err := s.repo.HasActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.New(apperr.ErrConflict, "an application is already pending or approved")
	}

	now := s.now()
	app := &Application{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         req.Name,
		Bio:          req.Bio,
		FarmLocation: req.FarmLocation,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	m := manifest{ApplicationID: app.ID, UserID: userID, CreatedAt: now}
	for i, d := range req.Documents {
		key, entry, err := s.storeDocument(ctx, app, i, d)
		if err != nil {
			s.cleanup(ctx, app, "")
			return nil, err
		}
		app.DocumentKeys = append(app.DocumentKeys, key)
		m.Documents = append(m.Documents, entry)
	}

	body, err := json.Marshal(m)
	if err != nil {
		s.cleanup(ctx, app, "")
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestCID, err := s.ipfs.PinFile(ctx, "manifest.json", bytes.NewReader(body))
	if err != nil {
		s.cleanup(ctx, app, "")
		return nil, fmt.Errorf("failed to pin manifest: %w", err)
	}
	app.DocumentCID = manifestCID

	if err := s.repo.Create(ctx, app); err != nil {
		s.cleanup(ctx, app, manifestCID)
		return nil, err
	}

	s.logger.Info("Farmer application submitted",
		zap.String("application_id", app.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("document_cid", manifestCID),
		zap.Int("documents", len(app.DocumentKeys)))
	return app, nil
}

func (s *farmerService) storeDocument(ctx context.Context, app *Application, i int, d DocumentUpload) (string, manifestEntry, error) {
	data, err := io.ReadAll(io.LimitReader(d.Body, s.cfg.MaxDocumentSize+1))
	if err != nil {
		return "", manifestEntry{}, fmt.Errorf("failed to read document: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxDocumentSize {
		return "", manifestEntry{}, apperr.Validation("document %q exceeds %d bytes", d.Name, s.cfg.MaxDocumentSize)
	}

	name := unsafeFileChars.ReplaceAllString(path.Base(d.Name), "_")
	if name == "" || name == "." || name == "_" {
		name = fmt.Sprintf("document-%d", i+1)
	}
	key := fmt.Sprintf("applications/%s/%s/%02d-%s", app.UserID, app.ID, i+1, name)

	if err := s.objects.Upload(ctx, s.cfg.Bucket, key, d.ContentType, bytes.NewReader(data)); err != nil {
		return "", manifestEntry{}, fmt.Errorf("failed to store document: %w", err)
	}

	sum := sha256.Sum256(data)
	return key, manifestEntry{
		Name:        name,
		ContentType: d.ContentType,
		Size:        int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
	}, nil
}

// cleanup removes what a failed submission already wrote
func (s *farmerService) cleanup(ctx context.Context, app *Application, manifestCID string) {
	for _, key := range app.DocumentKeys {
		if err := s.objects.Delete(ctx, s.cfg.Bucket, key); err != nil {
			s.logger.Warn("Failed to remove orphaned document", zap.String("key", key), zap.Error(err))
		}
	}
	if manifestCID != "" {
		if err := s.ipfs.UnpinFile(ctx, manifestCID); err != nil {
			s.logger.Warn("Failed to unpin orphaned manifest", zap.String("cid", manifestCID), zap.Error(err))
		}
	}
}

func (s *farmerService) GetMine(ctx context.Context, userID uuid.UUID) (*Application, error) {
	return s.repo.GetLatestByUser(ctx, userID)
}

func (s *farmerService) List(ctx context.Context, status *ApplicationStatus) ([]Application, error) {
	if status != nil {
		switch *status {
		case StatusPending, StatusApproved, StatusRejected:
		default:
			return nil, apperr.Validation("unknown status %q", *status)
		}
	}
	apps, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []Application{}
	}
	return apps, nil
}

func (s *farmerService) Review(ctx context.Context, reviewer, id uuid.UUID, req ReviewRequest) (*ReviewResult, error) {
	var target ApplicationStatus
	switch req.Decision {
	case DecisionApprove:
		target = StatusApproved
	case DecisionReject:
		target = StatusRejected
	default:
		return nil, apperr.Validation("decision must be approve or reject")
	}
	note := sanitize.Text(req.Note)
	if target == StatusRejected && note == "" {
		return nil, apperr.Validation("a note is required when rejecting")
	}

	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.workflow.Transition(string(app.Status), string(target)); err != nil {
		return nil, apperr.New(apperr.ErrConflict, "%s", err.Error())
	}

	applicant, err := s.accounts.GetByID(ctx, app.UserID)
	if err != nil {
		return nil, err
	}

	result := &ReviewResult{}
	if target == StatusApproved {
		name, err := ens.FarmerName(applicant.WalletAddress, s.cfg.ENSParent)
		if err != nil {
			return nil, fmt.Errorf("failed to derive ENS name: %w", err)
		}
		result.ENSName = name
		result.ENSNode = ens.NamehashHex(name)
	}

	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	var updated *Application
	if target == StatusApproved {
		updated, err = s.repo.Approve(ctx, id, app.Status, notePtr, reviewer, s.now(), result.ENSName)
	} else {
		updated, err = s.repo.UpdateReview(ctx, id, app.Status, target, notePtr, reviewer, s.now())
	}
	if err != nil {
		return nil, err
	}
	result.Application = updated

	s.logger.Info("Farmer application reviewed",
		zap.String("application_id", id.String()),
		zap.String("decision", string(req.Decision)),
		zap.String("reviewer", reviewer.String()))
	s.notifyApplicant(ctx, updated, result.ENSName)
	return result, nil
}

func (s *farmerService) notifyApplicant(ctx context.Context, app *Application, ensName string) {
	msg := notifications.Message{UserID: app.UserID, Data: map[string]interface{}{"application_id": app.ID.String()}}
	if app.Status == StatusApproved {
		msg.Kind = notifications.KindApplicationApproved
		msg.Title = "Farmer application approved"
		msg.Body = fmt.Sprintf("You are now a vetted farmer as %s. You can create funding projects.", ensName)
		msg.Data["ens_name"] = ensName
	} else {
		msg.Kind = notifications.KindApplicationRejected
		msg.Title = "Farmer application rejected"
		msg.Body = "Your application was not approved."
		if app.ReviewNote != nil {
			msg.Body += " Reason: " + *app.ReviewNote
		}
	}
	if err := s.notifier.Publish(ctx, msg); err != nil {
		s.logger.Warn("Failed to notify applicant", zap.String("application_id", app.ID.String()), zap.Error(err))
	}
}

func (s *farmerService) DocumentLinks(ctx context.Context, id uuid.UUID) ([]DocumentLink, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	links := make([]DocumentLink, 0, len(app.DocumentKeys))
	expires := s.now().Add(documentLinkTTL)
	for _, key := range app.DocumentKeys {
		url, err := s.objects.GetPresignedURL(ctx, s.cfg.Bucket, key, documentLinkTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to sign document link: %w", err)
		}
		links = append(links, DocumentLink{Key: strings.TrimPrefix(key, "applications/"), URL: url, ExpiresAt: expires})
	}
	return links, nil
}
