package projects

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/notifications"
	"farmlink/platform/platform-backend/internal/users"
	"farmlink/platform/platform-backend/pkg/amount"
	"farmlink/platform/platform-backend/pkg/geospatial"
	"farmlink/platform/platform-backend/pkg/sanitize"
	"farmlink/platform/platform-backend/pkg/security"
	"farmlink/platform/platform-backend/pkg/storage"
	"farmlink/platform/platform-backend/pkg/workflows"
)

const (
	minFarmSizeAcres = 0.5
	defaultPageSize  = 20
	maxPageSize      = 100
)

type Service interface {
	Create(ctx context.Context, farmerID uuid.UUID, req CreateProjectRequest) (*Project, error)
	Get(ctx context.Context, id uuid.UUID) (*Project, error)
	Resolve(ctx context.Context, idOrAddress string) (*Project, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Project, error)
	List(ctx context.Context, f Filter) (*ListResult, error)
	Activity(ctx context.Context, id uuid.UUID, limit int) ([]Activity, error)

	CloseFunding(ctx context.Context, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, adminID, id uuid.UUID, reason string) (*Project, error)
	RecordRepayment(ctx context.Context, farmerID, id uuid.UUID, amt decimal.Decimal) (*RepaymentResult, error)
	SettleExpired(ctx context.Context) ([]SettlementOutcome, error)

	SubmitProof(ctx context.Context, farmerID, projectID uuid.UUID, index int, req SubmitProofRequest) (*Project, error)
	RejectProof(ctx context.Context, adminID, projectID uuid.UUID, index int, note string) (*Project, error)
	ReleaseMilestone(ctx context.Context, adminID, projectID uuid.UUID, index int) (*ReleaseResult, error)
}

// Accounts resolves the creating farmer
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// Notifier delivers user notifications and live project updates
type Notifier interface {
	notifications.Publisher
	notifications.ProjectBroadcaster
}

// Invalidator drops cached read models for the given users
type Invalidator interface {
	Invalidate(userIDs ...uuid.UUID)
}

// ReleaseSigner signs tranche release authorizations
type ReleaseSigner interface {
	Address() string
	SignMessage(msg string) (string, error)
}

type Config struct {
	MinGoal        decimal.Decimal
	MaxGoal        decimal.Decimal
	MinInvestment  decimal.Decimal
	MaxMilestones  int
	MaxFundingDays int
}

type projectService struct {
	repo       Repository
	activity   ActivityRepository
	accounts   Accounts
	notifier   Notifier
	cache      Invalidator
	addresses  *AddressDeriver
	signer     ReleaseSigner
	cfg        Config
	lifecycle  *workflows.StateMachine
	milestones *workflows.StateMachine
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(
	repo Repository,
	activity ActivityRepository,
	accounts Accounts,
	notifier Notifier,
	cache Invalidator,
	addresses *AddressDeriver,
	signer ReleaseSigner,
	cfg Config,
	logger *zap.Logger,
) Service {
	return &projectService{
		repo:       repo,
		activity:   activity,
		accounts:   accounts,
		notifier:   notifier,
		cache:      cache,
		addresses:  addresses,
		signer:     signer,
		cfg:        cfg,
		lifecycle:  workflows.NewProjectStateMachine(),
		milestones: workflows.NewMilestoneStateMachine(),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *projectService) validate(req *CreateProjectRequest, now time.Time) error {
	req.Title = sanitize.Text(req.Title)
	req.Description = sanitize.Text(req.Description)
	req.Location = sanitize.Text(req.Location)

	if n := sanitize.Length(req.Title); n < 3 || n > 120 {
		return apperr.Validation("title must be between 3 and 120 characters")
	}
	if n := sanitize.Length(req.Description); n == 0 || n > 1000 {
		return apperr.Validation("description must be between 1 and 1000 characters")
	}
	if !req.CropType.Valid() {
		return apperr.Validation("unknown crop type %q", req.CropType)
	}
	if req.Location == "" {
		return apperr.Validation("location is required")
	}

	if len(req.Boundary) > 0 && string(req.Boundary) != "null" {
		summary, err := geospatial.Summarize(req.Boundary)
		if err != nil {
			return apperr.Validation("invalid farm boundary: %v", err)
		}
		if req.FarmSize == nil {
			rounded := math.Round(summary.Acres*100) / 100
			req.FarmSize = &rounded
		}
		req.centroid = &summary.Centroid
	} else {
		req.Boundary = nil
	}
	if req.FarmSize == nil || *req.FarmSize < minFarmSizeAcres {
		return apperr.Validation("farm size must be at least %.1f acres", minFarmSizeAcres)
	}

	if err := amount.Validate(req.Goal); err != nil {
		return apperr.Validation("goal: %v", err)
	}
	if req.Goal.LessThan(s.cfg.MinGoal) || req.Goal.GreaterThan(s.cfg.MaxGoal) {
		return apperr.Validation("goal must be between %s and %s", s.cfg.MinGoal, s.cfg.MaxGoal)
	}
	if req.MinInvestment == nil {
		m := s.cfg.MinInvestment
		req.MinInvestment = &m
	}
	if err := amount.Validate(*req.MinInvestment); err != nil {
		return apperr.Validation("min investment: %v", err)
	}
	if req.MinInvestment.LessThan(s.cfg.MinInvestment) || req.MinInvestment.GreaterThan(req.Goal) {
		return apperr.Validation("min investment must be between %s and the goal", s.cfg.MinInvestment)
	}

	if req.ExpectedROI < 0 || req.ExpectedROI > 100 {
		return apperr.Validation("expected ROI must be between 0 and 100 percent")
	}
	if !req.RiskLevel.Valid() {
		return apperr.Validation("risk level must be low, medium or high")
	}

	if !req.FundingDeadline.After(now) {
		return apperr.Validation("funding deadline must be in the future")
	}
	if req.FundingDeadline.After(now.AddDate(0, 0, s.cfg.MaxFundingDays)) {
		return apperr.Validation("funding deadline must be within %d days", s.cfg.MaxFundingDays)
	}
	if req.SeasonStart.Before(req.FundingDeadline) {
		return apperr.Validation("season start must be on or after the funding deadline")
	}

	if len(req.Milestones) == 0 || len(req.Milestones) > s.cfg.MaxMilestones {
		return apperr.Validation("a project needs between 1 and %d milestones", s.cfg.MaxMilestones)
	}
	sum := 0
	for i := range req.Milestones {
		m := &req.Milestones[i]
		m.Description = sanitize.Text(m.Description)
		if m.Description == "" {
			return apperr.Validation("milestone %d needs a description", i)
		}
		if m.Percentage < 1 || m.Percentage > 100 {
			return apperr.Validation("milestone %d percentage must be between 1 and 100", i)
		}
		sum += m.Percentage
	}
	if sum != 100 {
		return apperr.Validation("milestone percentages must total 100, got %d", sum)
	}

	if req.DocumentCID != "" {
		cid, err := storage.ValidateCID(req.DocumentCID)
		if err != nil {
			return apperr.Validation("invalid document CID")
		}
		req.DocumentCID = cid
	}
	return nil
}

func (s *projectService) Create(ctx context.Context, farmerID uuid.UUID, req CreateProjectRequest) (*Project, error) {
	farmer, err := s.accounts.GetByID(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	if !farmer.IsVetted || !farmer.HasRole(users.RoleFarmer) {
		return nil, apperr.New(apperr.ErrForbidden, "only vetted farmers can create projects")
	}

	now := s.now().UTC()
	if err := s.validate(&req, now); err != nil {
		return nil, err
	}

	percents := make([]int, len(req.Milestones))
	for i, m := range req.Milestones {
		percents[i] = m.Percentage
	}
	tranches, err := amount.SplitByPercent(req.Goal, percents)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	id := uuid.New()
	p := &Project{
		ID:              id,
		Address:         s.addresses.Derive(id),
		Title:           req.Title,
		Description:     req.Description,
		FarmerID:        farmer.ID,
		FarmerAddress:   farmer.WalletAddress,
		CropType:        req.CropType,
		Location:        req.Location,
		FarmSize:        *req.FarmSize,
		Goal:            req.Goal,
		TotalPledged:    decimal.Zero,
		TotalReleased:   decimal.Zero,
		TotalRepaid:     decimal.Zero,
		TotalClaimed:    decimal.Zero,
		MinInvestment:   *req.MinInvestment,
		ExpectedROI:     req.ExpectedROI,
		RiskLevel:       req.RiskLevel,
		FundingDeadline: req.FundingDeadline.UTC(),
		SeasonStart:     req.SeasonStart.UTC(),
		Status:          StatusFunding,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if farmer.ENSName != nil {
		p.FarmerENS = *farmer.ENSName
	}
	if req.Boundary != nil {
		p.Boundary = types.NullJSONText{JSONText: types.JSONText(req.Boundary), Valid: true}
	}
	if req.centroid != nil {
		lon, lat := req.centroid.Lon(), req.centroid.Lat()
		p.CentroidLon, p.CentroidLat = &lon, &lat
	}
	if req.DocumentCID != "" {
		p.DocumentCID = &req.DocumentCID
	}
	for i, m := range req.Milestones {
		p.Milestones = append(p.Milestones, Milestone{
			ProjectID:   id,
			Index:       i,
			Description: m.Description,
			Percentage:  m.Percentage,
			Amount:      tranches[i],
			Status:      MilestonePending,
		})
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.record(ctx, &Activity{
		ProjectID:   id,
		ActorID:     &farmer.ID,
		Type:        ActivityCreated,
		ToStatus:    string(StatusFunding),
		Description: fmt.Sprintf("Project %s created", p.Title),
		Metadata:    metadata(map[string]interface{}{"goal": p.Goal.String(), "address": p.Address}),
	})
	s.invalidate(ctx, p.FarmerID, uuid.Nil)
	s.logger.Info("Project created",
		zap.String("project_id", id.String()),
		zap.String("address", p.Address),
		zap.String("farmer", farmer.WalletAddress),
		zap.String("goal", p.Goal.String()))
	return p, nil
}

func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

// Resolve accepts either a project id or its 0x address
func (s *projectService) Resolve(ctx context.Context, idOrAddress string) (*Project, error) {
	if id, err := uuid.Parse(idOrAddress); err == nil {
		return s.repo.GetByID(ctx, id)
	}
	if strings.HasPrefix(idOrAddress, "0x") {
		return s.repo.GetByAddress(ctx, strings.ToLower(idOrAddress))
	}
	return nil, apperr.Validation("project must be referenced by id or address")
}

func (s *projectService) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Project, error) {
	list, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]Project, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (s *projectService) List(ctx context.Context, f Filter) (*ListResult, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status != nil {
		switch *f.Status {
		case StatusFunding, StatusInProgress, StatusCompleted, StatusFailed:
		default:
			return nil, apperr.Validation("unknown status %q", *f.Status)
		}
	}
	if f.CropType != nil && !f.CropType.Valid() {
		return nil, apperr.Validation("unknown crop type %q", *f.CropType)
	}
	f.Search = strings.TrimSpace(f.Search)

	list, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Project{}
	}
	return &ListResult{Projects: list, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *projectService) Activity(ctx context.Context, id uuid.UUID, limit int) ([]Activity, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	out, err := s.activity.List(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Activity{}
	}
	return out, nil
}

// CloseFunding moves a fully pledged project into its season
func (s *projectService) CloseFunding(ctx context.Context, id uuid.UUID) (bool, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if p.Status != StatusFunding || !p.TotalPledged.Equal(p.Goal) {
		return false, nil
	}
	return s.transition(ctx, p, StatusInProgress, nil, "Funding goal reached", true)
}

func (s *projectService) Cancel(ctx context.Context, adminID, id uuid.UUID, reason string) (*Project, error) {
	reason = sanitize.Text(reason)
	if reason == "" {
		return nil, apperr.Validation("a cancellation reason is required")
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.transition(ctx, p, StatusFailed, &adminID, "Cancelled by admin: "+reason, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.ErrConflict, "project status changed concurrently")
	}
	return s.repo.GetByID(ctx, id)
}

// transition applies a lifecycle move and its side effects. It reports false
// when the row no longer matched the expected state.
func (s *projectService) transition(ctx context.Context, p *Project, to Status, actor *uuid.UUID, description string, fullyFunded bool) (bool, error) {
	from := p.Status
	if err := s.lifecycle.Transition(string(from), string(to)); err != nil {
		return false, apperr.New(apperr.ErrConflict, "%s", err.Error())
	}
	ok, err := s.repo.UpdateStatus(ctx, p.ID, []Status{from}, to, fullyFunded)
	if err != nil || !ok {
		return false, err
	}
	p.Status = to
	s.invalidate(ctx, p.FarmerID, p.ID)

	s.record(ctx, &Activity{
		ProjectID:   p.ID,
		ActorID:     actor,
		Type:        ActivityStatusChanged,
		FromStatus:  string(from),
		ToStatus:    string(to),
		Description: description,
	})
	s.logger.Info("Project status changed",
		zap.String("project_id", p.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	s.notifier.BroadcastProject(p.ID, "status", map[string]interface{}{"status": string(to)})
	s.notifyStatus(ctx, p, to, description)
	return true, nil
}

func (s *projectService) notifyStatus(ctx context.Context, p *Project, to Status, reason string) {
	var kind notifications.Kind
	var title, farmerBody, investorBody string
	switch to {
	case StatusInProgress:
		kind = notifications.KindProjectFunded
		title = fmt.Sprintf("%s is fully funded", p.Title)
		farmerBody = "Funding closed. Submit proof for your first milestone to receive the first tranche."
		investorBody = "The project reached its goal and the season is starting."
	case StatusFailed:
		kind = notifications.KindProjectFailed
		title = fmt.Sprintf("%s did not go ahead", p.Title)
		farmerBody = reason
		investorBody = reason + ". Your unreleased funds can be claimed back."
	case StatusCompleted:
		kind = notifications.KindProjectCompleted
		title = fmt.Sprintf("%s completed all milestones", p.Title)
		farmerBody = "All tranches were released. Deposit repayments so investors can claim their returns."
		investorBody = "All milestones are complete. Returns become claimable as the farmer repays."
	default:
		return
	}

	projectID := p.ID
	data := map[string]interface{}{"project_id": p.ID.String(), "status": string(to)}
	s.publish(ctx, notifications.Message{UserID: p.FarmerID, Kind: kind, Title: title, Body: farmerBody, ProjectID: &projectID, Data: data})

	investors, err := s.repo.InvestorIDs(ctx, p.ID)
	if err != nil {
		s.logger.Warn("Failed to list investors for notification", zap.String("project_id", p.ID.String()), zap.Error(err))
		return
	}
	for _, investorID := range investors {
		s.publish(ctx, notifications.Message{UserID: investorID, Kind: kind, Title: title, Body: investorBody, ProjectID: &projectID, Data: data})
	}
}

func (s *projectService) publish(ctx context.Context, msg notifications.Message) {
	if err := s.notifier.Publish(ctx, msg); err != nil {
		s.logger.Warn("Failed to publish notification", zap.String("kind", string(msg.Kind)), zap.Error(err))
	}
}

// invalidate drops the farmer's cached dashboard and, when projectID is set,
// those of everyone invested in the project
func (s *projectService) invalidate(ctx context.Context, farmerID, projectID uuid.UUID) {
	if s.cache == nil {
		return
	}
	ids := []uuid.UUID{farmerID}
	if projectID != uuid.Nil {
		investors, err := s.repo.InvestorIDs(ctx, projectID)
		if err != nil {
			s.logger.Warn("Failed to list investors for cache invalidation", zap.String("project_id", projectID.String()), zap.Error(err))
		}
		ids = append(ids, investors...)
	}
	s.cache.Invalidate(ids...)
}

func (s *projectService) record(ctx context.Context, a *Activity) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	if err := s.activity.Record(ctx, a); err != nil {
		s.logger.Warn("Failed to record project activity", zap.String("project_id", a.ProjectID.String()), zap.Error(err))
	}
}

func (s *projectService) RecordRepayment(ctx context.Context, farmerID, id uuid.UUID, amt decimal.Decimal) (*RepaymentResult, error) {
	if err := amount.Validate(amt); err != nil || amt.IsZero() {
		return nil, apperr.Validation("repayment must be a positive whole amount")
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.FarmerID != farmerID {
		return nil, apperr.New(apperr.ErrForbidden, "only the project's farmer can repay")
	}
	if p.Status != StatusCompleted {
		return nil, apperr.New(apperr.ErrConflict, "repayments are accepted once the project is completed")
	}

	updated, err := s.repo.AddRepayment(ctx, id, farmerID, amt)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.FarmerID, id)
	outstanding, err := s.repo.Outstanding(ctx, id)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &Activity{
		ProjectID:   id,
		ActorID:     &farmerID,
		Type:        ActivityRepayment,
		Description: fmt.Sprintf("Farmer repaid %s", amt),
		Metadata:    metadata(map[string]interface{}{"amount": amt.String(), "outstanding": outstanding.String()}),
	})
	s.notifier.BroadcastProject(id, "repayment", map[string]interface{}{"total_repaid": updated.TotalRepaid.String()})

	if investors, err := s.repo.InvestorIDs(ctx, id); err == nil {
		for _, investorID := range investors {
			s.publish(ctx, notifications.Message{
				UserID:    investorID,
				Kind:      notifications.KindRepaymentReceived,
				Title:     fmt.Sprintf("Repayment received for %s", p.Title),
				Body:      "New funds are available to claim.",
				ProjectID: &updated.ID,
			})
		}
	}
	return &RepaymentResult{Project: updated, Outstanding: outstanding}, nil
}

// SettleExpired resolves every funding project whose deadline has passed
func (s *projectService) SettleExpired(ctx context.Context) ([]SettlementOutcome, error) {
	ids, err := s.repo.ListExpiredFunding(ctx, s.now())
	if err != nil {
		return nil, err
	}

	var outcomes []SettlementOutcome
	var errs []error
	for _, id := range ids {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if p.Status != StatusFunding {
			continue
		}

		to, description, fullyFunded := StatusFailed, "Funding deadline passed before the goal was reached", false
		if p.TotalPledged.Equal(p.Goal) {
			to, description, fullyFunded = StatusInProgress, "Funding goal reached", true
		}
		ok, err := s.transition(ctx, p, to, nil, description, fullyFunded)
		if err != nil {
			errs = append(errs, fmt.Errorf("project %s: %w", id, err))
			continue
		}
		if ok {
			outcomes = append(outcomes, SettlementOutcome{ProjectID: id, From: StatusFunding, To: to})
		}
	}
	return outcomes, errors.Join(errs...)
}

func milestoneAt(p *Project, index int) (*Milestone, error) {
	if index < 0 || index >= len(p.Milestones) {
		return nil, apperr.New(apperr.ErrNotFound, "milestone %d not found", index)
	}
	return &p.Milestones[index], nil
}

func (s *projectService) SubmitProof(ctx context.Context, farmerID, projectID uuid.UUID, index int, req SubmitProofRequest) (*Project, error) {
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.FarmerID != farmerID {
		return nil, apperr.New(apperr.ErrForbidden, "only the project's farmer can submit proof")
	}
	if p.Status != StatusInProgress {
		return nil, apperr.New(apperr.ErrConflict, "proof can only be submitted while the project is in progress")
	}
	m, err := milestoneAt(p, index)
	if err != nil {
		return nil, err
	}
	if err := s.milestones.Transition(string(m.Status), string(MilestoneSubmitted)); err != nil {
		return nil, apperr.New(apperr.ErrConflict, "milestone %d is %s", index, m.Status)
	}
	if next := p.NextMilestone(); next == nil || next.Index != index {
		return nil, apperr.New(apperr.ErrConflict, "milestones must be completed in order")
	}

	// the farmer signs the CID as submitted; the canonical encoding is what gets stored
	submitted := strings.TrimSpace(req.ProofCID)
	proofCID, err := storage.ValidateCID(submitted)
	if err != nil {
		return nil, apperr.Validation("invalid proof CID")
	}
	msg := security.MilestoneProofMessage(p.Address, index, submitted)
	if err := security.VerifyPersonalSignature(p.FarmerAddress, msg, req.FarmerSignature); err != nil {
		return nil, apperr.New(apperr.ErrUnauthenticated, "signature does not match the project's farmer")
	}

	if err := s.repo.SubmitProof(ctx, projectID, index, proofCID, req.FarmerSignature, s.now().UTC()); err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.FarmerID, uuid.Nil)

	s.record(ctx, &Activity{
		ProjectID:   projectID,
		ActorID:     &farmerID,
		Type:        ActivityMilestoneSubmitted,
		Description: fmt.Sprintf("Proof submitted for milestone %d", index),
		Metadata:    metadata(map[string]interface{}{"milestone": index, "proof_cid": proofCID}),
	})
	s.notifier.BroadcastProject(projectID, "milestone_submitted", map[string]interface{}{"milestone": index, "proof_cid": proofCID})
	if investors, err := s.repo.InvestorIDs(ctx, projectID); err == nil {
		for _, investorID := range investors {
			s.publish(ctx, notifications.Message{
				UserID:    investorID,
				Kind:      notifications.KindMilestoneSubmitted,
				Title:     fmt.Sprintf("%s submitted proof for milestone %d", p.Title, index+1),
				Body:      m.Description,
				ProjectID: &projectID,
				Data:      map[string]interface{}{"milestone": index, "proof_cid": proofCID},
			})
		}
	}
	s.logger.Info("Milestone proof submitted",
		zap.String("project_id", projectID.String()),
		zap.Int("milestone", index),
		zap.String("proof_cid", proofCID))
	return s.repo.GetByID(ctx, projectID)
}

func (s *projectService) RejectProof(ctx context.Context, adminID, projectID uuid.UUID, index int, note string) (*Project, error) {
	note = sanitize.Text(note)
	if note == "" {
		return nil, apperr.Validation("a rejection note is required")
	}
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	m, err := milestoneAt(p, index)
	if err != nil {
		return nil, err
	}
	if err := s.milestones.Transition(string(m.Status), string(MilestonePending)); err != nil {
		return nil, apperr.New(apperr.ErrConflict, "milestone %d has no submitted proof", index)
	}
	if err := s.repo.RejectProof(ctx, projectID, index, note); err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.FarmerID, uuid.Nil)

	s.record(ctx, &Activity{
		ProjectID:   projectID,
		ActorID:     &adminID,
		Type:        ActivityMilestoneRejected,
		Description: fmt.Sprintf("Proof for milestone %d rejected: %s", index, note),
		Metadata:    metadata(map[string]interface{}{"milestone": index}),
	})
	s.notifier.BroadcastProject(projectID, "milestone_rejected", map[string]interface{}{"milestone": index})
	s.publish(ctx, notifications.Message{
		UserID:    p.FarmerID,
		Kind:      notifications.KindMilestoneRejected,
		Title:     fmt.Sprintf("Proof for milestone %d was rejected", index+1),
		Body:      note,
		ProjectID: &projectID,
		Data:      map[string]interface{}{"milestone": index},
	})
	return s.repo.GetByID(ctx, projectID)
}

// ReleaseMilestone signs the release authorization for a submitted milestone
// and books it against escrow
func (s *projectService) ReleaseMilestone(ctx context.Context, adminID, projectID uuid.UUID, index int) (*ReleaseResult, error) {
	if s.signer == nil {
		return nil, apperr.New(apperr.ErrConflict, "milestone releases are disabled: no platform signer configured")
	}
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusInProgress {
		return nil, apperr.New(apperr.ErrConflict, "tranches are released only while the project is in progress")
	}
	m, err := milestoneAt(p, index)
	if err != nil {
		return nil, err
	}
	if err := s.milestones.Transition(string(m.Status), string(MilestoneCompleted)); err != nil || m.ProofCID == nil {
		return nil, apperr.New(apperr.ErrConflict, "milestone %d has no submitted proof", index)
	}
	if p.TotalReleased.Add(m.Amount).GreaterThan(p.TotalPledged) {
		return nil, apperr.New(apperr.ErrConflict, "escrow cannot cover milestone %d", index)
	}

	msg := security.MilestoneReleaseMessage(p.Address, index, m.Amount.String(), *m.ProofCID)
	signature, err := s.signer.SignMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign release: %w", err)
	}

	completed, err := s.repo.ReleaseMilestone(ctx, projectID, index, signature, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.FarmerID, projectID)

	s.record(ctx, &Activity{
		ProjectID:   projectID,
		ActorID:     &adminID,
		Type:        ActivityMilestoneReleased,
		Description: fmt.Sprintf("Released %s for milestone %d", m.Amount, index),
		Metadata:    metadata(map[string]interface{}{"milestone": index, "amount": m.Amount.String(), "signature": signature}),
	})
	s.notifier.BroadcastProject(projectID, "milestone_released", map[string]interface{}{"milestone": index, "amount": m.Amount.String()})
	s.publish(ctx, notifications.Message{
		UserID:    p.FarmerID,
		Kind:      notifications.KindMilestoneReleased,
		Title:     fmt.Sprintf("Milestone %d approved", index+1),
		Body:      fmt.Sprintf("%s has been released to your wallet.", m.Amount),
		ProjectID: &projectID,
		Data:      map[string]interface{}{"milestone": index, "amount": m.Amount.String()},
	})
	s.logger.Info("Milestone released",
		zap.String("project_id", projectID.String()),
		zap.Int("milestone", index),
		zap.String("amount", m.Amount.String()),
		zap.String("signer", s.signer.Address()))

	status := StatusInProgress
	if completed {
		status = StatusCompleted
		p.Status = StatusCompleted
		s.record(ctx, &Activity{
			ProjectID:   projectID,
			ActorID:     &adminID,
			Type:        ActivityStatusChanged,
			FromStatus:  string(StatusInProgress),
			ToStatus:    string(StatusCompleted),
			Description: "All milestones released",
		})
		s.notifier.BroadcastProject(projectID, "status", map[string]interface{}{"status": string(StatusCompleted)})
		s.notifyStatus(ctx, p, StatusCompleted, "All milestones released")
	}

	return &ReleaseResult{
		ProjectID:      projectID,
		ProjectAddress: p.Address,
		MilestoneIndex: index,
		Amount:         m.Amount,
		ProofCID:       *m.ProofCID,
		Message:        msg,
		AdminSignature: signature,
		ProjectStatus:  status,
	}, nil
}
