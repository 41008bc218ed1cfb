package investments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/notifications"
	"farmlink/platform/platform-backend/internal/projects"
	"farmlink/platform/platform-backend/internal/users"
	"farmlink/platform/platform-backend/pkg/amount"
	"farmlink/platform/platform-backend/pkg/pdf"
)

type Service interface {
	Invest(ctx context.Context, investorID, projectID uuid.UUID, amt decimal.Decimal) (*InvestResult, error)
	ListMine(ctx context.Context, investorID uuid.UUID) ([]Position, error)
	ListForProject(ctx context.Context, userID uuid.UUID, admin bool, projectID uuid.UUID) ([]Investment, error)
	Claim(ctx context.Context, investorID, investmentID uuid.UUID) (*ClaimResult, error)
	ClaimAll(ctx context.Context, investorID uuid.UUID) (*ClaimAllResult, error)
	Statement(ctx context.Context, investorID uuid.UUID, format StatementFormat) (*Statement, error)
}

// Projects is the slice of the project service investments depend on
type Projects interface {
	Get(ctx context.Context, id uuid.UUID) (*projects.Project, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]projects.Project, error)
	CloseFunding(ctx context.Context, id uuid.UUID) (bool, error)
}

type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

type Notifier interface {
	notifications.Publisher
	notifications.ProjectBroadcaster
}

// Invalidator drops cached read models for the given users
type Invalidator interface {
	Invalidate(userIDs ...uuid.UUID)
}

type investmentService struct {
	repo        Repository
	projects    Projects
	accounts    Accounts
	notifier    Notifier
	invalidator Invalidator
	pdf         pdf.Generator
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(repo Repository, projects Projects, accounts Accounts, notifier Notifier, invalidator Invalidator, generator pdf.Generator, logger *zap.Logger) Service {
	return &investmentService{
		repo:        repo,
		projects:    projects,
		accounts:    accounts,
		notifier:    notifier,
		invalidator: invalidator,
		pdf:         generator,
		logger:      logger,
		now:         time.Now,
	}
}

// ExpectedReturn is principal plus the promised ROI, truncated to whole units
func ExpectedReturn(amt decimal.Decimal, roi int) decimal.Decimal {
	return amt.Add(amount.PercentOf(amt, decimal.NewFromInt(int64(roi))))
}

// Payout is what the investment can claim given the project's final state.
// Failed projects refund the unreleased share of escrow pro rata.
func Payout(inv *Investment, p *projects.Project) (decimal.Decimal, error) {
	switch p.Status {
	case projects.StatusCompleted:
		return ExpectedReturn(inv.Amount, p.ExpectedROI), nil
	case projects.StatusFailed:
		return amount.ProRata(inv.Amount, p.TotalPledged.Sub(p.TotalReleased), p.TotalPledged), nil
	default:
		return decimal.Zero, apperr.New(apperr.ErrConflict, "project is still %s", p.Status)
	}
}

// checkPledge applies the minimum and remaining rules to amt
func checkPledge(p *projects.Project, amt decimal.Decimal) error {
	if err := amount.Validate(amt); err != nil || amt.IsZero() {
		return apperr.Validation("amount must be a positive whole number")
	}
	remaining := p.Remaining()
	if amt.GreaterThan(remaining) {
		return apperr.Validation("amount exceeds the remaining %s", remaining)
	}
	if remaining.LessThan(p.MinInvestment) {
		if !amt.Equal(remaining) {
			return apperr.Validation("the final pledge must be exactly the remaining %s", remaining)
		}
		return nil
	}
	if amt.LessThan(p.MinInvestment) {
		return apperr.Validation("minimum investment is %s", p.MinInvestment)
	}
	return nil
}

func (s *investmentService) Invest(ctx context.Context, investorID, projectID uuid.UUID, amt decimal.Decimal) (*InvestResult, error) {
	investor, err := s.accounts.GetByID(ctx, investorID)
	if err != nil {
		return nil, err
	}
	if !investor.HasRole(users.RoleInvestor) {
		return nil, apperr.New(apperr.ErrForbidden, "only investors can pledge")
	}

	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.FarmerID == investorID {
		return nil, apperr.New(apperr.ErrForbidden, "farmers cannot invest in their own project")
	}
	now := s.now().UTC()
	if p.Status != projects.StatusFunding || !p.FundingDeadline.After(now) {
		return nil, apperr.New(apperr.ErrConflict, "project is not accepting investments")
	}
	if err := checkPledge(p, amt); err != nil {
		return nil, err
	}

	inv := &Investment{
		ID:              uuid.New(),
		ProjectID:       p.ID,
		ProjectAddress:  p.Address,
		InvestorID:      investor.ID,
		InvestorAddress: investor.WalletAddress,
		Amount:          amt,
		ClaimedAmount:   decimal.Zero,
		CreatedAt:       now,
	}
	pledged, err := s.repo.Pledge(ctx, inv, now)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Investment pledged",
		zap.String("investment_id", inv.ID.String()),
		zap.String("project_id", p.ID.String()),
		zap.String("investor", investor.WalletAddress),
		zap.String("amount", amt.String()),
		zap.String("total_pledged", pledged.String()))

	s.invalidator.Invalidate(investor.ID, p.FarmerID)
	s.notifier.BroadcastProject(p.ID, "investment", map[string]interface{}{
		"amount":        amt.String(),
		"total_pledged": pledged.String(),
	})
	if err := s.notifier.Publish(ctx, notifications.Message{
		UserID:    p.FarmerID,
		Kind:      notifications.KindInvestmentReceived,
		Title:     fmt.Sprintf("New pledge for %s", p.Title),
		Body:      fmt.Sprintf("An investor pledged %s. %s of %s raised.", amt, pledged, p.Goal),
		ProjectID: &p.ID,
		Data:      map[string]interface{}{"amount": amt.String(), "total_pledged": pledged.String()},
	}); err != nil {
		s.logger.Warn("Failed to publish notification", zap.Error(err))
	}

	result := &InvestResult{Investment: inv, TotalPledged: pledged}
	if pledged.Equal(p.Goal) {
		closed, err := s.projects.CloseFunding(ctx, p.ID)
		if err != nil {
			// the settlement sweep closes it at the deadline
			s.logger.Error("Failed to close funding", zap.String("project_id", p.ID.String()), zap.Error(err))
		}
		result.FundingClosed = closed
	}
	return result, nil
}

func (s *investmentService) positions(ctx context.Context, list []Investment) ([]Position, error) {
	ids := make([]uuid.UUID, 0, len(list))
	seen := make(map[uuid.UUID]bool)
	for _, inv := range list {
		if !seen[inv.ProjectID] {
			seen[inv.ProjectID] = true
			ids = append(ids, inv.ProjectID)
		}
	}
	byID, err := s.projects.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Position, 0, len(list))
	for _, inv := range list {
		pos := Position{Investment: inv, Claimable: decimal.Zero, ExpectedReturn: inv.Amount}
		if p, ok := byID[inv.ProjectID]; ok {
			pos.ProjectTitle = p.Title
			pos.ProjectStatus = p.Status
			pos.ExpectedROI = p.ExpectedROI
			pos.ExpectedReturn = ExpectedReturn(inv.Amount, p.ExpectedROI)
			if !inv.Claimed {
				if payout, err := Payout(&inv, &p); err == nil && claimable(&p, payout) {
					pos.Claimable = payout
				}
			}
		}
		out = append(out, pos)
	}
	return out, nil
}

// claimable reports whether escrow currently covers payout
func claimable(p *projects.Project, payout decimal.Decimal) bool {
	return payout.IsPositive() && p.EscrowBalance().GreaterThanOrEqual(payout)
}

func (s *investmentService) ListMine(ctx context.Context, investorID uuid.UUID) ([]Position, error) {
	list, err := s.repo.ListByInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	return s.positions(ctx, list)
}

func (s *investmentService) ListForProject(ctx context.Context, userID uuid.UUID, admin bool, projectID uuid.UUID) ([]Investment, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !admin && p.FarmerID != userID {
		return nil, apperr.New(apperr.ErrForbidden, "only the project's farmer can list its investments")
	}
	list, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Investment{}
	}
	return list, nil
}

func (s *investmentService) Claim(ctx context.Context, investorID, investmentID uuid.UUID) (*ClaimResult, error) {
	inv, err := s.repo.GetByID(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	if inv.InvestorID != investorID {
		return nil, apperr.New(apperr.ErrForbidden, "investment belongs to another investor")
	}
	if inv.Claimed {
		return nil, apperr.New(apperr.ErrConflict, "investment already claimed")
	}
	p, err := s.projects.Get(ctx, inv.ProjectID)
	if err != nil {
		return nil, err
	}
	payout, err := Payout(inv, p)
	if err != nil {
		return nil, err
	}
	if !claimable(p, payout) {
		return nil, apperr.New(apperr.ErrConflict, "escrow balance cannot cover this claim yet")
	}

	claimed, err := s.repo.Claim(ctx, inv.ID, investorID, payout, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Investment claimed",
		zap.String("investment_id", inv.ID.String()),
		zap.String("project_id", p.ID.String()),
		zap.String("payout", payout.String()))

	s.invalidator.Invalidate(investorID, p.FarmerID)
	if err := s.notifier.Publish(ctx, notifications.Message{
		UserID:    investorID,
		Kind:      notifications.KindClaimPaid,
		Title:     fmt.Sprintf("Claim paid for %s", p.Title),
		Body:      fmt.Sprintf("%s is on its way to your wallet.", payout),
		ProjectID: &p.ID,
		Data:      map[string]interface{}{"investment_id": inv.ID.String(), "payout": payout.String()},
	}); err != nil {
		s.logger.Warn("Failed to publish notification", zap.Error(err))
	}
	return &ClaimResult{Investment: claimed, Payout: payout}, nil
}

// ClaimAll claims every settled, unclaimed investment the escrow can cover
func (s *investmentService) ClaimAll(ctx context.Context, investorID uuid.UUID) (*ClaimAllResult, error) {
	positions, err := s.ListMine(ctx, investorID)
	if err != nil {
		return nil, err
	}

	result := &ClaimAllResult{Items: []ClaimAllItem{}, Total: decimal.Zero}
	for _, pos := range positions {
		if pos.Claimed || pos.Claimable.IsZero() {
			continue
		}
		item := ClaimAllItem{InvestmentID: pos.ID, ProjectID: pos.ProjectID}
		res, err := s.Claim(ctx, investorID, pos.ID)
		if err != nil {
			msg := err.Error()
			if apperr.Status(err) >= 500 {
				msg = "internal server error"
				s.logger.Error("Claim failed", zap.String("investment_id", pos.ID.String()), zap.Error(err))
			}
			item.Error = msg
		} else {
			payout := res.Payout
			item.Payout = &payout
			result.Total = result.Total.Add(payout)
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

var statementColumns = []string{"Project", "Status", "Amount", "ROI %", "Expected return", "Claimable", "Claimed", "Pledged at"}

func (s *investmentService) Statement(ctx context.Context, investorID uuid.UUID, format StatementFormat) (*Statement, error) {
	switch format {
	case FormatCSV, FormatXLSX, FormatPDF:
	default:
		return nil, apperr.Validation("format must be csv, xlsx or pdf")
	}
	positions, err := s.ListMine(ctx, investorID)
	if err != nil {
		return nil, err
	}

	rows := make([][]interface{}, len(positions))
	for i, p := range positions {
		rows[i] = []interface{}{p.ProjectTitle, string(p.ProjectStatus), p.Amount, p.ExpectedROI, p.ExpectedReturn, p.Claimable, p.ClaimedAmount, p.CreatedAt}
	}

	name := fmt.Sprintf("farmlink-statement-%s.%s", s.now().UTC().Format("20060102"), format)
	var body []byte
	var contentType string
	switch format {
	case FormatCSV:
		body, err = renderCSV(statementColumns, rows)
		contentType = "text/csv"
	case FormatXLSX:
		body, err = renderXLSX(statementColumns, rows)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		body, err = s.renderPDF(ctx, positions, rows)
		contentType = "application/pdf"
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s statement: %w", format, err)
	}
	return &Statement{Filename: name, ContentType: contentType, Body: body}, nil
}

var errNoGenerator = errors.New("pdf generator is not configured")
