package dashboard

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farmlink/platform/platform-backend/internal/investments"
	"farmlink/platform/platform-backend/internal/projects"
)

type FarmerProject struct {
	ID              uuid.UUID           `json:"id"`
	Address         string              `json:"address"`
	Title           string              `json:"title"`
	Status          projects.Status     `json:"status"`
	Goal            decimal.Decimal     `json:"goal"`
	TotalPledged    decimal.Decimal     `json:"total_pledged"`
	TotalReleased   decimal.Decimal     `json:"total_released"`
	TotalRepaid     decimal.Decimal     `json:"total_repaid"`
	ProgressPercent float64             `json:"progress_percent"`
	FundingDeadline time.Time           `json:"funding_deadline"`
	NextMilestone   *projects.Milestone `json:"next_milestone,omitempty"`
}

type FarmerTotals struct {
	Raised    decimal.Decimal `json:"raised"`
	Released  decimal.Decimal `json:"released"`
	Repaid    decimal.Decimal `json:"repaid"`
	Active    int             `json:"active"`
	Completed int             `json:"completed"`
	Failed    int             `json:"failed"`
}

type FarmerDashboard struct {
	Projects   []FarmerProject `json:"projects"`
	Totals     FarmerTotals    `json:"totals"`
	ComputedAt time.Time       `json:"computed_at"`
}

type InvestorTotals struct {
	Invested            decimal.Decimal `json:"invested"`
	Active              int             `json:"active"`
	ExpectedReturns     decimal.Decimal `json:"expected_returns"`
	AvailableToWithdraw decimal.Decimal `json:"available_to_withdraw"`
	Claimed             decimal.Decimal `json:"claimed"`
}

type InvestorDashboard struct {
	Investments []investments.Position `json:"investments"`
	Totals      InvestorTotals         `json:"totals"`
	ComputedAt  time.Time              `json:"computed_at"`
}
