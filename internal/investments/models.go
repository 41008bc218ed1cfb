package investments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farmlink/platform/platform-backend/internal/projects"
)

// Investment is one pledge by an investor into a project's escrow
type Investment struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ProjectID       uuid.UUID       `json:"project_id" db:"project_id"`
	ProjectAddress  string          `json:"project_address" db:"project_address"`
	InvestorID      uuid.UUID       `json:"investor_id" db:"investor_id"`
	InvestorAddress string          `json:"investor_address" db:"investor_address"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Claimed         bool            `json:"claimed" db:"claimed"`
	ClaimedAmount   decimal.Decimal `json:"claimed_amount" db:"claimed_amount"`
	ClaimedAt       *time.Time      `json:"claimed_at,omitempty" db:"claimed_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

type InvestRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// InvestResult reports the pledge and whether it closed funding
type InvestResult struct {
	Investment    *Investment     `json:"investment"`
	TotalPledged  decimal.Decimal `json:"total_pledged"`
	FundingClosed bool            `json:"funding_closed"`
}

// Position is an investment joined with the state of its project
type Position struct {
	Investment
	ProjectTitle   string          `json:"project_title"`
	ProjectStatus  projects.Status `json:"project_status"`
	ExpectedROI    int             `json:"expected_roi"`
	ExpectedReturn decimal.Decimal `json:"expected_return"`
	Claimable      decimal.Decimal `json:"claimable"`
}

type ClaimResult struct {
	Investment *Investment     `json:"investment"`
	Payout     decimal.Decimal `json:"payout"`
}

// ClaimAllItem is the per-investment outcome of a bulk claim
type ClaimAllItem struct {
	InvestmentID uuid.UUID        `json:"investment_id"`
	ProjectID    uuid.UUID        `json:"project_id"`
	Payout       *decimal.Decimal `json:"payout,omitempty"`
	Error        string           `json:"error,omitempty"`
}

type ClaimAllResult struct {
	Items []ClaimAllItem  `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type StatementFormat string

const (
	FormatCSV  StatementFormat = "csv"
	FormatXLSX StatementFormat = "xlsx"
	FormatPDF  StatementFormat = "pdf"
)

// Statement is a rendered export ready to be served
type Statement struct {
	Filename    string
	ContentType string
	Body        []byte
}
