package projects

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusFunding    Status = "funding"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneSubmitted MilestoneStatus = "submitted"
	MilestoneCompleted MilestoneStatus = "completed"
)

type CropType string

var cropTypes = map[CropType]bool{
	"maize": true, "cocoa": true, "cassava": true, "yam": true,
	"tomato": true, "rice": true, "vegetables": true, "other": true,
}

func (c CropType) Valid() bool { return cropTypes[c] }

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// Project is a crop-season funding campaign run by a vetted farmer
type Project struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	Address         string            `json:"address" db:"address"`
	Title           string            `json:"title" db:"title"`
	Description     string            `json:"description" db:"description"`
	FarmerID        uuid.UUID         `json:"farmer_id" db:"farmer_id"`
	FarmerAddress   string            `json:"farmer_address" db:"farmer_address"`
	FarmerENS       string            `json:"farmer_ens" db:"farmer_ens"`
	CropType        CropType          `json:"crop_type" db:"crop_type"`
	Location        string            `json:"location" db:"location"`
	FarmSize        float64           `json:"farm_size" db:"farm_size"`
	Boundary        types.NullJSONText `json:"boundary" db:"boundary"`
	CentroidLon     *float64          `json:"centroid_lon,omitempty" db:"centroid_lon"`
	CentroidLat     *float64          `json:"centroid_lat,omitempty" db:"centroid_lat"`
	Goal            decimal.Decimal   `json:"goal" db:"goal"`
	TotalPledged    decimal.Decimal   `json:"total_pledged" db:"total_pledged"`
	TotalReleased   decimal.Decimal   `json:"total_released" db:"total_released"`
	TotalRepaid     decimal.Decimal   `json:"total_repaid" db:"total_repaid"`
	TotalClaimed    decimal.Decimal   `json:"total_claimed" db:"total_claimed"`
	MinInvestment   decimal.Decimal   `json:"min_investment" db:"min_investment"`
	ExpectedROI     int               `json:"expected_roi" db:"expected_roi"`
	RiskLevel       RiskLevel         `json:"risk_level" db:"risk_level"`
	FundingDeadline time.Time         `json:"funding_deadline" db:"funding_deadline"`
	SeasonStart     time.Time         `json:"season_start" db:"season_start"`
	Status          Status            `json:"status" db:"status"`
	DocumentCID     *string           `json:"document_cid,omitempty" db:"document_cid"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`

	Milestones []Milestone `json:"milestones" db:"-"`
}

// Remaining is what can still be pledged
func (p *Project) Remaining() decimal.Decimal {
	r := p.Goal.Sub(p.TotalPledged)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// ProgressPercent is the pledged share of the goal, 0..100
func (p *Project) ProgressPercent() float64 {
	if p.Goal.IsZero() {
		return 0
	}
	f, _ := p.TotalPledged.Div(p.Goal).Mul(decimal.NewFromInt(100)).Float64()
	return f
}

// EscrowBalance is pledged - released + repaid - claimed
func (p *Project) EscrowBalance() decimal.Decimal {
	return p.TotalPledged.Sub(p.TotalReleased).Add(p.TotalRepaid).Sub(p.TotalClaimed)
}

// NextMilestone returns the first milestone that is not completed
func (p *Project) NextMilestone() *Milestone {
	for i := range p.Milestones {
		if p.Milestones[i].Status != MilestoneCompleted {
			return &p.Milestones[i]
		}
	}
	return nil
}

// MarshalJSON adds derived fields to the stored ones
func (p Project) MarshalJSON() ([]byte, error) {
	type plain Project
	return json.Marshal(struct {
		plain
		Remaining       decimal.Decimal `json:"remaining"`
		ProgressPercent float64         `json:"progress_percent"`
	}{plain(p), p.Remaining(), p.ProgressPercent()})
}

// Milestone is one tranche of a project's goal
type Milestone struct {
	ProjectID       uuid.UUID       `json:"-" db:"project_id"`
	Index           int             `json:"id" db:"idx"`
	Description     string          `json:"description" db:"description"`
	Percentage      int             `json:"percentage" db:"percentage"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Status          MilestoneStatus `json:"status" db:"status"`
	ProofCID        *string         `json:"proof_cid,omitempty" db:"proof_cid"`
	FarmerSignature *string         `json:"farmer_signature,omitempty" db:"farmer_signature"`
	AdminSignature  *string         `json:"admin_signature,omitempty" db:"admin_signature"`
	RejectionNote   *string         `json:"rejection_note,omitempty" db:"rejection_note"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty" db:"submitted_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

type MilestoneInput struct {
	Description string `json:"description"`
	Percentage  int    `json:"percentage"`
}

type CreateProjectRequest struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	CropType        CropType         `json:"crop_type"`
	Location        string           `json:"location"`
	FarmSize        *float64         `json:"farm_size"`
	Boundary        json.RawMessage  `json:"boundary"`
	Goal            decimal.Decimal  `json:"goal"`
	MinInvestment   *decimal.Decimal `json:"min_investment"`
	ExpectedROI     int              `json:"expected_roi"`
	RiskLevel       RiskLevel        `json:"risk_level"`
	FundingDeadline time.Time        `json:"funding_deadline"`
	SeasonStart     time.Time        `json:"season_start"`
	Milestones      []MilestoneInput `json:"milestones"`
	DocumentCID     string           `json:"document_cid"`

	// set by validation when a boundary is given
	centroid *orb.Point
}

type Filter struct {
	Status   *Status
	CropType *CropType
	FarmerID *uuid.UUID
	Search   string
	Limit    int
	Offset   int
}

type ListResult struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

type SubmitProofRequest struct {
	ProofCID        string `json:"proof_cid" binding:"required"`
	FarmerSignature string `json:"signature" binding:"required"`
}

// ReleaseResult is the platform-signed authorization for a tranche
type ReleaseResult struct {
	ProjectID      uuid.UUID       `json:"project_id"`
	ProjectAddress string          `json:"project_address"`
	MilestoneIndex int             `json:"milestone_index"`
	Amount         decimal.Decimal `json:"amount"`
	ProofCID       string          `json:"proof_cid"`
	Message        string          `json:"message"`
	AdminSignature string          `json:"admin_signature"`
	ProjectStatus  Status          `json:"project_status"`
}

type RepaymentResult struct {
	Project     *Project        `json:"project"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// SettlementOutcome is what the deadline sweep did to one project
type SettlementOutcome struct {
	ProjectID uuid.UUID `json:"project_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
}

type ActivityType string

const (
	ActivityCreated            ActivityType = "created"
	ActivityStatusChanged      ActivityType = "status_changed"
	ActivityMilestoneSubmitted ActivityType = "milestone_submitted"
	ActivityMilestoneRejected  ActivityType = "milestone_rejected"
	ActivityMilestoneReleased  ActivityType = "milestone_released"
	ActivityRepayment          ActivityType = "repayment"
)

// Activity is an append-only project history entry
type Activity struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID   uuid.UUID      `json:"project_id" gorm:"type:uuid;not null;index"`
	ActorID     *uuid.UUID     `json:"actor_id,omitempty" gorm:"type:uuid"`
	Type        ActivityType   `json:"type" gorm:"not null"`
	FromStatus  string         `json:"from_status,omitempty"`
	ToStatus    string         `json:"to_status,omitempty"`
	Description string         `json:"description"`
	Metadata    datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}

func (Activity) TableName() string { return "project_activities" }
