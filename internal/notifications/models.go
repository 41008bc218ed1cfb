package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindApplicationApproved Kind = "application_approved"
	KindApplicationRejected Kind = "application_rejected"
	KindInvestmentReceived  Kind = "investment_received"
	KindProjectFunded       Kind = "project_funded"
	KindProjectFailed       Kind = "project_failed"
	KindProjectCompleted    Kind = "project_completed"
	KindMilestoneSubmitted  Kind = "milestone_submitted"
	KindMilestoneReleased   Kind = "milestone_released"
	KindMilestoneRejected   Kind = "milestone_rejected"
	KindRepaymentReceived   Kind = "repayment_received"
	KindClaimPaid           Kind = "claim_paid"
)

// emailKinds are also delivered by email when the user has an address on file
var emailKinds = map[Kind]bool{
	KindApplicationApproved: true,
	KindApplicationRejected: true,
	KindProjectFunded:       true,
	KindProjectFailed:       true,
	KindProjectCompleted:    true,
	KindMilestoneReleased:   true,
	KindMilestoneRejected:   true,
}

// Notification is an in-app message for one user
type Notification struct {
	ID        uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index:idx_notifications_user_created,priority:1"`
	Kind      Kind           `json:"kind" gorm:"not null"`
	Title     string         `json:"title" gorm:"not null"`
	Body      string         `json:"body" gorm:"not null"`
	ProjectID *uuid.UUID     `json:"project_id,omitempty" gorm:"type:uuid;index"`
	Data      datatypes.JSON `json:"data,omitempty" gorm:"type:jsonb"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	EmailedAt *time.Time     `json:"emailed_at,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index:idx_notifications_user_created,priority:2"`
}

func (Notification) TableName() string { return "notifications" }

// Message is a notification addressed by the caller; the service assigns ID and timestamps
type Message struct {
	UserID    uuid.UUID
	Kind      Kind
	Title     string
	Body      string
	ProjectID *uuid.UUID
	Data      map[string]interface{}
}

type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	Unread        int64          `json:"unread"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}
