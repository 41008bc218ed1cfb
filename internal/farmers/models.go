package farmers

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// Application is a farmer vetting request
type Application struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	UserID       uuid.UUID         `json:"user_id" db:"user_id"`
	Name         string            `json:"name" db:"name"`
	Bio          string            `json:"bio" db:"bio"`
	FarmLocation string            `json:"farm_location" db:"farm_location"`
	DocumentCID  string            `json:"document_cid" db:"document_cid"`
	DocumentKeys pq.StringArray    `json:"-" db:"document_keys"`
	Status       ApplicationStatus `json:"status" db:"status"`
	ReviewNote   *string           `json:"review_note,omitempty" db:"review_note"`
	ReviewedBy   *uuid.UUID        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// DocumentUpload is one identity or farm document attached to an application
type DocumentUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type SubmitRequest struct {
	Name         string
	Bio          string
	FarmLocation string
	Documents    []DocumentUpload
}

type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

type ReviewRequest struct {
	Decision ReviewDecision `json:"decision" binding:"required"`
	Note     string         `json:"note"`
}

type ReviewResult struct {
	Application *Application `json:"application"`
	ENSName     string       `json:"ens_name,omitempty"`
	ENSNode     string       `json:"ens_node,omitempty"`
}

// manifest is the public, content-addressed record of the private documents
type manifest struct {
	ApplicationID uuid.UUID       `json:"application_id"`
	UserID        uuid.UUID       `json:"user_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Documents     []manifestEntry `json:"documents"`
}

type manifestEntry struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

type DocumentLink struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
