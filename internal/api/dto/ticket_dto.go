package dto

import (
	"time"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

// CreatePublicTicketRequest is the unauthenticated intake payload.
type CreatePublicTicketRequest struct {
	CategoryID  *int64 `json:"category_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
}

// SubmitTicketRequest is the employee completion hand-in payload.
type SubmitTicketRequest struct {
	Comment       string  `json:"comment"`
	AttachmentURL *string `json:"attachment_url"`
}

// ReviewTicketRequest carries a manager's approve or reject comment.
type ReviewTicketRequest struct {
	Comment string `json:"comment"`
}

// AddNoteRequest carries a supervisor note for a ticket's review trail.
type AddNoteRequest struct {
	Comment string `json:"comment"`
}

// EnrichTicketRequest writes collaborator-produced fields. Absent
// fields keep their stored value.
type EnrichTicketRequest struct {
	Title       *string `json:"title"`
	Summary     *string `json:"summary"`
	Translation *string `json:"translation"`
	CategoryID  *int64  `json:"category_id"`
}

// UpdateStatusRequest changes a ticket's lifecycle status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// TicketSummary is the list-view projection.
type TicketSummary struct {
	ID         string              `json:"id"`
	TenantID   string              `json:"tenant_id"`
	CategoryID *int64              `json:"category_id,omitempty"`
	Title      *string             `json:"title,omitempty"`
	Status     domain.TicketStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// TicketDetailResponse is the full projection with audit history.
type TicketDetailResponse struct {
	ID          string               `json:"id"`
	TenantID    string               `json:"tenant_id"`
	CategoryID  *int64               `json:"category_id,omitempty"`
	FirstName   string               `json:"first_name"`
	LastName    string               `json:"last_name"`
	Email       string               `json:"email"`
	Phone       string               `json:"phone"`
	Title       *string              `json:"title,omitempty"`
	Description string               `json:"description"`
	Summary     *string              `json:"summary,omitempty"`
	Translation *string              `json:"translation,omitempty"`
	Status      domain.TicketStatus  `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Assignments []AssignmentResponse `json:"assignments"`
	Submissions []SubmissionResponse `json:"submissions"`
	Escalations []EscalationResponse `json:"escalations"`
}

// SLARemainingResponse reports the live timer state for a ticket.
type SLARemainingResponse struct {
	TicketID         string `json:"ticket_id"`
	TimerActive      bool   `json:"timer_active"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// AssignmentResponse is a ledger row projection.
type AssignmentResponse struct {
	ID               string                `json:"id"`
	AssignedToUserID string                `json:"assigned_to_user_id"`
	AssignedByUserID *string               `json:"assigned_by_user_id,omitempty"`
	Type             domain.AssignmentType `json:"assignment_type"`
	IsCurrent        bool                  `json:"is_current"`
	AssignedAt       time.Time             `json:"assigned_at"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	Notes            *string               `json:"notes,omitempty"`
}

// SubmissionResponse is a review-trail entry projection.
type SubmissionResponse struct {
	ID                string                `json:"id"`
	SubmittedByUserID string                `json:"submitted_by_user_id"`
	Type              domain.SubmissionType `json:"submission_type"`
	Comment           string                `json:"comment"`
	AttachmentURL     *string               `json:"attachment_url,omitempty"`
	RequiresChanges   bool                  `json:"requires_changes"`
	CreatedAt         time.Time             `json:"created_at"`
}

// EscalationResponse is an escalation record projection.
type EscalationResponse struct {
	ID          string    `json:"id"`
	FromUserID  string    `json:"from_user_id"`
	ToUserID    string    `json:"to_user_id"`
	Level       int       `json:"level"`
	Reason      *string   `json:"reason,omitempty"`
	EscalatedAt time.Time `json:"escalated_at"`
}
