package domain

import "time"

// AssignmentType tags how a ledger row came to exist.
type AssignmentType string

const (
	AssignmentTypeAssigned      AssignmentType = "assigned"
	AssignmentTypeAutoAssigned  AssignmentType = "auto-assigned"
	AssignmentTypeEscalated     AssignmentType = "escalated"
	AssignmentTypeAutoEscalated AssignmentType = "auto-escalated"
	AssignmentTypeReassigned    AssignmentType = "reassigned"
	AssignmentTypeCompleted     AssignmentType = "completed"
)

// Assignment is a ledger row recording an ownership interval for a
// ticket. At most one row per ticket has IsCurrent set; closing the
// previous row and opening the next one happens in the same transaction.
type Assignment struct {
	ID               string
	TicketID         string
	AssignedToUserID string
	AssignedByUserID *string
	Type             AssignmentType
	IsCurrent        bool
	AssignedAt       time.Time
	CompletedAt      *time.Time
	Notes            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
