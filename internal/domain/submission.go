package domain

import "time"

// SubmissionType enumerates the review trail entries on a ticket.
type SubmissionType string

const (
	SubmissionTypeEmployee        SubmissionType = "employee_submission"
	SubmissionTypeManagerApproval SubmissionType = "manager_approval"
	SubmissionTypeManagerReview   SubmissionType = "manager_review"
	SubmissionTypeNote            SubmissionType = "note"
)

// Submission records an employee completion hand-in or a manager's
// review decision on it.
type Submission struct {
	ID                string
	TicketID          string
	SubmittedByUserID string
	Type              SubmissionType
	Comment           string
	AttachmentURL     *string
	RequiresChanges   bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
