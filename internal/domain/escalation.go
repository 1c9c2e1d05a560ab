package domain

import "time"

// Escalation is an append-only audit row for a forced ownership
// transfer. Level starts at 1 for the first escalation of a ticket and
// increases by one with each subsequent row.
type Escalation struct {
	ID          string
	TicketID    string
	FromUserID  string
	ToUserID    string
	Level       int
	Reason      *string
	EscalatedAt time.Time
	CreatedAt   time.Time
}
