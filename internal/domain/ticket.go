package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusQueued     TicketStatus = "queued"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusProcessed  TicketStatus = "processed"
	TicketStatusDone       TicketStatus = "done"
	TicketStatusIncomplete TicketStatus = "incomplete"
)

// ActiveTicketStatuses are the statuses that count toward an agent's load.
// A queued ticket can still carry a current ledger row when a manual
// assignment lands between creation and the first auto-assign attempt.
var ActiveTicketStatuses = []TicketStatus{
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusQueued,
}

// EscalatableStatuses are the statuses in which an SLA expiry triggers
// an escalation. Anything else means the timer fired stale.
var EscalatableStatuses = []TicketStatus{
	TicketStatusAssigned,
	TicketStatusInProgress,
}

// IsTerminal reports whether no further work happens on the ticket.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusDone || s == TicketStatusIncomplete
}

// SLAActive reports whether a ticket in this status should carry an SLA timer.
func (s TicketStatus) SLAActive() bool {
	return s == TicketStatusAssigned || s == TicketStatusInProgress
}

// CanTransitionTo reports whether the state machine permits moving from s
// to next without administrative override. in-progress -> assigned is the
// ownership-change edge used by escalation, processed -> in-progress is
// the manager-rejection edge.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	allowed, ok := ticketTransitions[s]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == next {
			return true
		}
	}
	return false
}

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusQueued: {
		TicketStatusAssigned,
		TicketStatusIncomplete,
	},
	TicketStatusAssigned: {
		TicketStatusInProgress,
		TicketStatusProcessed,
		TicketStatusDone,
		TicketStatusIncomplete,
	},
	TicketStatusInProgress: {
		TicketStatusAssigned,
		TicketStatusProcessed,
		TicketStatusDone,
		TicketStatusIncomplete,
	},
	TicketStatusProcessed: {
		TicketStatusInProgress,
		TicketStatusDone,
		TicketStatusIncomplete,
	},
	TicketStatusDone:       {},
	TicketStatusIncomplete: {},
}

// Ticket is the aggregate for submitted support requests. Title, Summary
// and Translation are enrichment fields populated by an external
// collaborator after intake.
type Ticket struct {
	ID          string
	TenantID    string
	CategoryID  *int64
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Title       *string
	Description string
	Summary     *string
	Translation *string
	Status      TicketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayTitle returns the enrichment title, falling back for tickets
// that have not been enriched yet.
func (t *Ticket) DisplayTitle() string {
	if t.Title != nil && *t.Title != "" {
		return *t.Title
	}
	return "Untitled"
}
