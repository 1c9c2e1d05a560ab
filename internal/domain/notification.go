package domain

import "time"

// NotificationType enumerates notification categories shown to users.
type NotificationType string

const (
	NotificationTicketAssigned NotificationType = "ticket_assigned"
	NotificationTicketApproved NotificationType = "ticket_approved"
	NotificationTicketRejected NotificationType = "ticket_rejected"
	NotificationManagerMessage NotificationType = "manager_message"
	NotificationSystem         NotificationType = "system"
)

// Notification is a persisted in-app message. Delivery is at-least-once
// and best-effort from the core engine's perspective.
type Notification struct {
	ID            string
	UserID        string
	Title         string
	Message       string
	Type          NotificationType
	IsRead        bool
	TicketID      *string
	RelatedUserID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
