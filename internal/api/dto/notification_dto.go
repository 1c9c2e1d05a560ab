package dto

import (
	"time"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

// NotificationResponse is the in-app notification projection.
type NotificationResponse struct {
	ID            string                  `json:"id"`
	Title         string                  `json:"title"`
	Message       string                  `json:"message"`
	Type          domain.NotificationType `json:"type"`
	IsRead        bool                    `json:"is_read"`
	TicketID      *string                 `json:"ticket_id,omitempty"`
	RelatedUserID *string                 `json:"related_user_id,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}
