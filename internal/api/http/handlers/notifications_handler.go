package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-platform/internal/api/dto"
	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/service"
)

// NotificationsHandler serves the in-app notification feed.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	unreadOnly := c.QueryBool("unread")
	limit := parseInt(c.Query("page_size"), 50)
	offset := (parseInt(c.Query("page"), 1) - 1) * limit

	notifications, err := h.service.ListForUser(c.UserContext(), principal.User.ID, unreadOnly, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		items = append(items, notificationResponse(&notifications[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.MarkRead(c.UserContext(), c.Params("id"), principal.User.ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func notificationResponse(notification *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:            notification.ID,
		Title:         notification.Title,
		Message:       notification.Message,
		Type:          notification.Type,
		IsRead:        notification.IsRead,
		TicketID:      notification.TicketID,
		RelatedUserID: notification.RelatedUserID,
		CreatedAt:     notification.CreatedAt,
	}
}
