package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/events"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/pkg/util"
)

// NotificationService persists in-app notifications and exposes the
// read side. It satisfies NotificationSink for the engines.
type NotificationService struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(notifications repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{notifications: notifications, logger: logger}
}

// Create persists a notification. Callers treat failures as
// best-effort; this method still returns them so outcomes can record
// whether delivery happened.
func (s *NotificationService) Create(ctx context.Context, notification *domain.Notification) error {
	if err := s.notifications.Create(ctx, notification); err != nil {
		return err
	}
	s.logger.Debug("notification stored",
		zap.String("user_id", notification.UserID),
		zap.String("type", string(notification.Type)),
	)
	return nil
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	result, err := s.notifications.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, util.MapError(err)
	}
	return result, nil
}

// MarkRead flags a notification read. The user scope prevents marking
// someone else's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.notifications.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("notification", map[string]any{"notification_id": id})
		}
		return util.MapError(err)
	}
	return nil
}

// RegisterEventHandlers attaches audit logging to the domain event
// stream. Outbound channels (email, webhooks) would subscribe here.
func (s *NotificationService) RegisterEventHandlers(dispatcher events.Dispatcher) {
	log := func(ctx context.Context, event events.Event) error {
		s.logger.Info("domain event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("tenant_id", event.TenantID),
			zap.String("ticket_id", event.TicketID),
		)
		return nil
	}
	dispatcher.Subscribe(events.EventTicketCreated, log)
	dispatcher.Subscribe(events.EventTicketAssigned, log)
	dispatcher.Subscribe(events.EventTicketEscalated, log)
	dispatcher.Subscribe(events.EventTicketStatusChanged, log)
}
