package service

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

// SLATimers is the timer-store surface the engines depend on. Calls are
// best-effort: a failure is logged and never propagated into the ledger
// mutation result.
type SLATimers interface {
	Start(ctx context.Context, ticketID, userID string, minutes int) error
	Stop(ctx context.Context, ticketID string) (bool, error)
}

// NotificationSink delivers user-facing notifications. Fire-and-forget
// from the engines' perspective.
type NotificationSink interface {
	Create(ctx context.Context, notification *domain.Notification) error
}

// SLATimerReader reads the remaining time on a ticket's SLA timer.
type SLATimerReader interface {
	Remaining(ctx context.Context, ticketID string) (time.Duration, error)
}

// SLAResolver resolves the SLA window in minutes for a tenant.
type SLAResolver interface {
	Minutes(ctx context.Context, tenantID string) int
}
