package worker

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/service"
	"github.com/spec-kit/ticket-platform/internal/sla"
)

// ExpiryHandler is the slice of the escalation engine the listener
// drives.
type ExpiryHandler interface {
	HandleExpiry(ctx context.Context, ticketID string) (*service.EscalateOutcome, error)
}

// EscalationListener subscribes to Redis expired-key notifications and
// feeds SLA timer expiries into the escalation engine. Notifications
// are fire-and-forget on the Redis side; a listener that is down during
// an expiry misses it, which the retry sweep and manual review paths
// tolerate.
type EscalationListener struct {
	client  *redis.Client
	db      int
	handler ExpiryHandler
	logger  *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewEscalationListener constructs the listener for the given Redis
// logical database.
func NewEscalationListener(client *redis.Client, db int, handler ExpiryHandler, logger *zap.Logger) *EscalationListener {
	return &EscalationListener{client: client, db: db, handler: handler, logger: logger}
}

// Start subscribes and consumes expiry events until ctx is cancelled or
// Stop is called. It enables keyspace notifications best-effort; on
// managed Redis where CONFIG is disabled the operator must set
// notify-keyspace-events Ex out of band.
func (l *EscalationListener) Start(ctx context.Context) error {
	if err := l.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		l.logger.Warn("could not enable keyspace notifications, assuming preconfigured", zap.Error(err))
	}

	channel := sla.ExpiredChannel(l.db)
	pubsub := l.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	l.mu.Lock()
	l.pubsub = pubsub
	l.done = make(chan struct{})
	l.mu.Unlock()

	l.logger.Info("escalation listener subscribed", zap.String("channel", channel))
	go l.consume(ctx, pubsub)
	return nil
}

// Stop closes the subscription and waits for the consume loop to exit.
func (l *EscalationListener) Stop() {
	l.mu.Lock()
	pubsub, done := l.pubsub, l.done
	l.mu.Unlock()
	if pubsub == nil {
		return
	}
	_ = pubsub.Close()
	<-done
	l.logger.Info("escalation listener stopped")
}

func (l *EscalationListener) consume(ctx context.Context, pubsub *redis.PubSub) {
	defer close(l.done)
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			l.dispatch(ctx, msg.Payload)
		}
	}
}

// dispatch routes one expired key. Keys that are not SLA timers share
// the notification channel with every other expiry in the database and
// are skipped silently.
func (l *EscalationListener) dispatch(ctx context.Context, payload string) {
	ticketID, ok := sla.ParseExpiredKey(payload)
	if !ok {
		return
	}
	l.logger.Info("sla timer expired", zap.String("ticket_id", ticketID))

	outcome, err := l.handler.HandleExpiry(ctx, ticketID)
	if err != nil {
		l.logger.Error("escalation failed",
			zap.String("ticket_id", ticketID),
			zap.Error(err),
		)
		return
	}
	switch {
	case outcome.Escalated:
		l.logger.Info("expiry escalated", zap.String("ticket_id", ticketID))
	case outcome.FinalNotice:
		l.logger.Warn("expiry hit top of chain", zap.String("ticket_id", ticketID))
	default:
		l.logger.Debug("expiry ignored as stale", zap.String("ticket_id", ticketID))
	}
}
