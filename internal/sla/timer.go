// Package sla manages response-time SLA timers on Redis key expiry.
//
// Each owned, unresolved ticket holds one key of the form
// ticket:{ticket_id}:sla whose value is the assignee id and whose TTL is
// the tenant's SLA window. Expiry of that key, observed through Redis
// keyspace notifications, is the sole trigger for escalation.
//
// Redis must have keyspace notifications enabled:
//
//	redis-cli CONFIG SET notify-keyspace-events Ex
package sla

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrNoTimer means no SLA timer exists for the ticket.
	ErrNoTimer = errors.New("no sla timer for ticket")
	// ErrNoExpiry means the key exists but carries no TTL. Defensive:
	// nothing in the engine writes such keys.
	ErrNoExpiry = errors.New("sla key has no expiry")
)

var expiredKeyPattern = regexp.MustCompile(`^ticket:([0-9a-fA-F-]+):sla$`)

// Key builds the Redis key for a ticket's SLA timer.
func Key(ticketID string) string {
	return fmt.Sprintf("ticket:%s:sla", ticketID)
}

// ParseExpiredKey extracts the ticket id from an expired-key event
// payload. The second return is false for keys that are not SLA timers.
func ParseExpiredKey(key string) (string, bool) {
	match := expiredKeyPattern.FindStringSubmatch(key)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// ExpiredChannel returns the keyspace-notification channel carrying
// expired-key events for the given Redis database.
func ExpiredChannel(db int) string {
	return fmt.Sprintf("__keyevent@%d__:expired", db)
}

// TimerStore tracks one active SLA deadline per ticket. All calls are
// network calls against Redis bounded by a short timeout; callers treat
// failures as non-fatal.
type TimerStore struct {
	client      *redis.Client
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewTimerStore constructs a store around an injected client.
func NewTimerStore(client *redis.Client, callTimeout time.Duration, logger *zap.Logger) *TimerStore {
	if callTimeout <= 0 {
		callTimeout = 3 * time.Second
	}
	return &TimerStore{client: client, callTimeout: callTimeout, logger: logger}
}

// Start sets or replaces the timer for a ticket. A later call before
// expiry overwrites the earlier one, which is the desired last-writer-
// wins semantic on reassignment and escalation.
func (s *TimerStore) Start(ctx context.Context, ticketID, userID string, minutes int) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	ttl := time.Duration(minutes) * time.Minute
	if err := s.client.Set(ctx, Key(ticketID), userID, ttl).Err(); err != nil {
		return fmt.Errorf("set sla timer: %w", err)
	}
	s.logger.Info("sla timer set",
		zap.String("ticket_id", ticketID),
		zap.String("user_id", userID),
		zap.Int("minutes", minutes),
	)
	return nil
}

// Stop removes the timer if present and reports whether one existed.
func (s *TimerStore) Stop(ctx context.Context, ticketID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	deleted, err := s.client.Del(ctx, Key(ticketID)).Result()
	if err != nil {
		return false, fmt.Errorf("delete sla timer: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("sla timer stopped", zap.String("ticket_id", ticketID))
		return true, nil
	}
	return false, nil
}

// Remaining returns the time left on a ticket's timer. ErrNoTimer when
// no timer exists, ErrNoExpiry when the key has no TTL.
func (s *TimerStore) Remaining(ctx context.Context, ticketID string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	ttl, err := s.client.TTL(ctx, Key(ticketID)).Result()
	if err != nil {
		return 0, fmt.Errorf("read sla ttl: %w", err)
	}
	// Redis reports -2 for a missing key and -1 for a key without TTL;
	// the client may surface either raw or second-scaled values.
	switch {
	case ttl == -2 || ttl == -2*time.Second:
		return 0, ErrNoTimer
	case ttl == -1 || ttl == -1*time.Second:
		return 0, ErrNoExpiry
	}
	return ttl, nil
}
