package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/events"
	"github.com/spec-kit/ticket-platform/internal/observability"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/pkg/util"
)

const escalationReason = "SLA breach: ticket not resolved within SLA window"

// EscalateOutcome reports how an SLA expiry was handled. Exactly one of
// Escalated and FinalNotice is true when the expiry was actionable;
// both are false when the timer fired stale and the expiry was ignored.
type EscalateOutcome struct {
	Escalated    bool
	FinalNotice  bool
	Assignment   *domain.Assignment
	Escalation   *domain.Escalation
	TimerStarted bool
}

// EscalationDependencies wires the escalation engine.
type EscalationDependencies struct {
	Tickets     repository.TicketRepository
	Users       repository.UserRepository
	Ledger      repository.AssignmentRepository
	Escalations repository.EscalationRepository
	SLA         SLAResolver
	Timers      SLATimers
	Notifier    NotificationSink
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// EscalationService turns SLA timer expiries into ownership transfers
// up the assignee's manager chain.
type EscalationService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	ledger      repository.AssignmentRepository
	escalations repository.EscalationRepository
	sla         SLAResolver
	timers      SLATimers
	notifier    NotificationSink
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewEscalationService constructs the service from its dependency bundle.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	return &EscalationService{
		tickets:     deps.Tickets,
		users:       deps.Users,
		ledger:      deps.Ledger,
		escalations: deps.Escalations,
		sla:         deps.SLA,
		timers:      deps.Timers,
		notifier:    deps.Notifier,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// HandleExpiry processes one expired SLA timer. The ticket state is
// reloaded from the ledger rather than trusted from the expiry payload,
// so timers that fired after resolution or reassignment are dropped
// silently. A ledger conflict (the assignee changed between the read
// and the transactional write) is retried once against fresh state.
func (s *EscalationService) HandleExpiry(ctx context.Context, ticketID string) (*EscalateOutcome, error) {
	outcome, err := s.escalateOnce(ctx, ticketID)
	if errors.Is(err, repository.ErrLedgerConflict) {
		s.logger.Warn("ledger changed under escalation, retrying once", zap.String("ticket_id", ticketID))
		outcome, err = s.escalateOnce(ctx, ticketID)
		if errors.Is(err, repository.ErrLedgerConflict) {
			s.logger.Warn("ledger still moving, dropping expiry", zap.String("ticket_id", ticketID))
			return &EscalateOutcome{}, nil
		}
	}
	return outcome, err
}

func (s *EscalationService) escalateOnce(ctx context.Context, ticketID string) (*EscalateOutcome, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("expiry for unknown ticket", zap.String("ticket_id", ticketID))
			return &EscalateOutcome{}, nil
		}
		return nil, util.MapError(err)
	}
	if !statusEscalatable(ticket.Status) {
		s.logger.Debug("stale expiry, ticket not escalatable",
			zap.String("ticket_id", ticketID),
			zap.String("status", string(ticket.Status)),
		)
		return &EscalateOutcome{}, nil
	}

	current, err := s.ledger.GetCurrent(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("expiry for ticket with no current assignment", zap.String("ticket_id", ticketID))
			return &EscalateOutcome{}, nil
		}
		return nil, util.MapError(err)
	}

	assignee, err := s.users.GetByID(ctx, current.AssignedToUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("current assignee missing from directory, cannot escalate",
				zap.String("ticket_id", ticketID),
				zap.String("user_id", current.AssignedToUserID),
			)
			return &EscalateOutcome{}, nil
		}
		return nil, util.MapError(err)
	}

	// A user pointing at themselves terminates the chain the same way a
	// missing manager does; without this a bad row would loop forever.
	if assignee.ManagerID == nil || *assignee.ManagerID == assignee.ID {
		return s.finalNotice(ctx, ticket, assignee,
			fmt.Sprintf("User %s has no manager assigned.", assignee.FullName()))
	}

	// Manager chains can also loop indirectly (A reports to B, B to A).
	// Anyone already in this ticket's escalation trail never receives it
	// a second time; the chain is treated as exhausted instead.
	revisit, err := s.chainRevisits(ctx, ticket.ID, *assignee.ManagerID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if revisit {
		return s.finalNotice(ctx, ticket, assignee,
			fmt.Sprintf("The manager chain for %s loops back to a previous holder.", assignee.FullName()))
	}

	manager, err := s.users.GetByID(ctx, *assignee.ManagerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("manager reference dangling, cannot escalate",
				zap.String("ticket_id", ticketID),
				zap.String("user_id", assignee.ID),
				zap.String("manager_id", *assignee.ManagerID),
			)
			return &EscalateOutcome{}, nil
		}
		return nil, util.MapError(err)
	}

	notes := fmt.Sprintf("Auto-escalated from %s (SLA breach)", assignee.FullName())
	assignment, escalation, err := s.ledger.Escalate(ctx, repository.EscalateParams{
		TicketID:   ticket.ID,
		FromUserID: assignee.ID,
		ToUserID:   manager.ID,
		Reason:     escalationReason,
		Notes:      &notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTicketStateConflict):
			s.logger.Debug("ticket left escalatable state before write", zap.String("ticket_id", ticketID))
			return &EscalateOutcome{}, nil
		case errors.Is(err, repository.ErrLedgerConflict):
			return nil, err
		case errors.Is(err, pgx.ErrNoRows):
			s.logger.Warn("assignment vanished before escalation write", zap.String("ticket_id", ticketID))
			return &EscalateOutcome{}, nil
		}
		return nil, util.MapError(err)
	}

	s.metrics.EscalationInc()
	s.metrics.RecordAssignment(string(domain.AssignmentTypeAutoEscalated))
	s.logger.Info("ticket escalated",
		zap.String("ticket_id", ticket.ID),
		zap.String("from_user_id", assignee.ID),
		zap.String("to_user_id", manager.ID),
		zap.Int("level", escalation.Level),
	)

	outcome := &EscalateOutcome{Escalated: true, Assignment: assignment, Escalation: escalation}
	s.notifyEscalation(ctx, ticket, assignee, manager)

	minutes := s.sla.Minutes(ctx, ticket.TenantID)
	if err := s.timers.Start(ctx, ticket.ID, manager.ID, minutes); err != nil {
		s.metrics.RecordTimerFailure("start")
		s.logger.Error("sla timer restart failed after escalation",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	} else {
		outcome.TimerStarted = true
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketEscalated,
		TenantID:  ticket.TenantID,
		TicketID:  ticket.ID,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketEscalatedPayload{
			FromUserID: assignee.ID,
			ToUserID:   manager.ID,
			Level:      escalation.Level,
		},
	})
	return outcome, nil
}

// finalNotice handles the top of the chain: ownership and status are
// left untouched, no new timer is set, and every active admin and
// manager in the tenant is told to intervene manually.
func (s *EscalationService) finalNotice(ctx context.Context, ticket *domain.Ticket, assignee *domain.User, detail string) (*EscalateOutcome, error) {
	s.metrics.FinalNoticeInc()
	s.logger.Warn("escalation chain exhausted, manual intervention required",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", assignee.ID),
	)

	recipients, err := s.users.ListByRoles(ctx, ticket.TenantID,
		[]domain.UserRole{domain.UserRoleAdmin, domain.UserRoleManager}, true)
	if err != nil {
		s.logger.Error("final notice recipient lookup failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
		return &EscalateOutcome{FinalNotice: true}, nil
	}

	message := fmt.Sprintf(
		"Ticket '%s' could not be escalated further. %s Manual intervention required.",
		ticket.DisplayTitle(), detail,
	)
	for i := range recipients {
		notification := &domain.Notification{
			UserID:        recipients[i].ID,
			Title:         "Escalation Limit Reached",
			Message:       message,
			Type:          domain.NotificationSystem,
			TicketID:      &ticket.ID,
			RelatedUserID: &assignee.ID,
		}
		if err := s.notifier.Create(ctx, notification); err != nil {
			s.logger.Error("final notice delivery failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("user_id", recipients[i].ID),
				zap.Error(err),
			)
		}
	}
	return &EscalateOutcome{FinalNotice: true}, nil
}

func (s *EscalationService) notifyEscalation(ctx context.Context, ticket *domain.Ticket, from, to *domain.User) {
	incoming := &domain.Notification{
		UserID:        to.ID,
		Title:         "Ticket Escalated to You",
		Message:       fmt.Sprintf("Ticket '%s' has been escalated to you due to SLA breach by %s.", ticket.DisplayTitle(), from.FullName()),
		Type:          domain.NotificationTicketAssigned,
		TicketID:      &ticket.ID,
		RelatedUserID: &from.ID,
	}
	if err := s.notifier.Create(ctx, incoming); err != nil {
		s.logger.Error("escalation notification failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("user_id", to.ID),
			zap.Error(err),
		)
	}

	outgoing := &domain.Notification{
		UserID:        from.ID,
		Title:         "Ticket Escalated",
		Message:       fmt.Sprintf("Ticket '%s' has been escalated to %s due to SLA breach.", ticket.DisplayTitle(), to.FullName()),
		Type:          domain.NotificationTicketAssigned,
		TicketID:      &ticket.ID,
		RelatedUserID: &to.ID,
	}
	if err := s.notifier.Create(ctx, outgoing); err != nil {
		s.logger.Error("escalation notification failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("user_id", from.ID),
			zap.Error(err),
		)
	}
}

// chainRevisits reports whether candidateID already appears anywhere in
// the ticket's escalation trail, on either side of a transfer.
func (s *EscalationService) chainRevisits(ctx context.Context, ticketID, candidateID string) (bool, error) {
	trail, err := s.escalations.ListByTicket(ctx, ticketID)
	if err != nil {
		return false, err
	}
	for i := range trail {
		if trail[i].FromUserID == candidateID || trail[i].ToUserID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

func statusEscalatable(status domain.TicketStatus) bool {
	for _, candidate := range domain.EscalatableStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}
