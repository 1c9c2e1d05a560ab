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

// AssignOutcome reports what an assignment attempt did. Assignment is
// nil when no ledger row was opened (ticket missing, not queued, no
// eligible agent, or a concurrent writer won the row lock first).
// TimerStarted and Notified track the best-effort side effects
// separately from the durable mutation.
type AssignOutcome struct {
	Assignment   *domain.Assignment
	AssignedUser *domain.User
	SLAMinutes   int
	TimerStarted bool
	Notified     bool
}

// Assigned reports whether a ledger row was opened.
func (o *AssignOutcome) Assigned() bool {
	return o != nil && o.Assignment != nil
}

// ReassignInput describes a manual assignment by an admin. Type is
// derived from ledger state when left empty.
type ReassignInput struct {
	TicketID         string
	TenantID         string
	AssignToUserID   string
	AssignedByUserID string
	Type             domain.AssignmentType
	Notes            *string
}

// AssignmentDependencies wires the assignment engine.
type AssignmentDependencies struct {
	Tickets    repository.TicketRepository
	Users      repository.UserRepository
	Ledger     repository.AssignmentRepository
	SLA        SLAResolver
	Timers     SLATimers
	Notifier   NotificationSink
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// AssignmentService implements load-balanced auto-assignment and manual
// reassignment over the ownership ledger.
type AssignmentService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	ledger     repository.AssignmentRepository
	sla        SLAResolver
	timers     SLATimers
	notifier   NotificationSink
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAssignmentService constructs the service from its dependency bundle.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:    deps.Tickets,
		users:      deps.Users,
		ledger:     deps.Ledger,
		sla:        deps.SLA,
		timers:     deps.Timers,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// RegisterEventHandlers hooks the engine into ticket intake: every new
// ticket gets one immediate assignment attempt. A failed or fruitless
// attempt leaves the ticket queued for the retry sweep.
func (s *AssignmentService) RegisterEventHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, func(ctx context.Context, event events.Event) error {
		outcome, err := s.AutoAssign(ctx, event.TicketID, event.TenantID, nil)
		if err != nil {
			s.logger.Error("initial assignment attempt failed",
				zap.String("ticket_id", event.TicketID),
				zap.Error(err),
			)
			return err
		}
		if !outcome.Assigned() {
			s.logger.Info("ticket left queued after intake", zap.String("ticket_id", event.TicketID))
		}
		return nil
	})
}

// AutoAssign picks the least-loaded eligible agent for a queued ticket
// and opens a ledger row for them. Every no-op path returns a non-nil
// outcome with a nil Assignment so callers (the retry worker in
// particular) can distinguish "nothing to do" from failure.
func (s *AssignmentService) AutoAssign(ctx context.Context, ticketID, tenantID string, assignedBy *string) (*AssignOutcome, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("auto-assign skipped, ticket not found", zap.String("ticket_id", ticketID))
			return &AssignOutcome{}, nil
		}
		return nil, util.MapError(err)
	}
	if tenantID != "" && ticket.TenantID != tenantID {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Status != domain.TicketStatusQueued {
		s.logger.Debug("auto-assign skipped, ticket not queued",
			zap.String("ticket_id", ticketID),
			zap.String("status", string(ticket.Status)),
		)
		return &AssignOutcome{}, nil
	}

	candidates, err := s.users.ListCandidates(ctx, ticket.TenantID, ticket.CategoryID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if len(candidates) == 0 {
		s.metrics.NoAgentInc()
		s.logger.Info("no eligible agent, ticket stays queued", zap.String("ticket_id", ticketID))
		return &AssignOutcome{}, nil
	}
	agent := candidates[0].User

	assignment, err := s.ledger.Assign(ctx, repository.AssignParams{
		TicketID:         ticket.ID,
		AssignToUserID:   agent.ID,
		AssignedByUserID: assignedBy,
		Type:             domain.AssignmentTypeAutoAssigned,
		RequireStatus:    []domain.TicketStatus{domain.TicketStatusQueued},
	})
	if err != nil {
		if errors.Is(err, repository.ErrTicketStateConflict) {
			s.logger.Info("auto-assign lost race, ticket no longer queued", zap.String("ticket_id", ticketID))
			return &AssignOutcome{}, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return &AssignOutcome{}, nil
		}
		return nil, util.MapError(err)
	}
	s.metrics.RecordAssignment(string(domain.AssignmentTypeAutoAssigned))
	s.logger.Info("ticket auto-assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", agent.ID),
		zap.Int("active_load", candidates[0].ActiveLoad),
	)

	outcome := &AssignOutcome{Assignment: assignment, AssignedUser: &agent}
	s.finishAssignment(ctx, ticket, &agent, assignment, outcome,
		"New Ticket Assigned",
		fmt.Sprintf("You have been automatically assigned ticket - %s", ticket.DisplayTitle()),
		assignedBy,
	)
	return outcome, nil
}

// Reassign moves a ticket to a named agent on an admin's authority. The
// queued-only guard does not apply here; the ledger still serializes the
// handover per ticket.
func (s *AssignmentService) Reassign(ctx context.Context, input ReassignInput) (*AssignOutcome, error) {
	ticket, err := s.tickets.GetByIDInTenant(ctx, input.TicketID, input.TenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": input.TicketID})
		}
		return nil, util.MapError(err)
	}
	if ticket.Status.IsTerminal() {
		return nil, util.NewConflict("ticket is closed", map[string]any{"status": ticket.Status})
	}

	assignee, err := s.users.GetByID(ctx, input.AssignToUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("assignee", map[string]any{"user_id": input.AssignToUserID})
		}
		return nil, util.MapError(err)
	}
	if !assignee.IsActive {
		return nil, util.NewConflict("assignee is not active", map[string]any{"user_id": assignee.ID})
	}
	if assignee.TenantID == nil || *assignee.TenantID != ticket.TenantID {
		return nil, util.NewValidationError("assignee belongs to another tenant", nil)
	}

	assignmentType := input.Type
	if assignmentType == "" {
		_, err := s.ledger.GetCurrent(ctx, ticket.ID)
		switch {
		case err == nil:
			assignmentType = domain.AssignmentTypeReassigned
		case errors.Is(err, pgx.ErrNoRows):
			assignmentType = domain.AssignmentTypeAssigned
		default:
			return nil, util.MapError(err)
		}
	}

	assignedBy := input.AssignedByUserID
	assignment, err := s.ledger.Assign(ctx, repository.AssignParams{
		TicketID:         ticket.ID,
		AssignToUserID:   assignee.ID,
		AssignedByUserID: &assignedBy,
		Type:             assignmentType,
		Notes:            input.Notes,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": input.TicketID})
		}
		return nil, util.MapError(err)
	}
	s.metrics.RecordAssignment(string(assignmentType))
	s.logger.Info("ticket reassigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", assignee.ID),
		zap.String("assigned_by", assignedBy),
		zap.String("type", string(assignmentType)),
	)

	outcome := &AssignOutcome{Assignment: assignment, AssignedUser: assignee}
	s.finishAssignment(ctx, ticket, assignee, assignment, outcome,
		"New Ticket Assigned",
		fmt.Sprintf("You have been assigned ticket - %s", ticket.DisplayTitle()),
		&assignedBy,
	)
	return outcome, nil
}

// finishAssignment runs the best-effort side effects that follow any
// successful ledger write: notification, SLA timer, domain event.
// Failures are logged and surfaced through the outcome flags only.
func (s *AssignmentService) finishAssignment(ctx context.Context, ticket *domain.Ticket, assignee *domain.User, assignment *domain.Assignment, outcome *AssignOutcome, title, message string, relatedUserID *string) {
	notification := &domain.Notification{
		UserID:        assignee.ID,
		Title:         title,
		Message:       message,
		Type:          domain.NotificationTicketAssigned,
		TicketID:      &ticket.ID,
		RelatedUserID: relatedUserID,
	}
	if err := s.notifier.Create(ctx, notification); err != nil {
		s.logger.Error("assignment notification failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	} else {
		outcome.Notified = true
	}

	minutes := s.sla.Minutes(ctx, ticket.TenantID)
	outcome.SLAMinutes = minutes
	if err := s.timers.Start(ctx, ticket.ID, assignee.ID, minutes); err != nil {
		s.metrics.RecordTimerFailure("start")
		s.logger.Error("sla timer start failed, assignment stands",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	} else {
		outcome.TimerStarted = true
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketAssigned,
		TenantID:  ticket.TenantID,
		TicketID:  ticket.ID,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketAssignedPayload{
			AssignedToUserID: assignee.ID,
			AssignmentType:   assignment.Type,
		},
	})
}
