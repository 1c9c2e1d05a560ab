package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/events"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/internal/sla"
	"github.com/spec-kit/ticket-platform/pkg/util"
)

// PublicTicketInput carries an unauthenticated intake submission.
type PublicTicketInput struct {
	TenantSlug  string
	CategoryID  *int64
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Description string
}

// EnrichmentInput carries the fields an external collaborator produces
// after intake. Nil fields keep their stored value.
type EnrichmentInput struct {
	Title       *string
	Summary     *string
	Translation *string
	CategoryID  *int64
}

// TicketDetail bundles a ticket with its full audit trail.
type TicketDetail struct {
	Ticket      *domain.Ticket
	Assignments []domain.Assignment
	Submissions []domain.Submission
	Escalations []domain.Escalation
}

// TicketDependencies wires the lifecycle service.
type TicketDependencies struct {
	Tickets     repository.TicketRepository
	Tenants     repository.TenantRepository
	Users       repository.UserRepository
	Ledger      repository.AssignmentRepository
	Submissions repository.SubmissionRepository
	Escalations repository.EscalationRepository
	SLA         SLAResolver
	Timers      SLATimers
	TimerReader SLATimerReader
	Notifier    NotificationSink
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketService drives intake, the completion/review flow and status
// changes for tickets.
type TicketService struct {
	tickets     repository.TicketRepository
	tenants     repository.TenantRepository
	users       repository.UserRepository
	ledger      repository.AssignmentRepository
	submissions repository.SubmissionRepository
	escalations repository.EscalationRepository
	sla         SLAResolver
	timers      SLATimers
	timerReader SLATimerReader
	notifier    NotificationSink
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// NewTicketService constructs the service from its dependency bundle.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.Tickets,
		tenants:     deps.Tenants,
		users:       deps.Users,
		ledger:      deps.Ledger,
		submissions: deps.Submissions,
		escalations: deps.Escalations,
		sla:         deps.SLA,
		timers:      deps.Timers,
		timerReader: deps.TimerReader,
		notifier:    deps.Notifier,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// CreatePublicTicket accepts an intake submission against a tenant slug
// and enqueues it. The created event gives the assignment engine its
// first shot at the ticket; the retry worker covers everything left
// queued after that.
func (s *TicketService) CreatePublicTicket(ctx context.Context, input PublicTicketInput) (*domain.Ticket, error) {
	if err := validateIntake(input); err != nil {
		return nil, err
	}

	tenant, err := s.tenants.GetBySlug(ctx, strings.TrimSpace(input.TenantSlug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("tenant", map[string]any{"slug": input.TenantSlug})
		}
		return nil, util.MapError(err)
	}
	if !tenant.IsActive {
		return nil, util.NewNotFound("tenant", map[string]any{"slug": input.TenantSlug})
	}

	ticket := &domain.Ticket{
		TenantID:    tenant.ID,
		CategoryID:  input.CategoryID,
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		Email:       strings.TrimSpace(input.Email),
		Phone:       strings.TrimSpace(input.Phone),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusQueued,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("tenant_id", tenant.ID),
	)

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketCreated,
		TenantID:  tenant.ID,
		TicketID:  ticket.ID,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketCreatedPayload{
			CategoryID: ticket.CategoryID,
			Email:      ticket.Email,
		},
	})
	return ticket, nil
}

// UpdateEnrichment writes collaborator-produced fields onto a ticket.
// Category changes only steer future assignment; the current owner, if
// any, keeps the ticket.
func (s *TicketService) UpdateEnrichment(ctx context.Context, actor *domain.User, ticketID string, input EnrichmentInput) (*domain.Ticket, error) {
	ticket, err := s.loadForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if input.Title == nil && input.Summary == nil && input.Translation == nil && input.CategoryID == nil {
		return nil, util.NewValidationError("no enrichment fields provided", nil)
	}

	if err := s.tickets.UpdateEnrichment(ctx, ticket.ID, input.Title, input.Summary, input.Translation, input.CategoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.MapError(err)
	}

	ticket, err = s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return nil, util.MapError(err)
	}
	s.logger.Info("ticket enriched", zap.String("ticket_id", ticket.ID))
	return ticket, nil
}

// GetDetail returns a tenant-scoped ticket with its ledger, submission
// and escalation history.
func (s *TicketService) GetDetail(ctx context.Context, tenantID, ticketID string) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByIDInTenant(ctx, ticketID, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.MapError(err)
	}

	assignments, err := s.ledger.ListByTicket(ctx, ticketID, 100, 0)
	if err != nil {
		return nil, util.MapError(err)
	}
	submissions, err := s.submissions.ListByTicket(ctx, ticketID, 100, 0)
	if err != nil {
		return nil, util.MapError(err)
	}
	escalations, err := s.escalations.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}

	return &TicketDetail{
		Ticket:      ticket,
		Assignments: assignments,
		Submissions: submissions,
		Escalations: escalations,
	}, nil
}

// ListForTenant lists tickets for admin views.
func (s *TicketService) ListForTenant(ctx context.Context, tenantID string, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, util.MapError(err)
	}
	return tickets, nil
}

// ListForAssignee lists the tickets currently owned by a user.
func (s *TicketService) ListForAssignee(ctx context.Context, userID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByAssignee(ctx, userID, statuses)
	if err != nil {
		return nil, util.MapError(err)
	}
	return tickets, nil
}

// SLARemaining reports the time left on a ticket's timer. The second
// return is false when no timer is running.
func (s *TicketService) SLARemaining(ctx context.Context, tenantID, ticketID string) (time.Duration, bool, error) {
	if _, err := s.tickets.GetByIDInTenant(ctx, ticketID, tenantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return 0, false, util.MapError(err)
	}
	remaining, err := s.timerReader.Remaining(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sla.ErrNoTimer) || errors.Is(err, sla.ErrNoExpiry) {
			return 0, false, nil
		}
		return 0, false, util.MapError(err)
	}
	return remaining, true, nil
}

// SubmitForCompletion is the employee hand-in: the current assignee
// declares the work finished, the ticket moves to processed and the SLA
// timer stops pending manager review.
func (s *TicketService) SubmitForCompletion(ctx context.Context, actor *domain.User, ticketID, comment string, attachmentURL *string) (*domain.Submission, error) {
	ticket, err := s.loadForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.SLAActive() {
		return nil, util.NewConflict("ticket cannot be submitted from its current status", map[string]any{"status": ticket.Status})
	}

	current, err := s.requireCurrentAssignment(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if current.AssignedToUserID != actor.ID && !isAdmin(actor) {
		return nil, util.NewForbidden("only the current assignee can submit this ticket")
	}

	submission := &domain.Submission{
		TicketID:          ticket.ID,
		SubmittedByUserID: actor.ID,
		Type:              domain.SubmissionTypeEmployee,
		Comment:           comment,
		AttachmentURL:     attachmentURL,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, util.MapError(err)
	}
	if err := s.transition(ctx, ticket, domain.TicketStatusProcessed); err != nil {
		return nil, err
	}
	s.stopTimer(ctx, ticket.ID)
	s.logger.Info("ticket submitted for review",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", actor.ID),
	)
	return submission, nil
}

// Approve is the manager sign-off on a processed ticket. Managers may
// only approve work of their direct reports; admins may approve any.
func (s *TicketService) Approve(ctx context.Context, actor *domain.User, ticketID, comment string) (*domain.Submission, error) {
	ticket, current, assignee, err := s.loadForReview(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	if comment == "" {
		comment = "Approved"
	}
	submission := &domain.Submission{
		TicketID:          ticket.ID,
		SubmittedByUserID: actor.ID,
		Type:              domain.SubmissionTypeManagerApproval,
		Comment:           comment,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, util.MapError(err)
	}
	if err := s.transition(ctx, ticket, domain.TicketStatusDone); err != nil {
		return nil, err
	}
	s.stopTimer(ctx, ticket.ID)

	s.notifyReview(ctx, ticket, current.AssignedToUserID, actor.ID,
		"Ticket Approved",
		fmt.Sprintf("Your submission for ticket '%s' has been approved.", ticket.DisplayTitle()),
		domain.NotificationTicketApproved,
	)
	s.logger.Info("ticket approved",
		zap.String("ticket_id", ticket.ID),
		zap.String("approved_by", actor.ID),
		zap.String("assignee", assignee.ID),
	)
	return submission, nil
}

// Reject sends a processed ticket back to its assignee. The ticket
// returns to in-progress and the SLA timer restarts for the same owner.
func (s *TicketService) Reject(ctx context.Context, actor *domain.User, ticketID, comment string) (*domain.Submission, error) {
	ticket, current, assignee, err := s.loadForReview(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if comment == "" {
		return nil, util.NewValidationError("a rejection requires a comment", nil)
	}

	submission := &domain.Submission{
		TicketID:          ticket.ID,
		SubmittedByUserID: actor.ID,
		Type:              domain.SubmissionTypeManagerReview,
		Comment:           comment,
		RequiresChanges:   true,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, util.MapError(err)
	}
	if err := s.transition(ctx, ticket, domain.TicketStatusInProgress); err != nil {
		return nil, err
	}

	minutes := s.sla.Minutes(ctx, ticket.TenantID)
	if err := s.timers.Start(ctx, ticket.ID, current.AssignedToUserID, minutes); err != nil {
		s.logger.Error("sla timer restart failed after rejection",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	}

	s.notifyReview(ctx, ticket, current.AssignedToUserID, actor.ID,
		"Submission Rejected",
		fmt.Sprintf("Your submission for ticket '%s' requires changes: %s", ticket.DisplayTitle(), comment),
		domain.NotificationTicketRejected,
	)
	s.logger.Info("ticket submission rejected",
		zap.String("ticket_id", ticket.ID),
		zap.String("rejected_by", actor.ID),
		zap.String("assignee", assignee.ID),
	)
	return submission, nil
}

// AddNote records a supervisor note on a ticket's review trail and
// pings the current assignee. Notes never touch status or the timer.
func (s *TicketService) AddNote(ctx context.Context, actor *domain.User, ticketID, comment string) (*domain.Submission, error) {
	ticket, err := s.loadForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(comment) == "" {
		return nil, util.NewValidationError("a note requires a comment", nil)
	}

	current, err := s.requireCurrentAssignment(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.users.GetByID(ctx, current.AssignedToUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewConflict("current assignee no longer exists", nil)
		}
		return nil, util.MapError(err)
	}
	if actor.Role == domain.UserRoleManager {
		if assignee.ManagerID == nil || *assignee.ManagerID != actor.ID {
			return nil, util.NewForbidden("managers may only annotate tickets of their direct reports")
		}
	} else if !isAdmin(actor) {
		return nil, util.NewForbidden("notes require manager or admin role")
	}

	submission := &domain.Submission{
		TicketID:          ticket.ID,
		SubmittedByUserID: actor.ID,
		Type:              domain.SubmissionTypeNote,
		Comment:           comment,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, util.MapError(err)
	}

	if assignee.ID != actor.ID {
		s.notifyReview(ctx, ticket, assignee.ID, actor.ID,
			"Manager Note",
			fmt.Sprintf("%s left a note on ticket '%s': %s", actor.FullName(), ticket.DisplayTitle(), comment),
			domain.NotificationManagerMessage,
		)
	}
	s.logger.Info("note added",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", actor.ID),
	)
	return submission, nil
}

// SubmitAndResolve is the admin shortcut that closes a ticket in one
// step, writing both sides of the review trail.
func (s *TicketService) SubmitAndResolve(ctx context.Context, actor *domain.User, ticketID, comment string, attachmentURL *string) (*domain.Ticket, error) {
	ticket, err := s.loadForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.IsTerminal() {
		return nil, util.NewConflict("ticket is already closed", map[string]any{"status": ticket.Status})
	}

	handIn := &domain.Submission{
		TicketID:          ticket.ID,
		SubmittedByUserID: actor.ID,
		Type:              domain.SubmissionTypeEmployee,
		Comment:           comment,
		AttachmentURL:     attachmentURL,
	}
	if err := s.submissions.Create(ctx, handIn); err != nil {
		return nil, util.MapError(err)
	}
	approval := &domain.Submission{
		TicketID:          ticket.ID,
		SubmittedByUserID: actor.ID,
		Type:              domain.SubmissionTypeManagerApproval,
		Comment:           "Auto-approved by admin",
	}
	if err := s.submissions.Create(ctx, approval); err != nil {
		return nil, util.MapError(err)
	}

	if err := s.transition(ctx, ticket, domain.TicketStatusDone); err != nil {
		return nil, err
	}
	s.stopTimer(ctx, ticket.ID)
	s.logger.Info("ticket resolved by admin",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", actor.ID),
	)
	return ticket, nil
}

// UpdateStatus applies a status change. Non-admin actors must be the
// current assignee and follow the state machine; admins may override,
// which covers reopening closed tickets.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, next domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := s.loadForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == next {
		return ticket, nil
	}

	if !isAdmin(actor) {
		if next == domain.TicketStatusQueued || next == domain.TicketStatusAssigned {
			return nil, util.NewForbidden("ownership changes go through assignment")
		}
		if !ticket.Status.CanTransitionTo(next) {
			return nil, util.NewConflict("transition not allowed", map[string]any{
				"from": ticket.Status,
				"to":   next,
			})
		}
		current, err := s.requireCurrentAssignment(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		if current.AssignedToUserID != actor.ID {
			return nil, util.NewForbidden("only the current assignee can update this ticket")
		}
	}

	wasActive := ticket.Status.SLAActive()
	if err := s.transition(ctx, ticket, next); err != nil {
		return nil, err
	}

	switch {
	case wasActive && !next.SLAActive():
		s.stopTimer(ctx, ticket.ID)
	case !wasActive && next.SLAActive():
		// Admin override back into an active status. Rearm the timer for
		// whoever holds the current ledger row, if anyone does.
		current, err := s.ledger.GetCurrent(ctx, ticket.ID)
		if err == nil {
			minutes := s.sla.Minutes(ctx, ticket.TenantID)
			if startErr := s.timers.Start(ctx, ticket.ID, current.AssignedToUserID, minutes); startErr != nil {
				s.logger.Error("sla timer rearm failed",
					zap.String("ticket_id", ticket.ID),
					zap.Error(startErr),
				)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("ledger read failed during timer rearm",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err),
			)
		}
	}
	return ticket, nil
}

// loadForActor fetches a ticket and enforces tenant visibility for the
// acting user. Super-admins have no tenant and see everything.
func (s *TicketService) loadForActor(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.MapError(err)
	}
	if actor.TenantID != nil && *actor.TenantID != ticket.TenantID {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// loadForReview shares the guards of Approve and Reject: processed
// status, a live ledger row, and the direct-report rule for managers.
func (s *TicketService) loadForReview(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, *domain.Assignment, *domain.User, error) {
	ticket, err := s.loadForActor(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, nil, err
	}
	if ticket.Status != domain.TicketStatusProcessed {
		return nil, nil, nil, util.NewConflict("ticket is not awaiting review", map[string]any{"status": ticket.Status})
	}

	current, err := s.requireCurrentAssignment(ctx, ticketID)
	if err != nil {
		return nil, nil, nil, err
	}
	assignee, err := s.users.GetByID(ctx, current.AssignedToUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil, util.NewConflict("current assignee no longer exists", nil)
		}
		return nil, nil, nil, util.MapError(err)
	}

	if actor.Role == domain.UserRoleManager {
		if assignee.ManagerID == nil || *assignee.ManagerID != actor.ID {
			return nil, nil, nil, util.NewForbidden("managers may only review their direct reports")
		}
	} else if !isAdmin(actor) {
		return nil, nil, nil, util.NewForbidden("review requires manager or admin role")
	}
	return ticket, current, assignee, nil
}

func (s *TicketService) requireCurrentAssignment(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	current, err := s.ledger.GetCurrent(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewConflict("ticket has no active assignment", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.MapError(err)
	}
	return current, nil
}

// transition persists the status change and publishes the event. The
// ticket struct is updated in place.
func (s *TicketService) transition(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus) error {
	old := ticket.Status
	if err := s.tickets.UpdateStatus(ctx, ticket.ID, next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
		}
		return util.MapError(err)
	}
	ticket.Status = next

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketStatusChanged,
		TenantID:  ticket.TenantID,
		TicketID:  ticket.ID,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: old,
			NewStatus: next,
		},
	})
	return nil
}

func (s *TicketService) stopTimer(ctx context.Context, ticketID string) {
	if _, err := s.timers.Stop(ctx, ticketID); err != nil {
		s.logger.Error("sla timer stop failed",
			zap.String("ticket_id", ticketID),
			zap.Error(err),
		)
	}
}

func (s *TicketService) notifyReview(ctx context.Context, ticket *domain.Ticket, userID, reviewerID string, title, message string, notificationType domain.NotificationType) {
	notification := &domain.Notification{
		UserID:        userID,
		Title:         title,
		Message:       message,
		Type:          notificationType,
		TicketID:      &ticket.ID,
		RelatedUserID: &reviewerID,
	}
	if err := s.notifier.Create(ctx, notification); err != nil {
		s.logger.Error("review notification failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func isAdmin(user *domain.User) bool {
	return user.Role == domain.UserRoleAdmin || user.Role == domain.UserRoleSuperAdmin
}

func validateIntake(input PublicTicketInput) error {
	details := map[string]any{}
	if strings.TrimSpace(input.FirstName) == "" {
		details["first_name"] = "required"
	}
	if strings.TrimSpace(input.LastName) == "" {
		details["last_name"] = "required"
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		details["email"] = "required"
	} else if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "invalid"
	}
	if strings.TrimSpace(input.Phone) == "" {
		details["phone"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		details["description"] = "required"
	}
	if len(details) > 0 {
		return util.NewValidationError("invalid ticket submission", details)
	}
	return nil
}
