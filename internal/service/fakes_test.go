package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/internal/sla"
)

// memStore is the shared in-memory backing for the repository fakes.
// Sharing one store lets the ledger fake honor the same status checks
// the transactional repository enforces against the tickets table.
type memStore struct {
	tickets       map[string]*domain.Ticket
	users         map[string]*domain.User
	candidates    []repository.AgentCandidate
	current       map[string]*domain.Assignment
	history       []*domain.Assignment
	escalations   map[string][]domain.Escalation
	submissions   []*domain.Submission
	notifications []*domain.Notification
	tenants       map[string]*domain.Tenant
	configs       map[string]string

	timerStarts []timerStart
	timerStops  []string
	remaining   map[string]time.Duration

	seq int

	timerStartErr    error
	notifyErr        error
	assignErr        error
	escalateConflict int
}

type timerStart struct {
	ticketID string
	userID   string
	minutes  int
}

func newMemStore() *memStore {
	return &memStore{
		tickets:     map[string]*domain.Ticket{},
		users:       map[string]*domain.User{},
		current:     map[string]*domain.Assignment{},
		escalations: map[string][]domain.Escalation{},
		tenants:     map[string]*domain.Tenant{},
		configs:     map[string]string{},
		remaining:   map[string]time.Duration{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) addTicket(id, tenantID string, status domain.TicketStatus) *domain.Ticket {
	ticket := &domain.Ticket{
		ID:          id,
		TenantID:    tenantID,
		FirstName:   "Pat",
		LastName:    "Doe",
		Email:       "pat@example.com",
		Phone:       "555-0100",
		Description: "printer on fire",
		Status:      status,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	s.tickets[id] = ticket
	return ticket
}

func (s *memStore) addUser(id string, tenantID string, role domain.UserRole, managerID *string) *domain.User {
	tenant := tenantID
	user := &domain.User{
		ID:                 id,
		TenantID:           &tenant,
		ManagerID:          managerID,
		Username:           id,
		Email:              id + "@example.com",
		FirstName:          "User",
		LastName:           id,
		Role:               role,
		IsActive:           true,
		IsAcceptingTickets: true,
		Capacity:           10,
	}
	s.users[id] = user
	return user
}

func (s *memStore) setCurrent(ticketID, userID string, assignmentType domain.AssignmentType) *domain.Assignment {
	assignment := &domain.Assignment{
		ID:               s.nextID("assign"),
		TicketID:         ticketID,
		AssignedToUserID: userID,
		Type:             assignmentType,
		IsCurrent:        true,
		AssignedAt:       time.Now(),
	}
	s.current[ticketID] = assignment
	s.history = append(s.history, assignment)
	return assignment
}

func (s *memStore) notificationsFor(userID string) []*domain.Notification {
	var result []*domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result
}

// --- tickets ---

type fakeTickets struct{ s *memStore }

func (f *fakeTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = f.s.nextID("ticket")
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	f.s.tickets[ticket.ID] = ticket
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := f.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTickets) GetByIDInTenant(ctx context.Context, id, tenantID string) (*domain.Ticket, error) {
	ticket, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return ticket, nil
}

func (f *fakeTickets) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) error {
	ticket, ok := f.s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Status = status
	return nil
}

func (f *fakeTickets) UpdateEnrichment(_ context.Context, id string, title, summary, translation *string, categoryID *int64) error {
	ticket, ok := f.s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if title != nil {
		ticket.Title = title
	}
	if summary != nil {
		ticket.Summary = summary
	}
	if translation != nil {
		ticket.Translation = translation
	}
	if categoryID != nil {
		ticket.CategoryID = categoryID
	}
	return nil
}

func (f *fakeTickets) ListByStatus(_ context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range f.s.tickets {
		if ticket.Status == status {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (f *fakeTickets) ListByTenant(_ context.Context, tenantID string, _ repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range f.s.tickets {
		if ticket.TenantID == tenantID {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (f *fakeTickets) ListByAssignee(_ context.Context, userID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for ticketID, assignment := range f.s.current {
		if assignment.AssignedToUserID != userID {
			continue
		}
		ticket := f.s.tickets[ticketID]
		if ticket == nil {
			continue
		}
		if len(statuses) > 0 && !statusIn(ticket.Status, statuses) {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func statusIn(status domain.TicketStatus, set []domain.TicketStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

// --- users ---

type fakeUsers struct{ s *memStore }

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := f.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUsers) GetByLogin(_ context.Context, login string) (*domain.User, error) {
	for _, user := range f.s.users {
		if user.Username == login || user.Email == login {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) ListCandidates(_ context.Context, _ string, _ *int64) ([]repository.AgentCandidate, error) {
	return f.s.candidates, nil
}

func (f *fakeUsers) ListByRoles(_ context.Context, tenantID string, roles []domain.UserRole, activeOnly bool) ([]domain.User, error) {
	var result []domain.User
	for _, user := range f.s.users {
		if user.TenantID == nil || *user.TenantID != tenantID {
			continue
		}
		if activeOnly && !user.IsActive {
			continue
		}
		for _, role := range roles {
			if user.Role == role {
				result = append(result, *user)
				break
			}
		}
	}
	return result, nil
}

func (f *fakeUsers) ListByManager(_ context.Context, managerID string) ([]domain.User, error) {
	var result []domain.User
	for _, user := range f.s.users {
		if user.ManagerID != nil && *user.ManagerID == managerID {
			result = append(result, *user)
		}
	}
	return result, nil
}

// --- ledger ---

type fakeLedger struct{ s *memStore }

func (f *fakeLedger) GetCurrent(_ context.Context, ticketID string) (*domain.Assignment, error) {
	assignment, ok := f.s.current[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *assignment
	return &copied, nil
}

func (f *fakeLedger) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.Assignment, error) {
	var result []domain.Assignment
	for _, assignment := range f.s.history {
		if assignment.TicketID == ticketID {
			result = append(result, *assignment)
		}
	}
	return result, nil
}

func (f *fakeLedger) CountActiveForUser(_ context.Context, userID string) (int, error) {
	count := 0
	for ticketID, assignment := range f.s.current {
		if assignment.AssignedToUserID != userID {
			continue
		}
		ticket := f.s.tickets[ticketID]
		if ticket != nil && statusIn(ticket.Status, domain.ActiveTicketStatuses) {
			count++
		}
	}
	return count, nil
}

func (f *fakeLedger) Assign(_ context.Context, params repository.AssignParams) (*domain.Assignment, error) {
	if f.s.assignErr != nil {
		return nil, f.s.assignErr
	}
	ticket, ok := f.s.tickets[params.TicketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if len(params.RequireStatus) > 0 && !statusIn(ticket.Status, params.RequireStatus) {
		return nil, repository.ErrTicketStateConflict
	}
	f.closeCurrent(params.TicketID)
	assignment := &domain.Assignment{
		ID:               f.s.nextID("assign"),
		TicketID:         params.TicketID,
		AssignedToUserID: params.AssignToUserID,
		AssignedByUserID: params.AssignedByUserID,
		Type:             params.Type,
		IsCurrent:        true,
		AssignedAt:       time.Now(),
		Notes:            params.Notes,
	}
	f.s.current[params.TicketID] = assignment
	f.s.history = append(f.s.history, assignment)
	ticket.Status = domain.TicketStatusAssigned
	copied := *assignment
	return &copied, nil
}

func (f *fakeLedger) Escalate(_ context.Context, params repository.EscalateParams) (*domain.Assignment, *domain.Escalation, error) {
	ticket, ok := f.s.tickets[params.TicketID]
	if !ok {
		return nil, nil, pgx.ErrNoRows
	}
	if !statusIn(ticket.Status, domain.EscalatableStatuses) {
		return nil, nil, repository.ErrTicketStateConflict
	}
	current, ok := f.s.current[params.TicketID]
	if !ok {
		return nil, nil, pgx.ErrNoRows
	}
	if f.s.escalateConflict > 0 {
		f.s.escalateConflict--
		return nil, nil, repository.ErrLedgerConflict
	}
	if current.AssignedToUserID != params.FromUserID {
		return nil, nil, repository.ErrLedgerConflict
	}

	f.closeCurrent(params.TicketID)
	assignment := &domain.Assignment{
		ID:               f.s.nextID("assign"),
		TicketID:         params.TicketID,
		AssignedToUserID: params.ToUserID,
		Type:             domain.AssignmentTypeAutoEscalated,
		IsCurrent:        true,
		AssignedAt:       time.Now(),
		Notes:            params.Notes,
	}
	f.s.current[params.TicketID] = assignment
	f.s.history = append(f.s.history, assignment)

	reason := params.Reason
	escalation := domain.Escalation{
		ID:          f.s.nextID("esc"),
		TicketID:    params.TicketID,
		FromUserID:  params.FromUserID,
		ToUserID:    params.ToUserID,
		Level:       len(f.s.escalations[params.TicketID]) + 1,
		Reason:      &reason,
		EscalatedAt: time.Now(),
	}
	f.s.escalations[params.TicketID] = append(f.s.escalations[params.TicketID], escalation)
	ticket.Status = domain.TicketStatusAssigned

	copiedAssignment := *assignment
	copiedEscalation := escalation
	return &copiedAssignment, &copiedEscalation, nil
}

func (f *fakeLedger) closeCurrent(ticketID string) {
	if existing, ok := f.s.current[ticketID]; ok {
		existing.IsCurrent = false
		now := time.Now()
		existing.CompletedAt = &now
		delete(f.s.current, ticketID)
	}
}

// --- escalations ---

type fakeEscalations struct{ s *memStore }

func (f *fakeEscalations) ListByTicket(_ context.Context, ticketID string) ([]domain.Escalation, error) {
	return f.s.escalations[ticketID], nil
}

// --- submissions ---

type fakeSubmissions struct{ s *memStore }

func (f *fakeSubmissions) Create(_ context.Context, submission *domain.Submission) error {
	submission.ID = f.s.nextID("sub")
	submission.CreatedAt = time.Now()
	submission.UpdatedAt = submission.CreatedAt
	f.s.submissions = append(f.s.submissions, submission)
	return nil
}

func (f *fakeSubmissions) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.Submission, error) {
	var result []domain.Submission
	for _, submission := range f.s.submissions {
		if submission.TicketID == ticketID {
			result = append(result, *submission)
		}
	}
	return result, nil
}

// --- tenants ---

type fakeTenants struct{ s *memStore }

func (f *fakeTenants) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	for _, tenant := range f.s.tenants {
		if tenant.ID == id {
			copied := *tenant
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTenants) GetBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	tenant, ok := f.s.tenants[slug]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *tenant
	return &copied, nil
}

// --- configurations ---

type fakeConfigs struct{ s *memStore }

func (f *fakeConfigs) GetValue(_ context.Context, tenantID, key string) (string, error) {
	value, ok := f.s.configs[tenantID+"/"+key]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return value, nil
}

// --- timers ---

type fakeTimers struct{ s *memStore }

func (f *fakeTimers) Start(_ context.Context, ticketID, userID string, minutes int) error {
	if f.s.timerStartErr != nil {
		return f.s.timerStartErr
	}
	f.s.timerStarts = append(f.s.timerStarts, timerStart{ticketID: ticketID, userID: userID, minutes: minutes})
	f.s.remaining[ticketID] = time.Duration(minutes) * time.Minute
	return nil
}

func (f *fakeTimers) Stop(_ context.Context, ticketID string) (bool, error) {
	f.s.timerStops = append(f.s.timerStops, ticketID)
	_, existed := f.s.remaining[ticketID]
	delete(f.s.remaining, ticketID)
	return existed, nil
}

func (f *fakeTimers) Remaining(_ context.Context, ticketID string) (time.Duration, error) {
	remaining, ok := f.s.remaining[ticketID]
	if !ok {
		return 0, sla.ErrNoTimer
	}
	return remaining, nil
}

// --- notifications ---

type fakeNotifier struct{ s *memStore }

func (f *fakeNotifier) Create(_ context.Context, notification *domain.Notification) error {
	if f.s.notifyErr != nil {
		return f.s.notifyErr
	}
	notification.ID = f.s.nextID("notif")
	f.s.notifications = append(f.s.notifications, notification)
	return nil
}

// --- sla resolver ---

type fixedSLA struct{ minutes int }

func (f fixedSLA) Minutes(context.Context, string) int { return f.minutes }
