package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/events"
	"github.com/spec-kit/ticket-platform/internal/repository"
)

func newAssignmentService(s *memStore, minutes int) *AssignmentService {
	return NewAssignmentService(AssignmentDependencies{
		Tickets:    &fakeTickets{s: s},
		Users:      &fakeUsers{s: s},
		Ledger:     &fakeLedger{s: s},
		SLA:        fixedSLA{minutes: minutes},
		Timers:     &fakeTimers{s: s},
		Notifier:   &fakeNotifier{s: s},
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    nil,
		Logger:     zap.NewNop(),
	})
}

func candidateFor(user *domain.User, load int) repository.AgentCandidate {
	return repository.AgentCandidate{User: *user, ActiveLoad: load}
}

func TestAutoAssignPicksFirstCandidate(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusQueued)
	light := s.addUser("agent-light", "tenant-a", domain.UserRoleEmployee, nil)
	heavy := s.addUser("agent-heavy", "tenant-a", domain.UserRoleEmployee, nil)
	s.candidates = []repository.AgentCandidate{candidateFor(light, 1), candidateFor(heavy, 4)}

	svc := newAssignmentService(s, 45)
	outcome, err := svc.AutoAssign(context.Background(), ticket.ID, "tenant-a", nil)
	require.NoError(t, err)
	require.True(t, outcome.Assigned())

	assert.Equal(t, light.ID, outcome.Assignment.AssignedToUserID)
	assert.Equal(t, domain.AssignmentTypeAutoAssigned, outcome.Assignment.Type)
	assert.Equal(t, domain.TicketStatusAssigned, s.tickets[ticket.ID].Status)

	require.Len(t, s.timerStarts, 1)
	assert.Equal(t, light.ID, s.timerStarts[0].userID)
	assert.Equal(t, 45, s.timerStarts[0].minutes)
	assert.True(t, outcome.TimerStarted)
	assert.Equal(t, 45, outcome.SLAMinutes)

	require.True(t, outcome.Notified)
	notifications := s.notificationsFor(light.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, "New Ticket Assigned", notifications[0].Title)
	assert.Equal(t, domain.NotificationTicketAssigned, notifications[0].Type)
}

func TestAutoAssignNoCandidatesLeavesTicketQueued(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusQueued)

	svc := newAssignmentService(s, 60)
	outcome, err := svc.AutoAssign(context.Background(), ticket.ID, "tenant-a", nil)
	require.NoError(t, err)

	assert.False(t, outcome.Assigned())
	assert.Equal(t, domain.TicketStatusQueued, s.tickets[ticket.ID].Status)
	assert.Empty(t, s.timerStarts)
	assert.Empty(t, s.notifications)
}

func TestAutoAssignSkipsNonQueuedTicket(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusDone)
	agent := s.addUser("agent", "tenant-a", domain.UserRoleEmployee, nil)
	s.candidates = []repository.AgentCandidate{candidateFor(agent, 0)}

	svc := newAssignmentService(s, 60)
	outcome, err := svc.AutoAssign(context.Background(), ticket.ID, "tenant-a", nil)
	require.NoError(t, err)

	assert.False(t, outcome.Assigned())
	assert.Equal(t, domain.TicketStatusDone, s.tickets[ticket.ID].Status)
}

func TestAutoAssignUnknownTicketIsNoop(t *testing.T) {
	s := newMemStore()
	svc := newAssignmentService(s, 60)

	outcome, err := svc.AutoAssign(context.Background(), "missing", "tenant-a", nil)
	require.NoError(t, err)
	assert.False(t, outcome.Assigned())
}

func TestAutoAssignSurvivesLostRace(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusQueued)
	agent := s.addUser("agent", "tenant-a", domain.UserRoleEmployee, nil)
	s.candidates = []repository.AgentCandidate{candidateFor(agent, 0)}
	s.assignErr = repository.ErrTicketStateConflict

	svc := newAssignmentService(s, 60)
	outcome, err := svc.AutoAssign(context.Background(), ticket.ID, "tenant-a", nil)
	require.NoError(t, err)

	assert.False(t, outcome.Assigned())
	assert.Empty(t, s.timerStarts)
}

func TestAutoAssignTimerFailureDoesNotUndoAssignment(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusQueued)
	agent := s.addUser("agent", "tenant-a", domain.UserRoleEmployee, nil)
	s.candidates = []repository.AgentCandidate{candidateFor(agent, 0)}
	s.timerStartErr = assert.AnError

	svc := newAssignmentService(s, 60)
	outcome, err := svc.AutoAssign(context.Background(), ticket.ID, "tenant-a", nil)
	require.NoError(t, err)

	require.True(t, outcome.Assigned())
	assert.False(t, outcome.TimerStarted)
	assert.True(t, outcome.Notified)
	assert.Equal(t, domain.TicketStatusAssigned, s.tickets[ticket.ID].Status)
}

func TestReassignDerivesFirstAssignmentType(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusQueued)
	agent := s.addUser("agent", "tenant-a", domain.UserRoleEmployee, nil)
	admin := s.addUser("admin", "tenant-a", domain.UserRoleAdmin, nil)

	svc := newAssignmentService(s, 30)
	outcome, err := svc.Reassign(context.Background(), ReassignInput{
		TicketID:         ticket.ID,
		TenantID:         "tenant-a",
		AssignToUserID:   agent.ID,
		AssignedByUserID: admin.ID,
	})
	require.NoError(t, err)
	require.True(t, outcome.Assigned())
	assert.Equal(t, domain.AssignmentTypeAssigned, outcome.Assignment.Type)
	require.NotNil(t, outcome.Assignment.AssignedByUserID)
	assert.Equal(t, admin.ID, *outcome.Assignment.AssignedByUserID)
}

func TestReassignDerivesReassignedType(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusAssigned)
	first := s.addUser("first", "tenant-a", domain.UserRoleEmployee, nil)
	second := s.addUser("second", "tenant-a", domain.UserRoleEmployee, nil)
	admin := s.addUser("admin", "tenant-a", domain.UserRoleAdmin, nil)
	s.setCurrent(ticket.ID, first.ID, domain.AssignmentTypeAutoAssigned)

	svc := newAssignmentService(s, 30)
	outcome, err := svc.Reassign(context.Background(), ReassignInput{
		TicketID:         ticket.ID,
		TenantID:         "tenant-a",
		AssignToUserID:   second.ID,
		AssignedByUserID: admin.ID,
	})
	require.NoError(t, err)
	require.True(t, outcome.Assigned())
	assert.Equal(t, domain.AssignmentTypeReassigned, outcome.Assignment.Type)
	assert.Equal(t, second.ID, s.current[ticket.ID].AssignedToUserID)

	// The displaced assignee's row closed.
	require.Len(t, s.history, 2)
	assert.False(t, s.history[0].IsCurrent)
	assert.NotNil(t, s.history[0].CompletedAt)
}

func TestReassignRejectsInactiveAssignee(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusQueued)
	agent := s.addUser("agent", "tenant-a", domain.UserRoleEmployee, nil)
	agent.IsActive = false
	admin := s.addUser("admin", "tenant-a", domain.UserRoleAdmin, nil)

	svc := newAssignmentService(s, 30)
	_, err := svc.Reassign(context.Background(), ReassignInput{
		TicketID:         ticket.ID,
		TenantID:         "tenant-a",
		AssignToUserID:   agent.ID,
		AssignedByUserID: admin.ID,
	})
	require.Error(t, err)
	assert.Empty(t, s.history)
}

func TestReassignRejectsCrossTenantAssignee(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusQueued)
	agent := s.addUser("agent", "tenant-b", domain.UserRoleEmployee, nil)
	admin := s.addUser("admin", "tenant-a", domain.UserRoleAdmin, nil)

	svc := newAssignmentService(s, 30)
	_, err := svc.Reassign(context.Background(), ReassignInput{
		TicketID:         ticket.ID,
		TenantID:         "tenant-a",
		AssignToUserID:   agent.ID,
		AssignedByUserID: admin.ID,
	})
	require.Error(t, err)
}

func TestReassignRejectsClosedTicket(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusDone)
	agent := s.addUser("agent", "tenant-a", domain.UserRoleEmployee, nil)
	admin := s.addUser("admin", "tenant-a", domain.UserRoleAdmin, nil)

	svc := newAssignmentService(s, 30)
	_, err := svc.Reassign(context.Background(), ReassignInput{
		TicketID:         ticket.ID,
		TenantID:         "tenant-a",
		AssignToUserID:   agent.ID,
		AssignedByUserID: admin.ID,
	})
	require.Error(t, err)
}

func TestIntakeEventTriggersFirstAssignment(t *testing.T) {
	s := newMemStore()
	ticket := s.addTicket("t1", "tenant-a", domain.TicketStatusQueued)
	agent := s.addUser("agent", "tenant-a", domain.UserRoleEmployee, nil)
	s.candidates = []repository.AgentCandidate{candidateFor(agent, 0)}

	dispatcher := events.NewInMemoryDispatcher()
	svc := newAssignmentService(s, 30)
	svc.RegisterEventHandlers(dispatcher)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TenantID: "tenant-a",
		TicketID: ticket.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusAssigned, s.tickets[ticket.ID].Status)
	current := s.current[ticket.ID]
	require.NotNil(t, current)
	assert.Equal(t, agent.ID, current.AssignedToUserID)
}
