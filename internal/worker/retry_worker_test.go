package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/internal/service"
)

type stubTickets struct {
	repository.TicketRepository
	queued []domain.Ticket
	err    error
}

func (s *stubTickets) ListByStatus(_ context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	if status != domain.TicketStatusQueued {
		return nil, nil
	}
	return s.queued, nil
}

type stubAssigner struct {
	calls    []string
	failFor  map[string]error
	assignOK map[string]bool
}

func (s *stubAssigner) AutoAssign(_ context.Context, ticketID, _ string, _ *string) (*service.AssignOutcome, error) {
	s.calls = append(s.calls, ticketID)
	if err := s.failFor[ticketID]; err != nil {
		return nil, err
	}
	if s.assignOK[ticketID] {
		return &service.AssignOutcome{Assignment: &domain.Assignment{TicketID: ticketID}}, nil
	}
	return &service.AssignOutcome{}, nil
}

func TestRunOnceSweepsQueuedTickets(t *testing.T) {
	tickets := &stubTickets{queued: []domain.Ticket{
		{ID: "t1", TenantID: "tenant-a", Status: domain.TicketStatusQueued},
		{ID: "t2", TenantID: "tenant-a", Status: domain.TicketStatusQueued},
	}}
	assigner := &stubAssigner{assignOK: map[string]bool{"t1": true}}

	w := NewRetryWorker(tickets, assigner, time.Minute, nil, zap.NewNop())
	w.RunOnce(context.Background())

	assert.Equal(t, []string{"t1", "t2"}, assigner.calls)
}

func TestRunOnceIsolatesPerTicketFailures(t *testing.T) {
	tickets := &stubTickets{queued: []domain.Ticket{
		{ID: "t1", TenantID: "tenant-a", Status: domain.TicketStatusQueued},
		{ID: "t2", TenantID: "tenant-a", Status: domain.TicketStatusQueued},
		{ID: "t3", TenantID: "tenant-a", Status: domain.TicketStatusQueued},
	}}
	assigner := &stubAssigner{
		failFor:  map[string]error{"t2": assert.AnError},
		assignOK: map[string]bool{"t3": true},
	}

	w := NewRetryWorker(tickets, assigner, time.Minute, nil, zap.NewNop())
	w.RunOnce(context.Background())

	// t2 fails but t3 still gets its turn.
	assert.Equal(t, []string{"t1", "t2", "t3"}, assigner.calls)
}

func TestRunOnceStopsOnCanceledContext(t *testing.T) {
	tickets := &stubTickets{queued: []domain.Ticket{
		{ID: "t1", TenantID: "tenant-a", Status: domain.TicketStatusQueued},
	}}
	assigner := &stubAssigner{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewRetryWorker(tickets, assigner, time.Minute, nil, zap.NewNop())
	w.RunOnce(ctx)

	assert.Empty(t, assigner.calls)
}

func TestRunOnceSurvivesListFailure(t *testing.T) {
	tickets := &stubTickets{err: assert.AnError}
	assigner := &stubAssigner{}

	w := NewRetryWorker(tickets, assigner, time.Minute, nil, zap.NewNop())
	w.RunOnce(context.Background())

	assert.Empty(t, assigner.calls)
}

func TestStartRejectsDoubleStart(t *testing.T) {
	w := NewRetryWorker(&stubTickets{}, &stubAssigner{}, time.Minute, nil, zap.NewNop())
	require.NoError(t, w.Start())
	defer w.Stop()
	require.Error(t, w.Start())
}

func TestNewRetryWorkerDefaultsInterval(t *testing.T) {
	w := NewRetryWorker(&stubTickets{}, &stubAssigner{}, 0, nil, zap.NewNop())
	assert.Equal(t, time.Minute, w.interval)
}
