package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/observability"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/internal/service"
)

// Assigner is the slice of the assignment engine the retry worker
// drives.
type Assigner interface {
	AutoAssign(ctx context.Context, ticketID, tenantID string, assignedBy *string) (*service.AssignOutcome, error)
}

// RetryWorker periodically sweeps queued tickets and feeds each one
// back through auto-assignment. Tickets stay queued when no agent has
// capacity, so the sweep is the self-healing loop that drains the
// backlog once capacity frees up.
type RetryWorker struct {
	tickets  repository.TicketRepository
	assigner Assigner
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger

	scheduler *cron.Cron
	cycleTTL  time.Duration
}

// NewRetryWorker constructs the worker.
func NewRetryWorker(tickets repository.TicketRepository, assigner Assigner, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *RetryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RetryWorker{
		tickets:  tickets,
		assigner: assigner,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		cycleTTL: interval,
	}
}

// Start schedules the sweep. The cron scheduler runs each cycle in its
// own goroutine and skips nothing; a cycle is bounded by the interval
// so overlapping runs stay rare and harmless, since per-ticket writes
// serialize on the ticket row anyway.
func (w *RetryWorker) Start() error {
	if w.scheduler != nil {
		return fmt.Errorf("retry worker already started")
	}
	w.scheduler = cron.New(cron.WithSeconds())
	spec := fmt.Sprintf("@every %ds", int(w.interval.Seconds()))
	if _, err := w.scheduler.AddFunc(spec, w.runCycle); err != nil {
		return fmt.Errorf("schedule retry sweep: %w", err)
	}
	w.scheduler.Start()
	w.logger.Info("retry worker started", zap.Duration("interval", w.interval))
	return nil
}

// Stop halts scheduling and waits for an in-flight cycle to finish.
func (w *RetryWorker) Stop() {
	if w.scheduler == nil {
		return
	}
	ctx := w.scheduler.Stop()
	<-ctx.Done()
	w.logger.Info("retry worker stopped")
}

// RunOnce executes a single sweep. Exposed for the main loop's initial
// kick and for tests.
func (w *RetryWorker) RunOnce(ctx context.Context) {
	w.metrics.RetryCycleInc()

	queued, err := w.tickets.ListByStatus(ctx, domain.TicketStatusQueued)
	if err != nil {
		w.logger.Error("retry sweep could not list queued tickets", zap.Error(err))
		return
	}
	if len(queued) == 0 {
		return
	}
	w.logger.Info("retry sweep starting", zap.Int("queued", len(queued)))

	assigned := 0
	for i := range queued {
		if ctx.Err() != nil {
			w.logger.Warn("retry sweep interrupted", zap.Error(ctx.Err()))
			return
		}
		outcome, err := w.assigner.AutoAssign(ctx, queued[i].ID, queued[i].TenantID, nil)
		if err != nil {
			// One bad ticket must not starve the rest of the sweep.
			w.logger.Error("retry assignment failed",
				zap.String("ticket_id", queued[i].ID),
				zap.Error(err),
			)
			continue
		}
		if outcome.Assigned() {
			assigned++
			w.metrics.RetryAssignedInc()
		}
	}
	w.logger.Info("retry sweep finished",
		zap.Int("queued", len(queued)),
		zap.Int("assigned", assigned),
	)
}

func (w *RetryWorker) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cycleTTL)
	defer cancel()
	w.RunOnce(ctx)
}
