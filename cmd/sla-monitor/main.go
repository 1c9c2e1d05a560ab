package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/config"
	"github.com/spec-kit/ticket-platform/internal/events"
	"github.com/spec-kit/ticket-platform/internal/observability"
	"github.com/spec-kit/ticket-platform/internal/persistence"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/internal/service"
	"github.com/spec-kit/ticket-platform/internal/sla"
	"github.com/spec-kit/ticket-platform/internal/worker"
)

// The SLA monitor owns the escalation side of the platform: it watches
// Redis expired-key notifications and escalates breached tickets.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	ledgerRepo := repository.NewAssignmentRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	configurationRepo := repository.NewConfigurationRepository(pool)

	timers := sla.NewTimerStore(redis.Client, cfg.SLA.TimerCallTimeout, logger)
	slaPolicy := service.NewSLAPolicy(configurationRepo, cfg.SLA.DefaultMinutes, logger)
	notificationService := service.NewNotificationService(notificationRepo, logger)
	notificationService.RegisterEventHandlers(dispatcher)

	escalationService := service.NewEscalationService(service.EscalationDependencies{
		Tickets:     ticketRepo,
		Users:       userRepo,
		Ledger:      ledgerRepo,
		Escalations: escalationRepo,
		SLA:         slaPolicy,
		Timers:      timers,
		Notifier:    notificationService,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})

	listener := worker.NewEscalationListener(redis.Client, redis.DB, escalationService, logger)
	if err := listener.Start(ctx); err != nil {
		logger.Fatal("failed to subscribe to expiry events", zap.Error(err))
	}

	metricsServer := serveMetrics(cfg.Worker.MetricsAddr, metrics, logger)

	waitForShutdown(logger)

	cancel()
	listener.Stop()
	if metricsServer != nil {
		_ = metricsServer.Close()
	}
}

func serveMetrics(addr string, metrics *observability.Metrics, logger *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return server
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
