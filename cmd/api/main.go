package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-platform/internal/api/http"
	"github.com/spec-kit/ticket-platform/internal/api/http/handlers"
	"github.com/spec-kit/ticket-platform/internal/auth"
	"github.com/spec-kit/ticket-platform/internal/config"
	"github.com/spec-kit/ticket-platform/internal/events"
	"github.com/spec-kit/ticket-platform/internal/observability"
	"github.com/spec-kit/ticket-platform/internal/persistence"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/internal/service"
	"github.com/spec-kit/ticket-platform/internal/sla"
)

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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	ledgerRepo := repository.NewAssignmentRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	configurationRepo := repository.NewConfigurationRepository(pool)
	tenantRepo := repository.NewTenantRepository(pool)

	timers := sla.NewTimerStore(redis.Client, cfg.SLA.TimerCallTimeout, logger)
	slaPolicy := service.NewSLAPolicy(configurationRepo, cfg.SLA.DefaultMinutes, logger)

	notificationService := service.NewNotificationService(notificationRepo, logger)
	notificationService.RegisterEventHandlers(dispatcher)

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Tickets:    ticketRepo,
		Users:      userRepo,
		Ledger:     ledgerRepo,
		SLA:        slaPolicy,
		Timers:     timers,
		Notifier:   notificationService,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	assignmentService.RegisterEventHandlers(dispatcher)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Tickets:     ticketRepo,
		Tenants:     tenantRepo,
		Users:       userRepo,
		Ledger:      ledgerRepo,
		Submissions: submissionRepo,
		Escalations: escalationRepo,
		SLA:         slaPolicy,
		Timers:      timers,
		TimerReader: timers,
		Notifier:    notificationService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	teamService := service.NewTeamService(userRepo, ledgerRepo, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(userRepo, tokens, logger)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Assignments:    handlers.NewAssignmentsHandler(assignmentService),
		Team:           handlers.NewTeamHandler(teamService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		logger.Info("api listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
