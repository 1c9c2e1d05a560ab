package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-platform/internal/api/http/handlers"
	"github.com/spec-kit/ticket-platform/internal/auth"
	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Assignments    *handlers.AssignmentsHandler
	Team           *handlers.TeamHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1")
	api.Post("/auth/login", cfg.Auth.Login)
	api.Post("/public/tenants/:slug/tickets", cfg.Tickets.CreatePublic)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	protected.Get("/me/tickets", cfg.Tickets.ListMine)
	protected.Get("/tickets/:id/sla", cfg.Tickets.SLARemaining)
	protected.Post("/tickets/:id/submit", cfg.Tickets.Submit)
	protected.Patch("/tickets/:id/status", cfg.Tickets.UpdateStatus)
	protected.Get("/notifications", cfg.Notifications.List)
	protected.Post("/notifications/:id/read", cfg.Notifications.MarkRead)

	review := protected.Group("", auth.RequireRole(domain.UserRoleManager, domain.UserRoleAdmin, domain.UserRoleSuperAdmin))
	review.Post("/tickets/:id/approve", cfg.Tickets.Approve)
	review.Post("/tickets/:id/reject", cfg.Tickets.Reject)
	review.Post("/tickets/:id/notes", cfg.Tickets.AddNote)
	review.Get("/team", cfg.Team.Roster)
	review.Get("/team/chain/:userId", cfg.Team.ManagerChain)

	admin := protected.Group("/admin", auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleSuperAdmin))
	admin.Get("/tickets", cfg.Tickets.ListTenant)
	admin.Get("/tickets/:id", cfg.Tickets.GetDetail)
	admin.Post("/tickets/:id/assign", cfg.Assignments.Assign)
	admin.Post("/tickets/:id/auto-assign", cfg.Assignments.AutoAssign)
	admin.Post("/tickets/:id/resolve", cfg.Tickets.Resolve)
	admin.Patch("/tickets/:id/enrichment", cfg.Tickets.Enrich)
}
