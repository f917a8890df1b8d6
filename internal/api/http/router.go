package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/deskops/helpdesk-service/internal/api/http/handlers"
	"github.com/deskops/helpdesk-service/internal/auth"
	"github.com/deskops/helpdesk-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
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

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle)

	protected.Get("/users/me", cfg.Users.Me)
	protected.Patch("/users/me", cfg.Users.UpdateMe)
	protected.Get("/users", auth.RequireStaff(), cfg.Users.ListUsers)

	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	protected.Delete("/tickets/:id", cfg.Tickets.DeleteTicket)

	protected.Get("/tickets/:id/comments", cfg.Comments.ListComments)
	protected.Post("/tickets/:id/comments", cfg.Comments.AddComment)
	protected.Get("/tickets/:id/actions", cfg.Comments.ListActions)
	protected.Delete("/comments/:id", auth.RequireAdmin(), cfg.Comments.DeleteComment)
}
