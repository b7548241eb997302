package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/accountops/account-deletion/internal/api/http/handlers"
	"github.com/accountops/account-deletion/internal/auth"
	"github.com/accountops/account-deletion/internal/domain"
	"github.com/accountops/account-deletion/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Deletions      *handlers.DeletionHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware fiber.Handler
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)
	authGroup.Post("/users/logout", cfg.AuthMiddleware, auth.RequireUser(), cfg.Users.Logout)
	authGroup.Post("/staff/login", cfg.Staff.Login)

	account := app.Group("/account", cfg.AuthMiddleware, auth.RequireUser())
	account.Get("/deletion", cfg.Deletions.Status)
	account.Post("/deletion", cfg.Deletions.Request)
	account.Post("/deletion/cancel", cfg.Deletions.Cancel)

	staff := app.Group("/staff", cfg.AuthMiddleware, auth.RequireStaffRole(domain.StaffRoleAdmin, domain.StaffRoleModerator))
	staff.Get("/deletions", cfg.Staff.ListDeletions)
	staff.Post("/deletions/:userID/cancel", auth.RequireStaffRole(domain.StaffRoleAdmin), cfg.Staff.CancelDeletion)
}
