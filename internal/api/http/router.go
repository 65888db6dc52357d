package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/access-control/internal/api/http/handlers"
	"github.com/spec-kit/access-control/internal/auth"
	"github.com/spec-kit/access-control/internal/domain"
	"github.com/spec-kit/access-control/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
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

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh-token", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/token-ttl/:userId", auth.RequireSelfOrAdmin("userId"), cfg.Auth.TokenTTL)
	protected.Put("/token-ttl", cfg.Auth.RenewTTL)

	protected.Post("/users", auth.RequireRole(domain.RoleAdmin), cfg.Users.Create)
	protected.Get("/users", auth.RequireRole(domain.RoleAdmin), cfg.Users.List)
	protected.Get("/users/:username", auth.RequireRole(), cfg.Users.Get)
}
