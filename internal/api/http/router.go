package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Auth        *handlers.AuthHandler
	Requests    *handlers.RequestsHandler
	Attachments *handlers.AttachmentsHandler
	Database    *handlers.DatabaseHandler
	Admin       *handlers.AdminHandler
	Resolver    *auth.Resolver
}

// RegisterRoutes wires HTTP routes. Every request is resolved to a
// principal; anonymous callers may submit and read.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("", auth.Authenticate(cfg.Resolver))

	authGroup := api.Group("/auth")
	authGroup.Post("/magic-link", cfg.Auth.MagicLink)
	authGroup.Post("/magic-link/verify", cfg.Auth.VerifyMagicLink)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/signup", cfg.Auth.SignUp)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/session", cfg.Auth.Session)

	api.Post("/attachments", cfg.Attachments.Upload)

	requests := api.Group("/requests")
	requests.Post("", cfg.Requests.Create)
	requests.Get("", cfg.Requests.List)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Patch("/:id/status", auth.RequirePrivileged(), cfg.Requests.UpdateStatus)
	requests.Patch("/:id/note", auth.RequirePrivileged(), cfg.Requests.UpdateNote)

	api.Get("/database", auth.RequireRole(domain.RoleAdmin, domain.RoleStaff), cfg.Database.View)

	admin := api.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	admin.Post("/seed", cfg.Admin.Seed)
	admin.Get("/metrics", cfg.Admin.Metrics)
}
