package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Requests       *handlers.RequestsHandler
	Ops            *handlers.OpsRequestsHandler
	Directory      *handlers.DirectoryHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/tenants/register", cfg.Users.Register)
	authGroup.Post("/tenants/login", cfg.Users.Login)
	authGroup.Post("/staff/login", cfg.Users.StaffLogin)

	tenant := app.Group("/requests", cfg.AuthMiddleware.Handle, auth.RequireTenant())
	tenant.Post("", cfg.Requests.CreateRequest)
	tenant.Get("", cfg.Requests.ListRequests)
	tenant.Get("/:id", cfg.Requests.GetRequest)
	tenant.Post("/:id/cancel", cfg.Requests.CancelRequest)
	tenant.Post("/:id/signoff", cfg.Requests.SignOffRequest)
	tenant.Post("/:id/notes", cfg.Requests.AddNote)
	tenant.Get("/:id/notes", cfg.Requests.ListNotes)
	tenant.Post("/:id/photos", cfg.Requests.AttachPhoto)
	tenant.Get("/:id/photos", cfg.Requests.ListPhotos)

	ops := app.Group("/ops", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	ops.Get("/requests", cfg.Ops.ListRequests)
	ops.Get("/requests/summary", cfg.Ops.Summary)
	ops.Get("/requests/:id/timeline", cfg.Ops.Timeline)
	ops.Post("/requests/:id/assign", cfg.Ops.Assign)
	ops.Post("/requests/:id/reassign", cfg.Ops.Reassign)
	ops.Post("/requests/:id/start", cfg.Ops.Start)
	ops.Post("/requests/:id/complete", cfg.Ops.Complete)
	ops.Post("/requests/:id/retriage",
		auth.RequireStaffRole(domain.StaffRoleManager, domain.StaffRoleAdmin),
		cfg.Ops.Retriage)
	ops.Get("/technicians", cfg.Directory.ListTechnicians)
	ops.Get("/policies", cfg.Directory.ListPolicies)
}
