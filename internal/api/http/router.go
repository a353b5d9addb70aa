package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/defect-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/defect-dispatch/internal/auth"
	"github.com/spec-kit/defect-dispatch/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Reports        *handlers.ReportsHandler
	Devices        *handlers.DevicesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	reports := app.Group("/reports", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	reports.Post("/", cfg.Reports.Submit)
	reports.Get("/", cfg.Reports.List)
	reports.Get("/:id", cfg.Reports.Get)
	reports.Get("/:id/history", cfg.Reports.History)

	reports.Post("/:id/accept", auth.RequireResponder(), cfg.Reports.Accept)
	reports.Post("/:id/tracking", auth.RequireResponder(), cfg.Reports.BeginTracking)
	reports.Post("/:id/complete", auth.RequireResponder(), cfg.Reports.Complete)

	devices := app.Group("/devices/me", cfg.AuthMiddleware.Handle, auth.RequireResponder())
	devices.Put("/permission", cfg.Devices.SetPermission)
	devices.Post("/positions", cfg.Devices.PushPosition)
}
