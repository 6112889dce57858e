package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trendboard/internal/handlers/api"
	"trendboard/internal/jobs"
	"trendboard/internal/middleware"
	"trendboard/internal/query"
)

// Deps are the services the routes are served from.
type Deps struct {
	DB     api.Pinger
	Query  *query.Service
	Runner jobs.Runner
	Logger *slog.Logger
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(deps Deps) {
	log := deps.Logger
	if log == nil {
		log = s.log
	}

	// Initialize middleware
	adminAuth := middleware.NewAdminAuth(s.Cfg.AdminToken)

	// Initialize handlers
	healthHandler := api.NewHealthHandler(deps.DB)
	statsHandler := api.NewStatsHandler(deps.Query, log)
	legacyHandler := api.NewLegacyHandler(deps.Query, statsHandler)
	adminHandler := api.NewAdminHandler(deps.Runner, log)

	s.App.Get("/api/health", healthHandler.Check)

	v1 := s.App.Group("/api/v1")
	v1.Get("/dashboard/overview", statsHandler.Dashboard)
	v1.Get("/meta/last-sync", statsHandler.LastSync)
	v1.Get("/indicators", statsHandler.Indicators)
	v1.Get("/indicators/:id", statsHandler.Latest)
	v1.Get("/indicators/:id/series", statsHandler.Series)
	v1.Get("/macro/comparison/:indicator", statsHandler.Comparison)

	admin := s.App.Group("/api/admin", adminLimiter(), adminAuth.RequireToken)
	admin.Get("/sync", adminHandler.Sync)
	admin.Post("/sync", adminHandler.Sync)

	// Legacy routes
	stats := s.App.Group("/api/stats")
	stats.Get("/students", legacyHandler.Students)
	stats.Get("/cpi", legacyHandler.CPI)
	stats.Get("/jobs", legacyHandler.Jobs)
	stats.Get("/visa", legacyHandler.Visa)

	if s.Cfg.MetricsEnabled {
		s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Must be last
	s.App.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Not Found",
			"path":    c.Path(),
		})
	})
}
