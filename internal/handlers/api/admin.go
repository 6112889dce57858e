package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"trendboard/internal/jobs"
	"trendboard/internal/models"
)

// AdminHandler triggers sync runs on demand.
type AdminHandler struct {
	runner jobs.Runner
	log    *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(runner jobs.Runner, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{runner: runner, log: log.With("component", "admin")}
}

// Sync runs a manual sync and blocks until it completes. A partial or failed
// run is still a 200; only a fatal run error is a 500.
func (h *AdminHandler) Sync(c fiber.Ctx) error {
	result, err := h.runner.Run(c.Context(), models.TriggerManual)
	if err != nil {
		h.log.Error("manual sync failed", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}
