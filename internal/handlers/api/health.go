package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
)

// Pinger checks store connectivity. *db.DB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and store connectivity.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new API health handler.
func NewHealthHandler(database Pinger) *HealthHandler {
	return &HealthHandler{db: database}
}

// Check always answers 200; the database field carries the ping result.
func (h *HealthHandler) Check(c fiber.Ctx) error {
	status := "connected"
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		status = "error: " + err.Error()
	}

	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  status,
	})
}
