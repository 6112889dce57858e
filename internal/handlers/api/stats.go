package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"trendboard/internal/db"
	"trendboard/internal/query"
)

// StatsHandler serves the v1 read API.
type StatsHandler struct {
	svc *query.Service
	log *slog.Logger
}

// NewStatsHandler creates a new v1 stats handler.
func NewStatsHandler(svc *query.Service, log *slog.Logger) *StatsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StatsHandler{svc: svc, log: log.With("component", "api")}
}

// Dashboard returns the headline indicator snapshot.
func (h *StatsHandler) Dashboard(c fiber.Ctx) error {
	out, fromCache, err := h.svc.Dashboard(c.Context())
	if err != nil {
		return h.internal(c, "failed to load dashboard", err)
	}
	return jsonCached(c, out, fromCache)
}

// LastSync returns the last sync run and the next scheduled one.
func (h *StatsHandler) LastSync(c fiber.Ctx) error {
	out, fromCache, err := h.svc.SyncStatus(c.Context())
	if err != nil {
		return h.internal(c, "failed to load sync status", err)
	}
	return jsonCached(c, out, fromCache)
}

// Indicators returns the indicator catalog.
func (h *StatsHandler) Indicators(c fiber.Ctx) error {
	out, fromCache, err := h.svc.Indicators(c.Context())
	if err != nil {
		return h.internal(c, "failed to load indicators", err)
	}
	return jsonCached(c, out, fromCache)
}

// Latest returns the newest observation of one indicator.
func (h *StatsHandler) Latest(c fiber.Ctx) error {
	out, fromCache, err := h.svc.Latest(c.Context(), c.Params("id"))
	if err != nil {
		return h.readError(c, err)
	}
	return jsonCached(c, out, fromCache)
}

// Series returns a chronological series; ?limit defaults to 60.
func (h *StatsHandler) Series(c fiber.Ctx) error {
	limit := query.DefaultSeriesLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	out, fromCache, err := h.svc.Series(c.Context(), c.Params("id"), limit)
	if err != nil {
		return h.readError(c, err)
	}
	return jsonCached(c, out, fromCache)
}

// Comparison returns the aligned China/Japan series of a macro indicator.
func (h *StatsHandler) Comparison(c fiber.Ctx) error {
	out, fromCache, err := h.svc.Comparison(c.Context(), c.Params("indicator"))
	if err != nil {
		if errors.Is(err, query.ErrUnknownComparison) {
			return jsonError(c, fiber.StatusBadRequest, "Unknown comparison indicator")
		}
		return h.internal(c, "failed to load comparison", err)
	}
	return jsonCached(c, out, fromCache)
}

func (h *StatsHandler) readError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, query.ErrInvalidIndicator), errors.Is(err, db.ErrIndicatorNotFound):
		return jsonError(c, fiber.StatusNotFound, "Indicator not found")
	case errors.Is(err, db.ErrObservationNotFound):
		return jsonError(c, fiber.StatusNotFound, "No data available for indicator")
	}
	return h.internal(c, "failed to load indicator", err)
}

func (h *StatsHandler) internal(c fiber.Ctx, msg string, err error) error {
	h.log.Error(msg, "path", c.Path(), "error", err)
	return jsonError(c, fiber.StatusInternalServerError, msg)
}
