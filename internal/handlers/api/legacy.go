package api

import (
	"github.com/gofiber/fiber/v3"

	"trendboard/internal/query"
)

// LegacyHandler serves the pre-v1 /api/stats shapes. Bodies are flat objects,
// not wrapped in the success envelope.
type LegacyHandler struct {
	svc   *query.Service
	stats *StatsHandler
}

// NewLegacyHandler creates a new legacy stats handler.
func NewLegacyHandler(svc *query.Service, stats *StatsHandler) *LegacyHandler {
	return &LegacyHandler{svc: svc, stats: stats}
}

// Students returns the student enrolment shape.
func (h *LegacyHandler) Students(c fiber.Ctx) error {
	out, err := h.svc.LegacyStudents(c.Context())
	if err != nil {
		return h.stats.internal(c, "failed to load students", err)
	}
	return c.JSON(out)
}

// Visa shares the students payload.
func (h *LegacyHandler) Visa(c fiber.Ctx) error {
	return h.Students(c)
}

// CPI returns the consumer price index shape.
func (h *LegacyHandler) CPI(c fiber.Ctx) error {
	out, err := h.svc.LegacyCPI(c.Context())
	if err != nil {
		return h.stats.internal(c, "failed to load cpi", err)
	}
	return c.JSON(out)
}

// Jobs returns the job-offers-to-applicants ratio shape.
func (h *LegacyHandler) Jobs(c fiber.Ctx) error {
	out, err := h.svc.LegacyJobs(c.Context())
	if err != nil {
		return h.stats.internal(c, "failed to load jobs", err)
	}
	return c.JSON(out)
}
