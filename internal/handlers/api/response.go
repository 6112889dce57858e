package api

import (
	"github.com/gofiber/fiber/v3"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// jsonCached is jsonSuccess with the fromCache marker set on a cache hit.
func jsonCached(c fiber.Ctx, data any, fromCache bool) error {
	if !fromCache {
		return jsonSuccess(c, data)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"data":      data,
		"fromCache": true,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
