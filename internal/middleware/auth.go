package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// AdminAuth guards administrative routes with a static bearer token.
type AdminAuth struct {
	token string
}

// NewAdminAuth creates a new admin auth middleware instance. An empty token
// disables the check.
func NewAdminAuth(token string) *AdminAuth {
	return &AdminAuth{token: token}
}

// RequireToken rejects requests without a matching Authorization: Bearer header.
func (m *AdminAuth) RequireToken(c fiber.Ctx) error {
	if m.token == "" {
		return c.Next()
	}

	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(m.token)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	return c.Next()
}
