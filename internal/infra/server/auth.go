package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// authRequired verifies the Authorization bearer token against the configured
// token set. With no tokens configured the middleware is a pass-through, for
// local development.
func authRequired(tokens []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(tokens) == 0 {
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization header"})
		}

		for _, token := range tokens {
			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) == 1 {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}
}
