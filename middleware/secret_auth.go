package middleware

import (
	"crypto/subtle"

	"offertpilot/utils"

	"github.com/gofiber/fiber/v2"
)

// SharedSecret admits machine callers presenting "Bearer <secret>". An empty
// secret admits nobody.
func SharedSecret(name, secret string) fiber.Handler {
	expected := []byte("Bearer " + secret)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(fiber.HeaderAuthorization))
		if secret == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
			utils.LogEvent("unauthorized_trigger", map[string]interface{}{
				"trigger": name,
				"path":    c.Path(),
				"ip":      c.IP(),
			})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
