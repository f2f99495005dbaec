package middleware

import (
	"strings"

	"offertpilot/utils"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by Protected.
const (
	LocalClaims      = "claims"
	LocalUserID      = "userID"
	LocalWorkspaceID = "workspaceID"
)

// Protected validates the dashboard session token and exposes its claims.
func Protected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Try to get token from Authorization header first
		var token string
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid authorization format",
				})
			}
			token = tokenParts[1]
		} else {
			// Fall back to cookie if header not present
			token = c.Cookies("access_token")
			if token == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Authorization required",
				})
			}
		}

		claims, err := utils.ParseJWTToken(token, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(LocalClaims, claims)
		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalWorkspaceID, claims.WorkspaceID)

		return c.Next()
	}
}

// RequireWorkspace rejects sessions that are not bound to a workspace.
func RequireWorkspace() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, ok := c.Locals(LocalWorkspaceID).(uint); !ok || id == 0 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "No workspace selected",
			})
		}
		return c.Next()
	}
}
