// Package controller holds the HTTP handlers of the API.
package controller

import (
	"offertpilot/middleware"

	"github.com/gofiber/fiber/v2"
)

// workspaceID returns the workspace bound to the session. Routes using it sit
// behind middleware.RequireWorkspace.
func workspaceID(c *fiber.Ctx) uint {
	id, _ := c.Locals(middleware.LocalWorkspaceID).(uint)
	return id
}
