package controller

import (
	"time"

	"offertpilot/store"
	"offertpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type DashboardController struct {
	Store  *store.GormStore
	Logger *logrus.Entry
}

func NewDashboardController(st *store.GormStore, logger *logrus.Entry) *DashboardController {
	return &DashboardController{
		Store:  st,
		Logger: logger,
	}
}

// GetDashboardStats returns this month's lead count, emails sent, reply rate
// and the most recent active leads.
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := dc.Store.DashboardStats(c.UserContext(), workspaceID(c), time.Now())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch dashboard stats", err)
	}
	return c.JSON(utils.SuccessResponse(stats))
}
