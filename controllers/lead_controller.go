package controller

import (
	"errors"

	"offertpilot/models"
	"offertpilot/store"
	"offertpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type LeadController struct {
	Store  *store.GormStore
	Logger *logrus.Entry
}

func NewLeadController(st *store.GormStore, logger *logrus.Entry) *LeadController {
	return &LeadController{
		Store:  st,
		Logger: logger,
	}
}

// GetLeads lists the workspace's leads, newest first.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	leads, err := lc.Store.ListLeads(c.UserContext(), workspaceID(c))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}
	return c.JSON(utils.SuccessResponse(leads))
}

// GetLead returns one lead with its progress and conversation.
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead ID", nil)
	}

	lead, err := lc.Store.GetLeadDetail(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && lead.WorkspaceID != workspaceID(c)) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

// UpdateLeadStatus applies a manual status change. Every status other than
// SENT pauses the lead's sequence.
func (lc *LeadController) UpdateLeadStatus(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	if id == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead ID", nil)
	}

	var input struct {
		Status       string  `json:"status" validate:"required,oneof=SENT REPLIED WON LOST MANUAL_PAUSE"`
		PausedReason *string `json:"paused_reason" validate:"omitempty,max=200"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ctx := c.UserContext()
	lead, err := lc.Store.GetLead(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && lead.WorkspaceID != workspaceID(c)) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	status := models.LeadStatus(input.Status)
	if err := lc.Store.UpdateLeadStatus(ctx, id, status, utils.NonEmpty(valueOrEmpty(input.PausedReason))); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead status", err)
	}

	utils.LogEvent("lead_status_changed", map[string]interface{}{
		"lead_id":      id,
		"workspace_id": lead.WorkspaceID,
		"status":       status,
	})
	return c.JSON(fiber.Map{"success": true})
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
