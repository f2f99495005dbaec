package controller

import (
	"errors"
	"fmt"
	"strings"

	"offertpilot/models"
	"offertpilot/store"
	"offertpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type WorkspaceController struct {
	Store         *store.GormStore
	InboundDomain string
	Logger        *logrus.Entry
}

func NewWorkspaceController(st *store.GormStore, inboundDomain string, logger *logrus.Entry) *WorkspaceController {
	return &WorkspaceController{
		Store:         st,
		InboundDomain: inboundDomain,
		Logger:        logger,
	}
}

// CreateWorkspace creates a workspace receiving mail at <slug>@<inbound
// domain>, together with its default follow-up sequence.
func (wc *WorkspaceController) CreateWorkspace(c *fiber.Ctx) error {
	var input struct {
		Slug          string  `json:"slug" validate:"required,slug"`
		CompanyName   string  `json:"company_name" validate:"required,max=200"`
		SenderName    string  `json:"sender_name" validate:"required,max=200"`
		SenderEmail   string  `json:"sender_email" validate:"required,email"`
		SignatureText *string `json:"signature_text" validate:"omitempty,max=2000"`
		Timezone      string  `json:"timezone" validate:"omitempty,timezone"`
		AIEnabled     bool    `json:"ai_enabled"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	input.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ctx := c.UserContext()
	if _, err := wc.Store.FindWorkspaceBySlug(ctx, input.Slug); err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Slug is already taken", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check slug", err)
	}

	inbound := fmt.Sprintf("%s@%s", input.Slug, wc.InboundDomain)
	workspace := &models.Workspace{
		Slug:                input.Slug,
		CompanyName:         input.CompanyName,
		SenderName:          input.SenderName,
		SenderEmail:         utils.NormalizeEmail(input.SenderEmail),
		Signature:           input.SignatureText,
		Timezone:            input.Timezone,
		AIEnabled:           input.AIEnabled,
		InboundEmailAddress: &inbound,
	}
	if workspace.Timezone == "" {
		workspace.Timezone = "Europe/Stockholm"
	}

	if err := wc.Store.CreateWorkspace(ctx, workspace, models.DefaultSequenceSteps()); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create workspace", err)
	}

	utils.LogEvent("workspace_created", map[string]interface{}{
		"workspace_id": workspace.ID,
		"slug":         workspace.Slug,
	})
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(workspace))
}
