package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offertpilot/models"
	"offertpilot/store"
	"offertpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var ErrWorkspaceNotFound = models.ErrWorkspaceNotFound

type InboundController struct {
	Store  *store.GormStore
	Logger *logrus.Entry
	now    func() time.Time
}

func NewInboundController(st *store.GormStore, logger *logrus.Entry) *InboundController {
	return &InboundController{
		Store:  st,
		Logger: logger,
		now:    time.Now,
	}
}

// ProcessInbound routes one received email. A sender already known to the
// workspace is treated as a reply and pauses that lead's sequence; an unknown
// sender becomes a new lead on the workspace's default sequence.
func (ic *InboundController) ProcessInbound(ctx context.Context, env models.InboundEnvelope, now time.Time) (*models.InboundResult, error) {
	from := utils.NormalizeAddress(env.From)
	to := utils.NormalizeAddress(env.To)

	workspace, err := ic.Store.FindWorkspaceByInboundAddress(ctx, to)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, to)
	}
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		WorkspaceID: workspace.ID,
		Direction:   models.DirectionIn,
		Subject:     env.Subject,
		Body:        env.Text,
		FromEmail:   from,
		ToEmail:     to,
		SentAt:      now.UTC(),
	}

	existing, err := ic.Store.FindLatestLeadByEmail(ctx, workspace.ID, from)
	switch {
	case err == nil:
		if err := ic.Store.RecordReply(ctx, existing.ID, msg); err != nil {
			return nil, fmt.Errorf("record reply for lead %d: %w", existing.ID, err)
		}
		utils.LogEvent("lead_replied", map[string]interface{}{
			"lead_id":      existing.ID,
			"workspace_id": workspace.ID,
		})
		return &models.InboundResult{Status: models.InboundReplyProcessed, LeadID: existing.ID}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	lead := &models.Lead{
		WorkspaceID:   workspace.ID,
		CustomerEmail: from,
		CustomerName:  utils.ExtractNameFromEmail(from),
		ThreadID:      utils.NonEmpty(utils.ExtractThreadID(env.Subject)),
		Status:        models.LeadStatusSent,
	}
	if _, err := ic.Store.CreateLeadWithState(ctx, lead, msg, now); err != nil {
		return nil, fmt.Errorf("create lead for %s: %w", from, err)
	}
	utils.LogEvent("lead_created", map[string]interface{}{
		"lead_id":      lead.ID,
		"workspace_id": workspace.ID,
	})
	return &models.InboundResult{Status: models.InboundLeadCreated, LeadID: lead.ID}, nil
}

// HandleInboundWebhook accepts a parsed email from the mail provider, either
// as form fields (from, to, subject, text, html) or as JSON.
func (ic *InboundController) HandleInboundWebhook(c *fiber.Ctx) error {
	var input struct {
		From    string `json:"from" form:"from"`
		To      string `json:"to" form:"to"`
		Subject string `json:"subject" form:"subject"`
		Text    string `json:"text" form:"text"`
		HTML    string `json:"html" form:"html"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	text := input.Text
	if text == "" {
		text = input.HTML
	}
	env := models.InboundEnvelope{
		From:    utils.NormalizeAddress(input.From),
		To:      utils.NormalizeAddress(input.To),
		Subject: input.Subject,
		Text:    text,
	}
	if err := utils.ValidateStruct(env); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	result, err := ic.ProcessInbound(c.UserContext(), env, ic.now())
	if errors.Is(err, ErrWorkspaceNotFound) {
		ic.Logger.WithField("to", env.To).Warn("Workspace not found for inbound email")
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Workspace not found", nil)
	}
	if err != nil {
		utils.LogError("inbound_email_failed", err, map[string]interface{}{
			"from": env.From,
			"to":   env.To,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process inbound email", err)
	}

	return c.JSON(result)
}
