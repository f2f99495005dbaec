package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"offertpilot/config"
	controller "offertpilot/controllers"
	"offertpilot/models"
	"offertpilot/store"
	"offertpilot/store/storetest"
	"offertpilot/utils"
	"offertpilot/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopDispatcher struct{}

func (nopDispatcher) Send(context.Context, utils.OutboundEmail) (string, error) {
	return "", nil
}

func newApp(t *testing.T) (*fiber.App, *models.Workspace) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)

	db := storetest.NewDB(t)
	st := store.New(db)
	workspace := storetest.SeedWorkspace(t, db, "in@inbound.offertpilot.se",
		storetest.Step(1, 0, "Hej", "Hej {namn}"))
	feed := worker.NewOutcomeFeed()

	app := fiber.New()
	SetupRoutes(app, Dependencies{
		Config: config.Config{
			CronSecret:         "cron-secret",
			InboundSecret:      "inbound-secret",
			JWTSecret:          "jwt-secret",
			InboundEmailDomain: "inbound.offertpilot.se",
			WebhookRateLimit:   100,
		},
		Store:     st,
		Scheduler: worker.NewSequenceScheduler(st, nil, nopDispatcher{}, nil, entry, worker.SchedulerOptions{Feed: feed}),
		Feed:      feed,
		Inbound:   controller.NewInboundController(st, entry),
	})
	return app, workspace
}

func do(t *testing.T, app *fiber.App, method, path, auth string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestRoutesAuthentication(t *testing.T) {
	app, workspace := newApp(t)
	token, err := utils.GenerateJWTToken(1, workspace.ID, "jwt-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"health", fiber.MethodGet, "/health", "", fiber.StatusOK},
		{"cron without secret", fiber.MethodGet, "/api/cron/send-emails", "", fiber.StatusUnauthorized},
		{"cron with wrong secret", fiber.MethodPost, "/api/cron/send-emails", "Bearer inbound-secret", fiber.StatusUnauthorized},
		{"cron with secret", fiber.MethodPost, "/api/cron/send-emails", "Bearer cron-secret", fiber.StatusOK},
		{"inbound without secret", fiber.MethodPost, "/api/webhooks/email/inbound", "", fiber.StatusUnauthorized},
		{"api without token", fiber.MethodGet, "/api/v1/leads", "", fiber.StatusUnauthorized},
		{"api with token", fiber.MethodGet, "/api/v1/leads", "Bearer " + token, fiber.StatusOK},
		{"stats with token", fiber.MethodGet, "/api/v1/dashboard/stats", "Bearer " + token, fiber.StatusOK},
		{"unknown route", fiber.MethodGet, "/nope", "", fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, app, tt.method, tt.path, tt.auth)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCronRunSummary(t *testing.T) {
	app, _ := newApp(t)

	inbound := httptest.NewRequest(fiber.MethodPost, "/api/webhooks/email/inbound",
		strings.NewReader(`{"from":"anna.svensson@kund.se","to":"in@inbound.offertpilot.se","subject":"Offert","text":"Hej"}`))
	inbound.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	inbound.Header.Set(fiber.HeaderAuthorization, "Bearer inbound-secret")
	resp, err := app.Test(inbound)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var created models.InboundResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, models.InboundLeadCreated, created.Status)

	resp = do(t, app, fiber.MethodGet, "/api/cron/send-emails", "Bearer cron-secret")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var summary map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.EqualValues(t, 1, summary["processed"])
	results := summary["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, map[string]interface{}{
		"leadId": float64(created.LeadID),
		"status": "sent",
		"step":   float64(1),
	}, results[0])
}
