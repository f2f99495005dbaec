package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"offertpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func TestSharedSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"matching bearer", "s3cret", "Bearer s3cret", fiber.StatusOK},
		{"missing header", "s3cret", "", fiber.StatusUnauthorized},
		{"wrong secret", "s3cret", "Bearer nope", fiber.StatusUnauthorized},
		{"raw secret without scheme", "s3cret", "s3cret", fiber.StatusUnauthorized},
		{"empty secret admits nobody", "", "Bearer ", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/trigger", SharedSecret("test", tt.secret), ok)

			req := httptest.NewRequest(fiber.MethodPost, "/trigger", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestProtected(t *testing.T) {
	const secret = "jwt-secret"
	valid, err := utils.GenerateJWTToken(7, 3, secret, time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateJWTToken(7, 3, secret, -time.Hour)
	require.NoError(t, err)
	noWorkspace, err := utils.GenerateJWTToken(7, 0, secret, time.Hour)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/me", Protected(secret), RequireWorkspace(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"workspace": c.Locals(LocalWorkspaceID), "user": c.Locals(LocalUserID)})
	})

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"bearer token", "Bearer " + valid, "", fiber.StatusOK},
		{"cookie token", "", valid, fiber.StatusOK},
		{"no credentials", "", "", fiber.StatusUnauthorized},
		{"bad scheme", "Token " + valid, "", fiber.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", fiber.StatusUnauthorized},
		{"signed with another secret", "Bearer " + mustToken(t, "other"), "", fiber.StatusUnauthorized},
		{"no workspace", "Bearer " + noWorkspace, "", fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.Header.Set(fiber.HeaderCookie, "access_token="+tt.cookie)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func mustToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := utils.GenerateJWTToken(1, 1, secret, time.Hour)
	require.NoError(t, err)
	return token
}

func TestCORSPreflight(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(DefaultCORSConfig("https://app.offertpilot.se")))
	app.Get("/", ok)

	req := httptest.NewRequest(fiber.MethodOptions, "/", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://app.offertpilot.se")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.offertpilot.se", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "3600", resp.Header.Get(fiber.HeaderAccessControlMaxAge))

	req = httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestWebhookRateLimiter(t *testing.T) {
	app := fiber.New()
	app.Post("/hook", WebhookRateLimiter(2, nil), ok)

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/hook", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, codes)
}
