package routes

import (
	"offertpilot/config"
	controller "offertpilot/controllers"
	"offertpilot/middleware"
	"offertpilot/store"
	"offertpilot/utils"
	"offertpilot/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
)

// Dependencies are the long-lived services the handlers share.
type Dependencies struct {
	Config    config.Config
	Store     *store.GormStore
	Scheduler *worker.SequenceScheduler
	Feed      *worker.OutcomeFeed
	Inbound   *controller.InboundController
	// LimiterStorage backs the webhook rate limiter; nil keeps it in memory.
	LimiterStorage fiber.Storage
}

var requestLogFormat = "[${time}] ${status} - ${latency} ${method} ${path}\n"

// SetupTriggerRoutes mounts the machine-to-machine endpoints authenticated by
// shared secrets.
func SetupTriggerRoutes(app *fiber.App, deps Dependencies) {
	schedulerController := controller.NewSchedulerController(deps.Scheduler, deps.Feed, utils.NewLogger("scheduler_api"))

	cron := app.Group("/api/cron", logger.New(logger.Config{Format: requestLogFormat}),
		middleware.SharedSecret("cron", deps.Config.CronSecret))
	cron.Get("/send-emails", schedulerController.RunDueSequences)
	cron.Post("/send-emails", schedulerController.RunDueSequences)

	webhooks := app.Group("/api/webhooks", logger.New(logger.Config{Format: requestLogFormat}))
	webhooks.Post("/email/inbound",
		middleware.WebhookRateLimiter(deps.Config.WebhookRateLimit, deps.LimiterStorage),
		middleware.SharedSecret("inbound_email", deps.Config.InboundSecret),
		deps.Inbound.HandleInboundWebhook)

	utils.NewLogger("routes").Info("Trigger routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, deps Dependencies) {
	leadController := controller.NewLeadController(deps.Store, utils.NewLogger("lead"))
	dashboardController := controller.NewDashboardController(deps.Store, utils.NewLogger("dashboard"))
	workspaceController := controller.NewWorkspaceController(deps.Store, deps.Config.InboundEmailDomain, utils.NewLogger("workspace"))
	schedulerController := controller.NewSchedulerController(deps.Scheduler, deps.Feed, utils.NewLogger("scheduler_feed"))

	api := app.Group("/api/v1", middleware.Protected(deps.Config.JWTSecret), logger.New(logger.Config{
		Format: requestLogFormat,
	}))

	api.Post("/workspaces", workspaceController.CreateWorkspace)

	scoped := api.Group("", middleware.RequireWorkspace())

	dashboard := scoped.Group("/dashboard")
	dashboard.Get("/stats", dashboardController.GetDashboardStats)

	lead := scoped.Group("/leads")
	lead.Get("/", leadController.GetLeads)
	lead.Get("/:id", leadController.GetLead)
	lead.Patch("/:id/status", leadController.UpdateLeadStatus)

	// WebSocket route for live scheduler outcomes
	scoped.Get("/scheduler/feed", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, websocket.New(schedulerController.HandleOutcomeFeedWS))

	utils.NewLogger("routes").Info("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupTriggerRoutes(app, deps)
	SetupAPIRoutes(app, deps)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
