package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offertpilot/config"
	controller "offertpilot/controllers"
	"offertpilot/middleware"
	"offertpilot/routes"
	"offertpilot/store"
	"offertpilot/utils"
	"offertpilot/worker"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	log := utils.NewLogger("main")

	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.AppConfig

	if err := utils.InitLogging(cfg.Environment, cfg.SentryDSN); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	}
	defer sentry.Flush(2 * time.Second)

	if err := config.ConnectDB(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	st := store.New(config.DB)

	var (
		locker         utils.Locker = utils.NewMemoryLocker()
		limiterStorage fiber.Storage
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		locker = utils.NewRedisLocker(client, "offertpilot:lock:")
		limiterStorage = middleware.NewRedisStorage(client, "offertpilot:limit:")
	}

	enhancer := utils.NewEnhancer(utils.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.Timeout,
	})
	dispatcher := utils.NewSMTPDispatcher(utils.SMTPConfig{
		Host:            cfg.SMTP.Host,
		Port:            cfg.SMTP.Port,
		Username:        cfg.SMTP.Username,
		Password:        cfg.SMTP.Password,
		MaxRetries:      cfg.SMTP.MaxRetries,
		MessageIDDomain: cfg.SMTP.MessageIDDomain,
	})

	feed := worker.NewOutcomeFeed()
	scheduler := worker.NewSequenceScheduler(st, enhancer, dispatcher, locker, utils.NewLogger("scheduler"), worker.SchedulerOptions{
		Workers:   cfg.Scheduler.Workers,
		BatchSize: cfg.Scheduler.BatchSize,
		LockTTL:   cfg.Scheduler.LockTTL,
		Feed:      feed,
	})
	inbound := controller.NewInboundController(st, utils.NewLogger("inbound"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The cron endpoint is the primary trigger; the in-process ticker is optional.
	if cfg.Scheduler.Interval > 0 {
		go scheduler.Start(ctx, cfg.Scheduler.Interval)
	}

	if cfg.IMAP.Host != "" {
		inboxWorker := worker.NewInboxWorker(worker.IMAPConfig{
			Host:     cfg.IMAP.Host,
			Port:     cfg.IMAP.Port,
			Username: cfg.IMAP.Username,
			Password: cfg.IMAP.Password,
			Mailbox:  cfg.IMAP.Mailbox,
		}, inbound, utils.NewLogger("inbox"))
		go inboxWorker.Start(ctx, cfg.IMAP.PollInterval)
	}

	app := fiber.New(fiber.Config{
		AppName:      "OffertPilot",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	})
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins...)))

	routes.SetupRoutes(app, routes.Dependencies{
		Config:         cfg,
		Store:          st,
		Scheduler:      scheduler,
		Feed:           feed,
		Inbound:        inbound,
		LimiterStorage: limiterStorage,
	})

	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
