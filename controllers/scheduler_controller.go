package controller

import (
	"time"

	"offertpilot/middleware"
	"offertpilot/utils"
	"offertpilot/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type SchedulerController struct {
	Scheduler *worker.SequenceScheduler
	Feed      *worker.OutcomeFeed
	Logger    *logrus.Entry
	now       func() time.Time
}

func NewSchedulerController(scheduler *worker.SequenceScheduler, feed *worker.OutcomeFeed, logger *logrus.Entry) *SchedulerController {
	return &SchedulerController{
		Scheduler: scheduler,
		Feed:      feed,
		Logger:    logger,
		now:       time.Now,
	}
}

// RunDueSequences is the cron trigger. Per-lead failures are part of the
// summary; only a systemic failure turns into a 500.
func (sc *SchedulerController) RunDueSequences(c *fiber.Ctx) error {
	summary, err := sc.Scheduler.RunDueSequences(c.UserContext(), sc.now())
	if err != nil {
		utils.LogError("scheduler_run_failed", err, nil)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Scheduler run failed", err)
	}
	return c.JSON(summary)
}

// HandleOutcomeFeedWS streams the session workspace's scheduler outcomes
// until the client goes away.
func (sc *SchedulerController) HandleOutcomeFeedWS(c *websocket.Conn) {
	defer c.Close()

	workspaceID, _ := c.Locals(middleware.LocalWorkspaceID).(uint)
	outcomes, cancel := sc.Feed.Subscribe(64)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case outcome, ok := <-outcomes:
			if !ok {
				return
			}
			if outcome.WorkspaceID != workspaceID {
				continue
			}
			if err := c.WriteJSON(outcome); err != nil {
				sc.Logger.WithError(err).Debug("Error writing outcome to feed")
				return
			}
		}
	}
}
