package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offertpilot/models"
	"offertpilot/store"
	"offertpilot/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SequenceStore is the part of the lead store the scheduler depends on.
type SequenceStore interface {
	DueStates(ctx context.Context, now time.Time, limit int) ([]models.LeadSequenceState, error)
	GetState(ctx context.Context, leadID uint) (*models.LeadSequenceState, error)
	GetLead(ctx context.Context, id uint) (*models.Lead, error)
	GetWorkspace(ctx context.Context, id uint) (*models.Workspace, error)
	GetSequenceSteps(ctx context.Context, sequenceID uint) ([]models.SequenceStep, error)
	CompleteState(ctx context.Context, prev models.LeadSequenceState) error
	AdvanceState(ctx context.Context, prev models.LeadSequenceState, adv store.Advance, msg *models.Message) error
}

// SchedulerOptions tune a SequenceScheduler. Zero values pick defaults.
type SchedulerOptions struct {
	Workers   int
	BatchSize int
	LockTTL   time.Duration
	Feed      *OutcomeFeed
}

// SequenceScheduler advances due leads through their email sequences.
type SequenceScheduler struct {
	store      SequenceStore
	enhancer   utils.Enhancer
	dispatcher utils.Dispatcher
	locker     utils.Locker
	logger     *logrus.Entry
	opts       SchedulerOptions
}

func NewSequenceScheduler(
	st SequenceStore,
	enhancer utils.Enhancer,
	dispatcher utils.Dispatcher,
	locker utils.Locker,
	logger *logrus.Entry,
	opts SchedulerOptions,
) *SequenceScheduler {
	if enhancer == nil {
		enhancer = utils.DisabledEnhancer{}
	}
	if locker == nil {
		locker = utils.NewMemoryLocker()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &SequenceScheduler{
		store:      st,
		enhancer:   enhancer,
		dispatcher: dispatcher,
		locker:     locker,
		logger:     logger,
		opts:       opts,
	}
}

// Start runs the scheduler every interval until ctx is cancelled.
func (s *SequenceScheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.WithField("interval", interval.String()).Info("Sequence scheduler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sequence scheduler shutting down...")
			return
		case <-ticker.C:
			if _, err := s.RunDueSequences(ctx, time.Now()); err != nil {
				utils.LogError("scheduler_run_failed", err, nil)
			}
		}
	}
}

// RunDueSequences processes every lead due at now. A failing lead is
// reported in the summary and never stops the others; only a failure to
// list due leads fails the run.
func (s *SequenceScheduler) RunDueSequences(ctx context.Context, now time.Time) (*RunSummary, error) {
	states, err := s.store.DueStates(ctx, now, s.opts.BatchSize)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("due", len(states)).Info("Processing leads for scheduled emails")

	results := make([]LeadOutcome, len(states))
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for i := range states {
		i := i
		g.Go(func() error {
			results[i] = s.processLead(ctx, states[i], now)
			s.opts.Feed.Publish(results[i])
			return nil
		})
	}
	_ = g.Wait()

	return &RunSummary{Processed: len(results), Results: results}, nil
}

func (s *SequenceScheduler) processLead(ctx context.Context, state models.LeadSequenceState, now time.Time) LeadOutcome {
	log := s.logger.WithField("lead_id", state.LeadID)

	unlock, ok, err := s.locker.TryLock(ctx, fmt.Sprintf("lead-sequence:%d", state.LeadID), s.opts.LockTTL)
	if err != nil {
		return s.failed(state, fmt.Errorf("claim lead: %w", err))
	}
	if !ok {
		log.Debug("Lead is claimed by another run")
		return LeadOutcome{LeadID: state.LeadID, Status: OutcomeSkipped, Error: "lead is being processed by another run"}
	}
	defer unlock()

	outcome, err := s.advanceLead(ctx, state, now)
	if errors.Is(err, store.ErrStateConflict) {
		log.WithError(err).Info("Lead progress changed during run")
		outcome.Status = OutcomeSkipped
		outcome.Error = err.Error()
		return outcome
	}
	if err != nil {
		failed := s.failed(state, err)
		failed.WorkspaceID = outcome.WorkspaceID
		return failed
	}
	return outcome
}

func (s *SequenceScheduler) advanceLead(ctx context.Context, state models.LeadSequenceState, now time.Time) (LeadOutcome, error) {
	out := LeadOutcome{LeadID: state.LeadID}
	lead, err := s.store.GetLead(ctx, state.LeadID)
	if err != nil {
		return out, err
	}
	out.WorkspaceID = lead.WorkspaceID
	workspace, err := s.store.GetWorkspace(ctx, lead.WorkspaceID)
	if err != nil {
		return out, err
	}
	steps, err := s.store.GetSequenceSteps(ctx, state.SequenceID)
	if err != nil {
		return out, err
	}

	targetStep := state.CurrentStep + 1
	step := models.FindStep(steps, targetStep)
	if step == nil {
		if err := s.store.CompleteState(ctx, state); err != nil {
			return out, err
		}
		out.Status = OutcomeCompleted
		return out, nil
	}

	tmplCtx := utils.TemplateContext{
		CustomerName: lead.CustomerName,
		ServiceType:  lead.ServiceType,
		Signature:    workspace.SignatureText(),
		CompanyName:  utils.NonEmpty(workspace.CompanyName),
	}
	subject := utils.RenderTemplate(step.SubjectTemplate, tmplCtx)
	body := utils.RenderTemplate(step.BodyTemplate, tmplCtx)
	if workspace.AIEnabled {
		subject, body = s.enhance(ctx, lead.ID, subject, body, tmplCtx)
	}

	// A reply may have paused the lead since the due list was read.
	if err := s.ensureUnchanged(ctx, state, now); err != nil {
		return out, err
	}

	deliveryID, err := s.dispatcher.Send(ctx, utils.OutboundEmail{
		To:       lead.CustomerEmail,
		From:     workspace.SenderEmail,
		FromName: workspace.SenderName,
		Subject:  subject,
		Body:     body,
	})
	if err != nil {
		return out, fmt.Errorf("dispatch step %d: %w", targetStep, err)
	}

	msg := &models.Message{
		LeadID:            lead.ID,
		WorkspaceID:       workspace.ID,
		Direction:         models.DirectionOut,
		Subject:           subject,
		Body:              body,
		FromEmail:         workspace.SenderEmail,
		ToEmail:           lead.CustomerEmail,
		ProviderMessageID: utils.NonEmpty(deliveryID),
		SentAt:            now.UTC(),
	}

	adv := store.Advance{CurrentStep: targetStep, IsCompleted: true}
	if following := models.FindStep(steps, targetStep+1); following != nil {
		next := now.UTC().AddDate(0, 0, following.DelayDays)
		adv.NextSendAt = &next
		adv.IsCompleted = false
	}
	if err := s.store.AdvanceState(ctx, state, adv, msg); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			s.logger.WithFields(logrus.Fields{
				"lead_id":     lead.ID,
				"step":        targetStep,
				"delivery_id": deliveryID,
			}).Warn("Email dispatched but lead progress changed before commit")
		}
		return out, err
	}

	utils.LogEvent("sequence_step_sent", map[string]interface{}{
		"lead_id":      lead.ID,
		"workspace_id": workspace.ID,
		"step":         targetStep,
		"completed":    adv.IsCompleted,
	})
	out.Status = OutcomeSent
	out.Step = targetStep
	return out, nil
}

// enhance never fails: on any error the rendered text is kept.
func (s *SequenceScheduler) enhance(ctx context.Context, leadID uint, subject, body string, tmplCtx utils.TemplateContext) (string, string) {
	enhanced, err := s.enhancer.Enhance(ctx, utils.EnhanceRequest{
		Subject: subject,
		Body:    body,
		Context: tmplCtx,
	})
	if err != nil {
		s.logger.WithError(err).WithField("lead_id", leadID).Warn("AI enhancement failed, using original")
		return subject, body
	}
	return enhanced.Subject, enhanced.Body
}

func (s *SequenceScheduler) ensureUnchanged(ctx context.Context, prev models.LeadSequenceState, now time.Time) error {
	current, err := s.store.GetState(ctx, prev.LeadID)
	if err != nil {
		return err
	}
	if current.Version != prev.Version || !current.IsDue(now) {
		return fmt.Errorf("%w: lead %d", store.ErrStateConflict, prev.LeadID)
	}
	return nil
}

func (s *SequenceScheduler) failed(state models.LeadSequenceState, err error) LeadOutcome {
	utils.LogError("sequence_step_failed", err, map[string]interface{}{
		"lead_id":      state.LeadID,
		"current_step": state.CurrentStep,
	})
	return LeadOutcome{LeadID: state.LeadID, Status: OutcomeError, Error: err.Error()}
}
