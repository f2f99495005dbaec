// Package store is the durable lead and sequence layer. Every mutation is
// scoped to a single lead; progress records are written with a conditional
// update on their version so concurrent writers cannot both advance a lead.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offertpilot/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrStateConflict     = errors.New("lead progress changed concurrently")
	ErrNoDefaultSequence = errors.New("workspace has no default sequence")
)

// ReasonCustomerReplied is recorded as paused_reason when a lead replies.
const ReasonCustomerReplied = "customer_replied"

// Advance is the new progress written after a step has been sent.
type Advance struct {
	CurrentStep int
	NextSendAt  *time.Time
	IsCompleted bool
}

type GormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DueStates returns progress records that are neither paused nor completed
// and whose next_send_at is set and not after now. A limit of 0 means no limit.
func (s *GormStore) DueStates(ctx context.Context, now time.Time, limit int) ([]models.LeadSequenceState, error) {
	query := s.db.WithContext(ctx).
		Where("is_paused = ? AND is_completed = ?", false, false).
		Where("next_send_at IS NOT NULL AND next_send_at <= ?", now.UTC()).
		Order("next_send_at asc, id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var states []models.LeadSequenceState
	if err := query.Find(&states).Error; err != nil {
		return nil, fmt.Errorf("fetch due sequence states: %w", err)
	}
	return states, nil
}

func (s *GormStore) GetState(ctx context.Context, leadID uint) (*models.LeadSequenceState, error) {
	var state models.LeadSequenceState
	if err := s.db.WithContext(ctx).Where("lead_id = ?", leadID).First(&state).Error; err != nil {
		return nil, notFound(err, "sequence state for lead %d", leadID)
	}
	return &state, nil
}

func (s *GormStore) GetLead(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, id).Error; err != nil {
		return nil, notFound(err, "lead %d", id)
	}
	return &lead, nil
}

func (s *GormStore) GetWorkspace(ctx context.Context, id uint) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := s.db.WithContext(ctx).First(&workspace, id).Error; err != nil {
		return nil, notFound(err, "workspace %d", id)
	}
	return &workspace, nil
}

// GetSequenceSteps returns the steps of a sequence ordered by step number.
func (s *GormStore) GetSequenceSteps(ctx context.Context, sequenceID uint) ([]models.SequenceStep, error) {
	var sequence models.Sequence
	if err := s.db.WithContext(ctx).First(&sequence, sequenceID).Error; err != nil {
		return nil, notFound(err, "sequence %d", sequenceID)
	}

	var steps []models.SequenceStep
	if err := s.db.WithContext(ctx).
		Where("sequence_id = ?", sequenceID).
		Order("step_number asc").
		Find(&steps).Error; err != nil {
		return nil, fmt.Errorf("fetch steps of sequence %d: %w", sequenceID, err)
	}
	return steps, nil
}

func (s *GormStore) FindWorkspaceByInboundAddress(ctx context.Context, address string) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := s.db.WithContext(ctx).Where("inbound_email_address = ?", address).First(&workspace).Error; err != nil {
		return nil, notFound(err, "workspace for inbound address %s", address)
	}
	return &workspace, nil
}

// FindWorkspaceBySlug returns ErrNotFound when no workspace uses slug.
func (s *GormStore) FindWorkspaceBySlug(ctx context.Context, slug string) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&workspace).Error; err != nil {
		return nil, notFound(err, "workspace %q", slug)
	}
	return &workspace, nil
}

// FindLatestLeadByEmail returns the most recently created lead in the
// workspace with the given customer email.
func (s *GormStore) FindLatestLeadByEmail(ctx context.Context, workspaceID uint, email string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND customer_email = ?", workspaceID, email).
		Order("created_at desc, id desc").
		First(&lead).Error; err != nil {
		return nil, notFound(err, "lead %s in workspace %d", email, workspaceID)
	}
	return &lead, nil
}

// CompleteState marks an exhausted sequence as completed. next_send_at is left
// untouched; it is inert once is_completed is set.
func (s *GormStore) CompleteState(ctx context.Context, prev models.LeadSequenceState) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return compareAndSwap(tx, prev, map[string]interface{}{
			"is_completed": true,
		})
	})
}

// AdvanceState records the outbound message and moves the lead to the next
// step in one transaction. If the record changed since prev was read the
// transaction is rolled back and ErrStateConflict is returned.
func (s *GormStore) AdvanceState(ctx context.Context, prev models.LeadSequenceState, adv Advance, msg *models.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := compareAndSwap(tx, prev, map[string]interface{}{
			"current_step": adv.CurrentStep,
			"next_send_at": nullableTime(adv.NextSendAt),
			"is_completed": adv.IsCompleted,
		}); err != nil {
			return err
		}
		if msg != nil {
			if err := tx.Create(msg).Error; err != nil {
				return fmt.Errorf("record outbound message: %w", err)
			}
		}
		return nil
	})
}

// UpdateLeadStatus sets a lead's status and, for pausing statuses, pauses its
// sequence. reason defaults to the status name.
func (s *GormStore) UpdateLeadStatus(ctx context.Context, leadID uint, status models.LeadStatus, reason *string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setLeadStatus(tx, leadID, status, reason)
	})
}

// RecordReply marks the lead as replied, pauses its sequence and appends the
// inbound message in one transaction.
func (s *GormStore) RecordReply(ctx context.Context, leadID uint, msg *models.Message) error {
	reason := ReasonCustomerReplied
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := setLeadStatus(tx, leadID, models.LeadStatusReplied, &reason); err != nil {
			return err
		}
		msg.LeadID = leadID
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("record inbound message: %w", err)
		}
		return nil
	})
}

// CreateLeadWithState creates a lead, its progress record against the
// workspace's default sequence and, when msg is not nil, the first inbound
// message. next_send_at is now plus the delay of step 1, or nil without one.
func (s *GormStore) CreateLeadWithState(ctx context.Context, lead *models.Lead, msg *models.Message, now time.Time) (*models.LeadSequenceState, error) {
	var state *models.LeadSequenceState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sequence models.Sequence
		if err := tx.Where("workspace_id = ? AND is_default = ?", lead.WorkspaceID, true).
			Preload("Steps").
			First(&sequence).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: workspace %d", ErrNoDefaultSequence, lead.WorkspaceID)
			}
			return fmt.Errorf("fetch default sequence: %w", err)
		}

		if lead.Status == "" {
			lead.Status = models.LeadStatusSent
		}
		if err := tx.Create(lead).Error; err != nil {
			return fmt.Errorf("create lead: %w", err)
		}

		state = &models.LeadSequenceState{
			LeadID:     lead.ID,
			SequenceID: sequence.ID,
		}
		if first := models.FindStep(sequence.Steps, 1); first != nil {
			next := now.UTC().AddDate(0, 0, first.DelayDays)
			state.NextSendAt = &next
		}
		if err := tx.Create(state).Error; err != nil {
			return fmt.Errorf("create sequence state: %w", err)
		}

		if msg != nil {
			msg.LeadID = lead.ID
			msg.WorkspaceID = lead.WorkspaceID
			if err := tx.Create(msg).Error; err != nil {
				return fmt.Errorf("record inbound message: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// CreateWorkspace creates a workspace together with its default sequence.
func (s *GormStore) CreateWorkspace(ctx context.Context, workspace *models.Workspace, steps []models.SequenceStep) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		sequence := models.Sequence{
			WorkspaceID: workspace.ID,
			Name:        models.DefaultSequenceName,
			IsDefault:   true,
			IsActive:    true,
			Steps:       steps,
		}
		if err := tx.Create(&sequence).Error; err != nil {
			return fmt.Errorf("create default sequence: %w", err)
		}
		workspace.Sequences = []models.Sequence{sequence}
		return nil
	})
}

func compareAndSwap(tx *gorm.DB, prev models.LeadSequenceState, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + ?", 1)
	res := tx.Model(&models.LeadSequenceState{}).
		Where("id = ? AND version = ?", prev.ID, prev.Version).
		Where("is_paused = ? AND is_completed = ?", false, false).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update sequence state of lead %d: %w", prev.LeadID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: lead %d", ErrStateConflict, prev.LeadID)
	}
	return nil
}

func setLeadStatus(tx *gorm.DB, leadID uint, status models.LeadStatus, reason *string) error {
	res := tx.Model(&models.Lead{}).Where("id = ?", leadID).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update status of lead %d: %w", leadID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: lead %d", ErrNotFound, leadID)
	}
	if !status.PausesSequence() {
		return nil
	}

	pausedReason := string(status)
	if reason != nil && *reason != "" {
		pausedReason = *reason
	}
	if err := tx.Model(&models.LeadSequenceState{}).
		Where("lead_id = ?", leadID).
		Updates(map[string]interface{}{
			"is_paused":     true,
			"paused_reason": pausedReason,
			"version":       gorm.Expr("version + ?", 1),
		}).Error; err != nil {
		return fmt.Errorf("pause sequence of lead %d: %w", leadID, err)
	}
	return nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
	}
	return fmt.Errorf("fetch "+format+": %w", append(args, err)...)
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
