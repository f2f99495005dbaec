package store

import (
	"context"
	"fmt"
	"time"

	"offertpilot/models"

	"gorm.io/gorm"
)

// DashboardStats summarises one workspace for the current month.
type DashboardStats struct {
	LeadsThisMonth int64         `json:"leads_this_month"`
	EmailsSent     int64         `json:"emails_sent"`
	ReplyRate      float64       `json:"reply_rate"`
	ActiveLeads    []models.Lead `json:"active_leads"`
}

const activeLeadsLimit = 10

// ListLeads returns the workspace's leads, newest first, with their progress.
func (s *GormStore) ListLeads(ctx context.Context, workspaceID uint) ([]models.Lead, error) {
	var leads []models.Lead
	if err := s.db.WithContext(ctx).
		Preload("SequenceState").
		Where("workspace_id = ?", workspaceID).
		Order("created_at desc, id desc").
		Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("list leads of workspace %d: %w", workspaceID, err)
	}
	return leads, nil
}

// GetLeadDetail returns a lead with its progress and its conversation in
// sending order.
func (s *GormStore) GetLeadDetail(ctx context.Context, leadID uint) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).
		Preload("SequenceState").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sent_at asc, id asc")
		}).
		First(&lead, leadID).Error; err != nil {
		return nil, notFound(err, "lead %d", leadID)
	}
	return &lead, nil
}

func (s *GormStore) DashboardStats(ctx context.Context, workspaceID uint, now time.Time) (*DashboardStats, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).UTC()
	monthEnd := monthStart.AddDate(0, 1, 0)
	db := s.db.WithContext(ctx)

	stats := &DashboardStats{}
	if err := db.Model(&models.Lead{}).
		Where("workspace_id = ? AND created_at >= ? AND created_at < ?", workspaceID, monthStart, monthEnd).
		Count(&stats.LeadsThisMonth).Error; err != nil {
		return nil, fmt.Errorf("count leads this month: %w", err)
	}

	if err := db.Model(&models.Message{}).
		Where("workspace_id = ? AND direction = ?", workspaceID, models.DirectionOut).
		Where("sent_at >= ? AND sent_at < ?", monthStart, monthEnd).
		Count(&stats.EmailsSent).Error; err != nil {
		return nil, fmt.Errorf("count emails sent: %w", err)
	}

	var totalLeads, repliedLeads int64
	if err := db.Model(&models.Lead{}).Where("workspace_id = ?", workspaceID).Count(&totalLeads).Error; err != nil {
		return nil, fmt.Errorf("count leads: %w", err)
	}
	if err := db.Model(&models.Lead{}).
		Where("workspace_id = ? AND status = ?", workspaceID, models.LeadStatusReplied).
		Count(&repliedLeads).Error; err != nil {
		return nil, fmt.Errorf("count replied leads: %w", err)
	}
	if totalLeads > 0 {
		stats.ReplyRate = float64(repliedLeads) / float64(totalLeads)
	}

	if err := db.Preload("SequenceState").
		Where("workspace_id = ? AND status = ?", workspaceID, models.LeadStatusSent).
		Order("created_at desc, id desc").
		Limit(activeLeadsLimit).
		Find(&stats.ActiveLeads).Error; err != nil {
		return nil, fmt.Errorf("fetch active leads: %w", err)
	}
	return stats, nil
}
