package models

import (
	"time"

	"gorm.io/gorm"
)

// LeadStatus is the lifecycle status of a lead.
type LeadStatus string

const (
	LeadStatusSent        LeadStatus = "SENT"
	LeadStatusReplied     LeadStatus = "REPLIED"
	LeadStatusWon         LeadStatus = "WON"
	LeadStatusLost        LeadStatus = "LOST"
	LeadStatusManualPause LeadStatus = "MANUAL_PAUSE"
)

// PausesSequence reports whether moving a lead to this status halts its sequence.
func (s LeadStatus) PausesSequence() bool {
	switch s {
	case LeadStatusReplied, LeadStatusWon, LeadStatusLost, LeadStatusManualPause:
		return true
	}
	return false
}

// Lead is one prospective customer within one workspace.
type Lead struct {
	gorm.Model
	WorkspaceID uint `gorm:"not null;index" json:"workspace_id"`

	// CustomerEmail is stored lower-cased and trimmed.
	CustomerEmail string     `gorm:"not null;index" json:"customer_email"`
	CustomerName  *string    `json:"customer_name"`
	ServiceType   *string    `json:"service_type"`
	Status        LeadStatus `gorm:"type:varchar(32);default:'SENT';index" json:"status"`
	ThreadID      *string    `json:"thread_id"`

	// Relations
	SequenceState *LeadSequenceState `gorm:"foreignKey:LeadID" json:"sequence_state,omitempty"`
	Messages      []Message          `gorm:"foreignKey:LeadID" json:"messages,omitempty"`
}

// LeadSequenceState is the per-lead progress cursor through a sequence.
// CurrentStep 0 means no step has been sent yet; a nil NextSendAt means
// nothing further is scheduled. Version is bumped on every write and is
// the compare-and-swap key for conditional updates.
type LeadSequenceState struct {
	gorm.Model
	LeadID     uint `gorm:"not null;uniqueIndex" json:"lead_id"`
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	CurrentStep  int        `gorm:"not null;default:0" json:"current_step"`
	NextSendAt   *time.Time `gorm:"index" json:"next_send_at"`
	IsPaused     bool       `gorm:"not null;default:false" json:"is_paused"`
	PausedReason *string    `json:"paused_reason"`
	IsCompleted  bool       `gorm:"not null;default:false" json:"is_completed"`
	Version      int        `gorm:"not null;default:0" json:"version"`
}

// IsDue reports whether the scheduler should act on this record at now.
func (s *LeadSequenceState) IsDue(now time.Time) bool {
	if s.IsPaused || s.IsCompleted || s.NextSendAt == nil {
		return false
	}
	return !s.NextSendAt.After(now)
}
