package models

import "time"

// MessageDirection tells inbound mail from outbound mail.
type MessageDirection string

const (
	DirectionIn  MessageDirection = "in"
	DirectionOut MessageDirection = "out"
)

// Message is an append-only record of one email exchanged with a lead.
type Message struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	LeadID      uint             `gorm:"not null;index" json:"lead_id"`
	WorkspaceID uint             `gorm:"not null;index" json:"workspace_id"`
	Direction   MessageDirection `gorm:"type:varchar(8);not null;index" json:"direction"`
	Subject     string           `json:"subject"`
	Body        string           `gorm:"type:text" json:"body"`
	FromEmail   string           `json:"from_email"`
	ToEmail     string           `json:"to_email"`

	// ProviderMessageID is the delivery id returned by the dispatcher, if any.
	ProviderMessageID *string   `gorm:"index" json:"provider_message_id"`
	SentAt            time.Time `gorm:"not null;index" json:"sent_at"`
	CreatedAt         time.Time `json:"created_at"`
}
