package models

import "gorm.io/gorm"

// Workspace is the tenant boundary. It owns leads and sequences and supplies
// the sender identity and template context used when mailing its leads.
type Workspace struct {
	gorm.Model
	Slug        string  `gorm:"not null;uniqueIndex" json:"slug"`
	CompanyName string  `gorm:"not null" json:"company_name"`
	SenderName  string  `gorm:"not null" json:"sender_name"`
	SenderEmail string  `gorm:"not null" json:"sender_email"`
	Signature   *string `gorm:"column:signature_text;type:text" json:"signature_text"`
	Timezone    string  `gorm:"default:'Europe/Stockholm'" json:"timezone"`
	AIEnabled   bool    `gorm:"default:false" json:"ai_enabled"`

	// InboundEmailAddress is matched exactly against the recipient of inbound mail.
	InboundEmailAddress *string `gorm:"uniqueIndex" json:"inbound_email_address"`

	// Relations
	Sequences []Sequence `gorm:"foreignKey:WorkspaceID" json:"sequences,omitempty"`
}

// SignatureText returns the signature or the empty string when none is set.
func (w *Workspace) SignatureText() string {
	if w.Signature == nil {
		return ""
	}
	return *w.Signature
}
