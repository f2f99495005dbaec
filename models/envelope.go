package models

import "errors"

// ErrWorkspaceNotFound is returned when no workspace owns the recipient address.
var ErrWorkspaceNotFound = errors.New("workspace_not_found")

// InboundEnvelope is a normalized inbound email as handed over by a
// mail-receiving adapter. Addresses are already lower-cased and trimmed.
type InboundEnvelope struct {
	From    string `json:"from" validate:"required,email"`
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// InboundStatus is the outcome of handling one inbound email.
type InboundStatus string

const (
	InboundReplyProcessed InboundStatus = "reply_processed"
	InboundLeadCreated    InboundStatus = "lead_created"
)

type InboundResult struct {
	Status InboundStatus `json:"status"`
	LeadID uint          `json:"leadId"`
}
