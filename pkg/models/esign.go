package models

import (
	"time"
)

// E-sign envelope statuses. A row starts pending when the credit is
// consumed, moves to sent once the provider accepts the envelope, and
// lands in exactly one terminal state via webhook.
const (
	EnvelopeStatusPending   = "pending"
	EnvelopeStatusSent      = "sent"
	EnvelopeStatusCompleted = "completed"
	EnvelopeStatusDeclined  = "declined"
	EnvelopeStatusCancelled = "cancelled"
)

// UsageEntry represents one e-sign envelope. Each row consumes one
// signature credit permanently; declined or cancelled envelopes do not
// refund it.
type UsageEntry struct {
	ID                string     `json:"id" db:"id"`
	LandlordID        string     `json:"landlord_id" db:"landlord_id"`
	DocumentID        *string    `json:"document_id,omitempty" db:"document_id"`
	SignerName        string     `json:"signer_name" db:"signer_name"`
	SignerEmail       string     `json:"signer_email" db:"signer_email"`
	Status            string     `json:"status" db:"status"`
	ProviderRequestID *string    `json:"provider_request_id,omitempty" db:"provider_request_id"`
	SignedAt          *time.Time `json:"signed_at,omitempty" db:"signed_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// CreateEnvelopeRequest sends a stored document out for signature.
type CreateEnvelopeRequest struct {
	DocumentID  string `json:"document_id" binding:"required,uuid"`
	SignerName  string `json:"signer_name" binding:"required"`
	SignerEmail string `json:"signer_email" binding:"required,email"`
}
