package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Subscription represents a landlord's provider-synced subscription row.
// Status and trial fields are written only by the webhook and checkout
// handlers; readers treat the row as a snapshot.
type Subscription struct {
	ID                   string     `json:"id" db:"id"`
	LandlordID           string     `json:"landlord_id" db:"landlord_id"`
	Status               *string    `json:"status" db:"subscription_status"`
	StripeSubscriptionID *string    `json:"-" db:"stripe_subscription_id"`
	StripeCustomerID     *string    `json:"-" db:"stripe_customer_id"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty" db:"current_period_end"`
	TrialActive          bool       `json:"trial_active" db:"trial_active"`
	// TrialEnd is a date-only string (YYYY-MM-DD); access checks parse it
	// as a local calendar date and fail closed when it does not parse.
	TrialEnd  *string   `json:"trial_end,omitempty" db:"trial_end"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PurchaseEntry represents a signature credit pack purchase. PaymentRef is
// the provider checkout reference; its unique constraint makes webhook
// re-delivery idempotent.
type PurchaseEntry struct {
	ID          string    `json:"id" db:"id"`
	LandlordID  string    `json:"landlord_id" db:"landlord_id"`
	Signatures  int       `json:"signatures" db:"signatures"`
	AmountCents int64     `json:"amount_cents" db:"amount_cents"`
	Currency    string    `json:"currency" db:"currency"`
	PaymentRef  string    `json:"payment_ref" db:"payment_ref"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CreditBalance summarizes e-sign credit accounting for a landlord.
// Remaining is never negative.
type CreditBalance struct {
	Purchased int `json:"purchased"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// AccessStatus is the billing snapshot rendered by dashboard pages: whether
// the landlord may use gated features, why not, and the credit balance.
type AccessStatus struct {
	Allowed          bool          `json:"allowed"`
	BlockedReason    string        `json:"blocked_reason,omitempty"`
	Status           *string       `json:"status"`
	TrialActive      bool          `json:"trial_active"`
	TrialEnd         *string       `json:"trial_end,omitempty"`
	CurrentPeriodEnd *time.Time    `json:"current_period_end,omitempty"`
	Credits          CreditBalance `json:"credits"`
}

// CheckoutSessionResponse carries the hosted checkout redirect back to the UI.
type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCreditCheckoutRequest selects a credit pack to purchase.
type CreateCreditCheckoutRequest struct {
	PackID string `json:"pack_id" binding:"required"`
}

// CreditPack is a purchasable signature bundle, configured server-side so
// clients cannot alter pricing.
type CreditPack struct {
	ID          string `json:"id"`
	Signatures  int    `json:"signatures"`
	AmountCents int64  `json:"amount_cents"`
	Label       string `json:"label"`
}

// Rent payment statuses.
const (
	RentPaymentPending = "pending"
	RentPaymentPaid    = "paid"
	RentPaymentFailed  = "failed"
)

// RentPayment represents one tenant rent charge collected through the
// payment provider and routed to the landlord's connected account.
type RentPayment struct {
	ID          string     `json:"id" db:"id"`
	TenancyID   string     `json:"tenancy_id" db:"tenancy_id"`
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	LandlordID  string     `json:"landlord_id" db:"landlord_id"`
	AmountCents int64      `json:"amount_cents" db:"amount_cents"`
	Currency    string     `json:"currency" db:"currency"`
	Status      string     `json:"status" db:"status"`
	PaymentRef  string     `json:"-" db:"payment_ref"`
	PaidAt      *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// WebhookEvent records a processed provider delivery for dedup.
type WebhookEvent struct {
	Provider    string    `json:"provider" db:"provider"`
	EventID     string    `json:"event_id" db:"event_id"`
	EventType   string    `json:"event_type" db:"event_type"`
	ProcessedAt time.Time `json:"processed_at" db:"processed_at"`
}
