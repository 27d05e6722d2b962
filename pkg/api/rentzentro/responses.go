// Package rentzentro defines the response envelopes of the platform API.
// Single-entity endpoints return pkg/models structs directly; the types
// here wrap lists with page metadata and compose multi-entity views.
package rentzentro

import (
	"time"

	"github.com/rentzentro/platform/pkg/models"
	"github.com/rentzentro/platform/pkg/pagination"
)

// AccessStatusResponse is returned by GET /billing/subscription.
type AccessStatusResponse = models.AccessStatus

// CheckoutResponse carries a hosted checkout redirect.
type CheckoutResponse = models.CheckoutSessionResponse

// EnvelopesPage is one page of e-sign envelopes.
type EnvelopesPage struct {
	Envelopes []models.UsageEntry  `json:"envelopes"`
	Page      *pagination.Response `json:"page,omitempty"`
}

// PaymentsPage is one page of rent payment history.
type PaymentsPage struct {
	Payments []models.RentPayment `json:"payments"`
	Page     *pagination.Response `json:"page,omitempty"`
}

// PublicListingsPage is one page of published listings on the public site.
type PublicListingsPage struct {
	Listings []models.Listing     `json:"listings"`
	Page     *pagination.Response `json:"page,omitempty"`
}

// PortalHome is the tenant portal landing view. Tenancy is nil when the
// tenant is not linked to any property yet.
type PortalHome struct {
	Tenancy   *models.Tenancy   `json:"tenancy"`
	Property  *models.Property  `json:"property,omitempty"`
	RentCents int64             `json:"rent_cents"`
	Documents []models.Document `json:"documents"`
}

// PresignedURLResponse carries a short-lived document download link.
type PresignedURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConnectAccountResponse reports the landlord's payout account state.
type ConnectAccountResponse struct {
	ConnectAccountID string `json:"connect_account_id"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
}

// OnboardingLinkResponse carries the Stripe-hosted payout onboarding URL.
type OnboardingLinkResponse struct {
	URL string `json:"url"`
}

// BillingPortalResponse carries the provider-hosted billing portal URL.
type BillingPortalResponse struct {
	URL string `json:"url"`
}
