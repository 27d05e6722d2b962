package testutil

import (
	"database/sql/driver"
	"time"

	"github.com/rentzentro/platform/pkg/models"
)

func strPtr(s string) *string { return &s }

// ActiveSubscription builds a funded subscription row.
func ActiveSubscription(landlordID string) *models.Subscription {
	periodEnd := time.Now().Add(20 * 24 * time.Hour)
	return &models.Subscription{
		ID:                   "sub-row-active",
		LandlordID:           landlordID,
		Status:               strPtr("active"),
		StripeSubscriptionID: strPtr("sub_123"),
		StripeCustomerID:     strPtr("cus_123"),
		CurrentPeriodEnd:     &periodEnd,
		TrialActive:          false,
		CreatedAt:            time.Now().Add(-30 * 24 * time.Hour),
		UpdatedAt:            time.Now(),
	}
}

// TrialSubscription builds an unpaid trial row. trialEnd is a date-only
// string (YYYY-MM-DD) matching what the billing sync writes.
func TrialSubscription(landlordID, trialEnd string) *models.Subscription {
	return &models.Subscription{
		ID:          "sub-row-trial",
		LandlordID:  landlordID,
		TrialActive: true,
		TrialEnd:    &trialEnd,
		CreatedAt:   time.Now().Add(-24 * time.Hour),
		UpdatedAt:   time.Now(),
	}
}

// SubscriptionColumns matches the select list of subscription reads.
func SubscriptionColumns() []string {
	return []string{
		"id", "landlord_id", "subscription_status", "stripe_subscription_id",
		"stripe_customer_id", "current_period_end", "trial_active", "trial_end",
		"created_at", "updated_at",
	}
}

// SubscriptionRowData flattens a Subscription into driver values for
// sqlmock's AddRow. Nil pointer fields become SQL NULLs.
func SubscriptionRowData(s *models.Subscription) []driver.Value {
	return []driver.Value{
		s.ID, s.LandlordID, nullableString(s.Status), nullableString(s.StripeSubscriptionID),
		nullableString(s.StripeCustomerID), nullableTime(s.CurrentPeriodEnd), s.TrialActive,
		nullableString(s.TrialEnd), s.CreatedAt, s.UpdatedAt,
	}
}

// UsageEntryColumns matches the select list of envelope reads.
func UsageEntryColumns() []string {
	return []string{
		"id", "landlord_id", "document_id", "signer_name", "signer_email",
		"status", "provider_request_id", "signed_at", "created_at", "updated_at",
	}
}

func nullableString(s *string) driver.Value {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return *t
}
