// Package entitlement decides whether a landlord may use gated features
// and how many e-sign credits remain. Every function is pure: callers
// fetch the subscription and ledger rows and pass the current time, so
// the rules are testable without a database or a live clock.
package entitlement

import (
	"regexp"
	"strings"
	"time"

	"github.com/rentzentro/platform/pkg/models"
)

// Subscription statuses written by the billing provider sync. The
// provider vocabulary is larger; these are the values access decisions
// care about.
const (
	StatusActive            = "active"
	StatusTrialing          = "trialing"
	StatusActiveCancelAtEnd = "active_cancel_at_period_end"
	StatusPastDue           = "past_due"
	StatusCanceled          = "canceled"
	StatusUnpaid            = "unpaid"
)

// BlockedReason tells the UI which recovery path to offer a blocked
// landlord: fix a failed payment, or pick a plan.
type BlockedReason string

const (
	ReasonPastDue  BlockedReason = "past_due"
	ReasonInactive BlockedReason = "inactive"
)

// Message returns the user-facing explanation for a blocked state.
func (r BlockedReason) Message() string {
	if r == ReasonPastDue {
		return "Your subscription payment is past due. Update your payment method to restore access."
	}
	return "An active subscription is required. Choose a plan to continue."
}

var dateOnlyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NormalizeStatus lowercases the provider status. A nil state (no
// subscription row) or NULL status normalizes to the empty string.
func NormalizeStatus(state *models.Subscription) string {
	if state == nil || state.Status == nil {
		return ""
	}
	return strings.ToLower(*state.Status)
}

// IsAccessAllowed reports whether the landlord behind state may use
// gated features at now. Access is granted on a paid status or on an
// unexpired promotional trial; an unreadable trial date never grants
// access.
func IsAccessAllowed(state *models.Subscription, now time.Time) bool {
	switch NormalizeStatus(state) {
	case StatusActive, StatusTrialing, StatusActiveCancelAtEnd:
		return true
	}

	if state == nil || !state.TrialActive || state.TrialEnd == nil {
		return false
	}
	trialEnd, ok := trialEndDate(*state.TrialEnd, now.Location())
	if !ok {
		return false
	}
	return !trialEnd.Before(dateOf(now))
}

// ClassifyBlockedReason explains a failed access check. Past-due and
// unpaid statuses get the payment-specific reason so the UI routes the
// landlord to the billing page rather than the plan picker.
func ClassifyBlockedReason(state *models.Subscription) BlockedReason {
	switch NormalizeStatus(state) {
	case StatusPastDue, StatusUnpaid:
		return ReasonPastDue
	}
	return ReasonInactive
}

// trialEndDate interprets the stored trial end as a calendar date at
// midnight in loc. A pure YYYY-MM-DD value is constructed in loc
// directly, so the date cannot drift across a day boundary the way a
// UTC-normalizing timestamp parse would. Anything else must parse as
// RFC 3339 and is truncated to its date in loc. Unreadable values
// return false.
func trialEndDate(raw string, loc *time.Location) (time.Time, bool) {
	if dateOnlyPattern.MatchString(raw) {
		t, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return dateOf(t.In(loc)), true
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ComputeRemainingCredits returns the signature credits left for a
// landlord. One usage entry consumes one credit for good, whatever its
// later status; declines and cancellations do not refund.
func ComputeRemainingCredits(purchases []models.PurchaseEntry, usages []models.UsageEntry) int {
	total := 0
	for _, p := range purchases {
		total += p.Signatures
	}
	return RemainingFromTotals(total, len(usages))
}

// RemainingFromTotals clamps purchased minus used at zero so a
// transient overdraw never reports negative credits.
func RemainingFromTotals(purchased, used int) int {
	remaining := purchased - used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanConsumeCredit reports whether one more envelope may be created.
// The result is advisory at render time; envelope creation re-checks
// the balance inside its own transaction.
func CanConsumeCredit(purchases []models.PurchaseEntry, usages []models.UsageEntry) bool {
	return ComputeRemainingCredits(purchases, usages) > 0
}

// BalanceFromTotals builds the dashboard credit summary from the SQL
// aggregates.
func BalanceFromTotals(purchased, used int) models.CreditBalance {
	return models.CreditBalance{
		Purchased: purchased,
		Used:      used,
		Remaining: RemainingFromTotals(purchased, used),
	}
}
