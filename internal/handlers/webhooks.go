package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"

	"github.com/rentzentro/platform/internal/entitlement"
	"github.com/rentzentro/platform/internal/esign"
	"github.com/rentzentro/platform/internal/stripeclient"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
	"github.com/rentzentro/platform/pkg/validation"
)

// maxWebhookBody caps webhook reads; provider payloads are a few KB.
const maxWebhookBody = 64 << 10

// StripeWebhook processes billing provider callbacks: completed checkouts
// and subscription lifecycle changes. Deliveries are deduplicated by event
// id, and a processing failure returns 500 without marking the event so
// the provider retries.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	if h.stripe == nil || !h.stripe.HasWebhookSecret() {
		h.logger.Error("STRIPE_WEBHOOK_SECRET not configured; rejecting webhook")
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Webhook verification not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid payload"})
		return
	}

	event, err := h.stripe.VerifyAndParseWebhook(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.WithError(err).Warn("Invalid Stripe webhook signature")
		h.recordWebhookSignatureFailure("stripe")
		c.JSON(http.StatusUnauthorized, common.ErrorResponse{Error: "Invalid signature"})
		return
	}

	eventType := string(event.Type)
	h.logger.WithFields(logging.Fields{
		"event_id":   event.ID,
		"event_type": eventType,
	}).Info("Received Stripe webhook")

	if h.isWebhookAlreadyProcessed(c.Request.Context(), "stripe", event.ID) {
		h.logger.WithField("event_id", event.ID).Debug("Stripe webhook already processed, skipping")
		h.recordWebhookEvent("stripe", eventType, "duplicate")
		c.JSON(http.StatusOK, common.SuccessResponse{Success: true})
		return
	}

	ctx := c.Request.Context()
	handled := true
	switch {
	case eventType == "checkout.session.completed" || eventType == "checkout.session.async_payment_succeeded":
		sess, parseErr := h.stripe.CheckoutSessionFromEvent(event)
		if parseErr != nil {
			h.logger.WithError(parseErr).Warn("Invalid Stripe checkout payload")
			c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid payload"})
			return
		}
		err = h.handleCheckoutCompleted(ctx, sess)
	case eventType == "checkout.session.expired":
		sess, parseErr := h.stripe.CheckoutSessionFromEvent(event)
		if parseErr != nil {
			h.logger.WithError(parseErr).Warn("Invalid Stripe checkout payload")
			c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid payload"})
			return
		}
		err = h.handleCheckoutExpired(ctx, sess)
	case strings.HasPrefix(eventType, "customer.subscription."):
		sub, parseErr := h.stripe.SubscriptionFromEvent(event)
		if parseErr != nil {
			h.logger.WithError(parseErr).Warn("Invalid Stripe subscription payload")
			c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid payload"})
			return
		}
		err = h.handleSubscriptionSync(ctx, h.stripe.ExtractSubscriptionInfo(sub))
	default:
		handled = false
		h.logger.WithField("event_type", eventType).Debug("Ignoring unhandled Stripe event type")
	}

	if err != nil {
		h.logger.WithError(err).WithField("event_type", eventType).Error("Failed to process Stripe webhook")
		h.recordWebhookEvent("stripe", eventType, "failed")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Failed to process webhook"})
		return
	}

	if handled {
		h.recordWebhookEvent("stripe", eventType, "processed")
	} else {
		h.recordWebhookEvent("stripe", eventType, "ignored")
	}
	h.markWebhookProcessed(ctx, "stripe", event.ID, eventType)
	c.JSON(http.StatusOK, common.SuccessResponse{Success: true})
}

// handleCheckoutCompleted routes a finished checkout session on its
// metadata purpose. Inserts are keyed on the session id so re-delivery
// is a no-op.
func (h *Handlers) handleCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	purpose := sess.Metadata["purpose"]
	accountID := sess.Metadata["account_id"]

	switch purpose {
	case stripeclient.PurposeSubscription:
		if accountID == "" {
			return fmt.Errorf("subscription checkout %s missing account_id metadata", sess.ID)
		}
		subscriptionID := ""
		if sess.Subscription != nil {
			subscriptionID = sess.Subscription.ID
		}
		customerID := ""
		if sess.Customer != nil {
			customerID = sess.Customer.ID
		}
		_, err := h.db.ExecContext(ctx, `
			INSERT INTO rentzentro.subscriptions (landlord_id, subscription_status, stripe_subscription_id, stripe_customer_id)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
			ON CONFLICT (landlord_id) DO UPDATE SET
				subscription_status = EXCLUDED.subscription_status,
				stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, rentzentro.subscriptions.stripe_subscription_id),
				stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, rentzentro.subscriptions.stripe_customer_id),
				updated_at = NOW()
		`, accountID, entitlement.StatusActive, subscriptionID, customerID)
		if err != nil {
			return fmt.Errorf("upsert subscription for checkout %s: %w", sess.ID, err)
		}
		h.logger.WithFields(logging.Fields{
			"account_id": accountID,
			"session_id": sess.ID,
		}).Info("Subscription checkout completed")
		return nil

	case stripeclient.PurposeCreditPack:
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			h.logger.WithFields(logging.Fields{
				"session_id":     sess.ID,
				"payment_status": string(sess.PaymentStatus),
			}).Info("Credit pack checkout completed but not yet paid, waiting for payment event")
			return nil
		}
		if accountID == "" {
			return fmt.Errorf("credit pack checkout %s missing account_id metadata", sess.ID)
		}
		signatures, err := strconv.Atoi(sess.Metadata["signatures"])
		if err != nil || signatures <= 0 {
			return fmt.Errorf("credit pack checkout %s has invalid signatures metadata %q", sess.ID, sess.Metadata["signatures"])
		}
		_, err = h.db.ExecContext(ctx, `
			INSERT INTO rentzentro.purchases (landlord_id, signatures, amount_cents, currency, payment_ref)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (payment_ref) DO NOTHING
		`, accountID, signatures, sess.AmountTotal, string(sess.Currency), sess.ID)
		if err != nil {
			return fmt.Errorf("insert purchase for checkout %s: %w", sess.ID, err)
		}
		h.logger.WithFields(logging.Fields{
			"account_id": accountID,
			"session_id": sess.ID,
			"signatures": signatures,
		}).Info("Credit pack purchase recorded")
		return nil

	case stripeclient.PurposeRent:
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			h.logger.WithFields(logging.Fields{
				"session_id":     sess.ID,
				"payment_status": string(sess.PaymentStatus),
			}).Info("Rent checkout completed but not yet paid, waiting for payment event")
			return nil
		}
		result, err := h.db.ExecContext(ctx, `
			UPDATE rentzentro.rent_payments
			SET status = $1, paid_at = COALESCE(paid_at, NOW())
			WHERE payment_ref = $2 AND status <> $1
		`, models.RentPaymentPaid, sess.ID)
		if err != nil {
			return fmt.Errorf("mark rent payment paid for checkout %s: %w", sess.ID, err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			h.logger.WithField("session_id", sess.ID).Warn("Rent checkout completed for unknown or already paid payment")
		} else {
			h.logger.WithField("session_id", sess.ID).Info("Rent payment recorded")
		}
		return nil

	default:
		h.logger.WithFields(logging.Fields{
			"session_id": sess.ID,
			"purpose":    purpose,
		}).Debug("Ignoring checkout session with unknown purpose")
		return nil
	}
}

// handleCheckoutExpired marks an abandoned rent checkout as failed so the
// tenant can start a fresh one. Other purposes need no cleanup; nothing
// was written for them at session creation.
func (h *Handlers) handleCheckoutExpired(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.Metadata["purpose"] != stripeclient.PurposeRent {
		return nil
	}
	_, err := h.db.ExecContext(ctx, `
		UPDATE rentzentro.rent_payments
		SET status = $1
		WHERE payment_ref = $2 AND status = $3
	`, models.RentPaymentFailed, sess.ID, models.RentPaymentPending)
	if err != nil {
		return fmt.Errorf("mark rent payment failed for expired checkout %s: %w", sess.ID, err)
	}
	return nil
}

// handleSubscriptionSync applies a provider subscription snapshot to the
// local row. The update is keyed on the provider subscription id; when no
// row matches and the subscription names an account, the row is created,
// which covers subscriptions started before the checkout webhook landed.
func (h *Handlers) handleSubscriptionSync(ctx context.Context, info stripeclient.SubscriptionInfo) error {
	result, err := h.db.ExecContext(ctx, `
		UPDATE rentzentro.subscriptions
		SET subscription_status = $1,
		    current_period_end = $2,
		    stripe_customer_id = COALESCE(NULLIF($3, ''), stripe_customer_id),
		    updated_at = NOW()
		WHERE stripe_subscription_id = $4
	`, info.Status, info.CurrentPeriodEnd, info.StripeCustomerID, info.StripeSubscriptionID)
	if err != nil {
		return fmt.Errorf("sync subscription %s: %w", info.StripeSubscriptionID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		if info.AccountID == "" {
			h.logger.WithField("subscription_id", info.StripeSubscriptionID).Warn("Subscription event matches no local row and carries no account metadata")
			return nil
		}
		_, err = h.db.ExecContext(ctx, `
			INSERT INTO rentzentro.subscriptions (landlord_id, subscription_status, stripe_subscription_id, stripe_customer_id, current_period_end)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5)
			ON CONFLICT (landlord_id) DO UPDATE SET
				subscription_status = EXCLUDED.subscription_status,
				stripe_subscription_id = EXCLUDED.stripe_subscription_id,
				stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, rentzentro.subscriptions.stripe_customer_id),
				current_period_end = EXCLUDED.current_period_end,
				updated_at = NOW()
		`, info.AccountID, info.Status, info.StripeSubscriptionID, info.StripeCustomerID, info.CurrentPeriodEnd)
		if err != nil {
			return fmt.Errorf("insert subscription %s: %w", info.StripeSubscriptionID, err)
		}
	}

	h.logger.WithFields(logging.Fields{
		"subscription_id": info.StripeSubscriptionID,
		"status":          info.Status,
	}).Info("Subscription state synced")
	return nil
}

// EsignWebhook processes e-sign provider callbacks and moves envelopes
// through their lifecycle. Event types map to statuses by keyword;
// anything unrecognized is acknowledged untouched so the provider stops
// retrying.
func (h *Handlers) EsignWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid payload"})
		return
	}

	if h.esign != nil && h.esign.HasWebhookSecret() {
		if !h.esign.VerifyWebhook(body, c.GetHeader("X-Esign-Signature")) {
			h.logger.Warn("Invalid e-sign webhook signature")
			h.recordWebhookSignatureFailure("esign")
			c.JSON(http.StatusUnauthorized, common.ErrorResponse{Error: "Invalid signature"})
			return
		}
	} else {
		// Local development runs without a shared secret.
		h.logger.Warn("E-sign webhook signature verification skipped, no secret configured")
	}

	event, err := h.validator.ParseEsignEvent(body)
	if err != nil {
		h.logger.WithError(err).Warn("Invalid e-sign webhook payload")
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid payload"})
		return
	}

	eventType := event.Event.EventType
	eventID := event.Event.EventHash
	ctx := c.Request.Context()

	h.logger.WithFields(logging.Fields{
		"event_type": eventType,
		"event_hash": eventID,
	}).Info("Received e-sign webhook")

	if eventID != "" && h.isWebhookAlreadyProcessed(ctx, "esign", eventID) {
		h.logger.WithField("event_hash", eventID).Debug("E-sign webhook already processed, skipping")
		h.recordWebhookEvent("esign", eventType, "duplicate")
		c.JSON(http.StatusOK, common.SuccessResponse{Success: true})
		return
	}

	status, ok := esign.MapEventStatus(eventType)
	if !ok || event.SignatureRequest == nil {
		if eventType != string(validation.EsignCallbackTest) {
			h.logger.WithField("event_type", eventType).Debug("Ignoring unhandled e-sign event type")
		}
		h.recordWebhookEvent("esign", eventType, "ignored")
		h.ackEsignEvent(c, eventID, eventType)
		return
	}

	requestID := event.SignatureRequest.SignatureRequestID
	result, err := h.db.ExecContext(ctx, `
		UPDATE rentzentro.usage_entries
		SET status = $1,
		    signed_at = CASE WHEN $1 = 'completed' THEN COALESCE(signed_at, NOW()) ELSE signed_at END,
		    updated_at = NOW()
		WHERE provider_request_id = $2
	`, status, requestID)
	if err != nil {
		h.logger.WithError(err).WithField("provider_request_id", requestID).Error("Failed to update envelope status")
		h.recordWebhookEvent("esign", eventType, "failed")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Failed to process webhook"})
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		// Retrying will not help; the request id is simply not ours.
		h.logger.WithField("provider_request_id", requestID).Warn("E-sign event for unknown envelope, acknowledging")
	} else {
		h.logger.WithFields(logging.Fields{
			"provider_request_id": requestID,
			"status":              status,
		}).Info("Envelope status updated")
	}

	h.recordWebhookEvent("esign", eventType, "processed")
	h.ackEsignEvent(c, eventID, eventType)
}

// ackEsignEvent records the delivery for dedup when it carries a hash and
// acknowledges it.
func (h *Handlers) ackEsignEvent(c *gin.Context, eventID, eventType string) {
	if eventID != "" {
		h.markWebhookProcessed(c.Request.Context(), "esign", eventID, eventType)
	}
	c.JSON(http.StatusOK, common.SuccessResponse{Success: true})
}

// isWebhookAlreadyProcessed checks the dedup table for a prior delivery.
func (h *Handlers) isWebhookAlreadyProcessed(ctx context.Context, provider, eventID string) bool {
	var exists bool
	err := h.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM rentzentro.webhook_events WHERE provider = $1 AND event_id = $2)
	`, provider, eventID).Scan(&exists)
	return err == nil && exists
}

// markWebhookProcessed records a processed delivery. Best effort: a miss
// only means one redundant reprocess on retry.
func (h *Handlers) markWebhookProcessed(ctx context.Context, provider, eventID, eventType string) {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO rentzentro.webhook_events (provider, event_id, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, provider, eventID, eventType)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to mark webhook as processed")
		return
	}
	h.pruneExpiredWebhookEvents(ctx)
}

// pruneExpiredWebhookEvents clears dedup rows older than the 90 day
// retention window, a bounded batch per webhook so no delivery ever pays
// for a large backlog. Providers stop retrying long before the window
// closes, so an expired row can no longer dedup anything.
func (h *Handlers) pruneExpiredWebhookEvents(ctx context.Context) {
	result, err := h.db.ExecContext(ctx, `
		DELETE FROM rentzentro.webhook_events
		WHERE (provider, event_id) IN (
			SELECT provider, event_id FROM rentzentro.webhook_events
			WHERE processed_at < NOW() - INTERVAL '90 days'
			LIMIT 500
		)
	`)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to prune expired webhook events")
		return
	}
	if pruned, _ := result.RowsAffected(); pruned > 0 {
		h.logger.WithField("pruned", pruned).Debug("Pruned expired webhook events")
	}
}
