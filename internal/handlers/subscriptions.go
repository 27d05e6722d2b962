package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/internal/entitlement"
	"github.com/rentzentro/platform/internal/stripeclient"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/api/rentzentro"
	"github.com/rentzentro/platform/pkg/models"
)

// GetSubscription returns the caller's billing snapshot: subscription
// state, whether gated features are allowed, and the credit balance. The
// dashboard renders its banners from this single response.
func (h *Handlers) GetSubscription(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	sub, err := h.fetchSubscription(ctx, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load subscription")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	purchased, used, err := h.fetchCreditTotals(ctx, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load credit totals")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	status := models.AccessStatus{
		Allowed: entitlement.IsAccessAllowed(sub, time.Now()),
		Credits: entitlement.BalanceFromTotals(purchased, used),
	}
	if sub != nil {
		status.Status = sub.Status
		status.TrialActive = sub.TrialActive
		status.TrialEnd = sub.TrialEnd
		status.CurrentPeriodEnd = sub.CurrentPeriodEnd
	}
	if !status.Allowed {
		status.BlockedReason = string(entitlement.ClassifyBlockedReason(sub))
	}

	c.JSON(http.StatusOK, status)
}

// CreateSubscriptionCheckout starts a hosted checkout for the landlord
// plan. The subscription row is written by the webhook once the provider
// confirms, never here.
func (h *Handlers) CreateSubscriptionCheckout(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	if h.stripe == nil || !h.stripe.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Payments are not configured"})
		return
	}
	if h.subscriptionPriceID == "" {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Subscription plan is not configured"})
		return
	}

	account, err := h.fetchAccount(ctx, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load account for checkout")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Account not found"})
		return
	}

	customerID, err := h.ensureStripeCustomer(c, account)
	if err != nil {
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Payment provider error"})
		return
	}

	sess, err := h.stripe.CreateSubscriptionCheckout(ctx, stripeclient.SubscriptionCheckoutParams{
		CustomerID: customerID,
		AccountID:  landlordID,
		PriceID:    h.subscriptionPriceID,
		SuccessURL: h.webURL("/billing?checkout=success"),
		CancelURL:  h.webURL("/billing?checkout=cancelled"),
		TrialDays:  h.trialDays,
	})
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to create subscription checkout")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Payment provider error"})
		return
	}

	h.recordCheckoutSession("subscription")
	c.JSON(http.StatusOK, models.CheckoutSessionResponse{SessionID: sess.ID, URL: sess.URL})
}

// CreateBillingPortal returns a provider-hosted portal session where the
// landlord manages payment methods and invoices.
func (h *Handlers) CreateBillingPortal(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	if h.stripe == nil || !h.stripe.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Payments are not configured"})
		return
	}

	account, err := h.fetchAccount(ctx, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load account for portal")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if account == nil || account.StripeCustomerID == nil || *account.StripeCustomerID == "" {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "No billing profile yet, start a subscription first"})
		return
	}

	sess, err := h.stripe.CreateBillingPortalSession(ctx, *account.StripeCustomerID, h.webURL("/billing"))
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to create billing portal session")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Payment provider error"})
		return
	}

	c.JSON(http.StatusOK, rentzentro.BillingPortalResponse{URL: sess.URL})
}

// CancelSubscription flags the subscription to end at the period close.
// Access continues until then; the webhook records the final state when
// the provider actually ends it.
func (h *Handlers) CancelSubscription(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	if h.stripe == nil || !h.stripe.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Payments are not configured"})
		return
	}

	sub, err := h.fetchSubscription(ctx, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load subscription for cancel")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if sub == nil || sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID == "" {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "No subscription to cancel"})
		return
	}

	if _, err := h.stripe.CancelSubscriptionAtPeriodEnd(ctx, *sub.StripeSubscriptionID); err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to cancel subscription")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Payment provider error"})
		return
	}

	// Reflect the pending cancellation immediately so the dashboard does
	// not wait on the webhook round trip.
	if _, err := h.db.ExecContext(ctx, `
		UPDATE rentzentro.subscriptions
		SET subscription_status = $1, updated_at = NOW()
		WHERE landlord_id = $2
	`, entitlement.StatusActiveCancelAtEnd, landlordID); err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Warn("Failed to record pending cancellation, webhook will catch up")
	}

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true, Message: "Subscription will end at the current period close"})
}

// ensureStripeCustomer returns the account's provider customer id,
// creating and persisting one when missing. Persisting is best effort;
// CreateOrGetCustomer finds the customer again by metadata if the UPDATE
// is lost.
func (h *Handlers) ensureStripeCustomer(c *gin.Context, account *models.Account) (string, error) {
	if account.StripeCustomerID != nil && *account.StripeCustomerID != "" {
		return *account.StripeCustomerID, nil
	}

	name := account.Email
	if account.DisplayName != "" {
		name = account.DisplayName
	}

	cust, err := h.stripe.CreateOrGetCustomer(c.Request.Context(), stripeclient.CustomerInfo{
		AccountID: account.ID,
		Email:     account.Email,
		Name:      name,
	})
	if err != nil {
		h.logger.WithError(err).WithField("account_id", account.ID).Error("Failed to create Stripe customer")
		return "", err
	}

	if _, err := h.db.ExecContext(c.Request.Context(), `
		UPDATE rentzentro.accounts SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2
	`, cust.ID, account.ID); err != nil {
		h.logger.WithError(err).WithField("account_id", account.ID).Warn("Failed to persist Stripe customer id")
	}

	return cust.ID, nil
}
