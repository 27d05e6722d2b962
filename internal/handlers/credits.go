package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/internal/entitlement"
	"github.com/rentzentro/platform/internal/stripeclient"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/billing"
	"github.com/rentzentro/platform/pkg/models"
)

// GetCreditBalance returns the caller's e-sign credit ledger summary and
// the purchasable pack catalog.
func (h *Handlers) GetCreditBalance(c *gin.Context) {
	landlordID := h.accountID(c)

	purchased, used, err := h.fetchCreditTotals(c.Request.Context(), landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load credit totals")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credits": entitlement.BalanceFromTotals(purchased, used),
		"packs":   h.creditPacks,
	})
}

// CreateCreditCheckout starts a hosted checkout for a signature pack.
// The purchase row is written by the webhook after the provider reports
// the payment as settled.
func (h *Handlers) CreateCreditCheckout(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	var req models.CreateCreditCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	pack, ok := h.creditPack(req.PackID)
	if !ok {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Unknown credit pack"})
		return
	}

	if h.stripe == nil || !h.stripe.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Payments are not configured"})
		return
	}

	account, err := h.fetchAccount(ctx, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load account for credit checkout")
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

	sess, err := h.stripe.CreateCreditPackCheckout(ctx, stripeclient.CreditPackCheckoutParams{
		CustomerID: customerID,
		AccountID:  landlordID,
		Pack:       pack,
		Currency:   billing.DefaultCurrency(),
		SuccessURL: h.webURL("/billing/credits?checkout=success"),
		CancelURL:  h.webURL("/billing/credits?checkout=cancelled"),
	})
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to create credit pack checkout")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Payment provider error"})
		return
	}

	h.recordCheckoutSession("credit_pack")
	c.JSON(http.StatusOK, models.CheckoutSessionResponse{SessionID: sess.ID, URL: sess.URL})
}
