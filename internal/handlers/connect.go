package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/api/rentzentro"
)

// SetupConnectAccount creates the landlord's payout account with the
// payment provider, or reports the existing one. Rent collection stays
// disabled until the provider enables payouts, so the handler re-syncs
// payouts_enabled on every call.
func (h *Handlers) SetupConnectAccount(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	if h.stripe == nil || !h.stripe.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Payments are not configured"})
		return
	}

	account, err := h.fetchAccount(ctx, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load account for connect setup")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Account not found"})
		return
	}

	if account.StripeConnectAccountID != nil && *account.StripeConnectAccountID != "" {
		connectID := *account.StripeConnectAccountID
		payoutsEnabled := account.PayoutsEnabled

		remote, err := h.stripe.GetConnectAccount(ctx, connectID)
		if err != nil {
			h.logger.WithError(err).WithField("account_id", landlordID).Warn("Failed to refresh connect account, serving stored state")
		} else if remote.PayoutsEnabled != payoutsEnabled {
			payoutsEnabled = remote.PayoutsEnabled
			if _, err := h.db.ExecContext(ctx, `
				UPDATE rentzentro.accounts SET payouts_enabled = $1, updated_at = NOW() WHERE id = $2
			`, payoutsEnabled, landlordID); err != nil {
				h.logger.WithError(err).WithField("account_id", landlordID).Warn("Failed to persist payouts flag")
			}
		}

		c.JSON(http.StatusOK, rentzentro.ConnectAccountResponse{
			ConnectAccountID: connectID,
			PayoutsEnabled:   payoutsEnabled,
		})
		return
	}

	created, err := h.stripe.CreateConnectAccount(ctx, landlordID, account.Email)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to create connect account")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Payment provider error"})
		return
	}

	if _, err := h.db.ExecContext(ctx, `
		UPDATE rentzentro.accounts SET stripe_connect_account_id = $1, updated_at = NOW() WHERE id = $2
	`, created.ID, landlordID); err != nil {
		// Losing the id would orphan the provider account, so this write
		// is not best effort.
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to persist connect account id")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	c.JSON(http.StatusOK, rentzentro.ConnectAccountResponse{
		ConnectAccountID: created.ID,
		PayoutsEnabled:   created.PayoutsEnabled,
	})
}

// CreateOnboardingLink returns a provider-hosted onboarding URL where the
// landlord completes payout verification.
func (h *Handlers) CreateOnboardingLink(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	if h.stripe == nil || !h.stripe.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Payments are not configured"})
		return
	}

	account, err := h.fetchAccount(ctx, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load account for onboarding link")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if account == nil || account.StripeConnectAccountID == nil || *account.StripeConnectAccountID == "" {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "No payout account yet, create one first"})
		return
	}

	link, err := h.stripe.CreateOnboardingLink(ctx, *account.StripeConnectAccountID,
		h.webURL("/billing/payouts?onboarding=retry"),
		h.webURL("/billing/payouts?onboarding=done"))
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to create onboarding link")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Payment provider error"})
		return
	}

	c.JSON(http.StatusOK, rentzentro.OnboardingLinkResponse{URL: link.URL})
}
