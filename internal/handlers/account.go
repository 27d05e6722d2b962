package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/ctxkeys"
	"github.com/rentzentro/platform/pkg/models"
)

// GetAccount returns the caller's profile. The identity provider owns
// credentials; the profile row is created here on first contact so every
// later handler can assume it exists.
func (h *Handlers) GetAccount(c *gin.Context) {
	accountID := h.accountID(c)
	role := c.GetString(string(ctxkeys.KeyRole))
	if role != models.RoleLandlord && role != models.RoleTenant {
		c.JSON(http.StatusForbidden, common.ErrorResponse{Error: "Unknown account role"})
		return
	}

	var account models.Account
	err := h.db.QueryRowContext(c.Request.Context(), `
		INSERT INTO rentzentro.accounts (id, auth_provider_id, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
		RETURNING id, auth_provider_id, email, display_name, role,
		          stripe_customer_id, stripe_connect_account_id, payouts_enabled,
		          created_at, updated_at
	`, accountID, c.GetString(string(ctxkeys.KeyUserID)), h.accountEmail(c), role).
		Scan(&account.ID, &account.AuthProviderID, &account.Email, &account.DisplayName,
			&account.Role, &account.StripeCustomerID, &account.StripeConnectAccountID,
			&account.PayoutsEnabled, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", accountID).Error("Failed to load account")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	c.JSON(http.StatusOK, account)
}

// UpdateAccount changes the caller's display name and contact email.
func (h *Handlers) UpdateAccount(c *gin.Context) {
	accountID := h.accountID(c)

	var req models.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}
	if req.DisplayName == nil && req.Email == nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "No fields to update"})
		return
	}

	var account models.Account
	err := h.db.QueryRowContext(c.Request.Context(), `
		UPDATE rentzentro.accounts
		SET display_name = COALESCE($1, display_name),
		    email = COALESCE($2, email),
		    updated_at = NOW()
		WHERE id = $3
		RETURNING id, auth_provider_id, email, display_name, role,
		          stripe_customer_id, stripe_connect_account_id, payouts_enabled,
		          created_at, updated_at
	`, req.DisplayName, req.Email, accountID).
		Scan(&account.ID, &account.AuthProviderID, &account.Email, &account.DisplayName,
			&account.Role, &account.StripeCustomerID, &account.StripeConnectAccountID,
			&account.PayoutsEnabled, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Account not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("account_id", accountID).Error("Failed to update account")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	c.JSON(http.StatusOK, account)
}
