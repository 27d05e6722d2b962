package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
)

// CreateTenancy links a tenant account to one of the landlord's
// properties. The tenant must already have signed up; we match on the
// email of their tenant account. Re-linking the same pair updates the
// rent and reactivates the tenancy.
func (h *Handlers) CreateTenancy(c *gin.Context) {
	landlordID := h.accountID(c)

	var req models.CreateTenancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	var owned bool
	err := h.db.QueryRowContext(c.Request.Context(), `
		SELECT EXISTS (SELECT 1 FROM rentzentro.properties WHERE id = $1 AND landlord_id = $2)
	`, req.PropertyID, landlordID).Scan(&owned)
	if err != nil {
		h.logger.WithError(err).Error("Failed to check property ownership")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if !owned {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Property not found"})
		return
	}

	var tenantID string
	err = h.db.QueryRowContext(c.Request.Context(), `
		SELECT id FROM rentzentro.accounts
		WHERE LOWER(email) = LOWER($1) AND role = $2
	`, req.TenantEmail, models.RoleTenant).Scan(&tenantID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "No tenant account with that email"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up tenant account")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	var tenancy models.Tenancy
	err = h.db.QueryRowContext(c.Request.Context(), `
		INSERT INTO rentzentro.tenancies (landlord_id, property_id, tenant_account_id, rent_cents, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (property_id, tenant_account_id) DO UPDATE SET
			rent_cents = EXCLUDED.rent_cents,
			active = TRUE,
			updated_at = NOW()
		RETURNING id, landlord_id, property_id, tenant_account_id, rent_cents, active, created_at, updated_at
	`, landlordID, req.PropertyID, tenantID, req.RentCents).Scan(
		&tenancy.ID, &tenancy.LandlordID, &tenancy.PropertyID, &tenancy.TenantAccountID,
		&tenancy.RentCents, &tenancy.Active, &tenancy.CreatedAt, &tenancy.UpdatedAt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create tenancy")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"tenancy_id":  tenancy.ID,
		"property_id": tenancy.PropertyID,
		"tenant_id":   tenancy.TenantAccountID,
		"rent_cents":  tenancy.RentCents,
	}).Info("Tenancy created")

	c.JSON(http.StatusCreated, tenancy)
}

// GetTenancies lists the landlord's tenancies with property and tenant
// details joined in.
func (h *Handlers) GetTenancies(c *gin.Context) {
	landlordID := h.accountID(c)

	rows, err := h.db.QueryContext(c.Request.Context(), `
		SELECT t.id, t.landlord_id, t.property_id, t.tenant_account_id, t.rent_cents, t.active,
		       t.created_at, t.updated_at, p.name, a.email
		FROM rentzentro.tenancies t
		JOIN rentzentro.properties p ON p.id = t.property_id
		JOIN rentzentro.accounts a ON a.id = t.tenant_account_id
		WHERE t.landlord_id = $1
		ORDER BY t.created_at DESC
	`, landlordID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list tenancies")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	tenancies := []models.Tenancy{}
	for rows.Next() {
		var t models.Tenancy
		if err := rows.Scan(&t.ID, &t.LandlordID, &t.PropertyID, &t.TenantAccountID, &t.RentCents,
			&t.Active, &t.CreatedAt, &t.UpdatedAt, &t.PropertyName, &t.TenantEmail); err != nil {
			h.logger.WithError(err).Warn("Failed to scan tenancy row")
			continue
		}
		tenancies = append(tenancies, t)
	}

	c.JSON(http.StatusOK, gin.H{"tenancies": tenancies})
}

// EndTenancy deactivates a tenancy. Rows are kept since payments and
// documents reference them.
func (h *Handlers) EndTenancy(c *gin.Context) {
	landlordID := h.accountID(c)
	tenancyID := c.Param("id")

	result, err := h.db.ExecContext(c.Request.Context(), `
		UPDATE rentzentro.tenancies
		SET active = FALSE, updated_at = NOW()
		WHERE id = $1 AND landlord_id = $2
	`, tenancyID, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("tenancy_id", tenancyID).Error("Failed to end tenancy")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Tenancy not found"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"tenancy_id": tenancyID,
		"account_id": landlordID,
	}).Info("Tenancy ended")

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true, Message: "Tenancy ended"})
}
