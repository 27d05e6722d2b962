package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
)

// fkViolation is the Postgres foreign_key_violation code; a property
// delete hitting it means tenancies, listings or tickets still point at
// the row.
const fkViolation = "23503"

// GetProperties lists the landlord's portfolio, newest first.
func (h *Handlers) GetProperties(c *gin.Context) {
	landlordID := h.accountID(c)

	rows, err := h.db.QueryContext(c.Request.Context(), `
		SELECT id, landlord_id, name, address, city, state, zip, unit, created_at, updated_at
		FROM rentzentro.properties
		WHERE landlord_id = $1
		ORDER BY created_at DESC
	`, landlordID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list properties")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	properties := []models.Property{}
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.LandlordID, &p.Name, &p.Address, &p.City,
			&p.State, &p.Zip, &p.Unit, &p.CreatedAt, &p.UpdatedAt); err != nil {
			h.logger.WithError(err).Warn("Error scanning property")
			continue
		}
		properties = append(properties, p)
	}

	c.JSON(http.StatusOK, gin.H{"properties": properties})
}

// GetProperty returns one property the landlord owns.
func (h *Handlers) GetProperty(c *gin.Context) {
	landlordID := h.accountID(c)
	propertyID := c.Param("id")

	var p models.Property
	err := h.db.QueryRowContext(c.Request.Context(), `
		SELECT id, landlord_id, name, address, city, state, zip, unit, created_at, updated_at
		FROM rentzentro.properties
		WHERE id = $1 AND landlord_id = $2
	`, propertyID, landlordID).Scan(&p.ID, &p.LandlordID, &p.Name, &p.Address, &p.City,
		&p.State, &p.Zip, &p.Unit, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Property not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load property")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// CreateProperty adds a property to the landlord's portfolio.
func (h *Handlers) CreateProperty(c *gin.Context) {
	landlordID := h.accountID(c)

	var req models.CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	var p models.Property
	err := h.db.QueryRowContext(c.Request.Context(), `
		INSERT INTO rentzentro.properties (landlord_id, name, address, city, state, zip, unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, landlord_id, name, address, city, state, zip, unit, created_at, updated_at
	`, landlordID, req.Name, req.Address, req.City, req.State, req.Zip, req.Unit).
		Scan(&p.ID, &p.LandlordID, &p.Name, &p.Address, &p.City,
			&p.State, &p.Zip, &p.Unit, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create property")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"property_id": p.ID,
		"account_id":  landlordID,
	}).Info("Property created")

	c.JSON(http.StatusCreated, p)
}

// UpdateProperty changes property fields; absent fields keep their value.
func (h *Handlers) UpdateProperty(c *gin.Context) {
	landlordID := h.accountID(c)
	propertyID := c.Param("id")

	var req models.UpdatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	var p models.Property
	err := h.db.QueryRowContext(c.Request.Context(), `
		UPDATE rentzentro.properties
		SET name = COALESCE($1, name),
		    address = COALESCE($2, address),
		    city = COALESCE($3, city),
		    state = COALESCE($4, state),
		    zip = COALESCE($5, zip),
		    unit = COALESCE($6, unit),
		    updated_at = NOW()
		WHERE id = $7 AND landlord_id = $8
		RETURNING id, landlord_id, name, address, city, state, zip, unit, created_at, updated_at
	`, req.Name, req.Address, req.City, req.State, req.Zip, req.Unit, propertyID, landlordID).
		Scan(&p.ID, &p.LandlordID, &p.Name, &p.Address, &p.City,
			&p.State, &p.Zip, &p.Unit, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Property not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to update property")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// DeleteProperty removes a property. Properties with tenancies, listings
// or tickets attached refuse deletion rather than cascading.
func (h *Handlers) DeleteProperty(c *gin.Context) {
	landlordID := h.accountID(c)
	propertyID := c.Param("id")

	result, err := h.db.ExecContext(c.Request.Context(), `
		DELETE FROM rentzentro.properties WHERE id = $1 AND landlord_id = $2
	`, propertyID, landlordID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == fkViolation {
			c.JSON(http.StatusConflict, common.ErrorResponse{Error: "Property still has tenancies, listings or tickets attached"})
			return
		}
		h.logger.WithError(err).Error("Failed to delete property")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Property not found"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"property_id": propertyID,
		"account_id":  landlordID,
	}).Info("Property deleted")

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true, Message: "Property deleted"})
}
