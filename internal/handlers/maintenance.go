package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/internal/notify"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
	"github.com/rentzentro/platform/pkg/validation"
)

// GetMaintenanceRequests lists every ticket across the landlord's
// portfolio, urgent and new work first.
func (h *Handlers) GetMaintenanceRequests(c *gin.Context) {
	landlordID := h.accountID(c)

	rows, err := h.db.QueryContext(c.Request.Context(), `
		SELECT m.id, m.tenant_id, m.landlord_id, m.property_id, m.title, m.description,
		       m.status, m.priority, m.resolution_note, m.created_at, m.updated_at,
		       p.name, a.email
		FROM rentzentro.maintenance_requests m
		JOIN rentzentro.properties p ON p.id = m.property_id
		JOIN rentzentro.accounts a ON a.id = m.tenant_id
		WHERE m.landlord_id = $1
		ORDER BY CASE m.status WHEN 'new' THEN 0 WHEN 'in_progress' THEN 1 ELSE 2 END,
		         CASE m.priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END,
		         m.created_at DESC
	`, landlordID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list maintenance requests")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	requests := []models.MaintenanceRequest{}
	for rows.Next() {
		var m models.MaintenanceRequest
		if err := rows.Scan(&m.ID, &m.TenantID, &m.LandlordID, &m.PropertyID, &m.Title,
			&m.Description, &m.Status, &m.Priority, &m.ResolutionNote,
			&m.CreatedAt, &m.UpdatedAt, &m.PropertyName, &m.TenantEmail); err != nil {
			h.logger.WithError(err).Warn("Error scanning maintenance request")
			continue
		}
		requests = append(requests, m)
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// UpdateMaintenanceRequest moves a ticket through its lifecycle. Status
// only moves forward (new, in_progress, completed); re-sending the
// current status is a no-op so retries are safe. The tenant is emailed
// about the change, best effort.
func (h *Handlers) UpdateMaintenanceRequest(c *gin.Context) {
	landlordID := h.accountID(c)
	requestID := c.Param("id")
	ctx := c.Request.Context()

	var req models.UpdateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}
	if req.Status == nil && req.Priority == nil && req.ResolutionNote == nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "No fields to update"})
		return
	}

	var current models.MaintenanceRequest
	var tenantEmail, tenantName, propertyName string
	err := h.db.QueryRowContext(ctx, `
		SELECT m.id, m.status, m.priority, m.title, p.name, a.email, COALESCE(NULLIF(a.display_name, ''), a.email)
		FROM rentzentro.maintenance_requests m
		JOIN rentzentro.properties p ON p.id = m.property_id
		JOIN rentzentro.accounts a ON a.id = m.tenant_id
		WHERE m.id = $1 AND m.landlord_id = $2
	`, requestID, landlordID).Scan(&current.ID, &current.Status, &current.Priority,
		&current.Title, &propertyName, &tenantEmail, &tenantName)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Maintenance request not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load maintenance request")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	newStatus := current.Status
	if req.Status != nil {
		normalized, err := validation.NormalizeMaintenanceStatus(*req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid status: " + *req.Status})
			return
		}
		if !validation.ValidMaintenanceTransition(current.Status, normalized) {
			c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Completed tickets cannot move backward"})
			return
		}
		newStatus = normalized
	}

	newPriority := current.Priority
	if req.Priority != nil {
		normalized, err := validation.NormalizeMaintenancePriority(*req.Priority)
		if err != nil {
			c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid priority: " + *req.Priority})
			return
		}
		newPriority = normalized
	}

	var updated models.MaintenanceRequest
	err = h.db.QueryRowContext(ctx, `
		UPDATE rentzentro.maintenance_requests
		SET status = $1,
		    priority = $2,
		    resolution_note = COALESCE($3, resolution_note),
		    updated_at = NOW()
		WHERE id = $4 AND landlord_id = $5
		RETURNING id, tenant_id, landlord_id, property_id, title, description,
		          status, priority, resolution_note, created_at, updated_at
	`, newStatus, newPriority, req.ResolutionNote, requestID, landlordID).
		Scan(&updated.ID, &updated.TenantID, &updated.LandlordID, &updated.PropertyID,
			&updated.Title, &updated.Description, &updated.Status, &updated.Priority,
			&updated.ResolutionNote, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to update maintenance request")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	if h.notifier != nil && newStatus != current.Status {
		note := ""
		if updated.ResolutionNote != nil {
			note = *updated.ResolutionNote
		}
		update := notify.MaintenanceUpdate{
			RecipientEmail: tenantEmail,
			RecipientName:  tenantName,
			RequestTitle:   updated.Title,
			PropertyLabel:  propertyName,
			Status:         updated.Status,
			Note:           note,
		}
		if err := h.notifier.SendMaintenanceUpdate(ctx, update); err != nil {
			h.logger.WithError(err).WithField("request_id", requestID).Warn("Failed to send maintenance update email")
		}
	}

	h.logger.WithFields(logging.Fields{
		"request_id": requestID,
		"status":     updated.Status,
		"priority":   updated.Priority,
	}).Info("Maintenance request updated")

	c.JSON(http.StatusOK, updated)
}
