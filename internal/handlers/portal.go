package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentzentro/platform/internal/notify"
	"github.com/rentzentro/platform/internal/stripeclient"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/api/rentzentro"
	"github.com/rentzentro/platform/pkg/billing"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
	"github.com/rentzentro/platform/pkg/pagination"
	"github.com/rentzentro/platform/pkg/validation"
)

// fetchActiveTenancy loads the tenant's current tenancy with the property
// name joined in. A tenant with several active tenancies gets the newest;
// nil means the tenant is not linked to any property.
func (h *Handlers) fetchActiveTenancy(ctx context.Context, tenantID string) (*models.Tenancy, error) {
	var t models.Tenancy
	err := h.db.QueryRowContext(ctx, `
		SELECT t.id, t.landlord_id, t.property_id, t.tenant_account_id, t.rent_cents, t.active,
		       t.created_at, t.updated_at, p.name
		FROM rentzentro.tenancies t
		JOIN rentzentro.properties p ON p.id = t.property_id
		WHERE t.tenant_account_id = $1 AND t.active
		ORDER BY t.created_at DESC
		LIMIT 1
	`, tenantID).Scan(&t.ID, &t.LandlordID, &t.PropertyID, &t.TenantAccountID, &t.RentCents,
		&t.Active, &t.CreatedAt, &t.UpdatedAt, &t.PropertyName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch active tenancy: %w", err)
	}
	return &t, nil
}

// GetPortalHome returns the tenant portal landing view: the active
// tenancy, its property, the rent amount and documents shared with this
// tenant. A tenant without a tenancy still gets a page, just an empty one.
func (h *Handlers) GetPortalHome(c *gin.Context) {
	tenantID := h.accountID(c)
	ctx := c.Request.Context()

	tenancy, err := h.fetchActiveTenancy(ctx, tenantID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load tenancy for portal home")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	home := rentzentro.PortalHome{Documents: []models.Document{}}
	if tenancy != nil {
		home.Tenancy = tenancy
		home.RentCents = tenancy.RentCents

		var property models.Property
		err = h.db.QueryRowContext(ctx, `
			SELECT id, landlord_id, name, address, city, state, zip, unit, created_at, updated_at
			FROM rentzentro.properties
			WHERE id = $1
		`, tenancy.PropertyID).Scan(&property.ID, &property.LandlordID, &property.Name,
			&property.Address, &property.City, &property.State, &property.Zip, &property.Unit,
			&property.CreatedAt, &property.UpdatedAt)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load property for portal home")
			c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
			return
		}
		home.Property = &property
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, landlord_id, tenant_id, name, content_type, size_bytes, created_at
		FROM rentzentro.documents
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load documents for portal home")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.LandlordID, &d.TenantID, &d.Name,
			&d.ContentType, &d.SizeBytes, &d.CreatedAt); err != nil {
			h.logger.WithError(err).Warn("Failed to scan document row")
			continue
		}
		home.Documents = append(home.Documents, d)
	}

	c.JSON(http.StatusOK, home)
}

// CreateRentCheckout starts a checkout session for the tenancy's rent,
// charged on the landlord's connected account. The pending payment row is
// only written once the session exists, keyed by the session id the
// webhook will report back.
func (h *Handlers) CreateRentCheckout(c *gin.Context) {
	tenantID := h.accountID(c)
	ctx := c.Request.Context()

	if h.stripe == nil || !h.stripe.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Payments are not configured"})
		return
	}

	tenancy, err := h.fetchActiveTenancy(ctx, tenantID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load tenancy for rent checkout")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if tenancy == nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "No active tenancy to pay rent for"})
		return
	}
	if tenancy.RentCents <= 0 {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "No rent amount is set for your tenancy"})
		return
	}

	var connectAccountID sql.NullString
	var payoutsEnabled bool
	err = h.db.QueryRowContext(ctx, `
		SELECT stripe_connect_account_id, payouts_enabled
		FROM rentzentro.accounts
		WHERE id = $1
	`, tenancy.LandlordID).Scan(&connectAccountID, &payoutsEnabled)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load landlord payout state")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if !connectAccountID.Valid || connectAccountID.String == "" || !payoutsEnabled {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Your landlord has not finished payout setup"})
		return
	}

	rentPaymentID := uuid.New().String()
	currency := billing.DefaultCurrency()

	session, err := h.stripe.CreateRentCheckout(ctx, stripeclient.RentCheckoutParams{
		RentPaymentID:      rentPaymentID,
		TenantAccountID:    tenantID,
		ConnectedAccountID: connectAccountID.String,
		AmountCents:        tenancy.RentCents,
		Currency:           currency,
		Description:        fmt.Sprintf("Rent for %s (%s)", tenancy.PropertyName, billing.FormatCents(tenancy.RentCents, currency)),
		CustomerEmail:      h.accountEmail(c),
		SuccessURL:         h.webURL("/portal/rent?checkout=success"),
		CancelURL:          h.webURL("/portal/rent?checkout=cancelled"),
	})
	if err != nil {
		h.logger.WithError(err).WithField("tenancy_id", tenancy.ID).Error("Failed to create rent checkout session")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Payment provider error"})
		return
	}

	// If this write fails the session URL is never handed out, so the
	// orphaned session just expires unpaid.
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO rentzentro.rent_payments (id, tenancy_id, tenant_id, landlord_id, amount_cents, currency, status, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
	`, rentPaymentID, tenancy.ID, tenantID, tenancy.LandlordID, tenancy.RentCents, currency, session.ID)
	if err != nil {
		h.logger.WithError(err).WithFields(logging.Fields{
			"rent_payment_id": rentPaymentID,
			"session_id":      session.ID,
		}).Error("Failed to record pending rent payment")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	h.recordCheckoutSession("rent")
	h.logger.WithFields(logging.Fields{
		"rent_payment_id": rentPaymentID,
		"tenancy_id":      tenancy.ID,
		"amount_cents":    tenancy.RentCents,
	}).Info("Rent checkout session created")

	c.JSON(http.StatusOK, models.CheckoutSessionResponse{SessionID: session.ID, URL: session.URL})
}

// GetRentPayments returns the tenant's rent payment history, newest first.
func (h *Handlers) GetRentPayments(c *gin.Context) {
	tenantID := h.accountID(c)
	ctx := c.Request.Context()

	params, err := pageParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid pagination: " + err.Error()})
		return
	}

	var total int32
	err = h.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rentzentro.rent_payments WHERE tenant_id = $1
	`, tenantID).Scan(&total)
	if err != nil {
		h.logger.WithError(err).Error("Failed to count rent payments")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	builder := &pagination.KeysetBuilder{
		TimestampColumn: "created_at",
		IDColumn:        "id",
	}

	query := `
		SELECT id, tenancy_id, tenant_id, landlord_id, amount_cents, currency, status, paid_at, created_at
		FROM rentzentro.rent_payments
		WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if condition, cursorArgs := builder.Condition(params, 2); condition != "" {
		query += " AND " + condition
		args = append(args, cursorArgs...)
	}
	query += " " + builder.OrderBy(params)
	query += fmt.Sprintf(" LIMIT %d", params.Limit+1)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list rent payments")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	payments := []models.RentPayment{}
	for rows.Next() {
		var p models.RentPayment
		if err := rows.Scan(&p.ID, &p.TenancyID, &p.TenantID, &p.LandlordID, &p.AmountCents,
			&p.Currency, &p.Status, &p.PaidAt, &p.CreatedAt); err != nil {
			h.logger.WithError(err).Warn("Error scanning rent payment")
			continue
		}
		payments = append(payments, p)
	}

	fetched := len(payments)
	if fetched > params.Limit {
		payments = payments[:params.Limit]
	}
	if params.Direction == pagination.Backward {
		for i, j := 0, len(payments)-1; i < j; i, j = i+1, j-1 {
			payments[i], payments[j] = payments[j], payments[i]
		}
	}

	var startCursor, endCursor string
	if len(payments) > 0 {
		startCursor = pagination.EncodeCursor(payments[0].CreatedAt, payments[0].ID)
		endCursor = pagination.EncodeCursor(payments[len(payments)-1].CreatedAt, payments[len(payments)-1].ID)
	}

	c.JSON(http.StatusOK, rentzentro.PaymentsPage{
		Payments: payments,
		Page:     pagination.BuildResponse(fetched, params.Limit, params.Direction, total, startCursor, endCursor),
	})
}

// GetPortalDocuments lists documents the landlord shared with this tenant.
func (h *Handlers) GetPortalDocuments(c *gin.Context) {
	tenantID := h.accountID(c)

	rows, err := h.db.QueryContext(c.Request.Context(), `
		SELECT id, landlord_id, tenant_id, name, content_type, size_bytes, created_at
		FROM rentzentro.documents
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list portal documents")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	documents := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.LandlordID, &d.TenantID, &d.Name,
			&d.ContentType, &d.SizeBytes, &d.CreatedAt); err != nil {
			h.logger.WithError(err).Warn("Failed to scan document row")
			continue
		}
		documents = append(documents, d)
	}

	c.JSON(http.StatusOK, gin.H{"documents": documents})
}

// CreatePortalMaintenanceRequest files a repair ticket for a property the
// tenant actively rents. The landlord gets a best-effort email alert.
func (h *Handlers) CreatePortalMaintenanceRequest(c *gin.Context) {
	tenantID := h.accountID(c)
	ctx := c.Request.Context()

	var req models.CreateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	// Properties the tenant does not rent look like they do not exist.
	var landlordID string
	err := h.db.QueryRowContext(ctx, `
		SELECT landlord_id FROM rentzentro.tenancies
		WHERE property_id = $1 AND tenant_account_id = $2 AND active
	`, req.PropertyID, tenantID).Scan(&landlordID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Property not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to check tenancy for maintenance request")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	priority, err := validation.NormalizeMaintenancePriority(req.Priority)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid priority: " + err.Error()})
		return
	}

	request := models.MaintenanceRequest{
		TenantID:    tenantID,
		LandlordID:  landlordID,
		PropertyID:  req.PropertyID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.MaintenanceStatusNew,
		Priority:    priority,
	}
	err = h.db.QueryRowContext(ctx, `
		INSERT INTO rentzentro.maintenance_requests (tenant_id, landlord_id, property_id, title, description, status, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, request.TenantID, request.LandlordID, request.PropertyID, request.Title,
		request.Description, request.Status, request.Priority).Scan(
		&request.ID, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create maintenance request")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	if h.notifier != nil {
		var landlordEmail, landlordName, propertyName string
		err := h.db.QueryRowContext(ctx, `
			SELECT COALESCE(NULLIF(a.display_name, ''), a.email), a.email, p.name
			FROM rentzentro.accounts a, rentzentro.properties p
			WHERE a.id = $1 AND p.id = $2
		`, landlordID, req.PropertyID).Scan(&landlordName, &landlordEmail, &propertyName)
		if err != nil {
			h.logger.WithError(err).Warn("Failed to load landlord for maintenance alert")
		} else {
			update := notify.MaintenanceUpdate{
				RecipientEmail: landlordEmail,
				RecipientName:  landlordName,
				RequestTitle:   request.Title,
				PropertyLabel:  propertyName,
				Status:         request.Status,
			}
			if err := h.notifier.SendMaintenanceUpdate(ctx, update); err != nil {
				h.logger.WithError(err).Warn("Failed to send maintenance alert email")
			}
		}
	}

	h.logger.WithFields(logging.Fields{
		"request_id":  request.ID,
		"property_id": request.PropertyID,
		"priority":    request.Priority,
	}).Info("Maintenance request filed")

	c.JSON(http.StatusCreated, request)
}

// GetPortalMaintenanceRequests lists the tenant's own tickets.
func (h *Handlers) GetPortalMaintenanceRequests(c *gin.Context) {
	tenantID := h.accountID(c)

	rows, err := h.db.QueryContext(c.Request.Context(), `
		SELECT m.id, m.tenant_id, m.landlord_id, m.property_id, m.title, m.description,
		       m.status, m.priority, m.resolution_note, m.created_at, m.updated_at, p.name
		FROM rentzentro.maintenance_requests m
		JOIN rentzentro.properties p ON p.id = m.property_id
		WHERE m.tenant_id = $1
		ORDER BY m.created_at DESC
	`, tenantID)
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
			&m.CreatedAt, &m.UpdatedAt, &m.PropertyName); err != nil {
			h.logger.WithError(err).Warn("Failed to scan maintenance request row")
			continue
		}
		requests = append(requests, m)
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}
