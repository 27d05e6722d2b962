package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func portalRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.GET("/portal/home", tenantIdentity(), h.GetPortalHome)
	r.POST("/portal/rent/checkout", tenantIdentity(), h.CreateRentCheckout)
	r.GET("/portal/rent/payments", tenantIdentity(), h.GetRentPayments)
	r.POST("/portal/maintenance", tenantIdentity(), h.CreatePortalMaintenanceRequest)
	return r
}

var tenancyCols = []string{"id", "landlord_id", "property_id", "tenant_account_id",
	"rent_cents", "active", "created_at", "updated_at", "name"}

func activeTenancyRow(rentCents int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(tenancyCols).
		AddRow("ten-1", "acct-landlord-1", "prop-1", "acct-tenant-1",
			rentCents, true, now, now, "12 Oak Street")
}

func TestGetPortalHomeWithoutTenancy(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT t.id, t.landlord_id, t.property_id").
		WithArgs("acct-tenant-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id, landlord_id, tenant_id, name").
		WithArgs("acct-tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "landlord_id", "tenant_id", "name",
			"content_type", "size_bytes", "created_at"}))

	w := performJSON(t, portalRouter(h), "GET", "/portal/home", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 even without a tenancy, got %d (body=%s)", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"tenancy":null`) {
		t.Fatalf("expected empty tenancy, got %s", body)
	}
	if !strings.Contains(body, `"documents":[]`) {
		t.Fatalf("expected empty document list, got %s", body)
	}
}

func TestCreateRentCheckoutWithoutTenancy(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.stripe = testStripe()

	mock.ExpectQuery("SELECT t.id, t.landlord_id, t.property_id").
		WithArgs("acct-tenant-1").
		WillReturnError(sql.ErrNoRows)

	w := performJSON(t, portalRouter(h), "POST", "/portal/rent/checkout", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body=%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "No active tenancy to pay rent for") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestCreateRentCheckoutNoRentAmount(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.stripe = testStripe()

	mock.ExpectQuery("SELECT t.id, t.landlord_id, t.property_id").
		WithArgs("acct-tenant-1").
		WillReturnRows(activeTenancyRow(0))

	w := performJSON(t, portalRouter(h), "POST", "/portal/rent/checkout", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No rent amount is set") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestCreateRentCheckoutPayoutsNotReady(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.stripe = testStripe()

	mock.ExpectQuery("SELECT t.id, t.landlord_id, t.property_id").
		WithArgs("acct-tenant-1").
		WillReturnRows(activeTenancyRow(185000))
	mock.ExpectQuery("SELECT stripe_connect_account_id, payouts_enabled").
		WithArgs("acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"stripe_connect_account_id", "payouts_enabled"}).
			AddRow("acct_stripe_1", false))

	w := performJSON(t, portalRouter(h), "POST", "/portal/rent/checkout", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body=%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "has not finished payout setup") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetRentPayments(t *testing.T) {
	h, mock := newTestHandlers(t)

	now := time.Now()
	paidAt := now.Add(-time.Hour)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rentzentro.rent_payments`).
		WithArgs("acct-tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, tenancy_id, tenant_id, landlord_id").
		WithArgs("acct-tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenancy_id", "tenant_id", "landlord_id",
			"amount_cents", "currency", "status", "paid_at", "created_at"}).
			AddRow("pay-1", "ten-1", "acct-tenant-1", "acct-landlord-1",
				int64(185000), "usd", "paid", paidAt, now))

	w := performJSON(t, portalRouter(h), "GET", "/portal/rent/payments", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"status":"paid"`) {
		t.Fatalf("expected paid payment, got %s", body)
	}
	if !strings.Contains(body, `"total_count":1`) {
		t.Fatalf("expected total_count 1, got %s", body)
	}
}

func TestCreatePortalMaintenanceRequestUnknownProperty(t *testing.T) {
	h, mock := newTestHandlers(t)

	propertyID := uuid.New().String()
	mock.ExpectQuery("SELECT landlord_id FROM rentzentro.tenancies").
		WithArgs(propertyID, "acct-tenant-1").
		WillReturnError(sql.ErrNoRows)

	body := fmt.Sprintf(`{"property_id":%q,"title":"Broken lock"}`, propertyID)
	w := performJSON(t, portalRouter(h), "POST", "/portal/maintenance", body)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a property the tenant does not rent, got %d", w.Code)
	}
}

func TestCreatePortalMaintenanceRequest(t *testing.T) {
	h, mock := newTestHandlers(t)

	propertyID := uuid.New().String()
	now := time.Now()
	mock.ExpectQuery("SELECT landlord_id FROM rentzentro.tenancies").
		WithArgs(propertyID, "acct-tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"landlord_id"}).AddRow("acct-landlord-1"))
	mock.ExpectQuery("INSERT INTO rentzentro.maintenance_requests").
		WithArgs("acct-tenant-1", "acct-landlord-1", propertyID, "Broken lock",
			"Front door will not latch", "new", "urgent").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("mr-1", now, now))

	body := fmt.Sprintf(`{"property_id":%q,"title":"Broken lock","description":"Front door will not latch","priority":"emergency"}`, propertyID)
	w := performJSON(t, portalRouter(h), "POST", "/portal/maintenance", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body=%s)", w.Code, w.Body.String())
	}
	// "emergency" folds onto the canonical urgent priority.
	if !strings.Contains(w.Body.String(), `"priority":"urgent"`) {
		t.Fatalf("expected normalized priority, got %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
