package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/pkg/testutil"
)

func subscriptionRow(landlordID, status string) *sqlmock.Rows {
	sub := testutil.ActiveSubscription(landlordID)
	sub.Status = &status
	return sqlmock.NewRows(testutil.SubscriptionColumns()).
		AddRow(testutil.SubscriptionRowData(sub)...)
}

func trialSubscriptionRow(landlordID, trialEnd string) *sqlmock.Rows {
	sub := testutil.TrialSubscription(landlordID, trialEnd)
	return sqlmock.NewRows(testutil.SubscriptionColumns()).
		AddRow(testutil.SubscriptionRowData(sub)...)
}

func gatedRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.GET("/gated", landlordIdentity(), h.RequireActiveSubscription(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"reached": true})
	})
	return r
}

func TestRequireActiveSubscriptionAllowed(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT id, landlord_id, subscription_status").
		WithArgs("acct-landlord-1").
		WillReturnRows(subscriptionRow("acct-landlord-1", "active"))

	w := performJSON(t, gatedRouter(h), "GET", "/gated", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRequireActiveSubscriptionNoRow(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT id, landlord_id, subscription_status").
		WithArgs("acct-landlord-1").
		WillReturnError(sql.ErrNoRows)

	w := performJSON(t, gatedRouter(h), "GET", "/gated", "")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"reason":"inactive"`) {
		t.Fatalf("expected inactive reason, got %s", w.Body.String())
	}
}

func TestRequireActiveSubscriptionPastDue(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT id, landlord_id, subscription_status").
		WithArgs("acct-landlord-1").
		WillReturnRows(subscriptionRow("acct-landlord-1", "past_due"))

	w := performJSON(t, gatedRouter(h), "GET", "/gated", "")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"reason":"past_due"`) {
		t.Fatalf("expected past_due reason, got %s", body)
	}
	if !strings.Contains(body, "payment is past due") {
		t.Fatalf("expected recovery message, got %s", body)
	}
}

func TestRequireActiveSubscriptionLiveTrial(t *testing.T) {
	h, mock := newTestHandlers(t)

	trialEnd := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	mock.ExpectQuery("SELECT id, landlord_id, subscription_status").
		WithArgs("acct-landlord-1").
		WillReturnRows(trialSubscriptionRow("acct-landlord-1", trialEnd))

	w := performJSON(t, gatedRouter(h), "GET", "/gated", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected live trial to pass the gate, got %d (body=%s)", w.Code, w.Body.String())
	}
}

func TestRequireActiveSubscriptionExpiredTrial(t *testing.T) {
	h, mock := newTestHandlers(t)

	trialEnd := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	mock.ExpectQuery("SELECT id, landlord_id, subscription_status").
		WithArgs("acct-landlord-1").
		WillReturnRows(trialSubscriptionRow("acct-landlord-1", trialEnd))

	w := performJSON(t, gatedRouter(h), "GET", "/gated", "")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 after trial end, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"reason":"inactive"`) {
		t.Fatalf("expected inactive reason, got %s", w.Body.String())
	}
}

func TestRequireActiveSubscriptionReadFailure(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT id, landlord_id, subscription_status").
		WithArgs("acct-landlord-1").
		WillReturnError(errors.New("connection reset"))

	w := performJSON(t, gatedRouter(h), "GET", "/gated", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on billing read failure, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Billing state unavailable") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}
