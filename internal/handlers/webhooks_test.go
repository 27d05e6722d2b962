package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"

	"github.com/rentzentro/platform/internal/esign"
)

func webhookRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.POST("/webhooks/stripe", h.StripeWebhook)
	r.POST("/webhooks/esign", h.EsignWebhook)
	return r
}

func stripeSignatureHeader(payload []byte, secret string, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expectedSignature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, expectedSignature)
}

func esignSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func stripeEventBody(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"api_version":%q,"type":%q,"data":{"object":%s}}`,
		id, stripe.APIVersion, eventType, object))
}

func postStripeWebhook(t *testing.T, h *Handlers, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	webhookRouter(h).ServeHTTP(w, req)
	return w
}

// expectWebhookMarked matches the dedup insert plus the retention prune
// that rides on every recorded delivery.
func expectWebhookMarked(mock sqlmock.Sqlmock, provider, eventID, eventType string) {
	mock.ExpectExec("INSERT INTO rentzentro.webhook_events").
		WithArgs(provider, eventID, eventType).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM rentzentro.webhook_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestStripeWebhookMissingSecret(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := postStripeWebhook(t, h, []byte(`{"id":"evt_1"}`), "t=123,v1=deadbeef")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without webhook secret, got %d", w.Code)
	}
}

func TestStripeWebhookInvalidSignature(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.stripe = testStripe()

	body := stripeEventBody("evt_bad_sig", "checkout.session.completed", `{"id":"cs_1"}`)
	w := postStripeWebhook(t, h, body, "t=123,v1=deadbeef")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid signature") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestStripeWebhookDuplicateDelivery(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.stripe = testStripe()

	body := stripeEventBody("evt_dup", "customer.subscription.updated", `{"id":"sub_1","object":"subscription"}`)
	signature := stripeSignatureHeader(body, "whsec_unit", time.Now().Unix())

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM rentzentro.webhook_events`).
		WithArgs("stripe", "evt_dup").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	w := postStripeWebhook(t, h, body, signature)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d (body=%s)", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStripeWebhookSubscriptionSync(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.stripe = testStripe()

	object := `{
		"id": "sub_sync_1",
		"object": "subscription",
		"status": "active",
		"cancel_at_period_end": true,
		"customer": "cus_123",
		"metadata": {"account_id": "acct-landlord-1"},
		"items": {"data": [{"id": "si_1", "current_period_end": 1790000000}]}
	}`
	body := stripeEventBody("evt_sub_sync", "customer.subscription.updated", object)
	signature := stripeSignatureHeader(body, "whsec_unit", time.Now().Unix())

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM rentzentro.webhook_events`).
		WithArgs("stripe", "evt_sub_sync").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE rentzentro.subscriptions").
		WithArgs("active_cancel_at_period_end", sqlmock.AnyArg(), "cus_123", "sub_sync_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectWebhookMarked(mock, "stripe", "evt_sub_sync", "customer.subscription.updated")

	w := postStripeWebhook(t, h, body, signature)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStripeWebhookSubscriptionSyncCreatesMissingRow(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.stripe = testStripe()

	object := `{
		"id": "sub_new_1",
		"object": "subscription",
		"status": "trialing",
		"customer": "cus_456",
		"metadata": {"account_id": "acct-landlord-1"},
		"items": {"data": [{"id": "si_1", "current_period_end": 1790000000}]}
	}`
	body := stripeEventBody("evt_sub_new", "customer.subscription.created", object)
	signature := stripeSignatureHeader(body, "whsec_unit", time.Now().Unix())

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM rentzentro.webhook_events`).
		WithArgs("stripe", "evt_sub_new").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE rentzentro.subscriptions").
		WithArgs("trialing", sqlmock.AnyArg(), "cus_456", "sub_new_1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO rentzentro.subscriptions").
		WithArgs("acct-landlord-1", "trialing", "sub_new_1", "cus_456", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectWebhookMarked(mock, "stripe", "evt_sub_new", "customer.subscription.created")

	w := postStripeWebhook(t, h, body, signature)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStripeWebhookCreditPackPurchase(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.stripe = testStripe()

	object := `{
		"id": "cs_pack_1",
		"object": "checkout.session",
		"payment_status": "paid",
		"amount_total": 4900,
		"currency": "usd",
		"metadata": {"purpose": "credit_pack", "account_id": "acct-landlord-1", "signatures": "20"}
	}`
	body := stripeEventBody("evt_pack_1", "checkout.session.completed", object)
	signature := stripeSignatureHeader(body, "whsec_unit", time.Now().Unix())

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM rentzentro.webhook_events`).
		WithArgs("stripe", "evt_pack_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO rentzentro.purchases").
		WithArgs("acct-landlord-1", 20, int64(4900), "usd", "cs_pack_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectWebhookMarked(mock, "stripe", "evt_pack_1", "checkout.session.completed")

	w := postStripeWebhook(t, h, body, signature)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStripeWebhookProcessingFailureLeavesEventUnmarked(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.stripe = testStripe()

	object := `{
		"id": "sub_err_1",
		"object": "subscription",
		"status": "active",
		"customer": "cus_789"
	}`
	body := stripeEventBody("evt_sub_err", "customer.subscription.updated", object)
	signature := stripeSignatureHeader(body, "whsec_unit", time.Now().Unix())

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM rentzentro.webhook_events`).
		WithArgs("stripe", "evt_sub_err").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE rentzentro.subscriptions").
		WithArgs("active", sqlmock.AnyArg(), "cus_789", "sub_err_1").
		WillReturnError(fmt.Errorf("connection reset"))

	w := postStripeWebhook(t, h, body, signature)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the provider retries, got %d", w.Code)
	}
	// No dedup insert: the retry must be reprocessed.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func esignEventBody(eventType, eventHash, requestID string) []byte {
	if requestID == "" {
		return []byte(fmt.Sprintf(`{"event":{"event_type":%q,"event_hash":%q}}`, eventType, eventHash))
	}
	return []byte(fmt.Sprintf(`{"event":{"event_type":%q,"event_hash":%q},"signature_request":{"signature_request_id":%q,"is_complete":true}}`,
		eventType, eventHash, requestID))
}

func postEsignWebhook(t *testing.T, h *Handlers, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/esign", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Esign-Signature", signature)
	}
	w := httptest.NewRecorder()
	webhookRouter(h).ServeHTTP(w, req)
	return w
}

func testEsignWebhookOnly(secret string) *esign.Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return esign.NewClient(esign.Config{WebhookSecret: secret, Logger: logger})
}

func TestEsignWebhookCompletesEnvelope(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.esign = testEsignWebhookOnly("esign-secret")

	body := esignEventBody("signature_request_all_signed", "hash-complete-1", "sr_unit_1")
	signature := esignSignature(body, "esign-secret")

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM rentzentro.webhook_events`).
		WithArgs("esign", "hash-complete-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE rentzentro.usage_entries").
		WithArgs("completed", "sr_unit_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectWebhookMarked(mock, "esign", "hash-complete-1", "signature_request_all_signed")

	w := postEsignWebhook(t, h, body, signature)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEsignWebhookBadSignature(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.esign = testEsignWebhookOnly("esign-secret")

	body := esignEventBody("signature_request_all_signed", "hash-bad-sig", "sr_unit_1")
	w := postEsignWebhook(t, h, body, "0000000000000000")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", w.Code)
	}
}

func TestEsignWebhookNoSecretSkipsVerification(t *testing.T) {
	h, mock := newTestHandlers(t)

	body := esignEventBody("signature_request_declined", "hash-dev-1", "sr_unit_2")

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM rentzentro.webhook_events`).
		WithArgs("esign", "hash-dev-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE rentzentro.usage_entries").
		WithArgs("declined", "sr_unit_2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectWebhookMarked(mock, "esign", "hash-dev-1", "signature_request_declined")

	w := postEsignWebhook(t, h, body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 in permissive mode, got %d (body=%s)", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEsignWebhookUnknownEnvelopeStillAcked(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.esign = testEsignWebhookOnly("esign-secret")

	body := esignEventBody("signature_request_signed", "hash-unknown-1", "sr_not_ours")
	signature := esignSignature(body, "esign-secret")

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM rentzentro.webhook_events`).
		WithArgs("esign", "hash-unknown-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE rentzentro.usage_entries").
		WithArgs("completed", "sr_not_ours").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectWebhookMarked(mock, "esign", "hash-unknown-1", "signature_request_signed")

	w := postEsignWebhook(t, h, body, signature)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown envelope, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEsignWebhookCallbackTestPing(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.esign = testEsignWebhookOnly("esign-secret")

	body := esignEventBody("callback_test", "hash-ping-1", "")
	signature := esignSignature(body, "esign-secret")

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM rentzentro.webhook_events`).
		WithArgs("esign", "hash-ping-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	expectWebhookMarked(mock, "esign", "hash-ping-1", "callback_test")

	w := postEsignWebhook(t, h, body, signature)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for callback test, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
