package handlers

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rentzentro/platform/internal/esign"
	"github.com/rentzentro/platform/internal/storage"
	"github.com/rentzentro/platform/pkg/testutil"
)

// newEsignProvider fakes the e-sign API: every create call answers with
// the given status code and, on success, a fixed signature_request_id.
func newEsignProvider(t *testing.T, statusCode int, requestID string) *esign.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/signature_requests" {
			t.Errorf("unexpected provider path: %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Errorf("missing bearer token on provider call")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if statusCode < 300 {
			fmt.Fprintf(w, `{"signature_request_id":%q,"status":"sent"}`, requestID)
		}
	}))
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return esign.NewClient(esign.Config{
		BaseURL: srv.URL,
		APIKey:  "esign-test-key",
		Logger:  logger,
	})
}

// testStorage builds an S3 client with static credentials. Presigning is
// local signature math, so no bucket has to exist.
func testStorage(t *testing.T) *storage.S3Client {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s3c, err := storage.NewS3Client(storage.S3Config{
		Bucket:    "unit-docs",
		Region:    "us-east-1",
		AccessKey: "test-access",
		SecretKey: "test-secret",
	}, logger)
	if err != nil {
		t.Fatalf("failed to build storage client: %v", err)
	}
	return s3c
}

func envelopeRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.POST("/esign/envelopes", landlordIdentity(), h.CreateEnvelope)
	r.GET("/esign/envelopes", landlordIdentity(), h.GetEnvelopes)
	return r
}

func TestCreateEnvelopeConsumesCredit(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.esign = newEsignProvider(t, http.StatusOK, "sr_unit_1")
	h.storage = testStorage(t)

	docID := uuid.New().String()
	now := time.Now()

	mock.ExpectQuery("SELECT name, storage_key FROM rentzentro.documents").
		WithArgs(docID, "acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "storage_key"}).
			AddRow("Lease agreement.pdf", "documents/acct-landlord-1/lease.pdf"))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(signatures\), 0\) FROM \(`).
		WithArgs("acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(10))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rentzentro.usage_entries`).
		WithArgs("acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery("INSERT INTO rentzentro.usage_entries").
		WithArgs(sqlmock.AnyArg(), "acct-landlord-1", docID, "Sam Signer", "sam@example.com", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	mock.ExpectQuery("UPDATE rentzentro.usage_entries").
		WithArgs("sr_unit_1", "sent", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	body := fmt.Sprintf(`{"document_id":%q,"signer_name":"Sam Signer","signer_email":"sam@example.com"}`, docID)
	w := performJSON(t, envelopeRouter(h), "POST", "/esign/envelopes", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body=%s)", w.Code, w.Body.String())
	}
	resp := w.Body.String()
	if !strings.Contains(resp, `"status":"sent"`) {
		t.Fatalf("expected sent status, got %s", resp)
	}
	if !strings.Contains(resp, `"provider_request_id":"sr_unit_1"`) {
		t.Fatalf("expected provider request id, got %s", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateEnvelopeCreditsExhausted(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.esign = newEsignProvider(t, http.StatusOK, "sr_never_used")
	h.storage = testStorage(t)

	docID := uuid.New().String()

	mock.ExpectQuery("SELECT name, storage_key FROM rentzentro.documents").
		WithArgs(docID, "acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "storage_key"}).
			AddRow("Lease agreement.pdf", "documents/acct-landlord-1/lease.pdf"))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(signatures\), 0\) FROM \(`).
		WithArgs("acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(5))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rentzentro.usage_entries`).
		WithArgs("acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	body := fmt.Sprintf(`{"document_id":%q,"signer_name":"Sam Signer","signer_email":"sam@example.com"}`, docID)
	w := performJSON(t, envelopeRouter(h), "POST", "/esign/envelopes", body)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d (body=%s)", w.Code, w.Body.String())
	}
	resp := w.Body.String()
	if !strings.Contains(resp, `"reason":"credits_exhausted"`) {
		t.Fatalf("expected credits_exhausted reason, got %s", resp)
	}
	if !strings.Contains(resp, "credits exhausted, purchase more") {
		t.Fatalf("expected exhaustion message, got %s", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateEnvelopeProviderDownKeepsPending(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.esign = newEsignProvider(t, http.StatusInternalServerError, "")
	h.storage = testStorage(t)

	docID := uuid.New().String()
	now := time.Now()

	mock.ExpectQuery("SELECT name, storage_key FROM rentzentro.documents").
		WithArgs(docID, "acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "storage_key"}).
			AddRow("Lease agreement.pdf", "documents/acct-landlord-1/lease.pdf"))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(signatures\), 0\) FROM \(`).
		WithArgs("acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rentzentro.usage_entries`).
		WithArgs("acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO rentzentro.usage_entries").
		WithArgs(sqlmock.AnyArg(), "acct-landlord-1", docID, "Sam Signer", "sam@example.com", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	body := fmt.Sprintf(`{"document_id":%q,"signer_name":"Sam Signer","signer_email":"sam@example.com"}`, docID)
	w := performJSON(t, envelopeRouter(h), "POST", "/esign/envelopes", body)

	// The credit is spent (committed) even though the provider refused;
	// the envelope stays pending for the reconcile path.
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d (body=%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "envelope saved as pending") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateEnvelopeDocumentNotFound(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.esign = newEsignProvider(t, http.StatusOK, "sr_never_used")
	h.storage = testStorage(t)

	docID := uuid.New().String()
	mock.ExpectQuery("SELECT name, storage_key FROM rentzentro.documents").
		WithArgs(docID, "acct-landlord-1").
		WillReturnError(sql.ErrNoRows)

	body := fmt.Sprintf(`{"document_id":%q,"signer_name":"Sam Signer","signer_email":"sam@example.com"}`, docID)
	w := performJSON(t, envelopeRouter(h), "POST", "/esign/envelopes", body)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetEnvelopesFirstPage(t *testing.T) {
	h, mock := newTestHandlers(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rentzentro.usage_entries`).
		WithArgs("acct-landlord-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT id, landlord_id, document_id, signer_name").
		WithArgs("acct-landlord-1").
		WillReturnRows(sqlmock.NewRows(testutil.UsageEntryColumns()).
			AddRow("env-2", "acct-landlord-1", nil, "Newer Signer", "new@example.com",
				"sent", "sr_2", nil, now, now).
			AddRow("env-1", "acct-landlord-1", nil, "Older Signer", "old@example.com",
				"completed", "sr_1", now.Add(-time.Hour), now.Add(-2*time.Hour), now.Add(-time.Hour)))

	w := performJSON(t, envelopeRouter(h), "GET", "/esign/envelopes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"env-2"`) || !strings.Contains(body, `"env-1"`) {
		t.Fatalf("expected both envelopes, got %s", body)
	}
	if !strings.Contains(body, `"total_count":2`) {
		t.Fatalf("expected total_count 2, got %s", body)
	}
	if !strings.Contains(body, `"has_next_page":false`) {
		t.Fatalf("expected no next page, got %s", body)
	}
}
