package handlers

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rentzentro/platform/internal/stripeclient"
	"github.com/rentzentro/platform/pkg/ctxkeys"
	"github.com/rentzentro/platform/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestHandlers builds a handler set backed by a sqlmock database.
// Provider clients stay nil; tests that need one assign the field
// directly before wiring routes.
func newTestHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := New(Config{
		DB:        mockDB,
		Logger:    logger,
		WebAppURL: "https://app.example.com",
	})
	return h, mock
}

// testStripe returns a configured Stripe client. Tests only exercise
// paths that return before any outbound provider call.
func testStripe() *stripeclient.Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return stripeclient.NewClient(stripeclient.Config{
		SecretKey:     "sk_test_unit",
		WebhookSecret: "whsec_unit",
		Logger:        logger,
	})
}

// identity injects the request context the JWT middleware would set.
func identity(accountID, email, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(ctxkeys.KeyUserID), accountID)
		c.Set(string(ctxkeys.KeyAccountID), accountID)
		c.Set(string(ctxkeys.KeyEmail), email)
		c.Set(string(ctxkeys.KeyRole), role)
		c.Next()
	}
}

func performJSON(t *testing.T, r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func landlordIdentity() gin.HandlerFunc {
	return identity("acct-landlord-1", "owner@example.com", models.RoleLandlord)
}

func tenantIdentity() gin.HandlerFunc {
	return identity("acct-tenant-1", "renter@example.com", models.RoleTenant)
}
