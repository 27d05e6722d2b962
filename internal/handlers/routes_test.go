package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/pkg/auth"
	"github.com/rentzentro/platform/pkg/models"
	"github.com/rentzentro/platform/pkg/testutil"
)

// authedRouter mounts a landlord route behind the real JWT and role
// middleware, the way the server wires them.
func authedRouter(h *Handlers, secret []byte) *gin.Engine {
	r := gin.New()
	landlord := r.Group("")
	landlord.Use(auth.JWTAuthMiddleware(secret), auth.RequireRole(models.RoleLandlord))
	landlord.GET("/properties", h.GetProperties)
	return r
}

func performWithToken(t *testing.T, r *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/properties", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthedRouteAcceptsLandlordToken(t *testing.T) {
	h, mock := newTestHandlers(t)
	helper := testutil.NewJWTTestHelper()

	token, err := testutil.TestLandlord.GenerateJWT(helper)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	mock.ExpectQuery("SELECT id, landlord_id, name, address").
		WithArgs(testutil.TestLandlord.AccountID).
		WillReturnRows(sqlmock.NewRows(propertyCols))

	w := performWithToken(t, authedRouter(h, helper.Secret), token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"properties":[]`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthedRouteScopesQueriesToTokenAccount(t *testing.T) {
	h, mock := newTestHandlers(t)
	helper := testutil.NewJWTTestHelper()

	token, err := testutil.TestOtherLandlord.GenerateJWT(helper)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	mock.ExpectQuery("SELECT id, landlord_id, name, address").
		WithArgs(testutil.TestOtherLandlord.AccountID).
		WillReturnRows(sqlmock.NewRows(propertyCols))

	w := performWithToken(t, authedRouter(h, helper.Secret), token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("query not scoped to the token's account: %v", err)
	}
}

func TestAuthedRouteRejectsExpiredToken(t *testing.T) {
	h, _ := newTestHandlers(t)
	helper := testutil.NewJWTTestHelper()

	token, err := testutil.TestLandlord.GenerateExpiredJWT(helper)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	w := performWithToken(t, authedRouter(h, helper.Secret), token)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d (body=%s)", w.Code, w.Body.String())
	}
}

func TestAuthedRouteRejectsTenantRole(t *testing.T) {
	h, _ := newTestHandlers(t)
	helper := testutil.NewJWTTestHelper()

	token, err := testutil.TestTenant.GenerateJWT(helper)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	w := performWithToken(t, authedRouter(h, helper.Secret), token)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for tenant role, got %d (body=%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Insufficient role") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestAuthedRouteRejectsMissingToken(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := performWithToken(t, authedRouter(h, testutil.NewJWTTestHelper().Secret), "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d (body=%s)", w.Code, w.Body.String())
	}
}
