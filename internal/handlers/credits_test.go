package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func creditsRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.GET("/credits", landlordIdentity(), h.GetCreditBalance)
	r.POST("/credits/checkout", landlordIdentity(), h.CreateCreditCheckout)
	return r
}

func TestGetCreditBalance(t *testing.T) {
	h, mock := newTestHandlers(t)

	expectCreditTotals(mock, "acct-landlord-1", 23, 7)

	w := performJSON(t, creditsRouter(h), "GET", "/credits", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"remaining":16`) {
		t.Fatalf("expected remaining balance 16, got %s", body)
	}
	if !strings.Contains(body, `"pack_20"`) {
		t.Fatalf("expected pack catalog in response, got %s", body)
	}
}

func TestCreateCreditCheckoutUnknownPack(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.stripe = testStripe()

	w := performJSON(t, creditsRouter(h), "POST", "/credits/checkout", `{"pack_id":"pack_999"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body=%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Unknown credit pack") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestCreateCreditCheckoutUnconfigured(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := performJSON(t, creditsRouter(h), "POST", "/credits/checkout", `{"pack_id":"pack_5"}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without payment config, got %d (body=%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Payments are not configured") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}
