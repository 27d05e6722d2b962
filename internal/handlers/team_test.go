package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

func teamRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.POST("/team/invites", landlordIdentity(), h.SendTeamInvite)
	r.DELETE("/team/:id", landlordIdentity(), h.RemoveTeamMember)
	r.POST("/team/accept", tenantIdentity(), h.AcceptTeamInvite)
	return r
}

func TestSendTeamInviteSelfInvite(t *testing.T) {
	h, _ := newTestHandlers(t)

	// Case differences do not make it someone else's address.
	body := `{"email":"Owner@Example.com","role":"manager"}`
	w := performJSON(t, teamRouter(h), "POST", "/team/invites", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "You cannot invite yourself") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestSendTeamInviteCreatesPending(t *testing.T) {
	h, mock := newTestHandlers(t)

	now := time.Now()
	cols := []string{"id", "landlord_id", "invite_email", "member_account_id", "role",
		"status", "invite_token", "created_at", "updated_at"}
	mock.ExpectQuery("INSERT INTO rentzentro.team_memberships").
		WithArgs("acct-landlord-1", "helper@example.com", "viewer", "invited", sqlmock.AnyArg(), "active").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tm-1", "acct-landlord-1", "helper@example.com", nil, "viewer",
				"invited", "tok-1", now, now))

	body := `{"email":"helper@example.com","role":"viewer"}`
	w := performJSON(t, teamRouter(h), "POST", "/team/invites", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body=%s)", w.Code, w.Body.String())
	}
	resp := w.Body.String()
	if !strings.Contains(resp, `"invite_email":"helper@example.com"`) {
		t.Fatalf("expected membership in response, got %s", resp)
	}
	if strings.Contains(resp, "tok-1") {
		t.Fatalf("invite token must not leak into the response, got %s", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSendTeamInviteRejectsUnknownRole(t *testing.T) {
	h, _ := newTestHandlers(t)

	body := `{"email":"helper@example.com","role":"admin"}`
	w := performJSON(t, teamRouter(h), "POST", "/team/invites", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", w.Code)
	}
}

func TestAcceptTeamInviteEmailMismatch(t *testing.T) {
	h, mock := newTestHandlers(t)

	cols := []string{"id", "landlord_id", "invite_email", "member_account_id", "role", "status"}
	mock.ExpectQuery("SELECT id, landlord_id, invite_email").
		WithArgs("tok-mismatch").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tm-1", "acct-landlord-1", "someone.else@example.com", nil, "manager", "invited"))

	w := performJSON(t, teamRouter(h), "POST", "/team/accept", `{"token":"tok-mismatch"}`)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body=%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"reason":"invite_email_mismatch"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestAcceptTeamInvite(t *testing.T) {
	h, mock := newTestHandlers(t)

	cols := []string{"id", "landlord_id", "invite_email", "member_account_id", "role", "status"}
	mock.ExpectQuery("SELECT id, landlord_id, invite_email").
		WithArgs("tok-fresh").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tm-1", "acct-landlord-1", "renter@example.com", nil, "manager", "invited"))
	mock.ExpectExec("UPDATE rentzentro.team_memberships").
		WithArgs("acct-tenant-1", "active", "tm-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := performJSON(t, teamRouter(h), "POST", "/team/accept", `{"token":"tok-fresh"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Invite accepted") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAcceptTeamInviteIdempotent(t *testing.T) {
	h, mock := newTestHandlers(t)

	cols := []string{"id", "landlord_id", "invite_email", "member_account_id", "role", "status"}
	mock.ExpectQuery("SELECT id, landlord_id, invite_email").
		WithArgs("tok-used").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tm-1", "acct-landlord-1", "renter@example.com", "acct-tenant-1", "manager", "active"))

	w := performJSON(t, teamRouter(h), "POST", "/team/accept", `{"token":"tok-used"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for re-accept, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invite already accepted") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	// No UPDATE: re-playing the token changes nothing.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemoveTeamMemberNotFound(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectExec("DELETE FROM rentzentro.team_memberships").
		WithArgs("tm-missing", "acct-landlord-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := performJSON(t, teamRouter(h), "DELETE", "/team/tm-missing", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
