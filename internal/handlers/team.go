package handlers

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentzentro/platform/internal/notify"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
)

// SendTeamInvite invites an email address onto the landlord's team, or
// refreshes an existing invite. Re-inviting a pending email reissues the
// token; re-inviting an active member only updates the role.
func (h *Handlers) SendTeamInvite(c *gin.Context) {
	landlordID := h.accountID(c)

	var req models.InviteTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	if strings.EqualFold(req.Email, h.accountEmail(c)) {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "You cannot invite yourself"})
		return
	}

	token := uuid.New().String()

	var membership models.TeamMembership
	err := h.db.QueryRowContext(c.Request.Context(), `
		INSERT INTO rentzentro.team_memberships (landlord_id, invite_email, role, status, invite_token)
		VALUES ($1, LOWER($2), $3, $4, $5)
		ON CONFLICT (landlord_id, invite_email) DO UPDATE SET
			role = EXCLUDED.role,
			invite_token = CASE WHEN rentzentro.team_memberships.status = $6
				THEN rentzentro.team_memberships.invite_token
				ELSE EXCLUDED.invite_token END,
			updated_at = NOW()
		RETURNING id, landlord_id, invite_email, member_account_id, role, status, invite_token, created_at, updated_at
	`, landlordID, req.Email, req.Role, models.TeamStatusInvited, token, models.TeamStatusActive).Scan(
		&membership.ID, &membership.LandlordID, &membership.InviteEmail, &membership.MemberAccountID,
		&membership.Role, &membership.Status, &membership.InviteToken, &membership.CreatedAt, &membership.UpdatedAt)
	if err != nil {
		h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to create team invite")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	// Active members keep their seat; there is nothing to email.
	if membership.Status == models.TeamStatusInvited && h.notifier != nil {
		inviter := ""
		if account, err := h.fetchAccount(c.Request.Context(), landlordID); err != nil {
			h.logger.WithError(err).Warn("Failed to load inviter profile for invite email")
		} else if account != nil {
			inviter = account.DisplayName
			if inviter == "" {
				inviter = account.Email
			}
		}

		invite := notify.TeamInvite{
			RecipientEmail: membership.InviteEmail,
			InviterName:    inviter,
			Role:           membership.Role,
			Token:          membership.InviteToken,
		}
		if err := h.notifier.SendTeamInvite(c.Request.Context(), invite); err != nil {
			h.logger.WithError(err).WithField("invite_email", membership.InviteEmail).Warn("Failed to send team invite email")
		}
	}

	h.logger.WithFields(logging.Fields{
		"account_id":   landlordID,
		"invite_email": membership.InviteEmail,
		"role":         membership.Role,
		"status":       membership.Status,
	}).Info("Team invite issued")

	c.JSON(http.StatusCreated, membership)
}

// GetTeam lists the landlord's team memberships, including pending invites.
func (h *Handlers) GetTeam(c *gin.Context) {
	landlordID := h.accountID(c)

	rows, err := h.db.QueryContext(c.Request.Context(), `
		SELECT id, landlord_id, invite_email, member_account_id, role, status, created_at, updated_at
		FROM rentzentro.team_memberships
		WHERE landlord_id = $1
		ORDER BY created_at ASC
	`, landlordID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list team members")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	members := []models.TeamMembership{}
	for rows.Next() {
		var m models.TeamMembership
		if err := rows.Scan(&m.ID, &m.LandlordID, &m.InviteEmail, &m.MemberAccountID,
			&m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			h.logger.WithError(err).Warn("Failed to scan team membership row")
			continue
		}
		members = append(members, m)
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// RemoveTeamMember revokes a membership or pending invite.
func (h *Handlers) RemoveTeamMember(c *gin.Context) {
	landlordID := h.accountID(c)
	membershipID := c.Param("id")

	result, err := h.db.ExecContext(c.Request.Context(), `
		DELETE FROM rentzentro.team_memberships
		WHERE id = $1 AND landlord_id = $2
	`, membershipID, landlordID)
	if err != nil {
		h.logger.WithError(err).WithField("membership_id", membershipID).Error("Failed to remove team member")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Team member not found"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"account_id":    landlordID,
		"membership_id": membershipID,
	}).Info("Team member removed")

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true, Message: "Team member removed"})
}

// AcceptTeamInvite redeems an invite token for the authenticated account.
// The invite is bound to the email it was issued to; any other caller is
// rejected even with a valid token.
func (h *Handlers) AcceptTeamInvite(c *gin.Context) {
	accountID := h.accountID(c)
	email := h.accountEmail(c)

	var req models.AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	var membership models.TeamMembership
	err := h.db.QueryRowContext(c.Request.Context(), `
		SELECT id, landlord_id, invite_email, member_account_id, role, status
		FROM rentzentro.team_memberships
		WHERE invite_token = $1
	`, req.Token).Scan(&membership.ID, &membership.LandlordID, &membership.InviteEmail,
		&membership.MemberAccountID, &membership.Role, &membership.Status)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Invite not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up team invite")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	if !strings.EqualFold(membership.InviteEmail, email) {
		c.JSON(http.StatusForbidden, common.BlockedResponse{
			Reason:  "invite_email_mismatch",
			Message: "This invite was issued to a different email address",
		})
		return
	}

	if membership.Status == models.TeamStatusActive &&
		membership.MemberAccountID != nil && *membership.MemberAccountID == accountID {
		c.JSON(http.StatusOK, common.SuccessResponse{Success: true, Message: "Invite already accepted"})
		return
	}

	_, err = h.db.ExecContext(c.Request.Context(), `
		UPDATE rentzentro.team_memberships
		SET member_account_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, accountID, models.TeamStatusActive, membership.ID)
	if err != nil {
		h.logger.WithError(err).WithField("membership_id", membership.ID).Error("Failed to accept team invite")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"membership_id": membership.ID,
		"landlord_id":   membership.LandlordID,
		"account_id":    accountID,
	}).Info("Team invite accepted")

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true, Message: "Invite accepted"})
}
