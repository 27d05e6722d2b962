package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rentzentro/platform/internal/entitlement"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/logging"
)

// RequireActiveSubscription gates landlord feature routes on billing
// state. Billing management and account routes are registered outside the
// gated group so a blocked landlord can always reach the pages that fix
// the problem.
//
// A failed subscription read blocks with a retryable 503: access is never
// granted on a guess.
func (h *Handlers) RequireActiveSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		landlordID := h.accountID(c)

		sub, err := h.fetchSubscription(c.Request.Context(), landlordID)
		if err != nil {
			h.logger.WithError(err).WithField("account_id", landlordID).Error("Failed to load billing state for gate")
			h.recordAccessDecision("error")
			c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Billing state unavailable, try again"})
			c.Abort()
			return
		}

		if entitlement.IsAccessAllowed(sub, time.Now()) {
			h.recordAccessDecision("allowed")
			c.Next()
			return
		}

		reason := entitlement.ClassifyBlockedReason(sub)
		h.recordAccessDecision(string(reason))
		h.logger.WithFields(logging.Fields{
			"account_id": landlordID,
			"reason":     string(reason),
		}).Info("Billing gate blocked request")
		c.JSON(http.StatusPaymentRequired, common.BlockedResponse{
			Reason:  string(reason),
			Message: reason.Message(),
		})
		c.Abort()
	}
}
