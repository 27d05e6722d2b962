package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentzentro/platform/internal/entitlement"
	"github.com/rentzentro/platform/internal/esign"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/api/rentzentro"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
	"github.com/rentzentro/platform/pkg/pagination"
)

// documentURLExpiry bounds the presigned link handed to the e-sign
// provider, which downloads the file once at request creation.
const documentURLExpiry = 15 * time.Minute

// CreateEnvelope sends a stored document out for signature. The credit is
// consumed inside a transaction that locks the landlord's purchase rows,
// so two concurrent requests can never both spend the last credit. The
// provider call happens after commit; if it fails the envelope stays
// pending and the credit stays spent.
func (h *Handlers) CreateEnvelope(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	var req models.CreateEnvelopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	if h.esign == nil || !h.esign.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "E-sign is not configured"})
		return
	}
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Document storage is not configured"})
		return
	}

	var docName, storageKey string
	err := h.db.QueryRowContext(ctx, `
		SELECT name, storage_key FROM rentzentro.documents WHERE id = $1 AND landlord_id = $2
	`, req.DocumentID, landlordID).Scan(&docName, &storageKey)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Document not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("document_id", req.DocumentID).Error("Failed to load document for envelope")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	documentURL, err := h.storage.GeneratePresignedGET(storageKey, documentURLExpiry)
	if err != nil {
		h.logger.WithError(err).WithField("document_id", req.DocumentID).Error("Failed to presign document for e-sign")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Failed to prepare document"})
		return
	}

	entryID := uuid.New().String()
	entry, err := h.consumeCreditAndInsert(c, landlordID, entryID, req)
	if err != nil || entry == nil {
		// consumeCreditAndInsert already wrote the response.
		return
	}

	created, err := h.esign.CreateSignatureRequest(ctx, esign.CreateSignatureRequestParams{
		Title:       docName,
		SignerName:  req.SignerName,
		SignerEmail: req.SignerEmail,
		DocumentURL: documentURL,
		Metadata: map[string]string{
			"usage_entry_id": entryID,
			"landlord_id":    landlordID,
		},
	})
	if err != nil {
		h.recordCreditConsumption("provider_failed")
		h.logger.WithError(err).WithFields(logging.Fields{
			"usage_entry_id": entryID,
			"account_id":     landlordID,
		}).Error("E-sign provider rejected envelope, credit already spent")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "E-sign provider unavailable, envelope saved as pending"})
		return
	}

	err = h.db.QueryRowContext(ctx, `
		UPDATE rentzentro.usage_entries
		SET provider_request_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`, created.ID, models.EnvelopeStatusSent, entryID).Scan(&entry.UpdatedAt)
	if err != nil {
		h.logger.WithError(err).WithFields(logging.Fields{
			"usage_entry_id":      entryID,
			"provider_request_id": created.ID,
		}).Error("Failed to record provider request id, envelope stuck pending")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Envelope created but provider state could not be recorded"})
		return
	}

	entry.Status = models.EnvelopeStatusSent
	entry.ProviderRequestID = &created.ID

	h.recordCreditConsumption("consumed")
	h.logger.WithFields(logging.Fields{
		"usage_entry_id":      entryID,
		"provider_request_id": created.ID,
		"account_id":          landlordID,
	}).Info("Envelope sent for signature")

	c.JSON(http.StatusCreated, entry)
}

// consumeCreditAndInsert runs the credit consumption transaction: lock the
// purchase rows, recount, insert the pending envelope. It writes the HTTP
// response on failure and returns the inserted row on success.
func (h *Handlers) consumeCreditAndInsert(c *gin.Context, landlordID, entryID string, req models.CreateEnvelopeRequest) (*models.UsageEntry, error) {
	ctx := c.Request.Context()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to begin credit transaction")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return nil, err
	}
	defer tx.Rollback()

	// Locking the purchase rows serializes concurrent consumers; the
	// second transaction blocks here until the first commits its insert.
	var purchased int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(signatures), 0) FROM (
			SELECT signatures FROM rentzentro.purchases WHERE landlord_id = $1 FOR UPDATE
		) locked
	`, landlordID).Scan(&purchased)
	if err != nil {
		h.logger.WithError(err).Error("Failed to lock purchases for credit consumption")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return nil, err
	}

	var used int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rentzentro.usage_entries WHERE landlord_id = $1
	`, landlordID).Scan(&used)
	if err != nil {
		h.logger.WithError(err).Error("Failed to count usage for credit consumption")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return nil, err
	}

	if entitlement.RemainingFromTotals(purchased, used) <= 0 {
		h.recordCreditConsumption("exhausted")
		c.JSON(http.StatusPaymentRequired, common.BlockedResponse{
			Reason:  "credits_exhausted",
			Message: "credits exhausted, purchase more",
		})
		return nil, fmt.Errorf("credits exhausted")
	}

	entry := models.UsageEntry{
		ID:          entryID,
		LandlordID:  landlordID,
		DocumentID:  &req.DocumentID,
		SignerName:  req.SignerName,
		SignerEmail: req.SignerEmail,
		Status:      models.EnvelopeStatusPending,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO rentzentro.usage_entries (id, landlord_id, document_id, signer_name, signer_email, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, entryID, landlordID, req.DocumentID, req.SignerName, req.SignerEmail, models.EnvelopeStatusPending).
		Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to insert usage entry")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		h.logger.WithError(err).Error("Failed to commit credit consumption")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return nil, err
	}

	return &entry, nil
}

// GetEnvelopes lists the landlord's e-sign envelopes, newest first, with
// cursor pagination.
func (h *Handlers) GetEnvelopes(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	params, err := pageParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid pagination: " + err.Error()})
		return
	}

	var total int32
	err = h.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rentzentro.usage_entries WHERE landlord_id = $1
	`, landlordID).Scan(&total)
	if err != nil {
		h.logger.WithError(err).Error("Failed to count envelopes")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	builder := &pagination.KeysetBuilder{
		TimestampColumn: "created_at",
		IDColumn:        "id",
	}

	query := `
		SELECT id, landlord_id, document_id, signer_name, signer_email,
		       status, provider_request_id, signed_at, created_at, updated_at
		FROM rentzentro.usage_entries
		WHERE landlord_id = $1`
	args := []interface{}{landlordID}

	if condition, cursorArgs := builder.Condition(params, 2); condition != "" {
		query += " AND " + condition
		args = append(args, cursorArgs...)
	}
	query += " " + builder.OrderBy(params)
	query += fmt.Sprintf(" LIMIT %d", params.Limit+1)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list envelopes")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	entries := []models.UsageEntry{}
	for rows.Next() {
		var entry models.UsageEntry
		if err := rows.Scan(&entry.ID, &entry.LandlordID, &entry.DocumentID, &entry.SignerName,
			&entry.SignerEmail, &entry.Status, &entry.ProviderRequestID, &entry.SignedAt,
			&entry.CreatedAt, &entry.UpdatedAt); err != nil {
			h.logger.WithError(err).Warn("Error scanning usage entry")
			continue
		}
		entries = append(entries, entry)
	}

	fetched := len(entries)
	if fetched > params.Limit {
		entries = entries[:params.Limit]
	}
	if params.Direction == pagination.Backward {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	var startCursor, endCursor string
	if len(entries) > 0 {
		startCursor = pagination.EncodeCursor(entries[0].CreatedAt, entries[0].ID)
		endCursor = pagination.EncodeCursor(entries[len(entries)-1].CreatedAt, entries[len(entries)-1].ID)
	}

	c.JSON(http.StatusOK, rentzentro.EnvelopesPage{
		Envelopes: entries,
		Page:      pagination.BuildResponse(fetched, params.Limit, params.Direction, total, startCursor, endCursor),
	})
}
