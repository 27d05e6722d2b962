package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentzentro/platform/internal/storage"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/api/rentzentro"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
)

// maxDocumentBytes caps document uploads. Leases and notices are PDFs a
// few MB at most.
const maxDocumentBytes = 25 << 20

// downloadURLExpiry is the presigned link lifetime for document reads.
const downloadURLExpiry = 15 * time.Minute

// UploadDocument stores a file (lease, notice, receipt) in object
// storage. An optional tenant_id form field shares it into that tenant's
// portal; the tenant must rent from this landlord.
func (h *Handlers) UploadDocument(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Document storage is not configured"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Missing document file"})
		return
	}
	if fileHeader.Size > maxDocumentBytes {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Document too large"})
		return
	}

	var tenantID *string
	if raw := c.PostForm("tenant_id"); raw != "" {
		var rents bool
		err := h.db.QueryRowContext(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM rentzentro.tenancies
				WHERE landlord_id = $1 AND tenant_account_id = $2
			)
		`, landlordID, raw).Scan(&rents)
		if err != nil {
			h.logger.WithError(err).Error("Failed to verify tenant link")
			c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
			return
		}
		if !rents {
			c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Tenant is not linked to this landlord"})
			return
		}
		tenantID = &raw
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Unreadable document file"})
		return
	}
	defer file.Close()

	documentID := uuid.New().String()
	key := storage.BuildDocumentKey(landlordID, documentID, fileHeader.Filename)
	if err := h.storage.Upload(ctx, key, file, contentType); err != nil {
		h.logger.WithError(err).WithField("document_id", documentID).Error("Failed to upload document")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Storage error"})
		return
	}

	var doc models.Document
	err = h.db.QueryRowContext(ctx, `
		INSERT INTO rentzentro.documents (id, landlord_id, tenant_id, name, storage_key, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, landlord_id, tenant_id, name, storage_key, content_type, size_bytes, created_at
	`, documentID, landlordID, tenantID, fileHeader.Filename, key, contentType, fileHeader.Size).
		Scan(&doc.ID, &doc.LandlordID, &doc.TenantID, &doc.Name, &doc.StorageKey,
			&doc.ContentType, &doc.SizeBytes, &doc.CreatedAt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to record document")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"document_id": doc.ID,
		"account_id":  landlordID,
		"size_bytes":  doc.SizeBytes,
	}).Info("Document uploaded")

	c.JSON(http.StatusCreated, doc)
}

// GetDocuments lists the landlord's documents, newest first.
func (h *Handlers) GetDocuments(c *gin.Context) {
	landlordID := h.accountID(c)

	rows, err := h.db.QueryContext(c.Request.Context(), `
		SELECT id, landlord_id, tenant_id, name, storage_key, content_type, size_bytes, created_at
		FROM rentzentro.documents
		WHERE landlord_id = $1
		ORDER BY created_at DESC
	`, landlordID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	documents := []models.Document{}
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.LandlordID, &doc.TenantID, &doc.Name,
			&doc.StorageKey, &doc.ContentType, &doc.SizeBytes, &doc.CreatedAt); err != nil {
			h.logger.WithError(err).Warn("Error scanning document")
			continue
		}
		documents = append(documents, doc)
	}

	c.JSON(http.StatusOK, gin.H{"documents": documents})
}

// GetDocumentURL returns a short-lived presigned download link for one of
// the landlord's documents.
func (h *Handlers) GetDocumentURL(c *gin.Context) {
	landlordID := h.accountID(c)
	documentID := c.Param("id")

	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Document storage is not configured"})
		return
	}

	var storageKey string
	err := h.db.QueryRowContext(c.Request.Context(), `
		SELECT storage_key FROM rentzentro.documents WHERE id = $1 AND landlord_id = $2
	`, documentID, landlordID).Scan(&storageKey)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Document not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load document")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	url, err := h.storage.GeneratePresignedGET(storageKey, downloadURLExpiry)
	if err != nil {
		h.logger.WithError(err).WithField("document_id", documentID).Error("Failed to presign document")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Failed to generate download link"})
		return
	}

	c.JSON(http.StatusOK, rentzentro.PresignedURLResponse{
		URL:       url,
		ExpiresAt: time.Now().Add(downloadURLExpiry),
	})
}

// DeleteDocument removes the row and, best effort, the stored object.
// Documents referenced by an envelope refuse deletion so the e-sign
// audit trail stays intact.
func (h *Handlers) DeleteDocument(c *gin.Context) {
	landlordID := h.accountID(c)
	documentID := c.Param("id")
	ctx := c.Request.Context()

	var inUse bool
	err := h.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM rentzentro.usage_entries WHERE document_id = $1)
	`, documentID).Scan(&inUse)
	if err != nil {
		h.logger.WithError(err).Error("Failed to check document references")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if inUse {
		c.JSON(http.StatusConflict, common.ErrorResponse{Error: "Document was sent for signature and cannot be deleted"})
		return
	}

	var storageKey string
	err = h.db.QueryRowContext(ctx, `
		DELETE FROM rentzentro.documents
		WHERE id = $1 AND landlord_id = $2
		RETURNING storage_key
	`, documentID, landlordID).Scan(&storageKey)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Document not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to delete document")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	if h.storage != nil {
		if err := h.storage.Delete(ctx, storageKey); err != nil {
			h.logger.WithError(err).WithField("storage_key", storageKey).Warn("Failed to delete document object")
		}
	}

	h.logger.WithFields(logging.Fields{
		"document_id": documentID,
		"account_id":  landlordID,
	}).Info("Document deleted")

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true, Message: "Document deleted"})
}
