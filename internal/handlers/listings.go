package handlers

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"

	listingcache "github.com/rentzentro/platform/internal/cache"
	"github.com/rentzentro/platform/internal/storage"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
)

// maxPhotoBytes caps listing photo uploads.
const maxPhotoBytes = 10 << 20

const listingColumns = `id, landlord_id, property_id, title, description, address, city, state, zip,
	       rent_cents, bedrooms, bathrooms, amenities, available_from, published, created_at, updated_at`

func scanListing(row interface {
	Scan(dest ...interface{}) error
}, l *models.Listing) error {
	return row.Scan(&l.ID, &l.LandlordID, &l.PropertyID, &l.Title, &l.Description,
		&l.Address, &l.City, &l.State, &l.Zip, &l.RentCents, &l.Bedrooms, &l.Bathrooms,
		&l.Amenities, &l.AvailableFrom, &l.Published, &l.CreatedAt, &l.UpdatedAt)
}

// attachPhotos loads photos for the given listings in one query and
// attaches them in position order.
func (h *Handlers) attachPhotos(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	ids := make([]string, len(listings))
	byID := make(map[string]*models.Listing, len(listings))
	for i := range listings {
		ids[i] = listings[i].ID
		byID[listings[i].ID] = &listings[i]
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, listing_id, storage_key, url, position, created_at
		FROM rentzentro.listing_photos
		WHERE listing_id = ANY($1)
		ORDER BY listing_id, position, created_at
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.ListingPhoto
		if err := rows.Scan(&p.ID, &p.ListingID, &p.StorageKey, &p.URL, &p.Position, &p.CreatedAt); err != nil {
			h.logger.WithError(err).Warn("Error scanning listing photo")
			continue
		}
		if l, ok := byID[p.ListingID]; ok {
			l.Photos = append(l.Photos, p)
		}
	}
	return rows.Err()
}

// invalidateListing drops the cached public payloads for a listing after
// any mutation. Unpublished drafts are never cached, so over-invalidating
// costs only a reload.
func (h *Handlers) invalidateListing(ctx context.Context, listingID string) {
	if h.listings == nil {
		return
	}
	h.listings.Invalidate(ctx, listingcache.ListingKey(listingID), listingcache.ListingIndexKey)
}

// GetListings returns the landlord's listings, drafts included.
func (h *Handlers) GetListings(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	rows, err := h.db.QueryContext(ctx, `
		SELECT `+listingColumns+`
		FROM rentzentro.listings
		WHERE landlord_id = $1
		ORDER BY created_at DESC
	`, landlordID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list listings")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		var l models.Listing
		if err := scanListing(rows, &l); err != nil {
			h.logger.WithError(err).Warn("Error scanning listing")
			continue
		}
		listings = append(listings, l)
	}

	if err := h.attachPhotos(ctx, listings); err != nil {
		h.logger.WithError(err).Error("Failed to load listing photos")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// GetListing returns one of the landlord's listings with its photos.
func (h *Handlers) GetListing(c *gin.Context) {
	landlordID := h.accountID(c)
	listingID := c.Param("id")
	ctx := c.Request.Context()

	var l models.Listing
	err := scanListing(h.db.QueryRowContext(ctx, `
		SELECT `+listingColumns+`
		FROM rentzentro.listings
		WHERE id = $1 AND landlord_id = $2
	`, listingID, landlordID), &l)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Listing not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load listing")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	listings := []models.Listing{l}
	if err := h.attachPhotos(ctx, listings); err != nil {
		h.logger.WithError(err).Error("Failed to load listing photos")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	c.JSON(http.StatusOK, listings[0])
}

// CreateListing creates an unpublished draft. When the draft names a
// property the landlord must own it.
func (h *Handlers) CreateListing(c *gin.Context) {
	landlordID := h.accountID(c)
	ctx := c.Request.Context()

	var req models.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	if req.PropertyID != nil {
		var owned bool
		err := h.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM rentzentro.properties WHERE id = $1 AND landlord_id = $2)
		`, *req.PropertyID, landlordID).Scan(&owned)
		if err != nil {
			h.logger.WithError(err).Error("Failed to verify property ownership")
			c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
			return
		}
		if !owned {
			c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Property not found"})
			return
		}
	}

	var l models.Listing
	err := scanListing(h.db.QueryRowContext(ctx, `
		INSERT INTO rentzentro.listings (landlord_id, property_id, title, description, address, city, state, zip,
		                                 rent_cents, bedrooms, bathrooms, amenities, available_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+listingColumns+`
	`, landlordID, req.PropertyID, req.Title, req.Description, req.Address, req.City, req.State,
		req.Zip, req.RentCents, req.Bedrooms, req.Bathrooms, req.Amenities, req.AvailableFrom), &l)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create listing")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"listing_id": l.ID,
		"account_id": landlordID,
	}).Info("Listing created")

	c.JSON(http.StatusCreated, l)
}

// UpdateListing changes listing fields; absent fields keep their value.
// Setting published here behaves the same as the publish endpoints.
func (h *Handlers) UpdateListing(c *gin.Context) {
	landlordID := h.accountID(c)
	listingID := c.Param("id")
	ctx := c.Request.Context()

	var req models.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	var l models.Listing
	err := scanListing(h.db.QueryRowContext(ctx, `
		UPDATE rentzentro.listings
		SET title = COALESCE($1, title),
		    description = COALESCE($2, description),
		    address = COALESCE($3, address),
		    city = COALESCE($4, city),
		    state = COALESCE($5, state),
		    zip = COALESCE($6, zip),
		    rent_cents = COALESCE($7, rent_cents),
		    bedrooms = COALESCE($8, bedrooms),
		    bathrooms = COALESCE($9, bathrooms),
		    amenities = COALESCE($10, amenities),
		    available_from = COALESCE($11, available_from),
		    published = COALESCE($12, published),
		    updated_at = NOW()
		WHERE id = $13 AND landlord_id = $14
		RETURNING `+listingColumns+`
	`, req.Title, req.Description, req.Address, req.City, req.State, req.Zip,
		req.RentCents, req.Bedrooms, req.Bathrooms, req.Amenities, req.AvailableFrom,
		req.Published, listingID, landlordID), &l)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Listing not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to update listing")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	h.invalidateListing(ctx, listingID)
	c.JSON(http.StatusOK, l)
}

// PublishListing makes a listing visible on the public site.
func (h *Handlers) PublishListing(c *gin.Context) {
	h.setPublished(c, true)
}

// UnpublishListing takes a listing off the public site.
func (h *Handlers) UnpublishListing(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *Handlers) setPublished(c *gin.Context, published bool) {
	landlordID := h.accountID(c)
	listingID := c.Param("id")
	ctx := c.Request.Context()

	var l models.Listing
	err := scanListing(h.db.QueryRowContext(ctx, `
		UPDATE rentzentro.listings
		SET published = $1, updated_at = NOW()
		WHERE id = $2 AND landlord_id = $3
		RETURNING `+listingColumns+`
	`, published, listingID, landlordID), &l)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Listing not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to change listing visibility")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	h.invalidateListing(ctx, listingID)
	h.logger.WithFields(logging.Fields{
		"listing_id": listingID,
		"published":  published,
	}).Info("Listing visibility changed")

	c.JSON(http.StatusOK, l)
}

// DeleteListing removes a listing; photo and inquiry rows cascade, and
// stored photo objects are cleaned up best effort.
func (h *Handlers) DeleteListing(c *gin.Context) {
	landlordID := h.accountID(c)
	listingID := c.Param("id")
	ctx := c.Request.Context()

	result, err := h.db.ExecContext(ctx, `
		DELETE FROM rentzentro.listings WHERE id = $1 AND landlord_id = $2
	`, listingID, landlordID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to delete listing")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Listing not found"})
		return
	}

	if h.storage != nil {
		if _, err := h.storage.DeletePrefix(ctx, storage.ListingPhotoPrefix(listingID)); err != nil {
			h.logger.WithError(err).WithField("listing_id", listingID).Warn("Failed to delete listing photos from storage")
		}
	}

	h.invalidateListing(ctx, listingID)
	h.logger.WithFields(logging.Fields{
		"listing_id": listingID,
		"account_id": landlordID,
	}).Info("Listing deleted")

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true, Message: "Listing deleted"})
}

// UploadListingPhoto attaches a photo from a multipart form. The object
// is written to storage first; the row insert makes it visible.
func (h *Handlers) UploadListingPhoto(c *gin.Context) {
	landlordID := h.accountID(c)
	listingID := c.Param("id")
	ctx := c.Request.Context()

	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Error: "Photo storage is not configured"})
		return
	}

	var owned bool
	err := h.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM rentzentro.listings WHERE id = $1 AND landlord_id = $2)
	`, listingID, landlordID).Scan(&owned)
	if err != nil {
		h.logger.WithError(err).Error("Failed to verify listing ownership")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if !owned {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Listing not found"})
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Missing photo file"})
		return
	}
	if fileHeader.Size > maxPhotoBytes {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Photo too large"})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType != "image/jpeg" && contentType != "image/png" && contentType != "image/webp" {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Unsupported photo type"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Unreadable photo file"})
		return
	}
	defer file.Close()

	photoID := uuid.New().String()
	key := storage.BuildListingPhotoKey(listingID, photoID, fileHeader.Filename)
	if err := h.storage.Upload(ctx, key, file, contentType); err != nil {
		h.logger.WithError(err).WithField("listing_id", listingID).Error("Failed to upload listing photo")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Error: "Storage error"})
		return
	}

	var photo models.ListingPhoto
	err = h.db.QueryRowContext(ctx, `
		INSERT INTO rentzentro.listing_photos (id, listing_id, storage_key, url, position)
		VALUES ($1, $2, $3, $4,
		        (SELECT COALESCE(MAX(position) + 1, 0) FROM rentzentro.listing_photos WHERE listing_id = $2))
		RETURNING id, listing_id, storage_key, url, position, created_at
	`, photoID, listingID, key, h.storage.PublicURL(key)).
		Scan(&photo.ID, &photo.ListingID, &photo.StorageKey, &photo.URL, &photo.Position, &photo.CreatedAt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to record listing photo")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	h.invalidateListing(ctx, listingID)
	c.JSON(http.StatusCreated, photo)
}

// DeleteListingPhoto removes one photo row and its stored object.
func (h *Handlers) DeleteListingPhoto(c *gin.Context) {
	landlordID := h.accountID(c)
	listingID := c.Param("id")
	photoID := c.Param("photoId")
	ctx := c.Request.Context()

	var storageKey string
	err := h.db.QueryRowContext(ctx, `
		DELETE FROM rentzentro.listing_photos p
		USING rentzentro.listings l
		WHERE p.id = $1 AND p.listing_id = l.id AND l.id = $2 AND l.landlord_id = $3
		RETURNING p.storage_key
	`, photoID, listingID, landlordID).Scan(&storageKey)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Photo not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to delete listing photo")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	if h.storage != nil {
		if err := h.storage.Delete(ctx, storageKey); err != nil {
			h.logger.WithError(err).WithField("storage_key", storageKey).Warn("Failed to delete photo object")
		}
	}

	h.invalidateListing(ctx, listingID)
	c.JSON(http.StatusOK, common.SuccessResponse{Success: true, Message: "Photo deleted"})
}

// GetListingInquiries lists inquiries for one of the landlord's listings.
func (h *Handlers) GetListingInquiries(c *gin.Context) {
	landlordID := h.accountID(c)
	listingID := c.Param("id")
	ctx := c.Request.Context()

	var owned bool
	err := h.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM rentzentro.listings WHERE id = $1 AND landlord_id = $2)
	`, listingID, landlordID).Scan(&owned)
	if err != nil {
		h.logger.WithError(err).Error("Failed to verify listing ownership")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if !owned {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Listing not found"})
		return
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, listing_id, name, email, phone, message, created_at
		FROM rentzentro.listing_inquiries
		WHERE listing_id = $1
		ORDER BY created_at DESC
	`, listingID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list inquiries")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	defer rows.Close()

	inquiries := []models.ListingInquiry{}
	for rows.Next() {
		var q models.ListingInquiry
		if err := rows.Scan(&q.ID, &q.ListingID, &q.Name, &q.Email, &q.Phone, &q.Message, &q.CreatedAt); err != nil {
			h.logger.WithError(err).Warn("Error scanning inquiry")
			continue
		}
		inquiries = append(inquiries, q)
	}

	c.JSON(http.StatusOK, gin.H{"inquiries": inquiries})
}
