package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	listingcache "github.com/rentzentro/platform/internal/cache"
	"github.com/rentzentro/platform/internal/notify"
	"github.com/rentzentro/platform/pkg/api/common"
	"github.com/rentzentro/platform/pkg/api/rentzentro"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
	"github.com/rentzentro/platform/pkg/pagination"
)

// publicListingFilters are the search parameters the public index
// accepts. A filtered or paginated request bypasses the cache; only the
// plain first page is hot enough to matter.
type publicListingFilters struct {
	City         string
	MinRentCents int64
	MaxRentCents int64
	Bedrooms     int
}

func (f publicListingFilters) empty() bool {
	return f.City == "" && f.MinRentCents == 0 && f.MaxRentCents == 0 && f.Bedrooms == 0
}

func parsePublicFilters(c *gin.Context) publicListingFilters {
	minRent, _ := strconv.ParseInt(c.Query("min_rent_cents"), 10, 64)
	maxRent, _ := strconv.ParseInt(c.Query("max_rent_cents"), 10, 64)
	bedrooms, _ := strconv.Atoi(c.Query("bedrooms"))
	return publicListingFilters{
		City:         c.Query("city"),
		MinRentCents: minRent,
		MaxRentCents: maxRent,
		Bedrooms:     bedrooms,
	}
}

// PublicListings serves the published listing index. The unfiltered
// first page is cached; everything else queries directly.
func (h *Handlers) PublicListings(c *gin.Context) {
	ctx := c.Request.Context()

	params, err := pageParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid pagination: " + err.Error()})
		return
	}
	filters := parsePublicFilters(c)

	cacheable := h.listings != nil && filters.empty() && params.Cursor == nil &&
		params.Direction == pagination.Forward && params.Limit == pagination.DefaultLimit
	if !cacheable {
		payload, err := h.queryPublicListings(ctx, params, filters)
		if err != nil {
			h.logger.WithError(err).Error("Failed to query public listings")
			c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
		return
	}

	payload, ok, err := h.listings.Get(ctx, listingcache.ListingIndexKey, func(ctx context.Context) ([]byte, bool, error) {
		h.recordListingCacheOp("load")
		data, err := h.queryPublicListings(ctx, params, filters)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to serve public listings")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if !ok {
		// The index loader always returns a page, possibly empty.
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// queryPublicListings builds the published-index page as marshaled JSON
// so the same bytes can be cached and served.
func (h *Handlers) queryPublicListings(ctx context.Context, params *pagination.Params, filters publicListingFilters) ([]byte, error) {
	where := "published"
	args := []interface{}{}
	argIdx := 1

	if filters.City != "" {
		where += fmt.Sprintf(" AND city ILIKE $%d", argIdx)
		args = append(args, filters.City)
		argIdx++
	}
	if filters.MinRentCents > 0 {
		where += fmt.Sprintf(" AND rent_cents >= $%d", argIdx)
		args = append(args, filters.MinRentCents)
		argIdx++
	}
	if filters.MaxRentCents > 0 {
		where += fmt.Sprintf(" AND rent_cents <= $%d", argIdx)
		args = append(args, filters.MaxRentCents)
		argIdx++
	}
	if filters.Bedrooms > 0 {
		where += fmt.Sprintf(" AND bedrooms >= $%d", argIdx)
		args = append(args, filters.Bedrooms)
		argIdx++
	}

	var total int32
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rentzentro.listings WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, err
	}

	builder := &pagination.KeysetBuilder{
		TimestampColumn: "created_at",
		IDColumn:        "id",
	}

	query := `
		SELECT ` + listingColumns + `
		FROM rentzentro.listings
		WHERE ` + where
	if condition, cursorArgs := builder.Condition(params, argIdx); condition != "" {
		query += " AND " + condition
		args = append(args, cursorArgs...)
	}
	query += " " + builder.OrderBy(params)
	query += fmt.Sprintf(" LIMIT %d", params.Limit+1)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
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

	fetched := len(listings)
	if fetched > params.Limit {
		listings = listings[:params.Limit]
	}
	if params.Direction == pagination.Backward {
		for i, j := 0, len(listings)-1; i < j; i, j = i+1, j-1 {
			listings[i], listings[j] = listings[j], listings[i]
		}
	}

	if err := h.attachPhotos(ctx, listings); err != nil {
		return nil, err
	}

	var startCursor, endCursor string
	if len(listings) > 0 {
		startCursor = pagination.EncodeCursor(listings[0].CreatedAt, listings[0].ID)
		endCursor = pagination.EncodeCursor(listings[len(listings)-1].CreatedAt, listings[len(listings)-1].ID)
	}

	return json.Marshal(rentzentro.PublicListingsPage{
		Listings: listings,
		Page:     pagination.BuildResponse(fetched, params.Limit, params.Direction, total, startCursor, endCursor),
	})
}

// PublicListing serves one published listing page. Unpublished and
// unknown ids both read as not found, and misses are never cached.
func (h *Handlers) PublicListing(c *gin.Context) {
	listingID := c.Param("id")
	ctx := c.Request.Context()

	loader := func(ctx context.Context) ([]byte, bool, error) {
		h.recordListingCacheOp("load")
		return h.queryPublicListing(ctx, listingID)
	}

	var payload []byte
	var ok bool
	var err error
	if h.listings != nil {
		payload, ok, err = h.listings.Get(ctx, listingcache.ListingKey(listingID), loader)
	} else {
		payload, ok, err = loader(ctx)
	}
	if err != nil {
		h.logger.WithError(err).WithField("listing_id", listingID).Error("Failed to serve public listing")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Listing not found"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (h *Handlers) queryPublicListing(ctx context.Context, listingID string) ([]byte, bool, error) {
	var l models.Listing
	err := scanListing(h.db.QueryRowContext(ctx, `
		SELECT `+listingColumns+`
		FROM rentzentro.listings
		WHERE id = $1 AND published
	`, listingID), &l)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	listings := []models.Listing{l}
	if err := h.attachPhotos(ctx, listings); err != nil {
		return nil, false, err
	}

	payload, err := json.Marshal(listings[0])
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// CreateListingInquiry accepts a public inquiry against a published
// listing and alerts the landlord by email, best effort.
func (h *Handlers) CreateListingInquiry(c *gin.Context) {
	listingID := c.Param("id")
	ctx := c.Request.Context()

	var req models.CreateInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	var listingTitle, landlordEmail string
	err := h.db.QueryRowContext(ctx, `
		SELECT l.title, a.email
		FROM rentzentro.listings l
		JOIN rentzentro.accounts a ON a.id = l.landlord_id
		WHERE l.id = $1 AND l.published
	`, listingID).Scan(&listingTitle, &landlordEmail)
	if err != nil {
		// Unknown and unpublished listings look identical to the public.
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Listing not found"})
		return
	}

	var inquiry models.ListingInquiry
	err = h.db.QueryRowContext(ctx, `
		INSERT INTO rentzentro.listing_inquiries (listing_id, name, email, phone, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, listing_id, name, email, phone, message, created_at
	`, listingID, req.Name, req.Email, req.Phone, req.Message).
		Scan(&inquiry.ID, &inquiry.ListingID, &inquiry.Name, &inquiry.Email,
			&inquiry.Phone, &inquiry.Message, &inquiry.CreatedAt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to record inquiry")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Database error"})
		return
	}

	if h.notifier != nil {
		phone := ""
		if req.Phone != nil {
			phone = *req.Phone
		}
		alert := notify.InquiryAlert{
			RecipientEmail: landlordEmail,
			ListingID:      listingID,
			ListingTitle:   listingTitle,
			InquirerName:   req.Name,
			InquirerEmail:  req.Email,
			InquirerPhone:  phone,
			Message:        req.Message,
		}
		if err := h.notifier.SendInquiryAlert(ctx, alert); err != nil {
			h.logger.WithError(err).WithField("listing_id", listingID).Warn("Failed to send inquiry alert")
		}
	}

	h.logger.WithFields(logging.Fields{
		"listing_id": listingID,
		"inquiry_id": inquiry.ID,
	}).Info("Listing inquiry received")

	c.JSON(http.StatusCreated, inquiry)
}
