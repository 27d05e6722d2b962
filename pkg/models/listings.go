package models

import (
	"time"
)

// Listing represents a public rental advertisement. Unpublished listings
// are visible only to their owning landlord.
type Listing struct {
	ID            string     `json:"id"`
	LandlordID    string     `json:"landlord_id"`
	PropertyID    *string    `json:"property_id,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Address       string     `json:"address"`
	City          string     `json:"city"`
	State         string     `json:"state"`
	Zip           string     `json:"zip"`
	RentCents     int64      `json:"rent_cents"`
	Bedrooms      int        `json:"bedrooms"`
	Bathrooms     float64    `json:"bathrooms"`
	Amenities     JSONB      `json:"amenities,omitempty"`
	AvailableFrom *time.Time `json:"available_from,omitempty"`
	Published     bool       `json:"published"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Photos []ListingPhoto `json:"photos,omitempty"`
}

// ListingPhoto is one image attached to a listing, stored in object
// storage and served through its public URL.
type ListingPhoto struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	StorageKey string    `json:"-"`
	URL        string    `json:"url"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateListingRequest represents a new listing draft
type CreateListingRequest struct {
	PropertyID    *string    `json:"property_id,omitempty" binding:"omitempty,uuid"`
	Title         string     `json:"title" binding:"required"`
	Description   string     `json:"description"`
	Address       string     `json:"address"`
	City          string     `json:"city"`
	State         string     `json:"state"`
	Zip           string     `json:"zip"`
	RentCents     int64      `json:"rent_cents" binding:"gte=0"`
	Bedrooms      int        `json:"bedrooms" binding:"gte=0"`
	Bathrooms     float64    `json:"bathrooms" binding:"gte=0"`
	Amenities     JSONB      `json:"amenities,omitempty"`
	AvailableFrom *time.Time `json:"available_from,omitempty"`
}

// UpdateListingRequest represents a partial listing update
type UpdateListingRequest struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Address       *string    `json:"address,omitempty"`
	City          *string    `json:"city,omitempty"`
	State         *string    `json:"state,omitempty"`
	Zip           *string    `json:"zip,omitempty"`
	RentCents     *int64     `json:"rent_cents,omitempty"`
	Bedrooms      *int       `json:"bedrooms,omitempty"`
	Bathrooms     *float64   `json:"bathrooms,omitempty"`
	Amenities     JSONB      `json:"amenities,omitempty"`
	AvailableFrom *time.Time `json:"available_from,omitempty"`
	Published     *bool      `json:"published,omitempty"`
}

// ListingInquiry is a message from a prospective tenant on the public
// listing page. No account is required to submit one.
type ListingInquiry struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInquiryRequest represents a public inquiry submission
type CreateInquiryRequest struct {
	Name    string  `json:"name" binding:"required"`
	Email   string  `json:"email" binding:"required,email"`
	Phone   *string `json:"phone,omitempty"`
	Message string  `json:"message" binding:"required"`
}
