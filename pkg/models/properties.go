package models

import (
	"time"
)

// Property represents a rental unit in a landlord's portfolio.
type Property struct {
	ID         string    `json:"id"`
	LandlordID string    `json:"landlord_id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Zip        string    `json:"zip"`
	Unit       *string   `json:"unit,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreatePropertyRequest represents a new property
type CreatePropertyRequest struct {
	Name    string  `json:"name" binding:"required"`
	Address string  `json:"address"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	Zip     string  `json:"zip"`
	Unit    *string `json:"unit,omitempty"`
}

// UpdatePropertyRequest represents a partial property update
type UpdatePropertyRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Zip     *string `json:"zip,omitempty"`
	Unit    *string `json:"unit,omitempty"`
}

// Tenancy links a tenant account to a property with its rent terms.
type Tenancy struct {
	ID              string    `json:"id"`
	LandlordID      string    `json:"landlord_id"`
	PropertyID      string    `json:"property_id"`
	TenantAccountID string    `json:"tenant_account_id"`
	RentCents       int64     `json:"rent_cents"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Joined for portal views; not always populated.
	PropertyName string `json:"property_name,omitempty"`
	TenantEmail  string `json:"tenant_email,omitempty"`
}

// CreateTenancyRequest assigns a tenant to a property.
type CreateTenancyRequest struct {
	PropertyID  string `json:"property_id" binding:"required,uuid"`
	TenantEmail string `json:"tenant_email" binding:"required,email"`
	RentCents   int64  `json:"rent_cents" binding:"required,gt=0"`
}

// Document represents an uploaded file (lease, notice, receipt) held in
// object storage. TenantID scopes the document into that tenant's portal.
type Document struct {
	ID          string    `json:"id"`
	LandlordID  string    `json:"landlord_id"`
	TenantID    *string   `json:"tenant_id,omitempty"`
	Name        string    `json:"name"`
	StorageKey  string    `json:"-"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`

	// DownloadURL is a short-lived presigned link, set on read paths only.
	DownloadURL string `json:"download_url,omitempty"`
}

// Maintenance request statuses and priorities. Status moves forward only:
// new -> in_progress -> completed.
const (
	MaintenanceStatusNew        = "new"
	MaintenanceStatusInProgress = "in_progress"
	MaintenanceStatusCompleted  = "completed"

	MaintenancePriorityLow    = "low"
	MaintenancePriorityNormal = "normal"
	MaintenancePriorityHigh   = "high"
	MaintenancePriorityUrgent = "urgent"
)

// MaintenanceRequest represents a repair ticket filed by a tenant.
type MaintenanceRequest struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	LandlordID     string    `json:"landlord_id"`
	PropertyID     string    `json:"property_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	ResolutionNote *string   `json:"resolution_note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Joined for list views.
	PropertyName string `json:"property_name,omitempty"`
	TenantEmail  string `json:"tenant_email,omitempty"`
}

// CreateMaintenanceRequest is filed from the tenant portal. Priority
// accepts legacy aliases ("emergency") which are normalized on write.
type CreateMaintenanceRequest struct {
	PropertyID  string `json:"property_id" binding:"required,uuid"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// UpdateMaintenanceRequest is the landlord-side status transition.
type UpdateMaintenanceRequest struct {
	Status         *string `json:"status,omitempty"`
	Priority       *string `json:"priority,omitempty"`
	ResolutionNote *string `json:"resolution_note,omitempty"`
}
