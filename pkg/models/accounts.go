package models

import (
	"time"
)

// Account roles.
const (
	RoleLandlord = "landlord"
	RoleTenant   = "tenant"
)

// Account represents an authenticated user of the platform. The identity
// provider owns credentials; we keep a profile row keyed by the provider's
// subject id.
type Account struct {
	ID                     string    `json:"id"`
	AuthProviderID         string    `json:"-"`
	Email                  string    `json:"email"`
	DisplayName            string    `json:"display_name"`
	Role                   string    `json:"role"`
	StripeCustomerID       *string   `json:"-"`
	StripeConnectAccountID *string   `json:"-"`
	PayoutsEnabled         bool      `json:"payouts_enabled"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// UpdateAccountRequest represents a profile update
type UpdateAccountRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Email       *string `json:"email,omitempty" binding:"omitempty,email"`
}

// Team membership roles and states.
const (
	TeamRoleManager = "manager"
	TeamRoleViewer  = "viewer"

	TeamStatusInvited = "invited"
	TeamStatusActive  = "active"
)

// TeamMembership represents a co-manager invited to a landlord's portfolio.
// MemberAccountID is nil until the invite is accepted.
type TeamMembership struct {
	ID              string    `json:"id"`
	LandlordID      string    `json:"landlord_id"`
	InviteEmail     string    `json:"invite_email"`
	MemberAccountID *string   `json:"member_account_id,omitempty"`
	Role            string    `json:"role"`
	Status          string    `json:"status"`
	InviteToken     string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// InviteTeamMemberRequest represents a team invite
type InviteTeamMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=manager viewer"`
}

// AcceptInviteRequest carries the token from the invite email link.
type AcceptInviteRequest struct {
	Token string `json:"token" binding:"required"`
}
