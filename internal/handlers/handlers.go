// Package handlers implements the HTTP surface of the platform: landlord
// dashboard APIs, the tenant portal, the public listing pages, and the
// provider webhook endpoints. Handlers hold their dependencies explicitly;
// there is no package-level state.
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	listingcache "github.com/rentzentro/platform/internal/cache"
	"github.com/rentzentro/platform/internal/esign"
	"github.com/rentzentro/platform/internal/notify"
	"github.com/rentzentro/platform/internal/storage"
	"github.com/rentzentro/platform/internal/stripeclient"
	"github.com/rentzentro/platform/pkg/ctxkeys"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
	"github.com/rentzentro/platform/pkg/pagination"
	"github.com/rentzentro/platform/pkg/validation"
)

// Config carries every dependency the handlers need. Provider clients may
// be nil when unconfigured; the owning endpoints answer 503 then.
type Config struct {
	DB       *sql.DB
	Logger   logging.Logger
	Metrics  *Metrics
	Stripe   *stripeclient.Client
	Esign    *esign.Client
	Storage  *storage.S3Client
	Listings listingcache.ListingCache
	Notifier *notify.EmailNotifier

	// WebAppURL is the public frontend origin used for checkout redirect
	// and onboarding return URLs.
	WebAppURL string

	// SubscriptionPriceID is the Stripe price for the landlord plan.
	SubscriptionPriceID string

	// TrialDays > 0 starts new subscriptions with a Stripe trial.
	TrialDays int64

	// CreditPacks overrides the built-in pack catalog (tests).
	CreditPacks []models.CreditPack
}

// Handlers is the set of HTTP handlers for the platform service.
type Handlers struct {
	db        *sql.DB
	logger    logging.Logger
	metrics   *Metrics
	stripe    *stripeclient.Client
	esign     *esign.Client
	storage   *storage.S3Client
	listings  listingcache.ListingCache
	notifier  *notify.EmailNotifier
	validator *validation.WebhookValidator

	webAppURL           string
	subscriptionPriceID string
	trialDays           int64
	creditPacks         []models.CreditPack
}

// New builds the handler set from its dependencies.
func New(cfg Config) *Handlers {
	packs := cfg.CreditPacks
	if len(packs) == 0 {
		packs = defaultCreditPacks()
	}
	return &Handlers{
		db:                  cfg.DB,
		logger:              cfg.Logger,
		metrics:             cfg.Metrics,
		stripe:              cfg.Stripe,
		esign:               cfg.Esign,
		storage:             cfg.Storage,
		listings:            cfg.Listings,
		notifier:            cfg.Notifier,
		validator:           validation.NewWebhookValidator(),
		webAppURL:           cfg.WebAppURL,
		subscriptionPriceID: cfg.SubscriptionPriceID,
		trialDays:           cfg.TrialDays,
		creditPacks:         packs,
	}
}

// defaultCreditPacks is the server-side signature pack catalog. Prices are
// defined here so clients cannot alter them.
func defaultCreditPacks() []models.CreditPack {
	return []models.CreditPack{
		{ID: "pack_5", Signatures: 5, AmountCents: 1500, Label: "5 signatures"},
		{ID: "pack_20", Signatures: 20, AmountCents: 4900, Label: "20 signatures"},
		{ID: "pack_50", Signatures: 50, AmountCents: 9900, Label: "50 signatures"},
	}
}

func (h *Handlers) creditPack(packID string) (models.CreditPack, bool) {
	for _, pack := range h.creditPacks {
		if pack.ID == packID {
			return pack, true
		}
	}
	return models.CreditPack{}, false
}

// accountID returns the authenticated account id set by the JWT middleware.
func (h *Handlers) accountID(c *gin.Context) string {
	return c.GetString(string(ctxkeys.KeyAccountID))
}

// webURL joins a frontend path onto the configured web app origin.
func (h *Handlers) webURL(path string) string {
	return strings.TrimRight(h.webAppURL, "/") + path
}

// accountEmail returns the authenticated email claim.
func (h *Handlers) accountEmail(c *gin.Context) string {
	return c.GetString(string(ctxkeys.KeyEmail))
}

// pageParams reads cursor pagination query parameters.
func pageParams(c *gin.Context) (*pagination.Params, error) {
	first, _ := strconv.Atoi(c.Query("first"))
	last, _ := strconv.Atoi(c.Query("last"))
	return pagination.Parse(first, c.Query("after"), last, c.Query("before"))
}

// fetchSubscription loads the landlord's subscription row. A missing row
// returns (nil, nil): a landlord with no subscription yet.
func (h *Handlers) fetchSubscription(ctx context.Context, landlordID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := h.db.QueryRowContext(ctx, `
		SELECT id, landlord_id, subscription_status, stripe_subscription_id, stripe_customer_id,
		       current_period_end, trial_active, trial_end, created_at, updated_at
		FROM rentzentro.subscriptions
		WHERE landlord_id = $1
	`, landlordID).Scan(&sub.ID, &sub.LandlordID, &sub.Status, &sub.StripeSubscriptionID,
		&sub.StripeCustomerID, &sub.CurrentPeriodEnd, &sub.TrialActive, &sub.TrialEnd,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch subscription: %w", err)
	}
	return &sub, nil
}

// fetchCreditTotals returns the purchased and used signature counts. Both
// queries must succeed; a read failure denies credit-gated actions.
func (h *Handlers) fetchCreditTotals(ctx context.Context, landlordID string) (purchased, used int, err error) {
	err = h.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(signatures), 0) FROM rentzentro.purchases WHERE landlord_id = $1
	`, landlordID).Scan(&purchased)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch purchases: %w", err)
	}
	err = h.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rentzentro.usage_entries WHERE landlord_id = $1
	`, landlordID).Scan(&used)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch usage: %w", err)
	}
	return purchased, used, nil
}

// fetchAccount loads an account profile row.
func (h *Handlers) fetchAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	err := h.db.QueryRowContext(ctx, `
		SELECT id, auth_provider_id, email, display_name, role,
		       stripe_customer_id, stripe_connect_account_id, payouts_enabled,
		       created_at, updated_at
		FROM rentzentro.accounts
		WHERE id = $1
	`, accountID).Scan(&account.ID, &account.AuthProviderID, &account.Email,
		&account.DisplayName, &account.Role, &account.StripeCustomerID,
		&account.StripeConnectAccountID, &account.PayoutsEnabled,
		&account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	return &account, nil
}
