// Package stripeclient wraps the Stripe API operations the platform
// uses: hosted checkout for subscriptions, credit packs and rent,
// billing portal sessions, Connect onboarding for landlord payouts,
// and webhook verification.
package stripeclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/accountlink"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Checkout purposes stored in session metadata. The webhook dispatcher
// routes completed sessions on this value.
const (
	PurposeSubscription = "subscription"
	PurposeCreditPack   = "credit_pack"
	PurposeRent         = "rent"
)

// Client wraps Stripe API operations. All payment flows go through
// Stripe Checkout or the Billing Portal; card data never touches this
// service.
type Client struct {
	secretKey     string
	webhookSecret string
	logger        logging.Logger
}

// Config carries the two Stripe secrets. Either may be empty in
// development; the affected surfaces then answer 503.
type Config struct {
	SecretKey     string
	WebhookSecret string
	Logger        logging.Logger
}

// NewClient wires the secret key into the stripe-go library, which
// keys all package-level calls off a process-wide credential.
func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		logger:        cfg.Logger,
	}
}

// IsConfigured reports whether outbound Stripe calls can be made.
func (c *Client) IsConfigured() bool {
	return c.secretKey != ""
}

// HasWebhookSecret reports whether inbound webhooks can be verified.
func (c *Client) HasWebhookSecret() bool {
	return c.webhookSecret != ""
}

// CustomerInfo identifies the platform account behind a Stripe customer.
type CustomerInfo struct {
	AccountID string
	Email     string
	Name      string
}

// CreateOrGetCustomer looks a customer up by the account_id stamped in
// its metadata and creates one when the search comes up empty. Search
// failures fall through to creation; a duplicate customer is harmless,
// a blocked checkout is not.
func (c *Client) CreateOrGetCustomer(ctx context.Context, info CustomerInfo) (*stripe.Customer, error) {
	searchParams := &stripe.CustomerSearchParams{}
	searchParams.Context = ctx
	searchParams.Query = fmt.Sprintf("metadata['account_id']:'%s'", info.AccountID)

	iter := customer.Search(searchParams)
	for iter.Next() {
		existing := iter.Customer()
		c.logger.WithField("customer_id", existing.ID).Debug("Reusing Stripe customer")
		return existing, nil
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Warn("Stripe customer search failed, creating a new customer")
	}

	createParams := &stripe.CustomerParams{
		Email:    stripe.String(info.Email),
		Name:     stripe.String(info.Name),
		Metadata: map[string]string{"account_id": info.AccountID},
	}
	createParams.Context = ctx

	created, err := customer.New(createParams)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"customer_id": created.ID,
		"account_id":  info.AccountID,
	}).Info("Stripe customer created")
	return created, nil
}

// SubscriptionCheckoutParams for starting a plan subscription.
type SubscriptionCheckoutParams struct {
	CustomerID string
	AccountID  string
	PriceID    string
	SuccessURL string
	CancelURL  string
	TrialDays  int64
}

// CreateSubscriptionCheckout opens a subscription-mode Checkout
// Session. The webhook finishes the flow once Stripe confirms payment.
func (c *Client) CreateSubscriptionCheckout(ctx context.Context, params SubscriptionCheckoutParams) (*stripe.CheckoutSession, error) {
	metadata := map[string]string{
		"purpose":    PurposeSubscription,
		"account_id": params.AccountID,
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Customer: stripe.String(params.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(params.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata:   metadata,
		// Mirror the metadata onto the created subscription so
		// customer.subscription.* events carry the account id too.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	if params.TrialDays > 0 {
		sessionParams.SubscriptionData.TrialPeriodDays = stripe.Int64(params.TrialDays)
	}
	sessionParams.Context = ctx

	sess, err := checkoutsession.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("create subscription checkout: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"session_id": sess.ID,
		"account_id": params.AccountID,
		"price_id":   params.PriceID,
	}).Info("Subscription checkout session opened")
	return sess, nil
}

// adHocLineItem prices a one-off charge inline. Credit packs and rent
// are priced server-side, so no Stripe Price objects exist for them.
func adHocLineItem(currency string, amountCents int64, label string) []*stripe.CheckoutSessionLineItemParams {
	return []*stripe.CheckoutSessionLineItemParams{{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(amountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(label),
			},
		},
		Quantity: stripe.Int64(1),
	}}
}

// CreditPackCheckoutParams for a one-time signature credit purchase.
type CreditPackCheckoutParams struct {
	CustomerID string
	AccountID  string
	Pack       models.CreditPack
	Currency   string
	SuccessURL string
	CancelURL  string
}

// CreateCreditPackCheckout opens a payment-mode Checkout Session for a
// credit pack. The webhook inserts the purchase row only after
// payment_status is paid.
func (c *Client) CreateCreditPackCheckout(ctx context.Context, params CreditPackCheckoutParams) (*stripe.CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(params.CustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  adHocLineItem(params.Currency, params.Pack.AmountCents, params.Pack.Label),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata: map[string]string{
			"purpose":    PurposeCreditPack,
			"account_id": params.AccountID,
			"pack_id":    params.Pack.ID,
			"signatures": strconv.Itoa(params.Pack.Signatures),
		},
	}
	sessionParams.Context = ctx

	sess, err := checkoutsession.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("create credit pack checkout: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"session_id": sess.ID,
		"account_id": params.AccountID,
		"pack_id":    params.Pack.ID,
	}).Info("Credit pack checkout session opened")
	return sess, nil
}

// RentCheckoutParams for a tenant rent payment routed to the landlord's
// connected account.
type RentCheckoutParams struct {
	RentPaymentID      string
	TenantAccountID    string
	ConnectedAccountID string
	AmountCents        int64
	Currency           string
	Description        string
	CustomerEmail      string
	SuccessURL         string
	CancelURL          string
}

// CreateRentCheckout opens a payment-mode Checkout Session whose charge
// is transferred in full to the landlord's connected account (a
// destination charge with no application fee).
func (c *Client) CreateRentCheckout(ctx context.Context, params RentCheckoutParams) (*stripe.CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode:      stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: adHocLineItem(params.Currency, params.AmountCents, params.Description),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(params.ConnectedAccountID),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata: map[string]string{
			"purpose":         PurposeRent,
			"rent_payment_id": params.RentPaymentID,
			"account_id":      params.TenantAccountID,
		},
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	sessionParams.Context = ctx

	sess, err := checkoutsession.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("create rent checkout: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"session_id":      sess.ID,
		"rent_payment_id": params.RentPaymentID,
		"destination":     params.ConnectedAccountID,
	}).Info("Rent checkout session opened")
	return sess, nil
}

// CreateBillingPortalSession opens the hosted portal where landlords
// manage their subscription and payment methods.
func (c *Client) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	portalParams := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	portalParams.Context = ctx

	sess, err := portalsession.New(portalParams)
	if err != nil {
		return nil, fmt.Errorf("create billing portal session: %w", err)
	}
	return sess, nil
}

// GetSubscription fetches the current state of one subscription.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx

	sub, err := subscription.Get(subscriptionID, getParams)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// CancelSubscriptionAtPeriodEnd schedules a cancellation for the end of
// the paid period. Access continues until then.
func (c *Client) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	updateParams := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	updateParams.Context = ctx

	sub, err := subscription.Update(subscriptionID, updateParams)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	c.logger.WithField("subscription_id", subscriptionID).Info("Cancellation scheduled for period end")
	return sub, nil
}

// CreateConnectAccount creates an Express connected account for
// landlord payouts.
func (c *Client) CreateConnectAccount(ctx context.Context, accountID, email string) (*stripe.Account, error) {
	acctParams := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
		Metadata: map[string]string{"account_id": accountID},
	}
	acctParams.Context = ctx

	acct, err := account.New(acctParams)
	if err != nil {
		return nil, fmt.Errorf("create connected account: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"connect_account_id": acct.ID,
		"account_id":         accountID,
	}).Info("Connected account created")
	return acct, nil
}

// CreateOnboardingLink mints a hosted onboarding link for a connected
// account. Links are single-use and expire quickly.
func (c *Client) CreateOnboardingLink(ctx context.Context, connectedAccountID, refreshURL, returnURL string) (*stripe.AccountLink, error) {
	linkParams := &stripe.AccountLinkParams{
		Account:    stripe.String(connectedAccountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	linkParams.Context = ctx

	link, err := accountlink.New(linkParams)
	if err != nil {
		return nil, fmt.Errorf("create onboarding link: %w", err)
	}
	return link, nil
}

// GetConnectAccount fetches a connected account, used to sync the
// payouts_enabled flag after onboarding.
func (c *Client) GetConnectAccount(ctx context.Context, connectedAccountID string) (*stripe.Account, error) {
	getParams := &stripe.AccountParams{}
	getParams.Context = ctx

	acct, err := account.GetByID(connectedAccountID, getParams)
	if err != nil {
		return nil, fmt.Errorf("get connected account: %w", err)
	}
	return acct, nil
}

// VerifyAndParseWebhook checks the Stripe-Signature header (timestamp
// tolerance plus constant-time HMAC comparison) and parses the event.
func (c *Client) VerifyAndParseWebhook(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	return &event, nil
}

// SubscriptionFromEvent decodes the subscription carried by a
// customer.subscription.* event.
func (c *Client) SubscriptionFromEvent(event *stripe.Event) (*stripe.Subscription, error) {
	if !strings.HasPrefix(string(event.Type), "customer.subscription.") {
		return nil, fmt.Errorf("event %s carries no subscription", event.Type)
	}

	var sub stripe.Subscription
	if err := sub.UnmarshalJSON(event.Data.Raw); err != nil {
		return nil, fmt.Errorf("decode subscription event: %w", err)
	}
	return &sub, nil
}

// CheckoutSessionFromEvent decodes the session carried by a
// checkout.session.* event.
func (c *Client) CheckoutSessionFromEvent(event *stripe.Event) (*stripe.CheckoutSession, error) {
	if !strings.HasPrefix(string(event.Type), "checkout.session.") {
		return nil, fmt.Errorf("event %s carries no checkout session", event.Type)
	}

	var sess stripe.CheckoutSession
	if err := sess.UnmarshalJSON(event.Data.Raw); err != nil {
		return nil, fmt.Errorf("decode checkout session event: %w", err)
	}
	return &sess, nil
}

// SubscriptionInfo is the slice of a Stripe subscription the
// subscriptions table stores.
type SubscriptionInfo struct {
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               string
	CurrentPeriodEnd     *time.Time
	AccountID            string
}

// ExtractSubscriptionInfo pulls the stored fields out of a Stripe
// subscription object.
func (c *Client) ExtractSubscriptionInfo(sub *stripe.Subscription) SubscriptionInfo {
	info := SubscriptionInfo{
		StripeSubscriptionID: sub.ID,
		Status:               MapSubscriptionStatus(string(sub.Status), sub.CancelAtPeriodEnd),
	}
	if sub.Customer != nil {
		info.StripeCustomerID = sub.Customer.ID
	}
	if sub.Metadata != nil {
		info.AccountID = sub.Metadata["account_id"]
	}

	// The period end moved onto the subscription item in this API version.
	if items := sub.Items; items != nil && len(items.Data) > 0 {
		if end := items.Data[0].CurrentPeriodEnd; end > 0 {
			t := time.Unix(end, 0)
			info.CurrentPeriodEnd = &t
		}
	}

	return info
}

// MapSubscriptionStatus translates a Stripe subscription status into
// the platform vocabulary. A live subscription with a scheduled
// cancellation becomes active_cancel_at_period_end; unknown statuses
// pass through unchanged, which the access check treats as inactive.
func MapSubscriptionStatus(status string, cancelAtPeriodEnd bool) string {
	switch status {
	case "active", "trialing":
		if cancelAtPeriodEnd {
			return "active_cancel_at_period_end"
		}
		return status
	case "past_due":
		return "past_due"
	case "canceled", "incomplete_expired":
		return "canceled"
	case "unpaid":
		return "unpaid"
	default:
		return status
	}
}
