package handlers

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rentzentro/platform/pkg/monitoring"
)

// Metrics holds the service-specific Prometheus metrics recorded by the
// handlers. A nil Metrics (or nil field) turns recording into a no-op so
// tests run without a registry.
type Metrics struct {
	WebhookEvents            *prometheus.CounterVec
	WebhookSignatureFailures *prometheus.CounterVec
	CheckoutSessions         *prometheus.CounterVec
	CreditConsumptions       *prometheus.CounterVec
	AccessDecisions          *prometheus.CounterVec
	ListingCacheOps          *prometheus.CounterVec
	DBQueries                *prometheus.CounterVec
	DBDuration               *prometheus.HistogramVec
	DBConnections            *prometheus.GaugeVec
}

// NewMetrics registers the service metrics on the collector.
func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	dbQueries, dbDuration, dbConnections := mc.CreateDatabaseMetrics()
	return &Metrics{
		WebhookEvents:            mc.NewCounter("webhook_events_total", "Webhook events by provider, type and outcome", []string{"provider", "event_type", "outcome"}),
		WebhookSignatureFailures: mc.NewCounter("webhook_signature_failures_total", "Webhook deliveries rejected for bad signatures", []string{"provider"}),
		CheckoutSessions:         mc.NewCounter("checkout_sessions_total", "Hosted checkout sessions created by purpose", []string{"purpose"}),
		CreditConsumptions:       mc.NewCounter("credit_consumptions_total", "Signature credit consumption attempts by outcome", []string{"outcome"}),
		AccessDecisions:          mc.NewCounter("access_decisions_total", "Billing gate decisions", []string{"outcome"}),
		ListingCacheOps:          mc.NewCounter("listing_cache_ops_total", "Public listing cache operations", []string{"op"}),
		DBQueries:                dbQueries,
		DBDuration:               dbDuration,
		DBConnections:            dbConnections,
	}
}

func (h *Handlers) recordWebhookEvent(provider, eventType, outcome string) {
	if h.metrics == nil || h.metrics.WebhookEvents == nil {
		return
	}
	h.metrics.WebhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
}

func (h *Handlers) recordWebhookSignatureFailure(provider string) {
	if h.metrics == nil || h.metrics.WebhookSignatureFailures == nil {
		return
	}
	h.metrics.WebhookSignatureFailures.WithLabelValues(provider).Inc()
}

func (h *Handlers) recordCheckoutSession(purpose string) {
	if h.metrics == nil || h.metrics.CheckoutSessions == nil {
		return
	}
	h.metrics.CheckoutSessions.WithLabelValues(purpose).Inc()
}

func (h *Handlers) recordCreditConsumption(outcome string) {
	if h.metrics == nil || h.metrics.CreditConsumptions == nil {
		return
	}
	h.metrics.CreditConsumptions.WithLabelValues(outcome).Inc()
}

func (h *Handlers) recordAccessDecision(outcome string) {
	if h.metrics == nil || h.metrics.AccessDecisions == nil {
		return
	}
	h.metrics.AccessDecisions.WithLabelValues(outcome).Inc()
}

func (h *Handlers) recordListingCacheOp(op string) {
	if h.metrics == nil || h.metrics.ListingCacheOps == nil {
		return
	}
	h.metrics.ListingCacheOps.WithLabelValues(op).Inc()
}
