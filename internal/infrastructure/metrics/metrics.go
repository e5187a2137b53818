package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	WebhooksReceived    *prometheus.CounterVec
	WebhooksRejected    *prometheus.CounterVec
	Redactions          *prometheus.CounterVec
	RedactionFailures   prometheus.Counter
	ExportJobs          *prometheus.CounterVec
	SubscriptionRetries prometheus.Counter
	PermanentFailures   prometheus.Counter
}

// New registers the pipeline collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_compliance_webhooks_received_total",
			Help: "Verified compliance webhooks accepted, by topic.",
		}, []string{"topic"}),
		WebhooksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_compliance_webhooks_rejected_total",
			Help: "Rejected compliance webhook requests, by reason.",
		}, []string{"reason"}),
		Redactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_compliance_redactions_total",
			Help: "Completed contact redactions, by type.",
		}, []string{"type"}),
		RedactionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "shopify_compliance_redaction_failures_total",
			Help: "Contact redactions that failed or failed verification.",
		}),
		ExportJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_compliance_export_jobs_total",
			Help: "Data export jobs processed, by outcome.",
		}, []string{"outcome"}),
		SubscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "shopify_compliance_subscription_retries_total",
			Help: "Webhook subscription retry jobs scheduled.",
		}),
		PermanentFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "shopify_compliance_subscription_permanent_failures_total",
			Help: "Hooks escalated to requires_manual_intervention.",
		}),
	}
}

// NewNop returns metrics on a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
