package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	quotesServed     *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	checkoutsCreated prometheus.Counter
}

// New registers the domain instruments on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		quotesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octasure_quotes_served_total",
			Help: "Quotes returned to callers, per provider.",
		}, []string{"provider"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octasure_provider_failures_total",
			Help: "Provider pricing failures, per provider and failure kind.",
		}, []string{"provider", "kind"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octasure_webhook_events_total",
			Help: "Payment webhook deliveries, per outcome.",
		}, []string{"outcome"}),
		checkoutsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "octasure_checkouts_created_total",
			Help: "Hosted checkout sessions created.",
		}),
	}
	reg.MustRegister(m.quotesServed, m.providerFailures, m.webhookEvents, m.checkoutsCreated)
	return m
}

func (m *Metrics) IncQuoteServed(provider string) {
	if m == nil {
		return
	}
	m.quotesServed.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncProviderFailure(provider, kind string) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(provider, kind).Inc()
}

func (m *Metrics) IncWebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCheckoutCreated() {
	if m == nil {
		return
	}
	m.checkoutsCreated.Inc()
}
