package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inventory"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	purchases        *prometheus.CounterVec
	purchaseDuration *prometheus.HistogramVec
	catalogAttempts  *prometheus.CounterVec
	eventsPublished  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		purchases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Purchase attempts by outcome.",
		}, []string{"outcome"}),
		purchaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "purchase_duration_seconds",
			Help:      "End-to-end purchase latency including the catalog lookup.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		catalogAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_attempts_total",
			Help:      "Catalog HTTP attempts by result.",
		}, []string{"result"}),
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Purchase events handed to the broker by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObservePurchase(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome).Inc()
	m.purchaseDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) CatalogAttempt(result string) {
	if m == nil {
		return
	}
	m.catalogAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) EventPublished(result string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(result).Inc()
}
