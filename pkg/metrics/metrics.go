package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Issuance metrics
	CertificatesIssued  prometheus.Counter
	CertificatesUpdated prometheus.Counter
	IssuanceSkipped     *prometheus.CounterVec

	// Rendering metrics
	RenderTotal   *prometheus.CounterVec
	RenderLatency *prometheus.HistogramVec

	// Provider metrics
	ProviderProbes  *prometheus.CounterVec
	ProviderHealthy *prometheus.GaugeVec
	ProviderSkipped *prometheus.CounterVec

	// Delivery metrics
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryLatency  prometheus.Histogram
	DeliveryEnqueued prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them on reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CertificatesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Total number of newly issued certificates",
		}),
		CertificatesUpdated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_updated_total",
			Help:      "Total number of refreshed certificates",
		}),
		IssuanceSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issuance_skipped_total",
			Help:      "Recipients skipped during batch issuance",
		}, []string{"reason"}),

		RenderTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_total",
			Help:      "Certificate render attempts by format and result",
		}, []string{"format", "result"}),
		RenderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Duration of certificate rendering",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"format"}),

		ProviderProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_probes_total",
			Help:      "Live provider health probes by provider and result",
		}, []string{"provider", "result"}),
		ProviderHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_healthy",
			Help:      "Last probed provider health (1 healthy, 0 unhealthy)",
		}, []string{"provider"}),
		ProviderSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_skipped_total",
			Help:      "Provider candidates skipped during sender selection",
		}, []string{"provider", "reason"}),

		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery intents by provider and outcome",
		}, []string{"provider", "status"}),
		DeliveryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent on a single delivery intent",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		DeliveryEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_enqueued_total",
			Help:      "Delivery jobs published to the queue",
		}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// NewNop returns metrics registered on a private registry.
func NewNop() *Metrics {
	return NewMetrics("certify", prometheus.NewRegistry())
}
