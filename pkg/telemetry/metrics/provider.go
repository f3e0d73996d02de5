package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/saturn/pkg/config"
)

// ProviderMetrics tracks upstream provider behavior.
//
// Families:
//   - provider_requests_total{provider, model}
//   - provider_latency_seconds{provider, model}
//   - provider_errors_total{provider, error_type}
//   - provider_health{provider} (1 healthy, 0 unhealthy)
type ProviderMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	health   *prometheus.GaugeVec
}

// NewProviderMetrics creates and registers the provider metric families.
func NewProviderMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_requests_total",
				Help:      "Upstream attempts per provider and model",
			},
			[]string{"provider", "model"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_latency_seconds",
				Help:      "Upstream call latency in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_errors_total",
				Help:      "Upstream failures by provider and error kind",
			},
			[]string{"provider", "error_type"},
		),

		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_health",
				Help:      "Passive provider health (1 healthy, 0 unhealthy)",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		pm.requests,
		pm.latency,
		pm.errors,
		pm.health,
	)
	return pm
}

// RecordCall records one upstream attempt and its latency.
func (pm *ProviderMetrics) RecordCall(provider, model string, latency time.Duration) {
	pm.requests.WithLabelValues(provider, model).Inc()
	pm.latency.WithLabelValues(provider, model).Observe(latency.Seconds())
}

// RecordError counts one upstream failure.
func (pm *ProviderMetrics) RecordError(provider, errType string) {
	pm.errors.WithLabelValues(provider, errType).Inc()
}

// UpdateHealth publishes the passive health flag for a provider.
func (pm *ProviderMetrics) UpdateHealth(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	pm.health.WithLabelValues(provider).Set(v)
}
