package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/saturn/pkg/config"
)

// RequestMetrics tracks the proxy's request pipeline.
//
// Families (namespace/subsystem prefixed):
//   - requests_total{route, provider, status}
//   - request_duration_seconds{route, provider}
//   - request_tokens_total{provider, model, type}
//   - fallback_depth (histogram over the attempt index that completed)
//   - active_streams (gauge of open SSE responses)
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	fallbackDepth   prometheus.Histogram
	activeStreams   prometheus.Gauge
}

// NewRequestMetrics creates and registers the request metric families.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Proxied requests by route category, serving provider, and outcome",
			},
			[]string{"route", "provider", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end request duration in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"route", "provider"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_tokens_total",
				Help:      "Tokens reported by upstream responses",
			},
			[]string{"provider", "model", "type"},
		),

		fallbackDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "fallback_depth",
				Help:      "Index of the mapping attempt that completed the request (0 = primary)",
				Buckets:   []float64{0, 1, 2, 3, 4, 5},
			},
		),

		activeStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_streams",
				Help:      "Currently open SSE responses",
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.tokensTotal,
		rm.fallbackDepth,
		rm.activeStreams,
	)
	return rm
}

// RecordRequest records one completed request.
func (rm *RequestMetrics) RecordRequest(route, provider, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(route, provider, status).Inc()
	rm.requestDuration.WithLabelValues(route, provider).Observe(duration.Seconds())
}

// RecordTokens records input and output token counts.
func (rm *RequestMetrics) RecordTokens(provider, model string, inputTokens, outputTokens int) {
	if inputTokens > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordFallbackDepth records the completing attempt's index.
func (rm *RequestMetrics) RecordFallbackDepth(depth int) {
	rm.fallbackDepth.Observe(float64(depth))
}

// StreamStarted increments the open-stream gauge.
func (rm *RequestMetrics) StreamStarted() {
	rm.activeStreams.Inc()
}

// StreamEnded decrements the open-stream gauge.
func (rm *RequestMetrics) StreamEnded() {
	rm.activeStreams.Dec()
}
