// Package metrics collects Prometheus metrics for the proxy.
//
// All metrics live in a dedicated registry owned by the Collector, so
// tests can build isolated collectors and the exposition handler serves
// exactly what the proxy registered. Label cardinality on the model axis
// is bounded: model names arrive from clients and are folded into
// "other" once the limiter fills.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/saturn/pkg/config"
)

// maxModelCardinality bounds distinct (provider, model) label pairs.
const maxModelCardinality = 2000

// Collector owns the registry and the metric families the proxy records.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	request  *RequestMetrics
	provider *ProviderMetrics

	models *cardinalityLimiter
}

// NewCollector creates a collector registered against the given registry.
// A nil registry gets a fresh private one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "mercator"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "saturn"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}
	}
	if len(cfg.TokenCountBuckets) == 0 {
		cfg.TokenCountBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000}
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		request:  NewRequestMetrics(cfg, registry),
		provider: NewProviderMetrics(cfg, registry),
		models:   newCardinalityLimiter(maxModelCardinality),
	}
}

// RecordRequest records one completed proxy request.
//
// route is the routing category ("default", "think", "background",
// "websearch", "subagent", "passthrough", "prompt_rule"); provider is the
// provider that served it, or "none" when dispatch never reached one;
// status is "success" or the error kind from the error envelope.
func (c *Collector) RecordRequest(route, provider, status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.request.RecordRequest(route, provider, status, duration)
}

// RecordTokens records usage reported by an upstream response.
func (c *Collector) RecordTokens(provider, model string, inputTokens, outputTokens int) {
	if !c.config.Enabled {
		return
	}
	c.request.RecordTokens(provider, c.boundModel(provider, model), inputTokens, outputTokens)
}

// RecordFallbackDepth records which attempt in the fallback chain
// completed the request: 0 is the primary mapping.
func (c *Collector) RecordFallbackDepth(depth int) {
	if !c.config.Enabled {
		return
	}
	c.request.RecordFallbackDepth(depth)
}

// StreamStarted marks a streaming response as open.
func (c *Collector) StreamStarted() {
	if !c.config.Enabled {
		return
	}
	c.request.StreamStarted()
}

// StreamEnded marks a streaming response as closed.
func (c *Collector) StreamEnded() {
	if !c.config.Enabled {
		return
	}
	c.request.StreamEnded()
}

// RecordProviderCall records one upstream attempt. errType is empty on
// success, otherwise the provider error kind ("transient", "rejected",
// "protocol", "not_available").
func (c *Collector) RecordProviderCall(provider, model string, latency time.Duration, errType string) {
	if !c.config.Enabled {
		return
	}
	model = c.boundModel(provider, model)
	c.provider.RecordCall(provider, model, latency)
	if errType != "" {
		c.provider.RecordError(provider, errType)
	}
}

// UpdateProviderHealth publishes a provider's passive health flag.
func (c *Collector) UpdateProviderHealth(provider string, healthy bool) {
	if !c.config.Enabled {
		return
	}
	c.provider.UpdateHealth(provider, healthy)
}

// Registry returns the collector's Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// boundModel folds models beyond the cardinality limit into "other".
func (c *Collector) boundModel(provider, model string) string {
	if c.models.allow(fmt.Sprintf("%s:%s", provider, model)) {
		return model
	}
	return "other"
}

// cardinalityLimiter caps the number of distinct label sets a metric
// family can grow.
type cardinalityLimiter struct {
	mu   sync.RWMutex
	max  int
	seen map[string]struct{}
}

func newCardinalityLimiter(max int) *cardinalityLimiter {
	return &cardinalityLimiter{
		max:  max,
		seen: make(map[string]struct{}),
	}
}

// allow reports whether the label set may be used as-is. Known sets are
// always allowed; new sets are admitted until the cap, then rejected.
func (l *cardinalityLimiter) allow(labelSet string) bool {
	l.mu.RLock()
	_, ok := l.seen[labelSet]
	l.mu.RUnlock()
	if ok {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[labelSet]; ok {
		return true
	}
	if len(l.seen) >= l.max {
		return false
	}
	l.seen[labelSet] = struct{}{}
	return true
}
