package metrics

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/saturn/pkg/config"
)

func testMetricsConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:                true,
		Namespace:              "test",
		Subsystem:              "saturn",
		RequestDurationBuckets: []float64{0.1, 0.5, 1, 5},
		TokenCountBuckets:      []float64{100, 1000, 10000},
	}
}

func TestNewCollectorDefaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	collector := NewCollector(cfg, nil)

	if collector.registry == nil {
		t.Fatal("collector has no registry")
	}
	if cfg.Namespace != "mercator" || cfg.Subsystem != "saturn" {
		t.Errorf("defaults not applied: namespace=%q subsystem=%q", cfg.Namespace, cfg.Subsystem)
	}
	if len(cfg.RequestDurationBuckets) == 0 || len(cfg.TokenCountBuckets) == 0 {
		t.Error("bucket defaults not applied")
	}
}

func TestRecordRequest(t *testing.T) {
	collector := NewCollector(testMetricsConfig(), prometheus.NewRegistry())

	collector.RecordRequest("default", "anthropic", "success", 250*time.Millisecond)
	collector.RecordRequest("default", "anthropic", "success", 100*time.Millisecond)
	collector.RecordRequest("background", "fireworks", "provider_rejected", 50*time.Millisecond)

	got := testutil.ToFloat64(collector.request.requestsTotal.WithLabelValues("default", "anthropic", "success"))
	if got != 2 {
		t.Errorf("requests_total{default,anthropic,success} = %v, want 2", got)
	}
	got = testutil.ToFloat64(collector.request.requestsTotal.WithLabelValues("background", "fireworks", "provider_rejected"))
	if got != 1 {
		t.Errorf("requests_total{background,fireworks,provider_rejected} = %v, want 1", got)
	}
}

func TestRecordTokens(t *testing.T) {
	collector := NewCollector(testMetricsConfig(), prometheus.NewRegistry())

	collector.RecordTokens("anthropic", "claude-sonnet-4", 120, 45)
	collector.RecordTokens("anthropic", "claude-sonnet-4", 80, 0)

	input := testutil.ToFloat64(collector.request.tokensTotal.WithLabelValues("anthropic", "claude-sonnet-4", "input"))
	if input != 200 {
		t.Errorf("input tokens = %v, want 200", input)
	}
	output := testutil.ToFloat64(collector.request.tokensTotal.WithLabelValues("anthropic", "claude-sonnet-4", "output"))
	if output != 45 {
		t.Errorf("output tokens = %v, want 45", output)
	}
}

func TestActiveStreamsGauge(t *testing.T) {
	collector := NewCollector(testMetricsConfig(), prometheus.NewRegistry())

	collector.StreamStarted()
	collector.StreamStarted()
	collector.StreamEnded()

	got := testutil.ToFloat64(collector.request.activeStreams)
	if got != 1 {
		t.Errorf("active_streams = %v, want 1", got)
	}
}

func TestRecordProviderCall(t *testing.T) {
	collector := NewCollector(testMetricsConfig(), prometheus.NewRegistry())

	collector.RecordProviderCall("fireworks", "glm-4p6", 300*time.Millisecond, "")
	collector.RecordProviderCall("fireworks", "glm-4p6", 100*time.Millisecond, "transient")

	calls := testutil.ToFloat64(collector.provider.requests.WithLabelValues("fireworks", "glm-4p6"))
	if calls != 2 {
		t.Errorf("provider_requests_total = %v, want 2", calls)
	}
	errs := testutil.ToFloat64(collector.provider.errors.WithLabelValues("fireworks", "transient"))
	if errs != 1 {
		t.Errorf("provider_errors_total{transient} = %v, want 1", errs)
	}
}

func TestProviderHealthGauge(t *testing.T) {
	collector := NewCollector(testMetricsConfig(), prometheus.NewRegistry())

	collector.UpdateProviderHealth("anthropic", true)
	if got := testutil.ToFloat64(collector.provider.health.WithLabelValues("anthropic")); got != 1 {
		t.Errorf("provider_health = %v, want 1", got)
	}

	collector.UpdateProviderHealth("anthropic", false)
	if got := testutil.ToFloat64(collector.provider.health.WithLabelValues("anthropic")); got != 0 {
		t.Errorf("provider_health = %v, want 0", got)
	}
}

func TestDisabledCollectorRecordsNothing(t *testing.T) {
	cfg := testMetricsConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordRequest("default", "anthropic", "success", time.Second)
	collector.RecordTokens("anthropic", "claude-sonnet-4", 100, 100)
	collector.StreamStarted()

	if got := testutil.ToFloat64(collector.request.requestsTotal.WithLabelValues("default", "anthropic", "success")); got != 0 {
		t.Errorf("disabled collector recorded requests_total = %v", got)
	}
	if got := testutil.ToFloat64(collector.request.activeStreams); got != 0 {
		t.Errorf("disabled collector moved active_streams = %v", got)
	}
}

func TestHandlerExposition(t *testing.T) {
	collector := NewCollector(testMetricsConfig(), prometheus.NewRegistry())
	collector.RecordRequest("default", "anthropic", "success", time.Second)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	collector.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "test_saturn_requests_total") {
		t.Errorf("exposition missing requests_total:\n%s", body)
	}
}

func TestCardinalityLimiterFoldsModels(t *testing.T) {
	limiter := newCardinalityLimiter(3)

	for i := 0; i < 3; i++ {
		if !limiter.allow(fmt.Sprintf("p:m%d", i)) {
			t.Fatalf("label %d rejected below the cap", i)
		}
	}
	if limiter.allow("p:m99") {
		t.Error("label admitted beyond the cap")
	}
	if !limiter.allow("p:m1") {
		t.Error("known label rejected after the cap")
	}
}
