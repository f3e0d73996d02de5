package providers

import (
	"log/slog"
	"sync"
	"time"
)

// unhealthyAfter is the consecutive-failure count at which a provider is
// reported unhealthy.
const unhealthyAfter = 3

// Health is a provider's passive health snapshot, accumulated from request
// outcomes. It feeds the readiness endpoint and never influences routing:
// fallback order stays strictly as configured.
type Health struct {
	// Healthy indicates whether the provider is currently considered healthy
	Healthy bool

	// ConsecutiveFailures counts sequential failed requests
	ConsecutiveFailures int

	// TotalRequests is the total number of requests sent to this provider
	TotalRequests int64

	// FailedRequests is the total number of failed requests
	FailedRequests int64

	// LastError is the most recent failure message (empty if none)
	LastError string

	// LastSuccess is the timestamp of the last successful request
	LastSuccess time.Time

	// LastUpdate is the timestamp of the last recorded outcome
	LastUpdate time.Time
}

// healthTracker accumulates request outcomes for one provider.
type healthTracker struct {
	mu       sync.RWMutex
	provider string
	health   Health
}

func newHealthTracker(provider string) *healthTracker {
	return &healthTracker{
		provider: provider,
		// Start optimistic
		health: Health{Healthy: true},
	}
}

// Record notes a request outcome. Crossing the consecutive-failure
// threshold flips the provider to unhealthy and logs once per flip.
func (t *healthTracker) Record(success bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.health.TotalRequests++
	t.health.LastUpdate = time.Now()

	if success {
		t.health.Healthy = true
		t.health.ConsecutiveFailures = 0
		t.health.LastError = ""
		t.health.LastSuccess = t.health.LastUpdate
		return
	}

	t.health.FailedRequests++
	t.health.ConsecutiveFailures++
	if err != nil {
		t.health.LastError = err.Error()
	}

	if t.health.ConsecutiveFailures >= unhealthyAfter && t.health.Healthy {
		t.health.Healthy = false
		slog.Warn("provider marked unhealthy",
			"provider", t.provider,
			"consecutive_failures", t.health.ConsecutiveFailures,
			"error", t.health.LastError,
		)
	}
}

// Snapshot returns a copy of the current health state.
func (t *healthTracker) Snapshot() Health {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.health
}
