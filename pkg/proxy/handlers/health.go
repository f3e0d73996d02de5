package handlers

import (
	"net/http"
	"time"

	"mercator-hq/saturn/pkg/proxy"
	"mercator-hq/saturn/pkg/state"
)

// HealthHandler handles liveness probes on GET /health.
type HealthHandler struct {
	version string
	started time.Time
}

// NewHealthHandler creates a new liveness handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, started: time.Now()}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	proxy.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"timestamp":      time.Now().Unix(),
	})
}

// ReadyHandler handles readiness probes on GET /health/ready. Readiness is
// derived from passive provider health: the service is ready while at
// least one registered provider is healthy. Health never reorders
// fallback; it only feeds this endpoint.
type ReadyHandler struct {
	cell *state.Cell
}

// NewReadyHandler creates a new readiness handler.
func NewReadyHandler(cell *state.Cell) *ReadyHandler {
	return &ReadyHandler{cell: cell}
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.cell.Current()
	health := snap.Registry.Health()

	healthyCount := 0
	providerDetails := make(map[string]interface{}, len(health))
	for name, ph := range health {
		if ph.Healthy {
			healthyCount++
		}

		detail := map[string]interface{}{
			"healthy":              ph.Healthy,
			"consecutive_failures": ph.ConsecutiveFailures,
			"total_requests":       ph.TotalRequests,
			"failed_requests":      ph.FailedRequests,
		}
		if ph.LastError != "" {
			detail["last_error"] = ph.LastError
		}
		if !ph.LastSuccess.IsZero() {
			detail["last_success"] = ph.LastSuccess.Unix()
		}
		providerDetails[name] = detail
	}

	status := "ready"
	statusCode := http.StatusOK
	if healthyCount == 0 {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	proxy.WriteJSON(w, statusCode, map[string]interface{}{
		"status":     status,
		"generation": snap.Generation,
		"providers": map[string]interface{}{
			"healthy": healthyCount,
			"total":   len(health),
			"detail":  providerDetails,
		},
		"timestamp": time.Now().Unix(),
	})
}
