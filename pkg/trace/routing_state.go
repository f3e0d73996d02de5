package trace

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// recentWindow is how many model@provider entries the state file retains.
const recentWindow = 20

// RoutingInfo is the payload of the routing state file. Shell statusline
// scripts read it to show where the last request went.
type RoutingInfo struct {
	Model     string   `json:"model"`
	Provider  string   `json:"provider"`
	Route     string   `json:"route_type"`
	Timestamp string   `json:"timestamp"`
	Recent    []string `json:"recent"`
}

// RoutingState persists the most recent routing decision plus a rolling
// window of recent model@provider pairs. Writes are best effort: a failure
// is logged at debug and never surfaces to the request path.
type RoutingState struct {
	mu   sync.Mutex
	path string
}

// NewRoutingState returns a state writer for path. An empty path disables
// the file; Record becomes a no-op.
func NewRoutingState(path string) *RoutingState {
	return &RoutingState{path: path}
}

// Record updates the state file with the decision that served a request.
func (s *RoutingState) Record(model, provider, route string) {
	if s == nil || s.path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := []string{model + "@" + provider}
	if prev, err := s.load(); err == nil {
		recent = append(recent, prev.Recent...)
	}
	if len(recent) > recentWindow {
		recent = recent[:recentWindow]
	}

	info := RoutingInfo{
		Model:     model,
		Provider:  provider,
		Route:     route,
		Timestamp: time.Now().Format("15:04:05"),
		Recent:    recent,
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		slog.Debug("routing state directory unavailable", "path", s.path, "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		slog.Debug("routing state write failed", "path", s.path, "error", err)
	}
}

// Load reads the current state file.
func (s *RoutingState) Load() (*RoutingInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *RoutingState) load() (*RoutingInfo, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var info RoutingInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse routing state: %w", err)
	}
	return &info, nil
}
