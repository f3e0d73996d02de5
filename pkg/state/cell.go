package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/saturn/pkg/auth"
	"mercator-hq/saturn/pkg/config"
)

// Cell is the process-wide holder of the current Snapshot.
//
// Reads take the lock only long enough to copy the snapshot pointer.
// Reload builds the replacement snapshot entirely off-lock, then swaps
// under a write lock held for the pointer assignment. A failed load or
// build never swaps: the previous snapshot keeps serving and the error
// goes back to the caller.
//
// The token store identity and the listen address are fixed for the
// process lifetime; a reload that changes the listen address logs a
// warning and otherwise takes effect on the next restart.
type Cell struct {
	mu      sync.RWMutex
	current *Snapshot

	// reloadMu serializes reloads. Each reload produces a complete
	// snapshot, so last writer wins is fine; serializing just keeps the
	// generation counter and registry teardown orderly.
	reloadMu sync.Mutex

	path       string
	tokens     *auth.TokenStore
	generation uint64
}

// NewCell creates the cell around an initial snapshot. path is the config
// file reloads are read from.
func NewCell(initial *Snapshot, path string, tokens *auth.TokenStore) *Cell {
	c := &Cell{
		path:   path,
		tokens: tokens,
	}
	c.install(initial)
	return c
}

// Current returns the live snapshot. Callers keep using the returned
// snapshot for the whole request; it never mutates.
func (c *Cell) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Path returns the config file path reloads read from.
func (c *Cell) Path() string {
	return c.path
}

// Reload reads the config file, builds a fresh snapshot, and installs it.
// The retired registry is closed after the swap; in-flight requests hold
// their own snapshot reference and are unaffected.
func (c *Cell) Reload(ctx context.Context) (*Snapshot, error) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	cfg, err := config.LoadWithEnvOverrides(c.path)
	if err != nil {
		return nil, fmt.Errorf("reload rejected: %w", err)
	}

	snapshot, err := Build(cfg, c.tokens)
	if err != nil {
		return nil, fmt.Errorf("reload rejected: %w", err)
	}

	old := c.install(snapshot)
	if old != nil {
		if old.Config.Proxy.ListenAddress != cfg.Proxy.ListenAddress {
			slog.WarnContext(ctx, "listen address changed in config; restart required to apply",
				"current", old.Config.Proxy.ListenAddress,
				"configured", cfg.Proxy.ListenAddress,
			)
		}
		old.Registry.Close()
	}

	slog.InfoContext(ctx, "configuration reloaded",
		"generation", snapshot.Generation,
		"providers", snapshot.Registry.Len(),
		"models", len(snapshot.Resolver.Models()),
	)
	return snapshot, nil
}

// install swaps the snapshot pointer and stamps its generation. Returns
// the snapshot it replaced, nil on first install.
func (c *Cell) install(snapshot *Snapshot) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	snapshot.Generation = c.generation
	old := c.current
	c.current = snapshot
	return old
}
