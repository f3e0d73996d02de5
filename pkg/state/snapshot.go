// Package state holds the hot-reloadable runtime state.
//
// A Snapshot is an immutable bundle of everything a request needs:
// parsed configuration, compiled router, model resolver, and the provider
// registry. The Cell hands out the current snapshot and swaps in new ones
// atomically; a request works against the snapshot it started with for
// its whole lifetime, so a reload never changes routing or providers
// under an in-flight request.
package state

import (
	"fmt"
	"time"

	"mercator-hq/saturn/pkg/auth"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/providerfactory"
	"mercator-hq/saturn/pkg/routing"
)

// Snapshot is one immutable generation of runtime state.
type Snapshot struct {
	// Config is the parsed configuration this snapshot was built from.
	Config *config.Config

	// Router classifies requests into route decisions.
	Router *routing.Router

	// Resolver maps logical models to provider fallback chains.
	Resolver *routing.Resolver

	// Registry holds the live provider adapters.
	Registry *providerfactory.Registry

	// Generation counts installed snapshots, starting at 1. Set by the
	// Cell on swap.
	Generation uint64

	// BuiltAt is when the snapshot was constructed.
	BuiltAt time.Time
}

// Build constructs a complete snapshot from a validated configuration.
// Construction happens entirely off the cell lock; a build failure leaves
// no half-built state behind.
func Build(cfg *config.Config, tokens *auth.TokenStore) (*Snapshot, error) {
	resolver := routing.NewResolver(cfg.Models)

	router, err := routing.NewRouter(cfg.Router, resolver.Models())
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	registry := providerfactory.Build(cfg, tokens)

	return &Snapshot{
		Config:   cfg,
		Router:   router,
		Resolver: resolver,
		Registry: registry,
		BuiltAt:  time.Now(),
	}, nil
}
