package providerfactory

import (
	"log/slog"
	"sort"

	"mercator-hq/saturn/pkg/auth"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/providers"
)

// Registry is an immutable name-to-adapter map built from one
// configuration snapshot. A reload builds a fresh Registry rather than
// mutating this one; the old registry is closed once its last in-flight
// request finishes.
type Registry struct {
	providers map[string]providers.Provider
}

// Build constructs an adapter for every enabled provider in the config.
//
// A provider that fails construction (unknown type, missing credential or
// endpoint) is omitted rather than failing the whole build: requests
// mapped to it report the provider as unavailable while the rest of the
// table keeps serving. Each omission is logged once, here.
func Build(cfg *config.Config, tokens *auth.TokenStore) *Registry {
	reg := &Registry{
		providers: make(map[string]providers.Provider, len(cfg.Providers)),
	}

	for name, pc := range cfg.Providers {
		if !pc.IsEnabled() {
			slog.Debug("provider disabled", "provider", name)
			continue
		}

		provider, err := New(Resolve(name, pc), tokens)
		if err != nil {
			slog.Warn("provider omitted from registry",
				"provider", name,
				"error", err,
			)
			continue
		}
		reg.providers[name] = provider
	}

	slog.Info("provider registry built",
		"providers", len(reg.providers),
		"configured", len(cfg.Providers),
	)
	return reg
}

// Get returns the adapter for a provider name.
func (r *Registry) Get(name string) (providers.Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.providers)
}

// Health returns the passive health snapshot of every registered
// provider, keyed by name.
func (r *Registry) Health() map[string]providers.Health {
	health := make(map[string]providers.Health, len(r.providers))
	for name, p := range r.providers {
		health[name] = p.Health()
	}
	return health
}

// Close closes every registered adapter. The registry must not be used
// afterwards.
func (r *Registry) Close() {
	for name, p := range r.providers {
		p.Close()
		slog.Debug("provider closed", "provider", name)
	}
}
