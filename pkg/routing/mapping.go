package routing

import (
	"sort"

	"mercator-hq/saturn/pkg/config"
)

// Target is one (provider, upstream model) attempt in a fallback chain.
type Target struct {
	// Provider is the provider name from the providers section.
	Provider string

	// Model is the upstream model identifier to send.
	Model string

	// InjectContinuationPrompt carries the mapping's continuation flag
	// through to the dispatcher.
	InjectContinuationPrompt bool
}

// Resolver maps logical model names to their provider fallback chains.
// Chains are sorted once at construction; Resolve is read-only and safe
// for concurrent use.
type Resolver struct {
	models map[string][]Target
}

// NewResolver builds a resolver from the models table. Each logical
// model's mappings are ordered by priority ascending, ties keeping their
// configured order.
func NewResolver(models map[string][]config.ModelMapping) *Resolver {
	resolved := make(map[string][]Target, len(models))
	for name, mappings := range models {
		sorted := make([]config.ModelMapping, len(mappings))
		copy(sorted, mappings)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Priority < sorted[j].Priority
		})

		targets := make([]Target, len(sorted))
		for i, m := range sorted {
			targets[i] = Target{
				Provider:                 m.Provider,
				Model:                    m.Model,
				InjectContinuationPrompt: m.InjectContinuationPrompt,
			}
		}
		resolved[name] = targets
	}
	return &Resolver{models: resolved}
}

// Resolve returns the ordered fallback chain for a logical model.
func (r *Resolver) Resolve(logicalModel string) ([]Target, error) {
	targets, ok := r.models[logicalModel]
	if !ok {
		return nil, &UnknownModelError{Model: logicalModel}
	}
	if len(targets) == 0 {
		return nil, &NoProvidersForModelError{Model: logicalModel}
	}
	return targets, nil
}

// Models returns the configured logical model names, sorted.
func (r *Resolver) Models() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
