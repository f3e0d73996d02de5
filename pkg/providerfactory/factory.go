// Package providerfactory constructs provider adapters from configuration.
//
// It lives outside pkg/providers so the adapter subpackages can import the
// base package without a cycle: providerfactory imports the adapters, the
// adapters import pkg/providers, and nothing imports providerfactory except
// the composition layer.
package providerfactory

import (
	"fmt"
	"log/slog"

	"mercator-hq/saturn/pkg/auth"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/providers/anthropic"
	"mercator-hq/saturn/pkg/providers/gemini"
	"mercator-hq/saturn/pkg/providers/openai"
)

// New creates a provider adapter from its resolved configuration.
//
// The adapter family is selected by cfg.Type:
//   - "anthropic", "anthropic_compatible": Messages API passthrough
//   - "openai": chat-completions translation
//   - "gemini": generateContent translation
//
// tokens is consulted only by Anthropic-dialect adapters in oauth auth
// mode; the other families ignore it.
func New(cfg providers.ProviderConfig, tokens *auth.TokenStore) (providers.Provider, error) {
	slog.Debug("creating provider",
		"name", cfg.Name,
		"type", cfg.Type,
		"base_url", cfg.BaseURL,
	)

	switch cfg.Type {
	case providers.TypeAnthropic, providers.TypeAnthropicCompatible:
		return anthropic.NewProvider(cfg, tokens)

	case providers.TypeOpenAI:
		return openai.NewProvider(cfg)

	case providers.TypeGemini:
		return gemini.NewProvider(cfg)

	default:
		return nil, fmt.Errorf("provider %q: unsupported type %q", cfg.Name, cfg.Type)
	}
}

// Resolve merges catalog defaults into one provider's runtime
// configuration. Explicit config values win; the catalog fills type,
// base_url, and per-provider headers for known names. Config headers
// override catalog headers key by key.
func Resolve(name string, pc config.ProviderConfig) providers.ProviderConfig {
	retries := config.DefaultProviderMaxRetries
	if pc.MaxRetries != nil {
		retries = *pc.MaxRetries
	}

	resolved := providers.ProviderConfig{
		Name:       name,
		Type:       pc.Type,
		BaseURL:    pc.BaseURL,
		APIKey:     pc.APIKey,
		AuthMode:   pc.AuthMode,
		Timeout:    pc.Timeout,
		MaxRetries: retries,
	}

	entry, known := providers.Lookup(name)
	if known {
		if resolved.Type == "" {
			resolved.Type = entry.Type
		}
		if resolved.BaseURL == "" {
			resolved.BaseURL = entry.BaseURL
		}
	}

	if len(pc.ExtraHeaders) > 0 || (known && len(entry.ExtraHeaders) > 0) {
		headers := make(map[string]string)
		if known {
			for k, v := range entry.ExtraHeaders {
				headers[k] = v
			}
		}
		for k, v := range pc.ExtraHeaders {
			headers[k] = v
		}
		resolved.ExtraHeaders = headers
	}

	return resolved
}
