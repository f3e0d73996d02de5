package config

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for testing.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := Config{
		Providers: make(map[string]ProviderConfig),
		Models:    make(map[string][]ModelMapping),
	}

	cfg.Providers["anthropic"] = ProviderConfig{
		Type:    "anthropic",
		BaseURL: "https://api.anthropic.com",
		APIKey:  "test-key",
	}
	cfg.Models["sonnet"] = []ModelMapping{
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
	}
	cfg.Router.Default = "sonnet"

	ApplyDefaults(&cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	cfg := b.cfg
	return &cfg
}

// WithProvider adds or replaces a provider.
func (b *ConfigBuilder) WithProvider(name string, p ProviderConfig) *ConfigBuilder {
	b.cfg.Providers[name] = p
	return b
}

// WithModel sets the mapping chain for a logical model.
func (b *ConfigBuilder) WithModel(logical string, mappings ...ModelMapping) *ConfigBuilder {
	b.cfg.Models[logical] = mappings
	return b
}

// WithRouter replaces the router configuration.
func (b *ConfigBuilder) WithRouter(r RouterConfig) *ConfigBuilder {
	b.cfg.Router = r
	if b.cfg.Router.BackgroundRegex == "" {
		b.cfg.Router.BackgroundRegex = DefaultBackgroundRegex
	}
	return b
}

// WithListenAddress sets the proxy listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Proxy.ListenAddress = addr
	return b
}
