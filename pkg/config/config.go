package config

import "time"

// Config is the root configuration structure for Mercator Saturn.
// It contains all configuration sections for the proxy server, routing
// rules, provider integrations, model mappings, credentials, request
// tracing, and telemetry.
type Config struct {
	// Proxy contains HTTP proxy server configuration including listen
	// address, timeouts, and body limits.
	Proxy ProxyConfig `yaml:"proxy"`

	// Router contains the request classification rules that pick a logical
	// model for each inbound request.
	Router RouterConfig `yaml:"router"`

	// Providers contains configuration for all upstream provider
	// integrations. Keys are provider names (e.g., "anthropic", "openrouter").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Models maps logical model names to ordered provider fallback chains.
	// Entries are sorted ascending by priority before use; the first entry
	// is the primary and the rest are fallbacks.
	Models map[string][]ModelMapping `yaml:"models"`

	// Auth contains OAuth credential storage configuration.
	Auth AuthConfig `yaml:"auth"`

	// Trace contains request trace capture configuration.
	Trace TraceConfig `yaml:"trace"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains configuration for the HTTP proxy server.
type ProxyConfig struct {
	// ListenAddress is the address and port for the proxy to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:3456", "0.0.0.0:3456").
	// Default: "127.0.0.1:3456"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streaming completions can run for minutes, so this stays
	// disabled unless set explicitly.
	// Default: 0 (no timeout)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values, including the
	// request line. It does not limit the size of the request body.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes caps the request body size. Oversized bodies are
	// rejected with a request_too_large error.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS is enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Use ["*"] to allow all origins (not recommended for production).
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Authorization", "Content-Type", "X-Request-ID", "X-Provider",
	// "anthropic-version", "anthropic-beta", "x-api-key"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers that are exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600 (1 hour)
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials (cookies, auth headers)
	// are allowed in CORS requests.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// RouterConfig contains the request classification rules. Each slot names a
// logical model from the models section.
type RouterConfig struct {
	// Default is the logical model for requests no other rule claims.
	Default string `yaml:"default"`

	// Think is the logical model for requests with extended thinking
	// enabled.
	Think string `yaml:"think"`

	// Background is the logical model for background tasks, detected by
	// matching the inbound model name against BackgroundRegex.
	Background string `yaml:"background"`

	// WebSearch is the logical model for requests carrying a web_search
	// tool.
	WebSearch string `yaml:"websearch"`

	// Subagent is the fallback logical model for requests carrying a
	// subagent marker whose embedded name is not in the models section.
	Subagent string `yaml:"subagent"`

	// BackgroundRegex matches inbound model names that indicate background
	// work. Matched against the original model, before any rewrite.
	// Default: "(?i)claude.*haiku"
	BackgroundRegex string `yaml:"background_regex"`

	// AutoMapRegex short-circuits classification: inbound models matching
	// it are passed through with no model rewrite. Empty disables it.
	AutoMapRegex string `yaml:"auto_map_regex"`

	// PromptRules are ordered pattern rules matched against prompt text
	// after the built-in categories. First match wins.
	PromptRules []PromptRule `yaml:"prompt_rules"`
}

// PromptRule routes requests whose prompt text matches a pattern.
type PromptRule struct {
	// Name identifies the rule in logs and traces.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Target is the logical model to route to. Capture references ($1,
	// $name, ${name}) are expanded from the match.
	Target string `yaml:"target"`

	// Scope selects the text the pattern runs against.
	// Options: "last_user", "system", "any_user"
	// Default: "last_user"
	Scope string `yaml:"scope"`

	// StripMatch removes the matched text from the scanned prompt before
	// the request is forwarded.
	// Default: false
	StripMatch bool `yaml:"strip_match"`
}

// ProviderConfig contains configuration for a single upstream provider.
type ProviderConfig struct {
	// Type selects the adapter family.
	// Options: "anthropic", "anthropic_compatible", "openai", "gemini"
	Type string `yaml:"type"`

	// BaseURL is the base URL for the provider's API endpoint. Known
	// provider names get a catalog default when this is empty.
	// Example: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication credential for the provider. A value of
	// the form "${VAR}" is resolved from the environment at load time.
	APIKey string `yaml:"api_key"`

	// AuthMode selects how the credential is presented.
	// Options: "api_key" (x-api-key or provider-native), "bearer"
	// (Authorization: Bearer), "oauth" (managed token from the token store).
	// Default: "api_key"
	AuthMode string `yaml:"auth_mode"`

	// ExtraHeaders are added verbatim to every request to this provider.
	ExtraHeaders map[string]string `yaml:"extra_headers"`

	// Timeout is the maximum duration for requests to this provider.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Zero disables retrying; the fallback chain still
	// advances. Unset selects the default.
	// Default: 2
	MaxRetries *int `yaml:"max_retries"`

	// Enabled controls whether the provider is constructed. Unset means
	// enabled.
	Enabled *bool `yaml:"enabled"`
}

// ModelMapping is one provider option for a logical model.
type ModelMapping struct {
	// Provider is the provider name from the providers section.
	Provider string `yaml:"provider"`

	// Model is the upstream model identifier sent to the provider.
	Model string `yaml:"model"`

	// Priority orders fallback attempts, lowest first.
	// Default: 0
	Priority int `yaml:"priority"`

	// InjectContinuationPrompt prepends a continuation nudge when the
	// latest user turn is tool results with no text. Ignored on
	// background-routed requests.
	// Default: false
	InjectContinuationPrompt bool `yaml:"inject_continuation_prompt"`
}

// AuthConfig contains OAuth credential storage configuration.
type AuthConfig struct {
	// TokenStorePath is the JSON file holding per-provider OAuth tokens.
	// Default: "~/.saturn/tokens.json"
	TokenStorePath string `yaml:"token_store_path"`
}

// TraceConfig contains request trace capture configuration.
type TraceConfig struct {
	// Enabled controls whether request traces are written.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Dir is the directory trace files are written to.
	// Default: "~/.saturn/traces"
	Dir string `yaml:"dir"`

	// OmitSystemPrompt drops system prompt text from traces. Useful when
	// traces may be shared.
	// Default: false
	OmitSystemPrompt bool `yaml:"omit_system_prompt"`

	// RetentionDays is how long trace files are kept before pruning.
	// 0 disables pruning.
	// Default: 7
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for the retention pruner.
	// Default: "0 3 * * *" (daily at 03:00)
	PruneSchedule string `yaml:"prune_schedule"`

	// RoutingStateFile is where the latest routing decision is written for
	// statusline tooling. Updated on every request, independent of Enabled.
	// Default: "~/.saturn/last_routing.json"
	RoutingStateFile string `yaml:"routing_state_file"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. The /metrics
	// endpoint is always registered; when disabled, recording is a no-op
	// and the exposition stays at its initial state.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "mercator"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "saturn"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for request duration
	// (seconds).
	// Default: [0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// TokenCountBuckets defines histogram buckets for token counts.
	// Default: [100, 500, 1000, 5000, 10000, 50000, 100000]
	TokenCountBuckets []float64 `yaml:"token_count_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1 (10%)
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "mercator-saturn"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// ExportTimeout is the timeout for OTLP exports.
	// Default: 10s
	ExportTimeout time.Duration `yaml:"export_timeout"`
}

// HealthConfig contains health check endpoint configuration. Readiness is
// derived from passive provider health, so there is nothing to enable or
// tune beyond the paths.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/health/ready"
	ReadinessPath string `yaml:"readiness_path"`
}

// IsEnabled reports whether the provider should be constructed. Unset
// defaults to enabled.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}
