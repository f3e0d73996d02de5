package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envRefPattern matches credential values of the form "${VAR}".
var envRefPattern = regexp.MustCompile(`^\$\{(\w+)\}$`)

// Load loads configuration from a YAML file at the specified path.
// It resolves ${VAR} credential references from the environment, applies
// default values, validates the configuration, and returns any errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse builds a Config from raw YAML bytes. It is the single path from
// bytes to a usable Config: unmarshal, resolve credential references, apply
// defaults, expand home-relative paths, and validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	resolveEnvRefs(&cfg)
	ApplyDefaults(&cfg)

	cfg.Auth.TokenStorePath = ExpandPath(cfg.Auth.TokenStorePath)
	cfg.Trace.Dir = ExpandPath(cfg.Trace.Dir)
	cfg.Trace.RoutingStateFile = ExpandPath(cfg.Trace.RoutingStateFile)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SATURN_SECTION_FIELD (e.g., SATURN_PROXY_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Resolve credential references and apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadWithEnvOverrides(path string) (*Config, error) {
	// First load from file (this already applies defaults)
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Re-validate after overrides
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// DefaultPath returns the config file location used when --config is not
// given: config.yaml in the working directory when present, otherwise
// ~/.saturn/config.yaml.
func DefaultPath() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".saturn", "config.yaml")
}

// ExpandPath expands a leading "~" to the user's home directory. Paths
// without the prefix are returned unchanged.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// resolveEnvRefs resolves ${VAR} credential references against the
// environment. An unset variable resolves to empty, which later causes the
// provider to be skipped at registry construction rather than failing the
// load.
func resolveEnvRefs(cfg *Config) {
	for name, provider := range cfg.Providers {
		provider.APIKey = resolveEnvRef(provider.APIKey)
		for k, v := range provider.ExtraHeaders {
			provider.ExtraHeaders[k] = resolveEnvRef(v)
		}
		cfg.Providers[name] = provider
	}
}

func resolveEnvRef(value string) string {
	m := envRefPattern.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	return os.Getenv(m[1])
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format SATURN_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Proxy overrides
	if val := os.Getenv("SATURN_PROXY_LISTEN_ADDRESS"); val != "" {
		cfg.Proxy.ListenAddress = val
	}
	if val := os.Getenv("SATURN_PROXY_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Proxy.ReadTimeout = d
		}
	}
	if val := os.Getenv("SATURN_PROXY_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Proxy.WriteTimeout = d
		}
	}
	if val := os.Getenv("SATURN_PROXY_MAX_BODY_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Proxy.MaxBodyBytes = i
		}
	}

	// Router overrides
	if val := os.Getenv("SATURN_ROUTER_DEFAULT"); val != "" {
		cfg.Router.Default = val
	}
	if val := os.Getenv("SATURN_ROUTER_BACKGROUND"); val != "" {
		cfg.Router.Background = val
	}
	if val := os.Getenv("SATURN_ROUTER_THINK"); val != "" {
		cfg.Router.Think = val
	}
	if val := os.Getenv("SATURN_ROUTER_WEBSEARCH"); val != "" {
		cfg.Router.WebSearch = val
	}

	// Provider overrides - one set per configured provider
	for name := range cfg.Providers {
		applyProviderEnvOverrides(cfg, name)
	}

	// Auth overrides
	if val := os.Getenv("SATURN_AUTH_TOKEN_STORE_PATH"); val != "" {
		cfg.Auth.TokenStorePath = ExpandPath(val)
	}

	// Trace overrides
	if val := os.Getenv("SATURN_TRACE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Trace.Enabled = b
		}
	}
	if val := os.Getenv("SATURN_TRACE_DIR"); val != "" {
		cfg.Trace.Dir = ExpandPath(val)
	}

	// Telemetry overrides
	if val := os.Getenv("SATURN_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("SATURN_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("SATURN_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("SATURN_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("SATURN_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("SATURN_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

// applyProviderEnvOverrides applies environment variable overrides for a
// specific provider. Provider environment variables follow the format
// SATURN_PROVIDERS_<NAME>_<FIELD> where NAME is the uppercase provider name.
func applyProviderEnvOverrides(cfg *Config, providerName string) {
	provider := cfg.Providers[providerName]

	// Build environment variable prefix
	prefix := fmt.Sprintf("SATURN_PROVIDERS_%s_", strings.ToUpper(providerName))

	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		provider.BaseURL = val
	}
	if val := os.Getenv(prefix + "API_KEY"); val != "" {
		provider.APIKey = val
	}
	if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			provider.Timeout = d
		}
	}
	if val := os.Getenv(prefix + "MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			provider.MaxRetries = &i
		}
	}

	cfg.Providers[providerName] = provider
}
