package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"mercator-hq/saturn/pkg/providers"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// validProviderTypes are the adapter families a provider can select.
var validProviderTypes = map[string]bool{
	"anthropic":            true,
	"anthropic_compatible": true,
	"openai":               true,
	"gemini":               true,
}

// validAuthModes are the credential presentation modes.
var validAuthModes = map[string]bool{
	"api_key": true,
	"bearer":  true,
	"oauth":   true,
}

// validPromptRuleScopes are the prompt texts a rule can match against.
var validPromptRuleScopes = map[string]bool{
	PromptRuleScopeLastUser: true,
	PromptRuleScopeSystem:   true,
	PromptRuleScopeAnyUser:  true,
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateRouter(cfg)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateModels(cfg)...)
	errs = append(errs, validateTrace(&cfg.Trace)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateProxy validates proxy configuration.
func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: "listen address is required",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	return errs
}

// validateRouter validates routing rules: regexes must compile, slots and
// static rule targets must reference configured logical models.
func validateRouter(cfg *Config) []FieldError {
	var errs []FieldError
	router := &cfg.Router

	if router.BackgroundRegex != "" {
		if _, err := regexp.Compile(router.BackgroundRegex); err != nil {
			errs = append(errs, FieldError{
				Field:   "router.background_regex",
				Message: fmt.Sprintf("invalid regex: %v", err),
			})
		}
	}
	if router.AutoMapRegex != "" {
		if _, err := regexp.Compile(router.AutoMapRegex); err != nil {
			errs = append(errs, FieldError{
				Field:   "router.auto_map_regex",
				Message: fmt.Sprintf("invalid regex: %v", err),
			})
		}
	}

	slots := map[string]string{
		"router.default":    router.Default,
		"router.think":      router.Think,
		"router.background": router.Background,
		"router.websearch":  router.WebSearch,
		"router.subagent":   router.Subagent,
	}
	for field, logical := range slots {
		if logical == "" {
			continue
		}
		if _, ok := cfg.Models[logical]; !ok {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("references unknown logical model %q", logical),
			})
		}
	}

	for i, rule := range router.PromptRules {
		prefix := fmt.Sprintf("router.prompt_rules[%d]", i)

		if rule.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".pattern",
				Message: "pattern is required",
			})
		} else if _, err := regexp.Compile(rule.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix + ".pattern",
				Message: fmt.Sprintf("invalid regex: %v", err),
			})
		}

		if rule.Target == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".target",
				Message: "target is required",
			})
		} else if !strings.Contains(rule.Target, "$") {
			// Dynamic targets expand capture refs and cannot be checked
			// until match time.
			if _, ok := cfg.Models[rule.Target]; !ok {
				errs = append(errs, FieldError{
					Field:   prefix + ".target",
					Message: fmt.Sprintf("references unknown logical model %q", rule.Target),
				})
			}
		}

		if !validPromptRuleScopes[rule.Scope] {
			errs = append(errs, FieldError{
				Field:   prefix + ".scope",
				Message: fmt.Sprintf("invalid scope %q: must be 'last_user', 'system', or 'any_user'", rule.Scope),
			})
		}
	}

	return errs
}

// validateProviders validates provider configurations.
func validateProviders(table map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if len(table) == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be configured",
		})
		return errs
	}

	for name, provider := range table {
		prefix := fmt.Sprintf("providers.%s", name)

		// Cataloged names carry a default type; everyone else must pick one.
		if provider.Type == "" {
			if _, known := providers.Lookup(name); !known {
				errs = append(errs, FieldError{
					Field:   prefix + ".type",
					Message: "type is required for providers not in the built-in catalog",
				})
			}
		} else if !validProviderTypes[provider.Type] {
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("invalid type %q: must be 'anthropic', 'anthropic_compatible', 'openai', or 'gemini'", provider.Type),
			})
		}

		// Base URL is optional for cataloged provider names; the registry
		// fills in the known endpoint. When present it must parse.
		if provider.BaseURL != "" {
			if _, err := url.Parse(provider.BaseURL); err != nil {
				errs = append(errs, FieldError{
					Field:   prefix + ".base_url",
					Message: fmt.Sprintf("invalid URL format: %v", err),
				})
			}
		}

		if !validAuthModes[provider.AuthMode] {
			errs = append(errs, FieldError{
				Field:   prefix + ".auth_mode",
				Message: fmt.Sprintf("invalid auth mode %q: must be 'api_key', 'bearer', or 'oauth'", provider.AuthMode),
			})
		}

		if provider.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".timeout",
				Message: "timeout must be positive",
			})
		}

		if provider.MaxRetries != nil {
			if *provider.MaxRetries < 0 {
				errs = append(errs, FieldError{
					Field:   prefix + ".max_retries",
					Message: "max retries must be non-negative",
				})
			}
			if *provider.MaxRetries > 10 {
				errs = append(errs, FieldError{
					Field:   prefix + ".max_retries",
					Message: "max retries exceeds reasonable limit (10)",
				})
			}
		}
	}

	return errs
}

// validateModels validates the logical model mapping table.
func validateModels(cfg *Config) []FieldError {
	var errs []FieldError

	for logical, mappings := range cfg.Models {
		prefix := fmt.Sprintf("models.%s", logical)

		if logical == "" {
			errs = append(errs, FieldError{
				Field:   "models",
				Message: "logical model name must not be empty",
			})
			continue
		}
		if len(mappings) == 0 {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: "at least one provider mapping is required",
			})
			continue
		}

		for i, m := range mappings {
			entry := fmt.Sprintf("%s[%d]", prefix, i)

			if m.Provider == "" {
				errs = append(errs, FieldError{
					Field:   entry + ".provider",
					Message: "provider is required",
				})
			} else if _, ok := cfg.Providers[m.Provider]; !ok {
				errs = append(errs, FieldError{
					Field:   entry + ".provider",
					Message: fmt.Sprintf("references unknown provider %q", m.Provider),
				})
			}

			if m.Model == "" {
				errs = append(errs, FieldError{
					Field:   entry + ".model",
					Message: "model is required",
				})
			}
		}
	}

	return errs
}

// validateTrace validates trace capture configuration.
func validateTrace(cfg *TraceConfig) []FieldError {
	var errs []FieldError

	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "trace.retention_days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Enabled && cfg.Dir == "" {
		errs = append(errs, FieldError{
			Field:   "trace.dir",
			Message: "dir is required when tracing is enabled",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}

	return errs
}
