// Package config provides configuration management for Mercator Saturn.
//
// This package handles loading, validating, and persisting configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.Load("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SATURN_SECTION_FIELD.
// For example:
//
//   - SATURN_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - SATURN_PROVIDERS_OPENROUTER_API_KEY overrides providers.openrouter.api_key
//   - SATURN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Credential References
//
// Provider credentials of the form "${VAR}" are resolved from the environment
// at load time, so API keys never need to live in the file itself:
//
//	providers:
//	  openrouter:
//	    type: openai
//	    api_key: "${OPENROUTER_API_KEY}"
//
// An unset reference resolves to empty; the provider is then skipped when the
// registry is built rather than failing the whole load.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Reloading and Persistence
//
// A Config is immutable once loaded. Live reconfiguration goes through the
// state package: a new Config is loaded from disk and swapped in atomically,
// never mutated in place. The admin API rewrites the file through WriteRaw,
// which validates with Parse and replaces the file atomically.
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Required field checks (e.g., provider types)
//   - Referential checks (router slots and model mappings must name
//     configured entries)
//   - Format validation (regexes must compile, URLs must parse)
//
// Validation errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - providers.openrouter.type: type is required
//	  - router.default: references unknown logical model "sonnet"
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	proxy:
//	  listen_address: "127.0.0.1:3456"
//
//	providers:
//	  anthropic:
//	    type: "anthropic"
//	    api_key: "${ANTHROPIC_API_KEY}"
//
//	models:
//	  sonnet:
//	    - provider: "anthropic"
//	      model: "claude-sonnet-4-20250514"
//
//	router:
//	  default: "sonnet"
package config
