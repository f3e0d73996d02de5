package providers

import "time"

// Credential presentation modes.
const (
	// AuthModeAPIKey sends the credential in the provider-native key
	// header (x-api-key for Anthropic dialects, Bearer for OpenAI).
	AuthModeAPIKey = "api_key"

	// AuthModeBearer forces Authorization: Bearer with the configured key.
	AuthModeBearer = "bearer"

	// AuthModeOAuth takes the credential from the OAuth token store,
	// refreshing it when close to expiry.
	AuthModeOAuth = "oauth"
)

// ProviderConfig is the subset of provider configuration adapters need.
// The factory builds it from the config file with catalog defaults already
// applied.
type ProviderConfig struct {
	// Name is the provider identifier (e.g. "anthropic", "openrouter")
	Name string

	// Type is the adapter family
	Type string

	// BaseURL is the API root, without a trailing slash
	BaseURL string

	// APIKey is the credential (empty in OAuth mode)
	APIKey string

	// AuthMode selects how the credential is presented
	AuthMode string

	// ExtraHeaders are added verbatim to every request
	ExtraHeaders map[string]string

	// Timeout bounds non-streaming exchanges
	Timeout time.Duration

	// MaxRetries caps retry attempts for transient failures
	MaxRetries int
}
