package providers

import "sort"

// Adapter family identifiers, matching the provider config type field.
const (
	TypeAnthropic           = "anthropic"
	TypeAnthropicCompatible = "anthropic_compatible"
	TypeOpenAI              = "openai"
	TypeGemini              = "gemini"
)

// CatalogEntry pins the defaults for a known provider name so a config
// entry can be as small as a name and an API key.
type CatalogEntry struct {
	// Type is the adapter family used when the config omits type.
	Type string

	// BaseURL is the API root used when the config omits base_url.
	BaseURL string

	// ExtraHeaders are sent on every request, under any headers from the
	// config.
	ExtraHeaders map[string]string
}

// catalog maps known provider names to their pinned defaults. Anthropic
// aggregators expose a Messages-format endpoint and ride the passthrough
// adapter; the rest are chat-completions hosts.
var catalog = map[string]CatalogEntry{
	"anthropic": {Type: TypeAnthropic, BaseURL: "https://api.anthropic.com"},

	"zai":         {Type: TypeAnthropicCompatible, BaseURL: "https://api.z.ai/api/anthropic"},
	"minimax":     {Type: TypeAnthropicCompatible, BaseURL: "https://api.minimax.io/anthropic"},
	"zenmux":      {Type: TypeAnthropicCompatible, BaseURL: "https://zenmux.ai/api/anthropic"},
	"kimi-coding": {Type: TypeAnthropicCompatible, BaseURL: "https://api.kimi.com/coding"},
	"openrouter": {
		Type:    TypeAnthropicCompatible,
		BaseURL: "https://openrouter.ai/api",
		ExtraHeaders: map[string]string{
			"HTTP-Referer": "https://github.com/mercator-hq/saturn",
			"X-Title":      "Mercator Saturn",
		},
	},

	"openai":    {Type: TypeOpenAI, BaseURL: "https://api.openai.com/v1"},
	"deepinfra": {Type: TypeOpenAI, BaseURL: "https://api.deepinfra.com/v1/openai"},
	"novita": {
		Type:         TypeOpenAI,
		BaseURL:      "https://api.novita.ai/v3/openai",
		ExtraHeaders: map[string]string{"X-Novita-Source": "mercator-saturn"},
	},
	"baseten":   {Type: TypeOpenAI, BaseURL: "https://inference.baseten.co/v1"},
	"together":  {Type: TypeOpenAI, BaseURL: "https://api.together.xyz/v1"},
	"fireworks": {Type: TypeOpenAI, BaseURL: "https://api.fireworks.ai/inference/v1"},
	"groq":      {Type: TypeOpenAI, BaseURL: "https://api.groq.com/openai/v1"},
	"nebius":    {Type: TypeOpenAI, BaseURL: "https://api.studio.nebius.ai/v1"},
	"cerebras":  {Type: TypeOpenAI, BaseURL: "https://api.cerebras.ai/v1"},
	"moonshot":  {Type: TypeOpenAI, BaseURL: "https://api.moonshot.cn/v1"},

	"gemini": {Type: TypeGemini, BaseURL: "https://generativelanguage.googleapis.com"},
}

// Lookup returns the pinned defaults for a known provider name.
func Lookup(name string) (CatalogEntry, bool) {
	e, ok := catalog[name]
	return e, ok
}

// CatalogNames returns the known provider names, sorted.
func CatalogNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
