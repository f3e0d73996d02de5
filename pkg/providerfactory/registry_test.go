package providerfactory

import (
	"reflect"
	"testing"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/providers"
)

func boolPtr(b bool) *bool { return &b }

func registryConfig() *config.Config {
	return &config.Config{
		Providers: map[string]config.ProviderConfig{
			"anthropic": {
				Type:     providers.TypeAnthropic,
				BaseURL:  "https://api.anthropic.com",
				APIKey:   "sk-ant-test",
				AuthMode: providers.AuthModeAPIKey,
			},
			"fireworks": {
				Type:     providers.TypeOpenAI,
				BaseURL:  "https://api.fireworks.ai/inference/v1",
				APIKey:   "sk-test",
				AuthMode: providers.AuthModeAPIKey,
			},
		},
	}
}

func TestBuildRegistry(t *testing.T) {
	reg := Build(registryConfig(), nil)
	defer reg.Close()

	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}

	p, ok := reg.Get("fireworks")
	if !ok {
		t.Fatal("Get(fireworks) reported missing")
	}
	if p.Type() != providers.TypeOpenAI {
		t.Errorf("Type() = %q", p.Type())
	}

	if got, want := reg.Names(), []string{"anthropic", "fireworks"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestBuildOmitsBrokenProvider(t *testing.T) {
	cfg := registryConfig()
	// No API key and no token store: construction fails, the rest of the
	// registry still builds.
	cfg.Providers["broken"] = config.ProviderConfig{
		Type:     providers.TypeOpenAI,
		BaseURL:  "https://api.example.com/v1",
		AuthMode: providers.AuthModeAPIKey,
	}

	reg := Build(cfg, nil)
	defer reg.Close()

	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}
	if _, ok := reg.Get("broken"); ok {
		t.Error("broken provider should be omitted")
	}
}

func TestBuildSkipsDisabledProvider(t *testing.T) {
	cfg := registryConfig()
	pc := cfg.Providers["fireworks"]
	pc.Enabled = boolPtr(false)
	cfg.Providers["fireworks"] = pc

	reg := Build(cfg, nil)
	defer reg.Close()

	if _, ok := reg.Get("fireworks"); ok {
		t.Error("disabled provider should not be constructed")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestBuildAppliesCatalogDefaults(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"groq": {APIKey: "gsk-test", AuthMode: providers.AuthModeAPIKey},
		},
	}

	reg := Build(cfg, nil)
	defer reg.Close()

	p, ok := reg.Get("groq")
	if !ok {
		t.Fatal("catalog name with only an API key should construct")
	}
	if p.Type() != providers.TypeOpenAI {
		t.Errorf("Type() = %q, want %q", p.Type(), providers.TypeOpenAI)
	}
}

func TestRegistryHealth(t *testing.T) {
	reg := Build(registryConfig(), nil)
	defer reg.Close()

	health := reg.Health()
	if len(health) != 2 {
		t.Fatalf("Health() has %d entries, want 2", len(health))
	}
	for name, h := range health {
		if !h.Healthy {
			t.Errorf("provider %q should start healthy", name)
		}
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := Build(registryConfig(), nil)
	defer reg.Close()

	if _, ok := reg.Get("nonexistent"); ok {
		t.Error("Get(nonexistent) reported found")
	}
}
