package state

import (
	"errors"
	"testing"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/routing"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"anthropic": {
				Type:    "anthropic",
				BaseURL: "https://api.anthropic.com",
				APIKey:  "sk-ant-test",
			},
			"fireworks": {
				Type:    "openai",
				BaseURL: "https://api.fireworks.ai/inference/v1",
				APIKey:  "sk-test",
			},
		},
		Models: map[string][]config.ModelMapping{
			"sonnet": {
				{Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
				{Provider: "fireworks", Model: "accounts/fireworks/models/glm-4p6", Priority: 1},
			},
			"haiku": {
				{Provider: "anthropic", Model: "claude-haiku-4-20250514"},
			},
		},
	}
	cfg.Router.Default = "sonnet"
	cfg.Router.Background = "haiku"
	config.ApplyDefaults(cfg)
	return cfg
}

func TestBuildSnapshot(t *testing.T) {
	snapshot, err := Build(testConfig(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer snapshot.Registry.Close()

	if snapshot.Router == nil || snapshot.Resolver == nil || snapshot.Registry == nil {
		t.Fatal("snapshot has nil components")
	}
	if snapshot.Registry.Len() != 2 {
		t.Errorf("registry has %d providers, want 2", snapshot.Registry.Len())
	}
	if snapshot.BuiltAt.IsZero() {
		t.Error("BuiltAt not stamped")
	}

	targets, err := snapshot.Resolver.Resolve("sonnet")
	if err != nil {
		t.Fatalf("Resolve(sonnet) error = %v", err)
	}
	if len(targets) != 2 || targets[0].Provider != "anthropic" {
		t.Errorf("Resolve(sonnet) = %+v", targets)
	}
}

func TestBuildSnapshotBadRegex(t *testing.T) {
	cfg := testConfig()
	cfg.Router.AutoMapRegex = "[unclosed"

	if _, err := Build(cfg, nil); err == nil {
		t.Fatal("expected router build error for invalid regex")
	}
}

func TestBuildSnapshotResolverAuthority(t *testing.T) {
	snapshot, err := Build(testConfig(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer snapshot.Registry.Close()

	if _, err := snapshot.Resolver.Resolve("opus"); !errors.Is(err, routing.ErrUnknownModel) {
		t.Errorf("Resolve(opus) error = %v, want unknown model", err)
	}
}
