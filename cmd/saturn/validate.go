package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the server.

Validation covers the full loading pipeline: YAML syntax, credential
references, defaults, and the semantic checks (router slots naming known
models, model mappings naming known providers, regex patterns compiling).
All problems are reported at once.

Examples:
  # Validate the default config
  saturn validate

  # Validate a specific file
  saturn validate --config /etc/saturn/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	path := configPath()
	cfg, err := config.LoadWithEnvOverrides(path)
	if err != nil {
		return cli.NewConfigError(path, err)
	}

	fmt.Printf("Configuration: %s\n", path)
	fmt.Println()

	providers := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	fmt.Printf("Providers (%d):\n", len(providers))
	for _, name := range providers {
		p := cfg.Providers[name]
		fmt.Printf("  %s (%s)\n", name, p.Type)
	}

	models := make([]string, 0, len(cfg.Models))
	for name := range cfg.Models {
		models = append(models, name)
	}
	sort.Strings(models)
	fmt.Printf("Models (%d):\n", len(models))
	for _, name := range models {
		chain := cfg.Models[name]
		fmt.Printf("  %s (%d mappings)\n", name, len(chain))
	}

	printConfigSummary(cfg)
	fmt.Println()
	fmt.Println("✓ Configuration valid")
	return nil
}
