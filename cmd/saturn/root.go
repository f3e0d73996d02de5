package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/config"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "saturn",
	Short: "Mercator Saturn - Anthropic API routing proxy",
	Long: `Mercator Saturn is a local routing proxy for the Anthropic Messages API.

It accepts requests from an Anthropic-native client and forwards each one
to a configured upstream provider, providing:
  - Request classification onto logical models (think, background,
    websearch, subagent, prompt rules)
  - Ordered provider fallback chains with passive health tracking
  - Wire translation for OpenAI- and Gemini-style upstreams
  - Hot configuration reload

For more information, visit: https://github.com/mercator-hq/saturn`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configPath resolves the configuration file location: the --config flag
// when given, otherwise config.DefaultPath.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./config.yaml, then ~/.saturn/config.yaml)")

	// Disable default completion command (we'll add our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
