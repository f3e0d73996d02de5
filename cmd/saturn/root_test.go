package main

import "testing"

func TestCommandTree(t *testing.T) {
	want := map[string]bool{
		"run":        false,
		"validate":   false,
		"stop":       false,
		"status":     false,
		"version":    false,
		"completion": false,
	}

	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestConfigPathUsesFlag(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	cfgFile = "/tmp/custom.yaml"
	if got := configPath(); got != "/tmp/custom.yaml" {
		t.Errorf("configPath() = %q, want /tmp/custom.yaml", got)
	}
}

func TestRunCommandFlags(t *testing.T) {
	for _, name := range []string{"listen", "log-level", "watch", "dry-run"} {
		if runCmd.Flags().Lookup(name) == nil {
			t.Errorf("run command missing --%s flag", name)
		}
	}

	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("root command missing --config flag")
	}
}
