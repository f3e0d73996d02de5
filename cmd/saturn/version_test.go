package main

import "testing"

func TestVersionCommandExists(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run should not be nil")
	}
}

func TestVersionDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if GitCommit == "" {
		t.Error("GitCommit should not be empty")
	}
	if BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
}

func TestStatusResultString(t *testing.T) {
	running := statusResult{Running: true, PID: 1234}
	if got := running.String(); got != "✓ Service is running (PID 1234)" {
		t.Errorf("String() = %q", got)
	}

	stale := statusResult{Stale: true}
	if got := stale.String(); got != "✗ Service is not running (stale PID file removed)" {
		t.Errorf("String() = %q", got)
	}

	stopped := statusResult{}
	if got := stopped.String(); got != "✗ Service is not running" {
		t.Errorf("String() = %q", got)
	}
}
