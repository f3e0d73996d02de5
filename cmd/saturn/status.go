package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/pid"
)

var statusFlags struct {
	format string
}

// statusResult is the status report; the JSON form feeds scripts and
// statusline tooling.
type statusResult struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Stale   bool   `json:"stale,omitempty"`
	PIDFile string `json:"pid_file"`
}

func (r statusResult) String() string {
	switch {
	case r.Running:
		return fmt.Sprintf("✓ Service is running (PID %d)", r.PID)
	case r.Stale:
		return "✗ Service is not running (stale PID file removed)"
	default:
		return "✗ Service is not running"
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether a Saturn instance is running",
	Long: `Report whether the Saturn instance recorded in the PID file is alive.

A PID file whose process no longer exists is treated as stale and
removed.

Examples:
  saturn status
  saturn status --format json`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.format, "format", "text", "output format: text, json")
}

func showStatus(cmd *cobra.Command, args []string) error {
	pidPath := pid.File()
	result := statusResult{PIDFile: pidPath}

	if id, err := pid.Read(pidPath); err == nil {
		if pid.Alive(id) {
			result.Running = true
			result.PID = id
		} else {
			result.Stale = true
			if err := pid.Remove(pidPath); err != nil {
				return cli.NewCommandError("status", err)
			}
		}
	}

	formatter := cli.NewFormatter(cli.OutputFormat(statusFlags.format))
	return formatter.FormatTo(os.Stdout, result)
}
