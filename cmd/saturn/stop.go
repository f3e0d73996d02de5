package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/pid"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running Saturn instance",
	Long: `Send SIGTERM to the Saturn instance recorded in the PID file.

The server drains in-flight requests and removes its own PID file on
exit. A stale PID file left by a crashed instance is cleaned up.`,
	RunE: stopServer,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func stopServer(cmd *cobra.Command, args []string) error {
	pidPath := pid.File()

	id, err := pid.Read(pidPath)
	if err != nil {
		fmt.Println("Service is not running (no PID file found)")
		return nil
	}

	if !pid.Alive(id) {
		fmt.Println("Service is not running (stale PID file)")
		if err := pid.Remove(pidPath); err != nil {
			return cli.NewCommandError("stop", err)
		}
		return nil
	}

	if err := pid.Terminate(id); err != nil {
		return cli.NewCommandError("stop", fmt.Errorf("signal PID %d: %w", id, err))
	}

	// The server removes the PID file itself once shutdown completes.
	fmt.Printf("✓ Sent SIGTERM to PID %d\n", id)
	return nil
}
