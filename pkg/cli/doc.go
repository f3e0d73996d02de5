/*
Package cli provides shared helpers for the saturn command tree.

Output Formatting:

Commands that report structured results (like saturn status) support
text and JSON output:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// ctx is cancelled on the first signal; a second signal
	// terminates the process through the default handler.
*/
package cli
