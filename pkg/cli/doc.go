/*
Package cli provides command-line helpers for the relaygate binary.

Output Formatting:

Commands that print records (archive query) support text, JSON and CSV.
Tabular data implements Table so every formatter can render it:

	formatter, err := cli.NewFormatter(cli.FormatCSV)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, rows)

Progress Reporting:

Long exports report progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(total)
	progress.Update(done)
	progress.Finish()

Signal Handling:

The long-running services stop gracefully on SIGINT/SIGTERM; a second signal
exits immediately:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
