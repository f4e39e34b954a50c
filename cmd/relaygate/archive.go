package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/capture/storage"
	"securemeet/relaygate/pkg/cli"
)

// archivePageSize is the number of records fetched per archive query.
const archivePageSize = 500

var archiveFlags struct {
	service string
	proto   string
	state   string
	since   string
	limit   int
	format  string
	output  string
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect archived traffic records",
	Long: `Inspect the archive of exported traffic records.

The archive is written by the proxy when capture.archive.enabled is set. It
keeps a queryable copy of every batch appended to the CSV export file.`,
}

var archiveQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query archived traffic records",
	Long: `Query archived traffic records, newest first.

--since accepts a duration relative to now (e.g. 30m, 24h) or an RFC3339
timestamp. CSV output uses the full export column layout, so the result can
be fed to the same tools as the export file.

Examples:
  # Last hour of chat traffic
  relaygate archive query --service chat --since 1h

  # WebSocket records as JSON
  relaygate archive query --proto WS --format json

  # Re-export everything since a date to CSV
  relaygate archive query --since 2025-11-19T00:00:00Z --limit 0 --format csv --output traffic.csv`,
	RunE: runArchiveQuery,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveQueryCmd)

	f := archiveQueryCmd.Flags()
	f.StringVar(&archiveFlags.service, "service", "", "filter by service name")
	f.StringVar(&archiveFlags.proto, "proto", "", "filter by protocol (HTTP, WS)")
	f.StringVar(&archiveFlags.state, "state", "", "filter by state (OK, ERR, OPEN, MESSAGE, CLOSE)")
	f.StringVar(&archiveFlags.since, "since", "", "only records newer than a duration ago or an RFC3339 time")
	f.IntVar(&archiveFlags.limit, "limit", storage.DefaultQueryLimit, "maximum records to return (0 for all)")
	f.StringVar(&archiveFlags.format, "format", string(cli.FormatText), "output format: text, json, csv")
	f.StringVarP(&archiveFlags.output, "output", "o", "", "write to file instead of stdout")
}

func runArchiveQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Capture.Archive.Enabled {
		return cli.NewConfigError("capture.archive.enabled", "the archive is disabled")
	}
	if cfg.Capture.Archive.Backend == "memory" {
		return cli.NewConfigError("capture.archive.backend", "the memory archive only lives inside the proxy process")
	}

	formatter, err := cli.NewFormatter(cli.OutputFormat(archiveFlags.format))
	if err != nil {
		return err
	}

	since, err := parseSince(archiveFlags.since, time.Now())
	if err != nil {
		return cli.NewConfigError("since", err.Error())
	}
	if archiveFlags.limit < 0 {
		return cli.NewConfigError("limit", "must not be negative")
	}

	store, err := storage.New(cfg.Capture.Archive)
	if err != nil {
		return cli.NewCommandError("archive query", err)
	}
	defer store.Close()

	var w io.Writer = cmd.OutOrStdout()
	var progress cli.ProgressReporter
	if archiveFlags.output != "" {
		f, err := os.Create(archiveFlags.output)
		if err != nil {
			return cli.NewCommandError("archive query", err)
		}
		defer f.Close()
		w = f
		progress = cli.NewProgressReporter(cmd.ErrOrStderr())
	}

	q := &storage.Query{
		Service: archiveFlags.service,
		Proto:   archiveFlags.proto,
		State:   archiveFlags.state,
		Since:   since,
	}
	records, err := queryArchive(cmd.Context(), store, q, archiveFlags.limit, progress)
	if err != nil {
		return cli.NewCommandError("archive query", err)
	}

	var data any = recordTable(records)
	switch cli.OutputFormat(archiveFlags.format) {
	case cli.FormatJSON:
		data = records
	case cli.FormatCSV:
		data = exportTable(records)
	}
	if err := formatter.FormatTo(w, data); err != nil {
		return cli.NewCommandError("archive query", err)
	}

	if archiveFlags.output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(records), archiveFlags.output)
	}
	return nil
}

// queryArchive pages through the archive until limit records (all when
// zero) have been read.
func queryArchive(ctx context.Context, store storage.Storage, q *storage.Query, limit int, progress cli.ProgressReporter) ([]capture.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	total, err := store.Count(ctx, q)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(limit) < total {
		total = int64(limit)
	}
	if progress != nil {
		progress.Start(total)
		defer progress.Finish()
	}

	records := make([]capture.Record, 0, total)
	for int64(len(records)) < total {
		page := *q
		page.Offset = len(records)
		page.Limit = min(archivePageSize, int(total)-len(records))

		batch, err := store.Query(ctx, &page)
		if err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		records = append(records, batch...)
		if progress != nil {
			progress.Update(int64(len(records)))
		}
	}
	return records, nil
}

func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("duration %q must be positive", s)
		}
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither a duration nor an RFC3339 time", s)
	}
	return t, nil
}

// recordTable is the compact text view of archived records.
type recordTable []capture.Record

func (t recordTable) Header() []string {
	return []string{"TIMESTAMP", "SERVICE", "PROTO", "STATE", "SOURCE", "DUR", "SBYTES", "DBYTES"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			capture.FormatTimestamp(r.Timestamp),
			r.Service,
			r.Proto,
			r.State,
			r.SrcIP + ":" + strconv.Itoa(r.Sport),
			strconv.FormatFloat(r.Dur, 'f', 3, 64),
			strconv.FormatInt(r.Sbytes, 10),
			strconv.FormatInt(r.Dbytes, 10),
		})
	}
	return rows
}

// exportTable renders records in the export file's column layout.
type exportTable []capture.Record

func (t exportTable) Header() []string { return capture.Columns }

func (t exportTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for i := range t {
		rows = append(rows, t[i].Values())
	}
	return rows
}
