package export

import (
	"context"
	"encoding/csv"
	"io"

	"securemeet/relaygate/pkg/capture"
)

// CSVExporter writes records as CSV in capture.Columns order.
type CSVExporter struct {
	// IncludeHeader writes the column names as the first row.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []capture.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(capture.Columns); err != nil {
			return capture.NewExportError("csv", len(records), err)
		}
	}

	for i := range records {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return capture.NewExportError("csv", len(records), err)
			}
		}
		if err := writer.Write(records[i].Values()); err != nil {
			return capture.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return capture.NewExportError("csv", len(records), err)
	}
	return nil
}
