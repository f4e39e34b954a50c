package export

import (
	"context"
	"encoding/json"
	"io"

	"securemeet/relaygate/pkg/capture"
)

// JSONExporter writes records as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records to w. An empty batch is written as [].
func (e *JSONExporter) Export(ctx context.Context, records []capture.Record, w io.Writer) error {
	if records == nil {
		records = []capture.Record{}
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(records); err != nil {
		return capture.NewExportError("json", len(records), err)
	}
	return nil
}
