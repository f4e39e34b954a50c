// Package export encodes traffic records.
//
// FileExporter is the pipeline's exporter: it appends CSV batches to the
// file read by the intrusion-detection classifier. CSVExporter and
// JSONExporter write to any io.Writer and back the archive query command.
package export
