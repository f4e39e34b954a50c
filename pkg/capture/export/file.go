package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"securemeet/relaygate/pkg/capture"
)

// appendFile is the part of *os.File the exporter writes through.
type appendFile interface {
	io.WriteCloser
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
}

func openAppend(path string) (appendFile, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// FileExporter appends CSV batches to a file. The header row is written
// only when the file is new or empty. Each batch is encoded in memory and
// appended with a single write; a failed write is truncated away, so a
// batch lands in the file either whole or not at all.
type FileExporter struct {
	path   string
	open   func(path string) (appendFile, error)
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileExporter creates an exporter appending to path. Parent
// directories are created on first export.
func NewFileExporter(path string) *FileExporter {
	return &FileExporter{
		path:   path,
		open:   openAppend,
		logger: slog.Default().With("component", "capture.export"),
	}
}

// Path returns the export file path.
func (e *FileExporter) Path() string {
	return e.path
}

// Export implements capture.Exporter.
func (e *FileExporter) Export(ctx context.Context, records []capture.Record) error {
	if len(records) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return capture.NewExportError("csv", len(records), err)
	}

	needHeader := true
	if info, err := os.Stat(e.path); err == nil && info.Size() > 0 {
		needHeader = false
	}

	var buf bytes.Buffer
	if err := NewCSVExporter(needHeader).Export(ctx, records, &buf); err != nil {
		return err
	}

	f, err := e.open(e.path)
	if err != nil {
		return capture.NewExportError("csv", len(records), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return capture.NewExportError("csv", len(records), err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		// Drop the partial rows so the retried batch is not duplicated.
		if terr := f.Truncate(info.Size()); terr != nil {
			err = fmt.Errorf("%w (rollback of %s failed: %v)", err, e.path, terr)
		}
		f.Close()
		return capture.NewExportError("csv", len(records), err)
	}
	if err := f.Close(); err != nil {
		// The rows were fully written; failing here would export them twice.
		e.logger.Warn("closing export file failed after a complete write",
			"path", e.path,
			"records", len(records),
			"error", err,
		)
	}
	return nil
}

// CheckWritable reports whether the export directory exists or can be
// created and accepts new files. Used as a readiness check.
func (e *FileExporter) CheckWritable(ctx context.Context) error {
	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".relaygate-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
