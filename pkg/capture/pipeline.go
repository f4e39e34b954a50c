package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"securemeet/relaygate/pkg/telemetry/metrics"
)

// Exporter writes a batch of records to persistent storage. A batch is
// either written completely or not at all.
type Exporter interface {
	Export(ctx context.Context, records []Record) error
}

// Archive keeps a queryable copy of exported records.
type Archive interface {
	Store(ctx context.Context, records []Record) error
}

// Options configures a Pipeline.
type Options struct {
	// MaxBuffered caps the buffer. When exceeded the oldest records are
	// dropped. Zero means unbounded.
	MaxBuffered int

	// ExportTimeout bounds each export call. Zero means no timeout.
	ExportTimeout time.Duration

	// Archive receives each successfully exported batch. Optional.
	Archive Archive

	// Metrics is optional.
	Metrics *metrics.Collector
}

// Pipeline buffers traffic records in memory and exports them in batches.
type Pipeline struct {
	exporter Exporter
	opts     Options
	logger   *slog.Logger

	mu  sync.Mutex
	buf []Record

	// flushMu serializes flushes so that a failed batch is restored before
	// the next flush drains the buffer.
	flushMu sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewPipeline creates a pipeline exporting through exporter.
func NewPipeline(exporter Exporter, opts Options) *Pipeline {
	return &Pipeline{
		exporter: exporter,
		opts:     opts,
		logger:   slog.Default().With("component", "capture.pipeline"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Capture merges partial over the record defaults, assigns an id and
// timestamp when absent, and appends the result to the buffer.
func (p *Pipeline) Capture(partial Record) {
	rec := withDefaults(partial)
	if rec.ID == "" {
		rec.ID = p.newID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = p.now().UTC()
	}

	p.mu.Lock()
	p.buf = append(p.buf, rec)
	dropped := p.trimLocked()
	buffered := len(p.buf)
	p.mu.Unlock()

	p.opts.Metrics.RecordCaptured(buffered)
	if dropped > 0 {
		p.opts.Metrics.RecordDropped(dropped)
	}
}

// trimLocked drops the oldest records beyond MaxBuffered and returns how
// many were dropped.
func (p *Pipeline) trimLocked() int {
	excess := len(p.buf) - p.opts.MaxBuffered
	if p.opts.MaxBuffered <= 0 || excess <= 0 {
		return 0
	}
	p.buf = append(p.buf[:0:0], p.buf[excess:]...)
	return excess
}

// Flush exports every buffered record and returns how many were exported.
// Records captured while the export runs stay buffered for the next flush.
// On failure the batch is put back ahead of newer records and an
// *ExportError is returned.
func (p *Pipeline) Flush(ctx context.Context) (int, error) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	batch := p.buf
	p.buf = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	exportCtx := ctx
	if p.opts.ExportTimeout > 0 {
		var cancel context.CancelFunc
		exportCtx, cancel = context.WithTimeout(ctx, p.opts.ExportTimeout)
		defer cancel()
	}

	if err := p.exporter.Export(exportCtx, batch); err != nil {
		p.mu.Lock()
		p.buf = append(batch, p.buf...)
		dropped := p.trimLocked()
		buffered := len(p.buf)
		p.mu.Unlock()

		if dropped > 0 {
			p.opts.Metrics.RecordDropped(dropped)
		}
		p.opts.Metrics.RecordFlush(0, buffered, err)
		p.logger.Error("traffic export failed, records kept for retry",
			"records", len(batch),
			"buffered", buffered,
			"error", err,
		)
		var exportErr *ExportError
		if errors.As(err, &exportErr) {
			return 0, err
		}
		return 0, NewExportError("csv", len(batch), err)
	}

	p.opts.Metrics.RecordFlush(len(batch), p.Len(), nil)
	p.logger.Info("exported traffic records", "records", len(batch))

	if p.opts.Archive != nil {
		if err := p.opts.Archive.Store(ctx, batch); err != nil {
			p.opts.Metrics.RecordArchiveError()
			p.logger.Warn("failed to archive exported records", "records", len(batch), "error", err)
		}
	}

	return len(batch), nil
}

// Len returns the number of buffered records.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// Close performs a final flush.
func (p *Pipeline) Close(ctx context.Context) error {
	_, err := p.Flush(ctx)
	return err
}
