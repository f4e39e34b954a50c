package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"securemeet/relaygate/pkg/config"
	"securemeet/relaygate/pkg/telemetry/health"
	"securemeet/relaygate/pkg/telemetry/logging"
	"securemeet/relaygate/pkg/telemetry/metrics"
	"securemeet/relaygate/pkg/telemetry/tracing"
)

// Telemetry bundles the observability components shared by a process.
type Telemetry struct {
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	health  *health.Checker
}

// New sets up logging as the slog default, then builds the metrics
// collector, tracer and health checker from cfg. Logs go to logOut, or
// stderr when nil.
func New(cfg *config.TelemetryConfig, version string, logOut io.Writer) (*Telemetry, error) {
	logger, err := logging.Setup(cfg.Logging, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing, version)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	return &Telemetry{
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Metrics, nil),
		tracer:  tracer,
		health:  health.New(cfg.Health.CheckTimeout),
	}, nil
}

// Logger returns the process logger.
func (t *Telemetry) Logger() *slog.Logger { return t.logger }

// Metrics returns the metrics collector.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the tracer.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Reload applies the hot-reloadable parts of cfg. Only the log level can
// change without a restart.
func (t *Telemetry) Reload(cfg *config.TelemetryConfig) error {
	return logging.SetLevel(cfg.Logging.Level)
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if err := t.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer: %w", err))
	}
	return errors.Join(errs...)
}
