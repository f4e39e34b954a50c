package metrics

import (
	"securemeet/relaygate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics tracks the traffic capture pipeline.
type CaptureMetrics struct {
	buffered      prometheus.Gauge
	capturedTotal prometheus.Counter
	flushesTotal  *prometheus.CounterVec
	exportedTotal prometheus.Counter
	droppedTotal  prometheus.Counter
	archiveErrors prometheus.Counter
}

// NewCaptureMetrics creates and registers capture metrics with the provided registry.
func NewCaptureMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CaptureMetrics {
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: cfg.Namespace, Subsystem: "capture", Name: name, Help: help}
	}

	cm := &CaptureMetrics{
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "capture",
			Name:      "records_buffered",
			Help:      "Traffic records waiting for the next export",
		}),
		capturedTotal: prometheus.NewCounter(opts("records_captured_total", "Total traffic records captured")),
		flushesTotal: prometheus.NewCounterVec(
			opts("flushes_total", "Total export flushes by result"),
			[]string{"result"},
		),
		exportedTotal: prometheus.NewCounter(opts("records_exported_total", "Total traffic records exported")),
		droppedTotal:  prometheus.NewCounter(opts("records_dropped_total", "Traffic records discarded because the buffer was full")),
		archiveErrors: prometheus.NewCounter(opts("archive_errors_total", "Failed archive writes")),
	}

	registry.MustRegister(
		cm.buffered,
		cm.capturedTotal,
		cm.flushesTotal,
		cm.exportedTotal,
		cm.droppedTotal,
		cm.archiveErrors,
	)

	return cm
}
