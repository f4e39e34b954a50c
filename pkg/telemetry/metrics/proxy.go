package metrics

import (
	"time"

	"securemeet/relaygate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ProxyMetrics tracks the capturing reverse proxy.
//
// Metrics:
//   - relaygate_proxy_requests_total: forwarded requests by service and status
//   - relaygate_proxy_request_duration_seconds: request duration histogram
//   - relaygate_proxy_upstream_errors_total: upstream failures by kind
//   - relaygate_proxy_websocket_messages_total: bridged frames by direction
type ProxyMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	upstreamErrors    *prometheus.CounterVec
	websocketMessages *prometheus.CounterVec
}

// NewProxyMetrics creates and registers proxy metrics with the provided registry.
func NewProxyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProxyMetrics {
	pm := &ProxyMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of proxied HTTP requests",
			},
			[]string{"service", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "proxy",
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied HTTP requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"service"},
		),

		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "proxy",
				Name:      "upstream_errors_total",
				Help:      "Total upstream failures by service and kind",
			},
			[]string{"service", "kind"},
		),

		websocketMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "proxy",
				Name:      "websocket_messages_total",
				Help:      "Total WebSocket frames forwarded by the proxy",
			},
			[]string{"service", "direction"},
		),
	}

	registry.MustRegister(
		pm.requestsTotal,
		pm.requestDuration,
		pm.upstreamErrors,
		pm.websocketMessages,
	)

	return pm
}

// RecordRequest records a completed proxied request.
func (pm *ProxyMetrics) RecordRequest(service, status string, duration time.Duration) {
	pm.requestsTotal.WithLabelValues(service, status).Inc()
	pm.requestDuration.WithLabelValues(service).Observe(duration.Seconds())
}
