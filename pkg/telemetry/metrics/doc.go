// Package metrics provides Prometheus metrics collection for relaygate.
//
// # Overview
//
// A single Collector owns a private Prometheus registry and exposes one method
// per observable event. Both services share the collector type; each process
// registers every family and simply never touches the ones it does not use.
//
// # Metrics Categories
//
//   - Signaling: live connections, active rooms, join outcomes, relayed
//     messages, outbox timeouts
//   - Proxy: requests by service and status, request duration, upstream
//     errors, bridged WebSocket frames
//   - Capture: buffered records, captured/exported/dropped totals, flush
//     outcomes, archive errors
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordProxyRequest("chat", 200, 120*time.Millisecond)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// All record methods are no-ops on a nil collector, so components may be
// constructed without metrics in tests.
package metrics
