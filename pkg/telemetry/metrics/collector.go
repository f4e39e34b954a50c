package metrics

import (
	"fmt"
	"sync"
	"time"

	"securemeet/relaygate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the entry point for all Prometheus metrics in relaygate.
// It owns the registry and exposes one method per observable event so
// components never touch metric vectors directly.
//
// All methods are safe on a nil *Collector and do nothing when metrics are
// disabled, which lets components take an optional collector.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	signalingMetrics *SignalingMetrics
	proxyMetrics     *ProxyMetrics
	captureMetrics   *CaptureMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := config.Default().Telemetry.Metrics
//	collector := metrics.NewCollector(&cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(10000),
	}

	c.signalingMetrics = NewSignalingMetrics(cfg, registry)
	c.proxyMetrics = NewProxyMetrics(cfg, registry)
	c.captureMetrics = NewCaptureMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.IsEnabled()
}

// ConnectionOpened increments the live signaling connection gauge.
func (c *Collector) ConnectionOpened() {
	if !c.enabled() {
		return
	}
	c.signalingMetrics.connectionsActive.Inc()
}

// ConnectionClosed decrements the live signaling connection gauge.
func (c *Collector) ConnectionClosed() {
	if !c.enabled() {
		return
	}
	c.signalingMetrics.connectionsActive.Dec()
}

// SetRoomsActive records the number of non-empty rooms.
func (c *Collector) SetRoomsActive(n int) {
	if !c.enabled() {
		return
	}
	c.signalingMetrics.roomsActive.Set(float64(n))
}

// RecordRoomJoin records the outcome of a join attempt.
//
// Parameters:
//   - result: "first", "second", "rejoin", "full", or "error"
func (c *Collector) RecordRoomJoin(result string) {
	if !c.enabled() {
		return
	}
	c.signalingMetrics.roomJoinsTotal.WithLabelValues(result).Inc()
}

// RecordRelay records a relayed signaling message.
//
// Parameters:
//   - msgType: inbound event type (e.g., "call-offer")
//   - result: "delivered", "unreachable", or "backpressure"
func (c *Collector) RecordRelay(msgType, result string) {
	if !c.enabled() {
		return
	}
	c.signalingMetrics.relayedTotal.WithLabelValues(msgType, result).Inc()
}

// RecordOutboxTimeout records a connection dropped because its outbound
// queue stayed full.
func (c *Collector) RecordOutboxTimeout() {
	if !c.enabled() {
		return
	}
	c.signalingMetrics.outboxTimeouts.Inc()
}

// RecordProxyRequest records a completed forwarded request.
//
// Parameters:
//   - service: classified service name (e.g., "chat", "other")
//   - status: HTTP status code returned to the client
//   - duration: wall-clock time from receipt to completion
func (c *Collector) RecordProxyRequest(service string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}

	statusLabel := fmt.Sprintf("%d", status)
	if !c.cardinalityLimiter.Allow("proxy:" + service + ":" + statusLabel) {
		statusLabel = "other"
	}

	c.proxyMetrics.RecordRequest(service, statusLabel, duration)
}

// RecordUpstreamError records an upstream failure.
//
// Parameters:
//   - service: classified service name
//   - kind: "timeout", "refused", "canceled", or "error"
func (c *Collector) RecordUpstreamError(service, kind string) {
	if !c.enabled() {
		return
	}
	c.proxyMetrics.upstreamErrors.WithLabelValues(service, kind).Inc()
}

// RecordWebSocketMessage records a frame forwarded through the proxy.
//
// Parameters:
//   - service: classified service name
//   - direction: "upstream" (client to backend) or "downstream"
func (c *Collector) RecordWebSocketMessage(service, direction string) {
	if !c.enabled() {
		return
	}
	c.proxyMetrics.websocketMessages.WithLabelValues(service, direction).Inc()
}

// RecordCaptured records a record appended to the capture buffer and the
// resulting buffer length.
func (c *Collector) RecordCaptured(buffered int) {
	if !c.enabled() {
		return
	}
	c.captureMetrics.capturedTotal.Inc()
	c.captureMetrics.buffered.Set(float64(buffered))
}

// RecordDropped records records discarded because the buffer was at capacity.
func (c *Collector) RecordDropped(n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.captureMetrics.droppedTotal.Add(float64(n))
}

// RecordFlush records the outcome of an export flush.
//
// Parameters:
//   - exported: number of records written (0 on failure)
//   - buffered: records left in the buffer afterwards
//   - err: nil on success
func (c *Collector) RecordFlush(exported, buffered int, err error) {
	if !c.enabled() {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.captureMetrics.flushesTotal.WithLabelValues(result).Inc()
	c.captureMetrics.exportedTotal.Add(float64(exported))
	c.captureMetrics.buffered.Set(float64(buffered))
}

// RecordArchiveError records a failed archive write.
func (c *Collector) RecordArchiveError() {
	if !c.enabled() {
		return
	}
	c.captureMetrics.archiveErrors.Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already tracked or still fits under the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	_, exists := cl.current[labelSet]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
