package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"securemeet/relaygate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	enabled := true
	return &config.MetricsConfig{
		Enabled:                &enabled,
		Namespace:              "test",
		RequestDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.config != cfg {
		t.Error("Collector config not set correctly")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_Signaling(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.ConnectionOpened()
	collector.ConnectionOpened()
	collector.ConnectionClosed()
	if got := testutil.ToFloat64(collector.signalingMetrics.connectionsActive); got != 1 {
		t.Errorf("expected 1 active connection, got %v", got)
	}

	collector.SetRoomsActive(3)
	if got := testutil.ToFloat64(collector.signalingMetrics.roomsActive); got != 3 {
		t.Errorf("expected 3 active rooms, got %v", got)
	}

	collector.RecordRoomJoin("full")
	collector.RecordRoomJoin("full")
	if got := testutil.ToFloat64(collector.signalingMetrics.roomJoinsTotal.WithLabelValues("full")); got != 2 {
		t.Errorf("expected 2 full joins, got %v", got)
	}

	collector.RecordRelay("call-offer", "delivered")
	if got := testutil.ToFloat64(collector.signalingMetrics.relayedTotal.WithLabelValues("call-offer", "delivered")); got != 1 {
		t.Errorf("expected 1 relayed offer, got %v", got)
	}

	collector.RecordOutboxTimeout()
	if got := testutil.ToFloat64(collector.signalingMetrics.outboxTimeouts); got != 1 {
		t.Errorf("expected 1 outbox timeout, got %v", got)
	}
}

func TestCollector_Proxy(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	tests := []struct {
		name     string
		service  string
		status   int
		duration time.Duration
	}{
		{name: "ok", service: "chat", status: 200, duration: 200 * time.Millisecond},
		{name: "bad gateway", service: "meet", status: 502, duration: 10 * time.Millisecond},
		{name: "unclassified", service: "other", status: 404, duration: time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector.RecordProxyRequest(tt.service, tt.status, tt.duration)
			count := testutil.ToFloat64(collector.proxyMetrics.requestsTotal.WithLabelValues(tt.service, strconv.Itoa(tt.status)))
			if count != 1 {
				t.Errorf("expected count 1, got %v", count)
			}
		})
	}

	collector.RecordUpstreamError("meet", "timeout")
	if got := testutil.ToFloat64(collector.proxyMetrics.upstreamErrors.WithLabelValues("meet", "timeout")); got != 1 {
		t.Errorf("expected 1 upstream error, got %v", got)
	}

	collector.RecordWebSocketMessage("chat", "upstream")
	collector.RecordWebSocketMessage("chat", "upstream")
	if got := testutil.ToFloat64(collector.proxyMetrics.websocketMessages.WithLabelValues("chat", "upstream")); got != 2 {
		t.Errorf("expected 2 websocket messages, got %v", got)
	}
}

func TestCollector_Capture(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordCaptured(1)
	collector.RecordCaptured(2)
	collector.RecordCaptured(3)
	collector.RecordFlush(0, 3, errors.New("disk full"))
	collector.RecordFlush(3, 0, nil)
	collector.RecordDropped(5)
	collector.RecordDropped(0)
	collector.RecordArchiveError()

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"captured", collector.captureMetrics.capturedTotal, 3},
		{"buffered", collector.captureMetrics.buffered, 0},
		{"flush errors", collector.captureMetrics.flushesTotal.WithLabelValues("error"), 1},
		{"flush successes", collector.captureMetrics.flushesTotal.WithLabelValues("success"), 1},
		{"exported", collector.captureMetrics.exportedTotal, 3},
		{"dropped", collector.captureMetrics.droppedTotal, 5},
		{"archive errors", collector.captureMetrics.archiveErrors, 1},
	}
	for _, tc := range checks {
		if got := testutil.ToFloat64(tc.c); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	disabled := false
	cfg.Enabled = &disabled
	collector := NewCollector(cfg, nil)

	collector.ConnectionOpened()
	collector.RecordProxyRequest("chat", 200, time.Second)

	if got := testutil.ToFloat64(collector.signalingMetrics.connectionsActive); got != 0 {
		t.Errorf("expected no update when disabled, got %v", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector
	collector.ConnectionOpened()
	collector.RecordFlush(1, 0, nil)
	collector.RecordProxyRequest("chat", 200, time.Second)
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RecordProxyRequest("chat", 200, 50*time.Millisecond)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `test_proxy_requests_total{service="chat",status="200"} 1`) {
		t.Errorf("expected request counter in output, got:\n%s", body)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two label sets to be allowed")
	}
	if cl.Allow("c") {
		t.Error("expected third label set to be rejected")
	}
	if !cl.Allow("a") {
		t.Error("expected existing label set to stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("expected count 2, got %d", cl.Count())
	}
}
