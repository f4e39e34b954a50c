package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"securemeet/relaygate/internal/upstream"
	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/config"
	"securemeet/relaygate/pkg/proxy/types"
	"securemeet/relaygate/pkg/telemetry/metrics"
	"securemeet/relaygate/pkg/telemetry/tracing"
)

type fakeCapturer struct {
	mu      sync.Mutex
	records []capture.Record
}

func (f *fakeCapturer) Capture(rec capture.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

func (f *fakeCapturer) all() []capture.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capture.Record(nil), f.records...)
}

// waitRecords waits until n records were captured. Capture runs after the
// response is written, so a client can observe the response first.
func (f *fakeCapturer) waitRecords(t *testing.T, n int) []capture.Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		recs := f.all()
		if len(recs) >= n {
			return recs
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d records, got %d", n, len(recs))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type testProxy struct {
	dispatcher *Dispatcher
	capturer   *fakeCapturer
	server     *httptest.Server
	metrics    *metrics.Collector
}

func newTestProxy(t *testing.T, services []config.ServiceConfig, defaultTarget string, mutate func(*Options)) *testProxy {
	t.Helper()
	classifier, err := NewClassifier(services, defaultTarget)
	if err != nil {
		t.Fatalf("NewClassifier() failed: %v", err)
	}

	cfg := config.Default().Telemetry.Metrics
	collector := metrics.NewCollector(&cfg, nil)
	opts := Options{UpstreamTimeout: 2 * time.Second, MaxIdleConnsPerHost: 4, Metrics: collector}
	if mutate != nil {
		mutate(&opts)
	}

	capturer := &fakeCapturer{}
	d := NewDispatcher(classifier, capturer, opts)
	ts := httptest.NewServer(d)
	t.Cleanup(ts.Close)
	return &testProxy{dispatcher: d, capturer: capturer, server: ts, metrics: collector}
}

func chatService(target string) []config.ServiceConfig {
	return []config.ServiceConfig{
		{Name: "chat", Target: target, Prefixes: []string{"/chat"}, StripPrefix: true},
		{Name: "meet", Target: target, Prefixes: []string{"/meet"}, StripPrefix: true},
	}
}

func TestDispatcher_ForwardsAndCaptures(t *testing.T) {
	up := upstream.New()
	defer up.Close()
	up.SetResponse("/api/messages", upstream.Response{
		StatusCode: http.StatusOK,
		Body:       bytes.Repeat([]byte("r"), 1500),
		Headers:    map[string]string{"Content-Type": "text/plain"},
	})

	p := newTestProxy(t, chatService(up.URL()), "", nil)

	req, _ := http.NewRequest(http.MethodPost, p.server.URL+"/chat/api/messages?room=42", bytes.NewReader(bytes.Repeat([]byte("s"), 500)))
	req.Header.Set("Proxy-Authorization", "Basic secret")
	req.Header.Set("X-Request-ID", "req-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || len(body) != 1500 {
		t.Fatalf("unexpected response %d with %d bytes", resp.StatusCode, len(body))
	}

	got, ok := up.LastRequest()
	if !ok {
		t.Fatal("upstream received nothing")
	}
	if got.Path != "/api/messages" || got.RawQuery != "room=42" {
		t.Errorf("forwarded to %s?%s, want /api/messages?room=42", got.Path, got.RawQuery)
	}
	if len(got.Body) != 500 || got.Method != http.MethodPost {
		t.Errorf("forwarded %s with %d body bytes", got.Method, len(got.Body))
	}
	if got.Header.Get("X-Forwarded-For") != "127.0.0.1" {
		t.Errorf("X-Forwarded-For = %q", got.Header.Get("X-Forwarded-For"))
	}
	if got.Header.Get("X-Forwarded-Host") == "" || got.Header.Get("X-Forwarded-Proto") != "http" {
		t.Errorf("missing forwarding headers: %v", got.Header)
	}
	if got.Header.Get("Proxy-Authorization") != "" {
		t.Error("hop-by-hop header was forwarded")
	}
	if got.Header.Get("X-Request-ID") != "req-1" {
		t.Error("end-to-end header was dropped")
	}

	rec := p.capturer.waitRecords(t, 1)[0]
	if rec.Service != "chat" || rec.Proto != capture.ProtoHTTP || rec.State != capture.StateOK {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Sbytes != 500 || rec.Dbytes != 1500 {
		t.Errorf("record bytes = %d/%d, want 500/1500", rec.Sbytes, rec.Dbytes)
	}
	if rec.SrcIP != "127.0.0.1" || rec.Sport == 0 || rec.DstIP != "127.0.0.1" || rec.Dsport == 0 {
		t.Errorf("record addresses not from transport: %+v", rec)
	}
	if rec.CtFlwHTTPMthd != 0 {
		t.Error("POST must not set ct_flw_http_mthd")
	}

	count, err := testutil.GatherAndCount(p.metrics.Registry(), "relaygate_proxy_requests_total")
	if err != nil || count != 1 {
		t.Errorf("expected one request series, got %d (%v)", count, err)
	}
}

func TestDispatcher_Classification(t *testing.T) {
	chat := upstream.New()
	defer chat.Close()
	meet := upstream.New()
	defer meet.Close()

	services := []config.ServiceConfig{
		{Name: "chat", Target: chat.URL(), Prefixes: []string{"/chat"}, StripPrefix: true},
		{Name: "meet", Target: meet.URL(), Prefixes: []string{"/meet"}},
	}
	p := newTestProxy(t, services, "", nil)

	for i := 0; i < 3; i++ {
		resp, err := http.Get(p.server.URL + "/chat/api/messages")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}
	resp, err := http.Get(p.server.URL + "/meet/room")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if n := len(chat.Requests()); n != 3 {
		t.Errorf("chat upstream got %d requests, want 3", n)
	}
	reqs := meet.Requests()
	if len(reqs) != 1 || reqs[0].Path != "/meet/room" {
		t.Errorf("meet upstream got %+v, want unstripped /meet/room", reqs)
	}
}

func TestDispatcher_NoRoute(t *testing.T) {
	up := upstream.New()
	defer up.Close()
	p := newTestProxy(t, chatService(up.URL()), "", nil)

	resp, err := http.Get(p.server.URL + "/nowhere")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var errResp types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Type != types.ErrorTypeNotFound {
		t.Errorf("unexpected body %+v (%v)", errResp, err)
	}
	if len(up.Requests()) != 0 {
		t.Error("unroutable request must not be forwarded")
	}

	rec := p.capturer.waitRecords(t, 1)[0]
	if rec.Service != capture.ServiceOther || rec.State != capture.StateErr {
		t.Errorf("expected an 'other' ERR record, got %+v", rec)
	}
}

func TestDispatcher_DefaultTarget(t *testing.T) {
	chat := upstream.New()
	defer chat.Close()
	fallback := upstream.New()
	defer fallback.Close()

	p := newTestProxy(t, chatService(chat.URL()), fallback.URL(), nil)

	resp, err := http.Get(p.server.URL + "/static/app.js")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got, ok := fallback.LastRequest()
	if !ok || got.Path != "/static/app.js" {
		t.Errorf("fallback got %+v", got)
	}
	if rec := p.capturer.waitRecords(t, 1)[0]; rec.Service != capture.ServiceOther || rec.State != capture.StateOK {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestDispatcher_UpstreamFailures(t *testing.T) {
	slow := upstream.New()
	defer slow.Close()
	slow.SetResponse("/slow", upstream.Response{Delay: 5 * time.Second})

	dead := upstream.New()
	deadURL := dead.URL()
	dead.Close()

	tests := []struct {
		name       string
		target     string
		path       string
		wantStatus int
		wantType   string
		wantKind   string
	}{
		{"refused", deadURL, "/chat/x", http.StatusBadGateway, types.ErrorTypeBadGateway, KindRefused},
		{"timeout", slow.URL(), "/chat/slow", http.StatusGatewayTimeout, types.ErrorTypeGatewayTimeout, KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProxy(t, chatService(tt.target), "", func(o *Options) {
				o.UpstreamTimeout = 100 * time.Millisecond
			})

			resp, err := http.Get(p.server.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var errResp types.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if errResp.Error.Type != tt.wantType || errResp.Error.Message == "" {
				t.Errorf("unexpected error body %+v", errResp)
			}

			rec := p.capturer.waitRecords(t, 1)[0]
			if rec.State != capture.StateErr || rec.Service != "chat" {
				t.Errorf("unexpected record %+v", rec)
			}

			count, err := testutil.GatherAndCount(p.metrics.Registry(), "relaygate_proxy_upstream_errors_total")
			if err != nil || count != 1 {
				t.Errorf("expected one upstream error series, got %d (%v)", count, err)
			}
			if !strings.Contains(gatherLabels(t, p.metrics, "relaygate_proxy_upstream_errors_total"), "kind="+tt.wantKind) {
				t.Errorf("expected kind %q in upstream error labels", tt.wantKind)
			}
		})
	}
}

func gatherLabels(t *testing.T, c *metrics.Collector, name string) string {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				sb.WriteString(l.GetName() + "=" + l.GetValue() + ";")
			}
		}
	}
	return sb.String()
}

func TestDispatcher_TracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(t.Context())

	up := upstream.New()
	defer up.Close()
	p := newTestProxy(t, chatService(up.URL()), "", func(o *Options) {
		o.Tracer = tracing.NewFromProvider(provider)
	})

	resp, err := http.Get(p.server.URL + "/chat/ping")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	got, _ := up.LastRequest()
	if got.Header.Get("traceparent") == "" {
		t.Error("expected traceparent on the forwarded request")
	}

	p.capturer.waitRecords(t, 1)
	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "proxy chat" {
		t.Fatalf("expected one 'proxy chat' span, got %d", len(spans))
	}
}
