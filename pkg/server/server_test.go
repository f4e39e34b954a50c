package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/capture/export"
	"securemeet/relaygate/pkg/config"
	"securemeet/relaygate/pkg/proxy/middleware"
	"securemeet/relaygate/pkg/telemetry/health"
	"securemeet/relaygate/pkg/telemetry/metrics"
)

func testRouter(cfg *config.Config) http.Handler {
	checker := health.New(time.Second)
	checker.RegisterCheck("always", func(context.Context) error { return nil })

	return NewRouter(RouterOptions{
		CORS:      cfg.Proxy.CORS,
		Telemetry: cfg.Telemetry,
		Health:    checker,
		Metrics:   metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		Build:     BuildInfo{Version: "test"},
		Routes: []Route{{
			Pattern: "/proxy/status",
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "status") }),
		}},
		Fallback: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "fallback "+r.URL.Path) }),
	})
}

func startServer(t *testing.T, handler http.Handler) (*Server, string, context.CancelFunc, <-chan error) {
	t.Helper()
	cfg := config.Default().Proxy.ServerConfig
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.ShutdownTimeout = 2 * time.Second

	srv := New("test", &cfg, handler)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(cancel)

	return srv, "http://" + srv.Addr(), cancel, done
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestRouter_Routes(t *testing.T) {
	_, base, _, _ := startServer(t, testRouter(config.Default()))

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/health", http.StatusOK, `"status"`},
		{"/ready", http.StatusOK, `"ready"`},
		{"/version", http.StatusOK, `"version":"test"`},
		{"/metrics", http.StatusOK, "relaygate_"},
		{"/proxy/status", http.StatusOK, "status"},
		{"/chat/rooms", http.StatusOK, "fallback /chat/rooms"},
		{"/health/upstream", http.StatusOK, "fallback /health/upstream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, base+tt.path)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if !strings.Contains(body, tt.contains) {
				t.Errorf("body %q does not contain %q", body, tt.contains)
			}
			if resp.Header.Get(middleware.RequestIDHeader) == "" {
				t.Error("expected X-Request-ID on every response")
			}
		})
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	disabled := false
	cfg.Telemetry.Metrics.Enabled = &disabled

	_, base, _, _ := startServer(t, testRouter(cfg))

	_, body := get(t, base+"/metrics")
	if body != "fallback /metrics" {
		t.Errorf("expected /metrics to fall through when disabled, got %q", body)
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	handler := NewRouter(RouterOptions{
		Telemetry: config.Default().Telemetry,
		Fallback:  http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	})
	_, base, _, _ := startServer(t, handler)

	resp, body := get(t, base+"/anything")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(body, "server_error") {
		t.Errorf("expected JSON error body, got %q", body)
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		io.WriteString(w, "drained")
	})
	srv, base, cancel, done := startServer(t, handler)

	var hookRan atomic.Bool
	srv.OnShutdown(func(ctx context.Context) error {
		hookRan.Store(true)
		return nil
	})

	inflight := make(chan string, 1)
	go func() {
		resp, err := http.Get(base + "/slow")
		if err != nil {
			inflight <- err.Error()
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		inflight <- string(b)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	if got := <-inflight; got != "drained" {
		t.Errorf("in-flight request = %q, want drained", got)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if !hookRan.Load() {
		t.Error("expected shutdown hook to run")
	}
	if srv.IsRunning() {
		t.Error("expected server to be stopped")
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown returned %v", err)
	}
}

func TestServer_HooksOutliveDrainTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.csv")
	pipeline := capture.NewPipeline(export.NewFileExporter(path), capture.Options{})
	for i := 0; i < 3; i++ {
		pipeline.Capture(capture.Record{Service: "chat"})
	}

	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(800 * time.Millisecond)
	})

	cfg := config.Default().Proxy.ServerConfig
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.ShutdownTimeout = 200 * time.Millisecond
	srv := New("test", &cfg, handler)
	srv.OnShutdown(pipeline.Close)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	go func() {
		if resp, err := http.Get("http://" + srv.Addr() + "/slow"); err == nil {
			resp.Body.Close()
		}
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "server shutdown error") {
			t.Errorf("expected drain timeout to be reported, got %v", err)
		}
		if err != nil && strings.Contains(err.Error(), "export") {
			t.Errorf("final flush must not fail after a slow drain: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return")
	}

	if n := pipeline.Len(); n != 0 {
		t.Errorf("%d records still buffered after shutdown", n)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 4 {
		t.Errorf("export has %d lines, want header plus 3 records", lines)
	}
}

func TestServer_HookErrorsReturned(t *testing.T) {
	srv, _, cancel, done := startServer(t, http.NotFoundHandler())
	hookErr := errors.New("final flush failed")
	srv.OnShutdown(func(context.Context) error { return hookErr })

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, hookErr) {
			t.Errorf("expected hook error, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestServer_ListenErrors(t *testing.T) {
	cfg := config.Default().Proxy.ServerConfig
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.TLS = config.TLSConfig{Enabled: true, CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}

	if err := New("tls", &cfg, http.NotFoundHandler()).Listen(); err == nil || !strings.Contains(err.Error(), "TLS") {
		t.Errorf("expected TLS configuration error, got %v", err)
	}

	cfg.TLS = config.TLSConfig{}
	cfg.ListenAddress = "not-an-address"
	if err := New("bad", &cfg, http.NotFoundHandler()).Listen(); err == nil {
		t.Error("expected listen error for a malformed address")
	}
}
