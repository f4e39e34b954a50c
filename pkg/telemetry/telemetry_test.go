package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"securemeet/relaygate/pkg/config"
	"securemeet/relaygate/pkg/telemetry/logging"
)

func TestNew(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.Logging.Format = "text"

	var buf bytes.Buffer
	tel, err := New(&cfg, "test", &buf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logging.SetLevel("info") })

	if tel.Metrics() == nil || tel.Tracer() == nil || tel.Health() == nil || tel.Logger() == nil {
		t.Fatal("expected every component to be built")
	}
	if tel.Tracer().Enabled() {
		t.Error("tracing is disabled by default")
	}

	tel.Logger().Info("hello", "email", "bob@example.com")
	if !strings.Contains(buf.String(), "b***@example.com") {
		t.Errorf("expected redacted email, got %s", buf.String())
	}

	cfg.Logging.Level = "error"
	if err := tel.Reload(&cfg); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	tel.Logger().Warn("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected warn to be filtered after reload, got %s", buf.String())
	}

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestNew_InvalidLogging(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.Logging.Level = "verbose"
	if _, err := New(&cfg, "test", nil); err == nil {
		t.Fatal("expected error")
	}
}
