package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"securemeet/relaygate/pkg/config"
)

func boolPtr(b bool) *bool { return &b }

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{"json", config.LoggingConfig{Level: "info", Format: "json"}, false},
		{"text", config.LoggingConfig{Level: "debug", Format: "text"}, false},
		{"console", config.LoggingConfig{Level: "warn", Format: "console"}, false},
		{"empty uses defaults", config.LoggingConfig{}, false},
		{"invalid level", config.LoggingConfig{Level: "loud"}, true},
		{"invalid format", config.LoggingConfig{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("expected logger")
			}
		})
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", RedactPII: boolPtr(false)}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.With("component", "test").Info("room joined", "room", "42", "email", "alice@example.com")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "room joined" || entry["component"] != "test" || entry["room"] != "42" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["email"] != "alice@example.com" {
		t.Errorf("expected email untouched with redaction off, got %v", entry["email"])
	}
}

func TestNew_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("peer joined",
		"email", "alice@example.com",
		"remote_addr", "10.1.2.3:51234",
		"auth_token", "abc",
	)

	out := buf.String()
	for _, leaked := range []string{"alice@example.com", "10.1.2.3", `"abc"`} {
		if strings.Contains(out, leaked) {
			t.Errorf("output leaked %s: %s", leaked, out)
		}
	}
	for _, want := range []string{"a***@example.com", "10.*.*.*:51234", `"auth_token":"***"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestNew_ConsoleOmitsTime(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "console"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")

	if strings.Contains(buf.String(), "time=") {
		t.Errorf("console output should omit time: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("unexpected output %s", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { SetLevel("info") })

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info: %s", buf.String())
	}

	if err := SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	if Level() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", Level())
	}
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("expected existing logger to pick up the new level")
	}

	if err := SetLevel("nope"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithConnID(ctx, "conn-9")
	ctx = WithService(ctx, "chat")
	logger.InfoContext(ctx, "proxied")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["request_id"] != "req-1" || entry["conn_id"] != "conn-9" || entry["service"] != "chat" {
		t.Errorf("missing context fields: %v", entry)
	}
	if _, ok := entry["trace_id"]; ok {
		t.Error("trace_id should be absent without a span")
	}

	if GetRequestID(context.Background()) != "" {
		t.Error("expected empty request id on bare context")
	}
}
