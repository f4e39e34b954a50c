package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func resetGlobal() {
	SetConfig(nil)
}

func TestInitialize(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	path := writeConfig(t, `
signaling:
  listen_address: "127.0.0.1:8000"
`)
	cfg, err := Initialize(path)
	if err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}
	if GetConfig() != cfg {
		t.Fatal("expected Initialize to install the loaded config")
	}
	if cfg.Signaling.ListenAddress != "127.0.0.1:8000" {
		t.Errorf("expected listen address %q, got %q", "127.0.0.1:8000", cfg.Signaling.ListenAddress)
	}

	// A second run in the same process picks up the new file.
	other := writeConfig(t, `
signaling:
  listen_address: "127.0.0.1:9999"
`)
	if _, err := Initialize(other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := MustGetConfig().Signaling.ListenAddress; got != "127.0.0.1:9999" {
		t.Errorf("expected second Initialize to reload, got %q", got)
	}

	// A broken file leaves the installed config alone.
	before := GetConfig()
	bad := writeConfig(t, "telemetry:\n  logging:\n    level: loud\n")
	if _, err := Initialize(bad); err == nil {
		t.Fatal("expected error for invalid config")
	}
	if GetConfig() != before {
		t.Error("expected configuration to be unchanged after failed initialize")
	}
}

func TestReloadConfig_KeepsPreviousOnError(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	SetConfig(Default())
	before := GetConfig()

	bad := writeConfig(t, "telemetry:\n  logging:\n    level: loud\n")
	if err := ReloadConfig(bad); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig() != before {
		t.Error("expected configuration to be unchanged after failed reload")
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustGetConfig()
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	path := writeConfig(t, "telemetry:\n  logging:\n    level: info\n")
	SetConfig(Default())

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	go w.Watch(ctx, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	// Give the watcher a moment to start receiving events.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: debug\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Telemetry.Logging.Level != "debug" {
			t.Errorf("expected reloaded level debug, got %q", cfg.Telemetry.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
