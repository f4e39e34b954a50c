package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"securemeet/relaygate/pkg/config"
)

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{"no checks", nil, StatusReady},
		{"all ok", map[string]CheckFunc{
			"a": func(context.Context) error { return nil },
			"b": func(context.Context) error { return nil },
		}, StatusReady},
		{"one failing", map[string]CheckFunc{
			"a": func(context.Context) error { return nil },
			"b": func(context.Context) error { return errors.New("connection refused") },
		}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}
			got := c.CheckReadiness(context.Background())
			if got.Status != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, got.Status, got.Checks)
			}
			if len(got.Checks) != len(tt.checks) {
				t.Errorf("expected %d results, got %d", len(tt.checks), len(got.Checks))
			}
		})
	}
}

func TestCheckTimeout(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	got := c.CheckReadiness(context.Background())
	if got.Checks["slow"].Status != StatusUnhealthy || got.Checks["slow"].Message != "health check timeout" {
		t.Errorf("expected timeout, got %+v", got.Checks["slow"])
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	mux := http.NewServeMux()
	c.Mount(mux, config.HealthConfig{LivenessPath: "/health", ReadinessPath: "/ready"}, "1.2.3", "abc", "today")

	tests := []struct {
		name   string
		method string
		path   string
		fail   bool
		want   int
	}{
		{"liveness", http.MethodGet, "/health", false, http.StatusOK},
		{"readiness ok", http.MethodGet, "/ready", false, http.StatusOK},
		{"readiness failing", http.MethodGet, "/ready", true, http.StatusServiceUnavailable},
		{"head", http.MethodHead, "/health", false, http.StatusOK},
		{"post rejected", http.MethodPost, "/health", false, http.StatusMethodNotAllowed},
		{"version", http.MethodGet, "/version", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.RegisterCheck("upstream", func(context.Context) error {
				if tt.fail {
					return errors.New("down")
				}
				return nil
			})

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD must not write a body")
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.3" || info.GoVersion == "" {
		t.Errorf("unexpected version info %+v", info)
	}
}

func TestListChecks(t *testing.T) {
	c := New(0)
	c.RegisterCheck("b", nil)
	c.RegisterCheck("a", nil)
	if got := c.ListChecks(); len(got) != 2 || got[0] != "a" {
		t.Errorf("expected sorted names, got %v", got)
	}
}
