package retention

import (
	"context"
	"testing"
	"time"

	"securemeet/relaygate/pkg/capture/storage"
	"securemeet/relaygate/pkg/config"
)

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"daily", "0 3 * * *", true, false},
		{"hourly", "0 * * * *", true, false},
		{"empty schedule", "", false, false},
		{"invalid schedule", "invalid cron", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pruner := NewPruner(storage.NewMemoryStorage(), config.RetentionConfig{
				Days:          30,
				PruneSchedule: tt.schedule,
			})
			defer pruner.Stop()

			err := pruner.Start(context.Background())
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if got := pruner.scheduler.IsRunning(); got != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", got, tt.wantRunning)
			}
			if tt.wantRunning && pruner.NextPruning() == nil {
				t.Error("expected a next pruning time")
			}
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	pruner := NewPruner(storage.NewMemoryStorage(), config.RetentionConfig{PruneSchedule: "@every 1h"})
	ctx, cancel := context.WithCancel(context.Background())

	if err := pruner.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	waitStopped(t, pruner.scheduler)
}

func waitStopped(t *testing.T, s *Scheduler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler still running after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
