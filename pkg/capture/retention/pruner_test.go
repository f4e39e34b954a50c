package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/capture/storage"
	"securemeet/relaygate/pkg/config"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store storage.Storage, ages ...int) {
	t.Helper()
	var records []capture.Record
	for i, days := range ages {
		rec := capture.Defaults()
		rec.ID = fmt.Sprintf("rec-%d", i)
		rec.Timestamp = now.AddDate(0, 0, -days)
		rec.Service = "chat"
		records = append(records, rec)
	}
	if err := store.Store(context.Background(), records); err != nil {
		t.Fatalf("store failed: %v", err)
	}
}

func newPruner(store storage.Storage, cfg config.RetentionConfig) *Pruner {
	p := NewPruner(store, cfg)
	p.now = func() time.Time { return now }
	return p
}

func TestPruner_Prune(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.RetentionConfig
		wantDeleted int64
		wantLeft    []string
	}{
		{
			name:        "by age",
			cfg:         config.RetentionConfig{Days: 7},
			wantDeleted: 2,
			wantLeft:    []string{"rec-2", "rec-3"},
		},
		{
			name:        "by count",
			cfg:         config.RetentionConfig{MaxRecords: 1},
			wantDeleted: 3,
			wantLeft:    []string{"rec-3"},
		},
		{
			name:        "age then count",
			cfg:         config.RetentionConfig{Days: 9, MaxRecords: 2},
			wantDeleted: 2,
			wantLeft:    []string{"rec-2", "rec-3"},
		},
		{
			name:        "disabled",
			cfg:         config.RetentionConfig{},
			wantDeleted: 0,
			wantLeft:    []string{"rec-0", "rec-1", "rec-2", "rec-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			seed(t, store, 10, 8, 5, 1)

			deleted, err := newPruner(store, tt.cfg).Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() failed: %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("expected %d deleted, got %d", tt.wantDeleted, deleted)
			}

			left, _ := store.Query(context.Background(), &storage.Query{Ascending: true})
			if len(left) != len(tt.wantLeft) {
				t.Fatalf("expected %v left, got %d records", tt.wantLeft, len(left))
			}
			for i, id := range tt.wantLeft {
				if left[i].ID != id {
					t.Errorf("record %d: got %s, want %s", i, left[i].ID, id)
				}
			}
		})
	}
}
