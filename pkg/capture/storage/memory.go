package storage

import (
	"context"
	"sort"
	"sync"

	"securemeet/relaygate/pkg/capture"
)

// MemoryStorage implements Storage in memory. Records are lost on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []capture.Record
	ids     map[string]struct{}
}

// NewMemoryStorage creates an empty in-memory archive.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{ids: make(map[string]struct{})}
}

// Store implements Storage.
func (s *MemoryStorage) Store(ctx context.Context, records []capture.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if _, ok := s.ids[rec.ID]; ok {
			continue
		}
		s.ids[rec.ID] = struct{}{}
		s.records = append(s.records, rec)
	}
	return nil
}

// Query implements Storage.
func (s *MemoryStorage) Query(ctx context.Context, q *Query) ([]capture.Record, error) {
	if q == nil {
		q = &Query{}
	}

	s.mu.RLock()
	results := s.filter(q)
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		if q.Ascending {
			return olderThan(results[i], results[j])
		}
		return olderThan(results[j], results[i])
	})

	if q.Offset >= len(results) {
		return []capture.Record{}, nil
	}
	results = results[q.Offset:]
	if len(results) > q.limit() {
		results = results[:q.limit()]
	}
	return results, nil
}

// Count implements Storage.
func (s *MemoryStorage) Count(ctx context.Context, q *Query) (int64, error) {
	if q == nil {
		q = &Query{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filter(q))), nil
}

// Delete implements Storage.
func (s *MemoryStorage) Delete(ctx context.Context, q *Query) (int64, error) {
	if q == nil {
		q = &Query{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, rec := range s.records {
		if matches(rec, q) {
			delete(s.ids, rec.ID)
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return deleted, nil
}

// DeleteOldest implements Storage.
func (s *MemoryStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return 0, nil
	}
	sort.SliceStable(s.records, func(i, j int) bool { return olderThan(s.records[i], s.records[j]) })
	if n > int64(len(s.records)) {
		n = int64(len(s.records))
	}
	for _, rec := range s.records[:n] {
		delete(s.ids, rec.ID)
	}
	s.records = append([]capture.Record(nil), s.records[n:]...)
	return n, nil
}

// Ping implements Storage.
func (s *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Close implements Storage.
func (s *MemoryStorage) Close() error { return nil }

func (s *MemoryStorage) filter(q *Query) []capture.Record {
	var out []capture.Record
	for _, rec := range s.records {
		if matches(rec, q) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec capture.Record, q *Query) bool {
	switch {
	case q.Service != "" && rec.Service != q.Service:
		return false
	case q.Proto != "" && rec.Proto != q.Proto:
		return false
	case q.State != "" && rec.State != q.State:
		return false
	case !q.Since.IsZero() && rec.Timestamp.Before(q.Since):
		return false
	case !q.Until.IsZero() && rec.Timestamp.After(q.Until):
		return false
	}
	return true
}

func olderThan(a, b capture.Record) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}
