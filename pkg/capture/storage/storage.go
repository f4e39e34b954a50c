package storage

import (
	"context"
	"fmt"
	"time"

	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/config"
)

// Query filters archived records. Zero-valued fields do not filter.
type Query struct {
	Service string
	Proto   string
	State   string

	// Since and Until bound the record timestamp, inclusive.
	Since time.Time
	Until time.Time

	// Limit caps the number of results. Zero means DefaultQueryLimit.
	Limit  int
	Offset int

	// Ascending returns the oldest records first. The default is newest
	// first.
	Ascending bool
}

// DefaultQueryLimit is the result cap used when Query.Limit is zero.
const DefaultQueryLimit = 100

// Storage is an archive of exported traffic records.
type Storage interface {
	// Store persists records. Records whose id is already stored are
	// skipped.
	Store(ctx context.Context, records []capture.Record) error

	// Query returns records matching q, ordered by timestamp.
	Query(ctx context.Context, q *Query) ([]capture.Record, error)

	// Count returns the number of records matching q, ignoring its limit
	// and offset.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes records matching q, ignoring its limit and offset.
	Delete(ctx context.Context, q *Query) (int64, error)

	// DeleteOldest removes the n oldest records.
	DeleteOldest(ctx context.Context, n int64) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// New opens the archive backend named by cfg.
func New(cfg config.ArchiveConfig) (Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite", "":
		return NewSQLiteStorage(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown archive backend: %s", cfg.Backend)
	}
}

func (q *Query) limit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	return DefaultQueryLimit
}
