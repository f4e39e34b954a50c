package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/config"
)

const backendSQLite = "sqlite"

// SQLiteStorage implements Storage on SQLite. The driver is either
// "sqlite" (modernc.org/sqlite, pure Go) or "sqlite3"
// (github.com/mattn/go-sqlite3, cgo).
type SQLiteStorage struct {
	db     *sql.DB
	config config.SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, creating the file, its directory
// and the schema as needed.
func NewSQLiteStorage(cfg config.SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, capture.NewStorageError(backendSQLite, "open", errors.New("database path is empty"))
	}
	if cfg.Driver == "" {
		cfg.Driver = config.DefaultSQLiteDriver
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, capture.NewStorageError(backendSQLite, "open", err)
		}
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, capture.NewStorageError(backendSQLite, "open", err)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, capture.NewStorageError(backendSQLite, "open", err)
	}

	// Every connection to :memory: is a separate database.
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "capture.storage.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("traffic archive opened",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", walEnabled(cfg),
	)
	return s, nil
}

// buildDSN encodes busy timeout and journal mode as connection parameters
// so they apply to every pooled connection. The two drivers spell them
// differently.
func buildDSN(cfg config.SQLiteConfig) (string, error) {
	busy := cfg.BusyTimeout.Milliseconds()
	var params []string

	switch cfg.Driver {
	case "sqlite":
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", busy))
		if walEnabled(cfg) {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
	case "sqlite3":
		params = append(params, fmt.Sprintf("_busy_timeout=%d", busy))
		if walEnabled(cfg) {
			params = append(params, "_journal_mode=WAL")
		}
	default:
		return "", fmt.Errorf("unknown sqlite driver: %s", cfg.Driver)
	}

	if cfg.Path == ":memory:" {
		return "file::memory:?" + strings.Join(params, "&"), nil
	}
	return "file:" + cfg.Path + "?" + strings.Join(params, "&"), nil
}

func walEnabled(cfg config.SQLiteConfig) bool {
	return cfg.Path != ":memory:" && (cfg.WALMode == nil || *cfg.WALMode)
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return capture.NewStorageError(backendSQLite, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return capture.NewStorageError(backendSQLite, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return capture.NewStorageError(backendSQLite, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return capture.NewStorageError(backendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store inserts records in one transaction.
func (s *SQLiteStorage) Store(ctx context.Context, records []capture.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return capture.NewStorageError(backendSQLite, "store", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return capture.NewStorageError(backendSQLite, "store", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		payload, err := json.Marshal(rec)
		if err != nil {
			return capture.NewStorageError(backendSQLite, "store", err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, capture.FormatTimestamp(rec.Timestamp), rec.Service, rec.Proto, rec.State,
			rec.SrcIP, rec.DstIP, string(payload),
		); err != nil {
			return capture.NewStorageError(backendSQLite, "store", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return capture.NewStorageError(backendSQLite, "store", err)
	}
	return nil
}

// Query implements Storage.
func (s *SQLiteStorage) Query(ctx context.Context, q *Query) ([]capture.Record, error) {
	if q == nil {
		q = &Query{}
	}
	where, args := buildWhereClause(q)

	order := "DESC"
	if q.Ascending {
		order = "ASC"
	}
	sqlQuery := "SELECT record FROM traffic_records" + where +
		fmt.Sprintf(" ORDER BY timestamp %s, id %s LIMIT %d", order, order, q.limit())
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, capture.NewStorageError(backendSQLite, "query", err)
	}
	defer rows.Close()

	records := []capture.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, capture.NewStorageError(backendSQLite, "scan", err)
		}
		var rec capture.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, capture.NewStorageError(backendSQLite, "scan", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, capture.NewStorageError(backendSQLite, "query", err)
	}
	return records, nil
}

// Count implements Storage.
func (s *SQLiteStorage) Count(ctx context.Context, q *Query) (int64, error) {
	if q == nil {
		q = &Query{}
	}
	where, args := buildWhereClause(q)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM traffic_records"+where, args...).Scan(&count); err != nil {
		return 0, capture.NewStorageError(backendSQLite, "count", err)
	}
	return count, nil
}

// Delete implements Storage.
func (s *SQLiteStorage) Delete(ctx context.Context, q *Query) (int64, error) {
	if q == nil {
		q = &Query{}
	}
	where, args := buildWhereClause(q)

	result, err := s.db.ExecContext(ctx, "DELETE FROM traffic_records"+where, args...)
	if err != nil {
		return 0, capture.NewStorageError(backendSQLite, "delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, capture.NewStorageError(backendSQLite, "delete", err)
	}
	return n, nil
}

// DeleteOldest implements Storage.
func (s *SQLiteStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, deleteOldest, n)
	if err != nil {
		return 0, capture.NewStorageError(backendSQLite, "delete_oldest", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, capture.NewStorageError(backendSQLite, "delete_oldest", err)
	}
	return deleted, nil
}

// Ping implements Storage.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return capture.NewStorageError(backendSQLite, "ping", err)
	}
	return nil
}

// Close implements Storage.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return capture.NewStorageError(backendSQLite, "close", err)
	}
	s.logger.Info("traffic archive closed")
	return nil
}

// buildWhereClause returns " WHERE ..." (or "") and its arguments.
func buildWhereClause(q *Query) (string, []any) {
	var conditions []string
	var args []any

	if q.Service != "" {
		conditions = append(conditions, "service = ?")
		args = append(args, q.Service)
	}
	if q.Proto != "" {
		conditions = append(conditions, "proto = ?")
		args = append(args, q.Proto)
	}
	if q.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, q.State)
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, capture.FormatTimestamp(q.Since))
	}
	if !q.Until.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, capture.FormatTimestamp(q.Until))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
