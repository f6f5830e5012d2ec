// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package daystore is the day-partitioned key-value store behind the
// event log. Records live under logs:{day}:{id} keys and summaries
// under summary:{label}; each day additionally has an append-only
// index of its record ids.
//
// The index append is atomic: it is a single INSERT into the index
// table, so concurrent ingests for the same day can never overwrite
// each other's entries. RebuildIndex remains as the recovery path for
// an index damaged outside the service: it reconstructs a day's index
// from a full scan of that day's record partition.
//
// The store offers single-key atomicity only. No multi-key
// transactional guarantees are exposed to callers.
package daystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("daystore: key not found")

// RecordKey returns the storage key for an event record.
func RecordKey(day, id string) string {
	return "logs:" + day + ":" + id
}

// SummaryKey returns the storage key for a persisted summary.
func SummaryKey(label string) string {
	return "summary:" + label
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist; the file is created on first open.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4 if
	// zero or negative. SQLite serializes writes regardless, so extra
	// connections only help concurrent reads.
	PoolSize int

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// Store is a day-partitioned key-value store backed by a single
// SQLite database in WAL mode. Safe for concurrent use; individual
// connections are pooled internally.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

const schema = `
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS day_index (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		day TEXT NOT NULL,
		id  TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_day_index_member ON day_index(day, id);
	CREATE INDEX IF NOT EXISTS idx_day_index_order ON day_index(day, seq);
`

// Open creates or opens the store at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("daystore: Path is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("daystore: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("daystore: opening %s: %w", cfg.Path, err)
	}

	store := &Store{pool: pool, logger: cfg.Logger, path: cfg.Path}

	// Create the schema eagerly so the first request doesn't pay for
	// it and open failures surface at startup.
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("daystore: initializing schema: %w", err)
	}
	defer pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		pool.Close()
		return nil, fmt.Errorf("daystore: creating schema: %w", err)
	}

	cfg.Logger.Info("daystore opened", "path", cfg.Path, "pool_size", poolSize)
	return store, nil
}

// prepareConnection applies the standard pragmas once per pooled
// connection.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("daystore: %s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("daystore: closing %s: %w", s.path, err)
	}
	s.logger.Info("daystore closed", "path", s.path)
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("daystore: get: %w", err)
	}
	defer s.pool.Put(conn)

	var value []byte
	found := false
	err = sqlitex.Execute(conn, "SELECT value FROM kv WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, value)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("daystore: get %q: %w", key, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
// Single-key writes are atomic.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("daystore: put: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		&sqlitex.ExecOptions{Args: []any{key, value}})
	if err != nil {
		return fmt.Errorf("daystore: put %q: %w", key, err)
	}
	return nil
}

// BatchGet fetches many keys in one query. The result is aligned with
// the input: result[i] is the value for keys[i], or nil when absent.
func (s *Store) BatchGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("daystore: batch get: %w", err)
	}
	defer s.pool.Put(conn)

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}

	fetched := make(map[string][]byte, len(keys))
	err = sqlitex.ExecuteTransient(conn,
		"SELECT key, value FROM kv WHERE key IN ("+placeholders+")",
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value := make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, value)
				fetched[stmt.ColumnText(0)] = value
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("daystore: batch get: %w", err)
	}

	results := make([][]byte, len(keys))
	for i, key := range keys {
		results[i] = fetched[key] // nil when absent
	}
	return results, nil
}

// AppendIndex atomically appends id to the given day's index. Arrival
// order is preserved by the index table's monotonic sequence.
func (s *Store) AppendIndex(ctx context.Context, day, id string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("daystore: append index: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "INSERT INTO day_index (day, id) VALUES (?, ?)",
		&sqlitex.ExecOptions{Args: []any{day, id}})
	if err != nil {
		return fmt.Errorf("daystore: append index %s/%s: %w", day, id, err)
	}
	return nil
}

// ReadIndex returns the ids in a day's index in append order. A day
// with no index yields an empty slice, not an error.
func (s *Store) ReadIndex(ctx context.Context, day string) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("daystore: read index: %w", err)
	}
	defer s.pool.Put(conn)

	var ids []string
	err = sqlitex.Execute(conn, "SELECT id FROM day_index WHERE day = ? ORDER BY seq",
		&sqlitex.ExecOptions{
			Args: []any{day},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("daystore: read index %s: %w", day, err)
	}
	return ids, nil
}

// ScanDay returns the record ids present in a day's partition by
// scanning the record keys themselves, independent of the index. This
// is the ground truth the index is rebuilt from.
func (s *Store) ScanDay(ctx context.Context, day string) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("daystore: scan day: %w", err)
	}
	defer s.pool.Put(conn)

	return scanDayLocked(conn, day)
}

func scanDayLocked(conn *sqlite.Conn, day string) ([]string, error) {
	prefix := RecordKey(day, "")

	var ids []string
	err := sqlitex.ExecuteTransient(conn,
		"SELECT key FROM kv WHERE key LIKE ? ORDER BY key",
		&sqlitex.ExecOptions{
			Args: []any{prefix + "%"},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, strings.TrimPrefix(stmt.ColumnText(0), prefix))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("daystore: scan day %s: %w", day, err)
	}
	return ids, nil
}

// RebuildIndex reconstructs a day's index from a full scan of that
// day's record partition, replacing whatever the index held. Ids are
// written in key order, which is event-time order. Returns the number
// of ids in the rebuilt index.
func (s *Store) RebuildIndex(ctx context.Context, day string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("daystore: rebuild index: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("daystore: rebuild index %s: begin: %w", day, err)
	}
	defer endTransaction(&err)

	ids, err := scanDayLocked(conn, day)
	if err != nil {
		return 0, err
	}

	err = sqlitex.Execute(conn, "DELETE FROM day_index WHERE day = ?",
		&sqlitex.ExecOptions{Args: []any{day}})
	if err != nil {
		return 0, fmt.Errorf("daystore: rebuild index %s: clear: %w", day, err)
	}

	for _, id := range ids {
		err = sqlitex.Execute(conn, "INSERT INTO day_index (day, id) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{day, id}})
		if err != nil {
			return 0, fmt.Errorf("daystore: rebuild index %s/%s: %w", day, id, err)
		}
	}

	s.logger.Info("day index rebuilt", "day", day, "records", len(ids))
	return len(ids), nil
}

// DropIndex removes a day's index entirely without touching the
// records. Exists for operational repair flows (drop, then rebuild)
// and for exercising the recovery path in tests.
func (s *Store) DropIndex(ctx context.Context, day string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("daystore: drop index: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM day_index WHERE day = ?",
		&sqlitex.ExecOptions{Args: []any{day}})
	if err != nil {
		return fmt.Errorf("daystore: drop index %s: %w", day, err)
	}
	return nil
}
