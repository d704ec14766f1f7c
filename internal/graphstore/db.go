// Package graphstore implements the embedded storage substrate (C1),
// versioned schema migration (C2), and typed node/edge repository (C3) of
// the knowledge engine.
package graphstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store owns the single writer connection to the embedded database file and
// exposes the node/edge repository operations of spec §4.2.
//
// Scheduling model (spec §5): one logical owner per process. Store
// serialises its own method calls with a read/write mutex on top of sqlite's
// write lock; callers that want to parallelise must use independent files.
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	logger *slog.Logger
}

// Open opens (creating if necessary) the sqlite database at path and brings
// it to the latest schema version via Migrate. It mirrors the teacher's
// ephemeral store's DSN pragma convention: WAL journaling, a busy timeout,
// and foreign-key enforcement on.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000&_foreign_keys=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer connection: sqlite serialises writes anyway, and this
	// avoids "database is locked" churn under WAL with concurrent writers
	// from the same process (spec §5's "writers must hold the exclusive
	// write lock for the duration of a transaction").
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory database, primarily for tests.
func OpenMemory(ctx context.Context, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, path: ":memory:", logger: logger}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying *sql.DB for packages (graphquery, facts) that
// need to compose their own read queries against the same handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path ("" or ":memory:" for in-memory stores).
func (s *Store) Path() string {
	return s.path
}
