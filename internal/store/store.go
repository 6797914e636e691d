// Package store owns the per-project SQLite database file: opening it,
// running schema migrations, and handing out the shared connection to the
// repositories in internal/repo. One Store corresponds to one
// project's <project_key>.db file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps a single project database. WithTx serializes on mu;
// repositories write through DB() directly and do not take mu. Open caps
// the pool at one connection, so statements on the shared handle run one
// at a time.
type Store struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and runs
// all pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer file, avoid SQLITE_BUSY churn

	s := &Store{path: path, db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

// Path returns the database file path this Store was opened with.
func (s *Store) Path() string { return s.path }

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the shared *sql.DB. Exported for use by internal/repo
// implementations within this module; not part of any external contract.
func (s *Store) DB() *sql.DB { return s.db }

// Lock acquires the store's write mutex and returns an unlock func,
// enforcing a single writer in-process. An in-process mutex is enough
// since SQLite files are not shared across processes in this engine.
func (s *Store) Lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error fn returns or panics with.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	unlock := s.Lock()
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}
