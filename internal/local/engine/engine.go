// Package engine owns the embedded SQLite database of the local data layer.
//
// The database lives in memory on a single connection. All statements go
// through Run, which holds the engine mutex for the whole callback, so a
// caller can execute a statement and flush the resulting image as one unit
// without another caller interleaving. Nothing else in the process may touch
// the underlying *sql.DB.
//
// The full database image can be exported to bytes and imported back, which
// is how the persistence bridge makes the in-memory database durable.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/brainbox/internal/dbx"
	"github.com/dmitrijs2005/brainbox/internal/logging"

	_ "modernc.org/sqlite"
)

const memoryDSN = "file::memory:?_pragma=foreign_keys(1)"

// Conn is the handle given to callbacks running under the engine lock.
type Conn interface {
	dbx.DBTX
	// Export serializes the full current database image.
	Export(ctx context.Context) ([]byte, error)
}

// Engine is the single-writer handle to the embedded database.
type Engine struct {
	mu  sync.Mutex
	db  *sql.DB
	log logging.Logger
}

// Open creates a fresh in-memory engine.
func Open(ctx context.Context, log logging.Logger) (*Engine, error) {
	db, err := sql.Open("sqlite", memoryDSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	e, err := New(ctx, db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// New wraps an already opened database. The pool is pinned to one
// connection that is never recycled: the in-memory database lives and dies
// with it.
func New(ctx context.Context, db *sql.DB, log logging.Logger) (*Engine, error) {
	if log == nil {
		log = logging.Nop()
	}
	pin(db)

	e := &Engine{db: db, log: log.With("component", "engine")}
	if err := e.enableForeignKeys(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func pin(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
}

func (e *Engine) enableForeignKeys(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	return nil
}

// Run executes fn while holding the engine lock. fn must close any rows it
// opens before calling Export.
func (e *Engine) Run(ctx context.Context, fn func(ctx context.Context, c Conn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(ctx, &lockedConn{DB: e.db})
}

// RunDB is Run for code that needs the *sql.DB itself, such as a migration
// runner.
func (e *Engine) RunDB(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(ctx, e.db)
}

// Export serializes the current image under the engine lock.
func (e *Engine) Export(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return export(ctx, e.db)
}

// Import replaces the database with image. It is meant for startup, before
// the schema is ensured: the fallback path copies tables into an empty
// database and fails if they already exist.
func (e *Engine) Import(ctx context.Context, image []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := importImage(ctx, e.db, image); err != nil {
		return err
	}
	var n int
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master`).Scan(&n); err != nil {
		return fmt.Errorf("image unreadable: %w", err)
	}
	e.log.Debug(ctx, "image imported", "bytes", len(image), "objects", n)
	return e.enableForeignKeys(ctx)
}

// Reset discards the database and starts over with an empty in-memory one.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	db, err := sql.Open("sqlite", memoryDSN)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	pin(db)
	old := e.db
	e.db = db
	if err := old.Close(); err != nil {
		e.log.Warn(ctx, "closing discarded database", "err", err)
	}
	e.log.Info(ctx, "database reset")
	return e.enableForeignKeys(ctx)
}

// Close releases the connection and with it the in-memory database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Close()
}

type lockedConn struct {
	*sql.DB
}

func (c *lockedConn) Export(ctx context.Context) ([]byte, error) {
	return export(ctx, c.DB)
}
