// Package database handles connections to a single local database file and
// the queries the browser runs against it.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver (cgo)
	_ "modernc.org/sqlite"              // Pure Go SQLite driver
)

// Connection is an open database file. The pool holds one connection, so
// statements are serialized by database/sql itself.
type Connection struct {
	DB       *sql.DB
	Path     string
	ReadOnly bool
	Dialect  Dialect

	closeOnce sync.Once
	closeErr  error
}

// OpenOptions configures how a database file is opened.
type OpenOptions struct {
	// Driver selects the engine; empty means SQLite.
	Driver      Driver
	ReadOnly    bool
	BusyTimeout int // milliseconds
}

// DefaultOpenOptions opens SQLite read-write with a 5s busy timeout.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{Driver: DriverSQLite, BusyTimeout: 5000}
}

// Open opens path and pings it. A file that cannot be opened or answered is
// reported with the path in the error.
func Open(ctx context.Context, path string, opts OpenOptions) (*Connection, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dialect.DSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database %s: %w", dialect.DisplayName(), path, err)
	}

	// Single file, single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to connect to %s: %w", path, err), db.Close())
	}

	return &Connection{
		DB:       db,
		Path:     path,
		ReadOnly: opts.ReadOnly,
		Dialect:  dialect,
	}, nil
}

// Close closes the pool. Later calls return the first result.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		if c.DB != nil {
			c.closeErr = c.DB.Close()
		}
	})
	return c.closeErr
}

// Execute runs a statement that doesn't return rows.
func (c *Connection) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.DB.ExecContext(ctx, query, args...)
}

// Query runs a statement that returns rows. The caller closes them before
// issuing the next statement.
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.DB.QueryContext(ctx, query, args...)
}

// QueryRow runs a statement that returns at most one row.
func (c *Connection) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}
