// Package testutil provides test utilities for sqlbrowse tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// shopSchema is the standard fixture: two tables, a blob column, NULLs and
// empty strings side by side.
const shopSchema = `
	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		avatar BLOB
	);

	CREATE TABLE orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		total REAL NOT NULL,
		note TEXT,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX idx_orders_user ON orders(user_id);

	CREATE VIEW big_orders AS SELECT * FROM orders WHERE total > 100;

	INSERT INTO users (name, email, avatar) VALUES
		('Alice', 'alice@example.com', X'89504E47'),
		('Bob', NULL, NULL),
		('Carol', '', X'00FF');

	INSERT INTO orders (user_id, total, note) VALUES
		(1, 42.5, 'first'),
		(1, 250.0, ''),
		(2, 9.99, NULL);
`

// ShopDB creates the shop fixture database in a temp dir and returns its path.
func ShopDB(t testing.TB) string {
	t.Helper()
	return NewDB(t, "shop.db", shopSchema)
}

// EmptyDB creates a database file without tables.
func EmptyDB(t testing.TB) string {
	t.Helper()
	return NewDB(t, "empty.db", "CREATE TABLE t(x); DROP TABLE t;")
}

// NewDB creates a SQLite database named name in a temp dir and runs script
// against it.
func NewDB(t testing.TB, name, script string) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), name)
	db := OpenDB(t, dbPath)
	defer db.Close()

	MustExec(t, db, script)
	return dbPath
}

// OpenDB opens a raw handle on a database file for test setup and checks.
func OpenDB(t testing.TB, path string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open db %s: %v", path, err)
	}
	return db
}

// MustExec executes SQL or fails the test.
func MustExec(t testing.TB, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("MustExec failed: %v\nQuery: %s", err, query)
	}
}

// MustQueryRow executes a query and scans the first row into dest.
func MustQueryRow(t testing.TB, db *sql.DB, query string, dest ...any) {
	t.Helper()
	if err := db.QueryRow(query).Scan(dest...); err != nil {
		t.Fatalf("MustQueryRow failed: %v\nQuery: %s", err, query)
	}
}
