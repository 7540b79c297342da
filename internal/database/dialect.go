package database

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Driver names a supported database engine.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverDuckDB Driver = "duckdb"
)

// Dialect captures the per-engine SQL the browser needs.
type Dialect interface {
	Driver() Driver
	// DisplayName is shown in the header ("SQLite", "DuckDB").
	DisplayName() string
	// DriverName is the database/sql driver registered for the engine.
	DriverName() string
	DSN(path string, opts OpenOptions) string
	// TablesQuery returns one name column, sorted by name.
	TablesQuery() string
	ViewsQuery() string
	// ColumnsQuery returns cid, name, type, notnull, default, pk for a table.
	ColumnsQuery(table string) (string, []any)
	VersionQuery() string
	// DefaultQuery seeds the query editor.
	DefaultQuery() string
	// HasPragmas reports whether index and foreign key pragmas are available.
	HasPragmas() bool
}

// DialectFor returns the dialect for a driver.
func DialectFor(d Driver) (Dialect, error) {
	switch d {
	case DriverSQLite, "":
		return sqliteDialect{}, nil
	case DriverDuckDB:
		return duckdbDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", d)
	}
}

// DriverForPath picks the engine from a file extension.
func DriverForPath(path string) Driver {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".duckdb", ".ddb":
		return DriverDuckDB
	default:
		return DriverSQLite
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Driver() Driver      { return DriverSQLite }
func (sqliteDialect) DisplayName() string { return "SQLite" }
func (sqliteDialect) DriverName() string  { return "sqlite" }

func (sqliteDialect) DSN(path string, opts OpenOptions) string {
	mode := "rw"
	if opts.ReadOnly {
		mode = "ro"
	}

	q := url.Values{}
	q.Set("mode", mode)
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout))
	q.Add("_pragma", "foreign_keys(1)")
	if !opts.ReadOnly {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	return "file:" + path + "?" + q.Encode()
}

func (sqliteDialect) TablesQuery() string {
	return `SELECT name FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
}

func (sqliteDialect) ViewsQuery() string {
	return `SELECT name FROM sqlite_master
		WHERE type = 'view'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
}

func (sqliteDialect) ColumnsQuery(table string) (string, []any) {
	return fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(table)), nil
}

func (sqliteDialect) VersionQuery() string { return "SELECT sqlite_version()" }
func (sqliteDialect) DefaultQuery() string { return "SELECT * FROM sqlite_master" }
func (sqliteDialect) HasPragmas() bool     { return true }

type duckdbDialect struct{}

func (duckdbDialect) Driver() Driver      { return DriverDuckDB }
func (duckdbDialect) DisplayName() string { return "DuckDB" }
func (duckdbDialect) DriverName() string  { return "duckdb" }

func (duckdbDialect) DSN(path string, opts OpenOptions) string {
	if opts.ReadOnly {
		return path + "?access_mode=READ_ONLY"
	}
	return path
}

func (duckdbDialect) TablesQuery() string {
	return `SELECT table_name FROM duckdb_tables()
		WHERE NOT internal
		ORDER BY table_name`
}

func (duckdbDialect) ViewsQuery() string {
	return `SELECT view_name FROM duckdb_views()
		WHERE NOT internal
		ORDER BY view_name`
}

// The pk column is the 1-based position in the primary key, as in
// PRAGMA table_info.
func (duckdbDialect) ColumnsQuery(table string) (string, []any) {
	return `SELECT c.ordinal_position - 1,
			c.column_name,
			c.data_type,
			c.is_nullable = 'NO',
			c.column_default,
			COALESCE((
				SELECT list_position(k.constraint_column_names, c.column_name)
				FROM duckdb_constraints() k
				WHERE k.table_name = c.table_name
				AND k.constraint_type = 'PRIMARY KEY'
				LIMIT 1
			), 0)
		FROM information_schema.columns c
		WHERE c.table_name = ?
		ORDER BY c.ordinal_position`, []any{table}
}

func (duckdbDialect) VersionQuery() string { return "SELECT version()" }
func (duckdbDialect) DefaultQuery() string { return "SELECT * FROM duckdb_tables()" }
func (duckdbDialect) HasPragmas() bool     { return false }

// quoteIdentifier safely quotes a SQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
