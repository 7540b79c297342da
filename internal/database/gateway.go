package database

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DatabaseInfo describes the database behind an open file.
type DatabaseInfo struct {
	Name   string
	Path   string
	Tables []TableInfo
	Views  []string
}

// columnLookupLimit bounds concurrent column lookups in ListDatabases.
const columnLookupLimit = 4

// Gateway is the only way the application reaches a database file. It owns
// one Connection for its lifetime.
type Gateway struct {
	path   string
	opts   OpenOptions
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *Connection
	schema *Schema
}

// NewGateway creates a gateway for path. Nothing is opened until Connect.
func NewGateway(path string, opts OpenOptions, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		path:   path,
		opts:   opts,
		logger: logger.With("component", "gateway", "path", path),
	}
}

// Path returns the database file path.
func (g *Gateway) Path() string { return g.path }

// Connect opens the database file and verifies it answers.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn != nil {
		return nil
	}

	conn, err := Open(ctx, g.path, g.opts)
	if err != nil {
		g.logger.Error("connect failed", "error", err)
		return err
	}

	g.conn = conn
	g.schema = NewSchema(conn)
	g.logger.Info("connected", "driver", conn.Dialect.Driver(), "read_only", conn.ReadOnly)
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	g.schema = nil
	return err
}

func (g *Gateway) current() (*Connection, *Schema, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.conn == nil {
		return nil, nil, ErrNotConnected
	}
	return g.conn, g.schema, nil
}

// Dialect returns the dialect of the open connection, or the configured one
// before Connect.
func (g *Gateway) Dialect() Dialect {
	if conn, _, err := g.current(); err == nil {
		return conn.Dialect
	}
	d, err := DialectFor(g.opts.Driver)
	if err != nil {
		return sqliteDialect{}
	}
	return d
}

// ListDatabases returns the one database behind the file with its tables
// and views sorted by name. Column lookups fan out with a bounded limit.
func (g *Gateway) ListDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	_, schema, err := g.current()
	if err != nil {
		return nil, err
	}

	names, err := schema.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]TableInfo, len(names))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(columnLookupLimit)
	for i, name := range names {
		eg.Go(func() error {
			cols, err := schema.GetColumns(egCtx, name)
			if err != nil {
				return fmt.Errorf("table %q: %w", name, err)
			}
			tables[i] = TableInfo{
				Name:       name,
				Columns:    cols,
				PrimaryKey: PrimaryKeyColumns(cols),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	views, err := schema.ListViews(ctx)
	if err != nil {
		return nil, err
	}

	return []DatabaseInfo{{
		Name:   DatabaseName(g.path),
		Path:   g.path,
		Tables: tables,
		Views:  views,
	}}, nil
}

// ListTableColumns returns the columns of one table.
func (g *Gateway) ListTableColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	_, schema, err := g.current()
	if err != nil {
		return nil, err
	}
	return schema.GetColumns(ctx, table)
}

// ListIndexes returns the indexes of one table.
func (g *Gateway) ListIndexes(ctx context.Context, table string) ([]IndexInfo, error) {
	_, schema, err := g.current()
	if err != nil {
		return nil, err
	}
	return schema.GetIndexes(ctx, table)
}

// ListForeignKeys returns the foreign keys of one table.
func (g *Gateway) ListForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	_, schema, err := g.current()
	if err != nil {
		return nil, err
	}
	return schema.GetForeignKeys(ctx, table)
}

// RowCount returns the number of rows in one table.
func (g *Gateway) RowCount(ctx context.Context, table string) (int64, error) {
	_, schema, err := g.current()
	if err != nil {
		return 0, err
	}
	return schema.GetRowCount(ctx, table)
}

// ExecuteQuery runs one statement and returns its raw result.
func (g *Gateway) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	conn, _, err := g.current()
	if err != nil {
		return nil, err
	}

	result, err := Query(ctx, conn, query)
	if err != nil {
		if IsBusyError(err) {
			g.logger.Warn("database busy", "error", err)
		}
		return nil, err
	}
	g.logger.Debug("query executed", "duration", result.Duration, "rows", len(result.Rows))
	return result, nil
}

// Version returns the engine version string.
func (g *Gateway) Version(ctx context.Context) (string, error) {
	conn, _, err := g.current()
	if err != nil {
		return "", err
	}

	var version string
	if err := conn.QueryRow(ctx, conn.Dialect.VersionQuery()).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to read version: %w", err)
	}
	return version, nil
}

// DatabaseName derives the display name of a database file: its base name
// without extension.
func DatabaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
