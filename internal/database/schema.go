package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// TableInfo contains information about a database table.
type TableInfo struct {
	Name       string
	Columns    []ColumnInfo
	PrimaryKey []string
}

// ColumnInfo contains information about a table column.
type ColumnInfo struct {
	CID          int
	Name         string
	Type         string
	NotNull      bool
	DefaultValue sql.NullString
	PrimaryKey   int // 0 if not PK, otherwise position in composite PK
}

// IndexInfo contains information about an index.
type IndexInfo struct {
	Name    string
	Unique  bool
	Columns []string
}

// ForeignKeyInfo contains information about a foreign key.
type ForeignKeyInfo struct {
	ID       int
	Table    string
	From     string
	To       string
	OnUpdate string
	OnDelete string
}

// Schema provides methods for introspecting database schema.
type Schema struct {
	conn *Connection
}

// NewSchema creates a new Schema introspector.
func NewSchema(conn *Connection) *Schema {
	return &Schema{conn: conn}
}

// ListTables returns all user tables in the database, sorted by name.
func (s *Schema) ListTables(ctx context.Context) ([]string, error) {
	names, err := s.listNames(ctx, s.conn.Dialect.TablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// ListViews returns all views in the database.
func (s *Schema) ListViews(ctx context.Context) ([]string, error) {
	names, err := s.listNames(ctx, s.conn.Dialect.ViewsQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	return names, nil
}

func (s *Schema) listNames(ctx context.Context, query string) ([]string, error) {
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Table-valued pragmas let one statement return every index column, so no
// second query runs while rows are still open on the single connection.
const (
	sqliteIndexesQuery = `SELECT il.name, il."unique", ii.name
		FROM pragma_index_list(?) AS il
		LEFT JOIN pragma_index_info(il.name) AS ii
		ORDER BY il.seq, ii.seqno`

	sqliteForeignKeysQuery = `SELECT id, "table", "from", "to", on_update, on_delete
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq`
)

// GetColumns returns the columns of a table in declaration order.
func (s *Schema) GetColumns(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	query, args := s.conn.Dialect.ColumnsQuery(tableName)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get column info: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.CID, &c.Name, &c.Type, &c.NotNull, &c.DefaultValue, &c.PrimaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// GetIndexes returns the indexes of a table with their columns. Engines
// without index pragmas report none.
func (s *Schema) GetIndexes(ctx context.Context, tableName string) ([]IndexInfo, error) {
	if !s.conn.Dialect.HasPragmas() {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, sqliteIndexesQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer rows.Close()

	var indexes []IndexInfo
	for rows.Next() {
		var name string
		var unique bool
		var column sql.NullString
		if err := rows.Scan(&name, &unique, &column); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}

		// Rows of one index are adjacent
		if n := len(indexes); n == 0 || indexes[n-1].Name != name {
			indexes = append(indexes, IndexInfo{Name: name, Unique: unique})
		}
		if column.Valid {
			last := &indexes[len(indexes)-1]
			last.Columns = append(last.Columns, column.String)
		}
	}
	return indexes, rows.Err()
}

// GetForeignKeys returns the foreign keys of a table, one entry per column
// pair.
func (s *Schema) GetForeignKeys(ctx context.Context, tableName string) ([]ForeignKeyInfo, error) {
	if !s.conn.Dialect.HasPragmas() {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, sqliteForeignKeysQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKeyInfo
	for rows.Next() {
		var fk ForeignKeyInfo
		// "to" is NULL when the key references the parent's primary key
		var to sql.NullString
		if err := rows.Scan(&fk.ID, &fk.Table, &fk.From, &to, &fk.OnUpdate, &fk.OnDelete); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		fk.To = to.String
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// GetRowCount counts the rows of a table.
func (s *Schema) GetRowCount(ctx context.Context, tableName string) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + quoteIdentifier(tableName)
	if err := s.conn.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", tableName, err)
	}
	return n, nil
}

// PrimaryKeyColumns returns the primary key column names in key order.
func PrimaryKeyColumns(columns []ColumnInfo) []string {
	keyed := make([]ColumnInfo, 0, len(columns))
	for _, c := range columns {
		if c.PrimaryKey > 0 {
			keyed = append(keyed, c)
		}
	}
	slices.SortStableFunc(keyed, func(a, b ColumnInfo) int { return a.PrimaryKey - b.PrimaryKey })

	names := make([]string, len(keyed))
	for i, c := range keyed {
		names[i] = c.Name
	}
	return names
}
