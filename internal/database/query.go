package database

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Field describes one result column.
type Field struct {
	Name string
	// DatabaseType is the declared type reported by the driver ("BLOB",
	// "INTEGER", ...). It may be empty for expressions.
	DatabaseType string
}

// QueryResult holds the results of a query execution. Row values are kept as
// the driver returned them: binary values stay []byte and NULL stays nil.
type QueryResult struct {
	Fields       []Field
	Rows         [][]any
	RowsAffected int64
	LastInsertID int64
	Duration     time.Duration
	IsSelect     bool
}

// ColumnNames returns the names of the result fields.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

var rowReturningPrefixes = []string{
	"SELECT", "PRAGMA", "EXPLAIN", "WITH", "VALUES",
	"SHOW", "DESCRIBE", "SUMMARIZE", "FROM", "TABLE",
}

var (
	returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)
	stringLiteral   = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// IsRowReturning reports whether a statement should be run as a query.
// Leading comments are skipped, and DML with a RETURNING clause counts.
func IsRowReturning(query string) bool {
	stmt := strings.TrimLeft(skipLeadingComments(query), "( \t\r\n")
	upper := strings.ToUpper(stmt)
	for _, p := range rowReturningPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return returningClause.MatchString(stringLiteral.ReplaceAllString(stmt, "''"))
}

// skipLeadingComments drops whitespace and -- or /* */ comments in front of
// the first keyword. An unterminated comment leaves nothing.
func skipLeadingComments(query string) string {
	for {
		query = strings.TrimLeftFunc(query, unicode.IsSpace)
		switch {
		case strings.HasPrefix(query, "--"):
			end := strings.IndexByte(query, '\n')
			if end < 0 {
				return ""
			}
			query = query[end+1:]
		case strings.HasPrefix(query, "/*"):
			end := strings.Index(query[2:], "*/")
			if end < 0 {
				return ""
			}
			query = query[end+4:]
		default:
			return query
		}
	}
}

// Query runs one statement. Row-returning statements yield fields and rows;
// anything else yields the affected row count.
func Query(ctx context.Context, conn *Connection, query string, args ...any) (*QueryResult, error) {
	start := time.Now()

	if !IsRowReturning(query) {
		res, err := conn.Execute(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		out := &QueryResult{Duration: time.Since(start)}
		out.RowsAffected, _ = res.RowsAffected()
		out.LastInsertID, _ = res.LastInsertId()
		return out, nil
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanResult(rows)
	if err != nil {
		return nil, err
	}
	out.Duration = time.Since(start)
	return out, nil
}

// scanResult reads every row into memory.
func scanResult(rows *sql.Rows) (*QueryResult, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	out := &QueryResult{
		Fields:   make([]Field, len(types)),
		Rows:     [][]any{},
		IsSelect: true,
	}
	for i, ct := range types {
		out.Fields[i] = Field{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
	}

	dest := make([]any, len(types))
	for rows.Next() {
		values := make([]any, len(types))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(out.Rows)+1, err)
		}

		// The driver may reuse the buffer behind a []byte
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = bytes.Clone(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	return out, rows.Err()
}

// SelectOptions configures a table browsing query.
type SelectOptions struct {
	Columns []string
	OrderBy []string
	Limit   int
	Offset  int
}

// DefaultSelectOptions loads the first 100 rows.
func DefaultSelectOptions() SelectOptions {
	return SelectOptions{Limit: 100}
}

// BuildSelect builds the query used to browse a table's rows. Identifiers are
// quoted; a zero Limit or Offset is left out.
func BuildSelect(tableName string, opts SelectOptions) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(opts.Columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(quoteList(opts.Columns))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteIdentifier(tableName))

	if len(opts.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(quoteList(opts.OrderBy))
	}
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(opts.Offset))
	}
	return b.String()
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, c := range names {
		quoted[i] = quoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// FormatValue renders a driver value as text. NULL becomes "NULL"; callers
// that must tell NULL from the string "NULL" check for nil first.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		// DuckDB decimals, UUIDs and intervals
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
