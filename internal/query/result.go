package query

import (
	"strconv"
	"strings"

	"github.com/johan-st/sqlbrowse/internal/database"
)

// CellValue is one cell of a result. NULL is kept apart from the empty
// string: IsNull is set only for database NULL.
type CellValue struct {
	Value  any
	IsNull bool
}

// Text is the display text of a non-NULL value. NULL yields "" and callers
// check IsNull to render it.
func (c CellValue) Text() string {
	if c.IsNull {
		return ""
	}
	return database.FormatValue(c.Value)
}

// Row is one result row with a stable identity.
type Row struct {
	ID     string
	Values []CellValue
}

// ResultModel is the column/row structure handed to the presentation layer.
// It is built once per successful execution and never modified afterwards.
type ResultModel struct {
	Columns []string
	Rows    []Row
	// Hidden lists binary columns that were stripped at ingestion.
	Hidden []string
	// IsSelect is false for statements that only report affected rows.
	IsSelect     bool
	RowsAffected int64
}

// Identity derives a row ID from a raw row.
type Identity interface {
	RowID(columns []string, values []any, ordinal int) string
}

// SequenceIdentity numbers rows from 1 in result order.
type SequenceIdentity struct{}

func (SequenceIdentity) RowID(_ []string, _ []any, ordinal int) string {
	return strconv.Itoa(ordinal)
}

// KeyColumnIdentity uses the values of named key columns. When a key column
// is missing from the result or NULL, the row falls back to its ordinal.
type KeyColumnIdentity struct {
	Columns []string
}

func (k KeyColumnIdentity) RowID(columns []string, values []any, ordinal int) string {
	if len(k.Columns) == 0 {
		return strconv.Itoa(ordinal)
	}

	parts := make([]string, 0, len(k.Columns))
	for _, key := range k.Columns {
		idx := indexOf(columns, key)
		if idx < 0 || values[idx] == nil {
			return strconv.Itoa(ordinal)
		}
		parts = append(parts, database.FormatValue(values[idx]))
	}
	return strings.Join(parts, "/")
}

// IdentityFor returns KeyColumnIdentity for the given key columns, or
// SequenceIdentity when there are none.
func IdentityFor(keys ...string) Identity {
	var cols []string
	for _, k := range keys {
		if k != "" {
			cols = append(cols, k)
		}
	}
	if len(cols) == 0 {
		return SequenceIdentity{}
	}
	return KeyColumnIdentity{Columns: cols}
}

// NewResultModel normalizes a raw gateway result. Binary columns, declared
// BLOB or holding []byte in any row, are removed from the columns and from
// every row so the two stay aligned.
func NewResultModel(raw *database.QueryResult, identity Identity) *ResultModel {
	if identity == nil {
		identity = SequenceIdentity{}
	}
	m := &ResultModel{
		IsSelect:     raw.IsSelect,
		RowsAffected: raw.RowsAffected,
	}
	if !raw.IsSelect {
		return m
	}

	names := raw.ColumnNames()
	keep := make([]int, 0, len(names))
	for i, f := range raw.Fields {
		if isBinaryColumn(f, raw.Rows, i) {
			m.Hidden = append(m.Hidden, f.Name)
			continue
		}
		keep = append(keep, i)
		m.Columns = append(m.Columns, f.Name)
	}

	m.Rows = make([]Row, len(raw.Rows))
	for r, values := range raw.Rows {
		cells := make([]CellValue, len(keep))
		for j, i := range keep {
			cells[j] = CellValue{Value: values[i], IsNull: values[i] == nil}
		}
		m.Rows[r] = Row{
			ID:     identity.RowID(names, values, r+1),
			Values: cells,
		}
	}
	return m
}

func isBinaryColumn(f database.Field, rows [][]any, col int) bool {
	t := strings.ToUpper(f.DatabaseType)
	if strings.Contains(t, "BLOB") || t == "BYTEA" || strings.Contains(t, "BINARY") {
		return true
	}
	for _, row := range rows {
		if _, ok := row[col].([]byte); ok {
			return true
		}
	}
	return false
}

func indexOf(items []string, s string) int {
	for i, v := range items {
		if v == s {
			return i
		}
	}
	return -1
}
