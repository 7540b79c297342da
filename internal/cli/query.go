package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/johan-st/sqlbrowse/internal/query"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	// Null is written for NULL values in CSV output.
	Null string
}

func newQueryCmd(o *rootOptions) *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [path] <sql>",
		Short: "Run one SQL statement and print the result",
		Long: `Run one SQL statement against a database file and print the result.

With a single argument the statement runs against database.path from the
configuration. Binary columns are left out of the output.`,
		Example: `  sqlbrowse query shop.db "SELECT * FROM users"
  sqlbrowse query shop.db "SELECT * FROM orders" --format csv > orders.csv`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, sql := o.pathArg(nil, 0), args[0]
			if len(args) == 2 {
				path, sql = args[0], args[1]
			}
			return o.runQuery(cmd, path, sql, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv")
	cmd.Flags().StringVar(&opts.Null, "null", `\N`, "Text written for NULL in csv output")
	return cmd
}

func (o *rootOptions) runQuery(cmd *cobra.Command, arg, sql string, opts *QueryOptions) error {
	switch opts.Format {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unknown format %q: want table, json or csv", opts.Format)
	}

	ctrl, err := o.openSession(cmd.Context(), arg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, cancel := o.queryContext(cmd.Context())
	defer cancel()

	raw, err := ctrl.ExecuteQuery(ctx, sql)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	o.log.Info("query executed", "duration", raw.Duration, "rows", len(raw.Rows))

	m := query.NewResultModel(raw, query.IdentityFor(o.cfg.Query.IdentityColumn))
	return renderResult(cmd.OutOrStdout(), m, opts)
}

func renderResult(w io.Writer, m *query.ResultModel, opts *QueryOptions) error {
	format := opts.Format
	if !m.IsSelect {
		if format == "json" {
			return printJSON(w, map[string]int64{"rows_affected": m.RowsAffected})
		}
		_, err := fmt.Fprintf(w, "%s row(s) affected\n", humanize.Comma(m.RowsAffected))
		return err
	}

	switch format {
	case "json":
		return renderJSON(w, m)
	case "csv":
		return renderCSV(w, m, opts.Null)
	default:
		return renderTable(w, m)
	}
}

func renderTable(w io.Writer, m *query.ResultModel) error {
	if len(m.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := newTableWriter(w)
	header := make(table.Row, len(m.Columns))
	for i, col := range m.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range m.Rows {
		row := make(table.Row, len(r.Values))
		for i, v := range r.Values {
			if v.IsNull {
				row[i] = "NULL"
			} else {
				row[i] = v.Text()
			}
		}
		t.AppendRow(row)
	}
	t.Render()

	footer := fmt.Sprintf("(%s rows)", humanize.Comma(int64(len(m.Rows))))
	if len(m.Hidden) > 0 {
		footer += fmt.Sprintf(" hidden binary columns: %s", strings.Join(m.Hidden, ", "))
	}
	_, err := fmt.Fprintln(w, footer)
	return err
}

// renderJSON writes one object per row with keys in column order. Duplicate
// column names are kept. NULL becomes null.
func renderJSON(w io.Writer, m *query.ResultModel) error {
	rows := make([]jsonRow, len(m.Rows))
	for i, r := range m.Rows {
		values := make([]any, len(r.Values))
		for j, v := range r.Values {
			if !v.IsNull {
				values[j] = v.Value
			}
		}
		rows[i] = jsonRow{columns: m.Columns, values: values}
	}
	return printJSON(w, rows)
}

type jsonRow struct {
	columns []string
	values  []any
}

func (r jsonRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// renderCSV writes a header line and one record per row. NULL is written as
// null so it stays apart from the empty string.
func renderCSV(w io.Writer, m *query.ResultModel, null string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(m.Columns); err != nil {
		return err
	}
	for _, r := range m.Rows {
		record := make([]string, len(r.Values))
		for i, v := range r.Values {
			if v.IsNull {
				record[i] = null
			} else {
				record[i] = v.Text()
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func newTableWriter(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
