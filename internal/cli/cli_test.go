package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johan-st/sqlbrowse/internal/config"
	"github.com/johan-st/sqlbrowse/internal/session"
	"github.com/johan-st/sqlbrowse/internal/testutil"
)

// run executes the command line with args and returns everything written to
// stdout and stderr.
func run(t *testing.T, configure func(*rootOptions), args ...string) (string, error) {
	t.Helper()

	cmd, opts := newRootCmd(BuildInfo{Version: "test", Commit: "abc123", Date: "today"})
	if configure != nil {
		configure(opts)
	}
	t.Cleanup(opts.close)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-file", filepath.Join(t.TempDir(), "sqlbrowse.log")))

	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlbrowse test")
	assert.Contains(t, out, "commit: abc123")
}

func TestRootLaunchesBrowser(t *testing.T) {
	db := testutil.ShopDB(t)

	var got string
	_, err := run(t, func(o *rootOptions) {
		o.runTUI = func(_ *cobra.Command, path string) error {
			got = path
			return nil
		}
	}, db)

	require.NoError(t, err)
	assert.Equal(t, db, got)
}

func TestRootUsesConfiguredPath(t *testing.T) {
	db := testutil.ShopDB(t)
	t.Setenv("SQLBROWSE_DATABASE__PATH", db)

	var got string
	_, err := run(t, func(o *rootOptions) {
		o.runTUI = func(_ *cobra.Command, path string) error {
			got = path
			return nil
		}
	})

	require.NoError(t, err)
	assert.Equal(t, db, got)
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	_, err := run(t, nil, "version", "--driver", "oracle")
	assert.ErrorContains(t, err, "database.driver")
}

func TestTablesCommand(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "tables", db)
	require.NoError(t, err)
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "orders")
	assert.NotContains(t, out, "big_orders", "views are not tables")
	assert.Contains(t, out, "shop · SQLite · 2 tables")
}

func TestTablesCommand_JSON(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "tables", db, "--format", "json")
	require.NoError(t, err)

	var got []tableSummary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []tableSummary{
		{Name: "orders", Columns: 4, Rows: 3},
		{Name: "users", Columns: 4, Rows: 3},
	}, got)
}

func TestTablesCommand_MissingDatabase(t *testing.T) {
	_, err := run(t, nil, "tables", filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorContains(t, err, "cannot open")
}

func TestTablesCommand_EmptyDatabase(t *testing.T) {
	_, err := run(t, nil, "tables", testutil.EmptyDB(t))

	var schemaErr *session.SchemaLoadError
	assert.True(t, errors.As(err, &schemaErr), "got %v", err)
}

func TestSchemaCommand(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "schema", db)
	require.NoError(t, err)
	assert.Contains(t, out, "shop (SQLite)")
	assert.Contains(t, out, "id INTEGER PK")
	assert.Contains(t, out, "name TEXT NOT NULL")
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "views")
	assert.Contains(t, out, "big_orders")
}

func TestSchemaCommand_ReferencedBy(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "schema", db, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "users (3 rows)")
	assert.Contains(t, out, "referenced by")
	assert.Contains(t, out, "orders.user_id -> id")
	assert.NotContains(t, out, "foreign keys")
}

func TestSchemaCommand_Table(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "schema", db, "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "orders (3 rows)")
	assert.Contains(t, out, "idx_orders_user (user_id)")
	assert.Contains(t, out, "user_id -> users.id ON DELETE CASCADE")
	assert.NotContains(t, out, "email", "only the named table is shown")
}

func TestSchemaCommand_UnknownTable(t *testing.T) {
	db := testutil.ShopDB(t)

	_, err := run(t, nil, "schema", db, "nope")

	var unknown *session.UnknownTableError
	require.True(t, errors.As(err, &unknown), "got %v", err)
	assert.Equal(t, "nope", unknown.Table)
}

func TestSchemaArgs(t *testing.T) {
	db := testutil.ShopDB(t)

	tests := []struct {
		name      string
		cfgPath   string
		args      []string
		wantPath  string
		wantTable string
	}{
		{name: "path and table", args: []string{db, "users"}, wantPath: db, wantTable: "users"},
		{name: "path only", args: []string{db}, wantPath: db},
		{name: "configured path", cfgPath: db, wantPath: db},
		{name: "table with configured path", cfgPath: db, args: []string{"users"}, wantPath: db, wantTable: "users"},
		{name: "path overrides configured", cfgPath: "/elsewhere.db", args: []string{db}, wantPath: db},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &rootOptions{cfg: config.DefaultConfig()}
			o.cfg.Database.Path = tt.cfgPath

			path, table := o.schemaArgs(tt.args)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantTable, table)
		})
	}
}

func TestQueryCommand_Table(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "query", db, "SELECT name, email FROM users ORDER BY id")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(3 rows)")
}

func TestQueryCommand_HidesBinaryColumns(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "query", db, "SELECT * FROM users")
	require.NoError(t, err)
	assert.Contains(t, out, "hidden binary columns: avatar")
}

func TestQueryCommand_JSON(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "query", db, "SELECT id, email FROM users ORDER BY id", "--format", "json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "alice@example.com", rows[0]["email"])
	assert.Nil(t, rows[1]["email"], "NULL stays null")
	assert.Equal(t, "", rows[2]["email"], "empty string stays empty")
}

func TestQueryCommand_CSV(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "query", db, "SELECT id, note FROM orders ORDER BY id", "-f", "csv")
	require.NoError(t, err)
	assert.Equal(t, "id,note\n1,first\n2,\n3,\\N\n", out, "empty string and NULL differ")

	out, err = run(t, nil, "query", db, "SELECT id, note FROM orders ORDER BY id", "-f", "csv", "--null", "NULL")
	require.NoError(t, err)
	assert.Equal(t, "id,note\n1,first\n2,\n3,NULL\n", out)
}

func TestQueryCommand_JSONColumnOrder(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "query", db, "SELECT u.id, o.id, u.name FROM users u JOIN orders o ON o.user_id = u.id WHERE o.id = 3", "-f", "json")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, `"id":`), "duplicate names are kept")
	assert.Less(t, strings.Index(out, `"id": 2`), strings.Index(out, `"id": 3`))
	assert.Less(t, strings.Index(out, `"id": 3`), strings.Index(out, `"name": "Bob"`))
}

func TestQueryCommand_Exec(t *testing.T) {
	db := testutil.ShopDB(t)

	out, err := run(t, nil, "query", db, "UPDATE orders SET note = 'x' WHERE user_id = 1")
	require.NoError(t, err)
	assert.Contains(t, out, "2 row(s) affected")
}

func TestQueryCommand_ConfiguredPath(t *testing.T) {
	t.Setenv("SQLBROWSE_DATABASE__PATH", testutil.ShopDB(t))

	out, err := run(t, nil, "query", "SELECT count(*) AS n FROM orders", "-f", "csv")
	require.NoError(t, err)
	assert.Equal(t, "n\n3\n", out)
}

func TestQueryCommand_Errors(t *testing.T) {
	db := testutil.ShopDB(t)

	_, err := run(t, nil, "query", db, "SELECT * FROM nope")
	assert.ErrorContains(t, err, "query failed")

	_, err = run(t, nil, "query", db, "SELECT 1", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestConfigCommand(t *testing.T) {
	out, err := run(t, nil, "config", "--page-size", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "page_size: 7")
	assert.Contains(t, out, "driver: auto")
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"connection", &session.ConnectionError{Path: "x.db", Err: errors.New("denied")}, "Cannot open database"},
		{"schema", &session.SchemaLoadError{Reason: "no tables"}, "Cannot load schema"},
		{"other", errors.New("boom"), "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
