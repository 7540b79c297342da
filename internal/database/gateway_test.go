package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johan-st/sqlbrowse/internal/testutil"
)

func openShop(t *testing.T, opts OpenOptions) *Gateway {
	t.Helper()

	g := NewGateway(testutil.ShopDB(t), opts, testutil.NewTestLogger(t))
	require.NoError(t, g.Connect(context.Background()))
	t.Cleanup(func() { g.Close() })
	return g
}

// mockGateway wires a gateway to a sqlmock connection.
func mockGateway(t *testing.T) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	conn := &Connection{DB: db, Path: "/tmp/mock.db", Dialect: sqliteDialect{}}
	g := NewGateway(conn.Path, DefaultOpenOptions(), testutil.NewTestLogger(t))
	g.conn = conn
	g.schema = NewSchema(conn)
	t.Cleanup(func() { g.Close() })
	return g, mock
}

func TestGateway_ListDatabases(t *testing.T) {
	g := openShop(t, DefaultOpenOptions())

	dbs, err := g.ListDatabases(context.Background())
	require.NoError(t, err)
	require.Len(t, dbs, 1)

	assert.Equal(t, "shop", dbs[0].Name)
	assert.Equal(t, []string{"big_orders"}, dbs[0].Views)
	require.Len(t, dbs[0].Tables, 2)
	assert.Equal(t, "orders", dbs[0].Tables[0].Name)
	assert.Equal(t, "users", dbs[0].Tables[1].Name)

	users := dbs[0].Tables[1]
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	names := make([]string, len(users.Columns))
	for i, c := range users.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"id", "name", "email", "avatar"}, names)
	assert.Equal(t, "BLOB", users.Columns[3].Type)
}

func TestGateway_ExecuteQuery_RawValues(t *testing.T) {
	g := openShop(t, DefaultOpenOptions())

	res, err := g.ExecuteQuery(context.Background(), "SELECT id, name, email, avatar FROM users ORDER BY id")
	require.NoError(t, err)

	assert.True(t, res.IsSelect)
	assert.Equal(t, []string{"id", "name", "email", "avatar"}, res.ColumnNames())
	assert.Equal(t, "BLOB", strings.ToUpper(res.Fields[3].DatabaseType))
	require.Len(t, res.Rows, 3)

	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, res.Rows[0][3])
	assert.Nil(t, res.Rows[1][2], "NULL email stays nil")
	assert.Equal(t, "", res.Rows[2][2], "empty email stays empty string")
}

func TestGateway_ExecuteQuery_Exec(t *testing.T) {
	g := openShop(t, DefaultOpenOptions())

	res, err := g.ExecuteQuery(context.Background(), "UPDATE orders SET note = 'paid' WHERE user_id = 1")
	require.NoError(t, err)
	assert.False(t, res.IsSelect)
	assert.Equal(t, int64(2), res.RowsAffected)
}

func TestGateway_ExecuteQuery_CommentsAndReturning(t *testing.T) {
	g := openShop(t, DefaultOpenOptions())
	ctx := context.Background()

	res, err := g.ExecuteQuery(ctx, "-- users\nSELECT name FROM users ORDER BY id")
	require.NoError(t, err)
	assert.True(t, res.IsSelect)
	assert.Len(t, res.Rows, 3)

	res, err = g.ExecuteQuery(ctx, "/* c */ SELECT 1")
	require.NoError(t, err)
	assert.True(t, res.IsSelect)
	assert.Equal(t, [][]any{{int64(1)}}, res.Rows)

	res, err = g.ExecuteQuery(ctx, "INSERT INTO users (name) VALUES ('Dave') RETURNING id, name")
	require.NoError(t, err)
	assert.True(t, res.IsSelect)
	assert.Equal(t, []string{"id", "name"}, res.ColumnNames())
	assert.Equal(t, [][]any{{int64(4), "Dave"}}, res.Rows)
}

func TestGateway_ExecuteQuery_SyntaxError(t *testing.T) {
	g := openShop(t, DefaultOpenOptions())

	_, err := g.ExecuteQuery(context.Background(), "SELEC * FROM users")
	require.Error(t, err)
}

func TestGateway_ReadOnly(t *testing.T) {
	opts := DefaultOpenOptions()
	opts.ReadOnly = true
	g := openShop(t, opts)

	_, err := g.ExecuteQuery(context.Background(), "DELETE FROM orders")
	require.Error(t, err)

	res, err := g.ExecuteQuery(context.Background(), "SELECT COUNT(*) FROM orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows[0][0])
}

func TestGateway_Version(t *testing.T) {
	g := openShop(t, DefaultOpenOptions())

	v, err := g.Version(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v, "3."), "sqlite version %q", v)
}

func TestGateway_NotConnected(t *testing.T) {
	g := NewGateway(testutil.ShopDB(t), DefaultOpenOptions(), nil)

	_, err := g.ListDatabases(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = g.ExecuteQuery(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = g.Version(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestGateway_ConnectMissingFile(t *testing.T) {
	g := NewGateway(t.TempDir()+"/missing.db", DefaultOpenOptions(), testutil.NewTestLogger(t))

	err := g.Connect(context.Background())
	require.Error(t, err)

	_, err = g.ListTableColumns(context.Background(), "users")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestGateway_CloseTwice(t *testing.T) {
	g := openShop(t, DefaultOpenOptions())

	assert.NoError(t, g.Close())
	assert.NoError(t, g.Close())

	_, err := g.ListDatabases(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestGateway_ListDatabases_TableListError(t *testing.T) {
	g, mock := mockGateway(t)

	mock.ExpectQuery("SELECT name FROM sqlite_master").WillReturnError(errors.New("disk I/O error"))

	_, err := g.ListDatabases(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_ListDatabases_ColumnError(t *testing.T) {
	g, mock := mockGateway(t)

	mock.ExpectQuery("SELECT name FROM sqlite_master").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("users"))
	mock.ExpectQuery("PRAGMA table_info").WillReturnError(errors.New("malformed schema"))

	_, err := g.ListDatabases(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "users"`)
	assert.Contains(t, err.Error(), "malformed schema")
}

func TestGateway_ListDatabases_ViewError(t *testing.T) {
	g, mock := mockGateway(t)

	mock.ExpectQuery("SELECT name FROM sqlite_master").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("users"))
	mock.ExpectQuery("PRAGMA table_info").
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", false, nil, 1))
	mock.ExpectQuery("WHERE type = 'view'").WillReturnError(errors.New("disk I/O error"))

	_, err := g.ListDatabases(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list views")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_ExecuteQuery_Busy(t *testing.T) {
	g, mock := mockGateway(t)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("database is locked (5) (SQLITE_BUSY)"))

	_, err := g.ExecuteQuery(context.Background(), "SELECT * FROM users")
	require.Error(t, err)
	assert.True(t, IsBusyError(err))
}

func TestGateway_Version_Mock(t *testing.T) {
	g, mock := mockGateway(t)

	mock.ExpectQuery(`SELECT sqlite_version\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("3.45.0"))

	v, err := g.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.45.0", v)
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "shop", DatabaseName("/data/shop.db"))
	assert.Equal(t, "archive.2024", DatabaseName("archive.2024.sqlite"))
	assert.Equal(t, "plain", DatabaseName("plain"))
}
