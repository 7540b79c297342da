package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johan-st/sqlbrowse/internal/testutil"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.sqlite"))
	touch(t, filepath.Join(dir, "a.db"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "nested", "deep", "c.duckdb"))

	tests := []struct {
		name    string
		arg     string
		want    string
		wantErr bool
	}{
		{name: "file", arg: filepath.Join(dir, "b.sqlite"), want: filepath.Join(dir, "b.sqlite")},
		{name: "directory picks first", arg: dir, want: filepath.Join(dir, "a.db")},
		{name: "glob", arg: filepath.Join(dir, "*.sqlite"), want: filepath.Join(dir, "b.sqlite")},
		{name: "doublestar glob", arg: filepath.Join(dir, "**", "*.duckdb"), want: filepath.Join(dir, "nested", "deep", "c.duckdb")},
		{name: "glob without database", arg: filepath.Join(dir, "*.txt"), wantErr: true},
		{name: "missing", arg: filepath.Join(dir, "missing.db"), wantErr: true},
		{name: "empty", arg: "", wantErr: true},
		{name: "empty directory", arg: filepath.Join(dir, "nested"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDriverForPath(t *testing.T) {
	assert.Equal(t, DriverDuckDB, DriverForPath("x.duckdb"))
	assert.Equal(t, DriverDuckDB, DriverForPath("X.DDB"))
	assert.Equal(t, DriverSQLite, DriverForPath("x.db"))
	assert.Equal(t, DriverSQLite, DriverForPath("x"))
}

func TestIsDatabaseFile(t *testing.T) {
	for _, name := range []string{"a.db", "a.sqlite", "a.sqlite3", "a.db3", "a.duckdb", "a.DB"} {
		assert.True(t, IsDatabaseFile(name), name)
	}
	for _, name := range []string{"a.txt", "a", "a.db-wal"} {
		assert.False(t, IsDatabaseFile(name), name)
	}
}

func TestFileWatcher_SignalsOnWrite(t *testing.T) {
	path := testutil.ShopDB(t)

	w, err := NewFileWatcher(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("INSERT INTO users (name) VALUES ('Dave')")
	require.NoError(t, err)

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal after write")
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	path := testutil.ShopDB(t)

	w, err := NewFileWatcher(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	touch(t, filepath.Join(filepath.Dir(path), "other.txt"))

	select {
	case <-w.Changes():
		t.Fatal("unexpected change signal")
	case <-time.After(200 * time.Millisecond):
	}

	w.Stop()
	w.Stop()

	select {
	case <-w.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}
