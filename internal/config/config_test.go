package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yamlv3 "gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlbrowse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("driver", "auto", "")
	fs.Bool("read-only", false, "")
	fs.Duration("debounce", 500*time.Millisecond, "")
	fs.String("log-level", "info", "")
	fs.String("format", "table", "")
	return fs
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "auto", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 24, cfg.Layout.SidebarWidth)
	assert.Equal(t, 16, cfg.Layout.SidebarMin)
	assert.Equal(t, 48, cfg.Layout.SidebarMax)
	assert.Equal(t, 500*time.Millisecond, cfg.Query.Debounce)
	assert.Equal(t, 30*time.Second, cfg.Query.Timeout)
	assert.Equal(t, 100, cfg.Query.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  read_only: true
layout:
  sidebar_width: 30
query:
  debounce: 250ms
  identity_column: id
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Database.ReadOnly)
	assert.Equal(t, 30, cfg.Layout.SidebarWidth)
	assert.Equal(t, 16, cfg.Layout.SidebarMin, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Query.Debounce)
	assert.Equal(t, "id", cfg.Query.IdentityColumn)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
query:
  debounce: 250ms
log:
  level: warn
`)
	t.Setenv("SQLBROWSE_QUERY__DEBOUNCE", "100ms")
	t.Setenv("SQLBROWSE_LAYOUT__SIDEBAR_WIDTH", "40")
	t.Setenv("SQLBROWSE_LOG__LEVEL", "error")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--log-level=debug", "--format=json"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.Query.Debounce, "env beats file")
	assert.Equal(t, 40, cfg.Layout.SidebarWidth)
	assert.Equal(t, "debug", cfg.Log.Level, "flag beats env")
	assert.Equal(t, "auto", cfg.Database.Driver, "unchanged flags do not override")
}

func TestLoad_DurationFlag(t *testing.T) {
	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--debounce=75ms", "--read-only"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 75*time.Millisecond, cfg.Query.Debounce)
	assert.True(t, cfg.Database.ReadOnly)
	assert.Equal(t, "", cfg.Path())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "driver", mutate: func(c *Config) { c.Database.Driver = "postgres" }},
		{name: "sidebar range", mutate: func(c *Config) { c.Layout.SidebarMin = 50 }},
		{name: "negative min", mutate: func(c *Config) { c.Layout.SidebarMin = -1 }},
		{name: "debounce", mutate: func(c *Config) { c.Query.Debounce = 0 }},
		{name: "timeout", mutate: func(c *Config) { c.Query.Timeout = -time.Second }},
		{name: "page size", mutate: func(c *Config) { c.Query.PageSize = -1 }},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_InvalidFromEnv(t *testing.T) {
	t.Setenv("SQLBROWSE_DATABASE__DRIVER", "oracle")
	_, err := Load("", nil)
	assert.ErrorContains(t, err, "database.driver")
}

func TestDump(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = "/data/shop.db"

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))

	var out map[string]map[string]any
	require.NoError(t, yamlv3.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "/data/shop.db", out["database"]["path"])
	assert.Equal(t, "500ms", out["query"]["debounce"])
	assert.Equal(t, 24, out["layout"]["sidebar_width"])
}

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)

	for name := range flagKeys {
		assert.NotNil(t, fs.Lookup(name), "flag %q", name)
	}

	require.NoError(t, fs.Parse([]string{"--page-size=25", "--busy-timeout=2s"}))
	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Query.PageSize)
	assert.Equal(t, 2*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 24, cfg.Layout.SidebarWidth, "unset flags keep the default")
}
