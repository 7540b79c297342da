// Package config loads sqlbrowse configuration from defaults, a YAML file,
// the environment and command line flags.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: SQLBROWSE_QUERY__DEBOUNCE=250ms.
const EnvPrefix = "SQLBROWSE_"

// DefaultFileNames are searched in the working directory when no config
// file is given.
var DefaultFileNames = []string{"sqlbrowse.yaml", "sqlbrowse.yml"}

// Config represents the application configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Layout   LayoutConfig   `koanf:"layout"`
	Query    QueryConfig    `koanf:"query"`
	Log      LogConfig      `koanf:"log"`

	// Internal: path to the config file, empty when none was read
	path string
}

// DatabaseConfig controls how the database file is opened.
type DatabaseConfig struct {
	Path string `koanf:"path"`
	// Driver is auto, sqlite or duckdb. Auto picks by file extension.
	Driver      string        `koanf:"driver"`
	ReadOnly    bool          `koanf:"read_only"`
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// LayoutConfig sets the sidebar geometry in terminal cells.
type LayoutConfig struct {
	SidebarWidth int `koanf:"sidebar_width"`
	SidebarMin   int `koanf:"sidebar_min"`
	SidebarMax   int `koanf:"sidebar_max"`
}

// QueryConfig controls the query pipelines.
type QueryConfig struct {
	Debounce time.Duration `koanf:"debounce"`
	Timeout  time.Duration `koanf:"timeout"`
	// DefaultSQL seeds the editor; empty means the engine's catalog query.
	DefaultSQL string `koanf:"default_sql"`
	// PageSize limits rows loaded when browsing a table.
	PageSize int `koanf:"page_size"`
	// IdentityColumn names the column used as row ID for ad-hoc queries.
	IdentityColumn string `koanf:"identity_column"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
}

func defaults() map[string]any {
	return map[string]any{
		"database.path":         "",
		"database.driver":       "auto",
		"database.read_only":    false,
		"database.busy_timeout": "5s",
		"layout.sidebar_width":  24,
		"layout.sidebar_min":    16,
		"layout.sidebar_max":    48,
		"query.debounce":        "500ms",
		"query.timeout":         "30s",
		"query.default_sql":     "",
		"query.page_size":       100,
		"query.identity_column": "",
		"log.level":             "info",
		"log.file":              "",
	}
}

// flagKeys maps command line flags to config keys. Flags not listed here are
// not configuration.
var flagKeys = map[string]string{
	"driver":          "database.driver",
	"read-only":       "database.read_only",
	"busy-timeout":    "database.busy_timeout",
	"sidebar-width":   "layout.sidebar_width",
	"debounce":        "query.debounce",
	"timeout":         "query.timeout",
	"page-size":       "query.page_size",
	"identity-column": "query.identity_column",
	"log-level":       "log.level",
	"log-file":        "log.file",
}

// RegisterFlags adds the configuration flags to fs. Their defaults mirror
// DefaultConfig; only flags set on the command line override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("driver", d.Database.Driver, "database engine: auto, sqlite or duckdb")
	fs.Bool("read-only", d.Database.ReadOnly, "open the database read-only")
	fs.Duration("busy-timeout", d.Database.BusyTimeout, "how long to wait on a locked database")
	fs.Int("sidebar-width", d.Layout.SidebarWidth, "initial sidebar width in cells")
	fs.Duration("debounce", d.Query.Debounce, "quiet period before a typed query runs")
	fs.Duration("timeout", d.Query.Timeout, "query timeout, 0 for none")
	fs.Int("page-size", d.Query.PageSize, "rows loaded when browsing a table, 0 for all")
	fs.String("identity-column", d.Query.IdentityColumn, "column used as row ID for ad-hoc queries")
	fs.String("log-level", d.Log.Level, "log level: debug, info, warn or error")
	fs.String("log-file", d.Log.File, "log file (default in the user cache directory)")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(defaults(), "."), nil)

	var cfg Config
	_ = k.Unmarshal("", &cfg)
	return &cfg
}

// Load reads configuration. Precedence, highest first: explicitly set flags,
// SQLBROWSE_* environment variables, the config file, defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := findConfigFile(cfgFile)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Path returns the config file that was read, or "".
func (c *Config) Path() string {
	return c.path
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "auto", "sqlite", "duckdb":
	default:
		return fmt.Errorf("invalid database.driver %q: want auto, sqlite or duckdb", c.Database.Driver)
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("invalid database.busy_timeout %s", c.Database.BusyTimeout)
	}
	if c.Layout.SidebarMin < 0 || c.Layout.SidebarMin > c.Layout.SidebarMax {
		return fmt.Errorf("invalid layout: sidebar_min %d must be between 0 and sidebar_max %d",
			c.Layout.SidebarMin, c.Layout.SidebarMax)
	}
	if c.Query.Debounce <= 0 {
		return fmt.Errorf("invalid query.debounce %s: must be positive", c.Query.Debounce)
	}
	if c.Query.Timeout < 0 {
		return fmt.Errorf("invalid query.timeout %s", c.Query.Timeout)
	}
	if c.Query.PageSize < 0 {
		return fmt.Errorf("invalid query.page_size %d", c.Query.PageSize)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return nil
}

// Dump writes the effective configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	out := map[string]any{
		"database": map[string]any{
			"path":         c.Database.Path,
			"driver":       c.Database.Driver,
			"read_only":    c.Database.ReadOnly,
			"busy_timeout": c.Database.BusyTimeout.String(),
		},
		"layout": map[string]any{
			"sidebar_width": c.Layout.SidebarWidth,
			"sidebar_min":   c.Layout.SidebarMin,
			"sidebar_max":   c.Layout.SidebarMax,
		},
		"query": map[string]any{
			"debounce":        c.Query.Debounce.String(),
			"timeout":         c.Query.Timeout.String(),
			"default_sql":     c.Query.DefaultSQL,
			"page_size":       c.Query.PageSize,
			"identity_column": c.Query.IdentityColumn,
		},
		"log": map[string]any{
			"level": c.Log.Level,
			"file":  c.Log.File,
		},
	}

	enc := yamlv3.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
