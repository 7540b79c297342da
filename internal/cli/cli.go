// Package cli implements the sqlbrowse command line: the interactive browser
// and the one-shot commands that share its session layer.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/johan-st/sqlbrowse/internal/config"
	"github.com/johan-st/sqlbrowse/internal/database"
	"github.com/johan-st/sqlbrowse/internal/logger"
	"github.com/johan-st/sqlbrowse/internal/session"
)

// BuildInfo is set at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// rootOptions is the state shared by all commands of one invocation.
type rootOptions struct {
	build   BuildInfo
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger

	// runTUI starts the interactive browser; tests replace it.
	runTUI func(cmd *cobra.Command, path string) error
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd(info BuildInfo) *cobra.Command {
	cmd, _ := newRootCmd(info)
	return cmd
}

func newRootCmd(info BuildInfo) (*cobra.Command, *rootOptions) {
	opts := &rootOptions{build: info}
	opts.runTUI = opts.launchTUI

	root := &cobra.Command{
		Use:   "sqlbrowse [path]",
		Short: "Browse SQLite and DuckDB database files",
		Long: `sqlbrowse is a terminal browser for SQLite and DuckDB files.

Without a subcommand it opens the interactive browser on path. The path may
be a database file, a directory (its first database file is used) or a glob
pattern. When path is omitted, database.path from the configuration is used.`,
		Example: `  sqlbrowse shop.db
  sqlbrowse ./data/
  sqlbrowse tables shop.db
  sqlbrowse query shop.db "SELECT * FROM users" --format json`,
		Version: info.Version,
		Args:    cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion", "__complete":
				return nil
			}
			return opts.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runTUI(cmd, opts.pathArg(args, 0))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: ./sqlbrowse.yaml)")
	config.RegisterFlags(root.PersistentFlags())

	_ = root.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "sqlite", "duckdb"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newTablesCmd(opts),
		newSchemaCmd(opts),
		newQueryCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(opts),
	)
	return root, opts
}

// Execute runs the command line and returns the process exit code.
func Execute(info BuildInfo) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, opts := newRootCmd(info)
	err := root.ExecuteContext(ctx)
	opts.close()
	if err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

// setup loads the configuration and opens the log file.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.cfgFile, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	o.cfg = cfg

	l, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	o.log = l
	o.log.Debug("starting", "command", cmd.CommandPath(), "version", o.build.Version, "config", cfg.Path())
	return nil
}

func (o *rootOptions) close() {
	if o.log != nil {
		_ = o.log.Close()
		o.log = nil
	}
}

// pathArg returns args[i], falling back to the configured database path.
func (o *rootOptions) pathArg(args []string, i int) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return o.cfg.Database.Path
}

// openOptions maps the configuration to gateway options. The auto driver
// leaves the choice to the file extension.
func (o *rootOptions) openOptions() database.OpenOptions {
	opts := database.OpenOptions{
		ReadOnly:    o.cfg.Database.ReadOnly,
		BusyTimeout: int(o.cfg.Database.BusyTimeout.Milliseconds()),
	}
	if d := o.cfg.Database.Driver; d != "auto" {
		opts.Driver = database.Driver(d)
	}
	return opts
}

// newSession creates a controller on path without opening it.
func (o *rootOptions) newSession(path string) *session.Controller {
	return session.New(path, session.DatabaseOpener(o.openOptions(), o.log.Logger), o.log.Logger)
}

// openSession resolves arg and opens a session with its schema loaded.
func (o *rootOptions) openSession(ctx context.Context, arg string) (*session.Controller, error) {
	path, err := database.ResolvePath(arg)
	if err != nil {
		return nil, err
	}

	ctrl := o.newSession(path)
	if err := ctrl.Open(ctx); err != nil {
		_ = ctrl.Close()
		return nil, err
	}
	return ctrl, nil
}

// queryContext bounds ctx by the configured query timeout.
func (o *rootOptions) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.Query.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.Query.Timeout)
}

var errorColor = color.New(color.FgRed, color.Bold)

// printError writes err in red. Session errors get a short headline.
func printError(w io.Writer, err error) {
	var connErr *session.ConnectionError
	var schemaErr *session.SchemaLoadError
	switch {
	case errors.As(err, &connErr):
		_, _ = errorColor.Fprintf(w, "Cannot open database: %v\n", err)
	case errors.As(err, &schemaErr):
		_, _ = errorColor.Fprintf(w, "Cannot load schema: %v\n", err)
	default:
		_, _ = errorColor.Fprintf(w, "Error: %v\n", err)
	}
}

func newVersionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "sqlbrowse %s\n", o.build.Version)
			_, _ = fmt.Fprintf(out, "  commit: %s\n", o.build.Commit)
			_, _ = fmt.Fprintf(out, "  built: %s\n", o.build.Date)
		},
	}
}

func newConfigCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after merging defaults, the config file,
SQLBROWSE_* environment variables and command line flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if p := o.cfg.Path(); p != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", p)
			}
			return o.cfg.Dump(cmd.OutOrStdout())
		},
	}
}
