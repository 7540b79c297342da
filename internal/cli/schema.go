package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/johan-st/sqlbrowse/internal/database"
	"github.com/johan-st/sqlbrowse/internal/session"
)

type tablesOptions struct {
	Format string
}

func newTablesCmd(o *rootOptions) *cobra.Command {
	opts := &tablesOptions{}

	cmd := &cobra.Command{
		Use:   "tables [path]",
		Short: "List tables with their row counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runTables(cmd, o.pathArg(args, 0), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json")
	return cmd
}

type tableSummary struct {
	Name    string `json:"name"`
	Columns int    `json:"columns"`
	Rows    int64  `json:"rows"`
}

func (o *rootOptions) runTables(cmd *cobra.Command, arg string, opts *tablesOptions) error {
	ctrl, err := o.openSession(cmd.Context(), arg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, cancel := o.queryContext(cmd.Context())
	defer cancel()

	snap := ctrl.Snapshot()
	summaries := make([]tableSummary, len(snap.Tables))
	for i, t := range snap.Tables {
		n, err := ctrl.RowCount(ctx, t.Name)
		if err != nil {
			return fmt.Errorf("counting rows of %s: %w", t.Name, err)
		}
		summaries[i] = tableSummary{Name: t.Name, Columns: len(t.Columns), Rows: n}
	}

	out := cmd.OutOrStdout()
	switch opts.Format {
	case "json":
		return printJSON(out, summaries)
	case "table", "":
		t := newTableWriter(out)
		t.AppendHeader(table.Row{"Table", "Columns", "Rows"})
		for _, s := range summaries {
			t.AppendRow(table.Row{s.Name, s.Columns, humanize.Comma(s.Rows)})
		}
		t.Render()
		_, _ = fmt.Fprintf(out, "%s · %s · %d tables\n", snap.DatabaseName, snap.Dialect, len(summaries))
		return nil
	default:
		return fmt.Errorf("unknown format %q: want table or json", opts.Format)
	}
}

func newSchemaCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [path] [table]",
		Short: "Show tables and columns as a tree",
		Long: `Show the schema of a database as a tree of tables and columns.

With a table name the tree also lists that table's indexes, its foreign keys
and the tables that reference it.
A single argument is taken as the table when database.path is configured and
the argument is not a database path.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, tableName := o.schemaArgs(args)
			return o.runSchema(cmd, path, tableName)
		},
	}
}

func (o *rootOptions) schemaArgs(args []string) (path, tableName string) {
	switch len(args) {
	case 2:
		return args[0], args[1]
	case 1:
		if o.cfg.Database.Path != "" {
			if _, err := database.ResolvePath(args[0]); err != nil {
				return o.cfg.Database.Path, args[0]
			}
		}
		return args[0], ""
	default:
		return o.cfg.Database.Path, ""
	}
}

func (o *rootOptions) runSchema(cmd *cobra.Command, arg, tableName string) error {
	ctrl, err := o.openSession(cmd.Context(), arg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	snap := ctrl.Snapshot()
	tree := treeprint.NewWithRoot(fmt.Sprintf("%s (%s)", snap.DatabaseName, snap.Dialect))

	if tableName == "" {
		for _, t := range snap.Tables {
			addColumns(tree.AddBranch(t.Name), t.Columns)
		}
		if len(snap.Views) > 0 {
			views := tree.AddBranch("views")
			for _, v := range snap.Views {
				views.AddNode(v)
			}
		}
		return writeTree(cmd.OutOrStdout(), tree)
	}

	if err := ctrl.SelectTable(tableName); err != nil {
		return err
	}
	ctx, cancel := o.queryContext(cmd.Context())
	defer cancel()

	st, err := ctrl.Structure(ctx, tableName)
	if err != nil {
		return err
	}
	addStructure(tree.AddBranch(fmt.Sprintf("%s (%s rows)", st.Name, humanize.Comma(st.RowCount))), st)
	return writeTree(cmd.OutOrStdout(), tree)
}

func writeTree(w io.Writer, tree treeprint.Tree) error {
	_, err := io.WriteString(w, tree.String())
	return err
}

func addColumns(branch treeprint.Tree, cols []database.ColumnInfo) {
	for _, c := range cols {
		branch.AddNode(columnLabel(c))
	}
}

func addStructure(branch treeprint.Tree, st *session.TableStructure) {
	addColumns(branch.AddBranch("columns"), st.Columns)

	if len(st.Indexes) > 0 {
		idx := branch.AddBranch("indexes")
		for _, i := range st.Indexes {
			label := fmt.Sprintf("%s (%s)", i.Name, strings.Join(i.Columns, ", "))
			if i.Unique {
				label += " UNIQUE"
			}
			idx.AddNode(label)
		}
	}

	if len(st.ForeignKeys) > 0 {
		fks := branch.AddBranch("foreign keys")
		for _, fk := range st.ForeignKeys {
			label := fmt.Sprintf("%s -> %s.%s", fk.From, fk.Table, fk.To)
			if fk.OnDelete != "" && fk.OnDelete != "NO ACTION" {
				label += " ON DELETE " + fk.OnDelete
			}
			fks.AddNode(label)
		}
	}

	if len(st.ReferencedBy) > 0 {
		refs := branch.AddBranch("referenced by")
		for _, r := range st.ReferencedBy {
			refs.AddNode(fmt.Sprintf("%s.%s -> %s", r.Table, r.From, r.To))
		}
	}
}

func columnLabel(c database.ColumnInfo) string {
	parts := []string{c.Name}
	if c.Type != "" {
		parts = append(parts, c.Type)
	}
	if c.PrimaryKey > 0 {
		parts = append(parts, "PK")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.DefaultValue.Valid {
		parts = append(parts, "DEFAULT "+c.DefaultValue.String)
	}
	return strings.Join(parts, " ")
}
