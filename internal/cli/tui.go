package cli

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/johan-st/sqlbrowse/internal/database"
	"github.com/johan-st/sqlbrowse/internal/tui"
)

// launchTUI runs the interactive browser until the user quits. A path that
// does not resolve is still handed to the session so that the browser shows
// the connection error full screen and the user can open another file.
func (o *rootOptions) launchTUI(cmd *cobra.Command, arg string) error {
	if arg == "" {
		return errors.New("no database path given (pass a path or set database.path)")
	}

	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("the browser needs a terminal; use the tables, schema or query commands for scripting")
	}

	path := arg
	if resolved, err := database.ResolvePath(arg); err == nil {
		path = resolved
	}

	ctrl := o.newSession(path)
	defer ctrl.Close()

	app := tui.NewApp(tui.Deps{
		Session:   ctrl,
		Config:    o.cfg,
		Logger:    o.log.Logger,
		LogCounts: o.log.Counts,
	})
	defer app.Close()

	if w, h, err := term.GetSize(fd); err == nil {
		app.Update(tea.WindowSizeMsg{Width: w, Height: h})
	}

	o.log.Info("browser started", "path", path, "log", o.log.Path)
	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
