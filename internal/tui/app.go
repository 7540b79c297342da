package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/johan-st/sqlbrowse/internal/config"
	"github.com/johan-st/sqlbrowse/internal/database"
	"github.com/johan-st/sqlbrowse/internal/layout"
	"github.com/johan-st/sqlbrowse/internal/query"
	"github.com/johan-st/sqlbrowse/internal/session"
)

const (
	// Header, tab bar and status bar take one row each.
	chromeHeight = 3
	bodyTop      = 2
	resizeStep   = 2

	minWidth  = 40
	minHeight = 10
)

// Route is the view shown in the grid.
type Route int

const (
	RouteContent Route = iota
	RouteStructure
	RouteQuery
)

func (r Route) String() string {
	switch r {
	case RouteContent:
		return "Content"
	case RouteStructure:
		return "Structure"
	case RouteQuery:
		return "Query"
	default:
		return fmt.Sprintf("Route(%d)", int(r))
	}
}

// Focus represents which pane has keyboard focus.
type Focus int

const (
	FocusSidebar Focus = iota
	FocusGrid
)

type dragTarget int

const (
	dragNone dragTarget = iota
	dragSidebar
	dragSplit
)

// Deps are the collaborators of the App.
type Deps struct {
	Session *session.Controller
	Config  *config.Config
	Logger  *slog.Logger
	// LogCounts reports logged warnings and errors for the status bar.
	LogCounts func() (warn, errs int64)
	// Copy writes text to the clipboard. Defaults to the system clipboard.
	Copy func(text string) error
}

// App is the main TUI application model.
type App struct {
	// Dependencies
	session   *session.Controller
	cfg       *config.Config
	logger    *slog.Logger
	logCounts func() (int64, int64)
	copy      func(string) error

	// Layout
	hub   *layout.Hub
	coord *layout.Coordinator
	sub   *layout.Subscription
	drag  dragTarget

	// Window size
	width, height int

	route Route
	focus Focus
	keys  KeyMap

	// Session state, refreshed after every session operation
	snapshot session.Snapshot
	opening  bool
	cursor   int
	fileSize int64
	watcher  *database.FileWatcher

	// Content route
	content      *query.Pipeline
	contentTable table.Model
	contentWidth int

	// Structure route
	structure    *session.TableStructure
	structureErr error

	// Query route
	queryView *QueryView

	// UI state
	prompt    textinput.Model
	prompting bool
	showHelp  bool
	notice    string
	noticeErr bool
	closed    bool
}

// NewApp creates a new TUI application. Nothing is opened until Init.
func NewApp(deps Deps) *App {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	copyFn := deps.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}

	hub := layout.NewHub()
	coord := layout.NewCoordinator(layout.Options{
		SidebarWidth: cfg.Layout.SidebarWidth,
		SidebarMin:   cfg.Layout.SidebarMin,
		SidebarMax:   cfg.Layout.SidebarMax,
		ChromeHeight: chromeHeight,
	})
	coord.Activate(hub)

	prompt := textinput.New()
	prompt.Prompt = "Open: "
	prompt.Placeholder = "path/to/database.db"
	prompt.PromptStyle = queryPromptStyle

	a := &App{
		session:   deps.Session,
		cfg:       cfg,
		logger:    logger.With("component", "tui"),
		logCounts: deps.LogCounts,
		copy:      copyFn,
		hub:       hub,
		coord:     coord,
		keys:      DefaultKeyMap(),
		content: query.NewPipeline(deps.Session, query.Options{
			Debounce: cfg.Query.Debounce,
			Timeout:  cfg.Query.Timeout,
			Logger:   logger.With("route", "content"),
		}),
		contentTable: newResultTable(),
		queryView: NewQueryView(deps.Session, hub, coord, query.Options{
			Debounce: cfg.Query.Debounce,
			Timeout:  cfg.Query.Timeout,
			Identity: query.IdentityFor(cfg.Query.IdentityColumn),
			Logger:   logger.With("route", "query"),
		}),
		prompt:   prompt,
		snapshot: deps.Session.Snapshot(),
	}
	a.contentTable.Focus()
	a.sub = hub.Subscribe("app", func(layout.Viewport) { a.layoutContent() })
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.opening = true
	return tea.Batch(tea.SetWindowTitle("sqlbrowse"), a.openCmd(a.session.Path(), false))
}

// Close tears the App down: pipelines stop, subscriptions are removed and
// the file watcher is stopped. It is safe to call more than once.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.teardownSession()
	a.sub.Unsubscribe()
	a.coord.Deactivate()
}

// teardownSession stops everything bound to the current session.
func (a *App) teardownSession() {
	a.stopWatcher()
	a.content.Deactivate()
	if a.queryView.Active() {
		a.queryView.Deactivate()
	}
}

func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d)
}

func (a *App) openCmd(path string, reopen bool) tea.Cmd {
	ctrl, timeout := a.session, a.cfg.Query.Timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()

		var err error
		if reopen {
			err = ctrl.Reopen(ctx, path)
		} else {
			err = ctrl.Open(ctx)
		}
		return SessionOpenedMsg{Path: path, Error: err}
	}
}

func (a *App) schemaCmd() tea.Cmd {
	ctrl, timeout := a.session, a.cfg.Query.Timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		return SchemaLoadedMsg{Error: ctrl.LoadSchema(ctx)}
	}
}

func (a *App) versionCmd() tea.Cmd {
	ctrl, timeout := a.session, a.cfg.Query.Timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		return VersionMsg{Version: ctrl.RefreshVersionInfo(ctx)}
	}
}

func (a *App) structureCmd() tea.Cmd {
	sel := a.snapshot.Selected
	if sel == nil {
		return nil
	}
	ctrl, timeout, name := a.session, a.cfg.Query.Timeout, sel.Name
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		st, err := ctrl.Structure(ctx, name)
		return StructureLoadedMsg{Table: name, Structure: st, Error: err}
	}
}

// waitForChange delivers the next change of the watched file. It returns
// nothing once the watcher is stopped.
func waitForChange(w *database.FileWatcher, path string) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.Changes():
			return FileChangedMsg{Path: path}
		case <-w.Done():
			return nil
		}
	}
}

func (a *App) startWatcher() tea.Cmd {
	a.stopWatcher()

	path := a.snapshot.Path
	w, err := database.NewFileWatcher(path, database.DefaultWatchDebounce, a.logger)
	if err != nil {
		a.logger.Warn("file watcher unavailable", "error", err)
		return nil
	}
	if err := w.Start(); err != nil {
		w.Stop()
		a.logger.Warn("file watcher unavailable", "path", path, "error", err)
		return nil
	}
	a.watcher = w
	return waitForChange(w, path)
}

func (a *App) stopWatcher() {
	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}
}

func (a *App) statFile() {
	info, err := os.Stat(a.snapshot.Path)
	if err != nil {
		a.fileSize = 0
		return
	}
	a.fileSize = info.Size()
}

// refreshSnapshot copies the session state and moves the sidebar cursor to
// the selected table.
func (a *App) refreshSnapshot() {
	a.snapshot = a.session.Snapshot()
	a.cursor = 0
	if sel := a.snapshot.Selected; sel != nil {
		for i, t := range a.snapshot.Tables {
			if t.Name == sel.Name {
				a.cursor = i
				break
			}
		}
	}
}

func (a *App) initialSQL() string {
	if a.cfg.Query.DefaultSQL != "" {
		return a.cfg.Query.DefaultSQL
	}
	return a.session.Dialect().DefaultQuery()
}

// loadContent (re)runs the content query of the selected table. The row
// identity follows the table's primary key.
func (a *App) loadContent() tea.Cmd {
	sel := a.snapshot.Selected
	if sel == nil {
		return nil
	}
	a.content.SetIdentity(query.IdentityFor(sel.PrimaryKey...))
	q := database.BuildSelect(sel.Name, database.SelectOptions{Limit: a.cfg.Query.PageSize})
	if !a.content.Active() {
		return a.content.Activate(q)
	}
	return a.content.Execute(q)
}

// reloadViews refreshes the routes that depend on the selected table.
func (a *App) reloadViews() tea.Cmd {
	cmds := []tea.Cmd{a.loadContent()}
	if a.route == RouteStructure {
		cmds = append(cmds, a.structureCmd())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.hub.Notify(layout.Viewport{Width: msg.Width, Height: msg.Height})
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.MouseMsg:
		return a, a.handleMouse(msg)

	case OpenDatabaseMsg:
		return a, a.openDatabase(msg.Path)

	case SessionOpenedMsg:
		return a, a.handleSessionOpened(msg)

	case SchemaLoadedMsg:
		a.refreshSnapshot()
		if msg.Error != nil {
			return a, nil
		}
		return a, a.reloadViews()

	case StructureLoadedMsg:
		if a.snapshot.Selected == nil || a.snapshot.Selected.Name != msg.Table {
			return a, nil
		}
		a.structure, a.structureErr = msg.Structure, msg.Error
		return a, nil

	case VersionMsg:
		a.refreshSnapshot()
		return a, nil

	case FileChangedMsg:
		if a.watcher == nil || msg.Path != a.snapshot.Path {
			return a, nil
		}
		a.logger.Debug("database file changed", "path", msg.Path)
		a.statFile()
		return a, tea.Batch(a.schemaCmd(), waitForChange(a.watcher, msg.Path))

	case NoticeMsg:
		a.notice, a.noticeErr = msg.Text, false
		if msg.Error != nil {
			a.notice, a.noticeErr = msg.Error.Error(), true
		}
		return a, nil
	}

	if cmd, ok := a.content.Update(msg); ok {
		a.refreshContent()
		return a, cmd
	}
	if cmd, ok := a.queryView.Update(msg); ok {
		return a, cmd
	}

	// Cursor blinking and other component messages
	var cmd tea.Cmd
	switch {
	case a.prompting:
		a.prompt, cmd = a.prompt.Update(msg)
	case a.queryView.EditorFocused():
		cmd = a.queryView.UpdateEditor(msg)
	}
	return a, cmd
}

func (a *App) handleSessionOpened(msg SessionOpenedMsg) tea.Cmd {
	if msg.Path != a.session.Path() {
		return nil
	}
	a.opening = false
	a.refreshSnapshot()
	a.structure, a.structureErr = nil, nil
	if msg.Error != nil {
		return nil
	}

	a.statFile()
	cmds := []tea.Cmd{a.versionCmd(), a.startWatcher(), a.reloadViews()}
	if a.route == RouteQuery {
		cmds = append(cmds, a.queryView.Activate(a.initialSQL()))
	}
	return tea.Batch(cmds...)
}

// openDatabase replaces the session with one on path. Paths that do not
// resolve are handed to the session as typed so the failure shows.
func (a *App) openDatabase(path string) tea.Cmd {
	if resolved, err := database.ResolvePath(path); err == nil {
		path = resolved
	}
	a.teardownSession()
	a.opening = true
	a.notice = ""
	a.logger.Info("opening database", "path", path)
	return a.openCmd(path, true)
}

func (a *App) refresh() tea.Cmd {
	if a.opening {
		return nil
	}
	if a.snapshot.State != session.Connected {
		return a.openDatabase(a.snapshot.Path)
	}
	a.statFile()
	return a.schemaCmd()
}

func (a *App) setRoute(r Route) tea.Cmd {
	if r == a.route {
		return nil
	}
	if a.route == RouteQuery {
		a.queryView.Deactivate()
	}
	a.route = r

	switch r {
	case RouteStructure:
		a.structure, a.structureErr = nil, nil
		return a.structureCmd()
	case RouteQuery:
		a.focus = FocusGrid
		return a.queryView.Activate(a.initialSQL())
	}
	return nil
}

func (a *App) selectTable(i int) tea.Cmd {
	if i < 0 || i >= len(a.snapshot.Tables) || i == a.cursor {
		return nil
	}
	if err := a.session.SelectTable(a.snapshot.Tables[i].Name); err != nil {
		a.notice, a.noticeErr = err.Error(), true
		return nil
	}
	a.refreshSnapshot()
	a.structure, a.structureErr = nil, nil
	a.contentTable.SetCursor(0)
	return a.reloadViews()
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.Close()
		return a, tea.Quit
	}

	if a.prompting {
		return a, a.handlePromptKey(msg)
	}

	if a.showHelp {
		if key.Matches(msg, a.keys.Help, a.keys.Back, a.keys.Quit) {
			a.showHelp = false
		}
		return a, nil
	}

	if a.route == RouteQuery && a.focus == FocusGrid && a.queryView.EditorFocused() {
		return a, a.queryView.HandleKey(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.Close()
		return a, tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.showHelp = true
		return a, nil
	case key.Matches(msg, a.keys.Open):
		return a, a.openPrompt()
	case key.Matches(msg, a.keys.Refresh):
		return a, a.refresh()
	}

	if a.snapshot.State != session.Connected {
		return a, nil
	}

	switch {
	case key.Matches(msg, a.keys.Content):
		return a, a.setRoute(RouteContent)
	case key.Matches(msg, a.keys.Structure):
		return a, a.setRoute(RouteStructure)
	case key.Matches(msg, a.keys.Query):
		return a, a.setRoute(RouteQuery)
	case key.Matches(msg, a.keys.NextPane):
		if a.focus == FocusSidebar {
			a.focus = FocusGrid
		} else {
			a.focus = FocusSidebar
		}
		return a, nil
	case key.Matches(msg, a.keys.SidebarShrink):
		a.coord.OnSidebarDrag(a.coord.State().SidebarWidth - resizeStep)
		a.applyLayout()
		return a, nil
	case key.Matches(msg, a.keys.SidebarGrow):
		a.coord.OnSidebarDrag(a.coord.State().SidebarWidth + resizeStep)
		a.applyLayout()
		return a, nil
	case key.Matches(msg, a.keys.QueryShrink):
		a.coord.OnQueryPaneDrag(a.coord.State().QueryHeight - 1)
		a.applyLayout()
		return a, nil
	case key.Matches(msg, a.keys.QueryGrow):
		a.coord.OnQueryPaneDrag(a.coord.State().QueryHeight + 1)
		a.applyLayout()
		return a, nil
	case key.Matches(msg, a.keys.Copy):
		return a, a.copyRow()
	}

	if a.focus == FocusSidebar {
		return a, a.handleSidebarKey(msg)
	}
	return a, a.handleGridKey(msg)
}

func (a *App) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Up):
		return a.selectTable(a.cursor - 1)
	case key.Matches(msg, a.keys.Down):
		return a.selectTable(a.cursor + 1)
	case key.Matches(msg, a.keys.Select):
		a.focus = FocusGrid
	}
	return nil
}

func (a *App) handleGridKey(msg tea.KeyMsg) tea.Cmd {
	if a.route == RouteQuery {
		if key.Matches(msg, a.keys.Back) {
			a.focus = FocusSidebar
			return nil
		}
		return a.queryView.HandleKey(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Back):
		a.focus = FocusSidebar
	case a.route == RouteContent && key.Matches(msg, a.keys.Up, a.keys.Down):
		var cmd tea.Cmd
		a.contentTable, cmd = a.contentTable.Update(msg)
		return cmd
	}
	return nil
}

func (a *App) openPrompt() tea.Cmd {
	a.prompting = true
	a.prompt.SetValue(a.snapshot.Path)
	a.prompt.CursorEnd()
	return a.prompt.Focus()
}

func (a *App) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		a.prompting = false
		a.prompt.Blur()
		return nil
	case tea.KeyEnter:
		a.prompting = false
		a.prompt.Blur()
		path := strings.TrimSpace(a.prompt.Value())
		if path == "" {
			return nil
		}
		return func() tea.Msg { return OpenDatabaseMsg{Path: path} }
	}

	var cmd tea.Cmd
	a.prompt, cmd = a.prompt.Update(msg)
	return cmd
}

// selectedRow is the row under the cursor of the current route.
func (a *App) selectedRow() (query.Row, bool) {
	switch a.route {
	case RouteContent:
		m := a.content.Result()
		i := a.contentTable.Cursor()
		if m == nil || i < 0 || i >= len(m.Rows) {
			return query.Row{}, false
		}
		return m.Rows[i], true
	case RouteQuery:
		return a.queryView.SelectedRow()
	}
	return query.Row{}, false
}

func (a *App) copyRow() tea.Cmd {
	row, ok := a.selectedRow()
	if !ok {
		return nil
	}
	text, copyFn := rowTSV(row), a.copy
	return func() tea.Msg {
		if err := copyFn(text); err != nil {
			return NoticeMsg{Error: fmt.Errorf("copy failed: %w", err)}
		}
		return NoticeMsg{Text: "copied row " + row.ID}
	}
}

// handleMouse turns press-and-drag on the sidebar border or on the query
// split line into coordinator drags.
func (a *App) handleMouse(msg tea.MouseMsg) tea.Cmd {
	st := a.coord.State()
	container := a.coord.ContainerHeight()

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || msg.Y < bodyTop || msg.Y >= bodyTop+container {
			return nil
		}
		split := bodyTop + st.QueryHeight
		switch {
		case msg.X == st.SidebarWidth-1 || msg.X == st.SidebarWidth:
			a.drag = dragSidebar
		case a.route == RouteQuery && msg.X > st.SidebarWidth && (msg.Y == split-1 || msg.Y == split):
			a.drag = dragSplit
		case msg.X < st.SidebarWidth:
			// Rows start below the pane border.
			if i := a.sidebarOffset() + msg.Y - bodyTop - 1; i >= 0 && i < len(a.snapshot.Tables) {
				a.focus = FocusSidebar
				return a.selectTable(i)
			}
		}

	case tea.MouseActionMotion:
		switch a.drag {
		case dragSidebar:
			a.coord.OnSidebarDrag(msg.X + 1)
			a.applyLayout()
		case dragSplit:
			a.coord.OnQueryPaneDrag(msg.Y - bodyTop + 1)
			a.applyLayout()
		}

	case tea.MouseActionRelease:
		a.drag = dragNone
	}
	return nil
}

// layoutContent sizes the content table. It runs on every viewport change.
func (a *App) layoutContent() {
	st := a.coord.State()
	a.contentTable.SetWidth(max(st.GridWidth-4, 1))
	a.contentTable.SetHeight(max(a.coord.ContainerHeight()-3, 1))
	if st.GridWidth != a.contentWidth {
		a.contentWidth = st.GridWidth
		a.refreshContent()
	}
}

// applyLayout propagates a drag to every sized component. Drags do not go
// through the hub.
func (a *App) applyLayout() {
	a.layoutContent()
	if a.queryView.Active() {
		a.queryView.resize(a.coord.State())
	}
}

func (a *App) refreshContent() {
	columns, rows := resultTable(a.content.Result(), a.coord.State().GridWidth)
	setTableData(&a.contentTable, columns, rows)
}
