package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/johan-st/sqlbrowse/internal/layout"
	"github.com/johan-st/sqlbrowse/internal/query"
)

// QueryView is the query route: an SQL editor above a results table. It owns
// a query pipeline and a hub subscription while it is mounted.
type QueryView struct {
	pipeline *query.Pipeline
	hub      *layout.Hub
	coord    *layout.Coordinator
	sub      *layout.Subscription
	keys     KeyMap

	editor  textarea.Model
	results table.Model

	state        layout.State
	editorFocus  bool
	resultsWidth int
}

// NewQueryView creates an unmounted query view.
func NewQueryView(exec query.Executor, hub *layout.Hub, coord *layout.Coordinator, opts query.Options) *QueryView {
	editor := textarea.New()
	editor.Placeholder = "SELECT ..."
	editor.ShowLineNumbers = false
	editor.Prompt = ""
	editor.CharLimit = 0

	results := newResultTable()
	results.Focus()

	return &QueryView{
		pipeline: query.NewPipeline(exec, opts),
		hub:      hub,
		coord:    coord,
		keys:     DefaultKeyMap(),
		editor:   editor,
		results:  results,
	}
}

// Pipeline exposes the pipeline for the status bar.
func (q *QueryView) Pipeline() *query.Pipeline { return q.pipeline }

// Active reports whether the view is mounted.
func (q *QueryView) Active() bool { return q.pipeline.Active() }

// EditorFocused reports whether keys go to the editor.
func (q *QueryView) EditorFocused() bool { return q.editorFocus }

// Activate mounts the view. The editor keeps its text across mounts; on the
// first mount it is seeded with initial. The current text runs right away.
func (q *QueryView) Activate(initial string) tea.Cmd {
	if q.Active() {
		return nil
	}
	if q.editor.Value() == "" {
		q.editor.SetValue(initial)
	}
	q.sub = q.hub.Subscribe(fmt.Sprintf("query-view/%d", q.pipeline.ID()), func(layout.Viewport) {
		q.resize(q.coord.State())
	})
	q.resize(q.coord.State())
	return q.pipeline.Activate(q.editor.Value())
}

// Deactivate unmounts the view: pending and in-flight queries are dropped and
// the hub subscription is removed.
func (q *QueryView) Deactivate() {
	q.pipeline.Deactivate()
	q.sub.Unsubscribe()
	q.sub = nil
	q.blurEditor()
}

// Update routes pipeline messages. The bool reports whether msg was consumed.
func (q *QueryView) Update(msg tea.Msg) (tea.Cmd, bool) {
	cmd, handled := q.pipeline.Update(msg)
	if handled {
		q.refreshResults()
	}
	return cmd, handled
}

// FocusEditor moves key input to the editor.
func (q *QueryView) FocusEditor() tea.Cmd {
	q.editorFocus = true
	q.results.Blur()
	return q.editor.Focus()
}

func (q *QueryView) blurEditor() {
	q.editorFocus = false
	q.editor.Blur()
	q.results.Focus()
}

// HandleKey handles a key while the query route has focus.
func (q *QueryView) HandleKey(msg tea.KeyMsg) tea.Cmd {
	if q.editorFocus {
		switch {
		case key.Matches(msg, q.keys.Back):
			q.blurEditor()
			return nil
		case key.Matches(msg, q.keys.Run):
			return q.pipeline.Execute(q.editor.Value())
		}

		before := q.editor.Value()
		var cmd tea.Cmd
		q.editor, cmd = q.editor.Update(msg)
		if after := q.editor.Value(); after != before {
			return tea.Batch(cmd, q.pipeline.TextChanged(after))
		}
		return cmd
	}

	switch {
	case key.Matches(msg, q.keys.Select):
		return q.FocusEditor()
	case key.Matches(msg, q.keys.Run):
		return q.pipeline.Execute(q.editor.Value())
	case key.Matches(msg, q.keys.Up, q.keys.Down):
		var cmd tea.Cmd
		q.results, cmd = q.results.Update(msg)
		return cmd
	}
	return nil
}

// UpdateEditor passes non-key messages, such as cursor blinks, to the editor.
func (q *QueryView) UpdateEditor(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	q.editor, cmd = q.editor.Update(msg)
	return cmd
}

// SelectedRow returns the row under the results cursor.
func (q *QueryView) SelectedRow() (query.Row, bool) {
	m := q.pipeline.Result()
	if m == nil {
		return query.Row{}, false
	}
	i := q.results.Cursor()
	if i < 0 || i >= len(m.Rows) {
		return query.Row{}, false
	}
	return m.Rows[i], true
}

// resize applies the coordinator geometry to the editor and the table.
func (q *QueryView) resize(st layout.State) {
	q.state = st
	q.editor.SetWidth(max(st.GridWidth-4, 1))
	q.editor.SetHeight(max(st.QueryHeight-2, 1))
	q.results.SetWidth(max(st.GridWidth-4, 1))
	q.results.SetHeight(max(st.QueryResultsHeight-3, 1))
	if st.GridWidth != q.resultsWidth {
		q.resultsWidth = st.GridWidth
		q.refreshResults()
	}
}

func (q *QueryView) refreshResults() {
	columns, rows := resultTable(q.pipeline.Result(), q.state.GridWidth)
	setTableData(&q.results, columns, rows)
}

// View renders the editor and results panes in the grid area.
func (q *QueryView) View() string {
	st := q.state

	var editor string
	if q.editorFocus {
		editor = q.editor.View()
	} else if strings.TrimSpace(q.editor.Value()) == "" {
		editor = dimItemStyle.Render("Press enter to write a query")
	} else {
		editor = highlightSQL(q.editor.Value())
	}
	editorPane := renderPane(editor, st.GridWidth, st.QueryHeight, "Query", q.editorFocus)

	resultsPane := renderPane(q.resultsContent(), st.GridWidth, st.QueryResultsHeight, "Results", !q.editorFocus)

	return editorPane + "\n" + resultsPane
}

// resultsContent is a one line header followed by the table.
func (q *QueryView) resultsContent() string {
	header := statusLine(q.pipeline, "No query run yet")
	if m := q.pipeline.Result(); m == nil || !m.IsSelect {
		return header
	}
	return header + "\n" + q.results.View()
}

// statusLine summarizes the latest execution of p. A failed execution shows
// its error while the previous rows stay below it.
func statusLine(p *query.Pipeline, idle string) string {
	switch p.Status() {
	case query.Pending:
		return runningStyle.Render("Running…")
	case query.Failed:
		return errorStyle.Render(p.Err().Error())
	case query.Succeeded:
		return resultSummary(p.Result(), p.Latency())
	default:
		return dimItemStyle.Render(idle)
	}
}

func resultSummary(m *query.ResultModel, latency time.Duration) string {
	if m == nil {
		return ""
	}
	var s string
	if m.IsSelect {
		s = fmt.Sprintf("%s rows", humanize.Comma(int64(len(m.Rows))))
		if len(m.Hidden) > 0 {
			s += fmt.Sprintf(" · %d binary column(s) hidden", len(m.Hidden))
		}
	} else {
		s = fmt.Sprintf("%s row(s) affected", humanize.Comma(m.RowsAffected))
	}
	if latency > 0 {
		s += " · " + latency.Round(time.Millisecond).String()
	}
	return successStyle.Render(s)
}
