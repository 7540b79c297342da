package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johan-st/sqlbrowse/internal/database"
	"github.com/johan-st/sqlbrowse/internal/layout"
	"github.com/johan-st/sqlbrowse/internal/query"
	"github.com/johan-st/sqlbrowse/internal/testutil"
)

// echoExecutor answers each query with one row holding the query text, or
// with the error registered for it.
type echoExecutor struct {
	mu     sync.Mutex
	calls  []string
	errors map[string]error
}

func (e *echoExecutor) ExecuteQuery(_ context.Context, q string) (*database.QueryResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, q)
	if err := e.errors[q]; err != nil {
		return nil, err
	}
	return &database.QueryResult{
		IsSelect: true,
		Fields:   []database.Field{{Name: "q"}},
		Rows:     [][]any{{q}},
	}, nil
}

func newQueryViewFixture(t *testing.T, exec query.Executor) (*QueryView, *layout.Hub, *layout.Coordinator) {
	t.Helper()

	hub := layout.NewHub()
	coord := layout.NewCoordinator(layout.Options{SidebarWidth: 20, SidebarMin: 10, SidebarMax: 40, ChromeHeight: chromeHeight})
	coord.Activate(hub)
	hub.Notify(layout.Viewport{Width: 100, Height: 33})

	qv := NewQueryView(exec, hub, coord, query.Options{
		Debounce: 10 * time.Millisecond,
		Timeout:  time.Second,
		Logger:   testutil.NewTestLogger(t),
	})
	t.Cleanup(func() {
		if qv.Active() {
			qv.Deactivate()
		}
	})
	return qv, hub, coord
}

// settle runs a pipeline command and feeds its message back.
func settle(t *testing.T, qv *QueryView, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	_, handled := qv.Update(cmd())
	require.True(t, handled)
}

func TestQueryView_MountRunsInitialQuery(t *testing.T) {
	exec := &echoExecutor{}
	qv, hub, coord := newQueryViewFixture(t, exec)

	cmd := qv.Activate("SELECT 1")
	assert.True(t, qv.Active())
	assert.Equal(t, 2, hub.Len())
	assert.Equal(t, coord.State(), qv.state)

	settle(t, qv, cmd)
	row, ok := qv.SelectedRow()
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", row.Values[0].Text())
	assert.Contains(t, qv.View(), "1 rows")
}

func TestQueryView_UnmountRemovesSubscription(t *testing.T) {
	qv, hub, _ := newQueryViewFixture(t, &echoExecutor{})

	qv.Activate("")
	qv.Deactivate()

	assert.False(t, qv.Active())
	assert.Equal(t, 1, hub.Len())
	assert.NotPanics(t, qv.Deactivate)
}

func TestQueryView_RemountKeepsEditorText(t *testing.T) {
	exec := &echoExecutor{}
	qv, _, _ := newQueryViewFixture(t, exec)

	settle(t, qv, qv.Activate("SELECT 1"))
	qv.Deactivate()
	qv.editor.SetValue("SELECT 2")

	settle(t, qv, qv.Activate("SELECT 1"))
	assert.Equal(t, "SELECT 2", qv.Pipeline().LastQuery())
}

func TestQueryView_FollowsViewportChanges(t *testing.T) {
	qv, hub, coord := newQueryViewFixture(t, &echoExecutor{})
	qv.Activate("")

	hub.Notify(layout.Viewport{Width: 140, Height: 50})

	assert.Equal(t, 120, qv.state.GridWidth)
	assert.Equal(t, coord.State(), qv.state)
}

func TestQueryView_TypingDebounces(t *testing.T) {
	exec := &echoExecutor{}
	qv, _, _ := newQueryViewFixture(t, exec)
	qv.Activate("")
	qv.FocusEditor()

	cmd := qv.HandleKey(keyRunes("S"))
	require.NotNil(t, cmd)
	assert.Equal(t, "S", qv.Pipeline().Text())
	assert.Empty(t, exec.calls, "nothing runs before the quiet period")

	// Keys other than esc and ctrl+r go to the editor.
	qv.HandleKey(keyRunes("q"))
	assert.Equal(t, "Sq", qv.Pipeline().Text())

	qv.HandleKey(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, qv.EditorFocused())
}

func TestQueryView_RunNow(t *testing.T) {
	exec := &echoExecutor{}
	qv, _, _ := newQueryViewFixture(t, exec)
	qv.Activate("")
	qv.editor.SetValue("SELECT 7")

	settle(t, qv, qv.HandleKey(tea.KeyMsg{Type: tea.KeyCtrlR}))
	assert.Equal(t, []string{"SELECT 7"}, exec.calls)
}

func TestQueryView_FailureShowsErrorAboveRows(t *testing.T) {
	exec := &echoExecutor{errors: map[string]error{"bad": errors.New("no such table: nope")}}
	qv, _, _ := newQueryViewFixture(t, exec)

	settle(t, qv, qv.Activate("SELECT 1"))
	settle(t, qv, qv.Pipeline().Execute("bad"))

	content := qv.resultsContent()
	assert.Contains(t, content, "no such table: nope")
	assert.Contains(t, content, "SELECT 1", "previous rows stay visible")

	row, ok := qv.SelectedRow()
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", row.Values[0].Text())
}

func TestResultSummary(t *testing.T) {
	assert.Contains(t, resultSummary(&query.ResultModel{IsSelect: true, Rows: make([]query.Row, 1200)}, 0), "1,200 rows")
	assert.Contains(t, resultSummary(&query.ResultModel{RowsAffected: 3}, 0), "3 row(s) affected")
	assert.Contains(t, resultSummary(&query.ResultModel{IsSelect: true, Hidden: []string{"avatar"}}, 0), "1 binary column(s) hidden")
	assert.Contains(t, resultSummary(&query.ResultModel{IsSelect: true}, 12*time.Millisecond), "12ms")
}
