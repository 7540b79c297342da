// Package query turns editor text into debounced, asynchronous query
// executions and normalized results.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/VividCortex/ewma"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/johan-st/sqlbrowse/internal/database"
)

// Executor runs one statement. session.Controller implements it.
type Executor interface {
	ExecuteQuery(ctx context.Context, query string) (*database.QueryResult, error)
}

// Status is the state of the latest query cycle.
type Status int

const (
	Idle Status = iota
	Pending
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "running"
	case Succeeded:
		return "ok"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// QueryExecutionError wraps a failed execution. The previous result stays
// visible while it is shown.
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return "query failed: " + e.Err.Error()
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// Options configures a Pipeline.
type Options struct {
	Debounce time.Duration
	Timeout  time.Duration
	Identity Identity
	Logger   *slog.Logger
}

// DefaultOptions returns the default pipeline timings.
func DefaultOptions() Options {
	return Options{
		Debounce: 500 * time.Millisecond,
		Timeout:  30 * time.Second,
		Identity: SequenceIdentity{},
	}
}

// DebounceMsg fires when the quiet period after an edit ends.
type DebounceMsg struct {
	PipelineID uint64
	Token      uint64
}

// ResultMsg carries the outcome of one execution.
type ResultMsg struct {
	PipelineID uint64
	Generation uint64
	Query      string
	Result     *database.QueryResult
	Err        error
	Duration   time.Duration
}

var pipelineSeq atomic.Uint64

// Pipeline debounces edits and commits only the result of the latest
// execution. All methods must be called from the bubbletea event loop; the
// commands it returns do the blocking work.
type Pipeline struct {
	id     uint64
	exec   Executor
	opts   Options
	logger *slog.Logger

	active bool
	ctx    context.Context
	cancel context.CancelFunc

	text       string
	token      uint64
	generation uint64

	status    Status
	model     *ResultModel
	err       error
	lastQuery string
	latency   ewma.MovingAverage
}

// NewPipeline creates an inactive pipeline.
func NewPipeline(exec Executor, opts Options) *Pipeline {
	if opts.Identity == nil {
		opts.Identity = SequenceIdentity{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := pipelineSeq.Add(1)
	return &Pipeline{
		id:      id,
		exec:    exec,
		opts:    opts,
		logger:  opts.Logger.With("component", "pipeline", "pipeline", id),
		latency: ewma.NewMovingAverage(),
	}
}

// ID identifies the pipeline's messages.
func (p *Pipeline) ID() uint64 { return p.id }

// Active reports whether the owning view is live.
func (p *Pipeline) Active() bool { return p.active }

// Text is the latest editor text.
func (p *Pipeline) Text() string { return p.text }

// Status is the state of the latest execution.
func (p *Pipeline) Status() Status { return p.status }

// Result is the last committed result, nil before the first success.
func (p *Pipeline) Result() *ResultModel { return p.model }

// Err is the error of the latest execution when Status is Failed.
func (p *Pipeline) Err() error { return p.err }

// LastQuery is the text of the latest execution.
func (p *Pipeline) LastQuery() string { return p.lastQuery }

// Generation is the current generation. It advances on every execution and
// on every teardown.
func (p *Pipeline) Generation() uint64 { return p.generation }

// Latency is the moving average of execution durations.
func (p *Pipeline) Latency() time.Duration {
	return time.Duration(p.latency.Value())
}

// SetIdentity changes the row identity used for results committed from now on.
func (p *Pipeline) SetIdentity(id Identity) {
	if id == nil {
		id = SequenceIdentity{}
	}
	p.opts.Identity = id
}

// Activate marks the view live and runs the initial text right away.
func (p *Pipeline) Activate(initial string) tea.Cmd {
	if p.active {
		return nil
	}
	p.active = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.text = initial
	if strings.TrimSpace(initial) == "" {
		return nil
	}
	return p.Execute(initial)
}

// Deactivate tears the pipeline down: late debounce ticks and results are
// dropped and in-flight executions are cancelled. Results issued before the
// teardown are never committed, even after a later Activate.
func (p *Pipeline) Deactivate() {
	if !p.active {
		return
	}
	p.active = false
	p.token++
	p.generation++
	if p.status == Pending {
		p.status = Idle
	}
	if p.cancel != nil {
		p.cancel()
	}
}

// TextChanged records the new text and restarts the quiet period. Only the
// tick carrying the latest token leads to an execution.
func (p *Pipeline) TextChanged(text string) tea.Cmd {
	p.text = text
	if !p.active {
		return nil
	}
	p.token++
	id, token := p.id, p.token
	return tea.Tick(p.opts.Debounce, func(time.Time) tea.Msg {
		return DebounceMsg{PipelineID: id, Token: token}
	})
}

// Execute issues a new generation for text. It is a no-op while inactive.
func (p *Pipeline) Execute(text string) tea.Cmd {
	if !p.active {
		return nil
	}
	p.text = text
	p.generation++
	p.status = Pending
	p.lastQuery = text

	id, gen := p.id, p.generation
	ctx, exec, timeout := p.ctx, p.exec, p.opts.Timeout
	return func() tea.Msg {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		res, err := exec.ExecuteQuery(ctx, text)
		return ResultMsg{
			PipelineID: id,
			Generation: gen,
			Query:      text,
			Result:     res,
			Err:        err,
			Duration:   time.Since(start),
		}
	}
}

// Update handles the pipeline's own messages. The bool reports whether msg
// belonged to this pipeline.
func (p *Pipeline) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case DebounceMsg:
		if msg.PipelineID != p.id {
			return nil, false
		}
		if !p.active || msg.Token != p.token {
			return nil, true
		}
		return p.Execute(p.text), true

	case ResultMsg:
		if msg.PipelineID != p.id {
			return nil, false
		}
		p.commit(msg)
		return nil, true
	}
	return nil, false
}

func (p *Pipeline) commit(msg ResultMsg) {
	if !p.active || msg.Generation != p.generation {
		p.logger.Debug("discarding stale result", "generation", msg.Generation, "latest", p.generation)
		return
	}

	p.latency.Add(float64(msg.Duration))

	if msg.Err == nil && msg.Result == nil {
		msg.Err = fmt.Errorf("no result")
	}
	if msg.Err != nil {
		p.status = Failed
		p.err = &QueryExecutionError{Query: msg.Query, Err: msg.Err}
		p.logger.Warn("query failed", "query", msg.Query, "error", msg.Err, "duration", msg.Duration)
		return
	}

	p.model = NewResultModel(msg.Result, p.opts.Identity)
	p.status = Succeeded
	p.err = nil
	p.logger.Debug("query committed", "generation", msg.Generation, "rows", len(p.model.Rows), "duration", msg.Duration)
}
