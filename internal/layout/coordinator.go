package layout

import (
	"fmt"
	"sync/atomic"
)

// State is the geometry of the four panes in terminal cells.
type State struct {
	SidebarWidth       int
	GridWidth          int
	QueryHeight        int
	QueryResultsHeight int
}

// Options configures a Coordinator.
type Options struct {
	SidebarWidth int
	SidebarMin   int
	SidebarMax   int
	// ChromeHeight is the fixed height of header, tab bar and status bar.
	ChromeHeight int
}

// DefaultOptions returns the default pane geometry.
func DefaultOptions() Options {
	return Options{
		SidebarWidth: 24,
		SidebarMin:   16,
		SidebarMax:   48,
		ChromeHeight: 3,
	}
}

var coordinatorSeq atomic.Uint64

// Coordinator owns the pane geometry. After every call
// SidebarWidth+GridWidth equals the viewport width and
// QueryHeight+QueryResultsHeight equals the container height.
//
// It is not safe for concurrent use; the App drives it from its event loop.
type Coordinator struct {
	opts     Options
	key      string
	viewport Viewport
	state    State
	sub      *Subscription

	// Requested sizes survive a temporarily small viewport.
	wantSidebar int
	wantQuery   int // -1 until the first viewport is known
}

// NewCoordinator creates a coordinator. Out of range options are repaired.
func NewCoordinator(opts Options) *Coordinator {
	if opts.SidebarMin < 0 {
		opts.SidebarMin = 0
	}
	if opts.SidebarMax < opts.SidebarMin {
		opts.SidebarMax = opts.SidebarMin
	}
	if opts.ChromeHeight < 0 {
		opts.ChromeHeight = 0
	}

	return &Coordinator{
		opts:        opts,
		key:         fmt.Sprintf("layout/%d", coordinatorSeq.Add(1)),
		wantSidebar: clamp(opts.SidebarWidth, opts.SidebarMin, opts.SidebarMax),
		wantQuery:   -1,
	}
}

// Key is the hub key this coordinator subscribes under.
func (c *Coordinator) Key() string { return c.key }

// Activate subscribes the coordinator to viewport changes.
func (c *Coordinator) Activate(hub *Hub) {
	if c.sub != nil {
		return
	}
	c.sub = hub.Subscribe(c.key, c.OnViewportResize)
}

// Deactivate removes the hub subscription.
func (c *Coordinator) Deactivate() {
	c.sub.Unsubscribe()
	c.sub = nil
}

// State returns the current geometry.
func (c *Coordinator) State() State { return c.state }

// Viewport returns the last measured viewport.
func (c *Coordinator) Viewport() Viewport { return c.viewport }

// ContainerHeight is the vertical space shared by the query editor and its
// results: the viewport minus the fixed chrome.
func (c *Coordinator) ContainerHeight() int {
	return max(c.viewport.Height-c.opts.ChromeHeight, 0)
}

// OnViewportResize records a new viewport and recomputes every pane.
// Calling it twice with the same viewport yields the same state.
func (c *Coordinator) OnViewportResize(v Viewport) {
	c.viewport = Viewport{Width: max(v.Width, 0), Height: max(v.Height, 0)}
	if c.wantQuery < 0 {
		c.wantQuery = c.ContainerHeight() / 2
	}
	c.applyWidth()
	c.applyHeight()
}

// OnSidebarDrag resizes the sidebar. The width is clamped to the configured
// range and to the viewport; the grid takes the rest.
func (c *Coordinator) OnSidebarDrag(width int) {
	c.wantSidebar = clamp(width, c.opts.SidebarMin, c.opts.SidebarMax)
	c.applyWidth()
}

// OnGridDrag resizes the content grid; the sidebar takes the rest.
func (c *Coordinator) OnGridDrag(width int) {
	c.OnSidebarDrag(c.viewport.Width - width)
}

// OnQueryPaneDrag resizes the query editor. The container height is taken
// from the current viewport at drag time.
func (c *Coordinator) OnQueryPaneDrag(height int) {
	c.wantQuery = clamp(height, 0, c.ContainerHeight())
	c.applyHeight()
}

func (c *Coordinator) applyWidth() {
	c.state.SidebarWidth = min(c.wantSidebar, c.viewport.Width)
	c.state.GridWidth = c.viewport.Width - c.state.SidebarWidth
}

func (c *Coordinator) applyHeight() {
	container := c.ContainerHeight()
	c.state.QueryHeight = clamp(max(c.wantQuery, 0), 0, container)
	c.state.QueryResultsHeight = container - c.state.QueryHeight
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
