// Package session owns the lifecycle of one database session: the gateway
// connection, the discovered schema and the selected table.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/johan-st/sqlbrowse/internal/database"
)

// Gateway is the database access the session needs. *database.Gateway
// implements it.
type Gateway interface {
	Connect(ctx context.Context) error
	ListDatabases(ctx context.Context) ([]database.DatabaseInfo, error)
	ListTableColumns(ctx context.Context, table string) ([]database.ColumnInfo, error)
	ListIndexes(ctx context.Context, table string) ([]database.IndexInfo, error)
	ListForeignKeys(ctx context.Context, table string) ([]database.ForeignKeyInfo, error)
	RowCount(ctx context.Context, table string) (int64, error)
	ExecuteQuery(ctx context.Context, query string) (*database.QueryResult, error)
	Version(ctx context.Context) (string, error)
	Dialect() database.Dialect
	Close() error
}

// Opener creates an unconnected gateway for a database path.
type Opener func(path string) Gateway

// State is the connection state of a session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TableDescriptor is an immutable snapshot of one table. Schema refreshes
// replace descriptors, they never patch them.
type TableDescriptor struct {
	Name       string
	Columns    []database.ColumnInfo
	PrimaryKey []string
}

// Snapshot is a read-only copy of the session for rendering.
type Snapshot struct {
	ID           string
	Path         string
	DatabaseName string
	Dialect      string
	Version      string
	State        State
	Err          error
	Tables       []TableDescriptor
	Views        []string
	Selected     *TableDescriptor
}

// Controller is the single owner of the gateway. All access to the live
// connection goes through it.
type Controller struct {
	open   Opener
	logger *slog.Logger

	mu       sync.RWMutex
	id       string
	path     string
	gateway  Gateway
	epoch    uint64 // bumped on Reopen; stale completions are dropped
	state    State
	err      error
	dbName   string
	tables   []TableDescriptor
	views    []string
	selected int // index into tables, -1 when nothing is selected
	version  string
}

// New creates a controller for path. Nothing is opened until Connect.
func New(path string, open Opener, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		open:     open,
		logger:   logger,
		selected: -1,
	}
	c.reset(path)
	return c
}

// reset installs a fresh gateway for path. Callers hold mu, except New.
func (c *Controller) reset(path string) {
	c.id = uuid.NewString()
	c.path = path
	c.gateway = c.open(path)
	c.epoch++
	c.state = Disconnected
	c.err = nil
	c.dbName = ""
	c.tables = nil
	c.views = nil
	c.selected = -1
	c.version = ""
}

func (c *Controller) log() *slog.Logger {
	return c.logger.With("session", c.id, "path", c.path)
}

// Connect opens the gateway connection. It does not retry; a rejected
// connection leaves the session Failed with a *ConnectionError.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.err = nil
	gw, epoch, path, logger := c.gateway, c.epoch, c.path, c.log()
	c.mu.Unlock()

	err := gw.Connect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return nil
	}
	if err != nil {
		c.state = Failed
		c.err = &ConnectionError{Path: path, Err: err}
		logger.Error("connect failed", "error", err)
		return c.err
	}
	c.state = Connected
	logger.Info("session connected")
	return nil
}

// LoadSchema replaces the table list from the gateway. A previously selected
// table is kept when it still exists; otherwise the first table is selected.
// An empty schema is a *SchemaLoadError and leaves the session Failed.
func (c *Controller) LoadSchema(ctx context.Context) error {
	c.mu.RLock()
	if c.state != Connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	gw, epoch, logger := c.gateway, c.epoch, c.log()
	var previous string
	if c.selected >= 0 {
		previous = c.tables[c.selected].Name
	}
	c.mu.RUnlock()

	dbs, err := gw.ListDatabases(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return nil
	}

	var loadErr *SchemaLoadError
	switch {
	case err != nil:
		loadErr = &SchemaLoadError{Reason: "listing databases", Err: err}
	case len(dbs) == 0:
		loadErr = &SchemaLoadError{Reason: "no database found"}
	case len(dbs[0].Tables) == 0:
		loadErr = &SchemaLoadError{Reason: fmt.Sprintf("database %q has no tables", dbs[0].Name)}
	}
	if loadErr != nil {
		c.state = Failed
		c.err = loadErr
		c.tables = nil
		c.views = nil
		c.selected = -1
		logger.Error("schema load failed", "error", loadErr)
		return loadErr
	}

	db := dbs[0]
	tables := make([]TableDescriptor, len(db.Tables))
	for i, t := range db.Tables {
		tables[i] = TableDescriptor{Name: t.Name, Columns: t.Columns, PrimaryKey: t.PrimaryKey}
	}

	selected := 0
	if previous != "" {
		for i, t := range tables {
			if t.Name == previous {
				selected = i
				break
			}
		}
	}

	c.dbName = db.Name
	c.tables = tables
	c.views = db.Views
	c.selected = selected
	logger.Info("schema loaded", "database", db.Name, "tables", len(tables), "views", len(db.Views), "selected", tables[selected].Name)
	return nil
}

// SelectTable makes name the active table. Names outside the known tables
// are rejected with *UnknownTableError and the selection is unchanged.
func (c *Controller) SelectTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, t := range c.tables {
		if t.Name == name {
			c.selected = i
			return nil
		}
	}
	return &UnknownTableError{Table: name}
}

// Selected returns the active table.
func (c *Controller) Selected() (TableDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.selected < 0 {
		return TableDescriptor{}, false
	}
	return c.tables[c.selected], true
}

// RefreshVersionInfo fetches the engine version for display. Failures are
// logged and the previous value is kept.
func (c *Controller) RefreshVersionInfo(ctx context.Context) string {
	c.mu.RLock()
	gw, epoch, state, prev, logger := c.gateway, c.epoch, c.state, c.version, c.log()
	c.mu.RUnlock()

	if state != Connected {
		return prev
	}

	v, err := gw.Version(ctx)
	if err != nil {
		logger.Warn("version lookup failed", "error", err)
		return prev
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch == c.epoch {
		c.version = v
	}
	return v
}

// gatewayIfConnected returns the live gateway or ErrNotConnected.
func (c *Controller) gatewayIfConnected() (Gateway, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != Connected {
		return nil, ErrNotConnected
	}
	return c.gateway, nil
}

// ExecuteQuery runs one statement on the session's connection.
func (c *Controller) ExecuteQuery(ctx context.Context, query string) (*database.QueryResult, error) {
	gw, err := c.gatewayIfConnected()
	if err != nil {
		return nil, err
	}
	return gw.ExecuteQuery(ctx, query)
}

// TableColumns looks up the columns of a table.
func (c *Controller) TableColumns(ctx context.Context, name string) ([]database.ColumnInfo, error) {
	gw, err := c.gatewayIfConnected()
	if err != nil {
		return nil, err
	}
	return gw.ListTableColumns(ctx, name)
}

// TableStructure is everything the structure view shows for one table.
type TableStructure struct {
	Name         string
	Columns      []database.ColumnInfo
	Indexes      []database.IndexInfo
	ForeignKeys  []database.ForeignKeyInfo
	ReferencedBy []Reference
	RowCount     int64
}

// Reference is a foreign key in another table that points at this one.
type Reference struct {
	Table    string
	From     string
	To       string
	OnDelete string
}

// Structure loads columns, indexes, foreign keys and row count of a table,
// and the foreign keys of other tables that reference it.
func (c *Controller) Structure(ctx context.Context, name string) (*TableStructure, error) {
	gw, err := c.gatewayIfConnected()
	if err != nil {
		return nil, err
	}

	st := &TableStructure{Name: name}
	if st.Columns, err = c.TableColumns(ctx, name); err != nil {
		return nil, err
	}
	if st.Indexes, err = gw.ListIndexes(ctx, name); err != nil {
		return nil, err
	}
	if st.ForeignKeys, err = gw.ListForeignKeys(ctx, name); err != nil {
		return nil, err
	}
	if st.ReferencedBy, err = c.referencesTo(ctx, gw, name); err != nil {
		return nil, err
	}
	if st.RowCount, err = c.RowCount(ctx, name); err != nil {
		return nil, err
	}
	return st, nil
}

// referencesTo scans the foreign keys of every known table for ones that
// target name. Self references are included.
func (c *Controller) referencesTo(ctx context.Context, gw Gateway, name string) ([]Reference, error) {
	c.mu.RLock()
	tables := c.tables
	c.mu.RUnlock()

	var refs []Reference
	for _, t := range tables {
		fks, err := gw.ListForeignKeys(ctx, t.Name)
		if err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", t.Name, err)
		}
		for _, fk := range fks {
			if strings.EqualFold(fk.Table, name) {
				refs = append(refs, Reference{Table: t.Name, From: fk.From, To: fk.To, OnDelete: fk.OnDelete})
			}
		}
	}
	return refs, nil
}

// RowCount returns the number of rows of a table.
func (c *Controller) RowCount(ctx context.Context, name string) (int64, error) {
	gw, err := c.gatewayIfConnected()
	if err != nil {
		return 0, err
	}
	return gw.RowCount(ctx, name)
}

// Dialect returns the dialect of the session's gateway.
func (c *Controller) Dialect() database.Dialect {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gateway.Dialect()
}

// Path returns the current database path.
func (c *Controller) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Open connects and loads the schema in one step.
func (c *Controller) Open(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.LoadSchema(ctx)
}

// Reopen tears down the current session and starts a new one on path.
// Completions still in flight for the old session are discarded.
func (c *Controller) Reopen(ctx context.Context, path string) error {
	c.mu.Lock()
	old := c.gateway
	oldPath := c.path
	c.reset(path)
	logger := c.log()
	c.mu.Unlock()

	if err := old.Close(); err != nil {
		logger.Warn("closing previous database failed", "previous", oldPath, "error", err)
	}
	logger.Info("reopening session", "previous", oldPath)

	return c.Open(ctx)
}

// Close closes the gateway. The session can be reconnected with Connect.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Disconnected
	c.err = nil
	return c.gateway.Close()
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		ID:           c.id,
		Path:         c.path,
		DatabaseName: c.dbName,
		Dialect:      c.gateway.Dialect().DisplayName(),
		Version:      c.version,
		State:        c.state,
		Err:          c.err,
		Tables:       append([]TableDescriptor(nil), c.tables...),
		Views:        append([]string(nil), c.views...),
	}
	if c.selected >= 0 {
		sel := c.tables[c.selected]
		s.Selected = &sel
	}
	return s
}
