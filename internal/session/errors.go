package session

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by operations that need a live connection.
var ErrNotConnected = errors.New("session not connected")

// ConnectionError reports that the database could not be opened. The session
// is unusable until it reconnects.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SchemaLoadError reports an empty or unreadable schema. Table browsing is
// not possible while it stands.
type SchemaLoadError struct {
	Reason string
	Err    error
}

func (e *SchemaLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot load schema: %s: %v", e.Reason, e.Err)
	}
	return "cannot load schema: " + e.Reason
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// UnknownTableError rejects a selection outside the known tables.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q", e.Table)
}
