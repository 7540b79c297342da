package tui

import (
	"github.com/johan-st/sqlbrowse/internal/session"
)

// Messages for async operations

// OpenDatabaseMsg asks the App to replace its session with one on Path.
type OpenDatabaseMsg struct {
	Path string
}

// SessionOpenedMsg is sent when connecting and loading the schema finished.
type SessionOpenedMsg struct {
	Path  string
	Error error
}

// SchemaLoadedMsg is sent when a schema refresh finished.
type SchemaLoadedMsg struct {
	Error error
}

// StructureLoadedMsg is sent when the structure of a table is loaded.
type StructureLoadedMsg struct {
	Table     string
	Structure *session.TableStructure
	Error     error
}

// VersionMsg carries the engine version for the header.
type VersionMsg struct {
	Version string
}

// FileChangedMsg is sent when the database file changed on disk.
type FileChangedMsg struct {
	Path string
}

// NoticeMsg is a transient status bar message.
type NoticeMsg struct {
	Text  string
	Error error
}
