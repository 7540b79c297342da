package database

import (
	"errors"
	"strings"
)

// ErrNotConnected is returned by gateway calls made before Connect or after Close.
var ErrNotConnected = errors.New("database not connected")

// IsBusyError checks if an error is a SQLite busy or lock error.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "SQLITE_LOCKED")
}
