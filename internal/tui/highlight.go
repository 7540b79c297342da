package tui

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// highlightSQL colors sql for a 256 color terminal. The input is returned
// unchanged when highlighting fails.
func highlightSQL(sql string) string {
	if strings.TrimSpace(sql) == "" {
		return sql
	}
	var b strings.Builder
	if err := quick.Highlight(&b, sql, "sql", "terminal256", "monokai"); err != nil {
		return sql
	}
	return strings.TrimRight(b.String(), "\n")
}
