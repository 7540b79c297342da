package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IsDatabaseFile checks if a file name looks like a database file.
func IsDatabaseFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3", ".db3", ".duckdb", ".ddb":
		return true
	}
	return false
}

// ResolvePath turns a command line argument into one database file. The
// argument may be a file, a directory (first database file inside it) or a
// glob pattern (first match in lexical order).
func ResolvePath(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("no database path given")
	}

	if strings.ContainsAny(arg, "*?[{") {
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return "", fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if IsDatabaseFile(m) {
				return filepath.Abs(m)
			}
		}
		return "", fmt.Errorf("no database file matches %q", arg)
	}

	info, err := os.Stat(arg)
	if err != nil {
		return "", fmt.Errorf("cannot open %q: %w", arg, err)
	}

	if !info.IsDir() {
		return filepath.Abs(arg)
	}

	entries, err := os.ReadDir(arg)
	if err != nil {
		return "", fmt.Errorf("cannot read directory %q: %w", arg, err)
	}
	// ReadDir returns entries sorted by file name
	for _, e := range entries {
		if !e.IsDir() && IsDatabaseFile(e.Name()) {
			return filepath.Abs(filepath.Join(arg, e.Name()))
		}
	}
	return "", fmt.Errorf("no database file in directory %q", arg)
}
