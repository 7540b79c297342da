// sqlbrowse is a terminal browser for SQLite and DuckDB database files.
package main

import (
	"os"

	"github.com/johan-st/sqlbrowse/internal/cli"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	os.Exit(cli.Execute(cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    buildDate,
	}))
}
