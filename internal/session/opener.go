package session

import (
	"log/slog"

	"github.com/johan-st/sqlbrowse/internal/database"
)

// DatabaseOpener returns an Opener backed by database.Gateway. An empty
// driver in opts is picked per path from the file extension.
func DatabaseOpener(opts database.OpenOptions, logger *slog.Logger) Opener {
	return func(path string) Gateway {
		o := opts
		if o.Driver == "" {
			o.Driver = database.DriverForPath(path)
		}
		return database.NewGateway(path, o, logger)
	}
}
