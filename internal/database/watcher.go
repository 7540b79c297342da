package database

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce collapses bursts of writes into one change signal.
const DefaultWatchDebounce = 100 * time.Millisecond

// FileWatcher reports changes to a database file (and its -wal/-journal
// companions) on a channel.
type FileWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan struct{}
	stop     chan struct{}
	logger   *slog.Logger
	once     sync.Once
}

// NewFileWatcher creates a watcher for the database file at path.
func NewFileWatcher(path string, debounce time.Duration, logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FileWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		watcher:  watcher,
		changes:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		logger:   logger.With("component", "watcher"),
	}, nil
}

// Changes delivers one value per settled burst of writes. Signals are
// coalesced when nobody is receiving.
func (w *FileWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Done is closed by Stop.
func (w *FileWatcher) Done() <-chan struct{} {
	return w.stop
}

// Start begins watching. The parent directory is watched so that SQLite's
// companion files are seen too.
func (w *FileWatcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.watch()
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (w *FileWatcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		w.watcher.Close()
	})
}

func (w *FileWatcher) relevant(name string) bool {
	name = filepath.Clean(name)
	return name == w.path || name == w.path+"-wal" || name == w.path+"-journal"
}

func (w *FileWatcher) watch() {
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(w.debounce, w.signal)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)

		case <-w.stop:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

func (w *FileWatcher) signal() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
