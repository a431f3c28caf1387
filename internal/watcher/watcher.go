// Package watcher keeps the indexes in sync with a documentation directory
// by reacting to filesystem events.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is the kind of change observed on a file.
type Operation int

const (
	// OpCreate is a new file.
	OpCreate Operation = iota
	// OpModify is a change to an existing file.
	OpModify
	// OpDelete is a removed (or renamed-away) file.
	OpDelete
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change.
type FileEvent struct {
	// Path is the file path as reported by the OS.
	Path string

	// Operation is the change kind.
	Operation Operation

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// watchedExtensions are the document types worth reacting to.
var watchedExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".rst":  true,
	".html": true,
}

// Watcher watches a directory tree with fsnotify and emits debounced
// batches of document events.
type Watcher struct {
	debouncer *Debouncer
	logger    *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stopped bool
}

// New creates a watcher emitting batches after the debounce window
// (default: 500ms).
func New(debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		debouncer: NewDebouncer(debounce),
		logger:    logger,
	}
}

// Start watches dir recursively until ctx is cancelled or Stop is called.
// It returns after the watch is established; events flow on Batches.
func (w *Watcher) Start(ctx context.Context, dir string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Register the tree up front; new subdirectories are added as their
	// create events arrive.
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return err
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	go w.loop(ctx, fsw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) {
	// New directories extend the watch; their files arrive as events.
	if event.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if !strings.HasPrefix(filepath.Base(event.Name), ".") {
				if err := fsw.Add(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory",
						slog.String("path", event.Name),
						slog.String("error", err.Error()))
				}
			}
			return
		}
	}

	if !watchedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	var op Operation
	switch {
	case event.Op.Has(fsnotify.Create):
		op = OpCreate
	case event.Op.Has(fsnotify.Write):
		op = OpModify
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// Batches returns the channel of debounced event batches.
func (w *Watcher) Batches() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Stop releases the OS watch and closes the batch channel. Safe to call
// multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true

	var err error
	if w.fsw != nil {
		err = w.fsw.Close()
	}
	w.debouncer.Stop()
	return err
}
