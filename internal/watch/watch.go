// Package watch re-runs the contract sweep when checker files change.
// Events are debounced so a burst of editor writes produces one run.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/modelcheck/bimcheck/internal/discovery"
	"github.com/modelcheck/bimcheck/internal/logger"
)

// DefaultDebounce is how long the watcher waits for further changes
// before emitting a batch.
const DefaultDebounce = 300 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Discovery identifies the checkers directory and which file names
	// are worth reacting to.
	Discovery discovery.Options
	// Debounce overrides DefaultDebounce.
	Debounce time.Duration
	// Logger receives watcher diagnostics. Nil disables them.
	Logger *logger.Logger
}

// Change is one debounced batch of file events.
type Change struct {
	// Paths lists the files that changed, sorted.
	Paths []string
}

// Watcher emits a Change whenever checker files are created, modified,
// removed, or renamed in the checkers directory.
type Watcher struct {
	opts    Options
	watcher *fsnotify.Watcher
	log     *logger.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	changes chan Change
}

// New creates a watcher for the checkers directory named in opts. The
// directory must exist; creating it while watching is not supported.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		opts:    opts,
		watcher: fsw,
		log:     opts.Logger.WithComponent("watch"),
		pending: make(map[string]fsnotify.Op),
		changes: make(chan Change, 16),
	}, nil
}

// Changes returns the channel of debounced batches. It is closed when
// the watcher stops.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start begins watching. The processing loop runs until ctx is done or
// Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.opts.Discovery.Dir); err != nil {
		return err
	}
	go w.loop(ctx)
	w.log.WithFields(map[string]any{
		"dir":      w.opts.Discovery.Dir,
		"debounce": w.opts.Debounce.String(),
	}).Info("watching checker files")
	return nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.changes)

	ticker := time.NewTicker(w.opts.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error(err, "watch error")

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// relevant reports whether a change to path can alter the sweep outcome.
// That covers checker files, the template, and misnamed Starlark files,
// since all three feed discovery.
func (w *Watcher) relevant(path string) bool {
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(name), ".star") {
		return true
	}
	return discovery.IsCheckerFile(path, w.opts.Discovery)
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.relevant(event.Name) {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] |= event.Op
	w.pendingMu.Unlock()

	w.log.WithFields(map[string]any{
		"path": event.Name,
		"op":   event.Op.String(),
	}).Debug("file change detected")
}

// flush drains pending events into one Change. A file that appeared
// during the window and is already gone again was an editor temp file;
// it cancels out.
func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	pending := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	paths := make([]string, 0, len(pending))
	for path, op := range pending {
		if op.Has(fsnotify.Create) {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				continue
			}
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	select {
	case w.changes <- Change{Paths: paths}:
	case <-ctx.Done():
	}
}
