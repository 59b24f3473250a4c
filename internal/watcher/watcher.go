package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is a file system change kind.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change to a watched file.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is how long writes are coalesced. Default: 500ms.
	DebounceWindow time.Duration

	// PollInterval is used when fsnotify is unavailable. Default: 5s.
	PollInterval time.Duration

	// EventBufferSize is the batch channel capacity. Default: 16.
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// Watcher reports debounced changes to one file.
type Watcher struct {
	path      string
	opts      Options
	fsWatcher *fsnotify.Watcher
	poller    *PollingWatcher
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}

	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// New creates a watcher for path. The file does not have to exist yet, but
// its directory does.
func New(path string, opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	if info, err := os.Stat(filepath.Dir(abs)); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("corpus directory %s is not accessible", filepath.Dir(abs))
	}

	w := &Watcher{
		path:      abs,
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		if fsw, err := fsnotify.NewWatcher(); err == nil {
			if err := fsw.Add(filepath.Dir(abs)); err == nil {
				w.fsWatcher = fsw
			} else {
				_ = fsw.Close()
				slog.Warn("fsnotify unavailable, polling corpus file",
					slog.String("path", abs),
					slog.String("error", err.Error()))
			}
		}
	}
	if w.fsWatcher == nil {
		w.poller = NewPollingWatcher(abs, opts.PollInterval)
	}
	return w, nil
}

// Run forwards changes until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	go w.forward(ctx)

	if w.fsWatcher == nil {
		return w.runPolling(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) runPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.poller.Events():
				if !ok {
					return
				}
				w.debouncer.Add(event)
			case err, ok := <-w.poller.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()
	return w.poller.Start(ctx)
}

// handle keeps only events for the watched file.
func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}
	w.debouncer.Add(FileEvent{Path: w.path, Operation: op, Timestamp: time.Now()})
}

func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *Watcher) emit(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped || len(batch) == 0 {
		return
	}

	select {
	case w.events <- batch:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop releases the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()

	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.poller != nil {
		_ = w.poller.Stop()
	}
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns debounced batches of changes.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// WatcherType returns "fsnotify" or "polling".
func (w *Watcher) WatcherType() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}

// DroppedBatches returns the number of batches dropped on a full buffer.
func (w *Watcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}
