package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces bursts of events per path. Within one window:
//   - CREATE then MODIFY stays CREATE
//   - CREATE then DELETE cancels out
//   - DELETE then CREATE becomes MODIFY (the file was replaced)
//   - anything else keeps the latest operation
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]FileEvent
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]FileEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add schedules event, merging it into any pending event for its path.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.pending[event.Path]; ok {
		merged, keep := coalesce(prev, event)
		if !keep {
			delete(d.pending, event.Path)
		} else {
			d.pending[event.Path] = merged
		}
	} else {
		d.pending[event.Path] = event
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(prev, next FileEvent) (FileEvent, bool) {
	switch {
	case prev.Operation == OpCreate && next.Operation == OpModify:
		prev.Timestamp = next.Timestamp
		return prev, true
	case prev.Operation == OpCreate && next.Operation == OpDelete:
		return FileEvent{}, false
	case prev.Operation == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return next, true
	default:
		return next, true
	}
}

// flush emits the pending events sorted by path.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, e)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	d.pending = make(map[string]FileEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debouncer output full, dropping batch", slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop cancels pending events and closes Output. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
