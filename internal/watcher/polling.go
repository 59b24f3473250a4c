package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// PollingWatcher detects changes to one file by comparing its modification
// time and size on every tick.
type PollingWatcher struct {
	path     string
	interval time.Duration
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}

	mu      sync.Mutex
	last    fileSnapshot
	stopped bool
}

type fileSnapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a poller for path.
func NewPollingWatcher(path string, interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		path:     path,
		interval: interval,
		events:   make(chan FileEvent, 16),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start polls until ctx is cancelled or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context) error {
	p.mu.Lock()
	p.last = p.stat()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.detectChange()
		}
	}
}

func (p *PollingWatcher) stat() fileSnapshot {
	info, err := os.Stat(p.path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.sendError(fmt.Errorf("stat %s: %w", p.path, err))
		}
		return fileSnapshot{}
	}
	return fileSnapshot{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func (p *PollingWatcher) detectChange() {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.stat()
	prev := p.last
	p.last = cur

	var op Operation
	switch {
	case !prev.exists && cur.exists:
		op = OpCreate
	case prev.exists && !cur.exists:
		op = OpDelete
	case cur.exists && (cur.modTime != prev.modTime || cur.size != prev.size):
		op = OpModify
	default:
		return
	}

	if p.stopped {
		return
	}
	select {
	case p.events <- FileEvent{Path: p.path, Operation: op, Timestamp: time.Now()}:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", p.path),
			slog.String("op", op.String()))
	}
}

// sendError must be called with mu held.
func (p *PollingWatcher) sendError(err error) {
	if p.stopped {
		return
	}
	select {
	case p.errors <- err:
	default:
	}
}

// Stop stops polling. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the change channel.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns non-fatal stat errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
