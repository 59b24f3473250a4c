package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/watcher"
)

// CorpusSwapper receives freshly loaded corpora. *search.Engine implements it.
type CorpusSwapper interface {
	SetCorpus(c *corpus.Corpus)
}

// ReloaderConfig configures a Reloader.
type ReloaderConfig struct {
	// Path is the corpus JSON file.
	Path string

	// Target receives each successfully loaded corpus.
	Target CorpusSwapper

	// Builder reindexes the new corpus before it is swapped in (optional).
	Builder *Builder

	Logger *slog.Logger
}

// Reloader reloads the corpus on file changes. A corpus that fails to load
// or index never replaces the one being served.
type Reloader struct {
	cfg ReloaderConfig
	mu  sync.Mutex

	reloads  int
	failures int
	last     time.Time
}

// NewReloader creates a reloader.
func NewReloader(cfg ReloaderConfig) *Reloader {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reloader{cfg: cfg}
}

// Reload loads, indexes and swaps in the corpus file.
func (r *Reloader) Reload(ctx context.Context) (*corpus.Corpus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	c, err := corpus.LoadFile(r.cfg.Path)
	if err == nil && r.cfg.Builder != nil {
		_, err = r.cfg.Builder.Build(ctx, c)
	}
	if err != nil {
		r.failures++
		r.cfg.Logger.Warn("corpus reload failed, keeping current corpus",
			slog.String("path", r.cfg.Path),
			slog.String("error", err.Error()))
		return nil, err
	}

	r.cfg.Target.SetCorpus(c)
	r.reloads++
	r.last = time.Now()
	r.cfg.Logger.Info("corpus reloaded",
		slog.String("path", r.cfg.Path),
		slog.Int("entries", c.Len()),
		slog.Duration("elapsed", time.Since(start)))
	return c, nil
}

// HandleEvents reacts to one debounced batch. A batch that only deletes
// the file keeps the current corpus.
func (r *Reloader) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	if len(events) == 0 {
		return nil
	}
	deletedOnly := true
	for _, e := range events {
		if e.Operation != watcher.OpDelete {
			deletedOnly = false
			break
		}
	}
	if deletedOnly {
		r.cfg.Logger.Warn("corpus file removed, keeping current corpus", slog.String("path", r.cfg.Path))
		return nil
	}
	_, err := r.Reload(ctx)
	return err
}

// Watch consumes w until its channels close or ctx is done. Reload errors
// are logged, not returned.
func (r *Reloader) Watch(ctx context.Context, w *watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			_ = r.HandleEvents(ctx, batch)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			r.cfg.Logger.Warn("corpus watcher error", slog.String("error", err.Error()))
		}
	}
}

// Stats returns the reload and failure counts and the last reload time.
func (r *Reloader) Stats() (reloads, failures int, last time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads, r.failures, r.last
}
