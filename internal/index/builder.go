// Package index builds the lexical and vector indexes from a corpus and
// rebuilds them when the corpus file changes.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/embed"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/store"
)

// DefaultBatchSize is the number of entries embedded per request.
const DefaultBatchSize = 32

// Stage names a build phase for progress reporting.
type Stage string

const (
	StageLexical   Stage = "lexical"
	StageEmbedding Stage = "embedding"
	StageVector    Stage = "vector"
)

// Progress is reported after each unit of work.
type Progress struct {
	Stage   Stage
	Current int
	Total   int
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	// BatchSize is the embedding batch size (default 32).
	BatchSize int

	// InterBatchDelay pauses between embedding batches, for rate-limited
	// providers.
	InterBatchDelay time.Duration

	// OnProgress is called synchronously; nil disables reporting.
	OnProgress func(Progress)
}

// BuildResult summarizes a build.
type BuildResult struct {
	Entries     int
	LexicalDocs int
	// Precomputed counts entries indexed with the embedding from the
	// corpus file.
	Precomputed int
	// Embedded counts entries embedded during the build.
	Embedded int
	// Skipped counts entries left out of the vector index.
	Skipped  int
	Warnings []string
	Duration time.Duration
}

// Vectors returns the number of vectors added.
func (r *BuildResult) Vectors() int {
	return r.Precomputed + r.Embedded
}

// Builder populates the indexes. Every dependency is optional: a nil
// lexical index skips lexical indexing, and a nil vector index skips
// vectors. A nil embedder indexes only precomputed embeddings.
type Builder struct {
	lexical  store.LexicalIndex
	vector   store.VectorIndex
	embedder embed.Embedder
	cfg      BuilderConfig
	logger   *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(lexical store.LexicalIndex, vector store.VectorIndex, embedder embed.Embedder, cfg BuilderConfig, logger *slog.Logger) *Builder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{lexical: lexical, vector: vector, embedder: embedder, cfg: cfg, logger: logger}
}

// Build indexes every entry of c. Lexical failures and cancellation are
// errors. Embedding failures only leave entries out of the vector index and
// are reported as warnings, since search still works without them.
func (b *Builder) Build(ctx context.Context, c *corpus.Corpus) (*BuildResult, error) {
	start := time.Now()
	entries := c.All()
	res := &BuildResult{Entries: len(entries)}

	if b.lexical != nil {
		docs := make([]store.Document, len(entries))
		for i, e := range entries {
			docs[i] = store.DocumentFromEntry(e)
		}
		if err := b.lexical.Index(ctx, docs); err != nil {
			return nil, amanerrors.Wrap(amanerrors.ErrCodeIndexFailed, err)
		}
		res.LexicalDocs = len(docs)
		b.progress(StageLexical, len(docs), len(docs))
	}

	if b.vector != nil {
		if err := b.buildVectors(ctx, entries, res); err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	b.logger.Info("index built",
		slog.Int("entries", res.Entries),
		slog.Int("lexical_docs", res.LexicalDocs),
		slog.Int("precomputed", res.Precomputed),
		slog.Int("embedded", res.Embedded),
		slog.Int("skipped", res.Skipped),
		slog.Duration("duration", res.Duration))
	return res, nil
}

func (b *Builder) buildVectors(ctx context.Context, entries []*corpus.Entry, res *BuildResult) error {
	dims := 0
	if b.embedder != nil {
		dims = b.embedder.Dimensions()
	}

	var (
		preIDs  []string
		preVecs [][]float32
		pending []*corpus.Entry
	)
	for _, e := range entries {
		switch {
		case len(e.Embedding) > 0 && (dims == 0 || len(e.Embedding) == dims):
			if dims == 0 {
				dims = len(e.Embedding)
			}
			preIDs = append(preIDs, e.ID)
			preVecs = append(preVecs, e.Embedding)
		case b.embedder != nil:
			pending = append(pending, e)
		default:
			res.Skipped++
		}
	}

	if len(preIDs) > 0 {
		if err := b.vector.Add(ctx, preIDs, preVecs); err != nil {
			return amanerrors.Wrap(amanerrors.ErrCodeIndexFailed, err)
		}
		res.Precomputed = len(preIDs)
		b.progress(StageVector, len(preIDs), len(entries))
	}

	total := len(pending)
	for batchStart := 0; batchStart < total; batchStart += b.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("indexing interrupted at %d/%d entries: %w", res.Embedded, total, err)
		}

		batch := pending[batchStart:min(batchStart+b.cfg.BatchSize, total)]
		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = embed.EntryText(e.Title, e.CanonicalCitation, e.Summary, e.BodyText)
			ids[i] = e.ID
		}

		vecs, err := b.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(vecs) != len(batch) {
			err = fmt.Errorf("embedder returned %d of %d vectors", len(vecs), len(batch))
		}
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("indexing interrupted at %d/%d entries: %w", res.Embedded, total, ctx.Err())
			}
			msg := fmt.Sprintf("embedding batch %d-%d failed: %v", batchStart, batchStart+len(batch), err)
			b.logger.Warn("embedding batch failed",
				slog.Int("batch_start", batchStart),
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()))
			res.Warnings = append(res.Warnings, msg)
			res.Skipped += len(batch)
			continue
		}

		if err := b.vector.Add(ctx, ids, vecs); err != nil {
			return amanerrors.Wrap(amanerrors.ErrCodeIndexFailed, err)
		}
		res.Embedded += len(batch)
		b.progress(StageEmbedding, res.Embedded, total)

		if b.cfg.InterBatchDelay > 0 && batchStart+b.cfg.BatchSize < total {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.cfg.InterBatchDelay):
			}
		}
	}
	return nil
}

func (b *Builder) progress(stage Stage, current, total int) {
	if b.cfg.OnProgress != nil {
		b.cfg.OnProgress(Progress{Stage: stage, Current: current, Total: total})
	}
}
