package search

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanlex/internal/embed"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/store"
)

// Embedding circuit defaults.
const (
	DefaultEmbedMaxFailures  = 5
	DefaultEmbedResetTimeout = 30 * time.Second
)

// VectorResult is the merged output of both vector lookups.
type VectorResult struct {
	// Hits are sorted by similarity descending, then id.
	Hits    []store.VectorHit
	BestSim float64
	// Degraded is set when no lookup succeeded.
	Degraded bool
}

// VectorFusor runs the normalized and raw query embeddings and their
// nearest-neighbour lookups concurrently and merges the results.
type VectorFusor struct {
	embedder embed.Embedder
	index    store.VectorIndex
	breaker  *amanerrors.CircuitBreaker
	logger   *slog.Logger
}

// NewVectorFusor creates a fusor. A nil embedder or index disables the
// vector channel.
func NewVectorFusor(embedder embed.Embedder, index store.VectorIndex, logger *slog.Logger) *VectorFusor {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorFusor{
		embedder: embedder,
		index:    index,
		breaker: amanerrors.NewCircuitBreaker("embedding",
			amanerrors.WithMaxFailures(DefaultEmbedMaxFailures),
			amanerrors.WithResetTimeout(DefaultEmbedResetTimeout),
			amanerrors.WithStateChange(func(name string, from, to amanerrors.State) {
				logger.Warn("circuit_state_changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			})),
		logger: logger,
	}
}

// Enabled reports whether the channel has an embedder and an index.
func (f *VectorFusor) Enabled() bool {
	return f != nil && f.embedder != nil && f.index != nil
}

// Retrieve embeds normalized and raw query text, looks both up and merges
// hits by id keeping the higher similarity. keep, when non-nil, drops ids
// before the merge. The raw lookup is skipped when it equals normalized.
// Failures degrade the channel; Retrieve itself never fails.
func (f *VectorFusor) Retrieve(ctx context.Context, normalized, raw string, k int, keep func(id string) bool) VectorResult {
	if !f.Enabled() || k <= 0 {
		return VectorResult{}
	}

	texts := []string{normalized}
	if raw != "" && raw != normalized {
		texts = append(texts, raw)
	}

	var (
		mu        sync.Mutex
		best      = make(map[string]float64)
		succeeded int
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		variant := "normalized"
		if i == 1 {
			variant = "raw"
		}
		g.Go(func() error {
			hits, err := f.lookup(gctx, text, k)
			if err != nil {
				f.logger.Warn("vector lookup failed",
					slog.String("variant", variant),
					slog.Any("error", err))
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			succeeded++
			for _, h := range hits {
				if keep != nil && !keep(h.ID) {
					continue
				}
				if cur, ok := best[h.ID]; !ok || h.Similarity > cur {
					best[h.ID] = h.Similarity
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	res := VectorResult{Degraded: succeeded == 0}
	for id, sim := range best {
		res.Hits = append(res.Hits, store.VectorHit{ID: id, Similarity: sim})
		res.BestSim = max(res.BestSim, sim)
	}
	sort.Slice(res.Hits, func(i, j int) bool {
		if res.Hits[i].Similarity != res.Hits[j].Similarity {
			return res.Hits[i].Similarity > res.Hits[j].Similarity
		}
		return res.Hits[i].ID < res.Hits[j].ID
	})
	return res
}

// lookup embeds text through the circuit breaker and searches the index.
func (f *VectorFusor) lookup(ctx context.Context, text string, k int) ([]store.VectorHit, error) {
	vec, err := amanerrors.Guard(f.breaker, func() ([]float32, error) {
		v, err := f.embedder.Embed(ctx, text)
		if err != nil {
			return nil, amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "query embedding failed", err)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}

	hits, err := f.index.Search(ctx, vec, k)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeVectorUnavailable, "vector search failed", err)
	}
	return hits, nil
}
