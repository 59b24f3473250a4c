package eval

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Aman-CERP/amanlex/internal/search"
)

// NDCGDepth is the cutoff for the reported nDCG.
const NDCGDepth = 10

// Ranker is the pipeline under evaluation. *search.Engine implements it.
type Ranker interface {
	Search(ctx context.Context, q search.Query) (*search.Response, error)
}

// Result is the aggregate of an evaluation run.
type Result struct {
	Total  int     `json:"total"`
	P1     float64 `json:"p1"`
	P3     float64 `json:"p3"`
	NDCG10 float64 `json:"ndcg10"`

	Queries  []QueryResult `json:"-"`
	Duration time.Duration `json:"-"`
}

// QueryResult is the score of one labeled gold record.
type QueryResult struct {
	Query  string
	Ranked []string
	P1     float64
	P3     float64
	NDCG10 float64
}

// Harness runs gold queries through a Ranker on a bounded worker pool.
type Harness struct {
	ranker  Ranker
	workers int
	logger  *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithWorkers sets the pool size. The default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// NewHarness creates a Harness.
func NewHarness(r Ranker, opts ...Option) *Harness {
	h := &Harness{ranker: r, workers: runtime.NumCPU(), logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// rankAll runs every record and returns the ranked ids in record order.
func (h *Harness) rankAll(ctx context.Context, gold []GoldRecord, limit int) ([][]string, error) {
	pool, err := ants.NewPool(min(h.workers, max(len(gold), 1)))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ranked := make([][]string, len(gold))
	errs := make([]error, len(gold))
	var wg sync.WaitGroup

	for i, rec := range gold {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			resp, err := h.ranker.Search(ctx, search.Query{Text: rec.Query, Filters: rec.filters(), Limit: limit})
			if err != nil {
				errs[i] = fmt.Errorf("gold query %q: %w", rec.Query, err)
				return
			}
			ranked[i] = resp.IDs()
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit gold query: %w", err)
			break
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return ranked, nil
}

// Evaluate computes mean p@1, p@3 and nDCG@10 over the labeled records.
// Unlabeled records are not run.
func (h *Harness) Evaluate(ctx context.Context, gold []GoldRecord) (*Result, error) {
	start := time.Now()
	labeled := make([]GoldRecord, 0, len(gold))
	for _, g := range gold {
		if g.Labeled() {
			labeled = append(labeled, g)
		}
	}

	res := &Result{Total: len(labeled)}
	if len(labeled) == 0 {
		return res, nil
	}

	ranked, err := h.rankAll(ctx, labeled, NDCGDepth)
	if err != nil {
		return nil, err
	}

	res.Queries = make([]QueryResult, len(labeled))
	for i, g := range labeled {
		q := QueryResult{
			Query:  g.Query,
			Ranked: ranked[i],
			P1:     PrecisionAt(ranked[i], g.IdealTop, 1),
			P3:     PrecisionAt(ranked[i], g.IdealTop, 3),
			NDCG10: NDCGAt(ranked[i], g.IdealTop, NDCGDepth),
		}
		res.Queries[i] = q
		res.P1 += q.P1
		res.P3 += q.P3
		res.NDCG10 += q.NDCG10
	}
	n := float64(len(labeled))
	res.P1 /= n
	res.P3 /= n
	res.NDCG10 /= n
	res.Duration = time.Since(start)

	h.logger.Info("evaluation complete",
		slog.Int("total", res.Total),
		slog.Float64("p1", res.P1),
		slog.Float64("p3", res.P3),
		slog.Float64("ndcg10", res.NDCG10),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// Bootstrap fills IdealTop with the pipeline's own top results for records
// that have none. Curated records are returned unchanged. It returns the
// updated records and how many were filled.
func (h *Harness) Bootstrap(ctx context.Context, gold []GoldRecord, top int) ([]GoldRecord, int, error) {
	if top <= 0 {
		top = 3
	}
	out := make([]GoldRecord, len(gold))
	copy(out, gold)

	var pending []int
	var queries []GoldRecord
	for i, g := range out {
		if !g.Labeled() {
			pending = append(pending, i)
			queries = append(queries, g)
		}
	}
	if len(pending) == 0 {
		return out, 0, nil
	}

	ranked, err := h.rankAll(ctx, queries, top)
	if err != nil {
		return nil, 0, err
	}

	filled := 0
	for j, i := range pending {
		ids := ranked[j]
		if len(ids) > top {
			ids = ids[:top]
		}
		if len(ids) == 0 {
			h.logger.Warn("bootstrap found no results", slog.String("query", out[i].Query))
			continue
		}
		out[i].IdealTop = append([]string(nil), ids...)
		filled++
	}
	return out, filled, nil
}

// Miss describes where a labeled query fell short in its top k.
type Miss struct {
	Query         string   `json:"query"`
	Missing       []string `json:"missing"`
	RankedInstead []string `json:"ranked_instead"`
}

// Misses reports, for each labeled record, the ideal ids absent from the
// top k and the ids that ranked there instead. Records with no missing ids
// are left out.
func (h *Harness) Misses(ctx context.Context, gold []GoldRecord, k int) ([]Miss, error) {
	if k <= 0 {
		k = NDCGDepth
	}
	var labeled []GoldRecord
	for _, g := range gold {
		if g.Labeled() {
			labeled = append(labeled, g)
		}
	}
	if len(labeled) == 0 {
		return nil, nil
	}

	ranked, err := h.rankAll(ctx, labeled, k)
	if err != nil {
		return nil, err
	}

	var misses []Miss
	for i, g := range labeled {
		topK := ranked[i]
		if len(topK) > k {
			topK = topK[:k]
		}
		got := toSet(topK)
		want := toSet(g.IdealTop)

		m := Miss{Query: g.Query, Missing: []string{}, RankedInstead: []string{}}
		for _, id := range g.IdealTop {
			if !got[id] {
				m.Missing = append(m.Missing, id)
			}
		}
		if len(m.Missing) == 0 {
			continue
		}
		for _, id := range topK {
			if !want[id] {
				m.RankedInstead = append(m.RankedInstead, id)
			}
		}
		misses = append(misses, m)
	}
	return misses, nil
}
