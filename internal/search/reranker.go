package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

// RerankResult represents a single reranked result
type RerankResult struct {
	// Index is the original position in the input documents slice
	Index int
	// Score is the relevance score (0.0 to 1.0)
	Score float64
	// Document is the original document content
	Document string
}

// Reranker reorders candidate documents by relevance to a query using a
// signal more expensive than the composite score.
type Reranker interface {
	// Rerank scores and reorders documents by relevance to the query.
	// Returns results sorted by score descending. topK of 0 returns all.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available checks if the reranker is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// NoOpReranker is a reranker that returns results in original order.
// Used when reranking is disabled or unavailable.
type NoOpReranker struct{}

// Rerank returns documents in original order with decreasing scores.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{
			Index:    i,
			Score:    1.0 - float64(i)*0.01,
			Document: doc,
		}
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// Available always returns true for NoOpReranker.
func (n *NoOpReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op for NoOpReranker.
func (n *NoOpReranker) Close() error {
	return nil
}

// Verify interface implementation at compile time
var _ Reranker = (*NoOpReranker)(nil)

// RerankOutcome records what the rerank stage did.
type RerankOutcome string

const (
	RerankSkipped  RerankOutcome = "skipped"
	RerankApplied  RerankOutcome = "applied"
	RerankFallback RerankOutcome = "fallback"
)

// maxRerankDocLen bounds the text sent per candidate.
const maxRerankDocLen = 1200

// RerankDocument is the text a reranker sees for a candidate.
func RerankDocument(c *Candidate) string {
	e := c.Entry
	parts := []string{e.Title}
	if e.CanonicalCitation != "" {
		parts = append(parts, e.CanonicalCitation)
	}
	if e.Summary != "" {
		parts = append(parts, e.Summary)
	} else if e.BodyText != "" {
		parts = append(parts, e.BodyText)
	}
	doc := strings.Join(parts, "\n")
	if len(doc) > maxRerankDocLen {
		n := maxRerankDocLen
		for n > 0 && !utf8.RuneStart(doc[n]) {
			n--
		}
		doc = doc[:n]
	}
	return doc
}

// RerankStage is the optional second pass over the composite order.
type RerankStage struct {
	reranker Reranker
	cfg      RerankConfig
	logger   *slog.Logger
}

// NewRerankStage creates a stage. A nil reranker disables it.
func NewRerankStage(r Reranker, cfg RerankConfig, logger *slog.Logger) *RerankStage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultRerankConfig().TopN
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRerankConfig().Timeout
	}
	return &RerankStage{reranker: r, cfg: cfg, logger: logger}
}

// ShouldSkip reports why reranking is unnecessary, or "" when it should run.
func (s *RerankStage) ShouldSkip(cands []*Candidate, d Decision) string {
	switch {
	case s == nil || s.reranker == nil:
		return "disabled"
	case len(cands) < 2:
		return "too few candidates"
	case d.SkipRerank:
		return "high confidence"
	}
	for _, c := range cands {
		if c.ExactCitation || c.DirectMatch {
			return "exact citation"
		}
		if c.ArticleMatch {
			return "article match"
		}
	}
	return ""
}

// Apply reranks the top N candidates. The returned slice always holds every
// input candidate: on any failure the composite order is kept, and
// candidates past the top N follow the reranked head in their old order.
func (s *RerankStage) Apply(ctx context.Context, query string, cands []*Candidate, d Decision) ([]*Candidate, RerankOutcome) {
	if reason := s.ShouldSkip(cands, d); reason != "" {
		s.logger.Debug("rerank skipped", slog.String("reason", reason))
		return cands, RerankSkipped
	}

	n := min(s.cfg.TopN, len(cands))
	head := cands[:n]
	docs := make([]string, n)
	for i, c := range head {
		docs[i] = RerankDocument(c)
	}

	start := time.Now()
	results, err := s.call(ctx, query, docs)
	if err == nil {
		err = validateRerank(results, n)
	}
	if err != nil {
		s.logger.Warn("rerank failed, keeping composite order",
			slog.Any("error", amanerrors.New(amanerrors.ErrCodeRerankFailed, "rerank failed", err).
				WithDetail("candidates", strconv.Itoa(n))),
			slog.Duration("elapsed", time.Since(start)))
		return cands, RerankFallback
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	out := make([]*Candidate, 0, len(cands))
	for _, r := range results {
		out = append(out, head[r.Index])
	}
	out = append(out, cands[n:]...)

	s.logger.Debug("rerank applied",
		slog.Int("candidates", n),
		slog.Duration("elapsed", time.Since(start)))
	return out, RerankApplied
}

// call runs the reranker under the stage timeout. A reranker that ignores
// its context is abandoned when the timeout fires; a panic is an error.
func (s *RerankStage) call(ctx context.Context, query string, docs []string) ([]RerankResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	type reply struct {
		results []RerankResult
		err     error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("reranker panic: %v", r)}
			}
		}()
		res, err := s.reranker.Rerank(ctx, query, docs, 0)
		done <- reply{results: res, err: err}
	}()

	select {
	case r := <-done:
		return r.results, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("rerank: %w", ctx.Err())
	}
}

// validateRerank accepts only a full permutation of 0..n-1.
func validateRerank(results []RerankResult, n int) error {
	if len(results) == 0 {
		return fmt.Errorf("reranker returned no results")
	}
	if len(results) != n {
		return fmt.Errorf("reranker returned %d of %d results", len(results), n)
	}
	seen := make([]bool, n)
	for _, r := range results {
		if r.Index < 0 || r.Index >= n {
			return fmt.Errorf("reranker returned index %d out of range", r.Index)
		}
		if seen[r.Index] {
			return fmt.Errorf("reranker returned index %d twice", r.Index)
		}
		seen[r.Index] = true
	}
	return nil
}

// truncateQuery truncates a query for logging purposes.
func truncateQuery(q string, maxLen int) string {
	if len(q) <= maxLen {
		return q
	}
	return q[:maxLen] + "..."
}
