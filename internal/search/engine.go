// Package search is the hybrid retrieval and ranking engine for legal
// knowledge entries.
//
// A query is normalized and expanded once, then three channels run
// concurrently: the citation matcher, the lexical channel and the vector
// fusor. Their candidates are merged by entry id, scored by the composite
// ranker, judged by the confidence gate and optionally reranked.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xrash/smetrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/embed"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/normalize"
	"github.com/Aman-CERP/amanlex/internal/store"
	"github.com/Aman-CERP/amanlex/internal/telemetry"
)

var tracer = otel.Tracer("github.com/Aman-CERP/amanlex/internal/search")

// minSuggestionSimilarity is the Jaro-Winkler floor for a title suggestion.
const minSuggestionSimilarity = 0.7

// snapshot is one immutable corpus generation with its prepared entries.
type snapshot struct {
	corpus   *corpus.Corpus
	prepared map[string]*PreparedEntry
	// titles holds normalized titles in corpus order for suggestions.
	titles []string
}

// Engine runs the retrieval pipeline. It is safe for concurrent use; the
// corpus can be swapped with SetCorpus while requests are in flight.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	expander   *Expander
	classifier *Classifier
	scorer     *LexicalScorer
	matcher    *CitationMatcher
	ranker     *Ranker
	gate       *Gate
	rerank     *RerankStage

	lexIndex store.LexicalIndex
	vector   *VectorFusor

	embedder embed.Embedder
	vecIndex store.VectorIndex
	reranker Reranker

	metrics    *telemetry.QueryMetrics
	collectors *telemetry.Collectors

	snap atomic.Pointer[snapshot]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithExpander replaces the default variant expander.
func WithExpander(x *Expander) Option {
	return func(e *Engine) {
		if x != nil {
			e.expander = x
		}
	}
}

// WithLexicalIndex sets the lexical candidate index. Without one every
// entry is scored.
func WithLexicalIndex(idx store.LexicalIndex) Option {
	return func(e *Engine) {
		e.lexIndex = idx
	}
}

// WithVector enables the vector channel.
func WithVector(embedder embed.Embedder, idx store.VectorIndex) Option {
	return func(e *Engine) {
		e.embedder = embedder
		e.vecIndex = idx
	}
}

// WithReranker enables the rerank stage.
func WithReranker(r Reranker) Option {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithQueryMetrics records every search into m.
func WithQueryMetrics(m *telemetry.QueryMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithCollectors records prometheus metrics into c.
func WithCollectors(c *telemetry.Collectors) Option {
	return func(e *Engine) {
		e.collectors = c
	}
}

// New creates an engine over c.
func New(c *corpus.Corpus, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.expander == nil {
		e.expander = NewExpander()
	}

	e.classifier = NewClassifier(0)
	e.scorer = NewLexicalScorer(e.expander, cfg.Boosts.ExactCitationScore)
	e.matcher = NewCitationMatcher(cfg.Boosts)
	e.ranker = NewRanker(cfg)
	e.gate = NewGate(cfg.Gate)
	e.vector = NewVectorFusor(e.embedder, e.vecIndex, e.logger)
	if e.reranker != nil {
		e.rerank = NewRerankStage(e.reranker, cfg.Rerank, e.logger)
	}

	if c != nil {
		e.SetCorpus(c)
	}
	return e
}

// SetCorpus atomically replaces the corpus. Prepared fields are built
// before the swap so concurrent requests see either generation whole.
func (e *Engine) SetCorpus(c *corpus.Corpus) {
	s := &snapshot{
		corpus:   c,
		prepared: make(map[string]*PreparedEntry, c.Len()),
		titles:   make([]string, 0, c.Len()),
	}
	for _, entry := range c.All() {
		s.prepared[entry.ID] = e.scorer.Prepare(entry)
		s.titles = append(s.titles, normalize.Normalize(entry.Title))
	}
	e.snap.Store(s)
	e.logger.Debug("corpus loaded", slog.Int("entries", c.Len()))
}

// Corpus returns the current corpus, or nil before one is loaded.
func (e *Engine) Corpus() *corpus.Corpus {
	if s := e.snap.Load(); s != nil {
		return s.corpus
	}
	return nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Analyze derives the shared query form.
func (e *Engine) Analyze(raw string) *Analysis {
	normalized := normalize.Normalize(raw)
	tokens := normalize.Tokens(normalized)
	return &Analysis{
		Raw:        strings.TrimSpace(raw),
		Normalized: normalized,
		Tokens:     tokens,
		Content:    normalize.ContentTokens(normalized),
		Variants:   e.expander.Expand(tokens),
		Citation:   DetectCitation(normalized),
		Shape:      e.classifier.Classify(normalized),
	}
}

// Search runs the full pipeline. Only an empty query or a missing corpus
// is an error; failing channels degrade the response instead.
func (e *Engine) Search(ctx context.Context, q Query) (*Response, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, amanerrors.EmptyQueryError()
	}
	a := e.Analyze(q.Text)
	if a.Normalized == "" {
		return nil, amanerrors.EmptyQueryError()
	}

	snap := e.snap.Load()
	if snap == nil {
		return nil, amanerrors.New(amanerrors.ErrCodeCorpusInvalid, "no corpus loaded", nil)
	}

	ctx, span := tracer.Start(ctx, "search.Search",
		trace.WithAttributes(
			attribute.String("query.normalized", a.Normalized),
			attribute.Bool("query.citation", !a.Citation.IsZero()),
		))
	defer span.End()

	start := time.Now()
	pool, degraded := e.retrieve(ctx, snap, a, q.Filters)

	sig := NewSignals(a)
	cands := pool.list()
	e.fillLexical(a, cands)
	ranked := e.ranker.Rank(cands, sig)

	decision := e.gate.Decide(NewGateInput(ranked, a, !q.Filters.IsZero()))
	e.collectors.CountGate(string(decision.Outcome))

	resp := &Response{
		Query:      q.Text,
		Normalized: a.Normalized,
		Total:      len(ranked),
		Decision:   decision,
		Degraded:   degraded,
	}

	if decision.Answerable() && e.rerank != nil {
		var outcome RerankOutcome
		rerankStart := time.Now()
		ranked, outcome = e.rerank.Apply(ctx, a.Raw, ranked, decision)
		e.collectors.CountRerank(string(outcome))
		if outcome != RerankSkipped {
			e.collectors.ObserveRetrieval("rerank", time.Since(rerankStart))
		}
		resp.Reranked = outcome == RerankApplied
		if outcome == RerankFallback {
			resp.Degraded = append(resp.Degraded, "rerank")
		}
	}

	limit := e.cfg.limit(q.Limit)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	resp.Results = ranked

	if len(resp.Results) < LowResultThreshold {
		resp.Suggestion, resp.Suggestions = e.suggest(snap, a.Normalized)
	}

	span.SetAttributes(
		attribute.Int("results", len(resp.Results)),
		attribute.String("gate.outcome", string(decision.Outcome)),
	)
	e.record(a, resp, time.Since(start))
	e.logger.Debug("search complete",
		slog.String("query", truncateQuery(a.Normalized, 80)),
		slog.Int("candidates", resp.Total),
		slog.String("outcome", string(decision.Outcome)),
		slog.Float64("confidence", decision.Confidence),
		slog.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// retrieve runs the three channels concurrently and pools their
// candidates in a fixed channel order so the result is deterministic.
func (e *Engine) retrieve(ctx context.Context, snap *snapshot, a *Analysis, filters corpus.Filters) (*candidatePool, []string) {
	keep := func(id string) bool {
		entry, ok := snap.corpus.Get(id)
		return ok && filters.Match(entry)
	}

	var (
		hits      []DirectHit
		vec       VectorResult
		lexical   []*Candidate
		lexFailed bool
		vecDone   = make(chan struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.Now()
		_, span := tracer.Start(gctx, "search.citation")
		defer span.End()
		hits = e.matcher.Match(gctx, snap.corpus, a.Citation, filters)
		e.collectors.ObserveRetrieval("citation", time.Since(t))
		return nil
	})
	g.Go(func() error {
		defer close(vecDone)
		if !e.vector.Enabled() {
			return nil
		}
		t := time.Now()
		vctx, span := tracer.Start(gctx, "search.vector")
		defer span.End()
		vec = e.vector.Retrieve(vctx, a.Normalized, a.Raw, e.cfg.NearestK, keep)
		e.collectors.ObserveRetrieval("vector", time.Since(t))
		return nil
	})
	g.Go(func() error {
		if e.cfg.SkipLexicalOnHighSimilarity && a.Citation.IsZero() {
			select {
			case <-vecDone:
			case <-gctx.Done():
				return nil
			}
			if vec.BestSim >= e.cfg.LexicalSkipSimilarity {
				e.logger.Debug("lexical channel skipped", slog.Float64("best_similarity", vec.BestSim))
				return nil
			}
		}
		t := time.Now()
		lctx, span := tracer.Start(gctx, "search.lexical")
		defer span.End()
		lexical, lexFailed = e.lexicalChannel(lctx, snap, a, filters)
		e.collectors.ObserveRetrieval("lexical", time.Since(t))
		return nil
	})
	_ = g.Wait()

	var degraded []string
	if vec.Degraded {
		degraded = append(degraded, "vector")
	}
	if lexFailed {
		degraded = append(degraded, "lexical_index")
	}

	pool := newCandidatePool()
	for _, h := range hits {
		c := &Candidate{
			Entry:        h.Entry,
			Boosts:       h.Boosts,
			Channels:     ChannelCitation,
			DirectMatch:  h.Exact(),
			ArticleMatch: h.Kind == HitArticle,
			prep:         snap.prepared[h.Entry.ID],
		}
		if h.Exact() {
			c.LexicalSim = 1
		}
		pool.add(c)
	}
	for _, c := range lexical {
		pool.add(c)
	}
	for _, vh := range vec.Hits {
		entry, ok := snap.corpus.Get(vh.ID)
		if !ok {
			continue
		}
		pool.add(&Candidate{
			Entry:     entry,
			VectorSim: vh.Similarity,
			Channels:  ChannelVector,
			prep:      snap.prepared[vh.ID],
		})
	}
	return pool, degraded
}

// lexicalChannel scores entries lexically. Small corpora, and any corpus
// without a usable index, are scanned in full; otherwise the index lookups
// for the normalized, raw and expanded query run concurrently and only
// their union is scored. failed is set when every index lookup failed.
func (e *Engine) lexicalChannel(ctx context.Context, snap *snapshot, a *Analysis, filters corpus.Filters) (cands []*Candidate, failed bool) {
	var entries []*corpus.Entry
	if e.lexIndex == nil || snap.corpus.Len() <= e.cfg.FullScanLimit {
		entries = snap.corpus.Filter(filters)
	} else {
		ids, ok := e.indexCandidates(ctx, a)
		if !ok {
			failed = true
			entries = snap.corpus.Filter(filters)
		} else {
			for _, id := range ids {
				if entry, found := snap.corpus.Get(id); found && filters.Match(entry) {
					entries = append(entries, entry)
				}
			}
		}
	}

	lq := newLexicalQuery(a)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		prep := snap.prepared[entry.ID]
		if prep == nil {
			continue
		}
		if c := e.lexicalCandidate(prep, lq); c != nil {
			cands = append(cands, c)
		}
	}
	return cands, failed
}

// indexCandidates unions the index hits of each query form in first-seen
// order. ok is false when no lookup succeeded.
func (e *Engine) indexCandidates(ctx context.Context, a *Analysis) ([]string, bool) {
	forms := []string{a.Normalized}
	for _, f := range []string{normalize.Normalize(a.Raw), ExpandedQuery(a.Variants)} {
		if f != "" && !containsString(forms, f) {
			forms = append(forms, f)
		}
	}

	results := make([][]store.LexicalHit, len(forms))
	var (
		mu        sync.Mutex
		succeeded int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, form := range forms {
		g.Go(func() error {
			hits, err := e.lexIndex.Search(gctx, form, e.cfg.LexicalCandidates)
			if err != nil {
				e.logger.Warn("lexical index lookup failed",
					slog.String("form", truncateQuery(form, 50)),
					slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
			results[i] = hits
			return nil
		})
	}
	_ = g.Wait()
	if succeeded == 0 {
		return nil, false
	}

	seen := make(map[string]bool)
	var ids []string
	for _, hits := range results {
		for _, h := range hits {
			if !seen[h.ID] {
				seen[h.ID] = true
				ids = append(ids, h.ID)
			}
		}
	}
	return ids, true
}

// lexicalCandidate scores one entry, returning nil when nothing matched.
func (e *Engine) lexicalCandidate(prep *PreparedEntry, lq lexicalQuery) *Candidate {
	ls := e.scorer.score(prep, lq)
	if !ls.Hit() {
		return nil
	}
	c := &Candidate{
		Entry:         prep.Entry,
		LexicalSim:    ls.Similarity,
		LexicalScore:  ls.Score,
		Channels:      ChannelLexical,
		ExactCitation: ls.ExactCitation,
		ArticleMatch:  ls.ArticleMatch,
		prep:          prep,
	}
	if ls.Keyword {
		c.Boosts.Keyword = e.cfg.Boosts.Keyword
	}
	if ls.ArticleMatch {
		c.Boosts.Article = e.cfg.Boosts.Article
	}
	return c
}

// fillLexical scores candidates the lexical channel did not reach, such as
// vector hits outside the index candidate set.
func (e *Engine) fillLexical(a *Analysis, cands []*Candidate) {
	var lq *lexicalQuery
	for _, c := range cands {
		if c.Channels.Has(ChannelLexical) || c.prep == nil {
			continue
		}
		if lq == nil {
			q := newLexicalQuery(a)
			lq = &q
		}
		if lc := e.lexicalCandidate(c.prep, *lq); lc != nil {
			lc.Channels = 0
			c.merge(lc)
		}
	}
}

// suggest ranks titles by Jaro-Winkler similarity to the query.
func (e *Engine) suggest(snap *snapshot, normalized string) (string, []string) {
	type scored struct {
		title string
		sim   float64
	}
	entries := snap.corpus.All()
	seen := make(map[string]bool)
	var all []scored
	for i, t := range snap.titles {
		if t == "" {
			continue
		}
		sim := smetrics.JaroWinkler(normalized, t, 0.7, 4)
		if sim < minSuggestionSimilarity {
			continue
		}
		title := entries[i].Title
		if seen[title] {
			continue
		}
		seen[title] = true
		all = append(all, scored{title: title, sim: sim})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].sim != all[j].sim {
			return all[i].sim > all[j].sim
		}
		return all[i].title < all[j].title
	})
	if len(all) == 0 {
		return "", nil
	}

	n := min(len(all), max(e.cfg.SuggestionCount, 1))
	out := make([]string, n)
	for i := range out {
		out[i] = all[i].title
	}
	return out[0], out
}

// record feeds the query pattern telemetry.
func (e *Engine) record(a *Analysis, resp *Response, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	qt := telemetry.QueryTypeMixed
	switch {
	case !a.Citation.IsZero():
		qt = telemetry.QueryTypeLexical
	case e.vector.Enabled() && !hasChannel(resp.Results, ChannelLexical|ChannelCitation):
		qt = telemetry.QueryTypeSemantic
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       a.Raw,
		QueryType:   qt,
		Outcome:     string(resp.Decision.Outcome),
		ResultCount: len(resp.Results),
		Reranked:    resp.Reranked,
		Degraded:    resp.Degraded,
		Latency:     elapsed,
		Timestamp:   time.Now(),
	})
}

func hasChannel(cands []*Candidate, ch Channel) bool {
	for _, c := range cands {
		if c.Channels&ch != 0 {
			return true
		}
	}
	return false
}

// Explain renders the composite score terms of c for debugging output.
func (e *Engine) Explain(a *Analysis, c *Candidate) string {
	sig := NewSignals(a)
	parts := make([]string, 0, len(e.ranker.Rules()))
	for _, rule := range e.ranker.Rules() {
		if v := rule.Apply(c, sig); v != 0 {
			parts = append(parts, fmt.Sprintf("%s=%.3f", rule.Name, v))
		}
	}
	return fmt.Sprintf("%s [%s] %s", c.Entry.ID, c.Channels, strings.Join(parts, " "))
}

// Close releases the indexes and the reranker.
func (e *Engine) Close() error {
	var errs []string
	if e.lexIndex != nil {
		if err := e.lexIndex.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if e.vecIndex != nil {
		if err := e.vecIndex.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if e.reranker != nil {
		if err := e.reranker.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close search engine: %s", strings.Join(errs, "; "))
	}
	return nil
}
