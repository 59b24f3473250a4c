package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/store"
	"github.com/Aman-CERP/amanlex/internal/telemetry"
)

func newTestEngine(opts ...Option) *Engine {
	return New(fixtureCorpus(), DefaultConfig(), opts...)
}

func search(t *testing.T, e *Engine, q Query) *Response {
	t.Helper()
	resp, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	return resp
}

// stubLexicalIndex returns fixed ids or an error for every query.
type stubLexicalIndex struct {
	ids []string
	err error
}

func (s *stubLexicalIndex) Index(context.Context, []store.Document) error { return nil }

func (s *stubLexicalIndex) Search(context.Context, string, int) ([]store.LexicalHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	hits := make([]store.LexicalHit, len(s.ids))
	for i, id := range s.ids {
		hits[i] = store.LexicalHit{ID: id, Score: 1}
	}
	return hits, nil
}

func (s *stubLexicalIndex) Count() int { return len(s.ids) }

func (s *stubLexicalIndex) Close() error { return nil }

func TestEngine_ArticleQuery(t *testing.T) {
	// Given: the fixture corpus
	e := newTestEngine()

	// When: asking about an article by number
	resp := search(t, e, Query{Text: "What is Article 308?"})

	// Then: theft is first and the gate answers without reranking
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "RPC-308", resp.Results[0].Entry.ID)
	assert.True(t, resp.Results[0].Channels.Has(ChannelCitation))
	assert.Equal(t, OutcomeAnswer, resp.Decision.Outcome)
	assert.True(t, resp.Decision.SkipRerank)
}

func TestEngine_ArticleFollowedByEnglishArticle(t *testing.T) {
	resp := search(t, newTestEngine(), Query{Text: "Is Article 308 a crime?"})

	require.NotEmpty(t, resp.Results)
	top := resp.Results[0]
	assert.Equal(t, "RPC-308", top.Entry.ID)
	assert.True(t, top.Channels.Has(ChannelCitation))
	assert.Equal(t, 0.25, top.Boosts.Direct)
	assert.Equal(t, 0.35, top.Boosts.Article)
}

func TestEngine_WordAfterArticleIsNotACitation(t *testing.T) {
	// Given: "violation" starts with the Roman letters "vi"
	e := newTestEngine()

	// When: searched
	resp, err := e.Search(context.Background(), Query{Text: "penalty for article violation"})
	require.NoError(t, err)

	// Then: no citation hits and no citation floor
	for _, c := range resp.Results {
		assert.False(t, c.Channels.Has(ChannelCitation), c.Entry.ID)
		assert.Zero(t, c.Boosts.Nearby, c.Entry.ID)
	}
	assert.NotContains(t, resp.Decision.Reasons, "citation query")
	assert.True(t, e.Analyze("penalty for article violation").Citation.IsZero())
}

func TestEngine_RuleSectionQuery(t *testing.T) {
	resp := search(t, newTestEngine(), Query{Text: "rule 114 sec 7"})

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "ROC-114-7", resp.Results[0].Entry.ID)
	assert.True(t, resp.Results[0].DirectMatch)
	assert.Equal(t, OutcomeAnswer, resp.Decision.Outcome)
}

func TestEngine_ExactTitleCitationDominates(t *testing.T) {
	resp := search(t, newTestEngine(), Query{Text: "Theft Revised Penal Code, Article 308"})

	require.GreaterOrEqual(t, len(resp.Results), 2)
	top := resp.Results[0]
	assert.Equal(t, "RPC-308", top.Entry.ID)
	assert.True(t, top.ExactCitation)
	assert.Greater(t, top.Score-resp.Results[1].Score, 10.0)
}

func TestEngine_EmptyQueryIsClientError(t *testing.T) {
	e := newTestEngine()
	for _, q := range []string{"", "   ", "?!"} {
		t.Run(q, func(t *testing.T) {
			_, err := e.Search(context.Background(), Query{Text: q})

			require.Error(t, err)
			ae, ok := amanerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, amanerrors.ErrCodeQueryEmpty, ae.Code)
		})
	}
}

func TestEngine_NoCorpus(t *testing.T) {
	_, err := New(nil, DefaultConfig()).Search(context.Background(), Query{Text: "theft"})
	assert.Error(t, err)
}

func TestEngine_DeterministicUnderConcurrency(t *testing.T) {
	// Given: a baseline order
	e := newTestEngine()
	want := search(t, e, Query{Text: "theft of property"}).IDs()
	require.NotEmpty(t, want)

	// When: the same query runs concurrently
	var wg sync.WaitGroup
	got := make([][]string, 8)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.Search(context.Background(), Query{Text: "theft of property"})
			if err == nil {
				got[i] = resp.IDs()
			}
		}()
	}
	wg.Wait()

	// Then: every run returns the same order
	for _, ids := range got {
		assert.Equal(t, want, ids)
	}
}

func TestEngine_Filters(t *testing.T) {
	resp := search(t, newTestEngine(), Query{
		Text:    "theft",
		Filters: corpus.Filters{Type: corpus.TypeRuleOfCourt},
	})

	for _, c := range resp.Results {
		assert.Equal(t, corpus.TypeRuleOfCourt, c.Entry.Type)
	}
}

func TestEngine_Limit(t *testing.T) {
	resp := search(t, newTestEngine(), Query{Text: "theft", Limit: 1})

	assert.Len(t, resp.Results, 1)
	assert.GreaterOrEqual(t, resp.Total, 2)
}

func TestEngine_RefusesUnknownTopic(t *testing.T) {
	resp := search(t, newTestEngine(), Query{Text: "quantum chromodynamics"})

	assert.Equal(t, OutcomeRefuse, resp.Decision.Outcome)
	assert.Empty(t, resp.Results)
}

func TestEngine_SuggestsTitlesForFewResults(t *testing.T) {
	// Given: a misspelled title
	resp := search(t, newTestEngine(), Query{Text: "robbry"})

	// Then: the closest title is suggested
	assert.Less(t, len(resp.Results), LowResultThreshold)
	assert.Equal(t, "Robbery", resp.Suggestion)
	assert.Contains(t, resp.Suggestions, "Robbery")
}

func TestEngine_VectorFailureDegrades(t *testing.T) {
	// Given: an embedder that always fails
	e := newTestEngine(WithVector(newMapEmbedder(nil), vectorFixture()))

	// When: searching
	resp := search(t, e, Query{Text: "What is Article 308?"})

	// Then: lexical and citation results still come back
	assert.Contains(t, resp.Degraded, "vector")
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "RPC-308", resp.Results[0].Entry.ID)
}

func TestEngine_VectorHitsJoinThePool(t *testing.T) {
	const raw = "what is taking with intimidation"
	emb := newMapEmbedder(map[string][]float32{
		raw:                     {0, 1},
		analyze(raw).Normalized: {0, 1},
	})
	e := newTestEngine(WithVector(emb, vectorFixture()))

	resp := search(t, e, Query{Text: raw})

	var vectorOnly bool
	for _, c := range resp.Results {
		if c.Entry.ID == "RPC-293" {
			vectorOnly = c.Channels.Has(ChannelVector)
			assert.Equal(t, 0.6, c.VectorSim)
		}
	}
	assert.True(t, vectorOnly)
}

func TestEngine_RerankApplied(t *testing.T) {
	// Given: baseline order without a reranker
	base := search(t, newTestEngine(), Query{Text: "bail"}).IDs()
	require.Len(t, base, 2)

	// When: a reversing reranker is configured
	fake := &fakeReranker{results: reverseResults}
	resp := search(t, newTestEngine(WithReranker(fake)), Query{Text: "bail"})

	// Then: the order is reversed
	assert.True(t, resp.Reranked)
	assert.Equal(t, []string{base[1], base[0]}, resp.IDs())
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestEngine_RerankFailureKeepsOrder(t *testing.T) {
	base := search(t, newTestEngine(), Query{Text: "bail"}).IDs()

	resp := search(t, newTestEngine(WithReranker(&fakeReranker{err: errors.New("down")})), Query{Text: "bail"})

	assert.False(t, resp.Reranked)
	assert.Equal(t, base, resp.IDs())
	assert.Contains(t, resp.Degraded, "rerank")
}

func TestEngine_LexicalIndexNarrowsLargeCorpus(t *testing.T) {
	// Given: an index that only proposes one entry and a corpus over the scan limit
	cfg := DefaultConfig()
	cfg.FullScanLimit = 0
	e := New(fixtureCorpus(), cfg, WithLexicalIndex(&stubLexicalIndex{ids: []string{"RPC-309"}}))

	resp := search(t, e, Query{Text: "theft"})

	assert.Equal(t, []string{"RPC-309"}, resp.IDs())
}

func TestEngine_LexicalIndexFailureFallsBackToScan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FullScanLimit = 0
	e := New(fixtureCorpus(), cfg, WithLexicalIndex(&stubLexicalIndex{err: errors.New("corrupt")}))

	resp := search(t, e, Query{Text: "theft"})

	assert.Contains(t, resp.Degraded, "lexical_index")
	assert.Contains(t, resp.IDs(), "RPC-308")
}

func TestEngine_SetCorpusSwapsSnapshot(t *testing.T) {
	e := newTestEngine()
	e.SetCorpus(corpus.MustNew(&corpus.Entry{
		ID:                "RPC-315",
		Type:              corpus.TypeStatuteSection,
		Title:             "Swindling (estafa)",
		CanonicalCitation: "Revised Penal Code, Article 315",
	}))

	resp := search(t, e, Query{Text: "estafa"})

	assert.Equal(t, []string{"RPC-315"}, resp.IDs())
	assert.Equal(t, 1, e.Corpus().Len())
}

func TestEngine_RecordsQueryMetrics(t *testing.T) {
	m := telemetry.NewQueryMetrics(nil)
	defer m.Close()
	e := newTestEngine(WithQueryMetrics(m), WithCollectors(nil))

	search(t, e, Query{Text: "rule 114 section 7"})
	search(t, e, Query{Text: "bail"})

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.QueryTypeCounts[telemetry.QueryTypeLexical])
	assert.Equal(t, int64(1), snap.QueryTypeCounts[telemetry.QueryTypeMixed])
}

func TestEngine_Explain(t *testing.T) {
	e := newTestEngine()
	a := e.Analyze("What is Article 308?")
	resp := search(t, e, Query{Text: "What is Article 308?"})

	out := e.Explain(a, resp.Results[0])

	assert.Contains(t, out, "RPC-308")
	assert.Contains(t, out, "statute_citation=0.200")
}
