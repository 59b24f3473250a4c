// Package integration exercises the full pipeline: corpus file, index
// build on real backends, engine, answers and the evaluation harness.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlex/internal/answer"
	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/embed"
	"github.com/Aman-CERP/amanlex/internal/eval"
	"github.com/Aman-CERP/amanlex/internal/index"
	"github.com/Aman-CERP/amanlex/internal/search"
	"github.com/Aman-CERP/amanlex/internal/store"
)

const corpusJSON = `[
  {
    "entry_id": "RPC-308",
    "type": "statute_section",
    "title": "Theft",
    "canonical_citation": "Revised Penal Code, Article 308",
    "summary": "Theft is committed by any person who, with intent to gain but without violence or intimidation, takes personal property of another without consent.",
    "tags": ["theft", "property", "crime"],
    "law_family": "Revised Penal Code",
    "article_no": "308",
    "status": "active",
    "jurisdiction": "PH"
  },
  {
    "entry_id": "RPC-309",
    "type": "statute_section",
    "title": "Penalties for theft",
    "canonical_citation": "Revised Penal Code, Article 309",
    "summary": "The penalty for theft depends on the value of the property stolen.",
    "tags": ["theft", "penalty"],
    "law_family": "Revised Penal Code",
    "article_no": "309",
    "status": "active",
    "jurisdiction": "PH"
  },
  {
    "entry_id": "RPC-293",
    "type": "statute_section",
    "title": "Robbery",
    "canonical_citation": "Revised Penal Code, Article 293",
    "summary": "Robbery is the taking of personal property belonging to another with violence against or intimidation of persons.",
    "tags": ["robbery", "property", "crime"],
    "law_family": "Revised Penal Code",
    "article_no": "293",
    "status": "active",
    "jurisdiction": "PH"
  },
  {
    "entry_id": "ROC-114-7",
    "type": "rule_of_court",
    "title": "Capital offense or an offense punishable by reclusion perpetua or life imprisonment, not bailable",
    "canonical_citation": "Rules of Court, Rule 114, Section 7",
    "summary": "No person charged with a capital offense shall be admitted to bail when evidence of guilt is strong.",
    "tags": ["bail", "criminal procedure"],
    "rule_no": "114",
    "section_no": "7",
    "status": "active",
    "jurisdiction": "PH"
  }
]`

const qualifiedTheft = `{
    "entry_id": "RPC-310",
    "type": "statute_section",
    "title": "Qualified theft",
    "canonical_citation": "Revised Penal Code, Article 310",
    "summary": "Theft committed by a domestic servant or with grave abuse of confidence is punished two degrees higher.",
    "tags": ["theft", "qualified theft"],
    "law_family": "Revised Penal Code",
    "article_no": "310",
    "status": "active",
    "jurisdiction": "PH"
  }`

// pipeline is a fully wired engine over one lexical backend.
type pipeline struct {
	path    string
	engine  *search.Engine
	builder *index.Builder
	lexical store.LexicalIndex
	vector  store.VectorIndex
	answers *answer.Service
}

func writeCorpus(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newPipeline(t *testing.T, backend store.LexicalBackend) *pipeline {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "corpus.json")
	writeCorpus(t, path, corpusJSON)
	c, err := corpus.LoadFile(path)
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder()
	cfg := store.Config{
		Lexical:    backend,
		SQLitePath: filepath.Join(t.TempDir(), "lexical.db"),
		Vector:     store.VectorBackendHNSW,
		Dimensions: embedder.Dimensions(),
	}
	lexical, err := store.NewLexicalIndex(cfg)
	require.NoError(t, err)
	vector, err := store.NewVectorIndex(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = lexical.Close()
		_ = vector.Close()
	})

	builder := index.NewBuilder(lexical, vector, embedder, index.BuilderConfig{}, nil)
	res, err := builder.Build(ctx, c)
	require.NoError(t, err)
	require.Equal(t, c.Len(), res.Vectors())

	engine := search.New(c, search.DefaultConfig(),
		search.WithLexicalIndex(lexical),
		search.WithVector(embedder, vector),
		search.WithReranker(search.NewLocalReranker(0)),
	)
	return &pipeline{
		path:    path,
		engine:  engine,
		builder: builder,
		lexical: lexical,
		vector:  vector,
		answers: answer.NewService(engine),
	}
}

var backends = []store.LexicalBackend{store.LexicalBackendBleve, store.LexicalBackendSQLite}

func TestIntegration_ArticleLookup(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			// Given: a pipeline over real indexes
			p := newPipeline(t, backend)

			// When: searching by article number
			resp, err := p.engine.Search(context.Background(), search.Query{Text: "Article 308"})

			// Then: the article ranks first and the gate answers
			require.NoError(t, err)
			require.NotEmpty(t, resp.Results)
			assert.Equal(t, "RPC-308", resp.Results[0].Entry.ID)
			assert.Equal(t, search.OutcomeAnswer, resp.Decision.Outcome)
			assert.Empty(t, resp.Degraded)
		})
	}
}

func TestIntegration_FiltersRestrictResults(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			p := newPipeline(t, backend)
			filters, err := corpus.ParseFilters("rule_of_court", "", "", nil)
			require.NoError(t, err)

			resp, err := p.engine.Search(context.Background(), search.Query{Text: "bail", Filters: filters})

			require.NoError(t, err)
			require.NotEmpty(t, resp.Results)
			for _, c := range resp.Results {
				assert.Equal(t, corpus.TypeRuleOfCourt, c.Entry.Type)
			}
			assert.Equal(t, "ROC-114-7", resp.Results[0].Entry.ID)
		})
	}
}

func TestIntegration_AskAnswersAndRefuses(t *testing.T) {
	p := newPipeline(t, store.LexicalBackendBleve)
	ctx := context.Background()

	// When: asking about a covered article
	got, err := p.answers.Ask(ctx, "Article 308", corpus.Filters{})

	// Then: the extractive answer cites it
	require.NoError(t, err)
	assert.Equal(t, search.OutcomeAnswer, got.Outcome)
	assert.False(t, got.Generated)
	assert.Contains(t, got.Answer, "Revised Penal Code, Article 308")
	require.NotEmpty(t, got.Sources)
	assert.Equal(t, "RPC-308", got.Sources[0].EntryID)

	// When: asking about something the corpus does not cover
	got, err = p.answers.Ask(ctx, "quantum chromodynamics", corpus.Filters{})

	// Then: the service refuses
	require.NoError(t, err)
	assert.Equal(t, search.OutcomeRefuse, got.Outcome)
	assert.Contains(t, got.Answer, "I don't know.")
}

func TestIntegration_EvaluateTheftGold(t *testing.T) {
	p := newPipeline(t, store.LexicalBackendBleve)
	gold := []eval.GoldRecord{
		{Query: "Article 308", IdealTop: []string{"RPC-308"}},
		{Query: "Article 293", IdealTop: []string{"RPC-293"}},
	}

	res, err := eval.NewHarness(p.engine, eval.WithWorkers(2)).Evaluate(context.Background(), gold)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1.0, res.P1)
}

func TestIntegration_ReloadAddsEntry(t *testing.T) {
	// Given: a served corpus without Article 310
	p := newPipeline(t, store.LexicalBackendBleve)
	ctx := context.Background()
	reloader := index.NewReloader(index.ReloaderConfig{Path: p.path, Target: p.engine, Builder: p.builder})

	// When: the file gains the entry and is reloaded
	writeCorpus(t, p.path, corpusJSON[:len(corpusJSON)-2]+",\n  "+qualifiedTheft+"\n]")
	c, err := reloader.Reload(ctx)

	// Then: the new entry is searchable and consistent across indexes
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())
	resp, err := p.engine.Search(ctx, search.Query{Text: "Article 310"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "RPC-310", resp.Results[0].Entry.ID)

	check, err := index.NewConsistencyChecker(p.lexical, p.vector).Check(ctx, c)
	require.NoError(t, err)
	assert.True(t, check.OK())
}

func TestIntegration_InvalidReloadKeepsCorpus(t *testing.T) {
	p := newPipeline(t, store.LexicalBackendBleve)
	ctx := context.Background()
	reloader := index.NewReloader(index.ReloaderConfig{Path: p.path, Target: p.engine, Builder: p.builder})

	writeCorpus(t, p.path, `[{"entry_id": "RPC-308"}, {"entry_id": "RPC-308"}]`)
	_, err := reloader.Reload(ctx)

	require.Error(t, err)
	assert.Equal(t, 4, p.engine.Corpus().Len())
	_, failures, _ := reloader.Stats()
	assert.Equal(t, 1, failures)
}

func TestIntegration_ConcurrentSearchesDuringReload(t *testing.T) {
	p := newPipeline(t, store.LexicalBackendBleve)
	ctx := context.Background()
	reloader := index.NewReloader(index.ReloaderConfig{Path: p.path, Target: p.engine, Builder: p.builder})

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := []string{"Article 308", "theft", "bail", "robbery"}[i%4]
			resp, err := p.engine.Search(ctx, search.Query{Text: q})
			if err == nil && len(resp.Results) == 0 {
				err = fmt.Errorf("no results for %q", q)
			}
			errs <- err
		}()
	}
	_, reloadErr := reloader.Reload(ctx)
	wg.Wait()
	close(errs)

	require.NoError(t, reloadErr)
	for err := range errs {
		assert.NoError(t, err)
	}
}
