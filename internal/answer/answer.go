// Package answer is the conversational layer: it retrieves, lets the
// confidence gate decide, and only then asks a language model to compose
// an answer grounded in the retrieved entries.
package answer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/generate"
	"github.com/Aman-CERP/amanlex/internal/search"
)

// DefaultMaxSources is the number of ranked entries given to the model and
// returned as sources.
const DefaultMaxSources = 5

// Searcher is the retrieval dependency. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Response, error)
}

// Source is the wire view of one ranked entry.
type Source struct {
	EntryID           string   `json:"entry_id"`
	Type              string   `json:"type"`
	Title             string   `json:"title"`
	CanonicalCitation string   `json:"canonical_citation,omitempty"`
	Summary           string   `json:"summary,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	Similarity        float64  `json:"similarity"`
	LexicalSimilarity float64  `json:"lexical_similarity"`
	FinalScore        float64  `json:"final_score"`
	SourceURLs        []string `json:"source_urls,omitempty"`
	Verified          bool     `json:"verified"`
}

// NewSource projects a ranked candidate.
func NewSource(c *search.Candidate) Source {
	e := c.Entry
	return Source{
		EntryID:           e.ID,
		Type:              string(e.Type),
		Title:             e.Title,
		CanonicalCitation: e.CanonicalCitation,
		Summary:           e.Summary,
		Tags:              e.Tags,
		Similarity:        c.VectorSim,
		LexicalSimilarity: c.LexicalSim,
		FinalScore:        c.Score,
		SourceURLs:        e.SourceURLs,
		Verified:          e.IsVerified(),
	}
}

// Sources projects candidates.
func Sources(cands []*search.Candidate) []Source {
	out := make([]Source, len(cands))
	for i, c := range cands {
		out[i] = NewSource(c)
	}
	return out
}

// Answer is the result of Ask.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`

	Outcome    search.Outcome `json:"outcome"`
	Confidence float64        `json:"confidence"`
	// Generated is false for refusals, advisories and extractive answers.
	Generated bool     `json:"generated"`
	Degraded  []string `json:"degraded,omitempty"`
}

// Service answers questions.
type Service struct {
	searcher   Searcher
	generator  generate.Generator
	maxSources int
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator sets the language model. Without one, answers are
// extractive.
func WithGenerator(g generate.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithMaxSources overrides DefaultMaxSources.
func WithMaxSources(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSources = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(searcher Searcher, opts ...Option) *Service {
	s := &Service{searcher: searcher, maxSources: DefaultMaxSources, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// prepared is the retrieval half shared by Ask and AskStream.
type prepared struct {
	resp    *search.Response
	sources []*search.Candidate
	answer  *Answer
	// prompt is empty when no generation should happen.
	prompt string
}

func (s *Service) prepare(ctx context.Context, question string, filters corpus.Filters) (*prepared, error) {
	if strings.TrimSpace(question) == "" {
		return nil, amanerrors.EmptyQueryError()
	}
	resp, err := s.searcher.Search(ctx, search.Query{Text: question, Filters: filters, Limit: s.maxSources})
	if err != nil {
		return nil, err
	}

	p := &prepared{resp: resp, sources: resp.Results}
	p.answer = &Answer{
		Sources:    Sources(resp.Results),
		Outcome:    resp.Decision.Outcome,
		Confidence: resp.Decision.Confidence,
		Degraded:   append([]string(nil), resp.Degraded...),
	}

	switch resp.Decision.Outcome {
	case search.OutcomeSafetyAdvisory:
		p.answer.Answer = search.SafetyAdvisory
	case search.OutcomeRefuse:
		p.answer.Answer = search.RefusalAnswer
	default:
		if s.generator == nil {
			p.answer.Answer = Extractive(resp.Results)
		} else {
			p.prompt = BuildPrompt(question, resp.Results)
		}
	}
	return p, nil
}

// Ask retrieves and, when the gate allows it, generates an answer. A
// generation failure falls back to the extractive answer.
func (s *Service) Ask(ctx context.Context, question string, filters corpus.Filters) (*Answer, error) {
	p, err := s.prepare(ctx, question, filters)
	if err != nil {
		return nil, err
	}
	if p.prompt == "" {
		return p.answer, nil
	}

	text, err := s.generator.Generate(ctx, p.prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("generation failed, answering extractively",
			slog.String("model", s.generator.ModelName()),
			slog.String("error", err.Error()))
		p.answer.Answer = Extractive(p.sources)
		p.answer.Degraded = append(p.answer.Degraded, "generation")
		return p.answer, nil
	}

	p.answer.Answer = strings.TrimSpace(text)
	if p.answer.Answer == "" {
		p.answer.Answer = Extractive(p.sources)
	} else {
		p.answer.Generated = true
	}
	return p.answer, nil
}

// AskStream is Ask with the answer text delivered as a stream. The
// returned Answer carries everything but the text. Refusals, advisories and
// extractive answers stream as a single fragment.
func (s *Service) AskStream(ctx context.Context, question string, filters corpus.Filters) (*Answer, *generate.Stream, error) {
	p, err := s.prepare(ctx, question, filters)
	if err != nil {
		return nil, nil, err
	}
	if p.prompt == "" {
		return p.answer, generate.FromString(p.answer.Answer), nil
	}

	stream, err := s.generator.Stream(ctx, p.prompt)
	if err != nil {
		s.logger.Warn("generation stream failed, answering extractively",
			slog.String("model", s.generator.ModelName()),
			slog.String("error", err.Error()))
		p.answer.Answer = Extractive(p.sources)
		p.answer.Degraded = append(p.answer.Degraded, "generation")
		return p.answer, generate.FromString(p.answer.Answer), nil
	}
	p.answer.Generated = true
	return p.answer, stream, nil
}
