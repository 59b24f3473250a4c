package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/amanlex/internal/answer"
	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/search"
	"github.com/Aman-CERP/amanlex/internal/telemetry"
	"github.com/Aman-CERP/amanlex/pkg/version"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string, filters corpus.Filters) (*answer.Answer, error)
}

// CorpusProvider returns the corpus currently being served. It may return
// nil before the first load.
type CorpusProvider interface {
	Corpus() *corpus.Corpus
}

// Server bridges MCP clients with the retrieval and answer pipeline.
type Server struct {
	mcp      *mcp.Server
	searcher answer.Searcher
	asker    Asker
	corpus   CorpusProvider
	metrics  *telemetry.QueryMetrics
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Under stdio it must not write to stdout.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithQueryMetrics exposes session telemetry as a resource and in
// corpus_status.
func WithQueryMetrics(m *telemetry.QueryMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates an MCP server with the ask, search_entries and
// corpus_status tools registered.
func NewServer(searcher answer.Searcher, asker Asker, provider CorpusProvider, opts ...Option) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if asker == nil {
		return nil, errors.New("asker is required")
	}

	s := &Server{
		searcher: searcher,
		asker:    asker,
		corpus:   provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    version.Name,
		Version: version.Short(),
	}, nil)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "ask",
		Description: "Answer a legal question from the verified knowledge base. " +
			"Returns \"I don't know.\" with the closest entries when the evidence is too weak, " +
			"and a safety advisory for questions about active emergencies.",
	}, s.handleAsk)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search_entries",
		Description: "Find statutes, rules of court, jurisprudence and advisories by meaning, keywords or citation " +
			"(e.g. \"Art. 308 RPC\", \"Rule 113 Sec. 5\"). Supports type, jurisdiction, status and verified filters.",
	}, s.handleSearchEntries)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "corpus_status",
		Description: "Report how many entries are loaded, by type, and session query statistics.",
	}, s.handleCorpusStatus)

	s.logger.Debug("MCP tools registered", slog.Int("count", 3))
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(in.Question) == "" {
		return nil, AskOutput{}, NewInvalidParamsError("question is required")
	}
	filters, err := corpus.ParseFilters(in.Type, in.Jurisdiction, in.Status, in.Verified)
	if err != nil {
		return nil, AskOutput{}, MapError(err)
	}

	requestID := uuid.NewString()
	start := time.Now()
	a, err := s.asker.Ask(ctx, in.Question, filters)
	if err != nil {
		s.logger.Error("ask failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, AskOutput{}, MapError(err)
	}
	s.logger.Info("ask completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.String("outcome", string(a.Outcome)),
		slog.Int("sources", len(a.Sources)))

	out := AskOutput{
		Answer:     a.Answer,
		Outcome:    string(a.Outcome),
		Confidence: a.Confidence,
		Sources:    nonNil(a.Sources),
		Generated:  a.Generated,
		Degraded:   a.Degraded,
	}
	return textResult(FormatAnswer(in.Question, a)), out, nil
}

func (s *Server) handleSearchEntries(ctx context.Context, _ *mcp.CallToolRequest, in SearchEntriesInput) (*mcp.CallToolResult, SearchEntriesOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, SearchEntriesOutput{}, NewInvalidParamsError("query is required")
	}
	filters, err := corpus.ParseFilters(in.Type, in.Jurisdiction, in.Status, in.Verified)
	if err != nil {
		return nil, SearchEntriesOutput{}, MapError(err)
	}

	requestID := uuid.NewString()
	start := time.Now()
	resp, err := s.searcher.Search(ctx, search.Query{
		Text:    in.Query,
		Filters: filters,
		Limit:   clampLimit(in.Limit, defaultLimit, 1, maxLimit),
	})
	if err != nil {
		s.logger.Error("search_entries failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, SearchEntriesOutput{}, MapError(err)
	}
	s.logger.Info("search_entries completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(resp.Results)))

	out := SearchEntriesOutput{
		Results:     answer.Sources(resp.Results),
		Total:       resp.Total,
		Outcome:     string(resp.Decision.Outcome),
		Suggestion:  resp.Suggestion,
		Suggestions: resp.Suggestions,
	}
	return textResult(FormatEntries(in.Query, out)), out, nil
}

func (s *Server) handleCorpusStatus(_ context.Context, _ *mcp.CallToolRequest, _ CorpusStatusInput) (*mcp.CallToolResult, CorpusStatusOutput, error) {
	c := s.currentCorpus()
	if c == nil {
		return nil, CorpusStatusOutput{}, MapError(ErrCorpusNotLoaded)
	}

	out := CorpusStatusOutput{
		Entries: c.Len(),
		ByType:  make(map[string]int),
		Version: version.Short(),
	}
	for _, e := range c.All() {
		out.ByType[string(e.Type)]++
		if e.IsVerified() {
			out.Verified++
		}
	}
	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		out.Queries = &QueryStatistics{
			Total:       snap.TotalQueries,
			RefusalRate: snap.RefusalRate(),
			Summary:     snap.Summary(),
		}
	}
	text := fmt.Sprintf("%d entries loaded (%d verified).", out.Entries, out.Verified)
	return textResult(text), out, nil
}

func (s *Server) currentCorpus() *corpus.Corpus {
	if s.corpus == nil {
		return nil
	}
	return s.corpus.Corpus()
}

// Serve runs the server over the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func nonNil(s []answer.Source) []answer.Source {
	if s == nil {
		return []answer.Source{}
	}
	return s
}
