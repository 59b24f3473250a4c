package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlex/internal/api"
	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/output"
	"github.com/Aman-CERP/amanlex/internal/search"
)

// filterOptions are the retrieval filters shared by search and ask.
type filterOptions struct {
	entryType    string
	jurisdiction string
	status       string
	verified     bool
}

func (f *filterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.entryType, "type", "t", "", "Filter by entry type (e.g. statute_section, rule_of_court)")
	cmd.Flags().StringVarP(&f.jurisdiction, "jurisdiction", "j", "", "Filter by jurisdiction")
	cmd.Flags().StringVar(&f.status, "status", "", "Filter by status: active, amended, repealed")
	cmd.Flags().BoolVar(&f.verified, "verified", false, "Only verified entries (--verified=false for unverified)")
}

func (f *filterOptions) parse(cmd *cobra.Command) (corpus.Filters, error) {
	var verified *bool
	if cmd.Flags().Changed("verified") {
		v := f.verified
		verified = &v
	}
	return corpus.ParseFilters(f.entryType, f.jurisdiction, f.status, verified)
}

// searchOptions holds CLI flags for search.
type searchOptions struct {
	filterOptions
	limit   int
	format  string // "text", "json"
	explain bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank corpus entries for a query",
		Long: `Rank corpus entries for a question or a citation.

Citation lookups ("Article 308", "rule 114 sec 7", "RA 9262") resolve
structurally; other queries blend lexical and vector similarity.

Examples:
  amanlex search "theft of a phone"
  amanlex search "Article 308" --corpus entries.json
  amanlex search "bail" --type rule_of_court -n 5
  amanlex search "estafa" --format json --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	opts.filterOptions.register(cmd)
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default search.default_limit)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show the score breakdown for each result")

	return cmd
}

// searchJSON is the JSON output of search. Explanations are included with
// --explain.
type searchJSON struct {
	api.SearchResponse
	Explain map[string]string `json:"explain,omitempty"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}
	if opts.limit < 0 {
		return fmt.Errorf("--limit must be non-negative")
	}
	filters, err := opts.parse(cmd)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer setupCommandLogging(cfg.Server.LogLevel)()

	a, err := newApp(ctx, appOptions{persistMetrics: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	resp, err := a.engine.Search(ctx, search.Query{Text: query, Filters: filters, Limit: opts.limit})
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Int("results", len(resp.Results)),
		slog.String("outcome", string(resp.Decision.Outcome)))

	var explain func(*search.Candidate) string
	if opts.explain {
		analysis := a.engine.Analyze(query)
		explain = func(c *search.Candidate) string { return a.engine.Explain(analysis, c) }
	}

	if opts.format == "json" {
		out := searchJSON{SearchResponse: api.NewSearchResponse(resp)}
		if explain != nil {
			out.Explain = make(map[string]string, len(resp.Results))
			for _, c := range resp.Results {
				out.Explain[c.Entry.ID] = explain(c)
			}
		}
		return encodeJSON(cmd, out)
	}

	output.New(cmd.OutOrStdout()).Results(resp, explain)
	return nil
}
