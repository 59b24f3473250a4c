package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlex/internal/output"
	"github.com/Aman-CERP/amanlex/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded query statistics",
		Long: `Display query telemetry recorded by search, ask and serve:
  - Total queries and refusal rate
  - Query type distribution (lexical/semantic/mixed)
  - Gate outcomes
  - Top query terms
  - Recently refused queries
  - Latency distribution`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput, days)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")

	return cmd
}

// StatsOutput is the JSON output of stats.
type StatsOutput struct {
	TotalQueries        int64                 `json:"total_queries"`
	RefusalPct          float64               `json:"refusal_pct"`
	QueryTypeCounts     map[string]int64      `json:"query_type_counts"`
	OutcomeCounts       map[string]int64      `json:"outcome_counts"`
	TopTerms            []telemetry.TermCount `json:"top_terms"`
	RefusedQueries      []string              `json:"refused_queries"`
	LatencyDistribution map[string]int64      `json:"latency_distribution"`
}

func runStats(cmd *cobra.Command, jsonOutput bool, days int) error {
	if days <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	path := metricsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no query metrics in %s\nRun 'amanlex search' or 'amanlex serve' first", flags.configDir)
	}

	s, err := telemetry.OpenSQLiteMetricsStore(path)
	if err != nil {
		return fmt.Errorf("failed to open metrics store: %w", err)
	}
	defer func() { _ = s.Close() }()

	stats, err := collectStats(s, days, time.Now())
	if err != nil {
		return fmt.Errorf("failed to get query stats: %w", err)
	}

	if jsonOutput {
		return encodeJSON(cmd, stats)
	}
	printStats(output.New(cmd.OutOrStdout()), stats, days)
	return nil
}

func collectStats(s *telemetry.SQLiteMetricsStore, days int, now time.Time) (*StatsOutput, error) {
	to := now.Format("2006-01-02")
	from := now.AddDate(0, 0, -(days - 1)).Format("2006-01-02")

	types, err := s.GetQueryTypeCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get query types: %w", err)
	}
	outcomes, err := s.GetOutcomeCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get outcomes: %w", err)
	}
	latency, err := s.GetLatencyCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get latency: %w", err)
	}
	terms, err := s.GetTopTerms(10)
	if err != nil {
		return nil, fmt.Errorf("get top terms: %w", err)
	}
	refused, err := s.GetRefusedQueries(10)
	if err != nil {
		return nil, fmt.Errorf("get refused queries: %w", err)
	}

	out := &StatsOutput{
		QueryTypeCounts:     make(map[string]int64, len(types)),
		OutcomeCounts:       outcomes,
		TopTerms:            terms,
		RefusedQueries:      refused,
		LatencyDistribution: make(map[string]int64, len(latency)),
	}
	for qt, n := range types {
		out.QueryTypeCounts[string(qt)] = n
		out.TotalQueries += n
	}
	for b, n := range latency {
		out.LatencyDistribution[string(b)] = n
	}
	if out.OutcomeCounts == nil {
		out.OutcomeCounts = map[string]int64{}
	}
	if out.TopTerms == nil {
		out.TopTerms = []telemetry.TermCount{}
	}
	if out.RefusedQueries == nil {
		out.RefusedQueries = []string{}
	}
	if out.TotalQueries > 0 {
		out.RefusalPct = float64(outcomes["refuse"]) / float64(out.TotalQueries) * 100
	}
	return out, nil
}

func printStats(w *output.Writer, s *StatsOutput, days int) {
	w.Header(fmt.Sprintf("Query statistics (last %d days)", days))
	w.Text(fmt.Sprintf("Total queries: %d", s.TotalQueries))
	w.Text(fmt.Sprintf("Refused:       %.1f%%", s.RefusalPct))
	w.Newline()

	printCounts(w, "Query types:", s.QueryTypeCounts)
	printCounts(w, "Gate outcomes:", s.OutcomeCounts)
	printCounts(w, "Latency:", s.LatencyDistribution)

	if len(s.TopTerms) > 0 {
		w.Text("Top query terms:")
		for i, tc := range s.TopTerms {
			w.Text(fmt.Sprintf("  %d. %s (%d)", i+1, tc.Term, tc.Count))
		}
	} else {
		w.Text("Top query terms: (none recorded yet)")
	}
	w.Newline()

	if len(s.RefusedQueries) > 0 {
		w.Text("Recently refused:")
		for _, q := range s.RefusedQueries {
			w.Text(fmt.Sprintf("  - %q", q))
		}
	} else {
		w.Text("Recently refused: (none)")
	}
}

func printCounts(w *output.Writer, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.Text(title)
	for _, k := range keys {
		w.Text(fmt.Sprintf("  %s: %d", k, counts[k]))
	}
	w.Newline()
}
