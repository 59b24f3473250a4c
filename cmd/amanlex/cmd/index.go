package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlex/internal/index"
	"github.com/Aman-CERP/amanlex/internal/output"
)

func newIndexCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the indexes for the corpus and check them",
		Long: `Load the corpus, build the lexical and vector indexes, and verify that
they cover every entry. Use it to validate a corpus export or warm a
persistent backend (sqlite_path, pgvector) before serving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// indexJSON is the JSON output of index.
type indexJSON struct {
	Entries         int      `json:"entries"`
	LexicalDocs     int      `json:"lexical_docs"`
	Precomputed     int      `json:"precomputed"`
	Embedded        int      `json:"embedded"`
	Skipped         int      `json:"skipped"`
	Warnings        []string `json:"warnings"`
	Inconsistencies []string `json:"inconsistencies"`
	DurationMS      int64    `json:"duration_ms"`
}

func runIndex(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer setupCommandLogging(cfg.Server.LogLevel)()

	out := output.New(cmd.OutOrStdout())
	var progress func(index.Progress)
	if !jsonOutput {
		progress = func(p index.Progress) {
			out.Progress(p.Current, p.Total, string(p.Stage))
		}
	}

	a, err := newApp(ctx, appOptions{progress: progress})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	check, err := index.NewConsistencyChecker(a.lexical, a.vector).Check(ctx, a.corpus)
	if err != nil {
		return fmt.Errorf("consistency check: %w", err)
	}

	r := a.build
	issues := make([]string, 0, len(check.Inconsistencies))
	for _, inc := range check.Inconsistencies {
		issues = append(issues, fmt.Sprintf("%s %s %s", inc.Type, inc.EntryID, inc.Details))
	}

	if jsonOutput {
		warnings := r.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		return encodeJSON(cmd, indexJSON{
			Entries:         r.Entries,
			LexicalDocs:     r.LexicalDocs,
			Precomputed:     r.Precomputed,
			Embedded:        r.Embedded,
			Skipped:         r.Skipped,
			Warnings:        warnings,
			Inconsistencies: issues,
			DurationMS:      r.Duration.Milliseconds(),
		})
	}

	out.Successf("Indexed %d entries in %s", r.Entries, r.Duration.Round(1e6))
	out.Statusf("📚", "lexical documents: %d", r.LexicalDocs)
	out.Statusf("🧭", "vectors: %d (%d from corpus, %d embedded, %d skipped)",
		r.Vectors(), r.Precomputed, r.Embedded, r.Skipped)
	for _, w := range r.Warnings {
		out.Warning(w)
	}
	if check.OK() {
		out.Success("Indexes are consistent with the corpus")
		return nil
	}
	for _, issue := range issues {
		out.Error(issue)
	}
	return fmt.Errorf("%d index inconsistencies", len(issues))
}
