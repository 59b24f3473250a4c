package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlex/internal/config"
	"github.com/Aman-CERP/amanlex/internal/preflight"
)

type doctorOptions struct {
	verbose bool
	json    bool
	timeout time.Duration
}

// doctorJSON is the machine-readable doctor report.
type doctorJSON struct {
	Status   string                  `json:"status"`
	Checks   []preflight.CheckResult `json:"checks"`
	Warnings []string                `json:"warnings,omitempty"`
	Errors   []string                `json:"errors,omitempty"`
}

func newDoctorCmd() *cobra.Command {
	var opts doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, corpus and model reachability",
		Long: `Run the checks serve performs on its first start.

Checks:
  - Configuration validity
  - Corpus file loads and has entries
  - Data directory is writable with 100MB free
  - File descriptor limit (256 minimum)
  - Embedding and generation models are reachable

Model checks are warnings: search falls back to lexical retrieval and
answers fall back to extractive text.`,
		Example: `  amanlex doctor
  amanlex doctor --verbose
  amanlex doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Timeout for each model probe")

	return cmd
}

func runDoctor(cmd *cobra.Command, opts doctorOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	defer setupCommandLogging(cfg.Server.LogLevel)()

	checker := preflight.New(
		preflight.WithVerbose(opts.verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithProbeTimeout(opts.timeout),
	)
	target, cleanup := preflightTarget(ctx, cfg, path)
	defer cleanup()

	results := checker.RunAll(ctx, target)
	failed := checker.HasCriticalFailures(results)
	if !failed {
		if err := preflight.MarkPassed(target.DataDir, path, time.Now()); err != nil {
			slog.Debug("failed to write preflight marker", slog.String("error", err.Error()))
		}
	}

	if opts.json {
		errs, warnings := checker.Problems(results)
		if err := encodeJSON(cmd, doctorJSON{
			Status:   checker.SummaryStatus(results),
			Checks:   results,
			Warnings: warnings,
			Errors:   errs,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if failed {
		return fmt.Errorf("system check failed")
	}
	return nil
}

// preflightTarget builds the check target for cfg, connecting the
// configured models so their reachability can be probed.
func preflightTarget(ctx context.Context, cfg *config.Config, corpusPath string) (preflight.Target, func()) {
	target := preflight.Target{
		DataDir:    filepath.Join(flags.configDir, dataDirName),
		Config:     cfg,
		CorpusPath: corpusPath,
		Models:     map[string]preflight.Probe{},
	}
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if cfg.Validate() != nil {
		return target, cleanup
	}

	if e, err := newEmbedder(ctx, cfg); err != nil {
		slog.Debug("embedder not created", slog.String("error", err.Error()))
		target.Models["embedder"] = nil
	} else {
		target.Models["embedder"] = e
		closers = append(closers, e.Close)
	}

	if gen, err := newGenerator(ctx, cfg); err != nil {
		slog.Debug("generator not created", slog.String("error", err.Error()))
		target.Models["generator"] = nil
	} else if gen != nil {
		target.Models["generator"] = gen
		closers = append(closers, gen.Close)
	}
	return target, cleanup
}
