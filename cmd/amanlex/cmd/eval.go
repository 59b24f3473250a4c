package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlex/internal/eval"
	"github.com/Aman-CERP/amanlex/internal/output"
)

// evalOptions holds the flags shared by eval, bootstrap and misses.
type evalOptions struct {
	gold    string
	format  string
	k       int
	workers int
}

func (o *evalOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.gold, "gold", "", "Gold set JSON file")
	cmd.Flags().IntVar(&o.workers, "workers", runtime.NumCPU(), "Concurrent gold queries")
	_ = cmd.MarkFlagRequired("gold")
}

// newHarness loads the stack and the gold set for an evaluation command.
func newHarness(ctx context.Context, o evalOptions) (*app, *eval.Harness, []eval.GoldRecord, error) {
	gold, err := eval.LoadGold(o.gold)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return nil, nil, nil, err
	}
	h := eval.NewHarness(a.engine, eval.WithWorkers(o.workers), eval.WithLogger(a.logger))
	return a, h, gold, nil
}

func encodeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q (supported: text, json)", format)
	}
	return nil
}

// evalJSON is the JSON output of eval.
type evalJSON struct {
	*eval.Result
	Misses int `json:"misses"`
	K      int `json:"k"`
}

func newEvalCmd() *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure ranking quality against a gold set",
		Long: `Run every labeled gold query and report mean precision@1,
precision@3 and nDCG@10. Records without ideal_top are skipped; fill them
with 'amanlex bootstrap'.

Examples:
  amanlex eval --corpus entries.json --gold gold.json
  amanlex eval --corpus entries.json --gold gold.json --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd.Context(), cmd, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&opts.k, "k", eval.NDCGDepth, "Depth for the miss count")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runEval(ctx context.Context, cmd *cobra.Command, opts evalOptions) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}
	a, h, gold, err := newHarness(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := h.Evaluate(ctx, gold)
	if err != nil {
		return err
	}
	misses, err := h.Misses(ctx, gold, opts.k)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return encodeJSON(cmd, evalJSON{Result: res, Misses: len(misses), K: opts.k})
	}
	out := output.New(cmd.OutOrStdout())
	out.Metrics(res)
	if len(misses) > 0 {
		out.Warningf("%d queries missed expected entries in the top %d (see 'amanlex misses')", len(misses), opts.k)
	}
	return nil
}

func newBootstrapCmd() *cobra.Command {
	var opts evalOptions
	var outPath string
	var top int

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Fill unlabeled gold records from the current ranking",
		Long: `Label gold records that have no ideal_top with the pipeline's own
top results. Curated records are never changed. Review the output before
treating it as ground truth.

Examples:
  amanlex bootstrap --corpus entries.json --gold gold.json
  amanlex bootstrap --corpus entries.json --gold gold.json --out gold.labeled.json --top 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, h, gold, err := newHarness(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			records, filled, err := h.Bootstrap(cmd.Context(), gold, top)
			if err != nil {
				return err
			}
			dest := outPath
			if dest == "" {
				dest = opts.gold
			}
			if err := eval.WriteGold(dest, records); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Labeled %d of %d records, wrote %s", filled, len(records), dest)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: overwrite --gold)")
	cmd.Flags().IntVar(&top, "top", 3, "Number of ids written to each record")

	return cmd
}

func newMissesCmd() *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "misses",
		Short: "List gold queries whose expected entries fell out of the top k",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			a, h, gold, err := newHarness(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			misses, err := h.Misses(cmd.Context(), gold, opts.k)
			if err != nil {
				return err
			}
			if opts.format == "json" {
				if misses == nil {
					misses = []eval.Miss{}
				}
				return encodeJSON(cmd, misses)
			}
			output.New(cmd.OutOrStdout()).Misses(misses, opts.k)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&opts.k, "k", eval.NDCGDepth, "Depth an expected entry must reach")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}
