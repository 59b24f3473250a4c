package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlex/internal/api"
	"github.com/Aman-CERP/amanlex/internal/output"
)

type askOptions struct {
	filterOptions
	stream bool
	format string
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a legal question from the corpus",
		Long: `Answer a question with cited sources.

When no entry is relevant enough the answer is "I don't know." and the
closest entries are listed instead. Without a configured generation
provider the answer is taken from the top entry's summary.

Examples:
  amanlex ask "What is the penalty for theft?"
  amanlex ask "Can I be arrested without a warrant?" --stream`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	opts.filterOptions.register(cmd)
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Print the answer as it is generated")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts askOptions) error {
	if err := checkFormat(opts.format); err != nil {
		return err
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

	a, err := newApp(ctx, appOptions{generator: true, persistMetrics: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if cfg.Generation.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Generation.Timeout)
		defer cancel()
	}

	out := output.New(cmd.OutOrStdout())

	if opts.stream && opts.format == "text" {
		ans, stream, err := a.answers.AskStream(ctx, question, filters)
		if err != nil {
			return err
		}
		for stream.Next() {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), stream.Fragment())
		}
		_ = stream.Close()
		if err := stream.Err(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
		out.Sources(ans.Sources)
		return nil
	}

	ans, err := a.answers.Ask(ctx, question, filters)
	if err != nil {
		return err
	}
	if opts.format == "json" {
		return encodeJSON(cmd, api.NewAskResponse(ans))
	}
	out.Answer(ans)
	return nil
}
