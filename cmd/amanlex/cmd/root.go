// Package cmd provides the CLI commands for amanlex.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/logging"
	"github.com/Aman-CERP/amanlex/internal/profiling"
	"github.com/Aman-CERP/amanlex/pkg/version"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configDir  string
	corpusPath string
	debug      bool
	profile    profiling.Options
}

var (
	flags          globalFlags
	session        *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for the amanlex CLI.
func NewRootCmd() *cobra.Command {
	flags = globalFlags{}

	cmd := &cobra.Command{
		Use:   "amanlex",
		Short: "Hybrid retrieval and grounded answers over a legal knowledge corpus",
		Long: `amanlex ranks legal provisions (statutes, rules of court, jurisprudence,
advisories) for natural-language questions and citation lookups, and
answers only when the retrieved evidence is strong enough.

It serves the same pipeline over HTTP and MCP, and measures it against a
labeled gold set.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("amanlex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.configDir, "config", ".", "Directory containing .amanlex.yaml and .env")
	cmd.PersistentFlags().StringVar(&flags.corpusPath, "corpus", "", "Corpus JSON file (overrides corpus.path)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging to ~/.amanlex/logs/")

	cmd.PersistentFlags().StringVar(&flags.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&flags.profile.Mem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&flags.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newBootstrapCmd())
	cmd.AddCommand(newMissesCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts profiling and debug logging if flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if flags.debug {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Short()))
	}

	s, err := profiling.Start(flags.profile)
	if err != nil {
		return err
	}
	session = s
	return nil
}

// stopProfilingAndLogging stops profiling and logging.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if session != nil {
		err = session.Stop()
		session = nil
	}

	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints failures the way the CLI
// formats errors.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		var ae *amanerrors.AmanError
		if errors.As(err, &ae) {
			_, _ = fmt.Fprint(os.Stderr, amanerrors.FormatForCLI(ae))
		} else {
			_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}
