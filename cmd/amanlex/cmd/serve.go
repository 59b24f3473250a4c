package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanlex/internal/api"
	"github.com/Aman-CERP/amanlex/internal/config"
	"github.com/Aman-CERP/amanlex/internal/logging"
	"github.com/Aman-CERP/amanlex/internal/mcp"
	"github.com/Aman-CERP/amanlex/internal/preflight"
	"github.com/Aman-CERP/amanlex/pkg/version"
)

type serveOptions struct {
	httpAddr  string
	mcp       bool
	skipCheck bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retrieval pipeline over HTTP or MCP",
		Long: `Serve the retrieval pipeline.

By default an HTTP server exposes POST /v1/ask, POST /v1/ask/stream,
GET /v1/search, /healthz and /metrics.

With --mcp the server speaks the Model Context Protocol over stdio and logs
only to ~/.amanlex/logs/. Pass --http as well to run both.

Examples:
  amanlex serve --corpus entries.json
  amanlex serve --http :9090
  amanlex serve --mcp --corpus entries.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			httpEnabled := !opts.mcp || cmd.Flags().Changed("http")
			return runServe(cmd.Context(), opts, httpEnabled)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http", "", "HTTP listen address (default server.http_addr)")
	cmd.Flags().BoolVar(&opts.mcp, "mcp", false, "Serve MCP over stdio")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip the first-start system check")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions, httpEnabled bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, corpusPath, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries JSON-RPC in MCP mode, so logs go to the file only.
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if opts.mcp {
		logCfg = logging.StdioConfig(cfg.Server.LogLevel)
	}
	if !flags.debug {
		logger, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		defer cleanup()
		slog.SetDefault(logger)
	}

	if opts.mcp {
		verifyStdinForMCP()
	}

	if !opts.skipCheck {
		if err := firstStartCheck(ctx, cfg, corpusPath); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, appOptions{generator: true, persistMetrics: true, collectors: httpEnabled})
	if err != nil {
		slog.Error("startup failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	if cfg.Corpus.Watch {
		if err := a.watch(ctx); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if httpEnabled {
		addr := opts.httpAddr
		if addr == "" {
			addr = a.cfg.Server.HTTPAddr
		}
		srv := api.New(api.Config{
			Addr:           addr,
			RateLimitRPS:   a.cfg.Server.RateLimitRPS,
			RateLimitBurst: a.cfg.Server.RateLimitBurst,
			CORSOrigins:    a.cfg.Server.CORSOrigins,
			Version:        version.Short(),
		}, a.engine, a.answers,
			api.WithLogger(a.logger),
			api.WithCollectors(a.collectors, a.registry),
			api.WithStatus(a.status),
		)
		g.Go(func() error { return srv.Run(ctx) })
	}

	if opts.mcp {
		srv, err := mcp.NewServer(a.engine, a.answers, a.engine,
			mcp.WithLogger(a.logger),
			mcp.WithQueryMetrics(a.metrics),
		)
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Serve(ctx, "stdio") })
	}

	return g.Wait()
}

// firstStartCheck runs the doctor checks silently until they pass once
// for the configured corpus.
func firstStartCheck(ctx context.Context, cfg *config.Config, corpusPath string) error {
	dataDir := filepath.Join(flags.configDir, dataDirName)
	if !preflight.NeedsCheck(dataDir, corpusPath) {
		return nil
	}

	checker := preflight.New(preflight.WithOutput(io.Discard))
	target, cleanup := preflightTarget(ctx, cfg, corpusPath)
	defer cleanup()

	results := checker.RunAll(ctx, target)
	errs, warnings := checker.Problems(results)
	for _, w := range warnings {
		slog.Warn("system check", slog.String("warning", w))
	}
	if len(errs) > 0 {
		slog.Error("system check failed, run 'amanlex doctor' for diagnostics")
		return fmt.Errorf("system check failed: %s", strings.Join(errs, "; "))
	}

	if err := preflight.MarkPassed(dataDir, corpusPath, time.Now()); err != nil {
		slog.Debug("failed to write preflight marker", slog.String("error", err.Error()))
	}
	return nil
}

// verifyStdinForMCP warns when stdin is a terminal; an MCP client is
// expected to own the pipe.
func verifyStdinForMCP() {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		slog.Warn("stdin is a terminal; MCP expects a client on stdio")
	}
}
