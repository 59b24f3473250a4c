package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aman-CERP/amanlex/internal/answer"
	"github.com/Aman-CERP/amanlex/internal/cache"
	"github.com/Aman-CERP/amanlex/internal/config"
	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/embed"
	"github.com/Aman-CERP/amanlex/internal/generate"
	"github.com/Aman-CERP/amanlex/internal/index"
	"github.com/Aman-CERP/amanlex/internal/logging"
	"github.com/Aman-CERP/amanlex/internal/search"
	"github.com/Aman-CERP/amanlex/internal/store"
	"github.com/Aman-CERP/amanlex/internal/telemetry"
	"github.com/Aman-CERP/amanlex/internal/watcher"
)

// dataDirName holds per-project state such as the query metrics database.
const dataDirName = ".amanlex"

// appOptions selects the optional parts of the stack a command needs.
type appOptions struct {
	// generator enables answer generation. Commands that only rank skip
	// the model connection.
	generator bool
	// persistMetrics records queries to the metrics database so that
	// `amanlex stats` can report them.
	persistMetrics bool
	// collectors registers Prometheus collectors.
	collectors bool
	// progress receives index build progress.
	progress func(index.Progress)
}

// app is the assembled retrieval stack for one command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	corpusPath string
	corpus     *corpus.Corpus

	embedder  embed.Embedder
	lexical   store.LexicalIndex
	vector    store.VectorIndex
	builder   *index.Builder
	build     *index.BuildResult
	generator generate.Generator

	engine     *search.Engine
	answers    *answer.Service
	metrics    *telemetry.QueryMetrics
	collectors *telemetry.Collectors
	registry   *prometheus.Registry

	closers []func() error
}

// loadConfig reads the configuration for the --config directory and
// applies the --corpus override. A corpus path from a config file is
// relative to that directory.
func loadConfig() (*config.Config, string, error) {
	cfg, err := config.Load(flags.configDir)
	if err != nil {
		return nil, "", err
	}
	path := cfg.Corpus.Path
	if flags.corpusPath != "" {
		path = flags.corpusPath
	} else if !filepath.IsAbs(path) && os.Getenv("AMANLEX_CORPUS") == "" {
		path = filepath.Join(flags.configDir, path)
	}
	cfg.Corpus.Path = path
	return cfg, path, nil
}

// metricsPath is the query metrics database for the --config directory.
func metricsPath() string {
	return filepath.Join(flags.configDir, dataDirName, "metrics.db")
}

// newApp loads the corpus, builds the indexes and wires the engine.
func newApp(ctx context.Context, opts appOptions) (_ *app, err error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: slog.Default(), corpusPath: path}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.corpus, err = corpus.LoadFile(path)
	if err != nil {
		return nil, err
	}

	a.embedder, err = newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.embedder.Close)

	if opts.generator {
		if err = a.setupGenerator(ctx); err != nil {
			return nil, err
		}
	}

	storeCfg := store.Config{
		Lexical:    store.LexicalBackend(cfg.Search.LexicalBackend),
		SQLitePath: cfg.Search.SQLitePath,
		Vector:     store.VectorBackend(cfg.Search.VectorBackend),
		Dimensions: a.embedder.Dimensions(),
		PgVector: store.PgVectorConfig{
			DSN:        cfg.Postgres.DSN,
			Table:      cfg.Postgres.Table,
			Dimensions: a.embedder.Dimensions(),
		},
	}
	if a.lexical, err = store.NewLexicalIndex(storeCfg); err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}
	if a.vector, err = store.NewVectorIndex(ctx, storeCfg); err != nil {
		if a.lexical != nil {
			_ = a.lexical.Close()
		}
		return nil, fmt.Errorf("create vector index: %w", err)
	}

	a.builder = index.NewBuilder(a.lexical, a.vector, a.embedder, index.BuilderConfig{
		BatchSize:  cfg.Embeddings.BatchSize,
		OnProgress: opts.progress,
	}, a.logger)

	engineOpts := []search.Option{
		search.WithLogger(a.logger),
		search.WithLexicalIndex(a.lexical),
		search.WithVector(a.embedder, a.vector),
	}

	if r := a.newReranker(ctx); r != nil {
		engineOpts = append(engineOpts, search.WithReranker(r))
	}

	if opts.collectors {
		a.registry = prometheus.NewRegistry()
		a.collectors = telemetry.NewCollectors(a.registry)
		engineOpts = append(engineOpts, search.WithCollectors(a.collectors))
	}

	if opts.persistMetrics {
		a.metrics = a.openQueryMetrics()
		engineOpts = append(engineOpts, search.WithQueryMetrics(a.metrics))
	}

	a.engine = search.New(nil, cfg.Engine(), engineOpts...)
	a.closers = append(a.closers, a.engine.Close)

	a.build, err = a.builder.Build(ctx, a.corpus)
	if err != nil {
		return nil, fmt.Errorf("build indexes: %w", err)
	}
	a.engine.SetCorpus(a.corpus)

	answerOpts := []answer.Option{answer.WithLogger(a.logger)}
	if a.generator != nil {
		answerOpts = append(answerOpts, answer.WithGenerator(a.generator))
	}
	a.answers = answer.NewService(a.engine, answerOpts...)

	a.logger.Info("corpus loaded",
		slog.String("path", path),
		slog.Int("entries", a.corpus.Len()),
		slog.Int("vectors", a.build.Vectors()),
		slog.String("embedder", a.embedder.ModelName()))
	return a, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	e, err := embed.NewEmbedder(ctx, embed.FactoryConfig{
		Provider:      embed.ParseProvider(cfg.Embeddings.Provider),
		Model:         cfg.Embeddings.Model,
		Dimensions:    cfg.Embeddings.Dimensions,
		Host:          cfg.Embeddings.OllamaHost,
		CacheCapacity: cfg.Cache.EmbeddingCapacity,
		CacheTTL:      cfg.Cache.EmbeddingTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return e, nil
}

// newGenerator returns nil when generation.provider is "none".
func newGenerator(ctx context.Context, cfg *config.Config) (generate.Generator, error) {
	g := cfg.Generation
	gen, err := generate.NewGenerator(ctx, generate.FactoryConfig{
		Provider: generate.ParseProvider(g.Provider),
		Model:    g.Model,
		Host:     g.Host,
		Options:  generate.Options{Temperature: g.Temperature, MaxTokens: g.MaxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	return gen, nil
}

// setupGenerator connects the configured model and puts the answer cache
// in front of it. Redis shares the cache across replicas when configured.
func (a *app) setupGenerator(ctx context.Context) error {
	gen, err := newGenerator(ctx, a.cfg)
	if err != nil {
		return err
	}
	if gen == nil {
		return nil
	}

	var answerCache cache.Store
	if addr := a.cfg.Cache.RedisAddr; addr != "" {
		rs, err := cache.NewRedisStore(ctx, addr, a.cfg.Cache.AnswerTTL)
		if err != nil {
			a.logger.Warn("redis answer cache unavailable, using memory",
				slog.String("addr", addr), slog.String("error", err.Error()))
		} else {
			answerCache = rs
			a.closers = append(a.closers, rs.Close)
		}
	}
	if answerCache == nil {
		answerCache = cache.NewMemoryStore(a.cfg.Cache.AnswerCapacity, a.cfg.Cache.AnswerTTL)
	}

	a.generator = generate.NewCachedGenerator(gen, answerCache, a.logger)
	a.closers = append(a.closers, a.generator.Close)
	return nil
}

// newReranker returns the reranker for reranker.strategy. A remote
// reranker that cannot start is logged and skipped; ranking continues
// without it.
func (a *app) newReranker(ctx context.Context) search.Reranker {
	rc := a.cfg.Reranker
	switch strings.ToLower(rc.Strategy) {
	case "local":
		return search.NewLocalReranker(0)
	case "llm":
		if a.generator == nil {
			a.logger.Debug("llm reranker needs a generator, reranking disabled")
			return nil
		}
		return search.NewLLMReranker(a.generator)
	case "cross_encoder":
		r, err := search.NewCrossEncoderReranker(ctx, search.CrossEncoderConfig{
			Endpoint: rc.Endpoint,
			Timeout:  rc.Timeout,
		})
		if err != nil {
			a.logger.Warn("cross-encoder reranker unavailable, reranking disabled",
				slog.String("endpoint", rc.Endpoint), slog.String("error", err.Error()))
			return nil
		}
		return r
	default:
		return nil
	}
}

// openQueryMetrics opens the persistent query metrics. When the database
// cannot be opened, metrics are kept in memory for the process lifetime.
func (a *app) openQueryMetrics() *telemetry.QueryMetrics {
	path := metricsPath()
	var qs telemetry.QueryMetricsStore
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		s, err := telemetry.OpenSQLiteMetricsStore(path)
		if err != nil {
			a.logger.Warn("query metrics not persisted",
				slog.String("path", path), slog.String("error", err.Error()))
		} else {
			qs = s
		}
	}
	m := telemetry.NewQueryMetrics(qs)
	a.closers = append(a.closers, m.Close)
	return m
}

// watch reloads the corpus whenever its file changes, until ctx is done.
func (a *app) watch(ctx context.Context) error {
	w, err := watcher.New(a.corpusPath, watcher.DefaultOptions())
	if err != nil {
		return fmt.Errorf("watch corpus: %w", err)
	}
	r := index.NewReloader(index.ReloaderConfig{
		Path:    a.corpusPath,
		Target:  a.engine,
		Builder: a.builder,
		Logger:  a.logger,
	})
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("corpus watcher stopped", slog.String("error", err.Error()))
		}
	}()
	go r.Watch(ctx, w)
	a.closers = append(a.closers, w.Stop)
	return nil
}

// status reports corpus and index state for health endpoints.
func (a *app) status() map[string]any {
	c := a.engine.Corpus()
	st := map[string]any{
		"corpus_path": a.corpusPath,
		"embedder":    a.embedder.ModelName(),
		"reranker":    a.cfg.Reranker.Strategy,
	}
	if c != nil {
		st["entries"] = c.Len()
	}
	if a.build != nil {
		st["vectors"] = a.build.Vectors()
	}
	if a.metrics != nil {
		st["refusal_rate"] = a.metrics.Snapshot().RefusalRate()
	}
	return st
}

// Close releases everything in reverse order of creation.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// setupCommandLogging sends logs to the log file so they stay out of
// command output. With --debug the debug logger is already installed.
func setupCommandLogging(level string) func() {
	if flags.debug {
		return func() {}
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.FilePath = logging.DefaultLogPath()
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return func() {}
	}
	prev := slog.Default()
	slog.SetDefault(logger)
	return func() {
		slog.SetDefault(prev)
		cleanup()
	}
}
