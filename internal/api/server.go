// Package api serves the retrieval and answer pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/amanlex/internal/answer"
	"github.com/Aman-CERP/amanlex/internal/corpus"
	"github.com/Aman-CERP/amanlex/internal/generate"
	"github.com/Aman-CERP/amanlex/internal/telemetry"
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string, filters corpus.Filters) (*answer.Answer, error)
	AskStream(ctx context.Context, question string, filters corpus.Filters) (*answer.Answer, *generate.Stream, error)
}

// Config controls the HTTP listener and middleware.
type Config struct {
	Addr            string
	RateLimitRPS    float64
	RateLimitBurst  int
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	Version         string
}

// Server is the HTTP front end.
type Server struct {
	cfg        Config
	searcher   answer.Searcher
	asker      Asker
	logger     *slog.Logger
	collectors *telemetry.Collectors
	gatherer   prometheus.Gatherer
	limiter    RateLimiter
	status     func() map[string]any
	version    string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCollectors records HTTP metrics and serves gatherer on /metrics.
func WithCollectors(c *telemetry.Collectors, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.collectors = c
		s.gatherer = g
	}
}

// WithRateLimiter replaces the per-client token bucket.
func WithRateLimiter(l RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithStatus adds fields to the /healthz body.
func WithStatus(fn func() map[string]any) Option {
	return func(s *Server) { s.status = fn }
}

// New creates a server over searcher and asker.
func New(cfg Config, searcher answer.Searcher, asker Asker, opts ...Option) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		searcher: searcher,
		asker:    asker,
		logger:   slog.Default(),
		version:  cfg.Version,
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = NewClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		Recovery(s.logger),
		RequestID(),
		CORS(s.cfg.CORSOrigins),
		AccessLog(s.logger),
		Metrics(s.collectors),
	)

	r.GET("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1", RateLimit(s.limiter))
	v1.POST("/ask", s.handleAsk)
	v1.POST("/ask/stream", s.handleAskStream)
	v1.GET("/search", s.handleSearch)
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
