package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/pkg/version"
)

const (
	DefaultOllamaHost = "http://localhost:11434"
	// DefaultOllamaModel is a general prose model; statutes are not code.
	DefaultOllamaModel   = "nomic-embed-text"
	OllamaConnectTimeout = 5 * time.Second
	OllamaPoolSize       = 4
)

// FallbackOllamaModels are tried in order when the configured model is not
// installed.
var FallbackOllamaModels = []string{"embeddinggemma", "mxbai-embed-large"}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host           string
	Model          string
	FallbackModels []string
	// Dimensions skips the probe embedding when non-zero.
	Dimensions int
	// Timeout bounds one /api/embed request, not the whole retry loop.
	Timeout    time.Duration
	MaxRetries int
	PoolSize   int
	// SkipHealthCheck skips model resolution at construction.
	SkipHealthCheck bool
	Logger          *slog.Logger
}

// DefaultOllamaConfig returns the local-server defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		FallbackModels: FallbackOllamaModels,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		PoolSize:       OllamaPoolSize,
	}
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	d := DefaultOllamaConfig()
	c.Host = strings.TrimRight(c.Host, "/")
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.FallbackModels == nil {
		c.FallbackModels = d.FallbackModels
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	// Input is a string for one text, an array for a batch.
	Input any `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ollamaStatusError is a non-200 reply from the server.
type ollamaStatusError struct {
	path   string
	status int
	body   string
}

func (e *ollamaStatusError) Error() string {
	return fmt.Sprintf("ollama %s: status %d: %s", e.path, e.status, strings.TrimSpace(e.body))
}

// retryableOllama retries transport failures, 429 and 5xx. Other statuses
// and caller cancellation are final.
func retryableOllama(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *ollamaStatusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	return true
}

// matchModel returns the installed name for the first candidate present,
// comparing case-insensitively and falling back to the untagged base name.
func matchModel(installed, candidates []string) (string, bool) {
	byName := make(map[string]string, len(installed)*2)
	for _, name := range installed {
		lower := strings.ToLower(name)
		byName[lower] = name
		base, _, _ := strings.Cut(lower, ":")
		if _, ok := byName[base]; !ok {
			byName[base] = name
		}
	}
	for _, c := range candidates {
		lower := strings.ToLower(c)
		if actual, ok := byName[lower]; ok {
			return actual, true
		}
		base, _, _ := strings.Cut(lower, ":")
		if actual, ok := byName[base]; ok {
			return actual, true
		}
	}
	return "", false
}

// OllamaEmbedder embeds text through a local Ollama server.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	cfg       OllamaConfig
	model     string
	dims      int
	closed    atomic.Bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder resolves the model against the installed list and
// probes its dimension unless the config already fixes them.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	cfg = cfg.withDefaults()
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}
	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		cfg:       cfg,
		model:     cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		if err := e.resolve(ctx); err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}
	}
	if e.dims == 0 {
		e.dims = DefaultDimensions
	}
	return e, nil
}

func (e *OllamaEmbedder) resolve(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, OllamaConnectTimeout)
	defer cancel()

	installed, err := e.installed(ctx)
	if err != nil {
		return amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "cannot reach ollama", err).
			WithDetail("host", e.cfg.Host).
			WithSuggestion("Start Ollama with 'ollama serve'")
	}
	candidates := append([]string{e.cfg.Model}, e.cfg.FallbackModels...)
	model, ok := matchModel(installed, candidates)
	if !ok {
		return amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable,
			fmt.Sprintf("no embedding model installed (tried %s)", strings.Join(candidates, ", ")), nil).
			WithSuggestion("Run 'ollama pull " + e.cfg.Model + "'")
	}
	e.model = model

	if e.dims == 0 {
		vecs, err := e.embedOnce(ctx, []string{"dimension probe"})
		if err != nil {
			return amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "probe embedding dimension", err)
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			return amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "probe returned no vector", nil)
		}
		e.dims = len(vecs[0])
	}
	return nil
}

// call sends one JSON request. A nil in makes a GET.
func (e *OllamaEmbedder) call(ctx context.Context, path string, in, out any) error {
	method, body := http.MethodGet, io.Reader(nil)
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		method, body = http.MethodPost, bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.cfg.Host+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ollamaStatusError{path: path, status: resp.StatusCode, body: string(msg)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (e *OllamaEmbedder) installed(ctx context.Context) ([]string, error) {
	var tags ollamaTagsResponse
	if err := e.call(ctx, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	req := ollamaEmbedRequest{Model: e.model, Input: texts}
	if len(texts) == 1 {
		req.Input = texts[0]
	}
	var resp ollamaEmbedResponse
	if err := e.call(ctx, "/api/embed", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, v := range resp.Embeddings {
		out[i] = normalizeVector(toFloat32(v))
	}
	return out, nil
}

// Embed returns a zero vector for blank text without calling the server.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, retrying transient failures
// with backoff. Each attempt gets its own timeout.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.closed.Load() {
		return nil, errors.New("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	policy := amanerrors.RetryConfig{
		MaxRetries:   e.cfg.MaxRetries,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		Retryable:    retryableOllama,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			e.cfg.Logger.Debug("embedding_attempt_failed",
				slog.Int("attempt", attempt),
				slog.Int("texts", len(texts)),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()))
		},
	}
	vecs, err := amanerrors.RetryWithResult(ctx, policy, func() ([][]float32, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		return e.embedOnce(attemptCtx, texts)
	})
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "ollama embedding failed", err)
	}
	return vecs, nil
}

func (e *OllamaEmbedder) Dimensions() int   { return e.dims }
func (e *OllamaEmbedder) ModelName() string { return e.model }

// Available reports whether the server answers and still lists the model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.closed.Load() {
		return false
	}
	installed, err := e.installed(ctx)
	if err != nil {
		return false
	}
	_, ok := matchModel(installed, []string{e.model})
	return ok
}

// Close is idempotent.
func (e *OllamaEmbedder) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.transport.CloseIdleConnections()
	}
	return nil
}
