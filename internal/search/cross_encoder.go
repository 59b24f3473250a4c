package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Aman-CERP/amanlex/pkg/version"
)

// Cross-encoder reranker defaults
const (
	DefaultCrossEncoderEndpoint = "http://localhost:9659"
	DefaultCrossEncoderModel    = "reranker-small"
	DefaultCrossEncoderTimeout  = 3 * time.Second
)

// DefaultRerankInstruction frames relevance for legal provisions.
const DefaultRerankInstruction = "Given a legal question, rank the legal provisions that best answer it."

// CrossEncoderConfig holds configuration for the HTTP cross-encoder reranker
type CrossEncoderConfig struct {
	// Endpoint is the rerank server URL (default: http://localhost:9659)
	Endpoint string

	// Model is the reranker model alias (default: reranker-small)
	Model string

	// Timeout is the request timeout (default: 3s)
	Timeout time.Duration

	// SkipHealthCheck skips health check during creation (for testing)
	SkipHealthCheck bool

	// Instruction is passed to instruction-tuned rerankers.
	Instruction string
}

// CrossEncoderReranker scores query-document pairs through a /rerank
// endpoint.
type CrossEncoderReranker struct {
	client   *http.Client
	config   CrossEncoderConfig
	mu       sync.RWMutex
	closed   bool
	endpoint string
}

// Verify interface implementation at compile time
var _ Reranker = (*CrossEncoderReranker)(nil)

// NewCrossEncoderReranker creates a client and checks the server's health.
func NewCrossEncoderReranker(ctx context.Context, cfg CrossEncoderConfig) (*CrossEncoderReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultCrossEncoderEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultCrossEncoderModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultCrossEncoderTimeout
	}
	if cfg.Instruction == "" {
		cfg.Instruction = DefaultRerankInstruction
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	r := &CrossEncoderReranker{
		client:   client,
		config:   cfg,
		endpoint: cfg.Endpoint,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := r.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("cross-encoder health check failed: %w", err)
		}
	}

	slog.Debug("cross_encoder_created",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return r, nil
}

func (r *CrossEncoderReranker) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to rerank server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rerank server unhealthy (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

type rerankRequest struct {
	Query       string   `json:"query"`
	Documents   []string `json:"documents"`
	Model       string   `json:"model,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index    int     `json:"index"`
		Score    float64 `json:"score"`
		Document string  `json:"document"`
	} `json:"results"`
	Model            string  `json:"model"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// Rerank posts the query and documents to /rerank.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	start := time.Now()

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	reqBody := rerankRequest{
		Query:       query,
		Documents:   documents,
		Model:       r.config.Model,
		Instruction: r.config.Instruction,
	}
	if topK > 0 {
		reqBody.TopK = topK
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	results := make([]RerankResult, len(result.Results))
	for i, res := range result.Results {
		results[i] = RerankResult{Index: res.Index, Score: res.Score, Document: res.Document}
	}

	slog.Debug("cross_encoder_rerank",
		slog.String("query", truncateQuery(query, 50)),
		slog.Int("doc_count", len(documents)),
		slog.Int("payload_bytes", len(jsonData)),
		slog.Duration("total", time.Since(start)),
		slog.Float64("server_time_ms", result.ProcessingTimeMs))

	return results, nil
}

// Available checks if the rerank server answers its health check.
func (r *CrossEncoderReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false
	}
	r.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.healthCheck(checkCtx) == nil
}

// Close releases idle connections.
func (r *CrossEncoderReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
