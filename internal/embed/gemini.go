package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

// DefaultGeminiModel is the Gemini embedding model used when none is configured.
const DefaultGeminiModel = "text-embedding-004"

// GeminiConfig configures the Gemini embedder.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Dimensions int
}

// GeminiEmbedder generates embeddings with the Gemini API.
type GeminiEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates a Gemini embedder. The API key is required.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, amanerrors.New(amanerrors.ErrCodeConfigInvalid, "gemini embedder requires an API key", nil).
			WithSuggestion("Set GEMINI_API_KEY or embeddings.api_key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "failed to create Gemini client", err)
	}

	return &GeminiEmbedder{
		client: client,
		model:  client.EmbeddingModel(cfg.Model),
		name:   cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

// Embed generates an embedding for one text.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, g.dims), nil
	}

	res, err := g.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "gemini embedding failed", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned an empty embedding")
	}
	return normalizeVector(res.Embedding.Values), nil
}

// EmbedBatch embeds texts one request at a time.
func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := g.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the configured dimension.
func (g *GeminiEmbedder) Dimensions() int { return g.dims }

// ModelName returns the model identifier.
func (g *GeminiEmbedder) ModelName() string { return g.name }

// Available reports whether the client is open. It makes no request.
func (g *GeminiEmbedder) Available(_ context.Context) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return !g.closed
}

// Close closes the client.
func (g *GeminiEmbedder) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.client.Close()
}
