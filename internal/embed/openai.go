package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint
// (vLLM, llama.cpp server, LM Studio, or OpenAI itself).
type OpenAIConfig struct {
	BaseURL    string
	Token      string
	Model      string
	Dimensions int
}

// OpenAIEmbedder generates embeddings through langchaingo's OpenAI client.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	name     string
	dims     int
	logger   *slog.Logger
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible API.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, amanerrors.New(amanerrors.ErrCodeConfigInvalid, "openai embedder requires a model name", nil)
	}
	if cfg.Token == "" {
		// Local OpenAI-compatible services do not check the token.
		cfg.Token = "none"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	opts := []openai.Option{
		openai.WithToken(cfg.Token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "failed to create OpenAI client", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "failed to create embedder", err)
	}

	return &OpenAIEmbedder{
		embedder: embedder,
		name:     cfg.Model,
		dims:     cfg.Dimensions,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// Embed generates an embedding for one text.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, o.dims), nil
	}
	vec, err := o.embedder.EmbedQuery(ctx, text)
	if err != nil {
		o.logger.Debug("embedding failed", "err", err)
		return nil, amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "openai embedding failed", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("openai returned an empty embedding")
	}
	return normalizeVector(vec), nil
}

// EmbedBatch embeds texts in one request.
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeEmbeddingUnavailable, "openai batch embedding failed", err)
	}
	for i := range vecs {
		vecs[i] = normalizeVector(vecs[i])
	}
	return vecs, nil
}

// Dimensions returns the configured dimension.
func (o *OpenAIEmbedder) Dimensions() int { return o.dims }

// ModelName returns the model identifier.
func (o *OpenAIEmbedder) ModelName() string { return o.name }

// Available always reports true; the first request surfaces connectivity.
func (o *OpenAIEmbedder) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (o *OpenAIEmbedder) Close() error { return nil }
