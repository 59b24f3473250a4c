package generate

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Options Options
}

// GeminiGenerator generates text with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator. The API key is required.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, amanerrors.New(amanerrors.ErrCodeConfigInvalid, "gemini generator requires an API key", nil).
			WithSuggestion("Set GEMINI_API_KEY or generation.api_key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeGenerationUnavailable, "failed to create Gemini client", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Options.Temperature)
	if cfg.Options.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(cfg.Options.MaxTokens))
	}
	return &GeminiGenerator{client: client, model: model, name: cfg.Model}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", amanerrors.New(amanerrors.ErrCodeGenerationUnavailable, "gemini generation failed", err)
	}
	return responseText(resp), nil
}

// Stream implements Generator over GenerateContentStream.
func (g *GeminiGenerator) Stream(ctx context.Context, prompt string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	iter := g.model.GenerateContentStream(ctx, genai.Text(prompt))

	pull := func() (string, error) {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", amanerrors.New(amanerrors.ErrCodeGenerationUnavailable, "gemini stream failed", err)
		}
		return responseText(resp), nil
	}
	return NewStream(pull, func() error { cancel(); return nil }), nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

// ModelName implements Generator.
func (g *GeminiGenerator) ModelName() string { return g.name }

// Available reports true once the client exists.
func (g *GeminiGenerator) Available(_ context.Context) bool { return g.client != nil }

// Close implements Generator.
func (g *GeminiGenerator) Close() error { return g.client.Close() }
