package generate

import (
	"context"
	"io"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	BaseURL string
	Token   string
	Model   string
	Options Options
}

// OpenAIGenerator generates text through langchaingo.
type OpenAIGenerator struct {
	llm  llms.Model
	name string
	opts Options
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a generator for an OpenAI-compatible API.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.Model == "" {
		return nil, amanerrors.New(amanerrors.ErrCodeConfigInvalid, "openai generator requires a model name", nil)
	}
	if cfg.Token == "" {
		cfg.Token = "none"
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions()
	}

	opts := []openai.Option{openai.WithToken(cfg.Token), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeGenerationUnavailable, "failed to create OpenAI client", err)
	}
	return &OpenAIGenerator{llm: llm, name: cfg.Model, opts: cfg.Options}, nil
}

func (g *OpenAIGenerator) callOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(float64(g.opts.Temperature))}
	if g.opts.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.opts.MaxTokens))
	}
	return opts
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, g.callOptions()...)
	if err != nil {
		return "", amanerrors.New(amanerrors.ErrCodeGenerationUnavailable, "openai generation failed", err)
	}
	return text, nil
}

// Stream implements Generator. langchaingo pushes chunks to a callback, so
// a goroutine feeds them to the pull side of the stream.
func (g *OpenAIGenerator) Stream(ctx context.Context, prompt string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	frags := make(chan string)
	errc := make(chan error, 1)

	opts := append(g.callOptions(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		select {
		case frags <- string(chunk):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	go func() {
		_, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, opts...)
		errc <- err
		close(frags)
	}()

	pull := func() (string, error) {
		if f, ok := <-frags; ok {
			return f, nil
		}
		if err := <-errc; err != nil {
			return "", amanerrors.New(amanerrors.ErrCodeGenerationUnavailable, "openai stream failed", err)
		}
		return "", io.EOF
	}
	return NewStream(pull, func() error { cancel(); return nil }), nil
}

// ModelName implements Generator.
func (g *OpenAIGenerator) ModelName() string { return g.name }

// Available always reports true; the first request surfaces connectivity.
func (g *OpenAIGenerator) Available(_ context.Context) bool { return true }

// Close implements Generator.
func (g *OpenAIGenerator) Close() error { return nil }
