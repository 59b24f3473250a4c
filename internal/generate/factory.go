package generate

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FactoryConfig selects and configures a generator.
type FactoryConfig struct {
	Provider ProviderType
	Model    string
	Host     string
	APIKey   string
	Options  Options
}

// NewGenerator returns the generator for cfg, or nil for ProviderNone.
// A nil generator means answers are extractive (built from the top entry).
func NewGenerator(ctx context.Context, cfg FactoryConfig) (Generator, error) {
	switch cfg.Provider {
	case ProviderNone, "":
		return nil, nil
	case ProviderOllama:
		return NewOllamaGenerator(OllamaConfig{Host: cfg.Host, Model: cfg.Model, Options: cfg.Options}), nil
	case ProviderGemini:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		g, err := NewGeminiGenerator(ctx, GeminiConfig{APIKey: key, Model: cfg.Model, Options: cfg.Options})
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOpenAI:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		g, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: cfg.Host, Token: key, Model: cfg.Model, Options: cfg.Options})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

// ParseProvider converts a string to ProviderType. Unknown names map to none.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return ProviderOllama
	case "gemini", "google":
		return ProviderGemini
	case "openai":
		return ProviderOpenAI
	default:
		return ProviderNone
	}
}
