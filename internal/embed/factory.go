package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings; it needs no service.
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderGemini uses the Gemini embedding API.
	ProviderGemini ProviderType = "gemini"

	// ProviderOpenAI uses any OpenAI-compatible embedding endpoint.
	ProviderOpenAI ProviderType = "openai"
)

// FactoryConfig selects and configures an embedder.
type FactoryConfig struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Host       string // Ollama host or OpenAI base URL
	APIKey     string
	Timeout    time.Duration

	// CacheCapacity and CacheTTL size the query cache. A negative capacity
	// disables caching.
	CacheCapacity int
	CacheTTL      time.Duration
}

// NewEmbedder creates an embedder for cfg and wraps it with the query cache.
// An explicitly selected remote provider that cannot start is an error;
// there is no silent fallback to static vectors, because mixing vector
// spaces corrupts similarity.
func NewEmbedder(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	var (
		embedder Embedder
		err      error
	)

	switch cfg.Provider {
	case ProviderOllama:
		oc := DefaultOllamaConfig()
		if cfg.Host != "" {
			oc.Host = cfg.Host
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			oc.Timeout = cfg.Timeout
		}
		oc.Dimensions = cfg.Dimensions
		embedder, err = NewOllamaEmbedder(ctx, oc)
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use offline vectors: embeddings.provider: static", err)
		}

	case ProviderGemini:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		embedder, err = NewGeminiEmbedder(ctx, GeminiConfig{APIKey: key, Model: cfg.Model, Dimensions: cfg.Dimensions})

	case ProviderOpenAI:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		embedder, err = NewOpenAIEmbedder(OpenAIConfig{BaseURL: cfg.Host, Token: key, Model: cfg.Model, Dimensions: cfg.Dimensions})

	case ProviderStatic, "":
		embedder = NewStaticEmbedderWithDims(cfg.Dimensions)

	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: %s)", cfg.Provider, strings.Join(ValidProviders(), ", "))
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheCapacity < 0 {
		return embedder, nil
	}
	return NewCachedEmbedder(embedder, cfg.CacheCapacity, cfg.CacheTTL), nil
}

// ParseProvider converts a string to ProviderType. Unknown names map to
// static so that a typo never triggers network calls.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return ProviderOllama
	case "gemini", "google":
		return ProviderGemini
	case "openai":
		return ProviderOpenAI
	default:
		return ProviderStatic
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderStatic),
		string(ProviderOllama),
		string(ProviderGemini),
		string(ProviderOpenAI),
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	case *GeminiEmbedder:
		info.Provider = ProviderGemini
	case *OpenAIEmbedder:
		info.Provider = ProviderOpenAI
	default:
		info.Provider = ProviderStatic
	}
	return info
}
