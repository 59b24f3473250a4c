// Package generate wraps the language models that compose answers from
// retrieved entries. Generation is an external collaborator: retrieval
// never depends on it, and every backend can be swapped behind Generator.
package generate

import (
	"context"
	"time"
)

// DefaultTimeout bounds one generation request.
const DefaultTimeout = 60 * time.Second

// Generator turns a prompt into text.
type Generator interface {
	// Generate returns the complete text for prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Stream returns the text as incremental fragments. Cancelling ctx or
	// closing the stream abandons the request.
	Stream(ctx context.Context, prompt string) (*Stream, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the backend is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// ProviderType names a generation backend.
type ProviderType string

const (
	ProviderNone   ProviderType = "none"
	ProviderOllama ProviderType = "ollama"
	ProviderGemini ProviderType = "gemini"
	ProviderOpenAI ProviderType = "openai"
)

// Options are per-request sampling settings shared by the backends.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// DefaultOptions favour faithful, low-variance answers.
func DefaultOptions() Options {
	return Options{Temperature: 0.1, MaxTokens: 1024}
}
