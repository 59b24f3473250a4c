package generate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/pkg/version"
)

// Ollama defaults
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "llama3.1:8b"
)

// OllamaConfig configures the Ollama generator.
type OllamaConfig struct {
	Host    string
	Model   string
	Options Options
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// ollamaChunk is one NDJSON line of a /api/generate response.
type ollamaChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// OllamaGenerator generates text with a local Ollama server.
type OllamaGenerator struct {
	client *http.Client
	cfg    OllamaConfig
}

var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a generator. It makes no request.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions()
	}
	return &OllamaGenerator{client: &http.Client{}, cfg: cfg}
}

// Generate implements Generator.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s, err := g.Stream(ctx, prompt)
	if err != nil {
		return "", err
	}
	return Collect(s)
}

// Stream implements Generator by decoding the NDJSON response line by line.
func (g *OllamaGenerator) Stream(ctx context.Context, prompt string) (*Stream, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  g.cfg.Model,
		Prompt: prompt,
		Stream: true,
		Options: map[string]any{
			"temperature": g.cfg.Options.Temperature,
			"num_predict": g.cfg.Options.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeGenerationUnavailable, "ollama generation request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, amanerrors.New(amanerrors.ErrCodeGenerationUnavailable,
			fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	finished := false

	pull := func() (string, error) {
		if finished {
			return "", io.EOF
		}
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				return "", fmt.Errorf("malformed stream line: %w", err)
			}
			if chunk.Error != "" {
				return "", amanerrors.New(amanerrors.ErrCodeGenerationUnavailable, chunk.Error, nil)
			}
			if chunk.Done {
				finished = true
				if chunk.Response == "" {
					return "", io.EOF
				}
			}
			return chunk.Response, nil
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		// Body ended without a done marker.
		return "", io.ErrUnexpectedEOF
	}
	return NewStream(pull, resp.Body.Close), nil
}

// ModelName implements Generator.
func (g *OllamaGenerator) ModelName() string { return g.cfg.Model }

// Available checks that the server answers.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close implements Generator.
func (g *OllamaGenerator) Close() error {
	g.client.CloseIdleConnections()
	return nil
}
