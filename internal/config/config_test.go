package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsTunedDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 0.55, cfg.Search.SimThreshold)
	assert.Equal(t, 0.65, cfg.Search.VectorWeights.HighVector)
	assert.Equal(t, 0.45, cfg.Search.VectorWeights.LowLexical)
	assert.Equal(t, 5000, cfg.Search.FullScanLimit)
	assert.Equal(t, "bleve", cfg.Search.LexicalBackend)
	assert.Equal(t, "hnsw", cfg.Search.VectorBackend)

	assert.Equal(t, 0.50, cfg.Boosts.Citation)
	assert.Equal(t, 0.35, cfg.Boosts.Article)
	assert.Equal(t, 1000.0, cfg.Boosts.ExactCitationScore)

	assert.Equal(t, 0.35, cfg.Gate.BaseThreshold)
	assert.Equal(t, 0.08, cfg.Gate.Floors.Citation)
	assert.Equal(t, 0.12, cfg.Gate.Floors.Urgent)

	assert.Equal(t, "local", cfg.Reranker.Strategy)
	assert.Equal(t, 3*time.Second, cfg.Reranker.Timeout)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "none", cfg.Generation.Provider)

	require.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".amanlex.yaml"), `
search:
  sim_threshold: 0.6
  lexical_backend: sqlite
boosts:
  citation: 0.7
gate:
  floors:
    citation: 0.05
reranker:
  strategy: none
  timeout: 1500ms
corpus:
  path: data/entries.json
  watch: true
`)

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Search.SimThreshold)
	assert.Equal(t, "sqlite", cfg.Search.LexicalBackend)
	assert.Equal(t, 0.7, cfg.Boosts.Citation)
	assert.Equal(t, 0.35, cfg.Boosts.Article, "unset boosts keep their defaults")
	assert.Equal(t, 0.05, cfg.Gate.Floors.Citation)
	assert.Equal(t, 0.12, cfg.Gate.Floors.Urgent)
	assert.Equal(t, "none", cfg.Reranker.Strategy)
	assert.Equal(t, 1500*time.Millisecond, cfg.Reranker.Timeout)
	assert.Equal(t, "data/entries.json", cfg.Corpus.Path)
	assert.True(t, cfg.Corpus.Watch)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".amanlex.yaml"), "embeddings:\n  provider: ollama\n")
	writeFile(t, filepath.Join(dir, ".amanlex.yml"), "embeddings:\n  provider: gemini\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
}

func TestLoad_UserConfigBelowProjectConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	writeFile(t, filepath.Join(xdg, "amanlex", "config.yaml"), `
server:
  log_level: debug
  http_addr: ":9000"
`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".amanlex.yaml"), "server:\n  http_addr: \":7000\"\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, ":7000", cfg.Server.HTTPAddr)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".amanlex.yaml"), "corpus:\n  path: file.json\n")
	t.Setenv("AMANLEX_CORPUS", "env.json")
	t.Setenv("AMANLEX_SIM_THRESHOLD", "0.7")
	t.Setenv("AMANLEX_SKIP_LEXICAL", "true")
	t.Setenv("AMANLEX_GATE_THRESHOLD", "not-a-number")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "env.json", cfg.Corpus.Path)
	assert.Equal(t, 0.7, cfg.Search.SimThreshold)
	assert.True(t, cfg.Search.SkipLexical)
	assert.Equal(t, 0.35, cfg.Gate.BaseThreshold, "unparseable values are ignored")
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "AMANLEX_HTTP_ADDR=:6000\nAMANLEX_GENERATOR=ollama\n")
	t.Setenv("AMANLEX_HTTP_ADDR", ":5000")
	t.Cleanup(func() { _ = os.Unsetenv("AMANLEX_GENERATOR") })

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.HTTPAddr)
	assert.Equal(t, "ollama", cfg.Generation.Provider)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".amanlex.yaml"), "search:\n  sim_threshold: [broken\n")

	cfg, err := Load(dir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"threshold above one", func(c *Config) { c.Search.SimThreshold = 1.2 }, "sim_threshold"},
		{"negative weight", func(c *Config) { c.Search.VectorWeights.LowLexical = -0.1 }, "low_lexical"},
		{"limit above max", func(c *Config) { c.Search.DefaultLimit = 500 }, "default_limit"},
		{"unknown lexical backend", func(c *Config) { c.Search.LexicalBackend = "lucene" }, "lexical_backend"},
		{"pgvector without dsn", func(c *Config) { c.Search.VectorBackend = "pgvector" }, "postgres.dsn"},
		{"floor above base", func(c *Config) { c.Gate.Floors.Broad = 0.5 }, "gate.floors.broad"},
		{"unknown reranker", func(c *Config) { c.Reranker.Strategy = "magic" }, "reranker.strategy"},
		{"unknown embedder", func(c *Config) { c.Embeddings.Provider = "mlx" }, "embeddings.provider"},
		{"unknown generator", func(c *Config) { c.Generation.Provider = "gpt" }, "generation.provider"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "trace" }, "log_level"},
		{"case insensitive", func(c *Config) { c.Reranker.Strategy = "LLM" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEngine_MapsSearchSettings(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.SkipLexical = true
	cfg.Search.NearestK = 7
	cfg.Boosts.Nearby = 0.2
	cfg.Reranker.TopN = 4

	ec := cfg.Engine()

	assert.True(t, ec.SkipLexicalOnHighSimilarity)
	assert.Equal(t, 7, ec.NearestK)
	assert.Equal(t, 0.2, ec.Boosts.Nearby)
	assert.Equal(t, 4, ec.Rerank.TopN)
	assert.Equal(t, cfg.Gate, ec.Gate)
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Corpus.Path = "laws.json"
	cfg.Reranker.Timeout = 2 * time.Second

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".amanlex.yaml")))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "laws.json", loaded.Corpus.Path)
	assert.Equal(t, 2*time.Second, loaded.Reranker.Timeout)
}

func TestBackupFile_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "version: 1\n")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var made []string
	for i := range MaxBackups + 2 {
		b, err := backupFile(path, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		made = append(made, b)
	}

	backups, err := listBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, made[len(made)-1], backups[0])
	assert.NoFileExists(t, made[0])
}

func TestBackupFile_MissingConfig(t *testing.T) {
	b, err := backupFile(filepath.Join(t.TempDir(), "none.yaml"), time.Now())
	require.NoError(t, err)
	assert.Empty(t, b)
}
