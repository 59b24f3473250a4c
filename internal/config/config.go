package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amanlex/internal/search"
)

// Config represents the complete AmanLex configuration.
type Config struct {
	Version    int                `yaml:"version" json:"version"`
	Search     SearchConfig       `yaml:"search" json:"search"`
	Boosts     search.BoostConfig `yaml:"boosts" json:"boosts"`
	Gate       search.GateConfig  `yaml:"gate" json:"gate"`
	Reranker   RerankerConfig     `yaml:"reranker" json:"reranker"`
	Cache      CacheConfig        `yaml:"cache" json:"cache"`
	Embeddings EmbeddingsConfig   `yaml:"embeddings" json:"embeddings"`
	Generation GenerationConfig   `yaml:"generation" json:"generation"`
	Server     ServerConfig       `yaml:"server" json:"server"`
	Corpus     CorpusConfig       `yaml:"corpus" json:"corpus"`
	Postgres   PostgresConfig     `yaml:"postgres" json:"postgres"`
}

// SearchConfig configures retrieval. The blend weights and thresholds are
// tuned values; see search.DefaultConfig.
type SearchConfig struct {
	SimThreshold  float64             `yaml:"sim_threshold" json:"sim_threshold"`
	VectorWeights search.BlendWeights `yaml:"vector_weights" json:"vector_weights"`

	// LexicalSkipSimilarity is the best vector similarity above which the
	// lexical channel is skipped for queries without a citation pattern.
	// SkipLexical turns the optimization on.
	LexicalSkipSimilarity float64 `yaml:"lexical_skip_similarity" json:"lexical_skip_similarity"`
	SkipLexical           bool    `yaml:"skip_lexical" json:"skip_lexical"`

	FullScanLimit int `yaml:"full_scan_limit" json:"full_scan_limit"`
	DefaultLimit  int `yaml:"default_limit" json:"default_limit"`
	MaxLimit      int `yaml:"max_limit" json:"max_limit"`
	NearestK      int `yaml:"nearest_k" json:"nearest_k"`

	// LexicalBackend is "bleve" (default), "sqlite" or "none".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`
	// SQLitePath is the FTS5 database file; empty keeps it in memory.
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
	// VectorBackend is "hnsw" (default) or "pgvector".
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`
}

// RerankerConfig configures the optional rerank stage.
type RerankerConfig struct {
	// Strategy is "local" (default), "llm", "cross_encoder" or "none".
	Strategy string        `yaml:"strategy" json:"strategy"`
	TopN     int           `yaml:"top_n" json:"top_n"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	// Endpoint is the cross-encoder server URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// CacheConfig sizes the embedding and answer caches.
type CacheConfig struct {
	EmbeddingCapacity int           `yaml:"embedding_capacity" json:"embedding_capacity"`
	EmbeddingTTL      time.Duration `yaml:"embedding_ttl" json:"embedding_ttl"`
	AnswerCapacity    int           `yaml:"answer_capacity" json:"answer_capacity"`
	AnswerTTL         time.Duration `yaml:"answer_ttl" json:"answer_ttl"`
	// RedisAddr shares the answer cache through Redis when set.
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" (default), "ollama", "gemini" or "openai".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
}

// GenerationConfig configures answer generation.
type GenerationConfig struct {
	// Provider is "none" (default, extractive answers), "ollama", "gemini"
	// or "openai".
	Provider    string        `yaml:"provider" json:"provider"`
	Model       string        `yaml:"model" json:"model"`
	Host        string        `yaml:"host" json:"host"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Temperature float32       `yaml:"temperature" json:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
}

// ServerConfig configures the HTTP server and logging.
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr" json:"http_addr"`
	LogLevel       string   `yaml:"log_level" json:"log_level"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" json:"rate_limit_burst"`
	CORSOrigins    []string `yaml:"cors_origins" json:"cors_origins"`
}

// CorpusConfig locates the corpus file.
type CorpusConfig struct {
	Path  string `yaml:"path" json:"path"`
	Watch bool   `yaml:"watch" json:"watch"`
}

// PostgresConfig configures the pgvector backend.
type PostgresConfig struct {
	DSN   string `yaml:"dsn" json:"dsn"`
	Table string `yaml:"table" json:"table"`
}

// NewConfig creates a new Config with the tuned defaults.
func NewConfig() *Config {
	engine := search.DefaultConfig()
	return &Config{
		Version: 1,
		Search: SearchConfig{
			SimThreshold:          engine.SimThreshold,
			VectorWeights:         engine.Weights,
			LexicalSkipSimilarity: engine.LexicalSkipSimilarity,
			SkipLexical:           false,
			FullScanLimit:         engine.FullScanLimit,
			DefaultLimit:          engine.DefaultLimit,
			MaxLimit:              engine.MaxLimit,
			NearestK:              engine.NearestK,
			LexicalBackend:        "bleve",
			VectorBackend:         "hnsw",
		},
		Boosts: engine.Boosts,
		Gate:   engine.Gate,
		Reranker: RerankerConfig{
			Strategy: "local",
			TopN:     engine.Rerank.TopN,
			Timeout:  engine.Rerank.Timeout,
		},
		Cache: CacheConfig{
			EmbeddingCapacity: 1000,
			EmbeddingTTL:      time.Hour,
			AnswerCapacity:    500,
			AnswerTTL:         30 * time.Minute,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			BatchSize: 32,
		},
		Generation: GenerationConfig{
			Provider:    "none",
			Timeout:     60 * time.Second,
			Temperature: 0.1,
			MaxTokens:   1024,
		},
		Server: ServerConfig{
			HTTPAddr:       ":8080",
			LogLevel:       "info",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			CORSOrigins:    []string{"*"},
		},
		Corpus: CorpusConfig{
			Path:  "corpus.json",
			Watch: false,
		},
		Postgres: PostgresConfig{
			Table: "knowledge_entries",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/amanlex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/amanlex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amanlex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "amanlex", "config.yaml")
	}
	return filepath.Join(home, ".config", "amanlex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var cfg Config
	if err := readYAML(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/amanlex/config.yaml)
//  3. Project config (.amanlex.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (AMANLEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads dir/.env into the process environment. godotenv.Load
// leaves variables that are already set untouched.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadFromFile attempts to load configuration from .amanlex.yaml or .amanlex.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".amanlex.yaml", ".amanlex.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c. Booleans can only be
// switched on from a file; use the environment to switch them off.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	s, o := &c.Search, other.Search
	setFloat(&s.SimThreshold, o.SimThreshold)
	if o.VectorWeights != (search.BlendWeights{}) {
		s.VectorWeights = o.VectorWeights
	}
	setFloat(&s.LexicalSkipSimilarity, o.LexicalSkipSimilarity)
	s.SkipLexical = s.SkipLexical || o.SkipLexical
	setInt(&s.FullScanLimit, o.FullScanLimit)
	setInt(&s.DefaultLimit, o.DefaultLimit)
	setInt(&s.MaxLimit, o.MaxLimit)
	setInt(&s.NearestK, o.NearestK)
	setString(&s.LexicalBackend, o.LexicalBackend)
	setString(&s.SQLitePath, o.SQLitePath)
	setString(&s.VectorBackend, o.VectorBackend)

	b, ob := &c.Boosts, other.Boosts
	setFloat(&b.Citation, ob.Citation)
	setFloat(&b.Article, ob.Article)
	setFloat(&b.Direct, ob.Direct)
	setFloat(&b.Nearby, ob.Nearby)
	setFloat(&b.Keyword, ob.Keyword)
	setFloat(&b.TypeHint, ob.TypeHint)
	setFloat(&b.TopicOverlap, ob.TopicOverlap)
	setFloat(&b.TopicOverlapCap, ob.TopicOverlapCap)
	setFloat(&b.StatuteCitation, ob.StatuteCitation)
	setFloat(&b.ExactCitationScore, ob.ExactCitationScore)

	g, og := &c.Gate, other.Gate
	setFloat(&g.BaseThreshold, og.BaseThreshold)
	setFloat(&g.HighConfidence, og.HighConfidence)
	setFloat(&g.ThreatMaxSimilarity, og.ThreatMaxSimilarity)
	setInt(&g.BroadCandidates, og.BroadCandidates)
	setFloat(&g.VectorWeight, og.VectorWeight)
	setFloat(&g.LexicalWeight, og.LexicalWeight)
	setFloat(&g.FinalWeight, og.FinalWeight)
	setFloat(&g.Floors.Citation, og.Floors.Citation)
	setFloat(&g.Floors.Urgent, og.Floors.Urgent)
	setFloat(&g.Floors.Broad, og.Floors.Broad)
	setFloat(&g.Floors.Filtered, og.Floors.Filtered)
	setFloat(&g.Floors.Rights, og.Floors.Rights)
	setFloat(&g.Floors.Definitional, og.Floors.Definitional)
	setFloat(&g.Floors.StatuteName, og.Floors.StatuteName)

	setString(&c.Reranker.Strategy, other.Reranker.Strategy)
	setInt(&c.Reranker.TopN, other.Reranker.TopN)
	setDuration(&c.Reranker.Timeout, other.Reranker.Timeout)
	setString(&c.Reranker.Endpoint, other.Reranker.Endpoint)

	setInt(&c.Cache.EmbeddingCapacity, other.Cache.EmbeddingCapacity)
	setDuration(&c.Cache.EmbeddingTTL, other.Cache.EmbeddingTTL)
	setInt(&c.Cache.AnswerCapacity, other.Cache.AnswerCapacity)
	setDuration(&c.Cache.AnswerTTL, other.Cache.AnswerTTL)
	setString(&c.Cache.RedisAddr, other.Cache.RedisAddr)

	setString(&c.Embeddings.Provider, other.Embeddings.Provider)
	setString(&c.Embeddings.Model, other.Embeddings.Model)
	setInt(&c.Embeddings.Dimensions, other.Embeddings.Dimensions)
	setString(&c.Embeddings.OllamaHost, other.Embeddings.OllamaHost)
	setInt(&c.Embeddings.BatchSize, other.Embeddings.BatchSize)

	setString(&c.Generation.Provider, other.Generation.Provider)
	setString(&c.Generation.Model, other.Generation.Model)
	setString(&c.Generation.Host, other.Generation.Host)
	setDuration(&c.Generation.Timeout, other.Generation.Timeout)
	if other.Generation.Temperature != 0 {
		c.Generation.Temperature = other.Generation.Temperature
	}
	setInt(&c.Generation.MaxTokens, other.Generation.MaxTokens)

	setString(&c.Server.HTTPAddr, other.Server.HTTPAddr)
	setString(&c.Server.LogLevel, other.Server.LogLevel)
	setFloat(&c.Server.RateLimitRPS, other.Server.RateLimitRPS)
	setInt(&c.Server.RateLimitBurst, other.Server.RateLimitBurst)
	if len(other.Server.CORSOrigins) > 0 {
		c.Server.CORSOrigins = other.Server.CORSOrigins
	}

	setString(&c.Corpus.Path, other.Corpus.Path)
	c.Corpus.Watch = c.Corpus.Watch || other.Corpus.Watch

	setString(&c.Postgres.DSN, other.Postgres.DSN)
	setString(&c.Postgres.Table, other.Postgres.Table)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies AMANLEX_* environment variable overrides.
// Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	envString("AMANLEX_CORPUS", &c.Corpus.Path)
	envBool("AMANLEX_WATCH", &c.Corpus.Watch)
	envString("AMANLEX_HTTP_ADDR", &c.Server.HTTPAddr)
	envString("AMANLEX_LOG_LEVEL", &c.Server.LogLevel)
	envFloat("AMANLEX_RATE_LIMIT_RPS", &c.Server.RateLimitRPS)

	envFloat("AMANLEX_SIM_THRESHOLD", &c.Search.SimThreshold)
	envBool("AMANLEX_SKIP_LEXICAL", &c.Search.SkipLexical)
	envString("AMANLEX_LEXICAL_BACKEND", &c.Search.LexicalBackend)
	envString("AMANLEX_VECTOR_BACKEND", &c.Search.VectorBackend)
	envFloat("AMANLEX_GATE_THRESHOLD", &c.Gate.BaseThreshold)

	envString("AMANLEX_RERANKER", &c.Reranker.Strategy)
	envString("AMANLEX_RERANKER_ENDPOINT", &c.Reranker.Endpoint)

	envString("AMANLEX_EMBEDDER", &c.Embeddings.Provider)
	envString("AMANLEX_EMBEDDING_MODEL", &c.Embeddings.Model)
	envString("AMANLEX_OLLAMA_HOST", &c.Embeddings.OllamaHost)

	envString("AMANLEX_GENERATOR", &c.Generation.Provider)
	envString("AMANLEX_GENERATION_MODEL", &c.Generation.Model)
	envString("AMANLEX_GENERATION_HOST", &c.Generation.Host)

	envString("AMANLEX_REDIS_ADDR", &c.Cache.RedisAddr)
	envString("AMANLEX_POSTGRES_DSN", &c.Postgres.DSN)
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.SimThreshold < 0 || c.Search.SimThreshold > 1 {
		return fmt.Errorf("search.sim_threshold must be between 0 and 1, got %f", c.Search.SimThreshold)
	}
	w := c.Search.VectorWeights
	for name, v := range map[string]float64{
		"high_vector": w.HighVector, "high_lexical": w.HighLexical,
		"low_vector": w.LowVector, "low_lexical": w.LowLexical,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("search.vector_weights.%s must be between 0 and 1, got %f", name, v)
		}
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.default_limit must be positive and not above max_limit (%d, %d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.NearestK < 0 || c.Search.FullScanLimit < 0 {
		return fmt.Errorf("search.nearest_k and search.full_scan_limit must be non-negative")
	}

	if err := oneOf("search.lexical_backend", c.Search.LexicalBackend, "bleve", "sqlite", "none"); err != nil {
		return err
	}
	if err := oneOf("search.vector_backend", c.Search.VectorBackend, "hnsw", "pgvector"); err != nil {
		return err
	}
	if strings.EqualFold(c.Search.VectorBackend, "pgvector") && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for the pgvector backend")
	}

	g := c.Gate
	if g.BaseThreshold < 0 || g.BaseThreshold > 1 {
		return fmt.Errorf("gate.base_threshold must be between 0 and 1, got %f", g.BaseThreshold)
	}
	floors := map[string]float64{
		"citation": g.Floors.Citation, "urgent": g.Floors.Urgent, "broad": g.Floors.Broad,
		"filtered": g.Floors.Filtered, "rights": g.Floors.Rights,
		"definitional": g.Floors.Definitional, "statute_name": g.Floors.StatuteName,
	}
	for name, f := range floors {
		if f < 0 || f > g.BaseThreshold {
			return fmt.Errorf("gate.floors.%s must be between 0 and base_threshold (%.2f), got %f", name, g.BaseThreshold, f)
		}
	}
	if math.IsNaN(g.HighConfidence) || g.HighConfidence <= 0 {
		return fmt.Errorf("gate.high_confidence must be positive, got %f", g.HighConfidence)
	}

	if err := oneOf("reranker.strategy", c.Reranker.Strategy, "local", "llm", "cross_encoder", "none"); err != nil {
		return err
	}
	if c.Reranker.Timeout < 0 {
		return fmt.Errorf("reranker.timeout must be non-negative, got %s", c.Reranker.Timeout)
	}
	if err := oneOf("embeddings.provider", c.Embeddings.Provider, "static", "ollama", "gemini", "openai"); err != nil {
		return err
	}
	if err := oneOf("generation.provider", c.Generation.Provider, "none", "ollama", "gemini", "openai"); err != nil {
		return err
	}
	if err := oneOf("server.log_level", c.Server.LogLevel, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("server.rate_limit_rps and rate_limit_burst must be non-negative")
	}
	return nil
}

func oneOf(field, value string, valid ...string) error {
	for _, v := range valid {
		if strings.EqualFold(value, v) {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(valid, ", "), value)
}

// Engine returns the search engine configuration.
func (c *Config) Engine() search.Config {
	ec := search.DefaultConfig()
	ec.SimThreshold = c.Search.SimThreshold
	ec.Weights = c.Search.VectorWeights
	ec.LexicalSkipSimilarity = c.Search.LexicalSkipSimilarity
	ec.SkipLexicalOnHighSimilarity = c.Search.SkipLexical
	ec.FullScanLimit = c.Search.FullScanLimit
	ec.DefaultLimit = c.Search.DefaultLimit
	ec.MaxLimit = c.Search.MaxLimit
	ec.NearestK = c.Search.NearestK
	ec.Boosts = c.Boosts
	ec.Gate = c.Gate
	ec.Rerank = search.RerankConfig{TopN: c.Reranker.TopN, Timeout: c.Reranker.Timeout}
	return ec
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}
