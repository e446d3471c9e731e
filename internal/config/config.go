// Package config defines the memmcp configuration model.
//
// Precedence, lowest to highest: built-in defaults, an optional YAML file
// (memmcp.yaml or .memmcp.yaml in the working directory, or an explicit
// path), then environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Embedding providers recognized by the factory.
var Providers = []string{"openai", "cohere", "ollama", "huggingface", "litellm"}

// Config is the root configuration for the memmcp server and CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Files     FilesConfig     `yaml:"files"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the MCP server identity.
type ServerConfig struct {
	Name string `yaml:"name"`
}

// FilesConfig controls the markdown tree.
type FilesConfig struct {
	// Path is the root of the memory file tree.
	Path string `yaml:"path"`
	// WatchEnabled turns on the fsnotify watcher as a sync trigger.
	WatchEnabled bool `yaml:"watch_enabled"`
}

// DatabaseConfig controls the Postgres index store.
type DatabaseConfig struct {
	// Enabled switches between indexed and file-only mode.
	Enabled bool `yaml:"enabled"`
	// URL is the full connection string. When empty it is assembled from
	// the discrete host fields.
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	PoolMin  int    `yaml:"pool_min"`
	PoolMax  int    `yaml:"pool_max"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`

	OpenAIAPIKey   string `yaml:"openai_api_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	CohereAPIKey   string `yaml:"cohere_api_key"`
	OllamaHost     string `yaml:"ollama_host"`
	HFAPIKey       string `yaml:"huggingface_api_key"`
	HFBaseURL      string `yaml:"huggingface_base_url"`
	LiteLLMBaseURL string `yaml:"litellm_base_url"`
	LiteLLMAPIKey  string `yaml:"litellm_api_key"`
}

// ChunkingConfig controls the markdown chunker.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// SearchConfig controls the hybrid search engine.
type SearchConfig struct {
	// DefaultLimit is the result count when a query does not specify one.
	DefaultLimit int `yaml:"default_limit"`
	// MaxLimit caps per-query limits.
	MaxLimit int `yaml:"max_limit"`
	// RRFK is the Reciprocal Rank Fusion constant.
	RRFK int `yaml:"rrf_k"`
}

// SyncConfig controls the file-to-index sync service.
type SyncConfig struct {
	Workers         int     `yaml:"workers"`
	QueueSize       int     `yaml:"queue_size"`
	IntervalSeconds int     `yaml:"interval_seconds"`
	MaxRetries      int     `yaml:"max_retries"`
	BackoffFactor   float64 `yaml:"backoff_factor"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "agent-memory",
		},
		Files: FilesConfig{
			Path: "./memory_files",
		},
		Database: DatabaseConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    5432,
			Name:    "agent_memory",
			User:    "postgres",
			PoolMin: 5,
			PoolMax: 20,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			BatchSize:  100,
			CacheSize:  2048,
			OllamaHost: "http://localhost:11434",
		},
		Chunking: ChunkingConfig{
			Size:    800,
			Overlap: 200,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
			RRFK:         60,
		},
		Sync: SyncConfig{
			Workers:         4,
			QueueSize:       1024,
			IntervalSeconds: 60,
			MaxRetries:      3,
			BackoffFactor:   2.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration. path may name a YAML file
// explicitly; when empty, memmcp.yaml then .memmcp.yaml in the working
// directory are tried. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.applyModelDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile merges YAML from path, or from the default candidates when
// path is empty.
func (c *Config) loadFromFile(path string) error {
	if path != "" {
		return c.loadYAML(path)
	}
	for _, candidate := range []string{"memmcp.yaml", ".memmcp.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return c.loadYAML(candidate)
		}
	}
	return nil
}

// loadYAML decodes the file over the current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies the recognized environment variables. Env wins
// over file and defaults.
func (c *Config) applyEnvOverrides() {
	setString(&c.Files.Path, "MEMORY_FILES_PATH")
	setBool(&c.Database.Enabled, "USE_DATABASE")
	setBool(&c.Files.WatchEnabled, "FILE_WATCH_ENABLED")

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Host, "POSTGRES_HOST")
	setInt(&c.Database.Port, "POSTGRES_PORT")
	setString(&c.Database.Name, "POSTGRES_DB")
	setString(&c.Database.User, "POSTGRES_USER")
	setString(&c.Database.Password, "POSTGRES_PASSWORD")
	setInt(&c.Database.PoolMin, "DATABASE_POOL_MIN")
	setInt(&c.Database.PoolMax, "DATABASE_POOL_MAX")

	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setInt(&c.Embedding.Dimension, "EMBEDDING_DIMENSION")
	setInt(&c.Embedding.BatchSize, "EMBEDDING_BATCH_SIZE")
	setString(&c.Embedding.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.Embedding.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.Embedding.CohereAPIKey, "COHERE_API_KEY")
	setString(&c.Embedding.OllamaHost, "OLLAMA_HOST")
	setString(&c.Embedding.HFAPIKey, "HUGGINGFACE_API_KEY")
	setString(&c.Embedding.HFBaseURL, "HUGGINGFACE_BASE_URL")
	setString(&c.Embedding.LiteLLMBaseURL, "LITELLM_BASE_URL")
	setString(&c.Embedding.LiteLLMAPIKey, "LITELLM_API_KEY")

	setInt(&c.Chunking.Size, "CHUNK_SIZE")
	setInt(&c.Chunking.Overlap, "CHUNK_OVERLAP")

	setInt(&c.Search.DefaultLimit, "SEARCH_LIMIT")
	setInt(&c.Search.RRFK, "RRF_K")

	setInt(&c.Sync.Workers, "SYNC_WORKERS")
	setInt(&c.Sync.QueueSize, "SYNC_QUEUE_SIZE")
	setInt(&c.Sync.IntervalSeconds, "SYNC_INTERVAL_SECONDS")
	setInt(&c.Sync.MaxRetries, "MAX_RETRIES")
	setFloat(&c.Sync.BackoffFactor, "RETRY_BACKOFF_FACTOR")

	setString(&c.Server.Name, "MCP_SERVER_NAME")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.File, "LOG_FILE")
}

// defaultModels maps provider to its default embedding model.
var defaultModels = map[string]string{
	"openai":      "text-embedding-3-small",
	"cohere":      "embed-english-v3.0",
	"ollama":      "nomic-embed-text",
	"huggingface": "sentence-transformers/all-MiniLM-L6-v2",
}

// modelDimensions maps known models to their native vector dimension.
var modelDimensions = map[string]int{
	"text-embedding-3-small":                  1536,
	"text-embedding-3-large":                  3072,
	"text-embedding-ada-002":                  1536,
	"embed-english-v3.0":                      1024,
	"embed-multilingual-v3.0":                 1024,
	"nomic-embed-text":                        768,
	"mxbai-embed-large":                       1024,
	"all-minilm":                              384,
	"sentence-transformers/all-MiniLM-L6-v2":  384,
	"sentence-transformers/all-mpnet-base-v2": 768,
}

// applyModelDefaults fills the model from the provider default and the
// dimension from the model table. An explicit EMBEDDING_DIMENSION wins.
func (c *Config) applyModelDefaults() {
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultModels[c.Embedding.Provider]
	}
	if c.Embedding.Dimension == 0 {
		if d, ok := modelDimensions[c.Embedding.Model]; ok {
			c.Embedding.Dimension = d
		} else {
			c.Embedding.Dimension = 1536
		}
	}
}

// DatabaseURL returns the effective connection string, assembling one from
// the discrete fields when URL is unset.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.User != "" {
		if c.Database.Password != "" {
			u.User = url.UserPassword(c.Database.User, c.Database.Password)
		} else {
			u.User = url.User(c.Database.User)
		}
	}
	return u.String()
}

// MemoryPath returns the absolute memory root.
func (c *Config) MemoryPath() string {
	abs, err := filepath.Abs(c.Files.Path)
	if err != nil {
		return c.Files.Path
	}
	return abs
}

// Validate checks the assembled configuration for contradictions.
func (c *Config) Validate() error {
	if c.Files.Path == "" {
		return fmt.Errorf("files.path must not be empty")
	}
	if c.Chunking.Size < 1 {
		return fmt.Errorf("chunking.size must be >= 1, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d with size %d",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Search.DefaultLimit < 1 {
		c.Search.DefaultLimit = 1
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		c.Search.DefaultLimit = c.Search.MaxLimit
	}
	if c.Search.RRFK < 1 {
		return fmt.Errorf("search.rrf_k must be >= 1, got %d", c.Search.RRFK)
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("database.pool_min %d exceeds pool_max %d",
			c.Database.PoolMin, c.Database.PoolMax)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be >= 1, got %d", c.Sync.Workers)
	}
	if c.Sync.QueueSize < 1 {
		return fmt.Errorf("sync.queue_size must be >= 1, got %d", c.Sync.QueueSize)
	}

	if c.Database.Enabled {
		if err := c.validateProvider(); err != nil {
			return err
		}
	}
	return nil
}

// validateProvider enforces provider-specific requirements. Only called in
// indexed mode; file-only mode needs no embedder.
func (c *Config) validateProvider() error {
	provider := strings.ToLower(c.Embedding.Provider)
	known := false
	for _, p := range Providers {
		if p == provider {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown embedding provider %q (want one of %s)",
			c.Embedding.Provider, strings.Join(Providers, ", "))
	}

	switch provider {
	case "openai":
		if c.Embedding.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case "cohere":
		if c.Embedding.CohereAPIKey == "" {
			return fmt.Errorf("COHERE_API_KEY is required for the cohere provider")
		}
	case "huggingface":
		if c.Embedding.HFAPIKey == "" {
			return fmt.Errorf("HUGGINGFACE_API_KEY is required for the huggingface provider")
		}
	case "litellm":
		if c.Embedding.LiteLLMBaseURL == "" {
			return fmt.Errorf("LITELLM_BASE_URL is required for the litellm provider")
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}
