package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/viper"
)

// Config holds all configuration for fixdoc
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Vector    VectorConfig    `mapstructure:"vector"`
	LLM       LLMConfig       `mapstructure:"llm"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	BaseURL      string   `mapstructure:"base_url"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AuthConfig lists the API keys accepted by the server.
// Account management lives outside this service; a key resolves to a verified identity.
type AuthConfig struct {
	APIKeys []APIKey `mapstructure:"api_keys"`
}

// APIKey binds a key to the account that owns it
type APIKey struct {
	Key       string `mapstructure:"key"`
	AccountID string `mapstructure:"account_id"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig holds uploaded manual storage configuration
type StorageConfig struct {
	Uploads           string   `mapstructure:"uploads"`
	MaxUploadSize     string   `mapstructure:"max_upload_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// RAGConfig holds chunking and retrieval configuration
type RAGConfig struct {
	ChunkSize          int     `mapstructure:"chunk_size"`
	ChunkOverlap       int     `mapstructure:"chunk_overlap"`
	TopK               int     `mapstructure:"top_k"`
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
	MinTextLength      int     `mapstructure:"min_text_length"`
	ExtractWorkers     int     `mapstructure:"extract_workers"`
}

// VectorConfig selects and configures the vector index
type VectorConfig struct {
	Backend    string `mapstructure:"backend"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
	Dimension  int    `mapstructure:"dimension"`
}

// LLMConfig holds language model and embedding provider configuration
type LLMConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	EmbeddingProvider string        `mapstructure:"embedding_provider"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	RequestsPerHour int  `mapstructure:"requests_per_hour"`
	Burst           int  `mapstructure:"burst"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("FIXDOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("database.path", "./data/fixdoc.db")

	v.SetDefault("storage.uploads", "./data/uploads")
	v.SetDefault("storage.max_upload_size", "50MB")
	v.SetDefault("storage.allowed_extensions", []string{"pdf", "txt"})

	v.SetDefault("rag.chunk_size", 1000)
	v.SetDefault("rag.chunk_overlap", 200)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.relevance_threshold", 0.7)
	v.SetDefault("rag.min_text_length", 100)
	v.SetDefault("rag.extract_workers", 4)

	v.SetDefault("vector.backend", "memory")
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.api_key", "")
	v.SetDefault("vector.use_tls", false)
	v.SetDefault("vector.collection", "device_manuals")
	v.SetDefault("vector.dimension", 1536)

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_provider", "openai")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_hour", 100)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate checks invariants the pipeline relies on
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	if c.RAG.RelevanceThreshold <= 0 || c.RAG.RelevanceThreshold > 1 {
		return fmt.Errorf("rag.relevance_threshold must be in (0, 1], got %v", c.RAG.RelevanceThreshold)
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		return err
	}
	switch c.Vector.Backend {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unknown vector.backend %q", c.Vector.Backend)
	}
	switch c.LLM.EmbeddingProvider {
	case "", "openai", "hash":
	default:
		return fmt.Errorf("unknown llm.embedding_provider %q", c.LLM.EmbeddingProvider)
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes parses the human readable upload limit ("50MB", "512KiB").
func (c *Config) MaxUploadBytes() (int64, error) {
	n, err := units.FromHumanSize(c.Storage.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid storage.max_upload_size %q: %w", c.Storage.MaxUploadSize, err)
	}
	return n, nil
}

// AccountsByKey returns the key -> account lookup used by the auth middleware
func (c *Config) AccountsByKey() map[string]string {
	m := make(map[string]string, len(c.Auth.APIKeys))
	for _, k := range c.Auth.APIKeys {
		if k.Key != "" && k.AccountID != "" {
			m[k.Key] = k.AccountID
		}
	}
	return m
}

// ExtensionAllowed reports whether the file extension (without dot) may be uploaded
func (c *Config) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.Storage.AllowedExtensions {
		if strings.EqualFold(strings.TrimSpace(allowed), ext) {
			return true
		}
	}
	return false
}
