package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"virtualta/internal/domain"
)

// Config holds all configuration for the virtual TA.
type Config struct {
	Service     ServiceConfig               `yaml:"service"`
	Provider    ProviderConfig              `yaml:"provider"`
	Embedding   EmbeddingConfig             `yaml:"embedding"`
	Chat        ChatConfig                  `yaml:"chat"`
	Retrieve    RetrieveConfig              `yaml:"retrieve"`
	Collections map[string]CollectionConfig `yaml:"collections"`
	LoadOrder   []string                    `yaml:"load_order"`
	Logging     LoggingConfig               `yaml:"logging"`
}

// ServiceConfig holds HTTP server configuration.
type ServiceConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// RequestTimeout bounds each call to the embedding and chat services.
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProviderConfig holds the OpenAI-compatible endpoints and credential.
type ProviderConfig struct {
	APIKeyEnv    string `yaml:"api_key_env"`
	EmbeddingURL string `yaml:"embedding_url"`
	ChatURL      string `yaml:"chat_url"`
	MaxRetries   int    `yaml:"max_retries"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "openai", "mock"
	Model             string  `yaml:"model"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Dimension         int     `yaml:"dimension"` // mock provider only
}

// ChatConfig holds chat model configuration. Decoding is always
// deterministic (temperature 0).
type ChatConfig struct {
	Model string `yaml:"model"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

// CollectionConfig describes one source collection and its chunking profile.
type CollectionConfig struct {
	Format    string   `yaml:"format"` // "course" or "discourse"
	Sources   []string `yaml:"sources"`
	IndexPath string   `yaml:"index_path"`
	ChunkSize int      `yaml:"chunk_size"`
	Overlap   int      `yaml:"overlap"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

const (
	CollectionCourse    = "course"
	CollectionDiscourse = "discourse"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ListenAddr:      ":8000",
			RequestTimeout:  60 * time.Second,
			MaxBodyBytes:    10 << 20,
			ShutdownTimeout: 15 * time.Second,
		},
		Provider: ProviderConfig{
			APIKeyEnv:    "OPENAI_API_KEY",
			EmbeddingURL: "https://aipipe.org/openai/v1",
			ChatURL:      "https://aipipe.org/openrouter/v1",
			MaxRetries:   0,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 100,
			Dimension: 256,
		},
		Chat: ChatConfig{
			Model: "openai/gpt-4o",
		},
		Retrieve: RetrieveConfig{
			TopK: 6,
		},
		Collections: map[string]CollectionConfig{
			CollectionCourse: {
				Format:    "course",
				Sources:   []string{"data/tds_course_content.json"},
				IndexPath: "data/index/course",
				ChunkSize: 1000,
				Overlap:   200,
			},
			CollectionDiscourse: {
				Format:    "discourse",
				Sources:   []string{"data/discourse_content.json"},
				IndexPath: "data/index/discourse",
				ChunkSize: 1000,
				Overlap:   100,
			},
		},
		LoadOrder: []string{CollectionCourse, CollectionDiscourse},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyEnv()
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyCollectionDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for virtualta.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "virtualta.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".virtualta", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment
// without overriding variables already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// applyCollectionDefaults fills fields left out of a partially specified
// built-in collection. YAML replaces map values wholesale.
func (c *Config) applyCollectionDefaults() {
	defaults := DefaultConfig().Collections
	if c.Collections == nil {
		c.Collections = defaults
		return
	}
	for name, col := range c.Collections {
		def, ok := defaults[name]
		if !ok {
			continue
		}
		if col.Format == "" {
			col.Format = def.Format
		}
		if len(col.Sources) == 0 {
			col.Sources = def.Sources
		}
		if col.IndexPath == "" {
			col.IndexPath = def.IndexPath
		}
		if col.ChunkSize == 0 {
			col.ChunkSize = def.ChunkSize
		}
		if col.Overlap == 0 {
			col.Overlap = def.Overlap
		}
		c.Collections[name] = col
	}
}

// applyEnv applies overrides set by hosting platforms.
func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			c.Service.ListenAddr = ":" + port
		}
	}
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// APIKey returns the credential for the embedding and chat services.
func (c *Config) APIKey() (string, error) {
	key := os.Getenv(c.Provider.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set; add it to the environment or .env", domain.ErrConfiguration, c.Provider.APIKeyEnv)
	}
	return key, nil
}

// Collection returns the named collection profile.
func (c *Config) Collection(name string) (CollectionConfig, error) {
	col, ok := c.Collections[name]
	if !ok {
		return CollectionConfig{}, fmt.Errorf("%w: unknown collection %q", domain.ErrConfiguration, name)
	}
	return col, nil
}

// IndexPaths returns the index locations in load order.
func (c *Config) IndexPaths() ([]string, error) {
	paths := make([]string, 0, len(c.LoadOrder))
	for _, name := range c.LoadOrder {
		col, err := c.Collection(name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, col.IndexPath)
	}
	return paths, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("%w: retrieve.top_k must be positive", domain.ErrConfiguration)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding.model is required", domain.ErrConfiguration)
	}
	if c.Chat.Model == "" {
		return fmt.Errorf("%w: chat.model is required", domain.ErrConfiguration)
	}
	if len(c.LoadOrder) == 0 {
		return fmt.Errorf("%w: load_order names no collections", domain.ErrConfiguration)
	}
	for name, col := range c.Collections {
		if col.ChunkSize <= 0 {
			return fmt.Errorf("%w: collection %s: chunk_size must be positive", domain.ErrConfiguration, name)
		}
		if col.Overlap < 0 || col.Overlap >= col.ChunkSize {
			return fmt.Errorf("%w: collection %s: overlap must be in [0, chunk_size)", domain.ErrConfiguration, name)
		}
		if col.IndexPath == "" {
			return fmt.Errorf("%w: collection %s: index_path is required", domain.ErrConfiguration, name)
		}
		if col.Format != "course" && col.Format != "discourse" {
			return fmt.Errorf("%w: collection %s: unknown format %q", domain.ErrConfiguration, name, col.Format)
		}
	}
	_, err := c.IndexPaths()
	return err
}
