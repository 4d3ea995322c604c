package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtualta/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 6, cfg.Retrieve.TopK)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, "https://aipipe.org/openai/v1", cfg.Provider.EmbeddingURL)
	assert.Equal(t, "https://aipipe.org/openrouter/v1", cfg.Provider.ChatURL)
	assert.Equal(t, 0, cfg.Provider.MaxRetries)
	assert.Equal(t, 200, cfg.Collections[CollectionCourse].Overlap)
	assert.Equal(t, 100, cfg.Collections[CollectionDiscourse].Overlap)
	assert.Equal(t, 1000, cfg.Collections[CollectionCourse].ChunkSize)
	assert.Equal(t, []string{"course", "discourse"}, cfg.LoadOrder)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "virtualta.yaml")

	content := `
service:
  request_timeout: 15s
retrieve:
  top_k: 4
collections:
  discourse:
    index_path: /srv/index/discourse
  notes:
    format: course
    index_path: /srv/index/notes
    chunk_size: 500
    overlap: 50
load_order: [course, discourse, notes]
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Service.RequestTimeout)
	assert.Equal(t, 4, cfg.Retrieve.TopK)

	discourse := cfg.Collections[CollectionDiscourse]
	assert.Equal(t, "/srv/index/discourse", discourse.IndexPath)
	assert.Equal(t, 1000, discourse.ChunkSize)
	assert.Equal(t, 100, discourse.Overlap)
	assert.Equal(t, "discourse", discourse.Format)

	paths, err := cfg.IndexPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"data/index/course", "/srv/index/discourse", "/srv/index/notes"}, paths)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "virtualta.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("retrieve: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadFromDir(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Retrieve.TopK)

	ragDir := filepath.Join(tmpDir, ".virtualta")
	require.NoError(t, os.MkdirAll(ragDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ragDir, "config.yaml"), []byte("retrieve:\n  top_k: 3\n"), 0644))

	cfg, err = LoadFromDir(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retrieve.TopK)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "virtualta.yaml")
	cfg := DefaultConfig()
	cfg.Chat.Model = "openai/gpt-4o-mini"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", loaded.Chat.Model)
	assert.Equal(t, cfg.Service.RequestTimeout, loaded.Service.RequestTimeout)
}

func TestPortOverride(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg, err := LoadFromDir(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Service.ListenAddr)
}

func TestAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.APIKeyEnv = "VIRTUALTA_TEST_KEY"

	t.Setenv("VIRTUALTA_TEST_KEY", "")
	_, err := cfg.APIKey()
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	t.Setenv("VIRTUALTA_TEST_KEY", "secret")
	key, err := cfg.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "secret", key)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VIRTUALTA_DOTENV_KEY=from-file\n"), 0644))
	t.Setenv("VIRTUALTA_DOTENV_KEY", "")
	os.Unsetenv("VIRTUALTA_DOTENV_KEY")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("VIRTUALTA_DOTENV_KEY"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"top_k", func(c *Config) { c.Retrieve.TopK = 0 }},
		{"overlap", func(c *Config) {
			col := c.Collections[CollectionCourse]
			col.Overlap = col.ChunkSize
			c.Collections[CollectionCourse] = col
		}},
		{"chunk size", func(c *Config) {
			col := c.Collections[CollectionDiscourse]
			col.ChunkSize = 0
			c.Collections[CollectionDiscourse] = col
		}},
		{"load order", func(c *Config) { c.LoadOrder = []string{"course", "slides"} }},
		{"empty load order", func(c *Config) { c.LoadOrder = nil }},
		{"format", func(c *Config) {
			col := c.Collections[CollectionCourse]
			col.Format = "pdf"
			c.Collections[CollectionCourse] = col
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrConfiguration)
		})
	}
}
