package config

import (
	"testing"
	"time"

	"github.com/poiesic/issueindex/ai"
	"github.com/poiesic/issueindex/pipeline"
	"github.com/poiesic/issueindex/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Source.APIKey = "redmine-key"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultSourceURL, cfg.Source.BaseURL)
	assert.Equal(t, BackendOpenSearch, cfg.Index.Backend)
	assert.Equal(t, DefaultOpenSearchHost, cfg.Index.OpenSearch.Host)
	assert.Equal(t, 1, cfg.Index.OpenSearch.Schema.Shards)
	assert.Equal(t, 0, cfg.Index.OpenSearch.Schema.Replicas)
	assert.Equal(t, ai.ProviderAuto, cfg.Embedding.Provider)
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Pipeline.PageDelay)
	assert.Equal(t, pipeline.DefaultIndexName, cfg.Pipeline.IndexName)
	assert.Equal(t, DefaultDataDir, cfg.Storage.Path)
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1536, cfg.Index.OpenSearch.Schema.Dimension, "schema follows the embedding dimension")
}

func TestValidate_EmbeddingsLeftOut(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.IncludeEmbeddings = false
	require.NoError(t, cfg.Validate())
	assert.Zero(t, cfg.Index.OpenSearch.Schema.Dimension)
}

func TestValidate_AnonymousTracker(t *testing.T) {
	cfg := validConfig()
	cfg.Source.APIKey = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantIs  error
		wantMsg string
	}{
		{"missing source url", func(c *Config) { c.Source.BaseURL = " " }, source.ErrBaseURLRequired, ""},
		{"missing host", func(c *Config) { c.Index.OpenSearch.Host = "" }, nil, "opensearch host"},
		{"user without password", func(c *Config) { c.Index.OpenSearch.User = "admin" }, nil, "set together"},
		{"unknown backend", func(c *Config) { c.Index.Backend = "solr" }, nil, "unknown index backend"},
		{"bad batch size", func(c *Config) { c.Pipeline.BatchSize = 0 }, pipeline.ErrInvalidBatchSize, ""},
		{"negative delay", func(c *Config) { c.Pipeline.PageDelay = -time.Second }, nil, "page delay"},
		{"bad embedding", func(c *Config) { c.Embedding.Dimension = 0 }, nil, "Dimension"},
		{"no storage path", func(c *Config) { c.Storage.Path = "" }, nil, "storage path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_BleveNeedsNoHost(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Backend = BackendBleve
	cfg.Index.OpenSearch.Host = ""
	cfg.Storage.InMemory = true
	cfg.Storage.Path = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_NilEmbeddingGetsDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding = nil
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Embedding)
	assert.Equal(t, ai.ProviderHashed, cfg.Embedding.Resolve())
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend(" OpenSearch ")
	require.NoError(t, err)
	assert.Equal(t, BackendOpenSearch, b)

	b, err = ParseBackend("bleve")
	require.NoError(t, err)
	assert.Equal(t, BackendBleve, b)

	_, err = ParseBackend("elastic")
	assert.Error(t, err)
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.Index.OpenSearch.User = "admin"
	cfg.Index.OpenSearch.Password = "hunter2"
	cfg.Embedding.APIKey = "emb-key"

	r := cfg.Redacted()
	assert.Equal(t, "****", r.Source.APIKey)
	assert.Equal(t, "****", r.Index.OpenSearch.Password)
	assert.Equal(t, "****", r.Embedding.APIKey)
	assert.Equal(t, "admin", r.Index.OpenSearch.User)

	assert.Equal(t, "redmine-key", cfg.Source.APIKey, "original untouched")
	assert.Equal(t, "emb-key", cfg.Embedding.APIKey)
}
