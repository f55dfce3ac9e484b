// Package config assembles the settings of every component into one value
// that is built once at startup and passed down explicitly.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/issueindex/ai"
	"github.com/poiesic/issueindex/index"
	"github.com/poiesic/issueindex/index/opensearch"
	"github.com/poiesic/issueindex/pipeline"
	"github.com/poiesic/issueindex/source"
	"github.com/poiesic/issueindex/transport"
)

// IndexBackend selects where documents are loaded.
type IndexBackend string

const (
	// BackendOpenSearch loads into an OpenSearch cluster.
	BackendOpenSearch IndexBackend = "opensearch"

	// BackendBleve loads into local bleve indexes.
	BackendBleve IndexBackend = "bleve"
)

// Defaults for the connection settings.
const (
	DefaultSourceURL      = "http://localhost:3000"
	DefaultOpenSearchHost = "http://localhost:9200"
	DefaultDataDir        = ".issueindex"
)

// IndexConfig holds the index sink settings.
type IndexConfig struct {
	Backend    IndexBackend
	OpenSearch opensearch.Config

	// BleveDir holds bleve indexes. Empty keeps them in memory.
	BleveDir string
}

// StorageConfig holds the local store settings.
type StorageConfig struct {
	// Path is the BadgerDB directory for checkpoints and the embedding cache.
	Path string

	// InMemory keeps the store in memory; nothing survives the process.
	InMemory bool
}

// Config is the complete configuration of the ETL.
type Config struct {
	Source    source.Config
	Index     IndexConfig
	Embedding *ai.Config
	Pipeline  pipeline.Config
	Storage   StorageConfig
}

// DefaultConfig returns settings for a local tracker and cluster with the
// hashed embedding generator.
func DefaultConfig() *Config {
	return &Config{
		Source: source.Config{
			BaseURL: DefaultSourceURL,
			Timeout: transport.DefaultTimeout,
		},
		Index: IndexConfig{
			Backend: BackendOpenSearch,
			OpenSearch: opensearch.Config{
				Host:        DefaultOpenSearchHost,
				Timeout:     transport.DefaultTimeout,
				MaxAttempts: opensearch.DefaultMaxAttempts,
				RetryDelay:  opensearch.DefaultRetryDelay,
				Schema:      index.DefaultSchemaOptions(),
			},
		},
		Embedding: ai.DefaultConfig(),
		Pipeline:  pipeline.DefaultConfig(),
		Storage: StorageConfig{
			Path: DefaultDataDir,
		},
	}
}

// Validate checks the configuration and fills derived values: the schema
// embedding dimension follows the embedding settings.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Source.BaseURL) == "" {
		errs = append(errs, source.ErrBaseURLRequired)
	}
	if err := c.validateIndex(); err != nil {
		errs = append(errs, err)
	}
	if c.Embedding == nil {
		c.Embedding = ai.DefaultConfig()
	}
	if err := c.Embedding.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage path is required unless storage is in memory"))
	}

	if c.Pipeline.IncludeEmbeddings {
		c.Index.OpenSearch.Schema.Dimension = c.Embedding.Dimension
	} else {
		c.Index.OpenSearch.Schema.Dimension = 0
	}
	return errors.Join(errs...)
}

func (c *Config) validateIndex() error {
	switch c.Index.Backend {
	case BackendOpenSearch:
		if strings.TrimSpace(c.Index.OpenSearch.Host) == "" {
			return opensearch.ErrHostRequired
		}
		if (c.Index.OpenSearch.User == "") != (c.Index.OpenSearch.Password == "") {
			return errors.New("opensearch user and password must be set together")
		}
	case BackendBleve:
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	return nil
}

// ParseBackend converts a flag value to an IndexBackend.
func ParseBackend(s string) (IndexBackend, error) {
	switch b := IndexBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendOpenSearch, BackendBleve:
		return b, nil
	default:
		return "", fmt.Errorf("unknown index backend %q: must be opensearch or bleve", s)
	}
}

// Redacted returns a copy safe to log: credentials are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Source.APIKey = mask(out.Source.APIKey)
	out.Index.OpenSearch.Password = mask(out.Index.OpenSearch.Password)
	if c.Embedding != nil {
		emb := *c.Embedding
		emb.APIKey = mask(emb.APIKey)
		out.Embedding = &emb
	}
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
