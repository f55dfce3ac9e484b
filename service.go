// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package issueindex

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/issueindex/ai"
	"github.com/poiesic/issueindex/ai/cache"
	"github.com/poiesic/issueindex/ai/fallback"
	"github.com/poiesic/issueindex/ai/hashed"
	"github.com/poiesic/issueindex/ai/openai"
	"github.com/poiesic/issueindex/ai/remote"
	"github.com/poiesic/issueindex/config"
	"github.com/poiesic/issueindex/index"
	"github.com/poiesic/issueindex/index/bleve"
	"github.com/poiesic/issueindex/index/opensearch"
	"github.com/poiesic/issueindex/pipeline"
	"github.com/poiesic/issueindex/source"
	"github.com/poiesic/issueindex/storage"
	"github.com/poiesic/issueindex/storage/badger"
)

// Service owns the local store and the clients built from a config.Config.
type Service struct {
	cfg         *config.Config
	backend     *badger.Backend
	checkpoints *badger.CheckpointRepository
	source      *source.Client
	index       index.Client
	embedder    *fallback.Embedder
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger *slog.Logger
	index  index.Client
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithIndexClient replaces the index client the config would build.
// The service takes ownership and closes it.
func WithIndexClient(client index.Client) ServiceOption {
	return func(o *serviceOptions) {
		o.index = client
	}
}

// Open validates cfg and builds every component.
func Open(cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	backend, err := badger.OpenBackendWithLogger(cfg.Storage.Path, cfg.Storage.InMemory, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	embedder, err := NewEmbedder(cfg.Embedding, badger.NewEmbeddingCacheRepository(backend, cfg.Embedding.CacheTTL), logger)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	src, err := source.NewClient(cfg.Source, logger)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to create source client: %w", err)
	}

	idx := options.index
	if idx == nil {
		idx, err = NewIndexClient(cfg.Index, logger)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to create index client: %w", err)
		}
	}

	return &Service{
		cfg:         cfg,
		backend:     backend,
		checkpoints: badger.NewCheckpointRepository(backend),
		source:      src,
		index:       idx,
		embedder:    embedder,
		logger:      logger,
	}, nil
}

// NewEmbedder builds the pipeline embedder for cfg: the configured backend
// behind a cache (when store is set and the TTL positive), wrapped so that
// any failure falls back to the hashed generator.
func NewEmbedder(cfg *ai.Config, store storage.EmbeddingCache, logger *slog.Logger) (*fallback.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var primary ai.Embedder
	var err error
	switch p := cfg.Resolve(); p {
	case ai.ProviderRemote:
		primary, err = remote.NewEmbedder(cfg, logger)
	case ai.ProviderOpenAI:
		primary, err = openai.NewEmbedder(cfg, logger)
	case ai.ProviderHashed:
	default:
		err = fmt.Errorf("unsupported embedding provider %q", p)
	}
	if err != nil {
		return nil, err
	}

	if primary != nil && store != nil && cfg.CacheTTL > 0 {
		primary = cache.New(primary, store, cfg.Dimension, logger)
	}
	if logger != nil {
		logger.Info("embedding provider selected", "provider", cfg.Resolve(), "dimension", cfg.Dimension)
	}
	return fallback.New(primary, hashed.New(cfg.Dimension), cfg.Dimension, logger), nil
}

// NewIndexClient builds the index client selected by cfg.Backend.
func NewIndexClient(cfg config.IndexConfig, logger *slog.Logger) (index.Client, error) {
	switch cfg.Backend {
	case config.BackendOpenSearch:
		return opensearch.NewClient(cfg.OpenSearch, logger)
	case config.BackendBleve:
		return bleve.NewClient(cfg.BleveDir, logger), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// NewPipeline creates a driver wired to the service's clients and checkpoint
// store. opts are applied after the defaults.
func (s *Service) NewPipeline(opts ...pipeline.Option) (*pipeline.Driver, error) {
	defaults := []pipeline.Option{
		pipeline.WithLogger(s.logger),
		pipeline.WithCheckpoints(s.checkpoints),
	}
	return pipeline.NewDriver(s.source, s.index, s.embedder, s.cfg.Pipeline, append(defaults, opts...)...)
}

// Index returns the index client.
func (s *Service) Index() index.Client {
	return s.index
}

// Source returns the tracker client.
func (s *Service) Source() *source.Client {
	return s.source
}

// Embedder returns the pipeline embedder.
func (s *Service) Embedder() *fallback.Embedder {
	return s.embedder
}

// CheckpointRepository returns the checkpoint store.
func (s *Service) CheckpointRepository() storage.CheckpointRepository {
	return s.checkpoints
}

// Close closes the index client and the local store.
func (s *Service) Close() error {
	if err := s.index.Close(); err != nil {
		s.logger.Error("error closing index client", "err", err)
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
