// Package cache puts a persistent embedding cache in front of an ai.Embedder.
//
// Keys are the BLAKE2b content key of the exact text: a cached vector is
// only ever served for the text the backend embedded, so a record's vector
// does not depend on which variant of it was seen first.
// Only vectors returned by the wrapped backend are stored; a cache read or
// write failure is logged and never fails the embedding call.
package cache

import (
	"context"
	"log/slog"

	"github.com/poiesic/issueindex/ai"
	"github.com/poiesic/issueindex/core"
	"github.com/poiesic/issueindex/storage"
)

// Embedder serves vectors from a storage.EmbeddingCache and fills it from
// the wrapped backend on a miss.
type Embedder struct {
	backend   ai.Embedder
	store     storage.EmbeddingCache
	dimension int
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// New wraps backend with store. When dimension is positive, vectors of any
// other length are passed through but not stored.
func New(backend ai.Embedder, store storage.EmbeddingCache, dimension int, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		backend:   backend,
		store:     store,
		dimension: dimension,
		logger:    logger.With("component", "embedding-cache"),
	}
}

// Key returns the cache key for text.
func Key(text string) uint64 {
	return core.ContentKey(text)
}

// EmbedText returns the cached vector for text or asks the backend for one.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := Key(text)

	vector, ok, err := e.store.GetEmbedding(ctx, key)
	if err != nil {
		e.logger.Warn("embedding cache read failed", "err", err)
	} else if ok {
		e.logger.Debug("embedding cache hit", "key", key)
		return vector, nil
	}

	vector, err = e.backend.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	if e.dimension > 0 && len(vector) != e.dimension {
		return vector, nil
	}
	if err := e.store.PutEmbedding(ctx, key, vector); err != nil {
		e.logger.Warn("embedding cache write failed", "err", err)
	}
	return vector, nil
}

// EmbedTexts embeds each text through the cache.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return ai.EmbedEach(ctx, e, texts)
}
