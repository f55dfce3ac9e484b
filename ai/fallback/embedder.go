// Package fallback provides the embedder the pipeline talks to: it never fails
// a record.
//
// Blank text always yields the zero vector. Otherwise the primary backend is
// tried first; any error or a vector of the wrong length is logged and
// replaced by the local deterministic generator. Every returned vector has
// exactly the configured dimension.
package fallback

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/poiesic/issueindex/ai"
	"github.com/poiesic/issueindex/ai/hashed"
	"github.com/poiesic/issueindex/core"
)

// Embedder wraps an optional primary backend with a local generator.
type Embedder struct {
	primary   ai.Embedder
	local     ai.Embedder
	dimension int
	logger    *slog.Logger

	fallbacks atomic.Int64
}

var _ ai.Embedder = (*Embedder)(nil)

// New creates a fallback embedder. primary may be nil, in which case every
// non-blank text goes to local. A nil local uses hashed.New(dimension).
func New(primary, local ai.Embedder, dimension int, logger *slog.Logger) *Embedder {
	if dimension <= 0 {
		dimension = core.DefaultDimension
	}
	if local == nil {
		local = hashed.New(dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		primary:   primary,
		local:     local,
		dimension: dimension,
		logger:    logger.With("component", "fallback-embedder"),
	}
}

// Dimension returns the length of every vector this embedder produces.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Fallbacks returns how many texts were embedded locally after the primary failed.
func (e *Embedder) Fallbacks() int64 {
	return e.fallbacks.Load()
}

// EmbedText returns a vector of length Dimension for text. The returned error
// is always nil unless the local generator itself fails.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return hashed.Zero(e.dimension), nil
	}

	if e.primary != nil {
		vector, err := e.primary.EmbedText(ctx, text)
		switch {
		case err != nil:
			e.logger.Warn("primary embedding failed, using local generator", "err", err)
		case core.ValidateVector(vector, e.dimension) != nil:
			e.logger.Warn("primary embedding has wrong length, using local generator",
				"got", len(vector), "want", e.dimension)
		default:
			return vector, nil
		}
		e.fallbacks.Add(1)
	}

	return e.local.EmbedText(ctx, text)
}

// EmbedTexts embeds each text independently so one failure only affects that text.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return ai.EmbedEach(ctx, e, texts)
}
