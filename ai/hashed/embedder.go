// Package hashed provides the deterministic local embedding generator.
//
// Vectors are derived from the SHA-256 digest of the text: component i is the
// digest byte at i modulo the digest length, scaled from [0, 255] to [-1, 1].
// The output carries no lexical or semantic meaning. It exists so the
// pipeline runs and tests without an embedding backend.
package hashed

import (
	"context"
	"crypto/sha256"
	"strings"

	"github.com/poiesic/issueindex/ai"
)

// Embedder is a pure, deterministic ai.Embedder.
type Embedder struct {
	dimension int
}

var _ ai.Embedder = (*Embedder)(nil)
var _ ai.Dimensioned = (*Embedder)(nil)

// New creates a generator producing vectors of the given length.
func New(dimension int) *Embedder {
	return &Embedder{dimension: dimension}
}

// Dimension returns the vector length.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// EmbedText returns the hashed vector for text. Blank text yields the zero vector.
func (e *Embedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return Vector(text, e.dimension), nil
}

// EmbedTexts returns the hashed vector for each text.
func (e *Embedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = Vector(text, e.dimension)
	}
	return embeddings, nil
}

// Vector computes the deterministic vector for text.
func Vector(text string, dimension int) []float32 {
	vector := make([]float32, dimension)
	if strings.TrimSpace(text) == "" {
		return vector
	}

	digest := sha256.Sum256([]byte(text))
	for i := range vector {
		b := digest[i%len(digest)]
		vector[i] = float32((float64(b)/255.0)*2 - 1)
	}
	return vector
}

// Zero returns the all-zero vector of the given length.
func Zero(dimension int) []float32 {
	return make([]float32, dimension)
}
