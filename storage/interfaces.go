package storage

import (
	"context"

	"github.com/poiesic/issueindex/core"
)

// CheckpointRepository persists run progress so an interrupted run can resume.
// Implementations must be thread-safe.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint under its Name, replacing any
	// previous one, and stamps UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint stored under name.
	// Returns nil, nil if none exists.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint stored under name.
	// Deleting a missing checkpoint is not an error.
	DeleteCheckpoint(ctx context.Context, name string) error
}

// EmbeddingCache stores vectors keyed by a content hash of the embedded text.
type EmbeddingCache interface {
	// GetEmbedding returns the cached vector for key.
	// The boolean is false when nothing (or only an expired entry) is stored.
	GetEmbedding(ctx context.Context, key uint64) ([]float32, bool, error)

	// PutEmbedding stores vector under key. Entries expire after the
	// repository's configured TTL.
	PutEmbedding(ctx context.Context, key uint64, vector []float32) error
}
