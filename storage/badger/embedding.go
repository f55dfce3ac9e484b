package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/issueindex/storage"
)

// EmbeddingCacheRepository implements storage.EmbeddingCache for BadgerDB.
// Entries carry a Badger TTL, so expired vectors are never returned.
type EmbeddingCacheRepository struct {
	backend *Backend
	ttl     time.Duration
}

var _ storage.EmbeddingCache = (*EmbeddingCacheRepository)(nil)

// NewEmbeddingCacheRepository creates a cache whose entries live for ttl.
// A ttl of zero keeps entries until they are overwritten.
func NewEmbeddingCacheRepository(backend *Backend, ttl time.Duration) *EmbeddingCacheRepository {
	return &EmbeddingCacheRepository{
		backend: backend,
		ttl:     ttl,
	}
}

// GetEmbedding returns the cached vector for key, if present.
func (r *EmbeddingCacheRepository) GetEmbedding(ctx context.Context, key uint64) ([]float32, bool, error) {
	var vector []float32
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			vector, unmarshalErr = storage.UnmarshalVector(val)
			return unmarshalErr
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vector, true, nil
}

// PutEmbedding stores vector under key.
func (r *EmbeddingCacheRepository) PutEmbedding(ctx context.Context, key uint64, vector []float32) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeEmbeddingKey(key), storage.MarshalVector(vector))
		if r.ttl > 0 {
			entry = entry.WithTTL(r.ttl)
		}
		return tx.SetEntry(entry)
	})
}
