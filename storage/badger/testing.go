package badger

// NewMemoryRepositories creates in-memory checkpoint and embedding cache
// repositories for testing. Caller must close the backend when done.
func NewMemoryRepositories() (*CheckpointRepository, *EmbeddingCacheRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewCheckpointRepository(backend), NewEmbeddingCacheRepository(backend, 0), backend, nil
}
