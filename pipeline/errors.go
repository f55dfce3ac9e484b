package pipeline

import "errors"

var (
	// ErrSourceRequired is returned when a source client is not provided.
	ErrSourceRequired = errors.New("source client required")

	// ErrIndexRequired is returned when an index client is not provided.
	ErrIndexRequired = errors.New("index client required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrIndexNameRequired is returned when no target index is named.
	ErrIndexNameRequired = errors.New("index name required")
)
