package pipeline

import (
	"runtime"
	"strings"
	"time"
)

const (
	// DefaultBatchSize is the page size and bulk batch size.
	DefaultBatchSize = 50

	// DefaultPageDelay is the pause between fetch cycles.
	DefaultPageDelay = 100 * time.Millisecond

	// DefaultIndexName is the target index when none is configured.
	DefaultIndexName = "redmine_issues"
)

// Config controls a pipeline run.
type Config struct {
	// IndexName is the target index.
	IndexName string

	// BatchSize is both the page size requested from the source and the
	// number of documents per bulk call.
	BatchSize int

	// PageDelay is the minimum time between two fetches. Zero disables it.
	PageDelay time.Duration

	// Workers is the number of records transformed concurrently.
	Workers int

	// IncludeRelations asks the source for relations, attachments, journals
	// and custom fields.
	IncludeRelations bool

	// IncludeEmbeddings attaches the vector to each document.
	IncludeEmbeddings bool

	// CreateIndex creates the target index before the first fetch.
	CreateIndex bool

	// Resume continues from the last saved checkpoint of IndexName.
	Resume bool
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		IndexName:         DefaultIndexName,
		BatchSize:         DefaultBatchSize,
		PageDelay:         DefaultPageDelay,
		Workers:           defaultWorkers(),
		IncludeRelations:  true,
		IncludeEmbeddings: true,
	}
}

func defaultWorkers() int {
	return max(1, runtime.NumCPU()/2)
}

// Validate checks that the configuration can drive a run.
func (c Config) Validate() error {
	if strings.TrimSpace(c.IndexName) == "" {
		return ErrIndexNameRequired
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	return nil
}
