// Package index defines the write side of the search index: connectivity
// check, schema creation and batched upsert.
//
// Documents are keyed by their ID, so loading the same record twice
// overwrites the first copy instead of duplicating it.
package index

import (
	"context"

	"github.com/poiesic/issueindex/core"
)

// Client writes documents to a search index.
// Implementations must be safe for sequential use by one pipeline.
type Client interface {
	// Ping checks that the index service is reachable.
	Ping(ctx context.Context) error

	// EnsureSchema creates the named index with the document mapping.
	// An index that already exists is left unchanged and is not an error.
	EnsureSchema(ctx context.Context, name string) error

	// UpsertBatch writes docs to the named index in one bulk operation.
	// When some documents are rejected the result is still returned, along
	// with a *core.PartialBatchError naming them.
	UpsertBatch(ctx context.Context, docs []*core.IndexDocument, name string) (*core.BulkResult, error)

	// Close releases resources held by the client.
	Close() error
}

// SchemaOptions controls the generated index mapping and settings.
type SchemaOptions struct {
	Shards   int
	Replicas int

	// Dimension is the embedding length. Zero leaves the embedding field
	// out of the mapping.
	Dimension int
}

// DefaultSchemaOptions returns a single-shard, replica-free layout without
// an embedding field.
func DefaultSchemaOptions() SchemaOptions {
	return SchemaOptions{Shards: 1, Replicas: 0}
}

func keyword() map[string]any { return map[string]any{"type": "keyword"} }
func text() map[string]any    { return map[string]any{"type": "text"} }
func date() map[string]any    { return map[string]any{"type": "date"} }

func object(props map[string]any) map[string]any {
	return map[string]any{"properties": props}
}

// Schema returns the index creation body: settings plus the document mapping.
// Shard and replica counts sit directly under settings; the k-NN switch uses
// the flat "index.knn" key.
func Schema(opts SchemaOptions) map[string]any {
	settings := map[string]any{
		"number_of_shards":   opts.Shards,
		"number_of_replicas": opts.Replicas,
	}

	properties := map[string]any{
		"id":          keyword(),
		"subject":     text(),
		"description": text(),
		"project": object(map[string]any{
			"id":         keyword(),
			"name":       text(),
			"identifier": keyword(),
		}),
		"tracker":          object(map[string]any{"id": keyword(), "name": keyword()}),
		"status":           object(map[string]any{"id": keyword(), "name": keyword()}),
		"priority":         object(map[string]any{"id": keyword(), "name": keyword()}),
		"author":           object(map[string]any{"id": keyword(), "name": text()}),
		"assigned_to":      object(map[string]any{"id": keyword(), "name": text()}),
		"start_date":       date(),
		"due_date":         date(),
		"created_on":       date(),
		"updated_on":       date(),
		"closed_on":        date(),
		"done_ratio":       map[string]any{"type": "integer"},
		"is_private":       map[string]any{"type": "boolean"},
		"similarity_score": map[string]any{"type": "float"},
		"search_text":      text(),
	}

	if opts.Dimension > 0 {
		settings["index.knn"] = true
		properties["embedding"] = map[string]any{
			"type":      "knn_vector",
			"dimension": opts.Dimension,
		}
	}

	return map[string]any{
		"settings": settings,
		"mappings": map[string]any{"properties": properties},
	}
}
