// Package bleve implements index.Client with an embedded bleve index, for
// offline runs and tests that should not need a cluster.
//
// Each index name maps to one bleve index under the base directory, or to a
// memory-only index when no directory is configured. Documents are keyed by
// ID, so re-indexing overwrites. Embeddings are not stored.
package bleve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/poiesic/issueindex/core"
	"github.com/poiesic/issueindex/index"
)

// IndexSuffix is appended to index names to form directory names.
const IndexSuffix = ".bleve"

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("bleve index client is closed")

// Client writes documents to local bleve indexes.
type Client struct {
	baseDir string
	logger  *slog.Logger

	mu      sync.Mutex
	indexes map[string]bleve.Index
	closed  bool
}

var _ index.Client = (*Client)(nil)

// NewClient creates a client storing indexes under baseDir.
// An empty baseDir keeps every index in memory.
func NewClient(baseDir string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseDir: baseDir,
		logger:  logger.With("component", "bleve-index"),
		indexes: map[string]bleve.Index{},
	}
}

// CreateIndexMapping creates the bleve mapping for issue documents.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	for _, field := range []string{"subject", "description", "search_text"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(field, f)
	}

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true
	docMapping.AddFieldMappingsAt("id", idField)

	for _, ref := range []string{"tracker", "status", "priority"} {
		sub := bleve.NewDocumentMapping()
		name := bleve.NewTextFieldMapping()
		name.Analyzer = keyword.Name
		sub.AddFieldMappingsAt("name", name)
		docMapping.AddSubDocumentMapping(ref, sub)
	}

	score := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt("similarity_score", score)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

func (c *Client) indexPath(name string) string {
	return filepath.Join(c.baseDir, name+IndexSuffix)
}

// open returns the named index, opening or creating it on first use.
func (c *Client) open(name string) (bleve.Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid index name %q", name)
	}
	if idx, ok := c.indexes[name]; ok {
		return idx, nil
	}

	var (
		idx bleve.Index
		err error
	)
	if c.baseDir == "" {
		idx, err = bleve.NewMemOnly(CreateIndexMapping())
	} else {
		path := c.indexPath(name)
		idx, err = bleve.Open(path)
		if err != nil {
			if err := os.MkdirAll(c.baseDir, 0755); err != nil {
				return nil, err
			}
			idx, err = bleve.New(path, CreateIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", name, err)
	}
	c.indexes[name] = idx
	return idx, nil
}

// Ping succeeds while the client is open and its directory is usable.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if c.baseDir == "" {
		return nil
	}
	return os.MkdirAll(c.baseDir, 0755)
}

// EnsureSchema opens or creates the named index.
func (c *Client) EnsureSchema(ctx context.Context, name string) error {
	_, err := c.open(name)
	return err
}

// toSource converts a document to the field map bleve indexes,
// leaving out the embedding.
func toSource(doc *core.IndexDocument) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var source map[string]any
	if err := json.Unmarshal(data, &source); err != nil {
		return nil, err
	}
	delete(source, "embedding")
	stringifyIDs(source)
	return source, nil
}

// stringifyIDs turns numeric "id" values back into text, which is how the
// mapping indexes ids.
func stringifyIDs(m map[string]any) {
	for k, v := range m {
		switch v := v.(type) {
		case float64:
			if k == "id" {
				m[k] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		case map[string]any:
			stringifyIDs(v)
		}
	}
}

// UpsertBatch indexes docs in one bleve batch. Documents that cannot be
// converted are reported in a *core.PartialBatchError; the rest are written.
func (c *Client) UpsertBatch(ctx context.Context, docs []*core.IndexDocument, name string) (*core.BulkResult, error) {
	if len(docs) == 0 {
		return &core.BulkResult{}, nil
	}
	idx, err := c.open(name)
	if err != nil {
		return nil, err
	}

	result := &core.BulkResult{Submitted: len(docs)}
	batch := idx.NewBatch()
	for _, doc := range docs {
		if doc.ID.IsZero() {
			result.Failures = append(result.Failures, core.DocumentFailure{Type: "missing_id", Reason: core.ErrMissingID.Error()})
			continue
		}
		source, err := toSource(doc)
		if err == nil {
			err = batch.Index(doc.ID.String(), source)
		}
		if err != nil {
			result.Failures = append(result.Failures, core.DocumentFailure{ID: doc.ID, Type: "index_error", Reason: err.Error()})
			continue
		}
		result.Indexed++
	}

	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to apply batch: %w", err)
	}
	c.logger.Debug("indexed batch", "index", name, "indexed", result.Indexed)

	if len(result.Failures) > 0 {
		return result, &core.PartialBatchError{Failures: result.Failures}
	}
	return result, nil
}

// DocCount returns the number of documents in the named index.
func (c *Client) DocCount(name string) (uint64, error) {
	idx, err := c.open(name)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Close closes every open index.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for name, idx := range c.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	c.indexes = nil
	return errors.Join(errs...)
}
