// Package remote implements ai.Embedder against a plain HTTP embedding service.
//
// The service contract is POST {ServiceURL}/embeddings with a bearer token and
// body {"text": "..."}, answered by {"embedding": [float, ...]}.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/poiesic/issueindex/ai"
	"github.com/poiesic/issueindex/core"
	"github.com/poiesic/issueindex/transport"
)

// ErrEmptyEmbedding is returned when the service answers without a vector.
var ErrEmptyEmbedding = errors.New("embedding service returned no vector")

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embedder calls the embedding service over HTTP.
type Embedder struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config, client *http.Client, logger *slog.Logger) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ServiceURL == "" {
		return nil, errors.New("remote embedder: ServiceURL is required")
	}
	if client == nil {
		client = transport.NewClient(config.Timeout, false)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		url:    config.ServiceURL + "/embeddings",
		apiKey: config.APIKey,
		client: client,
		logger: logger.With("component", "remote-embedder"),
	}, nil
}

// NewEmbedder creates an embedder for the configured service.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config, logger *slog.Logger) (ai.Embedder, error) {
	return newEmbedder(config, nil, logger)
}

// NewEmbedderWithClient is NewEmbedder with a caller-supplied HTTP client.
func NewEmbedderWithClient(config *ai.Config, client *http.Client, logger *slog.Logger) (ai.Embedder, error) {
	return newEmbedder(config, client, logger)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("requesting embedding", "length", len(text))

	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, transport.Failed("embed", err)
	}
	defer transport.Drain(resp)

	if err := transport.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	var out embedResponse
	if err := transport.DecodeJSON(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embed: %w: %w", core.ErrDecode, ErrEmptyEmbedding)
	}
	return out.Embedding, nil
}

// EmbedTexts generates embeddings one call per text; the service has no batch endpoint.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return ai.EmbedEach(ctx, e, texts)
}
