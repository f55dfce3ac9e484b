// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package opensearch implements index.Client against the OpenSearch REST API.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/issueindex/core"
	"github.com/poiesic/issueindex/index"
	"github.com/poiesic/issueindex/retry"
	"github.com/poiesic/issueindex/transport"
)

const (
	// DefaultMaxAttempts bounds how often one bulk batch is sent.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the wait before the second bulk attempt.
	DefaultRetryDelay = 500 * time.Millisecond

	ndjsonContentType = "application/x-ndjson"
	jsonContentType   = "application/json"

	alreadyExists = "resource_already_exists_exception"
	maxErrorBody  = 64 << 10
)

// ErrHostRequired is returned when the client has no host URL.
var ErrHostRequired = errors.New("opensearch host is required")

// Config holds the connection settings for a cluster.
type Config struct {
	Host     string
	User     string
	Password string
	Timeout  time.Duration

	// InsecureSkipVerify disables TLS certificate checks (development only).
	InsecureSkipVerify bool

	MaxAttempts int
	RetryDelay  time.Duration

	Schema index.SchemaOptions
}

// Client talks to one OpenSearch cluster.
type Client struct {
	host   string
	user   string
	pass   string
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

var _ index.Client = (*Client)(nil)

// NewClient creates a client with a bounded-timeout HTTP client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	return NewClientWithHTTP(cfg, transport.NewClient(cfg.Timeout, cfg.InsecureSkipVerify), logger)
}

// NewClientWithHTTP creates a client that sends requests through httpClient.
func NewClientWithHTTP(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, ErrHostRequired
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		host:   strings.TrimRight(cfg.Host, "/"),
		user:   cfg.User,
		pass:   cfg.Password,
		http:   httpClient,
		cfg:    cfg,
		logger: logger.With("component", "opensearch"),
	}, nil
}

// newRequest builds a request with basic auth attached when configured.
// body may be nil.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, contentType string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", jsonContentType)
	if c.user != "" && c.pass != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
	return req, nil
}

// Ping reports the cluster reachable when it answers below 500.
// An auth rejection still proves reachability and is only logged.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return transport.Failed("ping", err)
	}
	defer transport.Drain(resp)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("ping: %w", transport.CheckResponse(resp))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.logger.Warn("cluster reachable but credentials rejected", "status", resp.StatusCode)
	}
	return nil
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// EnsureSchema creates the index with the configured mapping.
func (c *Client) EnsureSchema(ctx context.Context, name string) error {
	if err := validIndexName(name); err != nil {
		return err
	}
	body, err := json.Marshal(index.Schema(c.cfg.Schema))
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/"+url.PathEscape(name), body, jsonContentType)
	if err != nil {
		return fmt.Errorf("build create index request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return transport.Failed("create index", err)
	}
	defer transport.Drain(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Info("created index", "index", name)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error.Type == alreadyExists {
		c.logger.Info("index already exists", "index", name)
		return nil
	}

	msg := eb.Error.Reason
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("create index %s: %w", name, &core.APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		URL:        req.URL.Redacted(),
	})
}

// MissingItemResult is the failure type of a document the bulk response
// does not account for.
const MissingItemResult = "missing_item_result"

type bulkResponse struct {
	Errors bool       `json:"errors"`
	Items  []bulkItem `json:"items"`
}

type bulkItem map[string]bulkItemResult

type bulkItemResult struct {
	ID     core.ID `json:"_id"`
	Status int     `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

// result returns the single action result of an item (index, create...).
func (it bulkItem) result() (bulkItemResult, bool) {
	for _, r := range it {
		return r, true
	}
	return bulkItemResult{}, false
}

// encodeBulk renders docs as newline-delimited action and source lines.
func encodeBulk(docs []*core.IndexDocument, name string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": name, "_id": doc.ID.String()}}
		if err := enc.Encode(action); err != nil {
			return nil, err
		}
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", doc.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// UpsertBatch sends docs as one _bulk request, retrying transient failures.
// Every attempt uses a fresh request and body reader.
func (c *Client) UpsertBatch(ctx context.Context, docs []*core.IndexDocument, name string) (*core.BulkResult, error) {
	if len(docs) == 0 {
		return &core.BulkResult{}, nil
	}
	if err := validIndexName(name); err != nil {
		return nil, err
	}
	payload, err := encodeBulk(docs, name)
	if err != nil {
		return nil, err
	}

	var parsed bulkResponse
	attempt := 0
	err = retry.WithBackoff(ctx, func() error {
		attempt++
		parsed = bulkResponse{}
		return c.sendBulk(ctx, payload, &parsed, attempt)
	}, c.cfg.MaxAttempts, c.cfg.RetryDelay, retry.WithLogger(c.logger))
	if err != nil {
		return nil, fmt.Errorf("bulk upsert of %d documents: %w", len(docs), err)
	}

	if len(parsed.Items) != len(docs) {
		c.logger.Warn("bulk response item count mismatch", "sent", len(docs), "items", len(parsed.Items))
	}

	// Items answer the actions in order; a document without one is a failure.
	result := &core.BulkResult{Submitted: len(docs)}
	for i, doc := range docs {
		var (
			r  bulkItemResult
			ok bool
		)
		if i < len(parsed.Items) {
			r, ok = parsed.Items[i].result()
		}
		if !ok {
			result.Failures = append(result.Failures, core.DocumentFailure{
				ID:     doc.ID,
				Type:   MissingItemResult,
				Reason: "bulk response has no result for this document",
			})
			continue
		}
		if r.Error == nil && r.Status >= 200 && r.Status < 300 {
			result.Indexed++
			continue
		}
		failure := core.DocumentFailure{ID: r.ID, Status: r.Status}
		if failure.ID.IsZero() {
			failure.ID = doc.ID
		}
		if r.Error != nil {
			failure.Type = r.Error.Type
			failure.Reason = r.Error.Reason
		}
		result.Failures = append(result.Failures, failure)
	}

	if len(result.Failures) > 0 {
		return result, &core.PartialBatchError{Failures: result.Failures}
	}
	return result, nil
}

func (c *Client) sendBulk(ctx context.Context, payload []byte, out *bulkResponse, attempt int) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/_bulk", payload, ndjsonContentType)
	if err != nil {
		return retry.Permanent(fmt.Errorf("build bulk request: %w", err))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("bulk request failed", "attempt", attempt, "err", err)
		return transport.Failed("bulk", err)
	}
	defer transport.Drain(resp)

	if err := transport.CheckResponse(resp); err != nil {
		if !retryableStatus(resp.StatusCode) {
			return retry.Permanent(err)
		}
		c.logger.Warn("bulk request rejected", "attempt", attempt, "status", resp.StatusCode)
		return err
	}
	if err := transport.DecodeJSON(resp.Body, out); err != nil {
		return retry.Permanent(err)
	}
	return nil
}

// retryableStatus reports whether a failed bulk call may succeed if resent.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func validIndexName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("index name is required")
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
