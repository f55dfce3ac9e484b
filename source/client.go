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


// Package source reads issues from a Redmine tracker one page at a time.
//
// Every call is a single GET, authenticated when an API key is set; the client never retries and
// never writes to the tracker. Failures are reported with the core failure
// kinds so callers can tell a rejected key (core.ErrAuth) from an outage
// (core.ErrTransport) or a malformed body (core.ErrDecode).
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/issueindex/core"
	"github.com/poiesic/issueindex/transport"
)

// IncludeRelations lists the associations requested when relations are enabled.
const IncludeRelations = "relations,attachments,journals,custom_fields"

// Config holds the connection settings for a tracker.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate checks (development only).
	InsecureSkipVerify bool
}

// Page is one page of issues in upstream order.
type Page struct {
	Issues     []*core.Issue
	TotalCount int
	Offset     int
	Limit      int

	// RecordErrors holds, by position in Issues, the records that could not
	// be decoded. Their Issues entry is nil.
	RecordErrors map[int]*RecordError
}

// RecordErr returns the decode failure of the record at position i, or nil.
func (p *Page) RecordErr(i int) *RecordError {
	return p.RecordErrors[i]
}

// Len returns the number of issues on the page.
func (p *Page) Len() int {
	return len(p.Issues)
}

// Client is a read-only Redmine API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client with a bounded-timeout HTTP client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	return NewClientWithHTTP(cfg, transport.NewClient(cfg.Timeout, cfg.InsecureSkipVerify), logger)
}

// NewClientWithHTTP creates a client that sends requests through httpClient.
func NewClientWithHTTP(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrBaseURLRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger.With("component", "redmine"),
	}, nil
}

type issuesResponse struct {
	Issues     []json.RawMessage `json:"issues"`
	TotalCount int               `json:"total_count"`
	Offset     int               `json:"offset"`
	Limit      int               `json:"limit"`
}

// FetchPage returns up to limit issues starting at offset.
// An empty page means there is nothing left to read.
func (c *Client) FetchPage(ctx context.Context, limit, offset int, includeRelations bool) (*Page, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if offset < 0 {
		return nil, ErrInvalidOffset
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if includeRelations {
		params.Set("include", IncludeRelations)
	}
	endpoint := c.baseURL + "/issues.json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build issues request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Redmine-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("fetching issues", "limit", limit, "offset", offset)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transport.Failed("fetch issues", err)
	}
	defer transport.Drain(resp)

	if err := transport.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("fetch issues: %w", err)
	}

	var body issuesResponse
	if err := transport.DecodeJSON(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("fetch issues: %w", err)
	}

	page := &Page{
		Issues:     make([]*core.Issue, len(body.Issues)),
		TotalCount: body.TotalCount,
		Offset:     offset,
		Limit:      limit,
	}
	for i, raw := range body.Issues {
		issue, err := decodeIssue(raw)
		if err != nil {
			if page.RecordErrors == nil {
				page.RecordErrors = map[int]*RecordError{}
			}
			page.RecordErrors[i] = err
			c.logger.Warn("undecodable issue", "offset", offset+i, "id", err.ID, "err", err.Err)
			continue
		}
		page.Issues[i] = issue
	}
	return page, nil
}

// decodeIssue decodes one record of the issues array. A record that does not
// decode keeps whatever id could be read from it.
func decodeIssue(raw json.RawMessage) (*core.Issue, *RecordError) {
	var issue *core.Issue
	if err := json.Unmarshal(raw, &issue); err != nil {
		var head struct {
			ID core.ID `json:"id"`
		}
		_ = json.Unmarshal(raw, &head)
		return nil, &RecordError{ID: head.ID, Err: err}
	}
	return issue, nil
}
