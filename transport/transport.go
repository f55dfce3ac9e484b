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


// Package transport holds the HTTP plumbing shared by the source, index and
// embedding clients: bounded-timeout clients and mapping of responses onto
// the core failure kinds.
package transport

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/issueindex/core"
)

const (
	// DefaultTimeout bounds every outbound call when none is configured.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is kept in APIError.
	maxErrorBody = 512
)

// NewClient returns an http.Client with a bounded timeout.
// insecureSkipVerify disables TLS certificate checks and is meant for
// development hosts with self-signed certificates only.
func NewClient(timeout time.Duration, insecureSkipVerify bool) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for dev hosts
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: tr,
	}
}

// Failed wraps an error returned by http.Client.Do as a transport failure.
func Failed(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrTransport, err)
}

// CheckResponse returns nil for 2xx responses and an *core.APIError otherwise.
// The body is drained (up to a limit) into the error message.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &core.APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		URL:        resp.Request.URL.Redacted(),
	}
}

// DecodeJSON decodes a response body into v, reporting failures as core.ErrDecode.
func DecodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", core.ErrDecode, err)
	}
	return nil
}

// Drain discards the rest of a body so the connection can be reused, then closes it.
func Drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
