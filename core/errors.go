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


package core

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds shared by every outbound client.
var (
	// ErrTransport indicates a network, DNS, TLS or timeout failure, or an
	// unexpected status from a remote service.
	ErrTransport = errors.New("transport failure")

	// ErrAuth indicates the remote service rejected the configured credential.
	ErrAuth = errors.New("credential rejected")

	// ErrDecode indicates a response body that could not be decoded.
	ErrDecode = errors.New("malformed response")

	// ErrMapping indicates a single record could not be transformed.
	ErrMapping = errors.New("record mapping failed")

	// ErrPartialBatch indicates a batch call succeeded but some documents in it failed.
	ErrPartialBatch = errors.New("batch partially failed")

	// ErrMissingID indicates a record without an identifier.
	ErrMissingID = errors.New("record identifier is missing")
)

// APIError is a non-success HTTP response from a remote service.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Is maps the status code onto the failure kinds above.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.StatusCode == 401 || e.StatusCode == 403
	case ErrTransport:
		return e.StatusCode != 401 && e.StatusCode != 403
	}
	return false
}

// PartialBatchError carries the per-document failures of a batch.
type PartialBatchError struct {
	Failures []DocumentFailure
}

func (e *PartialBatchError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.ID.String())
	}
	return fmt.Sprintf("%d document(s) failed: %s", len(e.Failures), strings.Join(ids, ", "))
}

func (e *PartialBatchError) Is(target error) bool {
	return target == ErrPartialBatch
}

// IDs returns the identifiers of the failed documents.
func (e *PartialBatchError) IDs() []ID {
	ids := make([]ID, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ID
	}
	return ids
}

// IsAuth reports whether err is a rejected credential.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}
