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
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// DefaultDimension is the embedding length used by the reference index mapping.
const DefaultDimension = 1536

// ID identifies an upstream record or one of its references.
// The tracker API emits integers; some deployments emit strings. Both decode
// to text. On encode an ID that is a canonical integer is written as a JSON
// number and anything else as a JSON string, so tracker ids keep their type.
type ID string

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integer ids as numbers and other ids as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// IsNumeric reports whether the id is a canonical non-negative integer:
// digits only, with no leading zero unless the id is "0".
func (id ID) IsNumeric() bool {
	s := string(id)
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// String returns the canonical text form.
func (id ID) String() string {
	return string(id)
}

// ContentKey derives a stable 64-bit key from text using BLAKE2b.
// Identical text always produces the same key.
func ContentKey(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// Ref is a nested reference object on an issue (project, tracker, status...).
// Keys the tracker sends beyond these are dropped on decode.
type Ref struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier,omitempty"`
}

// Issue is a record as returned by the upstream tracker.
// It is a read-only snapshot; the pipeline never mutates it.
type Issue struct {
	ID          ID      `json:"id"`
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	Project     *Ref    `json:"project,omitempty"`
	Tracker     *Ref    `json:"tracker,omitempty"`
	Status      *Ref    `json:"status,omitempty"`
	Priority    *Ref    `json:"priority,omitempty"`
	Author      *Ref    `json:"author,omitempty"`
	AssignedTo  *Ref    `json:"assigned_to,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	CreatedOn   *string `json:"created_on,omitempty"`
	UpdatedOn   *string `json:"updated_on,omitempty"`
	ClosedOn    *string `json:"closed_on,omitempty"`
	DoneRatio   *int    `json:"done_ratio,omitempty"`
	IsPrivate   *bool   `json:"is_private,omitempty"`
}

// ProjectName returns the project's display name, or "" when the issue has no project.
func (i *Issue) ProjectName() string {
	if i.Project == nil {
		return ""
	}
	return i.Project.Name
}

// RefDoc is the indexed form of a reference: id and name only.
type RefDoc struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// ProjectDoc is the indexed form of a project reference.
type ProjectDoc struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier,omitempty"`
}

// IndexDocument is the flattened, index-ready representation of an Issue.
// ID is the index primary key; writing the same ID twice overwrites.
type IndexDocument struct {
	ID              ID          `json:"id"`
	Subject         string      `json:"subject"`
	Description     string      `json:"description"`
	Project         *ProjectDoc `json:"project"`
	Tracker         *RefDoc     `json:"tracker"`
	Status          *RefDoc     `json:"status"`
	Priority        *RefDoc     `json:"priority"`
	Author          *RefDoc     `json:"author"`
	AssignedTo      *RefDoc     `json:"assigned_to"`
	StartDate       *string     `json:"start_date"`
	DueDate         *string     `json:"due_date"`
	DoneRatio       *int        `json:"done_ratio"`
	IsPrivate       *bool       `json:"is_private"`
	CreatedOn       *string     `json:"created_on"`
	UpdatedOn       *string     `json:"updated_on"`
	ClosedOn        *string     `json:"closed_on"`
	SimilarityScore float64     `json:"similarity_score"`
	SearchText      string      `json:"search_text"`
	Embedding       []float32   `json:"embedding,omitempty"`
}

// DocumentFailure describes one document the index engine rejected inside an
// otherwise successful batch.
type DocumentFailure struct {
	ID     ID
	Status int
	Type   string
	Reason string
}

// BulkResult is the outcome of one batch submission.
type BulkResult struct {
	Submitted int
	Indexed   int
	Failures  []DocumentFailure
}

// Checkpoint records how far a run got so a later run can resume.
type Checkpoint struct {
	Name      string // index name the checkpoint belongs to
	RunID     string
	Offset    int // next offset to fetch
	Fetched   int
	Indexed   int
	Completed bool
	UpdatedAt time.Time
}
