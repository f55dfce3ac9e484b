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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/issueindex/core"
)

// checkpointFormat is written first so older layouts can be detected.
const checkpointFormat = 1

// maxVectorLength bounds decoded vectors; no embedding model comes close.
const maxVectorLength = 1 << 16

// MarshalCheckpoint serializes a Checkpoint to bytes.
// Timestamps are stored as Unix microseconds.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	updated := checkpoint.UpdatedAt.UnixMicro()
	size := varint.Int.Size(checkpointFormat) +
		ord.String.Size(checkpoint.Name) +
		ord.String.Size(checkpoint.RunID) +
		varint.Int.Size(checkpoint.Offset) +
		varint.Int.Size(checkpoint.Fetched) +
		varint.Int.Size(checkpoint.Indexed) +
		ord.Bool.Size(checkpoint.Completed) +
		varint.Int64.Size(updated)

	buf := make([]byte, size)
	n := varint.Int.Marshal(checkpointFormat, buf)
	n += ord.String.Marshal(checkpoint.Name, buf[n:])
	n += ord.String.Marshal(checkpoint.RunID, buf[n:])
	n += varint.Int.Marshal(checkpoint.Offset, buf[n:])
	n += varint.Int.Marshal(checkpoint.Fetched, buf[n:])
	n += varint.Int.Marshal(checkpoint.Indexed, buf[n:])
	n += ord.Bool.Marshal(checkpoint.Completed, buf[n:])
	varint.Int64.Marshal(updated, buf[n:])
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	var (
		cp  core.Checkpoint
		n   int
		m   int
		err error
	)
	wrap := func(field string, err error) error {
		return fmt.Errorf("%w: checkpoint %s: %w", ErrSerializationFailed, field, err)
	}

	format, m, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, wrap("format", err)
	}
	if format != checkpointFormat {
		return nil, fmt.Errorf("%w: unknown checkpoint format %d", ErrSerializationFailed, format)
	}
	n += m
	if cp.Name, m, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, wrap("name", err)
	}
	n += m
	if cp.RunID, m, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, wrap("run id", err)
	}
	n += m
	if cp.Offset, m, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return nil, wrap("offset", err)
	}
	n += m
	if cp.Fetched, m, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return nil, wrap("fetched", err)
	}
	n += m
	if cp.Indexed, m, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return nil, wrap("indexed", err)
	}
	n += m
	if cp.Completed, m, err = ord.Bool.Unmarshal(data[n:]); err != nil {
		return nil, wrap("completed", err)
	}
	n += m
	updated, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, wrap("updated at", err)
	}
	cp.UpdatedAt = time.UnixMicro(updated).UTC()
	return &cp, nil
}

// MarshalVector serializes an embedding as a length prefix followed by
// fixed-width float32 components.
func MarshalVector(vector []float32) []byte {
	size := varint.Int.Size(len(vector))
	for _, v := range vector {
		size += raw.Float32.Size(v)
	}
	buf := make([]byte, size)
	n := varint.Int.Marshal(len(vector), buf)
	for _, v := range vector {
		n += raw.Float32.Marshal(v, buf[n:])
	}
	return buf
}

// UnmarshalVector deserializes an embedding written by MarshalVector.
func UnmarshalVector(data []byte) ([]float32, error) {
	length, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vector length: %w", ErrSerializationFailed, err)
	}
	if length < 0 || length > maxVectorLength {
		return nil, fmt.Errorf("%w: vector length %d out of range", ErrSerializationFailed, length)
	}
	if len(data)-n < length*4 {
		return nil, fmt.Errorf("%w: vector of %d components in %d bytes", ErrTruncatedData, length, len(data)-n)
	}
	vector := make([]float32, length)
	for i := range vector {
		v, m, err := raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: vector component %d: %w", ErrSerializationFailed, i, err)
		}
		vector[i] = v
		n += m
	}
	return vector, nil
}
