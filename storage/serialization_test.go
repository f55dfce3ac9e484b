package storage

import (
	"testing"
	"time"

	"github.com/poiesic/issueindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name       string
		checkpoint *core.Checkpoint
	}{
		{
			name:       "empty checkpoint",
			checkpoint: &core.Checkpoint{UpdatedAt: time.UnixMicro(0).UTC()},
		},
		{
			name: "in progress",
			checkpoint: &core.Checkpoint{
				Name:      "redmine_issues",
				RunID:     "6c1f5f2e-3a63-4a8f-9d0e-1f2b3c4d5e6f",
				Offset:    100,
				Fetched:   100,
				Indexed:   98,
				UpdatedAt: now,
			},
		},
		{
			name: "completed",
			checkpoint: &core.Checkpoint{
				Name:      "issues-ü",
				RunID:     "r",
				Offset:    120,
				Fetched:   120,
				Indexed:   120,
				Completed: true,
				UpdatedAt: now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalCheckpoint(tt.checkpoint)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalCheckpoint(data)
			require.NoError(t, err)
			assert.Equal(t, tt.checkpoint, decoded)
		})
	}
}

func TestUnmarshalCheckpoint_Invalid(t *testing.T) {
	valid := MarshalCheckpoint(&core.Checkpoint{Name: "issues", RunID: "abc", Offset: 50})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated", valid[:len(valid)/2]},
		{"unknown format", append([]byte{0x7e}, valid[1:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCheckpoint(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalVector(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{"empty", []float32{}},
		{"single", []float32{0.5}},
		{"range", []float32{-1, -0.25, 0, 0.25, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalVector(tt.vector)
			decoded, err := UnmarshalVector(data)
			require.NoError(t, err)
			assert.Equal(t, tt.vector, decoded)
		})
	}
}

func TestUnmarshalVector_Invalid(t *testing.T) {
	data := MarshalVector([]float32{1, 2, 3})

	_, err := UnmarshalVector(data[:len(data)-2])
	assert.ErrorIs(t, err, ErrTruncatedData)

	_, err = UnmarshalVector(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
