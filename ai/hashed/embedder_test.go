package hashed

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_Deterministic(t *testing.T) {
	texts := []string{
		"Login page returns 500",
		"a",
		"Überweisung schlägt fehl 🚧",
		"  leading and trailing spaces  ",
	}

	for _, text := range texts {
		first := Vector(text, 1536)
		second := Vector(text, 1536)
		require.Len(t, first, 1536)
		assert.Equal(t, first, second, "vectors for %q should be identical", text)
	}
}

func TestVector_BlankIsZero(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		vector := Vector(text, 1536)
		require.Len(t, vector, 1536)
		assert.Equal(t, Zero(1536), vector)
	}
}

func TestVector_Range(t *testing.T) {
	vector := Vector("range check", 1536)
	for i, v := range vector {
		assert.GreaterOrEqual(t, v, float32(-1), "component %d", i)
		assert.LessOrEqual(t, v, float32(1), "component %d", i)
	}
}

func TestVector_CyclesThroughDigest(t *testing.T) {
	text := "cycle"
	digest := sha256.Sum256([]byte(text))
	vector := Vector(text, 100)

	for i := 0; i < 100; i++ {
		expected := float32((float64(digest[i%32])/255.0)*2 - 1)
		assert.Equal(t, expected, vector[i], "component %d", i)
	}
	assert.Equal(t, vector[0], vector[32])
	assert.Equal(t, vector[5], vector[69])
}

func TestVector_DifferentTextsDiffer(t *testing.T) {
	assert.NotEqual(t, Vector("issue one", 64), Vector("issue two", 64))
}

func TestEmbedder(t *testing.T) {
	e := New(8)
	assert.Equal(t, 8, e.Dimension())

	ctx := context.Background()
	single, err := e.EmbedText(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, Vector("hello", 8), single)

	batch, err := e.EmbedTexts(ctx, []string{"hello", ""})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, single, batch[0])
	assert.Equal(t, Zero(8), batch[1])
}
