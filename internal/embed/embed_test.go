package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHashingDefaultsInvalidDimTo256(t *testing.T) {
	assert.Equal(t, 256, NewHashing(0).Dim)
	assert.Equal(t, 256, NewHashing(-5).Dim)
	assert.Equal(t, 64, NewHashing(64).Dim)
}

func TestEmbedProducesL2NormalizedVectorOfConfiguredDimension(t *testing.T) {
	h := NewHashing(32)
	vec, err := h.Embed(context.Background(), "admissions by type")
	require.NoError(t, err)
	require.Len(t, vec, 32)

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-6)
}

func TestEmbedIsCaseInsensitiveAndDeterministic(t *testing.T) {
	h := NewHashing(64)
	v1, err := h.Embed(context.Background(), "Admission Type")
	require.NoError(t, err)
	v2, err := h.Embed(context.Background(), "admission type")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestEmbedOfEmptyTextIsZeroVector(t *testing.T) {
	h := NewHashing(16)
	vec, err := h.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestEmbedDistinguishesUnrelatedText(t *testing.T) {
	h := NewHashing(64)
	v1, err := h.Embed(context.Background(), "admission type emergency")
	require.NoError(t, err)
	v2, err := h.Embed(context.Background(), "icu stay duration")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}
