package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

func TestFuse_GraphOnlyItemGetsZeroTextSegment(t *testing.T) {
	dims := Dims{Text: 2, Graph: 3}
	graph := models.EmbeddingMap{"1": {0.1, 0.2, 0.3}}

	fused, err := Fuse(nil, graph, dims)
	require.NoError(t, err)
	require.Len(t, fused, 1)
	assert.Equal(t, []float32{0, 0, 0.1, 0.2, 0.3}, fused["1"])
}

func TestFuse_TextOnlyItemGetsZeroGraphSegment(t *testing.T) {
	dims := Dims{Text: 2, Graph: 3}
	text := models.EmbeddingMap{"1": {0.1, 0.2}}

	fused, err := Fuse(text, nil, dims)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0, 0, 0}, fused["1"])
}

func TestFuse_UnionOfKeys(t *testing.T) {
	dims := Dims{Text: 2, Graph: 2}
	text := models.EmbeddingMap{
		"1": {1, 1},
		"2": {2, 2},
	}
	graph := models.EmbeddingMap{
		"2": {3, 3},
		"3": {4, 4},
	}

	fused, err := Fuse(text, graph, dims)
	require.NoError(t, err)
	require.Len(t, fused, 3)

	assert.Equal(t, []float32{1, 1, 0, 0}, fused["1"])
	assert.Equal(t, []float32{2, 2, 3, 3}, fused["2"])
	assert.Equal(t, []float32{0, 0, 4, 4}, fused["3"])

	for id, vec := range fused {
		assert.Len(t, vec, dims.Total(), "item %s", id)
	}
}

func TestFuse_EmptyInputs(t *testing.T) {
	fused, err := Fuse(models.EmbeddingMap{}, models.EmbeddingMap{}, Dims{Text: 4, Graph: 4})
	require.NoError(t, err)
	assert.NotNil(t, fused)
	assert.Empty(t, fused)
}

func TestFuse_DoesNotAliasInputs(t *testing.T) {
	text := models.EmbeddingMap{"1": {1, 2}}
	fused, err := Fuse(text, nil, Dims{Text: 2, Graph: 1})
	require.NoError(t, err)

	fused["1"][0] = 99
	assert.Equal(t, float32(1), text["1"][0])
}

func TestFuse_DimensionMismatch(t *testing.T) {
	dims := Dims{Text: 2, Graph: 3}

	_, err := Fuse(models.EmbeddingMap{"1": {0.1}}, nil, dims)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	_, err = Fuse(nil, models.EmbeddingMap{"1": {0.1, 0.2}}, dims)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestFuse_InvalidDims(t *testing.T) {
	_, err := Fuse(nil, nil, Dims{Text: 0, Graph: 3})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestDims_Total(t *testing.T) {
	assert.Equal(t, 832, Dims{Text: 768, Graph: 64}.Total())
}
