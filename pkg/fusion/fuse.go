// Package fusion merges per-source embedding maps into one vector per item.
package fusion

import (
	"fmt"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

// Dims is the (text, graph) dimension pair a collection is built from.
// Fusion and collection creation must use the same pair.
type Dims struct {
	Text  int
	Graph int
}

// Total returns the fused vector length
func (d Dims) Total() int {
	return d.Text + d.Graph
}

// Validate checks both dimensions are positive
func (d Dims) Validate() error {
	if d.Text <= 0 || d.Graph <= 0 {
		return core.Validation("fuse", "", "", fmt.Errorf("dimensions must be positive, got text=%d graph=%d", d.Text, d.Graph))
	}
	return nil
}

// Fuse concatenates each item's text vector and graph vector, in that order.
// The key set is the union of both maps; a source that lacks an item contributes
// a zero vector of its configured dimension. Two empty maps yield an empty result.
func Fuse(text, graph models.EmbeddingMap, dims Dims) (models.FusedVectorMap, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if err := checkDim(text, dims.Text, "text"); err != nil {
		return nil, err
	}
	if err := checkDim(graph, dims.Graph, "graph"); err != nil {
		return nil, err
	}

	fused := make(models.FusedVectorMap, len(text)+len(graph))
	for id := range text {
		fused[id] = concat(text[id], graph[id], dims)
	}
	for id := range graph {
		if _, ok := fused[id]; ok {
			continue
		}
		fused[id] = concat(nil, graph[id], dims)
	}
	return fused, nil
}

// concat allocates a zero-filled vector and copies each present source into place
func concat(textVec, graphVec []float32, dims Dims) []float32 {
	out := make([]float32, dims.Total())
	copy(out[:dims.Text], textVec)
	copy(out[dims.Text:], graphVec)
	return out
}

func checkDim(m models.EmbeddingMap, want int, source string) error {
	for id, vec := range m {
		if len(vec) != want {
			return core.Validation("fuse", "", string(id),
				fmt.Errorf("%s vector has %d dimensions, configured %d", source, len(vec), want))
		}
	}
	return nil
}
