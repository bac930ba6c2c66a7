// Package embedding produces per-item vectors from item text and from the
// user-item interaction graph.
package embedding

import (
	"context"

	"github.com/andrew/hybrid-recsys/pkg/models"
)

// TextEmbedder maps item text records to one vector per item
type TextEmbedder interface {
	// EmbedItems returns a vector for every distinct record id
	EmbedItems(ctx context.Context, records []models.ItemRecord) (models.EmbeddingMap, error)

	// Dimensions returns the vector size the embedder produces
	Dimensions() int
}

// GraphEmbedder maps weighted user-item interactions to one vector per item
type GraphEmbedder interface {
	// EmbedGraph returns a vector for every item that appears in interactions
	EmbedGraph(ctx context.Context, interactions []models.Interaction) (models.EmbeddingMap, error)

	// Dimensions returns the vector size the embedder produces
	Dimensions() int
}
