package vector

import (
	"context"
	"errors"

	"github.com/andrew/hybrid-recsys/pkg/models"
)

var (
	// ErrCollectionNotFound is returned when an operation targets a collection that does not exist
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned by CreateCollection when the collection is already present
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDimensionMismatch is returned when a vector length differs from the collection's vector size
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnavailable marks network and timeout failures talking to the store
	ErrUnavailable = errors.New("vector store unavailable")
)

// Store defines the interface for vector database operations
type Store interface {
	// CollectionExists reports whether a collection with the given name exists
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection creates a collection with the given vector size and distance metric
	CreateCollection(ctx context.Context, name string, vectorSize uint64, distance models.Distance) error

	// CollectionInfo returns the schema and point count of a collection
	CollectionInfo(ctx context.Context, name string) (models.Collection, error)

	// ListCollections returns the names of all collections
	ListCollections(ctx context.Context) ([]string, error)

	// Upsert inserts or overwrites points in a collection, in the order given
	Upsert(ctx context.Context, name string, points []models.Point) error

	// Retrieve fetches a single point by id. The boolean is false when the point does not exist.
	Retrieve(ctx context.Context, name string, id uint64, withVector, withPayload bool) (models.StoredPoint, bool, error)

	// Query finds the points most similar to the given vector, best match first
	Query(ctx context.Context, name string, vector []float32, limit int, withPayload bool) ([]models.ScoredPoint, error)

	// Scroll reads up to limit points in index order, skipping the first offset points
	Scroll(ctx context.Context, name string, limit, offset int) ([]models.StoredPoint, error)

	// Count returns the exact number of points in a collection
	Count(ctx context.Context, name string) (uint64, error)

	// Close releases resources used by the vector store
	Close() error
}

// Config contains configuration for a Qdrant connection
type Config struct {
	Host   string // Qdrant server host
	Port   int    // Qdrant gRPC port
	APIKey string // Optional API key sent with every call
	UseTLS bool
}

// payloadToMap flattens a display payload into the raw key/value form stored in the index
func payloadToMap(p models.Payload) map[string]string {
	return map[string]string{
		"title":       p.Title,
		"description": p.Description,
	}
}
