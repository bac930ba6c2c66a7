package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/andrew/hybrid-recsys/pkg/models"
)

type memoryCollection struct {
	size     uint64
	distance models.Distance
	points   map[uint64]models.StoredPoint
}

// MemoryStore is an in-memory Store for development and testing.
// Points are scrolled in ascending id order, like Qdrant does for integer ids.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// CollectionExists reports whether the collection has been created.
func (s *MemoryStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// CreateCollection creates an empty collection.
func (s *MemoryStore) CreateCollection(ctx context.Context, name string, vectorSize uint64, distance models.Distance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("create %q: %w", name, ErrCollectionExists)
	}
	s.collections[name] = &memoryCollection{
		size:     vectorSize,
		distance: distance,
		points:   make(map[uint64]models.StoredPoint),
	}
	return nil
}

// CollectionInfo returns the schema and size of a collection.
func (s *MemoryStore) CollectionInfo(ctx context.Context, name string) (models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return models.Collection{}, fmt.Errorf("info %q: %w", name, ErrCollectionNotFound)
	}
	return models.Collection{
		Name:       name,
		VectorSize: c.size,
		Distance:   c.distance,
		PointCount: uint64(len(c.points)),
	}, nil
}

// ListCollections returns collection names in lexical order.
func (s *MemoryStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Upsert stores points, overwriting existing ones by id.
func (s *MemoryStore) Upsert(ctx context.Context, name string, points []models.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("upsert into %q: %w", name, ErrCollectionNotFound)
	}
	for _, p := range points {
		if uint64(len(p.Vector)) != c.size {
			return fmt.Errorf("upsert point %d: got %d, want %d: %w", p.ID, len(p.Vector), c.size, ErrDimensionMismatch)
		}
	}
	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		c.points[p.ID] = models.StoredPoint{ID: p.ID, Vector: vec, Payload: payloadToMap(p.Payload)}
	}
	return nil
}

// Retrieve returns a copy of a stored point.
func (s *MemoryStore) Retrieve(ctx context.Context, name string, id uint64, withVector, withPayload bool) (models.StoredPoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return models.StoredPoint{}, false, fmt.Errorf("retrieve from %q: %w", name, ErrCollectionNotFound)
	}
	p, ok := c.points[id]
	if !ok {
		return models.StoredPoint{}, false, nil
	}
	return project(p, withVector, withPayload), true, nil
}

// Query finds points similar to the vector using brute-force cosine similarity.
func (s *MemoryStore) Query(ctx context.Context, name string, vector []float32, limit int, withPayload bool) ([]models.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("query %q: %w", name, ErrCollectionNotFound)
	}
	if uint64(len(vector)) != c.size {
		return nil, fmt.Errorf("query %q: got %d, want %d: %w", name, len(vector), c.size, ErrDimensionMismatch)
	}

	results := make([]models.ScoredPoint, 0, len(c.points))
	for _, p := range c.points {
		hit := models.ScoredPoint{ID: p.ID, Score: float32(CosineSimilarity(vector, p.Vector))}
		if withPayload {
			hit.Payload = copyPayload(p.Payload)
		}
		results = append(results, hit)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Scroll pages through points in ascending id order.
func (s *MemoryStore) Scroll(ctx context.Context, name string, limit, offset int) ([]models.StoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("scroll %q: %w", name, ErrCollectionNotFound)
	}

	ids := make([]uint64, 0, len(c.points))
	for id := range c.points {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) || limit <= 0 {
		return []models.StoredPoint{}, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	out := make([]models.StoredPoint, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, project(c.points[id], false, true))
	}
	return out, nil
}

// Count returns the number of points in a collection.
func (s *MemoryStore) Count(ctx context.Context, name string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return 0, fmt.Errorf("count %q: %w", name, ErrCollectionNotFound)
	}
	return uint64(len(c.points)), nil
}

// Close is a no-op for in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func project(p models.StoredPoint, withVector, withPayload bool) models.StoredPoint {
	out := models.StoredPoint{ID: p.ID}
	if withVector {
		out.Vector = make([]float32, len(p.Vector))
		copy(out.Vector, p.Vector)
	}
	if withPayload {
		out.Payload = copyPayload(p.Payload)
	}
	return out
}

func copyPayload(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
