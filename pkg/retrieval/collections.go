package retrieval

import (
	"context"
	"sort"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

// ListCollections returns the names of all collections, sorted
func (s *Service) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, core.FromStore("list collections", "", err)
	}
	sort.Strings(names)
	return names, nil
}

// Collection returns the schema and size of a collection. Unlike the sampling
// reads, a missing collection is reported as a not-found error.
func (s *Service) Collection(ctx context.Context, name string) (models.Collection, error) {
	const op = "describe collection"

	exists, err := s.store.CollectionExists(ctx, name)
	if err != nil {
		return models.Collection{}, core.FromStore(op, name, err)
	}
	if !exists {
		return models.Collection{}, core.NotFound(op, name, "", nil)
	}

	info, err := s.store.CollectionInfo(ctx, name)
	if err != nil {
		return models.Collection{}, core.FromStore(op, name, err)
	}
	return info, nil
}
