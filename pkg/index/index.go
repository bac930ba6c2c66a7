// Package index manages collection schemas and writes fused item vectors into them.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/logging"
	"github.com/andrew/hybrid-recsys/pkg/metrics"
	"github.com/andrew/hybrid-recsys/pkg/models"
	"github.com/andrew/hybrid-recsys/pkg/payload"
	"github.com/andrew/hybrid-recsys/pkg/vector"
)

// Index writes into collections of a vector store
type Index struct {
	store vector.Store
	log   zerolog.Logger
}

// New creates an Index over the given store
func New(store vector.Store) *Index {
	return &Index{
		store: store,
		log:   logging.Component("index"),
	}
}

// EnsureCollection creates the collection with cosine distance and totalDim-sized
// vectors unless it already exists. An existing collection is never altered, but
// its vector size must equal totalDim.
func (x *Index) EnsureCollection(ctx context.Context, name string, totalDim int) error {
	const op = "ensure collection"

	if strings.TrimSpace(name) == "" {
		return core.Validation(op, name, "", errors.New("collection name is empty"))
	}
	if totalDim <= 0 {
		return core.Validation(op, name, "", fmt.Errorf("vector size must be positive, got %d", totalDim))
	}

	exists, err := x.store.CollectionExists(ctx, name)
	if err != nil {
		return core.FromStore(op, name, err)
	}

	if !exists {
		err := x.store.CreateCollection(ctx, name, uint64(totalDim), models.DistanceCosine)
		switch {
		case err == nil:
			metrics.CollectionsCreated.Inc()
			x.log.Info().Str("collection", name).Int("vector_size", totalDim).Msg("Created collection")
			return nil
		case errors.Is(err, vector.ErrCollectionExists):
			// Lost a creation race; validate what the winner created.
			x.log.Debug().Str("collection", name).Msg("Collection created concurrently")
		default:
			return core.FromStore(op, name, err)
		}
	}

	return x.checkVectorSize(ctx, op, name, totalDim)
}

func (x *Index) checkVectorSize(ctx context.Context, op, name string, want int) error {
	info, err := x.store.CollectionInfo(ctx, name)
	if err != nil {
		return core.FromStore(op, name, err)
	}
	if info.VectorSize != uint64(want) {
		return core.Validation(op, name, "", fmt.Errorf("%w: collection stores %d-dimensional vectors, got %d",
			vector.ErrDimensionMismatch, info.VectorSize, want))
	}
	return nil
}

// IngestResult summarises one ingestion batch
type IngestResult struct {
	Collection string `json:"collection"`
	Points     int    `json:"points"`
}

// Ingest upserts one point per fused vector, in ascending point id order, as a
// single batch. When records is nil every point gets an empty title and
// description; otherwise each point's payload is built from its record and a
// missing record fails the batch. Nothing is written unless every id and payload
// is valid.
func (x *Index) Ingest(ctx context.Context, name string, fused models.FusedVectorMap, records []models.ItemRecord) (IngestResult, error) {
	const op = "ingest"
	result := IngestResult{Collection: name}

	if len(fused) == 0 {
		x.log.Debug().Str("collection", name).Msg("Nothing to ingest")
		return result, nil
	}

	ids, sources, err := PointIDs(fused)
	if err != nil {
		return result, core.Validation(op, name, "", err)
	}

	var lookup payload.Index
	if records != nil {
		lookup = payload.NewIndex(records)
	}

	points := make([]models.Point, 0, len(ids))
	dim := -1
	for _, id := range ids {
		src := sources[id]
		vec := fused[src]
		if dim < 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return result, core.Validation(op, name, string(src),
				fmt.Errorf("%w: vector has %d dimensions, batch has %d", vector.ErrDimensionMismatch, len(vec), dim))
		}

		var p models.Payload
		if lookup != nil {
			p, err = lookup.Build(src)
			if err != nil {
				return result, core.Validation(op, name, string(src), err)
			}
		}
		points = append(points, models.Point{ID: id, Vector: vec, Payload: p})
	}

	if err := x.checkVectorSize(ctx, op, name, dim); err != nil {
		return result, err
	}

	if err := x.store.Upsert(ctx, name, points); err != nil {
		return result, core.FromStore(op, name, err)
	}

	metrics.PointsIngested.WithLabelValues(name).Add(float64(len(points)))
	x.log.Info().Str("collection", name).Int("points", len(points)).Msg("Ingested points")

	result.Points = len(points)
	return result, nil
}

// PointIDs coerces every key of fused to its integer point id and returns the ids
// in ascending order, with a map back to the source key. Malformed keys and two
// keys that coerce to the same id are errors.
func PointIDs(fused models.FusedVectorMap) ([]uint64, map[uint64]models.ItemID, error) {
	sources := make(map[uint64]models.ItemID, len(fused))
	ids := make([]uint64, 0, len(fused))

	for key := range fused {
		id, err := key.PointID()
		if err != nil {
			return nil, nil, err
		}
		if prev, ok := sources[id]; ok {
			return nil, nil, fmt.Errorf("item ids %q and %q both map to point %d", prev, key, id)
		}
		sources[id] = key
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, sources, nil
}
