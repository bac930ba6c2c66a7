package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/logging"
	"github.com/andrew/hybrid-recsys/pkg/metrics"
	"github.com/andrew/hybrid-recsys/pkg/models"
	"github.com/andrew/hybrid-recsys/pkg/vector"
)

// Config contains configuration for a retrieval service
type Config struct {
	// DefaultK is used by callers that do not specify a result count
	DefaultK int

	// MaxK is the largest k a single read accepts
	MaxK int
}

// DefaultConfig returns the default retrieval limits
func DefaultConfig() Config {
	return Config{
		DefaultK: 10,
		MaxK:     1000,
	}
}

// Service answers the read-only queries against collections. Store failures
// degrade to empty results: these are advisory reads, not state changes.
type Service struct {
	store  vector.Store
	config Config
	intn   func(n int) int
	log    zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithRand replaces the offset source used by SampleRandom. intn(n) must return
// a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(s *Service) {
		s.intn = intn
	}
}

// NewService creates a retrieval service over store
func NewService(store vector.Store, cfg Config, opts ...Option) *Service {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultConfig().DefaultK
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = DefaultConfig().MaxK
	}
	s := &Service{
		store:  store,
		config: cfg,
		intn:   rand.IntN,
		log:    logging.Component("retrieval"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the limits the service was built with
func (s *Service) Config() Config {
	return s.config
}

// FindSimilar returns up to k items nearest to the stored vector of seedID,
// best first. An unknown seed or a store failure yields an empty list; hits
// whose payload lacks a title or description are skipped. The seed itself is
// part of the collection and is normally the first hit.
func (s *Service) FindSimilar(ctx context.Context, collection string, seedID models.ItemID, k int) ([]models.SimilarItem, error) {
	const op = "find similar"
	items := []models.SimilarItem{}

	if err := s.checkArgs(op, collection, k); err != nil {
		return items, err
	}
	id, err := seedID.PointID()
	if err != nil {
		return items, core.Validation(op, collection, string(seedID), err)
	}

	seed, found, err := s.store.Retrieve(ctx, collection, id, true, true)
	if err != nil {
		s.degrade(ctx, op, collection, err)
		return items, nil
	}
	if !found || len(seed.Vector) == 0 {
		logging.Ctx(ctx).Debug().Str("collection", collection).Str("item", string(seedID)).Msg("Seed item not in collection")
		return items, nil
	}

	hits, err := s.store.Query(ctx, collection, seed.Vector, k, true)
	if err != nil {
		s.degrade(ctx, op, collection, err)
		return items, nil
	}

	for _, hit := range hits {
		title, okTitle := hit.Payload["title"]
		desc, okDesc := hit.Payload["description"]
		if !okTitle || !okDesc {
			s.log.Debug().Str("collection", collection).Uint64("point", hit.ID).Msg("Skipping hit without payload")
			continue
		}
		items = append(items, models.SimilarItem{
			ID:          models.ItemIDFromPoint(hit.ID),
			Title:       title,
			Description: desc,
			Score:       hit.Score,
		})
	}
	return items, nil
}

// SampleRandom returns min(k, n) items of a collection holding n points. The
// items are a contiguous window of the collection's scan order starting at a
// uniformly random offset in [0, n-k], so each call is a random start with a
// deterministic stride rather than k independent draws.
func (s *Service) SampleRandom(ctx context.Context, collection string, k int) ([]models.SampledItem, error) {
	const op = "sample random"
	items := []models.SampledItem{}

	if err := s.checkArgs(op, collection, k); err != nil {
		return items, err
	}

	n, err := s.store.Count(ctx, collection)
	if err != nil {
		s.degrade(ctx, op, collection, err)
		return items, nil
	}

	limit, offset := Window(int(n), k, s.intn)
	if limit == 0 {
		return items, nil
	}

	points, err := s.store.Scroll(ctx, collection, limit, offset)
	if err != nil {
		s.degrade(ctx, op, collection, err)
		return items, nil
	}

	for _, p := range points {
		items = append(items, models.SampledItem{
			ID:          models.ItemIDFromPoint(p.ID),
			Title:       p.Payload["title"],
			Description: p.Payload["description"],
		})
	}
	return items, nil
}

// Window clamps k to the collection size n and picks the scan offset with
// intn, which must return a value in [0, m). The offset is always in [0, n-k].
func Window(n, k int, intn func(int) int) (limit, offset int) {
	if n <= 0 || k <= 0 {
		return 0, 0
	}
	if n < k {
		k = n
	}
	span := n - k
	if span == 0 {
		return k, 0
	}
	return k, intn(span + 1)
}

func (s *Service) checkArgs(op, collection string, k int) error {
	if strings.TrimSpace(collection) == "" {
		return core.Validation(op, collection, "", errors.New("collection name is empty"))
	}
	if k <= 0 {
		return core.Validation(op, collection, "", fmt.Errorf("k must be positive, got %d", k))
	}
	if k > s.config.MaxK {
		return core.Validation(op, collection, "", fmt.Errorf("k must be at most %d, got %d", s.config.MaxK, k))
	}
	return nil
}

func (s *Service) degrade(ctx context.Context, op, collection string, err error) {
	metrics.DegradedReads.WithLabelValues(op).Inc()
	logging.Ctx(ctx).Warn().Err(core.FromStore(op, collection, err)).Str("collection", collection).Msg("Read degraded to empty result")
}
