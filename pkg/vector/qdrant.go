package vector

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/andrew/hybrid-recsys/pkg/metrics"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

// scrollPageSize bounds how many points a single Scroll RPC returns
const scrollPageSize = 256

// QdrantStore implements Store on top of the Qdrant gRPC API
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
}

var _ Store = (*QdrantStore)(nil)

// Dial connects to Qdrant. The connection is lazy: the first RPC establishes it.
func Dial(cfg Config) (*QdrantStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{}
	if cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", addr, err)
	}

	return &QdrantStore{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
	}, nil
}

// NewQdrantStore wraps already constructed gRPC clients
func NewQdrantStore(collections qdrantclient.CollectionsClient, points qdrantclient.PointsClient) *QdrantStore {
	return &QdrantStore{collections: collections, points: points}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// CollectionExists checks whether the collection exists
func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (exists bool, err error) {
	defer metrics.ObserveStore("collection_exists", time.Now(), &err)

	resp, err := s.collections.CollectionExists(ctx, &qdrantclient.CollectionExistsRequest{
		CollectionName: name,
	})
	if err != nil {
		return false, wrapErr("check collection", name, err)
	}
	return resp.GetResult().GetExists(), nil
}

// CreateCollection creates a collection with a single unnamed vector
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, vectorSize uint64, distance models.Distance) (err error) {
	defer metrics.ObserveStore("create_collection", time.Now(), &err)

	d, err := toQdrantDistance(distance)
	if err != nil {
		return err
	}

	_, err = s.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     vectorSize,
					Distance: d,
				},
			},
		},
	})
	if err != nil {
		return wrapErr("create collection", name, err)
	}
	return nil
}

// CollectionInfo reads the vector params and point count of a collection
func (s *QdrantStore) CollectionInfo(ctx context.Context, name string) (info models.Collection, err error) {
	defer metrics.ObserveStore("collection_info", time.Now(), &err)

	resp, err := s.collections.Get(ctx, &qdrantclient.GetCollectionInfoRequest{
		CollectionName: name,
	})
	if err != nil {
		return models.Collection{}, wrapErr("get collection", name, err)
	}

	result := resp.GetResult()
	params := result.GetConfig().GetParams().GetVectorsConfig().GetParams()
	return models.Collection{
		Name:       name,
		VectorSize: params.GetSize(),
		Distance:   fromQdrantDistance(params.GetDistance()),
		PointCount: result.GetPointsCount(),
	}, nil
}

// ListCollections returns all collection names
func (s *QdrantStore) ListCollections(ctx context.Context) (names []string, err error) {
	defer metrics.ObserveStore("list_collections", time.Now(), &err)

	resp, err := s.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return nil, wrapErr("list collections", "", err)
	}

	names = make([]string, 0, len(resp.GetCollections()))
	for _, col := range resp.GetCollections() {
		names = append(names, col.GetName())
	}
	return names, nil
}

// Upsert writes all points in a single request and waits for it to be applied
func (s *QdrantStore) Upsert(ctx context.Context, name string, points []models.Point) (err error) {
	defer metrics.ObserveStore("upsert", time.Now(), &err)

	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrantclient.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, &qdrantclient.PointStruct{
			Id: numID(p.ID),
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: p.Vector},
				},
			},
			Payload: toQdrantPayload(payloadToMap(p.Payload)),
		})
	}

	wait := true
	_, err = s.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return wrapErr("upsert points", name, err)
	}
	return nil
}

// Retrieve fetches one point by id
func (s *QdrantStore) Retrieve(ctx context.Context, name string, id uint64, withVector, withPayload bool) (point models.StoredPoint, found bool, err error) {
	defer metrics.ObserveStore("retrieve", time.Now(), &err)

	resp, err := s.points.Get(ctx, &qdrantclient.GetPoints{
		CollectionName: name,
		Ids:            []*qdrantclient.PointId{numID(id)},
		WithPayload:    payloadSelector(withPayload),
		WithVectors:    vectorsSelector(withVector),
	})
	if err != nil {
		return models.StoredPoint{}, false, wrapErr("retrieve point", name, err)
	}

	for _, p := range resp.GetResult() {
		if p.GetId().GetNum() != id {
			continue
		}
		out := models.StoredPoint{ID: id, Payload: fromQdrantPayload(p.GetPayload())}
		if withVector {
			out.Vector = p.GetVectors().GetVector().GetData()
		}
		return out, true, nil
	}
	return models.StoredPoint{}, false, nil
}

// Query runs a nearest-neighbour search
func (s *QdrantStore) Query(ctx context.Context, name string, vector []float32, limit int, withPayload bool) (hits []models.ScoredPoint, err error) {
	defer metrics.ObserveStore("query", time.Now(), &err)

	resp, err := s.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: name,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    payloadSelector(withPayload),
	})
	if err != nil {
		return nil, wrapErr("search points", name, err)
	}

	hits = make([]models.ScoredPoint, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, models.ScoredPoint{
			ID:      p.GetId().GetNum(),
			Score:   p.GetScore(),
			Payload: fromQdrantPayload(p.GetPayload()),
		})
	}
	return hits, nil
}

// Scroll reads limit points starting at a positional offset. Qdrant pages by
// point id, so the leading offset points are paged through and dropped.
func (s *QdrantStore) Scroll(ctx context.Context, name string, limit, offset int) (out []models.StoredPoint, err error) {
	defer metrics.ObserveStore("scroll", time.Now(), &err)

	out = []models.StoredPoint{}
	if limit <= 0 {
		return out, nil
	}
	if offset < 0 {
		offset = 0
	}

	var next *qdrantclient.PointId
	seen := 0
	for len(out) < limit {
		remaining := offset + limit - seen
		page := uint32(scrollPageSize)
		if remaining < scrollPageSize {
			page = uint32(remaining)
		}

		resp, err := s.points.Scroll(ctx, &qdrantclient.ScrollPoints{
			CollectionName: name,
			Offset:         next,
			Limit:          &page,
			WithPayload:    payloadSelector(seen+int(page) > offset),
		})
		if err != nil {
			return nil, wrapErr("scroll points", name, err)
		}

		for _, p := range resp.GetResult() {
			if seen >= offset && len(out) < limit {
				out = append(out, models.StoredPoint{
					ID:      p.GetId().GetNum(),
					Payload: fromQdrantPayload(p.GetPayload()),
				})
			}
			seen++
		}

		next = resp.GetNextPageOffset()
		if next == nil || len(resp.GetResult()) == 0 {
			break
		}
	}
	return out, nil
}

// Count returns the exact point count
func (s *QdrantStore) Count(ctx context.Context, name string) (n uint64, err error) {
	defer metrics.ObserveStore("count", time.Now(), &err)

	exact := true
	resp, err := s.points.Count(ctx, &qdrantclient.CountPoints{
		CollectionName: name,
		Exact:          &exact,
	})
	if err != nil {
		return 0, wrapErr("count points", name, err)
	}
	return resp.GetResult().GetCount(), nil
}

// Close releases the underlying gRPC connection
func (s *QdrantStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func numID(id uint64) *qdrantclient.PointId {
	return &qdrantclient.PointId{
		PointIdOptions: &qdrantclient.PointId_Num{Num: id},
	}
}

func payloadSelector(enable bool) *qdrantclient.WithPayloadSelector {
	return &qdrantclient.WithPayloadSelector{
		SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: enable},
	}
}

func vectorsSelector(enable bool) *qdrantclient.WithVectorsSelector {
	return &qdrantclient.WithVectorsSelector{
		SelectorOptions: &qdrantclient.WithVectorsSelector_Enable{Enable: enable},
	}
}

func toQdrantPayload(in map[string]string) map[string]*qdrantclient.Value {
	out := make(map[string]*qdrantclient.Value, len(in))
	for k, v := range in {
		out[k] = &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: v}}
	}
	return out
}

// fromQdrantPayload keeps only string-valued fields
func fromQdrantPayload(in map[string]*qdrantclient.Value) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if sv, ok := v.GetKind().(*qdrantclient.Value_StringValue); ok {
			out[k] = sv.StringValue
		}
	}
	return out
}

func toQdrantDistance(d models.Distance) (qdrantclient.Distance, error) {
	switch d {
	case models.DistanceCosine, "":
		return qdrantclient.Distance_Cosine, nil
	default:
		return qdrantclient.Distance_UnknownDistance, fmt.Errorf("unsupported distance %q", d)
	}
}

func fromQdrantDistance(d qdrantclient.Distance) models.Distance {
	if d == qdrantclient.Distance_Cosine {
		return models.DistanceCosine
	}
	return models.Distance(strings.ToLower(d.String()))
}

// wrapErr classifies a gRPC error into the package sentinels, keeping the cause
func wrapErr(op, collection string, err error) error {
	var kind error
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.NotFound:
		kind = ErrCollectionNotFound
	case codes.AlreadyExists:
		kind = ErrCollectionExists
	case codes.InvalidArgument:
		msg := strings.ToLower(st.Message())
		switch {
		case strings.Contains(msg, "already exists"):
			kind = ErrCollectionExists
		case strings.Contains(msg, "doesn't exist"), strings.Contains(msg, "not found"):
			kind = ErrCollectionNotFound
		case strings.Contains(msg, "dimension"):
			kind = ErrDimensionMismatch
		}
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Canceled:
		kind = ErrUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrUnavailable
	}

	target := op
	if collection != "" {
		target = fmt.Sprintf("%s %q", op, collection)
	}
	if kind == nil {
		return fmt.Errorf("failed to %s: %w", target, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", target, kind, err)
}
