package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/fusion"
	"github.com/andrew/hybrid-recsys/pkg/index"
	"github.com/andrew/hybrid-recsys/pkg/models"
	"github.com/andrew/hybrid-recsys/pkg/vector"
)

// stubText gives every record the vector (1, 1)
type stubText struct {
	dims int
	err  error
}

func (s stubText) Dimensions() int { return s.dims }

func (s stubText) EmbedItems(ctx context.Context, records []models.ItemRecord) (models.EmbeddingMap, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(models.EmbeddingMap)
	for _, r := range records {
		vec := make([]float32, s.dims)
		for i := range vec {
			vec[i] = 1
		}
		out[r.ID] = vec
	}
	return out, nil
}

// stubGraph gives every interacted item the vector (2, 2, 2)
type stubGraph struct {
	dims int
}

func (s stubGraph) Dimensions() int { return s.dims }

func (s stubGraph) EmbedGraph(ctx context.Context, interactions []models.Interaction) (models.EmbeddingMap, error) {
	out := make(models.EmbeddingMap)
	for _, in := range interactions {
		vec := make([]float32, s.dims)
		for i := range vec {
			vec[i] = 2
		}
		out[in.ItemID] = vec
	}
	return out, nil
}

const (
	interactionsCSV = "user,item,weight\n1,10,1\n1,11,2\n2,11,1\n"
	itemsCSV        = "id,title,description\n10,Engineer,<p>Go</p>\n11,Chef,Cooks\n"
)

func newPipeline(t *testing.T, store vector.Store, text stubText) *Pipeline {
	t.Helper()
	p, err := NewPipeline(index.New(store), text, stubGraph{dims: 3}, fusion.Dims{Text: 2, Graph: 3})
	require.NoError(t, err)
	return p
}

func TestPipeline_IngestGraph(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	p := newPipeline(t, store, stubText{dims: 2})

	report, err := p.IngestGraph(ctx, Source{Name: "jobs.csv", Body: strings.NewReader(interactionsCSV)})
	require.NoError(t, err)
	assert.Equal(t, "jobs", report.Collection)
	assert.Equal(t, 2, report.Points)
	assert.Equal(t, 2, report.GraphItems)
	assert.Zero(t, report.TextItems)

	pt, found, err := store.Retrieve(ctx, "jobs", 10, true, true)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{0, 0, 2, 2, 2}, pt.Vector)
	assert.Equal(t, map[string]string{"title": "", "description": ""}, pt.Payload)
}

func TestPipeline_HeaderOnlyUploadCreatesNothing(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	p := newPipeline(t, store, stubText{dims: 2})

	report, err := p.IngestGraph(ctx, Source{Name: "empty.csv", Body: strings.NewReader("user,item,weight\n")})
	require.NoError(t, err)
	assert.Equal(t, "empty", report.Collection)
	assert.Zero(t, report.Points)

	report, err = p.IngestBoth(ctx,
		Source{Name: "empty.csv", Body: strings.NewReader("user,item,weight\n")},
		Source{Name: "empty.txt", Body: strings.NewReader("id,title,description\n")})
	require.NoError(t, err)
	assert.Zero(t, report.Points)

	exists, err := store.CollectionExists(ctx, "empty")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPipeline_IngestText(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	p := newPipeline(t, store, stubText{dims: 2})

	report, err := p.IngestText(ctx, Source{Name: "uploads/jobs.txt", Body: strings.NewReader(itemsCSV)})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Points)
	assert.Equal(t, 2, report.TextItems)

	pt, found, err := store.Retrieve(ctx, "jobs", 10, true, true)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{1, 1, 0, 0, 0}, pt.Vector)
	assert.Equal(t, "Engineer", pt.Payload["title"])
	assert.Equal(t, "Go", pt.Payload["description"])

	info, err := store.CollectionInfo(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), info.VectorSize)
}

func TestPipeline_IngestBoth(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	p := newPipeline(t, store, stubText{dims: 2})

	report, err := p.IngestBoth(ctx,
		Source{Name: "jobs.csv", Body: strings.NewReader(interactionsCSV)},
		Source{Name: "jobs.txt", Body: strings.NewReader(itemsCSV)},
	)
	require.NoError(t, err)
	assert.Equal(t, IngestReport{Collection: "jobs", Points: 2, TextItems: 2, GraphItems: 2, Elapsed: report.Elapsed}, report)

	pt, _, err := store.Retrieve(ctx, "jobs", 11, true, true)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 2, 2, 2}, pt.Vector)
	assert.Equal(t, "Chef", pt.Payload["title"])
}

func TestPipeline_IngestBothIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	p := newPipeline(t, store, stubText{dims: 2})

	for i := 0; i < 2; i++ {
		_, err := p.IngestBoth(ctx,
			Source{Name: "jobs.csv", Body: strings.NewReader(interactionsCSV)},
			Source{Name: "jobs.txt", Body: strings.NewReader(itemsCSV)},
		)
		require.NoError(t, err)
	}

	n, err := store.Count(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestPipeline_IngestBothNameMismatch(t *testing.T) {
	store := vector.NewMemoryStore()
	p := newPipeline(t, store, stubText{dims: 2})

	_, err := p.IngestBoth(context.Background(),
		Source{Name: "jobs.csv", Body: strings.NewReader(interactionsCSV)},
		Source{Name: "movies.txt", Body: strings.NewReader(itemsCSV)},
	)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	names, err := store.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPipeline_IngestBothGraphItemWithoutText(t *testing.T) {
	store := vector.NewMemoryStore()
	p := newPipeline(t, store, stubText{dims: 2})

	_, err := p.IngestBoth(context.Background(),
		Source{Name: "jobs.csv", Body: strings.NewReader(interactionsCSV + "3,12,1\n")},
		Source{Name: "jobs.txt", Body: strings.NewReader(itemsCSV)},
	)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	n, err := store.Count(context.Background(), "jobs")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPipeline_MalformedUploadNamesCollection(t *testing.T) {
	p := newPipeline(t, vector.NewMemoryStore(), stubText{dims: 2})

	_, err := p.IngestGraph(context.Background(), Source{Name: "jobs.csv", Body: strings.NewReader("user,item\nx,1\n")})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	var ce *core.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "jobs", ce.Collection)
}

func TestPipeline_EmbedderFailure(t *testing.T) {
	boom := errors.New("ollama down")
	p := newPipeline(t, vector.NewMemoryStore(), stubText{dims: 2, err: boom})

	_, err := p.IngestText(context.Background(), Source{Name: "jobs.txt", Body: strings.NewReader(itemsCSV)})
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_ExistingCollectionWithOtherSize(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, "jobs", 8, models.DistanceCosine))
	p := newPipeline(t, store, stubText{dims: 2})

	_, err := p.IngestGraph(ctx, Source{Name: "jobs.csv", Body: strings.NewReader(interactionsCSV)})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
}

func TestNewPipeline_DimensionChecks(t *testing.T) {
	idx := index.New(vector.NewMemoryStore())

	_, err := NewPipeline(idx, stubText{dims: 4}, stubGraph{dims: 3}, fusion.Dims{Text: 2, Graph: 3})
	assert.Error(t, err)

	_, err = NewPipeline(idx, stubText{dims: 2}, stubGraph{dims: 5}, fusion.Dims{Text: 2, Graph: 3})
	assert.Error(t, err)

	_, err = NewPipeline(idx, stubText{dims: 2}, stubGraph{dims: 3}, fusion.Dims{Text: 0, Graph: 3})
	assert.Error(t, err)
}
