// Package indexer turns uploaded interaction and item files into a populated
// collection: parse, embed, fuse, ensure the schema, ingest.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/dataset"
	"github.com/andrew/hybrid-recsys/pkg/embedding"
	"github.com/andrew/hybrid-recsys/pkg/fusion"
	"github.com/andrew/hybrid-recsys/pkg/index"
	"github.com/andrew/hybrid-recsys/pkg/logging"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

// Source is one uploaded file. Name decides the collection.
type Source struct {
	Name string
	Body io.Reader
}

// IngestReport describes a finished ingestion
type IngestReport struct {
	Collection string        `json:"collection"`
	Points     int           `json:"points"`
	TextItems  int           `json:"text_items"`
	GraphItems int           `json:"graph_items"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Pipeline builds and ingests fused vectors
type Pipeline struct {
	index *index.Index
	text  embedding.TextEmbedder
	graph embedding.GraphEmbedder
	dims  fusion.Dims
	log   zerolog.Logger
}

// NewPipeline wires the embedders to idx. Each embedder must produce vectors of
// the size dims reserves for it.
func NewPipeline(idx *index.Index, text embedding.TextEmbedder, graph embedding.GraphEmbedder, dims fusion.Dims) (*Pipeline, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if text == nil || graph == nil {
		return nil, errors.New("both text and graph embedders are required")
	}
	if text.Dimensions() != dims.Text {
		return nil, fmt.Errorf("text embedder produces %d dimensions, configured %d", text.Dimensions(), dims.Text)
	}
	if graph.Dimensions() != dims.Graph {
		return nil, fmt.Errorf("graph embedder produces %d dimensions, configured %d", graph.Dimensions(), dims.Graph)
	}
	return &Pipeline{
		index: idx,
		text:  text,
		graph: graph,
		dims:  dims,
		log:   logging.Component("indexer"),
	}, nil
}

// Dims returns the dimension pair collections are created with
func (p *Pipeline) Dims() fusion.Dims {
	return p.dims
}

// IngestGraph indexes items from an interaction file only. Every point gets an
// empty payload and a zero text segment.
func (p *Pipeline) IngestGraph(ctx context.Context, graphFile Source) (IngestReport, error) {
	name, err := dataset.CollectionName(graphFile.Name)
	if err != nil {
		return IngestReport{}, err
	}
	interactions, err := dataset.ReadInteractions(graphFile.Body)
	if err != nil {
		return IngestReport{Collection: name}, withCollection(err, name)
	}
	return p.run(ctx, name, interactions, nil)
}

// IngestText indexes items from an item text file only. Every point gets a zero
// graph segment.
func (p *Pipeline) IngestText(ctx context.Context, textFile Source) (IngestReport, error) {
	name, err := dataset.CollectionName(textFile.Name)
	if err != nil {
		return IngestReport{}, err
	}
	records, err := dataset.ReadItems(textFile.Body)
	if err != nil {
		return IngestReport{Collection: name}, withCollection(err, name)
	}
	return p.run(ctx, name, nil, records)
}

// IngestBoth indexes the union of items from both files. The two file names must
// derive the same collection name. Every graph item needs a text record because
// payloads come from the text file.
func (p *Pipeline) IngestBoth(ctx context.Context, graphFile, textFile Source) (IngestReport, error) {
	const op = "ingest both"

	graphName, err := dataset.CollectionName(graphFile.Name)
	if err != nil {
		return IngestReport{}, err
	}
	textName, err := dataset.CollectionName(textFile.Name)
	if err != nil {
		return IngestReport{}, err
	}
	if graphName != textName {
		return IngestReport{}, core.Validation(op, graphName, "",
			fmt.Errorf("graph file %q and text file %q name different collections", graphFile.Name, textFile.Name))
	}

	interactions, err := dataset.ReadInteractions(graphFile.Body)
	if err != nil {
		return IngestReport{Collection: graphName}, withCollection(err, graphName)
	}
	records, err := dataset.ReadItems(textFile.Body)
	if err != nil {
		return IngestReport{Collection: graphName}, withCollection(err, graphName)
	}
	if records == nil {
		records = []models.ItemRecord{}
	}
	return p.run(ctx, graphName, interactions, records)
}

// run embeds, fuses and ingests. records == nil means no text file was given.
// An upload without items leaves the store untouched.
func (p *Pipeline) run(ctx context.Context, name string, interactions []models.Interaction, records []models.ItemRecord) (IngestReport, error) {
	start := time.Now()
	report := IngestReport{Collection: name}
	p.log.Debug().Str("collection", name).Int("interactions", len(interactions)).Int("records", len(records)).Msg("Embedding items")

	var textEmb, graphEmb models.EmbeddingMap
	g, gctx := errgroup.WithContext(ctx)
	if records != nil {
		g.Go(func() error {
			var err error
			textEmb, err = p.text.EmbedItems(gctx, records)
			if err != nil {
				return fmt.Errorf("text embedding failed: %w", err)
			}
			return nil
		})
	}
	if interactions != nil {
		g.Go(func() error {
			var err error
			graphEmb, err = p.graph.EmbedGraph(gctx, interactions)
			if err != nil {
				return fmt.Errorf("graph embedding failed: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.TextItems = len(textEmb)
	report.GraphItems = len(graphEmb)

	fused, err := fusion.Fuse(textEmb, graphEmb, p.dims)
	if err != nil {
		return report, withCollection(err, name)
	}
	if len(fused) == 0 {
		report.Elapsed = time.Since(start)
		logging.Ctx(ctx).Info().Str("collection", name).Msg("Upload has no items, nothing to ingest")
		return report, nil
	}

	if err := p.index.EnsureCollection(ctx, name, p.dims.Total()); err != nil {
		return report, err
	}

	res, err := p.index.Ingest(ctx, name, fused, records)
	if err != nil {
		return report, err
	}
	report.Points = res.Points
	report.Elapsed = time.Since(start)

	logging.Ctx(ctx).Info().
		Str("collection", name).
		Int("points", report.Points).
		Int("text_items", report.TextItems).
		Int("graph_items", report.GraphItems).
		Dur("elapsed", report.Elapsed).
		Msg("Ingestion finished")
	return report, nil
}

// withCollection fills in the collection on errors raised before it was known
func withCollection(err error, name string) error {
	var ce *core.Error
	if errors.As(err, &ce) && ce.Collection == "" {
		ce.Collection = name
	}
	return err
}
