// Package app wires the store, embedders, pipeline and retrieval service from
// a loaded configuration. Both binaries build their dependencies through it.
package app

import (
	"fmt"

	"github.com/andrew/hybrid-recsys/pkg/config"
	"github.com/andrew/hybrid-recsys/pkg/embedding"
	"github.com/andrew/hybrid-recsys/pkg/index"
	"github.com/andrew/hybrid-recsys/pkg/indexer"
	"github.com/andrew/hybrid-recsys/pkg/logging"
	"github.com/andrew/hybrid-recsys/pkg/retrieval"
	"github.com/andrew/hybrid-recsys/pkg/vector"
)

// Deps is everything a request needs. It is built once at startup and passed
// explicitly; nothing is held in package state.
type Deps struct {
	Config    *config.Config
	Store     vector.Store
	Pipeline  *indexer.Pipeline
	Retrieval *retrieval.Service
}

// Dial connects to Qdrant and builds Deps around it
func Dial(cfg *config.Config) (*Deps, error) {
	store, err := vector.Dial(vector.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		return nil, err
	}

	deps, err := New(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return deps, nil
}

// New builds Deps over an existing store with the configured embedders
func New(cfg *config.Config, store vector.Store) (*Deps, error) {
	text, err := embedding.NewOllamaEmbedder(embedding.OllamaConfig{
		URL:        cfg.TextEmbedding.OllamaURL,
		Model:      cfg.TextEmbedding.Model,
		Dimensions: cfg.TextEmbedding.VectorDim,
		Timeout:    cfg.TextEmbedding.Timeout,
		Workers:    cfg.TextEmbedding.Workers,
		Options:    cfg.TextEmbedding.Params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create text embedder: %w", err)
	}

	graph := embedding.NewALSEmbedder(embedding.ALSConfig{
		Dimensions:     cfg.GraphEmbedding.Constructor.Dimensions,
		Iterations:     cfg.GraphEmbedding.Fit.Iterations,
		Regularization: cfg.GraphEmbedding.Fit.Regularization,
		Alpha:          cfg.GraphEmbedding.Fit.Alpha,
		Workers:        cfg.GraphEmbedding.Fit.Workers,
	})

	return NewWithEmbedders(cfg, store, text, graph)
}

// NewWithEmbedders builds Deps with caller-supplied embedders
func NewWithEmbedders(cfg *config.Config, store vector.Store, text embedding.TextEmbedder, graph embedding.GraphEmbedder) (*Deps, error) {
	idx := index.New(store)
	pipeline, err := indexer.NewPipeline(idx, text, graph, cfg.Dims())
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}

	svc := retrieval.NewService(store, retrieval.Config{
		DefaultK: cfg.Retrieval.DefaultK,
		MaxK:     cfg.Retrieval.MaxK,
	})

	log := logging.Component("app")
	log.Info().
		Int("text_dim", cfg.TextEmbedding.VectorDim).
		Int("graph_dim", cfg.GraphEmbedding.Constructor.Dimensions).
		Str("text_model", cfg.TextEmbedding.Model).
		Msg("Dependencies ready")

	return &Deps{
		Config:    cfg,
		Store:     store,
		Pipeline:  pipeline,
		Retrieval: svc,
	}, nil
}

// Close releases the store connection
func (d *Deps) Close() error {
	return d.Store.Close()
}

// LoggingConfig converts the configured logging section
func LoggingConfig(cfg *config.Config) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.Format = cfg.Logging.Format
	lc.Caller = cfg.Logging.Caller
	return lc
}
