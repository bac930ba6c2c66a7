// Package api exposes ingestion and retrieval over HTTP using the chi router.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/andrew/hybrid-recsys/pkg/indexer"
	"github.com/andrew/hybrid-recsys/pkg/logging"
	"github.com/andrew/hybrid-recsys/pkg/retrieval"
)

// Ingester runs the three ingestion modes. *indexer.Pipeline implements it.
type Ingester interface {
	IngestGraph(ctx context.Context, graphFile indexer.Source) (indexer.IngestReport, error)
	IngestText(ctx context.Context, textFile indexer.Source) (indexer.IngestReport, error)
	IngestBoth(ctx context.Context, graphFile, textFile indexer.Source) (indexer.IngestReport, error)
}

var _ Ingester = (*indexer.Pipeline)(nil)

// Options configures the HTTP layer
type Options struct {
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

// Handler holds the dependencies of every route
type Handler struct {
	ingester  Ingester
	retrieval *retrieval.Service
	opts      Options
	log       zerolog.Logger
}

// NewHandler creates the route handlers
func NewHandler(ingester Ingester, svc *retrieval.Service, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	return &Handler{
		ingester:  ingester,
		retrieval: svc,
		opts:      opts,
		log:       logging.Component("api"),
	}
}

// Router builds the chi router with the global middleware stack
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(Metrics)

	r.Get("/", h.Root)
	r.Get("/status", h.Status)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/initialize_only_graph", h.InitializeOnlyGraph)
	r.Post("/initialize_only_text", h.InitializeOnlyText)
	r.Post("/initialize_both", h.InitializeBoth)

	r.Get("/available_databases", h.AvailableDatabases)
	r.Route("/collections/{name}", func(r chi.Router) {
		r.Get("/", h.Collection)
		r.Get("/random", h.Random)
		r.Get("/items/{id}/similar", h.Similar)
	})

	return r
}
