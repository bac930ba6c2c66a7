package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andrew/hybrid-recsys/pkg/logging"
	"github.com/andrew/hybrid-recsys/pkg/models"
	"github.com/andrew/hybrid-recsys/pkg/payload"
)

// batchSize is the number of texts sent in one embed request
const batchSize = 32

// OllamaConfig holds configuration for the Ollama text embedder
type OllamaConfig struct {
	URL        string         // Ollama server URL, e.g. http://localhost:11434
	Model      string         // Embedding model name
	Dimensions int            // Expected vector size
	Timeout    time.Duration  // Per-request timeout
	Workers    int            // Concurrent batch requests
	Options    map[string]any // Model options passed through unopened
}

// OllamaEmbedder embeds item text with an Ollama embedding model
type OllamaEmbedder struct {
	client *api.Client
	config OllamaConfig
	log    zerolog.Logger
}

var _ TextEmbedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder talking to the Ollama server at cfg.URL
func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:11434"
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL %q: %w", cfg.URL, err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &OllamaEmbedder{
		client: api.NewClient(u, httpClient),
		config: cfg,
		log:    logging.Component("embedding"),
	}, nil
}

// Dimensions returns the configured vector size
func (e *OllamaEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// EmbedItems embeds the cleaned "title | description" text of each record.
// When an id repeats, the first record is used.
func (e *OllamaEmbedder) EmbedItems(ctx context.Context, records []models.ItemRecord) (models.EmbeddingMap, error) {
	ids := make([]models.ItemID, 0, len(records))
	texts := make([]string, 0, len(records))
	seen := make(map[models.ItemID]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		ids = append(ids, r.ID)
		texts = append(texts, payload.EmbeddingText(r))
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			embs, err := e.embedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], embs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(models.EmbeddingMap, len(ids))
	for i, id := range ids {
		out[id] = vectors[i]
	}

	e.log.Debug().Int("items", len(out)).Str("model", e.config.Model).Msg("Embedded item text")
	return out, nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model:   e.config.Model,
		Input:   texts,
		Options: e.config.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	for i, v := range resp.Embeddings {
		if len(v) != e.config.Dimensions {
			return nil, fmt.Errorf("model %s returned %d-dimensional vector at %d, configured %d",
				e.config.Model, len(v), i, e.config.Dimensions)
		}
	}
	return resp.Embeddings, nil
}
