package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/indexer"
	"github.com/andrew/hybrid-recsys/pkg/logging"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

// Form field names of the upload endpoints
const (
	GraphFileField = "graphFileInput"
	TextFileField  = "textFileInput"
)

// ErrUploadTooLarge is returned when a request body exceeds the upload limit
var ErrUploadTooLarge = errors.New("upload too large")

// multipartMemory is kept in memory before parts spill to temp files
const multipartMemory = 8 << 20

// ingestResponse wraps a finished ingestion
type ingestResponse struct {
	Status string               `json:"status"`
	Report indexer.IngestReport `json:"report"`
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

// Root is the liveness probe
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Alive"})
}

// Status reports that the service is serving
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// InitializeOnlyGraph ingests an uploaded interaction file
func (h *Handler) InitializeOnlyGraph(w http.ResponseWriter, r *http.Request) {
	files, cleanup, err := h.uploads(w, r, GraphFileField)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	report, err := h.ingester.IngestGraph(r.Context(), files[0])
	h.respondIngest(w, r, report, err)
}

// InitializeOnlyText ingests an uploaded item text file
func (h *Handler) InitializeOnlyText(w http.ResponseWriter, r *http.Request) {
	files, cleanup, err := h.uploads(w, r, TextFileField)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	report, err := h.ingester.IngestText(r.Context(), files[0])
	h.respondIngest(w, r, report, err)
}

// InitializeBoth ingests an interaction file and an item text file into one collection
func (h *Handler) InitializeBoth(w http.ResponseWriter, r *http.Request) {
	files, cleanup, err := h.uploads(w, r, GraphFileField, TextFileField)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	report, err := h.ingester.IngestBoth(r.Context(), files[0], files[1])
	h.respondIngest(w, r, report, err)
}

func (h *Handler) respondIngest(w http.ResponseWriter, r *http.Request, report indexer.IngestReport, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.log.Info().
		Str("request_id", logging.RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Str("collection", report.Collection).
		Int("points", report.Points).
		Msg("Upload ingested")
	writeJSON(w, http.StatusOK, ingestResponse{Status: "done", Report: report})
}

// uploads opens the named multipart files in order. cleanup closes them and
// removes any temp files.
func (h *Handler) uploads(w http.ResponseWriter, r *http.Request, fields ...string) ([]indexer.Source, func(), error) {
	const op = "read upload"

	if r.ContentLength > h.opts.MaxUploadBytes {
		return nil, nil, fmt.Errorf("%w: %d bytes, limit %d", ErrUploadTooLarge, r.ContentLength, h.opts.MaxUploadBytes)
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, nil, fmt.Errorf("%w: %w", ErrUploadTooLarge, err)
		}
		return nil, nil, core.Validation(op, "", "", fmt.Errorf("invalid multipart form: %w", err))
	}

	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	sources := make([]indexer.Source, 0, len(fields))
	for _, field := range fields {
		f, hdr, err := r.FormFile(field)
		if err != nil {
			cleanup()
			return nil, nil, core.Validation(op, "", "", fmt.Errorf("form file %s: %w", field, err))
		}
		opened = append(opened, f)
		sources = append(sources, indexer.Source{Name: hdr.Filename, Body: f})
	}
	return sources, cleanup, nil
}

// AvailableDatabases lists collection names
func (h *Handler) AvailableDatabases(w http.ResponseWriter, r *http.Request) {
	names, err := h.retrieval.ListCollections(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"databases": names})
}

// Collection describes one collection
func (h *Handler) Collection(w http.ResponseWriter, r *http.Request) {
	info, err := h.retrieval.Collection(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Similar returns the k nearest items to a seed item
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	k, err := h.queryK(r, name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.retrieval.FindSimilar(r.Context(), name, models.ItemID(chi.URLParam(r, "id")), k)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse[models.SimilarItem]{Items: items})
}

// Random returns a window of k items from a random position
func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	k, err := h.queryK(r, name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.retrieval.SampleRandom(r.Context(), name, k)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse[models.SampledItem]{Items: items})
}

// queryK reads ?k=, falling back to the configured default
func (h *Handler) queryK(r *http.Request, collection string) (int, error) {
	raw := r.URL.Query().Get("k")
	if raw == "" {
		return h.retrieval.Config().DefaultK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.Validation("parse k", collection, "", fmt.Errorf("k must be an integer, got %q", raw))
	}
	return k, nil
}
