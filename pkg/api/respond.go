package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/logging"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps the error kind to a status code and logs server-side failures
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	} else {
		logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request rejected")
	}
	writeJSON(w, status, errorResponse{Status: "error", Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case core.IsValidation(err):
		return http.StatusBadRequest
	case core.IsNotFound(err):
		return http.StatusNotFound
	case core.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
