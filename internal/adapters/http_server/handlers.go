// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"homematch/internal/app"
	"homematch/internal/domain"
)

type Handlers struct{ S *app.SearchService }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/search", h.search)
	s.mux.Get("/v1/listings/{id}", h.getListing)
	s.mux.Get("/v1/listings/{id}/nearby", h.nearbyPOIs)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

type searchRequest struct {
	Query   string               `json:"query"`
	Filters domain.SearchFilters `json:"filters"`
	Page    int                  `json:"page"`
}

type searchResponse struct {
	domain.SearchPage
	Analysis domain.SemanticAnalysis `json:"analysis"`
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "body must be a JSON search request")
		return
	}
	if req.Query == "" && isEmptyFilters(req.Filters) {
		writeProblem(w, http.StatusBadRequest, "Empty search", "provide a query or at least one filter")
		return
	}

	page, analysis, err := h.S.Search(r.Context(), app.SearchRequest{
		Query:   req.Query,
		Filters: req.Filters,
		Page:    req.Page,
	})
	if err != nil {
		log.Error().Err(err).Str("query", req.Query).Msg("search failed")
		writeProblem(w, http.StatusServiceUnavailable, "Search unavailable", "listing store unreachable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(searchResponse{SearchPage: page, Analysis: analysis}); err != nil {
		log.Error().Err(err).Msg("failed to write search body")
	}
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}

	resp, err := h.S.GetListing(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "listing not found")
			return
		}
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "listing store unreachable")
		return
	}

	etag, body := calcETagAndBody(resp)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getListing body")
	}
}

func (h *Handlers) nearbyPOIs(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}

	radius := 0.0
	if rs := r.URL.Query().Get("radius"); rs != "" {
		radius, err = strconv.ParseFloat(rs, 64)
		if err != nil || radius <= 0 || radius > 5000 {
			writeProblem(w, http.StatusBadRequest, "Invalid radius", "radius must be metres between 1 and 5000")
			return
		}
	}

	scored, err := h.S.NearbyPOIs(r.Context(), id, radius)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "listing not found or has no coordinates")
			return
		}
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "listing store unreachable")
		return
	}
	if scored == nil {
		scored = []domain.ScoredPOI{}
	}

	etag, body := calcETagAndBody(scored)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write nearbyPOIs body")
	}
}

func isEmptyFilters(f domain.SearchFilters) bool {
	return f.Query == nil && f.MinPrice == nil && f.MaxPrice == nil &&
		f.Bedrooms == nil && f.Bathrooms == nil && f.PropertyType == nil &&
		f.Location == nil && f.MinArea == nil && f.MaxArea == nil &&
		len(f.Features) == 0
}
