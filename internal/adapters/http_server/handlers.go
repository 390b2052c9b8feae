// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"poi_ingest/internal/app"
	"poi_ingest/internal/domain"
)

const maxBody = 1 << 20

// Handlers serves the operator API. D may be nil on a read-only node, in
// which case POST /v1/imports answers 503.
type Handlers struct {
	Q *app.QueryService
	D *app.Dispatcher
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type importRequest struct {
	Paths []string `json:"paths"`
}

type importResponse struct {
	Submitted []app.FileOutcome `json:"submitted"`
	Failed    []failedOutcome   `json:"failed,omitempty"`
	Skipped   []string          `json:"skipped,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type failedOutcome struct {
	app.FileOutcome
	Error string `json:"error"`
}

func newImportResponse(rep app.DispatchReport, err error) importResponse {
	out := importResponse{Submitted: rep.Submitted, Skipped: rep.Skipped}
	if out.Submitted == nil {
		out.Submitted = []app.FileOutcome{}
	}
	for _, f := range rep.Failed {
		out.Failed = append(out.Failed, failedOutcome{FileOutcome: f, Error: f.Err.Error()})
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/imports/{id}", h.getImport)
	s.mux.Post("/v1/imports", h.postImports)
	s.mux.Get("/v1/pois", h.listPOIs)
	s.mux.Get("/v1/pois/count", h.countPOIs)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached answers with v, or 304 when the client already holds it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func (h *Handlers) getImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.Q.ImportStatus(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "import job not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("job", id).Msg("import status lookup failed")
		writeProblem(w, http.StatusServiceUnavailable, "Status Unavailable", "status store unavailable")
		return
	}
	writeCached(w, r, st)
}

func (h *Handlers) postImports(w http.ResponseWriter, r *http.Request) {
	if h.D == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Imports Disabled", "this node does not accept imports")
		return
	}
	var req importRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", `want {"paths": ["..."]}`)
		return
	}
	paths := req.Paths[:0]
	for _, p := range req.Paths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		writeProblem(w, http.StatusBadRequest, "No Paths", "paths must list at least one file")
		return
	}

	rep, err := h.D.Dispatch(r.Context(), paths)
	if errors.Is(err, domain.ErrUnrecognizedFormat) {
		writeJSON(w, http.StatusUnprocessableEntity, newImportResponse(rep, err))
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("dispatch failed")
		writeProblem(w, http.StatusInternalServerError, "Dispatch Failed", err.Error())
		return
	}
	status := http.StatusAccepted
	if len(rep.Submitted) == 0 && len(rep.Failed) > 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, newImportResponse(rep, nil))
}

func (h *Handlers) listPOIs(w http.ResponseWriter, r *http.Request) {
	// ids are stored verbatim, so only the blank check trims
	id := r.URL.Query().Get("internal_id")
	if strings.TrimSpace(id) == "" {
		writeProblem(w, http.StatusBadRequest, "Missing internal_id", "internal_id query parameter is required")
		return
	}
	out, err := h.Q.LookupPOIs(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "no records with that internal id")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("internal_id", id).Msg("poi lookup failed")
		writeProblem(w, http.StatusInternalServerError, "Lookup Failed", "store unavailable")
		return
	}
	writeCached(w, r, toPOIViews(out))
}

func (h *Handlers) countPOIs(w http.ResponseWriter, r *http.Request) {
	n, err := h.Q.CountPOIs(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("poi count failed")
		writeProblem(w, http.StatusInternalServerError, "Count Failed", "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

type poiView struct {
	ExternalID int64   `json:"external_id"`
	InternalID string  `json:"internal_id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Rating     float64 `json:"rating"`
}

func toPOIViews(in []domain.POI) []poiView {
	out := make([]poiView, len(in))
	for i, p := range in {
		out[i] = poiView(p)
	}
	return out
}
