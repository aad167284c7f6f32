// Package server hosts a published catalogue over HTTP: the database file
// itself (with byte-range support, which the chunked loader depends on),
// the chunk manifest, and a small JSON read API mirroring the record
// service's surface for UI collaborators that prefer not to run an engine.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openarch-dev/archbase/api"
	"github.com/openarch-dev/archbase/internal/manifest"
	"github.com/openarch-dev/archbase/internal/records"
)

// Server wires the record service and the on-disk database into a router.
type Server struct {
	svc       *records.Service
	dbPath    string
	chunkSize int64
}

// New builds the HTTP handler. chunkSize <= 0 selects the default used when
// synthesizing the manifest for the database at dbPath.
func New(svc *records.Service, dbPath string, chunkSize int64) *Server {
	if chunkSize <= 0 {
		chunkSize = manifest.DefaultChunkSize
	}
	return &Server{svc: svc, dbPath: dbPath, chunkSize: chunkSize}
}

// Handler returns the chi router for this server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/manifest.json", s.handleManifest)
	r.Get("/"+filepath.Base(s.dbPath), s.handleDatabase)

	r.Route("/api", func(r chi.Router) {
		r.Get("/records", s.handleSearch)
		r.Get("/records/{id}", s.handleRecord)
		r.Get("/architects/{id}", s.handleArchitect)
		r.Get("/facets", s.handleFacets)
		r.Get("/values/{key}", s.handleValues)
	})
	return r
}

// corsMiddleware is deliberately permissive: the dataset is a single shared,
// anonymous, read-only catalogue, and cross-origin fetches of the manifest,
// database bytes, and API are part of the deployment contract.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Range, Accept-Ranges, Content-Length")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	info, err := os.Stat(s.dbPath)
	if err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	m := api.Manifest{
		DatabaseFileName: filepath.Base(s.dbPath),
		ChunkSizeBytes:   s.chunkSize,
		TotalSizeBytes:   info.Size(),
		ChunkCount:       (info.Size() + s.chunkSize - 1) / s.chunkSize,
	}
	writeJSON(w, m)
}

// handleDatabase serves the raw file; http.ServeFile answers Range requests
// with 206 Partial Content, which is exactly what the chunked loader needs.
func (s *Server) handleDatabase(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.dbPath)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := api.SearchRequest{
		Page:     atoiDefault(q.Get("page"), 1),
		Limit:    atoiDefault(q.Get("limit"), 24),
		Query:    q.Get("q"),
		SortBy:   q.Get("sortBy"),
		SortDir:  api.SortDirection(q.Get("sortDir")),
		YearFrom: atoiDefault(q.Get("yearFrom"), 0),
		YearTo:   atoiDefault(q.Get("yearTo"), 0),
	}
	if tags := strings.TrimSpace(q.Get("tags")); tags != "" {
		req.Tags = strings.Split(tags, ",")
	}
	filters := make(map[string]string)
	for _, key := range []string{"prefecture", "category", "architect"} {
		if v := q.Get(key); v != "" {
			filters[key] = v
		}
	}
	if len(filters) > 0 {
		req.Filters = filters
	}

	writeJSON(w, s.svc.Search(r.Context(), req))
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	rec := s.svc.ByID(r.Context(), id)
	if rec == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleArchitect(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	rec := s.svc.ArchitectByID(r.Context(), id)
	if rec == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.FacetCounts(r.Context()))
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.DistinctValues(r.Context(), chi.URLParam(r, "key")))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
