package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docgraph/internal/pipeline"
)

// exporter returns the pathstore exporter or writes a 503.
func (s *Server) exporter(w http.ResponseWriter) *pipeline.Exporter {
	e := s.orchestrator.Exporter()
	if e == nil {
		jsonError(w, "export is disabled", http.StatusServiceUnavailable)
	}
	return e
}

// handleGetDocument returns the stored meta record of an export.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	e := s.exporter(w)
	if e == nil {
		return
	}
	docID := chi.URLParam(r, "docID")
	meta, err := e.Meta(r.Context(), docID)
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusBadGateway)
		return
	}
	if meta == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id": docID,
		"meta":   meta.Value,
	})
}

// handleListChunks lists the stored chunks of an export.
func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	e := s.exporter(w)
	if e == nil {
		return
	}
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	docID := chi.URLParam(r, "docID")
	children, err := e.Chunks(r.Context(), docID, limit)
	if err != nil {
		jsonError(w, "failed to list chunks: "+err.Error(), http.StatusBadGateway)
		return
	}

	chunks := make([]any, 0, len(children))
	for _, c := range children {
		chunks = append(chunks, c.Value)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id": docID,
		"chunks": chunks,
	})
}

// handleDeleteDocument removes a document's export.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	e := s.exporter(w)
	if e == nil {
		return
	}
	docID := chi.URLParam(r, "docID")
	if err := e.Delete(r.Context(), docID); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":  docID,
		"deleted": true,
	})
}
