package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dgallion1/docgraph/internal/outline"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/pipeline"
)

// decodeInput reads a fragment document, or detector output when input is
// "layout".
func (s *Server) decodeInput(body io.Reader, input string) (*parser.Document, error) {
	switch input {
	case "", "document":
		return parser.DecodeDocument(body)
	case "layout":
		layout, err := parser.DecodeLayout(body)
		if err != nil {
			return nil, err
		}
		doc, dropped := layout.Document(parser.LayoutOptions{MinScore: s.cfg.Build.MinScore})
		if dropped > 0 {
			s.log.Debug("dropped detections", "file_id", layout.FileID, "count", dropped)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unknown input format %q", input)
	}
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	doc, err := s.decodeInput(r.Body, r.URL.Query().Get("input"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := s.orchestrator.Build(pipeline.Input{FileID: doc.FileID, Fragments: doc.Fragments, TOC: doc.TOC})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res.Output())
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "html" {
		jsonError(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	doc, err := s.decodeInput(r.Body, r.URL.Query().Get("input"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res := s.orchestrator.Build(pipeline.Input{FileID: doc.FileID, Fragments: doc.Fragments, TOC: doc.TOC})

	if format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, outline.Markdown(res.Tree, res.Fragments))
		return
	}
	out, err := outline.HTML(res.Tree, res.Fragments)
	if err != nil {
		jsonError(w, "render outline: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, out)
}
