// Package parser adapts external inputs into fragments: the JSON document
// format, raw layout-detector output and the source PDF's text layer.
package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Document is the JSON input of one build.
type Document struct {
	FileID    string             `json:"file_id"`
	Fragments []doctree.Fragment `json:"fragments"`
	TOC       TOC                `json:"toc,omitempty"`
}

// TOC decodes outline entries given either as objects or as
// [level, title, page] triples.
type TOC []doctree.TocEntry

func (t *TOC) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("toc: %w", err)
	}
	out := make(TOC, 0, len(raw))
	for i, r := range raw {
		var e doctree.TocEntry
		if err := json.Unmarshal(r, &e); err == nil {
			out = append(out, e)
			continue
		}
		var triple []any
		if err := json.Unmarshal(r, &triple); err != nil || len(triple) < 3 {
			return fmt.Errorf("toc entry %d: want object or [level, title, page]", i)
		}
		level, ok1 := triple[0].(float64)
		title, ok2 := triple[1].(string)
		page, ok3 := triple[2].(float64)
		if !ok1 || !ok2 || !ok3 {
			return fmt.Errorf("toc entry %d: want [int, string, int]", i)
		}
		out = append(out, doctree.TocEntry{Level: int(level), Title: title, PageNumber: int(page)})
	}
	*t = out
	return nil
}

// DecodeDocument reads a JSON document. Fragments without a file id inherit
// the document's.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for i := range doc.Fragments {
		if doc.Fragments[i].FileID == "" {
			doc.Fragments[i].FileID = doc.FileID
		}
	}
	return &doc, nil
}

// LayoutBox is one detection as emitted by the layout model.
type LayoutBox struct {
	ClassID    *int      `json:"cls_id"`
	Label      string    `json:"label"`
	Score      float64   `json:"score"`
	Coordinate []float64 `json:"coordinate"`
}

// LayoutPage is the detector output for one rendered page. ImageSize is the
// rendered image's [w, h] in pixels, PageSize the PDF page's [w, h] in points.
type LayoutPage struct {
	PageNumber int         `json:"page_number"`
	ImageSize  []float64   `json:"image_size"`
	PageSize   []float64   `json:"page_size"`
	Boxes      []LayoutBox `json:"boxes"`
}

// LayoutDocument is the detector output for a whole file.
type LayoutDocument struct {
	FileID string       `json:"file_id"`
	Pages  []LayoutPage `json:"pages"`
	TOC    TOC          `json:"toc,omitempty"`
}

// LayoutOptions filters detections.
type LayoutOptions struct {
	MinScore float64
}

// DecodeLayout reads detector output.
func DecodeLayout(r io.Reader) (*LayoutDocument, error) {
	var doc LayoutDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	return &doc, nil
}

// FromLayout converts detections to fragments in PDF point space. Boxes
// below MinScore or with an unknown class are dropped; the number dropped is
// returned alongside.
func FromLayout(doc *LayoutDocument, opts LayoutOptions) ([]doctree.Fragment, int) {
	var frags []doctree.Fragment
	dropped := 0
	for _, page := range doc.Pages {
		sx, sy := scale(page.PageSize, page.ImageSize)
		for _, b := range page.Boxes {
			if b.Score < opts.MinScore {
				dropped++
				continue
			}
			class, err := boxClass(b)
			if err != nil {
				dropped++
				continue
			}
			bbox := doctree.BBox(append([]float64(nil), b.Coordinate...))
			if bbox.Valid() {
				bbox = bbox.Scale(sx, sy)
			}
			frags = append(frags, doctree.Fragment{
				ID:         uuid.NewString(),
				FileID:     doc.FileID,
				PageNumber: page.PageNumber,
				BBox:       bbox,
				Class:      class,
			})
		}
	}
	return frags, dropped
}

func boxClass(b LayoutBox) (doctree.Class, error) {
	if b.ClassID != nil {
		return doctree.ClassFromID(*b.ClassID)
	}
	return doctree.ParseClass(b.Label)
}

// scale returns the pixel-to-point factors, or 1 when either size is missing.
func scale(pageSize, imageSize []float64) (float64, float64) {
	if len(pageSize) < 2 || len(imageSize) < 2 || imageSize[0] <= 0 || imageSize[1] <= 0 {
		return 1, 1
	}
	return pageSize[0] / imageSize[0], pageSize[1] / imageSize[1]
}

// Document converts the detector output into a fragment document.
func (l *LayoutDocument) Document(opts LayoutOptions) (*Document, int) {
	frags, dropped := FromLayout(l, opts)
	return &Document{FileID: l.FileID, Fragments: frags, TOC: l.TOC}, dropped
}
