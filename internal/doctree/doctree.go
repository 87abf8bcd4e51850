package doctree

import (
	"fmt"
	"sort"
)

// FontSpan is one text run's font as reported by the PDF text extractor.
type FontSpan struct {
	Name string  `json:"name"`
	Size float64 `json:"size"`
}

// TextData is the extracted text of a fragment plus the fonts it was set in.
type TextData struct {
	Content string     `json:"content"`
	Fonts   []FontSpan `json:"fonts,omitempty"`
}

// MaxFontSize returns the largest span size, or 0 without font data.
func (t *TextData) MaxFontSize() float64 {
	if t == nil {
		return 0
	}
	var max float64
	for _, f := range t.Fonts {
		if f.Size > max {
			max = f.Size
		}
	}
	return max
}

// MeanFontSize returns the average span size, or 0 without font data.
func (t *TextData) MeanFontSize() float64 {
	if t == nil || len(t.Fonts) == 0 {
		return 0
	}
	var sum float64
	for _, f := range t.Fonts {
		sum += f.Size
	}
	return sum / float64(len(t.Fonts))
}

// Fragment is one layout-detected content box. Fragments are produced once
// per document and never mutated by the builders.
type Fragment struct {
	ID         string    `json:"id"`
	FileID     string    `json:"file_id"`
	PageNumber int       `json:"page_number"`
	BBox       BBox      `json:"bbox"`
	Class      Class     `json:"class"`
	Text       *TextData `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"` // base64 crop
}

// Content returns the fragment text, or "" when it has none.
func (f *Fragment) Content() string {
	if f.Text == nil {
		return ""
	}
	return f.Text.Content
}

// HasFonts reports whether the fragment carries span font data.
func (f *Fragment) HasFonts() bool {
	return f.Text != nil && len(f.Text.Fonts) > 0
}

// Validate reports why a fragment cannot take part in a build.
func (f *Fragment) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("fragment without id")
	}
	if f.PageNumber < 0 {
		return fmt.Errorf("fragment %s: negative page number %d", f.ID, f.PageNumber)
	}
	if !f.BBox.Valid() {
		return fmt.Errorf("fragment %s: bbox has %d coordinates, want 4", f.ID, len(f.BBox))
	}
	return nil
}

// SortReadingOrder returns a copy of frags stably sorted by (page, top).
// Fragments sharing both keys keep their input order.
func SortReadingOrder(frags []Fragment) []Fragment {
	out := make([]Fragment, len(frags))
	copy(out, frags)
	sort.SliceStable(out, func(i, j int) bool {
		return Before(&out[i], &out[j])
	})
	return out
}

// Before is the reading-order comparison used everywhere downstream.
func Before(a, b *Fragment) bool {
	if a.PageNumber != b.PageNumber {
		return a.PageNumber < b.PageNumber
	}
	return a.BBox.Top() < b.BBox.Top()
}

// Index maps fragment ids to their position in a slice.
func Index(frags []Fragment) map[string]int {
	idx := make(map[string]int, len(frags))
	for i := range frags {
		idx[frags[i].ID] = i
	}
	return idx
}

// TocEntry is one outline entry from the PDF's native table of contents.
type TocEntry struct {
	Level      int    `json:"level"`
	Title      string `json:"title"`
	PageNumber int    `json:"page_number"`
}
