package parser

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// defaultPageHeight is US Letter, used when a page has no readable MediaBox.
const defaultPageHeight = 792.0

// EnrichFromPDF fills the text and font spans of text-bearing fragments that
// arrive without text, using the PDF's own text layer. A glyph belongs to the
// first fragment on its page whose box contains the glyph origin. Fragment
// page numbers are 0-based page indexes, as the layout detector emits them.
// The input slice is not modified.
func EnrichFromPDF(r io.ReaderAt, size int64, frags []doctree.Fragment) ([]doctree.Fragment, error) {
	reader, err := pdflib.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return enrich(reader, frags), nil
}

// EnrichFromFile is EnrichFromPDF for a file on disk.
func EnrichFromFile(path string, frags []doctree.Fragment) ([]doctree.Fragment, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return enrich(reader, frags), nil
}

type textAccumulator struct {
	buf   strings.Builder
	spans []doctree.FontSpan
	lastX float64
	lastY float64
}

func (a *textAccumulator) add(t pdflib.Text, y float64) {
	if a.buf.Len() > 0 {
		gap := t.X - a.lastX
		switch {
		case math.Abs(y-a.lastY) > t.FontSize/2:
			a.buf.WriteByte(' ')
		case gap > t.FontSize*0.3 && !strings.HasSuffix(a.buf.String(), " ") && t.S != " ":
			a.buf.WriteByte(' ')
		}
	}
	a.buf.WriteString(t.S)
	a.lastX = t.X + t.W
	a.lastY = y
	if strings.TrimSpace(t.S) == "" {
		return
	}
	span := doctree.FontSpan{Name: t.Font, Size: t.FontSize}
	if n := len(a.spans); n == 0 || a.spans[n-1] != span {
		a.spans = append(a.spans, span)
	}
}

func needsText(f *doctree.Fragment) bool {
	return !f.Class.IsImage() && f.Content() == "" && f.BBox.Valid()
}

func enrich(reader *pdflib.Reader, frags []doctree.Fragment) []doctree.Fragment {
	out := make([]doctree.Fragment, len(frags))
	copy(out, frags)

	byPage := make(map[int][]int)
	for i := range out {
		if needsText(&out[i]) {
			byPage[out[i].PageNumber] = append(byPage[out[i].PageNumber], i)
		}
	}
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	for _, pageNum := range pages {
		n := pdfPage(pageNum)
		if n < 1 || n > reader.NumPage() {
			continue
		}
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		runs, err := pageText(page)
		if err != nil {
			continue
		}
		height := pageHeight(page)
		acc := make(map[int]*textAccumulator)
		for _, t := range runs {
			y := height - t.Y
			for _, i := range byPage[pageNum] {
				if !out[i].BBox.Contains(t.X, y) {
					continue
				}
				a := acc[i]
				if a == nil {
					a = &textAccumulator{}
					acc[i] = a
				}
				a.add(t, y)
				break
			}
		}
		for i, a := range acc {
			content := strings.Join(strings.Fields(a.buf.String()), " ")
			if content == "" {
				continue
			}
			out[i].Text = &doctree.TextData{Content: content, Fonts: a.spans}
		}
	}
	return out
}

// pdfPage maps a fragment page index to the PDF library's 1-based page number.
func pdfPage(index int) int {
	return index + 1
}

// pageText returns the page's glyph runs. The PDF library panics on some
// malformed content streams; those pages are skipped.
func pageText(page pdflib.Page) (runs []pdflib.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read page content: %v", r)
		}
	}()
	return page.Content().Text, nil
}

func pageHeight(page pdflib.Page) float64 {
	box := page.V.Key("MediaBox")
	if box.IsNull() {
		box = page.V.Key("Parent").Key("MediaBox")
	}
	if box.Len() == 4 {
		if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
			return h
		}
	}
	return defaultPageHeight
}
