// Package proximity links captions to the content they describe by bounded
// nearest-neighbour search in reading order.
package proximity

import (
	"math"
	"sort"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Options bounds the search. Captions maps a caption class to the class of
// content it labels.
type Options struct {
	MaxPageDiff int
	MaxBoxes    int
	Captions    map[doctree.Class]doctree.Class
}

func DefaultOptions() Options {
	return Options{
		MaxPageDiff: 1,
		MaxBoxes:    5,
		Captions: map[doctree.Class]doctree.Class{
			doctree.ClassChartTitle: doctree.ClassPicture,
			doctree.ClassTableTitle: doctree.ClassTable,
		},
	}
}

// Linker holds per-class candidate lists sorted by (page, top).
type Linker struct {
	opts       Options
	candidates map[doctree.Class][]*doctree.Fragment
}

// NewLinker indexes the target classes named in opts.Captions.
func NewLinker(frags []doctree.Fragment, opts Options) *Linker {
	targets := make(map[doctree.Class]bool, len(opts.Captions))
	for _, c := range opts.Captions {
		targets[c] = true
	}
	l := &Linker{opts: opts, candidates: make(map[doctree.Class][]*doctree.Fragment)}
	for i := range frags {
		f := &frags[i]
		if targets[f.Class] && f.BBox.Valid() {
			l.candidates[f.Class] = append(l.candidates[f.Class], f)
		}
	}
	for _, list := range l.candidates {
		sort.SliceStable(list, func(i, j int) bool { return doctree.Before(list[i], list[j]) })
	}
	return l
}

// Nearest returns the closest candidate of class target to the caption, or
// false when none lies within MaxPageDiff pages inside the search window.
// Page distance dominates; vertical center distance breaks ties, then the
// earlier candidate.
func (l *Linker) Nearest(caption *doctree.Fragment, target doctree.Class) (doctree.TitleLink, bool) {
	list := l.candidates[target]
	if len(list) == 0 || !caption.BBox.Valid() {
		return doctree.TitleLink{}, false
	}
	ip := sort.Search(len(list), func(i int) bool {
		c := list[i]
		return c.PageNumber > caption.PageNumber ||
			(c.PageNumber == caption.PageNumber && c.BBox.Top() > caption.BBox.Top())
	})
	lo := max(0, ip-l.opts.MaxBoxes)
	hi := min(len(list), ip+l.opts.MaxBoxes)

	var best doctree.TitleLink
	found := false
	for _, c := range list[lo:hi] {
		if c.ID == caption.ID {
			continue
		}
		pageDiff := abs(c.PageNumber - caption.PageNumber)
		if pageDiff > l.opts.MaxPageDiff {
			continue
		}
		spatial := math.Abs(c.BBox.CenterY() - caption.BBox.CenterY())
		if !found || pageDiff < best.PageDistance ||
			(pageDiff == best.PageDistance && spatial < best.SpatialDistance) {
			best = doctree.TitleLink{
				CaptionID:       caption.ID,
				TargetID:        c.ID,
				PageDistance:    pageDiff,
				SpatialDistance: spatial,
			}
			found = true
		}
	}
	return best, found
}

// Link finds the nearest target for every caption in sorted, in caption
// reading order.
func (l *Linker) Link(sorted []doctree.Fragment) []doctree.TitleLink {
	var out []doctree.TitleLink
	for i := range sorted {
		f := &sorted[i]
		target, ok := l.opts.Captions[f.Class]
		if !ok {
			continue
		}
		if link, ok := l.Nearest(f, target); ok {
			out = append(out, link)
		}
	}
	return out
}

// Link is a convenience wrapper around NewLinker and Linker.Link.
func Link(sorted []doctree.Fragment, opts Options) []doctree.TitleLink {
	return NewLinker(sorted, opts).Link(sorted)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
