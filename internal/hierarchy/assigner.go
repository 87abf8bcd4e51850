// Package hierarchy reconstructs the section tree of a document from its
// reading-ordered fragments. Three leveling strategies share one interface:
// fixed font-size thresholds, unsupervised font clustering, and alignment
// against the PDF's native table of contents.
package hierarchy

import "github.com/dgallion1/docgraph/internal/doctree"

// Strategy names accepted by Select.
const (
	StrategyAuto    = "auto"
	StrategyFixed   = "fixed"
	StrategyDynamic = "dynamic"
	StrategyTOC     = "toc"
)

// LevelAssigner builds a hierarchy from fragments already sorted in reading order.
type LevelAssigner interface {
	Name() string
	Build(sorted []doctree.Fragment) *doctree.Tree
}

// Options configures every strategy. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	TitleClass         doctree.Class
	SectionFontSize    float64 // max font size strictly above this is a Section
	SubsectionFontSize float64 // strictly above this (and not a Section) is a Subsection
	Clusters           int     // 0 picks 2 or 3 from the candidate count
	MatchThreshold     int     // token-set ratio, 0..100
	Seed               uint64
}

// DefaultOptions returns the thresholds the detector's PDFs were tuned on.
func DefaultOptions() Options {
	return Options{
		TitleClass:         doctree.ClassTitle,
		SectionFontSize:    16,
		SubsectionFontSize: 14,
		MatchThreshold:     80,
		Seed:               42,
	}
}

// Select picks the assigner for a document. "auto" prefers TOC matching when
// entries exist and falls back to font clustering otherwise.
func Select(strategy string, toc []doctree.TocEntry, opts Options) LevelAssigner {
	switch strategy {
	case StrategyFixed:
		return NewFixedLevels(opts)
	case StrategyDynamic:
		return NewDynamicLevels(opts)
	}
	if len(toc) > 0 {
		return NewTocMatcher(toc, opts)
	}
	return NewDynamicLevels(opts)
}

func headingNode(f *doctree.Fragment, level doctree.Level) *doctree.Node {
	n := &doctree.Node{
		ID:         f.ID,
		FragmentID: f.ID,
		Level:      level,
		Page:       f.PageNumber,
	}
	if level.IsHeading() {
		n.Title = doctree.TitleOf(f)
	}
	return n
}
