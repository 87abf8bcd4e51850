// Package refs resolves in-text cross-references ("see Table 3", "Eqs. (1)-(3)",
// "§4.2", "[12]") to the fragments that define them.
package refs

import (
	"maps"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Options configures which fragment classes define reference targets.
type Options struct {
	TitleSources map[doctree.Class]doctree.RefType
}

// DefaultTitleSources maps caption-like classes to the reference type they define.
func DefaultTitleSources() map[doctree.Class]doctree.RefType {
	return map[doctree.Class]doctree.RefType{
		doctree.ClassTableTitle: doctree.RefTable,
		doctree.ClassChartTitle: doctree.RefFigure,
		doctree.ClassFormula:    doctree.RefEquation,
		doctree.ClassAlgorithm:  doctree.RefAlgorithm,
		doctree.ClassTitle:      doctree.RefSection,
	}
}

func DefaultOptions() Options {
	return Options{TitleSources: DefaultTitleSources()}
}

type key struct {
	typ   doctree.RefType
	label string
}

// Resolver holds the label index of one document.
type Resolver struct {
	sources map[doctree.Class]doctree.RefType
	index   map[key]string
}

// NewResolver indexes the labels defined by frags. When two fragments define
// the same label, the later one in reading order wins.
func NewResolver(sorted []doctree.Fragment, opts Options) *Resolver {
	sources := opts.TitleSources
	if sources == nil {
		sources = DefaultTitleSources()
	}
	r := &Resolver{sources: maps.Clone(sources), index: make(map[key]string)}
	for i := range sorted {
		f := &sorted[i]
		typ, ok := r.sources[f.Class]
		if !ok {
			continue
		}
		if label, ok := captionLabel(typ, f.Content()); ok {
			r.index[key{typ, label}] = f.ID
		}
	}
	return r
}

// Lookup returns the fragment defining (typ, label).
func (r *Resolver) Lookup(typ doctree.RefType, label string) (string, bool) {
	id, ok := r.index[key{typ, label}]
	return id, ok
}

// Len returns the number of indexed labels.
func (r *Resolver) Len() int {
	return len(r.index)
}

// Resolve scans every fragment's text for mentions and returns one Reference
// per distinct (type, label) a fragment mentions. Unknown labels and
// self-references are skipped.
func (r *Resolver) Resolve(sorted []doctree.Fragment) []doctree.Reference {
	var out []doctree.Reference
	for i := range sorted {
		f := &sorted[i]
		text := f.Content()
		if text == "" {
			continue
		}
		seen := make(map[key]bool)
		for _, m := range scan(text) {
			for _, label := range m.labels {
				k := key{m.typ, label}
				if seen[k] {
					continue
				}
				target, ok := r.index[k]
				if !ok || target == f.ID {
					continue
				}
				seen[k] = true
				out = append(out, doctree.Reference{
					SourceID:    f.ID,
					TargetID:    target,
					Type:        m.typ,
					Label:       label,
					MatchedText: m.text,
				})
			}
		}
	}
	return out
}

// Resolve is a convenience wrapper that indexes and scans in one call.
func Resolve(sorted []doctree.Fragment, opts Options) []doctree.Reference {
	return NewResolver(sorted, opts).Resolve(sorted)
}

// Enrichment lists, per fragment, the ids it references and the ids that
// reference it, each in first-seen order without duplicates.
type Enrichment struct {
	To map[string][]string `json:"references_to"`
	By map[string][]string `json:"referenced_by"`
}

// Enrich inverts a reference list into per-fragment adjacency.
func Enrich(refs []doctree.Reference) Enrichment {
	e := Enrichment{To: make(map[string][]string), By: make(map[string][]string)}
	for _, ref := range refs {
		e.To[ref.SourceID] = appendUnique(e.To[ref.SourceID], ref.TargetID)
		e.By[ref.TargetID] = appendUnique(e.By[ref.TargetID], ref.SourceID)
	}
	return e
}

func appendUnique(list []string, id string) []string {
	for _, s := range list {
		if s == id {
			return list
		}
	}
	return append(list, id)
}
