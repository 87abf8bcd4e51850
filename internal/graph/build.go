package graph

import (
	"github.com/dgallion1/docgraph/internal/doctree"
)

// Build assembles the document graph. Nodes come from frags, hierarchy edges
// from tree, caption edges from links and reference or citation edges from
// refs, in that order. Hierarchy edges skip virtual tree nodes and attach to
// the nearest ancestor backed by a fragment.
func Build(tree *doctree.Tree, frags []doctree.Fragment, refs []doctree.Reference, links []doctree.TitleLink) *Graph {
	g := New()
	for _, f := range frags {
		level := doctree.LevelContent
		if tree != nil {
			if n := tree.Node(f.ID); n != nil {
				level = n.Level
			}
		}
		g.AddNode(f, level)
	}

	if tree != nil {
		for _, id := range tree.Order {
			n := tree.Node(id)
			if n.Virtual() {
				continue
			}
			for _, anc := range tree.Ancestors(id) {
				p := tree.Node(anc)
				if p == nil || p.Virtual() {
					continue
				}
				g.AddEdge(p.FragmentID, n.FragmentID, EdgeHierarchy, nil)
				break
			}
		}
	}

	for _, l := range links {
		g.AddEdge(l.CaptionID, l.TargetID, EdgeTitle, map[string]any{
			"page_distance":    l.PageDistance,
			"spatial_distance": l.SpatialDistance,
		})
	}

	for _, r := range refs {
		typ := EdgeReference
		if r.Type == doctree.RefCitation {
			typ = EdgeCitation
		}
		g.AddEdge(r.SourceID, r.TargetID, typ, map[string]any{
			"ref_type": string(r.Type),
			"label":    r.Label,
			"ref_text": r.MatchedText,
		})
	}
	return g
}
