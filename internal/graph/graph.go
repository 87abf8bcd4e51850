// Package graph is the typed multi-edge document graph: fragments as nodes,
// hierarchy, caption, cross-reference and citation links as edges.
package graph

import (
	"github.com/dgallion1/docgraph/internal/doctree"
)

// EdgeType labels an edge. Several edges of different types may join the
// same pair of nodes.
type EdgeType string

const (
	EdgeHierarchy EdgeType = "hierarchy"
	EdgeReference EdgeType = "reference"
	EdgeTitle     EdgeType = "title"
	EdgeFootnote  EdgeType = "footnote" // reserved; nothing emits it yet
	EdgeCitation  EdgeType = "citation"
)

// Node is a fragment with its hierarchy level.
type Node struct {
	Fragment doctree.Fragment `json:"fragment"`
	Level    doctree.Level    `json:"level"`
}

// Edge is one directed, typed link.
type Edge struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Type   EdgeType       `json:"type"`
	Attrs  map[string]any `json:"attrs,omitempty"`
}

// Graph stores edges in a flat list with per-node index lists so parallel
// edges survive. It is built by one owner and read-only afterwards.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	edges   []Edge
	out     map[string][]int
	in      map[string][]int
	byClass map[doctree.Class][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		out:     make(map[string][]int),
		in:      make(map[string][]int),
		byClass: make(map[doctree.Class][]string),
	}
}

// AddNode stores a fragment. Malformed fragments and repeated ids are
// skipped and reported as false.
func (g *Graph) AddNode(f doctree.Fragment, level doctree.Level) bool {
	if f.Validate() != nil {
		return false
	}
	if _, ok := g.nodes[f.ID]; ok {
		return false
	}
	g.nodes[f.ID] = &Node{Fragment: f, Level: level}
	g.order = append(g.order, f.ID)
	g.byClass[f.Class] = append(g.byClass[f.Class], f.ID)
	return true
}

// AddEdge appends an edge. It never merges with existing edges. An edge whose
// endpoint is unknown is skipped and reported as false.
func (g *Graph) AddEdge(src, dst string, typ EdgeType, attrs map[string]any) bool {
	if _, ok := g.nodes[src]; !ok {
		return false
	}
	if _, ok := g.nodes[dst]; !ok {
		return false
	}
	idx := len(g.edges)
	g.edges = append(g.edges, Edge{Source: src, Target: dst, Type: typ, Attrs: attrs})
	g.out[src] = append(g.out[src], idx)
	g.in[dst] = append(g.in[dst], idx)
	return true
}

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node with id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// NodeIDs returns node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// Edges returns a copy of every edge in insertion order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// EdgesOfType returns the edges of one type in insertion order.
func (g *Graph) EdgesOfType(t EdgeType) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) OutEdges(id string) []Edge { return g.collect(g.out[id]) }
func (g *Graph) InEdges(id string) []Edge  { return g.collect(g.in[id]) }

func (g *Graph) collect(idx []int) []Edge {
	out := make([]Edge, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.edges[i])
	}
	return out
}

// NodesOfClass returns the ids of one fragment class in insertion order.
func (g *Graph) NodesOfClass(c doctree.Class) []string {
	return append([]string(nil), g.byClass[c]...)
}

// Subgraph returns the graph induced by ids. Unknown ids are ignored.
func (g *Graph) Subgraph(ids []string) *Graph {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	sub := New()
	for _, id := range g.order {
		if keep[id] {
			n := g.nodes[id]
			sub.AddNode(n.Fragment, n.Level)
		}
	}
	for _, e := range g.edges {
		if keep[e.Source] && keep[e.Target] {
			sub.AddEdge(e.Source, e.Target, e.Type, e.Attrs)
		}
	}
	return sub
}

// Roots returns nodes with no incoming hierarchy edge, in insertion order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		parented := false
		for _, i := range g.in[id] {
			if g.edges[i].Type == EdgeHierarchy {
				parented = true
				break
			}
		}
		if !parented {
			roots = append(roots, id)
		}
	}
	return roots
}

// FindPath returns the shortest directed path from a to b over edges of any
// type, or nil when b is unreachable.
func (g *Graph) FindPath(a, b string) []string {
	if g.nodes[a] == nil || g.nodes[b] == nil {
		return nil
	}
	prev := map[string]string{a: ""}
	queue := []string{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == b {
			var path []string
			for n := b; n != ""; n = prev[n] {
				path = append([]string{n}, path...)
			}
			return path
		}
		for _, i := range g.out[cur] {
			next := g.edges[i].Target
			if _, seen := prev[next]; !seen {
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return nil
}
