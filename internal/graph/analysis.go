package graph

import (
	"github.com/dgallion1/docgraph/internal/doctree"
)

// Analysis summarises a graph.
type Analysis struct {
	NumNodes             int            `json:"num_nodes"`
	NumEdges             int            `json:"num_edges"`
	NumComponents        int            `json:"num_components"`
	LargestComponentSize int            `json:"largest_component_size"`
	AverageDegree        float64        `json:"average_degree"`
	NodeTypes            map[string]int `json:"node_types"`
	EdgeTypes            map[string]int `json:"edge_types"`
	HierarchyDepth       int            `json:"hierarchy_depth"`
	NumSections          int            `json:"num_sections"`
	Components           [][]string     `json:"connected_components"`
}

// Components returns the weakly connected components. Components are ordered
// by their earliest node and list members in insertion order.
func (g *Graph) Components() [][]string {
	pos := make(map[string]int, len(g.order))
	for i, id := range g.order {
		pos[id] = i
	}
	comp := make(map[string]int, len(g.order))
	var out [][]string
	for _, start := range g.order {
		if _, done := comp[start]; done {
			continue
		}
		c := len(out)
		comp[start] = c
		stack := []string{start}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			visit := func(id string) {
				if _, done := comp[id]; !done {
					comp[id] = c
					stack = append(stack, id)
				}
			}
			for _, i := range g.out[cur] {
				visit(g.edges[i].Target)
			}
			for _, i := range g.in[cur] {
				visit(g.edges[i].Source)
			}
		}
		out = append(out, nil)
	}
	for _, id := range g.order {
		c := comp[id]
		out[c] = append(out[c], id)
	}
	return out
}

// HierarchyDepth is the longest shortest-path distance reached by a BFS over
// hierarchy edges from any section-level node.
func (g *Graph) HierarchyDepth() int {
	depth := 0
	for _, id := range g.order {
		if g.nodes[id].Level != doctree.LevelSection {
			continue
		}
		dist := map[string]int{id: 0}
		queue := []string{id}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			depth = max(depth, dist[cur])
			for _, i := range g.out[cur] {
				e := g.edges[i]
				if e.Type != EdgeHierarchy {
					continue
				}
				if _, seen := dist[e.Target]; !seen {
					dist[e.Target] = dist[cur] + 1
					queue = append(queue, e.Target)
				}
			}
		}
	}
	return depth
}

// NodeTypes counts nodes per fragment class.
func (g *Graph) NodeTypes() map[string]int {
	counts := make(map[string]int, len(g.byClass))
	for c, ids := range g.byClass {
		counts[string(c)] = len(ids)
	}
	return counts
}

// EdgeTypes counts edges per type.
func (g *Graph) EdgeTypes() map[string]int {
	counts := make(map[string]int)
	for _, e := range g.edges {
		counts[string(e.Type)]++
	}
	return counts
}

// Analyze computes every summary statistic in one call.
func (g *Graph) Analyze() Analysis {
	a := Analysis{
		NumNodes:   g.NodeCount(),
		NumEdges:   g.EdgeCount(),
		NodeTypes:  g.NodeTypes(),
		EdgeTypes:  g.EdgeTypes(),
		Components: [][]string{},
	}
	if a.NumNodes == 0 {
		return a
	}
	a.Components = g.Components()
	a.NumComponents = len(a.Components)
	for _, c := range a.Components {
		a.LargestComponentSize = max(a.LargestComponentSize, len(c))
	}
	a.AverageDegree = 2 * float64(a.NumEdges) / float64(a.NumNodes)
	for _, id := range g.order {
		if g.nodes[id].Level == doctree.LevelSection {
			a.NumSections++
		}
	}
	a.HierarchyDepth = g.HierarchyDepth()
	return a
}
