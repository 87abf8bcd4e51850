package doctree

import (
	"fmt"
	"strings"
)

// Level is a hierarchy level. The fixed thresholds use Section and Subsection;
// clustering and TOC matching produce numeric ranks where 1 is the top level.
type Level int

const (
	LevelContent    Level = 0
	LevelSection    Level = 1
	LevelSubsection Level = 2
)

func (l Level) String() string {
	switch l {
	case LevelContent:
		return "content"
	case LevelSection:
		return "section"
	case LevelSubsection:
		return "subsection"
	default:
		return fmt.Sprintf("level-%d", int(l))
	}
}

// IsHeading reports whether the level opens a section of any depth.
func (l Level) IsHeading() bool {
	return l > LevelContent
}

// Node is one entry of the reconstructed hierarchy.
type Node struct {
	ID         string   `json:"id"`
	FragmentID string   `json:"fragment_id,omitempty"` // empty for TOC entries never seen in the text
	Level      Level    `json:"level"`
	Title      string   `json:"title,omitempty"`
	Page       int      `json:"page_number"`
	ParentID   string   `json:"parent_id,omitempty"`
	Children   []string `json:"children"`
}

// Virtual reports whether the node has no backing fragment.
func (n *Node) Virtual() bool {
	return n.FragmentID == ""
}

// Tree is a forest of hierarchy nodes.
type Tree struct {
	Nodes map[string]*Node
	Order []string // creation order
	Roots []string
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{Nodes: make(map[string]*Node)}
}

// Add registers a node without linking it.
func (t *Tree) Add(n *Node) {
	if _, ok := t.Nodes[n.ID]; ok {
		return
	}
	t.Nodes[n.ID] = n
	t.Order = append(t.Order, n.ID)
}

// AddRoot registers a node as a forest root.
func (t *Tree) AddRoot(n *Node) {
	t.Add(n)
	n.ParentID = ""
	t.Roots = append(t.Roots, n.ID)
}

// Attach registers child under parent. The parent must already be present.
func (t *Tree) Attach(parentID string, child *Node) {
	parent, ok := t.Nodes[parentID]
	if !ok {
		t.AddRoot(child)
		return
	}
	t.Add(child)
	child.ParentID = parentID
	parent.Children = append(parent.Children, child.ID)
}

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id string) *Node {
	return t.Nodes[id]
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// Walk visits every node depth-first from the roots. Returning false from fn
// skips the node's subtree.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		n := t.Nodes[id]
		if n == nil || !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range t.Roots {
		visit(r, 0)
	}
}

// Ancestors returns the ids above id, nearest first.
func (t *Tree) Ancestors(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	n := t.Nodes[id]
	for n != nil && n.ParentID != "" && !seen[n.ParentID] {
		seen[n.ParentID] = true
		out = append(out, n.ParentID)
		n = t.Nodes[n.ParentID]
	}
	return out
}

// Breadcrumb returns the titles of the heading nodes above id, outermost first.
func (t *Tree) Breadcrumb(id string) []string {
	anc := t.Ancestors(id)
	var bc []string
	for i := len(anc) - 1; i >= 0; i-- {
		n := t.Nodes[anc[i]]
		if n.Level.IsHeading() && n.Title != "" {
			bc = append(bc, n.Title)
		}
	}
	return bc
}

// FlatNode is the serialisable row of the hierarchy table.
type FlatNode struct {
	ID         string   `json:"id"`
	FragmentID string   `json:"fragment_id,omitempty"`
	Level      string   `json:"level"`
	Rank       int      `json:"rank"`
	Title      string   `json:"title,omitempty"`
	ParentID   *string  `json:"parent_id"`
	Children   []string `json:"children"`
}

// Flatten returns the hierarchy as a table in creation order.
func (t *Tree) Flatten() []FlatNode {
	out := make([]FlatNode, 0, len(t.Order))
	for _, id := range t.Order {
		n := t.Nodes[id]
		row := FlatNode{
			ID:         n.ID,
			FragmentID: n.FragmentID,
			Level:      n.Level.String(),
			Rank:       int(n.Level),
			Title:      n.Title,
			Children:   append([]string{}, n.Children...),
		}
		if n.ParentID != "" {
			p := n.ParentID
			row.ParentID = &p
		}
		out = append(out, row)
	}
	return out
}

// TitleOf returns a one-line title for a heading fragment.
func TitleOf(f *Fragment) string {
	return strings.Join(strings.Fields(f.Content()), " ")
}
