package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/hierarchy"
)

func frag(id string, class doctree.Class, page int, top float64) doctree.Fragment {
	return doctree.Fragment{ID: id, Class: class, PageNumber: page, BBox: doctree.BBox{0, top, 100, top + 10}}
}

func withFont(f doctree.Fragment, size float64, text string) doctree.Fragment {
	f.Text = &doctree.TextData{Content: text, Fonts: []doctree.FontSpan{{Name: "F", Size: size}}}
	return f
}

func twoPageDoc() []doctree.Fragment {
	return doctree.SortReadingOrder([]doctree.Fragment{
		withFont(frag("t1", doctree.ClassTitle, 0, 10), 18, "Introduction"),
		withFont(frag("t2", doctree.ClassTitle, 0, 50), 15, "Methods"),
		withFont(frag("p1", doctree.ClassText, 0, 100), 10, "one"),
		withFont(frag("p2", doctree.ClassText, 0, 150), 10, "two"),
		withFont(frag("p3", doctree.ClassText, 0, 200), 10, "three"),
		withFont(frag("t3", doctree.ClassTitle, 1, 10), 15, "Results"),
		withFont(frag("p4", doctree.ClassText, 1, 50), 10, "four"),
		withFont(frag("p5", doctree.ClassText, 1, 100), 10, "five"),
		withFont(frag("p6", doctree.ClassText, 1, 150), 10, "six"),
		withFont(frag("p7", doctree.ClassText, 1, 200), 10, "seven"),
	})
}

func TestBuild_TwoPageDocumentDepth(t *testing.T) {
	frags := twoPageDoc()
	tree := hierarchy.NewFixedLevels(hierarchy.DefaultOptions()).Build(frags)
	g := Build(tree, frags, nil, nil)

	assert.Equal(t, 10, g.NodeCount())
	assert.Equal(t, 9, g.EdgeCount())
	assert.Equal(t, 2, g.HierarchyDepth())
	assert.Equal(t, []string{"t1"}, g.Roots())

	a := g.Analyze()
	assert.Equal(t, 1, a.NumComponents)
	assert.Equal(t, 10, a.LargestComponentSize)
	assert.Equal(t, 1, a.NumSections)
	assert.InDelta(t, 1.8, a.AverageDegree, 1e-9)
	assert.Equal(t, map[string]int{"title": 3, "text": 7}, a.NodeTypes)
}

func TestAddEdge_ParallelEdgesPersist(t *testing.T) {
	g := New()
	require.True(t, g.AddNode(frag("a", doctree.ClassText, 0, 0), doctree.LevelContent))
	require.True(t, g.AddNode(frag("b", doctree.ClassText, 0, 20), doctree.LevelContent))

	assert.True(t, g.AddEdge("a", "b", EdgeHierarchy, nil))
	assert.True(t, g.AddEdge("a", "b", EdgeReference, map[string]any{"label": "1"}))
	assert.True(t, g.AddEdge("a", "b", EdgeReference, nil))

	assert.Equal(t, 3, g.EdgeCount())
	assert.Len(t, g.OutEdges("a"), 3)
	assert.Len(t, g.InEdges("b"), 3)
	assert.Len(t, g.EdgesOfType(EdgeReference), 2)
}

func TestAddEdge_UnknownEndpointIsSkipped(t *testing.T) {
	g := New()
	g.AddNode(frag("a", doctree.ClassText, 0, 0), doctree.LevelContent)

	assert.False(t, g.AddEdge("a", "ghost", EdgeReference, nil))
	assert.False(t, g.AddEdge("ghost", "a", EdgeReference, nil))
	assert.Zero(t, g.EdgeCount())
}

func TestAddNode_MalformedAndDuplicate(t *testing.T) {
	g := New()
	bad := frag("bad", doctree.ClassText, 0, 0)
	bad.BBox = doctree.BBox{1, 2, 3}

	assert.False(t, g.AddNode(bad, doctree.LevelContent))
	assert.True(t, g.AddNode(frag("a", doctree.ClassText, 0, 0), doctree.LevelContent))
	assert.False(t, g.AddNode(frag("a", doctree.ClassTable, 0, 0), doctree.LevelContent))
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, doctree.ClassText, g.Node("a").Fragment.Class)
}

func chain() *Graph {
	g := New()
	for i, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(frag(id, doctree.ClassText, 0, float64(i*20)), doctree.LevelContent)
	}
	g.AddEdge("a", "b", EdgeHierarchy, nil)
	g.AddEdge("b", "c", EdgeReference, nil)
	g.AddEdge("a", "c", EdgeTitle, nil)
	return g
}

func TestFindPath(t *testing.T) {
	g := chain()
	assert.Equal(t, []string{"a", "c"}, g.FindPath("a", "c"))
	assert.Equal(t, []string{"b", "c"}, g.FindPath("b", "c"))
	assert.Equal(t, []string{"a"}, g.FindPath("a", "a"))
	assert.Nil(t, g.FindPath("c", "a"), "edges are directed")
	assert.Nil(t, g.FindPath("a", "d"))
	assert.Nil(t, g.FindPath("a", "ghost"))
}

func TestComponentsAreWeak(t *testing.T) {
	g := chain()
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}}, g.Components())
}

func TestSubgraphAndRoots(t *testing.T) {
	g := chain()
	sub := g.Subgraph([]string{"b", "c", "ghost"})
	assert.Equal(t, 2, sub.NodeCount())
	assert.Equal(t, 1, sub.EdgeCount())
	assert.Equal(t, []string{"a", "c", "d"}, g.Roots())
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.NodesOfClass(doctree.ClassText))
}

func TestAnalyze_Empty(t *testing.T) {
	a := New().Analyze()
	assert.Zero(t, a.NumNodes)
	assert.Zero(t, a.HierarchyDepth)
	assert.Empty(t, a.Components)
}

func TestBuild_VirtualNodesAndTypedEdges(t *testing.T) {
	frags := []doctree.Fragment{
		frag("h", doctree.ClassTitle, 0, 0),
		frag("cap", doctree.ClassTableTitle, 0, 20),
		frag("tbl", doctree.ClassTable, 0, 40),
		frag("p", doctree.ClassText, 0, 80),
		frag("bib", doctree.ClassReference, 1, 0),
	}
	tree := doctree.NewTree()
	tree.AddRoot(&doctree.Node{ID: "v", Level: doctree.LevelSection, Title: "Part I"})
	tree.Attach("v", &doctree.Node{ID: "h", FragmentID: "h", Level: doctree.Level(2)})
	for _, id := range []string{"cap", "tbl", "p", "bib"} {
		tree.Attach("h", &doctree.Node{ID: id, FragmentID: id})
	}
	refs := []doctree.Reference{
		{SourceID: "p", TargetID: "cap", Type: doctree.RefTable, Label: "1", MatchedText: "Table 1"},
		{SourceID: "p", TargetID: "bib", Type: doctree.RefCitation, Label: "4", MatchedText: "[4]"},
		{SourceID: "p", TargetID: "ghost", Type: doctree.RefTable, Label: "9"},
	}
	links := []doctree.TitleLink{{CaptionID: "cap", TargetID: "tbl", SpatialDistance: 20}}

	g := Build(tree, frags, refs, links)

	assert.Equal(t, 5, g.NodeCount(), "virtual tree nodes are not graph nodes")
	assert.Equal(t, doctree.Level(2), g.Node("h").Level)
	assert.Len(t, g.EdgesOfType(EdgeHierarchy), 4)
	assert.Len(t, g.EdgesOfType(EdgeTitle), 1)
	assert.Len(t, g.EdgesOfType(EdgeReference), 1)
	assert.Len(t, g.EdgesOfType(EdgeCitation), 1)
	assert.Equal(t, "Table 1", g.EdgesOfType(EdgeReference)[0].Attrs["ref_text"])
	assert.Equal(t, []string{"h"}, g.Roots())
}

type recordingSink struct {
	nodes []string
	links []string
	fail  error
}

func (s *recordingSink) PutNode(_ context.Context, key string, value any) error {
	if s.fail != nil {
		return s.fail
	}
	s.nodes = append(s.nodes, key)
	return nil
}

func (s *recordingSink) PutLink(_ context.Context, from, to, kind string, _ map[string]any) error {
	s.links = append(s.links, kind+":"+from+"->"+to)
	return nil
}

func TestExport(t *testing.T) {
	g := chain()
	sink := &recordingSink{}
	require.NoError(t, g.Export(context.Background(), sink, "documents/doc1"))

	assert.Equal(t, []string{
		"documents/doc1/nodes/a", "documents/doc1/nodes/b",
		"documents/doc1/nodes/c", "documents/doc1/nodes/d",
	}, sink.nodes)
	assert.Equal(t, "hierarchy:documents/doc1/nodes/a->documents/doc1/nodes/b", sink.links[0])
	assert.Len(t, sink.links, 3)

	boom := errors.New("boom")
	err := g.Export(context.Background(), &recordingSink{fail: boom}, "x")
	assert.ErrorIs(t, err, boom)
}

func TestExport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, chain().Export(ctx, &recordingSink{}, "x"), context.Canceled)
}

func TestNodeRecord(t *testing.T) {
	f := withFont(frag("a", doctree.ClassTitle, 2, 0), 18, "Intro")
	f.Image = "aGVsbG8="
	r := (&Node{Fragment: f, Level: doctree.LevelSection}).Record()
	assert.Equal(t, "section", r.Level)
	assert.Equal(t, "Intro", r.Text)
	assert.True(t, r.HasImage)
	assert.Len(t, r.Fonts, 1)
}
