package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/hierarchy"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/pathstore"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func text(content string, size float64) *doctree.TextData {
	return &doctree.TextData{Content: content, Fonts: []doctree.FontSpan{{Name: "F", Size: size}}}
}

// paper is one page: a heading, a paragraph citing a table and a
// bibliography entry, the table with its caption, the bibliography, and one
// malformed fragment.
func paper() []doctree.Fragment {
	return []doctree.Fragment{
		{ID: "bib", PageNumber: 1, Class: doctree.ClassReference, BBox: doctree.BBox{50, 700, 500, 720}, Text: text("[1] Smith. Graphs.", 9)},
		{ID: "tb", PageNumber: 1, Class: doctree.ClassTable, BBox: doctree.BBox{50, 220, 500, 400}, Text: text("<table><tr><td>1</td></tr></table>", 10)},
		{ID: "h1", PageNumber: 1, Class: doctree.ClassTitle, BBox: doctree.BBox{50, 50, 300, 70}, Text: text("1 Introduction", 18)},
		{ID: "tt", PageNumber: 1, Class: doctree.ClassTableTitle, BBox: doctree.BBox{50, 200, 300, 215}, Text: text("Table 1: Results", 10)},
		{ID: "p1", PageNumber: 1, Class: doctree.ClassText, BBox: doctree.BBox{50, 100, 500, 150}, Text: text("See Table 1 and [1].", 10)},
		{ID: "", PageNumber: 1, Class: doctree.ClassText, BBox: doctree.BBox{0, 0, 1, 1}},
	}
}

func fixedOptions() Options {
	opts := DefaultOptions()
	opts.Strategy = hierarchy.StrategyFixed
	return opts
}

func TestBuilder_Build(t *testing.T) {
	res := NewBuilder(fixedOptions(), quietLogger()).Build(Input{FileID: "paper.pdf", Fragments: paper()})

	assert.Equal(t, hierarchy.StrategyFixed, res.Strategy)
	require.Len(t, res.Dropped, 1)
	require.Len(t, res.Fragments, 5)
	assert.Equal(t, "h1", res.Fragments[0].ID, "fragments come back in reading order")
	assert.Equal(t, "bib", res.Fragments[4].ID)

	root := res.Tree.Node("h1")
	require.NotNil(t, root)
	assert.Equal(t, []string{"p1", "tt", "tb", "bib"}, root.Children)

	require.Len(t, res.References, 2)
	assert.Equal(t, doctree.Reference{SourceID: "p1", TargetID: "tt", Type: doctree.RefTable, Label: "1", MatchedText: "Table 1"}, res.References[0])
	assert.Equal(t, doctree.RefCitation, res.References[1].Type)
	assert.Equal(t, "bib", res.References[1].TargetID)

	require.Len(t, res.TitleLinks, 1)
	assert.Equal(t, "tb", res.TitleLinks[0].TargetID)

	a := res.Analysis
	assert.Equal(t, 5, a.NumNodes)
	assert.Equal(t, 7, a.NumEdges)
	assert.Equal(t, map[string]int{"hierarchy": 4, "reference": 1, "title": 1, "citation": 1}, a.EdgeTypes)
	assert.Equal(t, 1, a.NumComponents)
	assert.Equal(t, 1, a.NumSections)

	require.Len(t, res.Chunks, 1)
	meta := res.Chunks[0].Metadata
	assert.Equal(t, "paper.pdf", meta.FileID)
	assert.Equal(t, []string{"h1", "p1", "tt", "tb", "bib"}, meta.ContentIDs)
	assert.Contains(t, res.Chunks[0].Text, "<table>")
}

func TestBuilder_Deterministic(t *testing.T) {
	b := NewBuilder(DefaultOptions(), quietLogger())
	first, err := json.Marshal(b.Build(Input{Fragments: paper()}).Output())
	require.NoError(t, err)
	second, err := json.Marshal(b.Build(Input{Fragments: paper()}).Output())
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestBuilder_EmptyInput(t *testing.T) {
	res := NewBuilder(DefaultOptions(), nil).Build(Input{})
	assert.Zero(t, res.Analysis.NumNodes)
	assert.Empty(t, res.Chunks)

	out, err := json.Marshal(res.Output())
	require.NoError(t, err)
	for _, field := range []string{`"hierarchy":[]`, `"references":[]`, `"edges":[]`, `"chunks":[]`, `"dropped":[]`} {
		assert.Contains(t, string(out), field)
	}
}

func TestBuilder_DuplicateIDsDropped(t *testing.T) {
	frags := paper()[:5]
	frags = append(frags, doctree.Fragment{ID: "p1", PageNumber: 2, Class: doctree.ClassText, BBox: doctree.BBox{0, 0, 1, 1}})
	res := NewBuilder(fixedOptions(), quietLogger()).Build(Input{Fragments: frags})
	require.Len(t, res.Dropped, 1)
	assert.Contains(t, res.Dropped[0], "duplicate")
	assert.Len(t, res.Fragments, 5)
}

func TestNewOptions(t *testing.T) {
	b := config.DefaultBuildOptions()
	b.Strategy = "dynamic"
	b.Clusters = 4
	b.Captions = map[string]string{"algorithm": "algorithm", "table_title": "table"}
	b.TitleSources = map[string]string{"paragraph_title": "section"}
	b.ExcludeClasses = []string{"header", "footer"}
	b.OverlapBoxes = 0

	opts, err := NewOptions(b)
	require.NoError(t, err)
	assert.Equal(t, "dynamic", opts.Strategy)
	assert.Equal(t, 4, opts.Hierarchy.Clusters)
	assert.Equal(t, doctree.ClassTitle, opts.Hierarchy.TitleClass)
	assert.Equal(t, doctree.ClassAlgorithm, opts.Proximity.Captions[doctree.ClassAlgorithm])
	assert.Len(t, opts.Proximity.Captions, 2)
	assert.Equal(t, map[doctree.Class]doctree.RefType{doctree.ClassTitle: doctree.RefSection}, opts.Refs.TitleSources)
	assert.Equal(t, []doctree.Class{doctree.ClassHeader, doctree.ClassFooter}, opts.Chunking.ExcludeClasses)
	assert.Equal(t, 0, opts.Chunking.OverlapBoxes)

	defaults, err := NewOptions(config.DefaultBuildOptions())
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), defaults)
}

func TestNewOptions_Errors(t *testing.T) {
	cases := map[string]func(*config.BuildOptions){
		"title class":  func(b *config.BuildOptions) { b.TitleClass = "headline" },
		"caption":      func(b *config.BuildOptions) { b.Captions = map[string]string{"chart_title": "diagram"} },
		"ref type":     func(b *config.BuildOptions) { b.TitleSources = map[string]string{"title": "chapter"} },
		"exclude":      func(b *config.BuildOptions) { b.ExcludeClasses = []string{"margin"} },
		"bad strategy": func(b *config.BuildOptions) { b.Strategy = "magic" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			b := config.DefaultBuildOptions()
			mutate(&b)
			_, err := NewOptions(b)
			assert.Error(t, err)
		})
	}
}

type storeCall struct {
	Method string
	Path   string
	Kind   string
}

// fakeStore is a pathstore stand-in that fails the first write of failKey
// with 503. An empty failKey never fails.
func fakeStore(t *testing.T, failKey string) (*pathstore.Client, func() []storeCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []storeCall
	failed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind string `json:"kind"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, storeCall{Method: r.Method, Path: r.URL.Path, Kind: body.Kind})
		if failKey != "" && !failed && strings.HasSuffix(r.URL.Path, failKey) && r.Method == http.MethodPut {
			failed = true
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return pathstore.NewClient(srv.URL, "k"), func() []storeCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]storeCall(nil), calls...)
	}
}

func TestExporter_Export(t *testing.T) {
	old := baseDelay
	baseDelay = time.Millisecond
	t.Cleanup(func() { baseDelay = old })

	ps, calls := fakeStore(t, "/nodes/tt")
	res := NewBuilder(fixedOptions(), quietLogger()).Build(Input{Fragments: paper()})

	stats, err := NewExporter(ps, quietLogger()).Export(context.Background(), "d1", "hash", res)
	require.NoError(t, err)
	// 5 fragment nodes + hierarchy table + 1 chunk + meta
	assert.Equal(t, 8, stats.Nodes)
	assert.Equal(t, 7, stats.Links)

	got := calls()
	require.NotEmpty(t, got)
	assert.Equal(t, storeCall{Method: http.MethodDelete, Path: "/kv/documents/d1"}, got[0])

	var retried int
	kinds := map[string]int{}
	for _, c := range got {
		if c.Path == "/kv/documents/d1/nodes/tt" {
			retried++
		}
		if c.Path == "/links" {
			kinds[c.Kind]++
		}
	}
	assert.Equal(t, 2, retried, "503 is retried")
	assert.Equal(t, map[string]int{"hierarchy": 4, "reference": 1, "title": 1, "citation": 1}, kinds)
	assert.Equal(t, "/kv/documents/d1/meta", got[len(got)-1].Path)
}

func TestExporter_PermanentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	res := NewBuilder(fixedOptions(), quietLogger()).Build(Input{Fragments: paper()})
	_, err := NewExporter(pathstore.NewClient(srv.URL, "k"), quietLogger()).Export(context.Background(), "d1", "", res)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestWorker_Process(t *testing.T) {
	ps, calls := fakeStore(t, "")
	stats := NewBuildStats(time.Hour)
	w := NewWorker(NewBuilder(fixedOptions(), quietLogger()), NewExporter(ps, quietLogger()), stats, quietLogger())

	doc := docWith(paper()[:5])
	job := NewJob(doc, nil, "d9", "paper.json", "")
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 5, snap.Progress.Fragments)
	assert.Equal(t, 7, snap.Progress.LinksExported)
	require.NotNil(t, snap.Analysis)
	assert.Equal(t, 1, stats.Snapshot().Count)
	assert.NotEmpty(t, calls())
	assert.Nil(t, job.Document(), "inputs are released after processing")
}

func TestWorker_PartialAndFailed(t *testing.T) {
	w := NewWorker(NewBuilder(fixedOptions(), quietLogger()), nil, NewBuildStats(time.Hour), quietLogger())

	partial := NewJob(docWith(paper()), []byte("not a pdf"), "", "", "")
	w.Process(context.Background(), partial)
	snap := partial.Snapshot()
	assert.Equal(t, StatusPartial, snap.Status)
	assert.Len(t, snap.Progress.Errors, 2, "enrichment failure and the dropped fragment")

	empty := NewJob(docWith(nil), nil, "", "", "")
	w.Process(context.Background(), empty)
	assert.Equal(t, StatusFailed, empty.Snapshot().Status)
}

func TestOrchestrator_SubmitAndBuild(t *testing.T) {
	cfg := config.Load()
	cfg.WorkerCount = 1
	cfg.MaxQueueSize = 1
	o := NewOrchestrator(cfg, NewBuilder(fixedOptions(), quietLogger()), nil, quietLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob(docWith(paper()[:5]), nil, "", "", "")
	require.NoError(t, o.Submit(job))
	assert.Same(t, job, o.GetJob(job.ID))

	require.Eventually(t, func() bool {
		return o.GetJob(job.ID).Snapshot().Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	res := o.Build(Input{Fragments: paper()})
	assert.Equal(t, 7, res.Analysis.NumEdges)
	assert.Equal(t, 2, o.Stats().Count)
	assert.Nil(t, o.Exporter())
}

func docWith(frags []doctree.Fragment) *parser.Document {
	return &parser.Document{Fragments: frags}
}
