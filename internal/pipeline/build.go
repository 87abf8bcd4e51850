package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docgraph/internal/chunker"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/graph"
	"github.com/dgallion1/docgraph/internal/hierarchy"
	"github.com/dgallion1/docgraph/internal/metrics"
	"github.com/dgallion1/docgraph/internal/proximity"
	"github.com/dgallion1/docgraph/internal/refs"
)

// Options bundles the per-component options of one build.
type Options struct {
	Strategy  string
	Hierarchy hierarchy.Options
	Refs      refs.Options
	Proximity proximity.Options
	Chunking  chunker.Config
}

func DefaultOptions() Options {
	return Options{
		Strategy:  hierarchy.StrategyAuto,
		Hierarchy: hierarchy.DefaultOptions(),
		Refs:      refs.DefaultOptions(),
		Proximity: proximity.DefaultOptions(),
		Chunking:  chunker.DefaultConfig(),
	}
}

// NewOptions converts configured build options, resolving class and
// reference-type names. Empty maps keep the built-in tables.
func NewOptions(b config.BuildOptions) (Options, error) {
	if err := b.Validate(); err != nil {
		return Options{}, err
	}
	opts := DefaultOptions()
	opts.Strategy = b.Strategy

	title, err := doctree.ParseClass(b.TitleClass)
	if err != nil {
		return Options{}, fmt.Errorf("title_class: %w", err)
	}
	opts.Hierarchy.TitleClass = title
	opts.Hierarchy.SectionFontSize = b.SectionFontSize
	opts.Hierarchy.SubsectionFontSize = b.SubsectionFontSize
	opts.Hierarchy.Clusters = b.Clusters
	opts.Hierarchy.MatchThreshold = b.TocMatchThreshold

	opts.Proximity.MaxPageDiff = b.MaxPageDiff
	opts.Proximity.MaxBoxes = b.MaxBoxes
	if len(b.Captions) > 0 {
		captions := make(map[doctree.Class]doctree.Class, len(b.Captions))
		for from, to := range b.Captions {
			caption, err := doctree.ParseClass(from)
			if err != nil {
				return Options{}, fmt.Errorf("captions: %w", err)
			}
			target, err := doctree.ParseClass(to)
			if err != nil {
				return Options{}, fmt.Errorf("captions[%s]: %w", from, err)
			}
			captions[caption] = target
		}
		opts.Proximity.Captions = captions
	}

	if len(b.TitleSources) > 0 {
		sources := make(map[doctree.Class]doctree.RefType, len(b.TitleSources))
		for from, typ := range b.TitleSources {
			c, err := doctree.ParseClass(from)
			if err != nil {
				return Options{}, fmt.Errorf("title_sources: %w", err)
			}
			rt, err := parseRefType(typ)
			if err != nil {
				return Options{}, fmt.Errorf("title_sources[%s]: %w", from, err)
			}
			sources[c] = rt
		}
		opts.Refs.TitleSources = sources
	}

	opts.Chunking.MaxChunkSize = b.MaxChunkSize
	opts.Chunking.OverlapBoxes = b.OverlapBoxes
	opts.Chunking.ImageWeight = b.ImageWeight
	for _, name := range b.ExcludeClasses {
		c, err := doctree.ParseClass(name)
		if err != nil {
			return Options{}, fmt.Errorf("exclude_classes: %w", err)
		}
		opts.Chunking.ExcludeClasses = append(opts.Chunking.ExcludeClasses, c)
	}
	return opts, nil
}

func parseRefType(s string) (doctree.RefType, error) {
	switch rt := doctree.RefType(s); rt {
	case doctree.RefTable, doctree.RefFigure, doctree.RefEquation, doctree.RefSection, doctree.RefAlgorithm:
		return rt, nil
	}
	return "", fmt.Errorf("unknown reference type %q", s)
}

// Input is one document to build.
type Input struct {
	FileID    string
	Fragments []doctree.Fragment
	TOC       []doctree.TocEntry
}

// Result is everything one build produces.
type Result struct {
	FileID     string
	Strategy   string
	Fragments  []doctree.Fragment // valid fragments in reading order
	Dropped    []string           // why each malformed fragment was skipped
	Tree       *doctree.Tree
	References []doctree.Reference // cross-references, then citations
	TitleLinks []doctree.TitleLink
	Graph      *graph.Graph
	Chunks     []doctree.Chunk
	Analysis   graph.Analysis
	Duration   time.Duration
}

// Output is the serialisable form of a Result.
type Output struct {
	FileID     string              `json:"file_id,omitempty"`
	Strategy   string              `json:"strategy"`
	Dropped    []string            `json:"dropped"`
	Hierarchy  []doctree.FlatNode  `json:"hierarchy"`
	References []doctree.Reference `json:"references"`
	TitleLinks []doctree.TitleLink `json:"title_links"`
	Mentions   refs.Enrichment     `json:"mentions"`
	Edges      []graph.Edge        `json:"edges"`
	Chunks     []doctree.Chunk     `json:"chunks"`
	Analysis   graph.Analysis      `json:"analysis"`
}

// Output flattens the result for JSON. Nil lists become empty ones.
func (r *Result) Output() Output {
	return Output{
		FileID:     r.FileID,
		Strategy:   r.Strategy,
		Dropped:    orEmpty(r.Dropped),
		Hierarchy:  r.Tree.Flatten(),
		References: orEmpty(r.References),
		TitleLinks: orEmpty(r.TitleLinks),
		Mentions:   refs.Enrich(r.References),
		Edges:      orEmpty(r.Graph.Edges()),
		Chunks:     orEmpty(r.Chunks),
		Analysis:   r.Analysis,
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Builder runs the single-pass transform from fragments to tree, edges,
// graph and chunks.
type Builder struct {
	opts Options
	log  *slog.Logger
}

func NewBuilder(opts Options, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{opts: opts, log: log}
}

// Build processes one document. It never fails: malformed fragments are
// dropped and reported in the result.
func (b *Builder) Build(in Input) *Result {
	start := time.Now()
	log := b.log.With("file_id", in.FileID)

	valid := make([]doctree.Fragment, 0, len(in.Fragments))
	var dropped []string
	seen := make(map[string]bool, len(in.Fragments))
	for _, f := range in.Fragments {
		if err := f.Validate(); err != nil {
			dropped = append(dropped, err.Error())
			continue
		}
		if seen[f.ID] {
			dropped = append(dropped, fmt.Sprintf("fragment %s: duplicate id", f.ID))
			continue
		}
		seen[f.ID] = true
		valid = append(valid, f)
	}
	if len(dropped) > 0 {
		log.Warn("dropped malformed fragments", "count", len(dropped))
	}
	sorted := doctree.SortReadingOrder(valid)

	assigner := hierarchy.Select(b.opts.Strategy, in.TOC, b.opts.Hierarchy)
	tree := assigner.Build(sorted)
	log.Debug("hierarchy built", "strategy", assigner.Name(), "nodes", tree.Len(), "roots", len(tree.Roots))

	resolver := refs.NewResolver(sorted, b.opts.Refs)
	references := resolver.Resolve(sorted)
	references = append(references, refs.Citations(sorted)...)
	log.Debug("references resolved", "titles", resolver.Len(), "count", len(references))

	links := proximity.Link(sorted, b.opts.Proximity)
	log.Debug("captions linked", "count", len(links))

	g := graph.Build(tree, sorted, references, links)

	chunks := chunker.Assemble(chunker.Input{
		Fragments:  sorted,
		Tree:       tree,
		References: references,
	}, b.opts.Chunking)
	for i := range chunks {
		if chunks[i].Metadata.FileID == "" {
			chunks[i].Metadata.FileID = in.FileID
		}
	}

	res := &Result{
		FileID:     in.FileID,
		Strategy:   assigner.Name(),
		Fragments:  sorted,
		Dropped:    dropped,
		Tree:       tree,
		References: references,
		TitleLinks: links,
		Graph:      g,
		Chunks:     chunks,
		Analysis:   g.Analyze(),
		Duration:   time.Since(start),
	}

	metrics.ObserveBuild(metrics.BuildStats{
		Strategy:  res.Strategy,
		Duration:  res.Duration,
		Fragments: len(sorted),
		Dropped:   len(dropped),
		Chunks:    len(chunks),
		Edges:     res.Analysis.EdgeTypes,
	})
	log.Info("document built",
		"strategy", res.Strategy,
		"fragments", len(sorted),
		"edges", res.Analysis.NumEdges,
		"chunks", len(chunks),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}
