package chunker

import (
	"encoding/base64"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/parser"
)

// Config controls chunking behavior.
type Config struct {
	MaxChunkSize   int             // Upper bound on a chunk's size metric.
	OverlapBoxes   int             // Fragments carried over from the previous chunk.
	ImageWeight    int             // Decoded image bytes per size unit.
	ExcludeClasses []doctree.Class // Classes left out of every chunk.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize: 2000,
		OverlapBoxes: 1,
		ImageWeight:  100,
	}
}

// Input is one document's fragments plus optional enrichment. Tree supplies
// section paths and References the cross-reference ids.
type Input struct {
	Fragments  []doctree.Fragment // reading order
	Tree       *doctree.Tree
	References []doctree.Reference
}

// FragmentText returns the text a fragment contributes to a chunk. Tables
// keep their HTML; everything else is stripped to plain text.
func FragmentText(f *doctree.Fragment) string {
	text := strings.TrimSpace(f.Content())
	if text == "" || f.Class == doctree.ClassTable {
		return text
	}
	return parser.StripHTML(text)
}

// FragmentSize is the size metric of one fragment: text length in runes,
// plus decoded image bytes divided by ImageWeight for image classes.
func FragmentSize(f *doctree.Fragment, cfg Config) int {
	size := utf8.RuneCountInString(FragmentText(f))
	if f.Class.IsImage() && f.Image != "" {
		n := base64.StdEncoding.DecodedLen(len(f.Image))
		if raw, err := base64.StdEncoding.DecodeString(f.Image); err == nil {
			n = len(raw)
		}
		weight := cfg.ImageWeight
		if weight <= 0 {
			weight = 100
		}
		size += max(1, n/weight)
	}
	return size
}

// Assemble groups fragments into chunks in one greedy pass. A chunk is
// closed when the next fragment would push it past MaxChunkSize; the next
// chunk starts with the last OverlapBoxes fragments, trimmed from the front
// until the incoming fragment fits. A fragment larger than the limit gets a
// chunk of its own.
func Assemble(in Input, cfg Config) []doctree.Chunk {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 2000
	}
	if cfg.OverlapBoxes < 0 {
		cfg.OverlapBoxes = 0
	}

	var frags []*doctree.Fragment
	var sizes []int
	for i := range in.Fragments {
		f := &in.Fragments[i]
		if slices.Contains(cfg.ExcludeClasses, f.Class) {
			continue
		}
		frags = append(frags, f)
		sizes = append(sizes, FragmentSize(f, cfg))
	}

	var groups [][]int
	var cur []int
	curSize := 0
	for i := range frags {
		s := sizes[i]
		if len(cur) > 0 && curSize+s > cfg.MaxChunkSize {
			groups = append(groups, cur)
			seeds := cur[max(0, len(cur)-cfg.OverlapBoxes):]
			seedSize := sum(sizes, seeds)
			for len(seeds) > 0 && seedSize+s > cfg.MaxChunkSize {
				seedSize -= sizes[seeds[0]]
				seeds = seeds[1:]
			}
			cur = append([]int(nil), seeds...)
			curSize = seedSize
		}
		cur = append(cur, i)
		curSize += s
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}

	to, by := referenceMaps(in.References)
	chunks := make([]doctree.Chunk, 0, len(groups))
	for n, g := range groups {
		chunks = append(chunks, buildChunk(n, g, frags, sizes, in.Tree, to, by))
	}
	linkOverlaps(chunks)
	return chunks
}

func buildChunk(index int, group []int, frags []*doctree.Fragment, sizes []int, tree *doctree.Tree, to, by map[string][]string) doctree.Chunk {
	var texts []string
	meta := doctree.ChunkMetadata{
		PageNumbers: []int{},
		ContentIDs:  make([]string, 0, len(group)),
		References: doctree.ChunkReferences{
			ReferencesTo: []string{},
			ReferencedBy: []string{},
			PrevChunkIDs: []string{},
			NextChunkIDs: []string{},
		},
	}
	size := 0
	for _, i := range group {
		f := frags[i]
		if t := FragmentText(f); t != "" {
			texts = append(texts, t)
		}
		size += sizes[i]
		meta.ContentIDs = append(meta.ContentIDs, f.ID)
		if !slices.Contains(meta.PageNumbers, f.PageNumber) {
			meta.PageNumbers = append(meta.PageNumbers, f.PageNumber)
		}
		for _, id := range to[f.ID] {
			meta.References.ReferencesTo = appendUnique(meta.References.ReferencesTo, id)
		}
		for _, id := range by[f.ID] {
			meta.References.ReferencedBy = appendUnique(meta.References.ReferencedBy, id)
		}
	}
	slices.Sort(meta.PageNumbers)
	first := frags[group[0]]
	meta.FileID = first.FileID
	if tree != nil {
		meta.SectionPath = tree.Breadcrumb(first.ID)
	}

	text := strings.Join(texts, "\n\n")
	return doctree.Chunk{
		Index:    index,
		Text:     text,
		Size:     size,
		Tokens:   EstimateTokens(text),
		Metadata: meta,
	}
}

// linkOverlaps records, for each adjacent pair, the fragment ids both share.
func linkOverlaps(chunks []doctree.Chunk) {
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Metadata.ContentIDs
		var shared []string
		for _, id := range chunks[i].Metadata.ContentIDs {
			if slices.Contains(prev, id) {
				shared = append(shared, id)
			}
		}
		if len(shared) == 0 {
			continue
		}
		chunks[i].Metadata.References.PrevChunkIDs = shared
		chunks[i-1].Metadata.References.NextChunkIDs = slices.Clone(shared)
	}
}

func referenceMaps(refs []doctree.Reference) (to, by map[string][]string) {
	to = make(map[string][]string)
	by = make(map[string][]string)
	for _, r := range refs {
		to[r.SourceID] = appendUnique(to[r.SourceID], r.TargetID)
		by[r.TargetID] = appendUnique(by[r.TargetID], r.SourceID)
	}
	return to, by
}

func appendUnique(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(list, id)
}

func sum(sizes []int, idx []int) int {
	total := 0
	for _, i := range idx {
		total += sizes[i]
	}
	return total
}
