package hierarchy

import (
	"sort"
	"unicode/utf8"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Assignment is a title candidate with its clustered level.
type Assignment struct {
	FragmentID string
	Page       int
	Level      doctree.Level
	Features   [3]float64 // max font size, mean font size, text length
}

// DynamicLevels levels titles by clustering their font statistics. It is the
// fallback when a document has no outline.
type DynamicLevels struct {
	opts Options
}

func NewDynamicLevels(opts Options) *DynamicLevels {
	return &DynamicLevels{opts: opts}
}

func (d *DynamicLevels) Name() string { return StrategyDynamic }

func (d *DynamicLevels) candidates(frags []doctree.Fragment) []Assignment {
	var out []Assignment
	for i := range frags {
		f := &frags[i]
		if f.Class != d.opts.TitleClass || f.Content() == "" || !f.HasFonts() {
			continue
		}
		out = append(out, Assignment{
			FragmentID: f.ID,
			Page:       f.PageNumber,
			Features: [3]float64{
				f.Text.MaxFontSize(),
				f.Text.MeanFontSize(),
				float64(utf8.RuneCountInString(f.Content())),
			},
		})
	}
	return out
}

// Assign clusters the title candidates and ranks clusters by mean max font
// size, largest first. The result is sorted by (page, level).
func (d *DynamicLevels) Assign(frags []doctree.Fragment) []Assignment {
	cands := d.candidates(frags)
	switch len(cands) {
	case 0:
		return nil
	case 1:
		cands[0].Level = doctree.LevelSection
		return cands
	}

	rows := make([][]float64, len(cands))
	for i := range cands {
		rows[i] = cands[i].Features[:]
	}
	k := d.opts.Clusters
	if k <= 0 {
		k = 3
		if len(cands) < 5 {
			k = 2
		}
	}
	if n := distinctRows(rows); k > n {
		k = n
	}
	labels := kmeans(standardize(rows), k, d.opts.Seed)

	// Rank clusters by the mean of their raw max font size.
	sums := make([]float64, k)
	counts := make([]int, k)
	for i, l := range labels {
		sums[l] += cands[i].Features[0]
		counts[l]++
	}
	order := make([]int, 0, k)
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			order = append(order, c)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sums[order[a]]/float64(counts[order[a]]) > sums[order[b]]/float64(counts[order[b]])
	})
	rank := make(map[int]doctree.Level, len(order))
	for r, c := range order {
		rank[c] = doctree.Level(r + 1)
	}
	for i := range cands {
		cands[i].Level = rank[labels[i]]
	}

	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].Page != cands[b].Page {
			return cands[a].Page < cands[b].Page
		}
		return cands[a].Level < cands[b].Level
	})
	return cands
}

// Build assembles the tree in reading order with a level stack: each heading
// closes every open heading at its level or deeper, content attaches to the
// innermost open heading.
func (d *DynamicLevels) Build(sorted []doctree.Fragment) *doctree.Tree {
	levels := make(map[string]doctree.Level)
	for _, a := range d.Assign(sorted) {
		levels[a.FragmentID] = a.Level
	}
	return stackAssemble(sorted, levels)
}

func stackAssemble(sorted []doctree.Fragment, levels map[string]doctree.Level) *doctree.Tree {
	type open struct {
		id    string
		level doctree.Level
	}
	tree := doctree.NewTree()
	var stack []open

	for i := range sorted {
		f := &sorted[i]
		level := levels[f.ID]
		node := headingNode(f, level)

		if level.IsHeading() {
			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
		}
		if len(stack) == 0 {
			tree.AddRoot(node)
		} else {
			tree.Attach(stack[len(stack)-1].id, node)
		}
		if level.IsHeading() {
			stack = append(stack, open{id: f.ID, level: level})
		}
	}
	return tree
}
