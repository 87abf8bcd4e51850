package hierarchy

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// tocSection is a prototype built from an outline entry, or a clone of one
// created when the same heading recurs.
type tocSection struct {
	title string
	level doctree.Level
	page  int
	boxes []string // header fragment first, then accumulated content
}

// TocMatcher aligns fragments to the document outline by fuzzy title match.
type TocMatcher struct {
	entries []doctree.TocEntry
	opts    Options
}

func NewTocMatcher(entries []doctree.TocEntry, opts Options) *TocMatcher {
	return &TocMatcher{entries: entries, opts: opts}
}

func (m *TocMatcher) Name() string { return StrategyTOC }

// Build walks the fragments once, switching the active section whenever a
// fragment matches an outline entry on the same page.
func (m *TocMatcher) Build(sorted []doctree.Fragment) *doctree.Tree {
	sections := make([]*tocSection, 0, len(m.entries))
	byPage := make(map[int][]*tocSection)
	add := func(s *tocSection) {
		sections = append(sections, s)
		byPage[s.page] = append(byPage[s.page], s)
	}
	for _, e := range m.entries {
		level := doctree.Level(e.Level)
		if level < doctree.LevelSection {
			level = doctree.LevelSection
		}
		add(&tocSection{title: e.Title, level: level, page: e.PageNumber})
	}

	var current *tocSection
	var orphans []string
	threshold := float64(m.opts.MatchThreshold)

	for i := range sorted {
		f := &sorted[i]
		if text := f.Content(); text != "" {
			var matched *tocSection
			for _, s := range byPage[f.PageNumber] {
				if TokenSetRatio(text, s.title) >= threshold {
					matched = s // the latest prototype on the page wins
				}
			}
			if matched != nil {
				if current != nil && current.title == matched.title && len(current.boxes) > 0 {
					clone := &tocSection{
						title: matched.title,
						level: matched.level,
						page:  f.PageNumber,
						boxes: []string{f.ID},
					}
					add(clone)
					current = clone
				} else {
					current = matched
					if !contains(current.boxes, f.ID) {
						current.boxes = append(current.boxes, f.ID)
					}
				}
				continue
			}
		}
		if current != nil {
			current.boxes = append(current.boxes, f.ID)
		} else {
			orphans = append(orphans, f.ID)
		}
	}

	return m.assemble(sorted, sections, orphans)
}

func (m *TocMatcher) assemble(sorted []doctree.Fragment, sections []*tocSection, orphans []string) *doctree.Tree {
	pos := doctree.Index(sorted)
	tree := doctree.NewTree()
	ids := make([]string, len(sections))
	key := make(map[string]float64)

	for i, s := range sections {
		n := &doctree.Node{Level: s.level, Title: s.title, Page: s.page}
		if len(s.boxes) > 0 {
			n.ID = s.boxes[0]
			n.FragmentID = s.boxes[0]
			key[n.ID] = float64(pos[n.ID])
		} else {
			n.ID = virtualID(i, s)
			key[n.ID] = pageStart(sorted, s.page) - 0.5
		}
		ids[i] = n.ID
		tree.Add(n)
	}

	parent := make(map[string]string)
	for i, s := range sections {
		for j := i - 1; j >= 0; j-- {
			p := sections[j]
			if p.page <= s.page && p.level < s.level {
				parent[ids[i]] = ids[j]
				break
			}
		}
	}

	children := make(map[string][]string)
	var roots []string
	for i := range sections {
		if p, ok := parent[ids[i]]; ok {
			children[p] = append(children[p], ids[i])
		} else {
			roots = append(roots, ids[i])
		}
	}
	for i, s := range sections {
		for _, b := range s.boxes[min(1, len(s.boxes)):] {
			f := &sorted[pos[b]]
			tree.Add(headingNode(f, doctree.LevelContent))
			key[b] = float64(pos[b])
			children[ids[i]] = append(children[ids[i]], b)
		}
	}
	for _, o := range orphans {
		tree.Add(headingNode(&sorted[pos[o]], doctree.LevelContent))
		key[o] = float64(pos[o])
		roots = append(roots, o)
	}

	byKey := func(list []string) {
		sort.SliceStable(list, func(a, b int) bool { return key[list[a]] < key[list[b]] })
	}
	for _, id := range tree.Order {
		list := children[id]
		byKey(list)
		n := tree.Node(id)
		for _, c := range list {
			tree.Node(c).ParentID = id
		}
		n.Children = append(n.Children, list...)
	}
	byKey(roots)
	tree.Roots = roots
	return tree
}

// pageStart returns the reading position of the first fragment on page or
// later, so outline entries with no matching text sort ahead of that page.
func pageStart(sorted []doctree.Fragment, page int) float64 {
	return float64(sort.Search(len(sorted), func(i int) bool {
		return sorted[i].PageNumber >= page
	}))
}

// virtualID derives a stable id for an outline entry that never matched.
func virtualID(i int, s *tocSection) string {
	name := fmt.Sprintf("toc/%d/%d/%d/%s", i, s.level, s.page, s.title)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func contains(list []string, id string) bool {
	for _, s := range list {
		if s == id {
			return true
		}
	}
	return false
}
