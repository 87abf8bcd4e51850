package hierarchy

import "github.com/dgallion1/docgraph/internal/doctree"

// FixedLevels levels title fragments by their largest font size and
// assembles the tree with a section/subsection pointer scan.
type FixedLevels struct {
	opts Options
}

func NewFixedLevels(opts Options) *FixedLevels {
	return &FixedLevels{opts: opts}
}

func (b *FixedLevels) Name() string { return StrategyFixed }

// Level classifies a single fragment.
func (b *FixedLevels) Level(f *doctree.Fragment) doctree.Level {
	if f.Class != b.opts.TitleClass || !f.HasFonts() {
		return doctree.LevelContent
	}
	max := f.Text.MaxFontSize()
	switch {
	case max > b.opts.SectionFontSize:
		return doctree.LevelSection
	case max > b.opts.SubsectionFontSize:
		return doctree.LevelSubsection
	default:
		return doctree.LevelContent
	}
}

// Build walks the fragments once. Content seen before any heading stays as
// an unparented root.
func (b *FixedLevels) Build(sorted []doctree.Fragment) *doctree.Tree {
	tree := doctree.NewTree()
	var section, subsection string

	for i := range sorted {
		f := &sorted[i]
		level := b.Level(f)
		node := headingNode(f, level)

		switch level {
		case doctree.LevelSection:
			tree.AddRoot(node)
			section = node.ID
			subsection = ""
		case doctree.LevelSubsection:
			if section != "" {
				tree.Attach(section, node)
			} else {
				tree.AddRoot(node)
			}
			subsection = node.ID
		default:
			switch {
			case subsection != "":
				tree.Attach(subsection, node)
			case section != "":
				tree.Attach(section, node)
			default:
				tree.AddRoot(node)
			}
		}
	}
	return tree
}
