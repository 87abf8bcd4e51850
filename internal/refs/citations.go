package refs

import (
	"regexp"

	"github.com/dgallion1/docgraph/internal/doctree"
)

var (
	bibEntryRe = regexp.MustCompile(`(?m)^\s*(?:\[(\d+)\]|(\d+)\.\s)`)
	citeRe     = regexp.MustCompile(`\[(\d+(?:\s*[-–,]\s*\d+)*)\]`)
)

// Citations links numeric citation markers ("[3]", "[1, 4-6]") to the
// bibliography entries they cite. Entries are fragments of the reference
// class whose lines start with "[n]" or "n.".
func Citations(sorted []doctree.Fragment) []doctree.Reference {
	entries := make(map[string]string)
	for i := range sorted {
		f := &sorted[i]
		if f.Class != doctree.ClassReference {
			continue
		}
		for _, m := range bibEntryRe.FindAllStringSubmatch(f.Content(), -1) {
			label := m[1]
			if label == "" {
				label = m[2]
			}
			entries[label] = f.ID
		}
	}
	if len(entries) == 0 {
		return nil
	}

	var out []doctree.Reference
	for i := range sorted {
		f := &sorted[i]
		text := f.Content()
		if text == "" || f.Class == doctree.ClassReference {
			continue
		}
		seen := make(map[string]bool)
		for _, m := range citeRe.FindAllStringSubmatch(text, -1) {
			for _, label := range parseLabels(m[1]) {
				target, ok := entries[label]
				if !ok || seen[label] || target == f.ID {
					continue
				}
				seen[label] = true
				out = append(out, doctree.Reference{
					SourceID:    f.ID,
					TargetID:    target,
					Type:        doctree.RefCitation,
					Label:       label,
					MatchedText: m[0],
				})
			}
		}
	}
	return out
}
