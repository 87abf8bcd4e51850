// Package outline renders a reconstructed hierarchy as a readable document.
package outline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/parser"
)

// Markdown renders the tree depth-first. Heading nodes become ATX headings
// one level deeper than their tree depth (capped at h6); content nodes become
// paragraphs. Fragments without text are skipped.
func Markdown(tree *doctree.Tree, frags []doctree.Fragment) string {
	byID := make(map[string]*doctree.Fragment, len(frags))
	for i := range frags {
		byID[frags[i].ID] = &frags[i]
	}

	var b strings.Builder
	tree.Walk(func(n *doctree.Node, depth int) bool {
		if n.Level.IsHeading() {
			title := n.Title
			if title == "" {
				if f := byID[n.FragmentID]; f != nil {
					title = doctree.TitleOf(f)
				}
			}
			if title != "" {
				fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", min(depth+1, 6)), title)
			}
			return true
		}
		f := byID[n.FragmentID]
		if f == nil {
			return true
		}
		if text := strings.TrimSpace(parser.StripHTML(f.Content())); text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
		return true
	})
	return b.String()
}

// HTML renders the Markdown outline to HTML with goldmark.
func HTML(tree *doctree.Tree, frags []doctree.Fragment) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(Markdown(tree, frags)), &buf); err != nil {
		return "", fmt.Errorf("render outline: %w", err)
	}
	return buf.String(), nil
}
