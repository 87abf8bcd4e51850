package parser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Text that is not markup (see IsMarkup) is returned unchanged,
// so "a<b" or "p<0.05" in PDF text survive.
func StripHTML(s string) string {
	if !IsMarkup(s) {
		return s
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	body := findBody(doc)
	if body == nil {
		body = doc
	}
	return strings.Join(strings.Fields(textContent(body)), " ")
}

// IsMarkup reports whether s carries real HTML: a closed end tag or a void
// element of a known HTML element. A bare "<" followed by letters is not
// enough, since the tokenizer reads "a<b for all" as an open <b> tag.
func IsMarkup(s string) bool {
	if !strings.Contains(s, "<") {
		return false
	}
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return false
		case html.EndTagToken, html.StartTagToken, html.SelfClosingTagToken:
			if !strings.HasSuffix(string(z.Raw()), ">") {
				continue
			}
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == 0 {
				continue
			}
			if tt == html.EndTagToken || isVoid(a) {
				return true
			}
		}
	}
}

func isVoid(a atom.Atom) bool {
	switch a {
	case atom.Br, atom.Hr, atom.Img, atom.Wbr:
		return true
	}
	return false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			}
		}
		block := n.Type == html.ElementNode && isBlock(n.Data)
		if block {
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
		if block {
			buf.WriteByte(' ')
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "tr", "td", "th", "table", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre":
		return true
	}
	return false
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
