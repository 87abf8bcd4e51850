package refs

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// maxRangeLabels caps how many labels one range like "Figs. 1-9" expands to.
const maxRangeLabels = 50

const (
	num     = `\(?\d+(?:\.\d+)*[a-z]?\)?`
	sep     = `\s*(?:,\s*and|,|and|&|-|–|to)\s*`
	numList = `(` + num + `(?:` + sep + num + `)*)`
)

// family is one reference type's compiled pattern. Group 1 is the label list.
type family struct {
	typ doctree.RefType
	re  *regexp.Regexp
}

// families are declared in priority order; at a shared offset the earlier
// family wins.
var families = []family{
	{doctree.RefTable, regexp.MustCompile(`(?i)\b(?:tables?|tabs?\.)\s*` + numList)},
	{doctree.RefFigure, regexp.MustCompile(`(?i)\b(?:figures?|figs?\.)\s*` + numList)},
	{doctree.RefEquation, regexp.MustCompile(`(?i)\b(?:equations?|eqs?\.)\s*` + numList)},
	{doctree.RefSection, regexp.MustCompile(`(?i)(?:\b(?:sections?|secs?\.)\s*|§§?\s*)` + numList)},
	{doctree.RefAlgorithm, regexp.MustCompile(`(?i)\b(?:algorithms?|algs?\.)\s*` + numList)},
}

var (
	labelRe         = regexp.MustCompile(`\d+(?:\.\d+)*[a-zA-Z]?`)
	trailingNumber  = regexp.MustCompile(`\((\d+(?:\.\d+)*[a-zA-Z]?)\)\s*$`)
	headingNumberRe = regexp.MustCompile(`^\s*(?:(?i:section|chapter)\s+)?(\d+(?:\.\d+)*)\.?\s+\S`)
)

// mention is one accepted pattern hit.
type mention struct {
	typ    doctree.RefType
	text   string
	labels []string
	start  int
	end    int
}

// scan finds every reference mention in text. Hits are ordered by offset and
// hits overlapping an already accepted one are dropped.
func scan(text string) []mention {
	var hits []mention
	for _, fam := range families {
		for _, loc := range fam.re.FindAllStringSubmatchIndex(text, -1) {
			hits = append(hits, mention{
				typ:    fam.typ,
				text:   text[loc[0]:loc[1]],
				labels: parseLabels(text[loc[2]:loc[3]]),
				start:  loc[0],
				end:    loc[1],
			})
		}
	}
	// Stable: families were appended in priority order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	out := hits[:0]
	end := -1
	for _, h := range hits {
		if h.start < end {
			continue
		}
		out = append(out, h)
		end = h.end
	}
	return out
}

// parseLabels splits a label list like "(1)-(3), 5 and 7a" into labels,
// expanding integer ranges.
func parseLabels(list string) []string {
	locs := labelRe.FindAllStringIndex(list, -1)
	var out []string
	for i, loc := range locs {
		label := strings.ToLower(list[loc[0]:loc[1]])
		if i > 0 && isRangeSep(list[locs[i-1][1]:loc[0]]) {
			if expanded, ok := expandRange(out[len(out)-1], label); ok {
				out = append(out, expanded...)
				continue
			}
		}
		out = append(out, label)
	}
	return out
}

func isRangeSep(s string) bool {
	s = strings.Trim(s, " ()\t")
	return s == "-" || s == "–" || strings.EqualFold(s, "to")
}

// expandRange returns the labels after lo up to and including hi.
func expandRange(lo, hi string) ([]string, bool) {
	a, err := strconv.Atoi(lo)
	if err != nil {
		return nil, false
	}
	b, err := strconv.Atoi(hi)
	if err != nil || b <= a || b-a >= maxRangeLabels {
		return nil, false
	}
	out := make([]string, 0, b-a)
	for n := a + 1; n <= b; n++ {
		out = append(out, strconv.Itoa(n))
	}
	return out, true
}

// captionLabel extracts the label a caption fragment defines for typ.
func captionLabel(typ doctree.RefType, text string) (string, bool) {
	switch typ {
	case doctree.RefEquation:
		if m := trailingNumber.FindStringSubmatch(text); m != nil {
			return strings.ToLower(m[1]), true
		}
	case doctree.RefSection:
		if m := headingNumberRe.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	for _, fam := range families {
		if fam.typ != typ {
			continue
		}
		m := fam.re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		if labels := parseLabels(m[1]); len(labels) > 0 {
			return labels[0], true
		}
	}
	return "", false
}
