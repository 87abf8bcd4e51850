package hierarchy

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// differ runs without a deadline so every diff is minimal and the equal
// runs add up to the longest common subsequence.
var differ = func() *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return dmp
}()

// normalize folds width, case and punctuation so that "CHAPTER 1." and
// "Chapter 1" compare equal.
func normalize(s string) string {
	s = folder.String(norm.NFKC.String(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, s)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

func sortedJoin(set map[string]struct{}) string {
	toks := make([]string, 0, len(set))
	for t := range set {
		toks = append(toks, t)
	}
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

// ratio is the normalised indel similarity of two strings in [0, 100]:
// twice the common subsequence length over the combined length. A
// substitution costs a deletion plus an insertion.
func ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*commonRunes(a, b)) / float64(total)
}

func commonRunes(a, b string) int {
	n := 0
	for _, d := range differ.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			n += utf8.RuneCountInString(d.Text)
		}
	}
	return n
}

// TokenSetRatio scores two strings by comparing their shared tokens against
// each side's remainder. Word order and duplicates do not matter, and a
// string whose tokens are a subset of the other's scores 100.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(normalize(a)), tokenSet(normalize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := make(map[string]struct{})
	onlyA := make(map[string]struct{})
	onlyB := make(map[string]struct{})
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter[t] = struct{}{}
		} else {
			onlyA[t] = struct{}{}
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB[t] = struct{}{}
		}
	}
	if len(inter) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sect := sortedJoin(inter)
	diffA := sortedJoin(onlyA)
	diffB := sortedJoin(onlyB)
	combA, combB := diffA, diffB
	if sect != "" {
		combA = sect + " " + diffA
		combB = sect + " " + diffB
	}

	best := ratio(combA, combB)
	if sect != "" {
		best = max(best, ratio(sect, combA), ratio(sect, combB))
	}
	return best
}
