package doctree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Class is the layout-detector category of a fragment.
type Class string

// The 17 detector classes, declared in detector id order (0..16).
const (
	ClassTitle         Class = "title"
	ClassPicture       Class = "picture"
	ClassText          Class = "text"
	ClassNumber        Class = "number"
	ClassAbstract      Class = "abstract"
	ClassContent       Class = "content"
	ClassChartTitle    Class = "chart_title"
	ClassFormula       Class = "formula"
	ClassTable         Class = "table"
	ClassTableTitle    Class = "table_title"
	ClassReference     Class = "reference"
	ClassDocumentTitle Class = "document_title"
	ClassFootnote      Class = "footnote"
	ClassHeader        Class = "header"
	ClassAlgorithm     Class = "algorithm"
	ClassFooter        Class = "footer"
	ClassSeal          Class = "seal"
)

var classByID = []Class{
	ClassTitle, ClassPicture, ClassText, ClassNumber, ClassAbstract, ClassContent,
	ClassChartTitle, ClassFormula, ClassTable, ClassTableTitle, ClassReference,
	ClassDocumentTitle, ClassFootnote, ClassHeader, ClassAlgorithm, ClassFooter, ClassSeal,
}

// ClassFromID maps a detector class id to its Class.
func ClassFromID(id int) (Class, error) {
	if id < 0 || id >= len(classByID) {
		return "", fmt.Errorf("unknown class id %d", id)
	}
	return classByID[id], nil
}

// ParseClass maps a class name or detector label to its Class.
func ParseClass(s string) (Class, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "paragraph_title" {
		return ClassTitle, nil
	}
	for _, c := range classByID {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown class %q", s)
}

// ID returns the detector class id, or -1 for unknown classes.
func (c Class) ID() int {
	for i, k := range classByID {
		if k == c {
			return i
		}
	}
	return -1
}

// IsImage reports whether fragments of this class are carried as image crops.
func (c Class) IsImage() bool {
	switch c {
	case ClassPicture, ClassTable, ClassAlgorithm, ClassFormula, ClassSeal:
		return true
	}
	return false
}

func (c *Class) UnmarshalJSON(data []byte) error {
	var id int
	if err := json.Unmarshal(data, &id); err == nil {
		parsed, err := ClassFromID(id)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("class must be a name or id: %w", err)
	}
	parsed, err := ParseClass(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c *Class) UnmarshalText(text []byte) error {
	parsed, err := ParseClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
