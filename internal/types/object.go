package types

import "strings"

// Placeholder is the rune that stands for an embedded object in a display stream.
const Placeholder = '\uFFFC'

// ObjectKind tags an embedded object.
type ObjectKind int

const (
	KindCodeBlock ObjectKind = iota + 1
	KindTable
	KindImageLink
	KindAnchor
	KindEmbeddedFile
	KindHyperlink
)

var kindNames = map[ObjectKind]string{
	KindCodeBlock:    "codebox",
	KindTable:        "table",
	KindImageLink:    "image",
	KindAnchor:       "anchor",
	KindEmbeddedFile: "file",
	KindHyperlink:    "link",
}

func (k ObjectKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseObjectKind converts a kind name back to an ObjectKind.
func ParseObjectKind(s string) (ObjectKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (k ObjectKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type (
	// EmbeddedObject is a non-text unit of a node. Only the fields of its kind are set.
	EmbeddedObject struct {
		Kind ObjectKind `json:"kind"`
		// Offset is the display offset of the placeholder, or the start of the
		// link run for hyperlinks.
		Offset int `json:"offset"`
		// End is Offset+1 for placeholder objects and the link run end for hyperlinks.
		End int `json:"end"`
		// Index is the position in the owning node's object collection.
		Index int `json:"index"`

		Code     string     `json:"code,omitempty"`
		Language string     `json:"language,omitempty"`
		Cells    [][]string `json:"cells,omitempty"`
		Link     string     `json:"link,omitempty"`
		Anchor   string     `json:"anchor,omitempty"`
		Filename string     `json:"filename,omitempty"`
	}

	// LinkRun is a span of rich text carrying a hyperlink target.
	LinkRun struct {
		Start  int    `json:"start"`
		End    int    `json:"end"`
		Target string `json:"target"`
	}

	// ObjectHandle refers to an embedded object inside its owning node.
	ObjectHandle struct {
		Node   NodeID     `json:"node"`
		Kind   ObjectKind `json:"kind"`
		Offset int        `json:"offset"`
		Index  int        `json:"index"`
	}

	// ObjectMatch is one match inside an embedded object's searchable text.
	ObjectMatch struct {
		Handle ObjectHandle
		// Cell is the table cell index, or -1.
		Cell int
		// Span is in code points of the searched text.
		Span MatchSpan
		// Source is the searched text and Loc the regexp submatch byte indices into it.
		Source string
		Loc    []int
	}
)

// OccupiesPlaceholder reports whether the object stands on a placeholder rune.
func (o EmbeddedObject) OccupiesPlaceholder() bool {
	return o.Kind != KindHyperlink
}

// Columns returns the widest row of a table.
func (o EmbeddedObject) Columns() int {
	cols := 0
	for _, row := range o.Cells {
		cols = max(cols, len(row))
	}
	return cols
}

// Handle returns a handle to the object owned by node.
func (o EmbeddedObject) Handle(node NodeID) ObjectHandle {
	return ObjectHandle{Node: node, Kind: o.Kind, Offset: o.Offset, Index: o.Index}
}

// Key identifies the object and cell a match belongs to.
func (m ObjectMatch) Key() ObjectKey {
	return ObjectKey{Kind: m.Handle.Kind, Offset: m.Handle.Offset, Cell: m.Cell}
}

// ObjectKey groups matches that share one object text.
type ObjectKey struct {
	Kind   ObjectKind
	Offset int
	Cell   int
}
