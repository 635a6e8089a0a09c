package document

import (
	"fmt"
	"slices"
	"strings"

	"github.com/taigrr/treefind/internal/objects"
	"github.com/taigrr/treefind/internal/offsets"
	"github.com/taigrr/treefind/internal/types"
)

// ReplaceRange replaces the display range [start, end) of a node's text.
// Placeholders inside the range are kept, right after the inserted text, so
// their objects survive; placeholder runes in text are dropped.
func (t *Tree) ReplaceRange(id types.NodeID, start, end int, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.writable(id)
	if err != nil {
		return err
	}

	display := []rune(n.body.Text)
	if start < 0 || end < start || end > len(display) {
		return fmt.Errorf("range [%d,%d) outside node %d of length %d", start, end, id, len(display))
	}
	text = strings.ReplaceAll(text, string(types.Placeholder), "")
	inserted := offsets.RuneLen(text)

	kept := 0
	for _, r := range display[start:end] {
		if r == types.Placeholder {
			kept++
		}
	}

	var b strings.Builder
	b.WriteString(string(display[:start]))
	b.WriteString(text)
	b.WriteString(strings.Repeat(string(types.Placeholder), kept))
	b.WriteString(string(display[end:]))
	n.body.Text = b.String()

	delta := inserted + kept - (end - start)
	moved := 0
	for i := range n.body.Objects {
		obj := &n.body.Objects[i]
		switch {
		case obj.Offset >= end:
			obj.Offset += delta
		case obj.Offset >= start:
			obj.Offset = start + inserted + moved
			moved++
		default:
			continue
		}
		obj.End = obj.Offset + 1
	}

	shift := func(p int) int {
		switch {
		case p >= end:
			return p + delta
		case p > start:
			return start + inserted
		}
		return p
	}
	links := n.body.Links[:0]
	for _, run := range n.body.Links {
		run.Start, run.End = shift(run.Start), shift(run.End)
		if run.Start < run.End {
			links = append(links, run)
		}
	}
	n.body.Links = links

	t.touch(n)
	return nil
}

// ReplaceInObject replaces [start, end) of the searchable text of the object
// h refers to. The handle must still resolve to an object of the same kind.
func (t *Tree) ReplaceInObject(h types.ObjectHandle, cell, start, end int, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.writable(h.Node)
	if err != nil {
		return err
	}

	if h.Kind == types.KindHyperlink {
		i := slices.IndexFunc(n.body.Links, func(run types.LinkRun) bool { return run.Start == h.Offset })
		if i < 0 {
			return &types.ObjectMismatchError{Handle: h, Message: "no link run at offset"}
		}
		run := &n.body.Links[i]
		if err := checkRange(h, objects.DecodeLink(run.Target), start, end); err != nil {
			return err
		}
		run.Target = objects.ReplaceInLink(run.Target, start, end, text)
		t.touch(n)
		return nil
	}

	i := slices.IndexFunc(n.body.Objects, func(obj types.EmbeddedObject) bool { return obj.Offset == h.Offset })
	if i < 0 {
		return &types.ObjectMismatchError{Handle: h, Message: "no object at offset"}
	}
	obj := &n.body.Objects[i]
	if obj.Kind != h.Kind {
		return &types.ObjectMismatchError{Handle: h, Message: "object is a " + obj.Kind.String()}
	}
	current, ok := objects.SearchableText(*obj, cell)
	if !ok {
		return &types.ObjectMismatchError{Handle: h, Message: "object has no searchable text"}
	}
	if err := checkRange(h, current, start, end); err != nil {
		return err
	}

	switch obj.Kind {
	case types.KindCodeBlock:
		obj.Code = objects.ReplaceRange(obj.Code, start, end, text)
	case types.KindTable:
		cols := obj.Columns()
		row := obj.Cells[cell/cols]
		row[cell%cols] = objects.ReplaceRange(row[cell%cols], start, end, text)
	case types.KindImageLink:
		obj.Link = objects.ReplaceInLink(obj.Link, start, end, text)
	case types.KindAnchor:
		obj.Anchor = objects.ReplaceRange(obj.Anchor, start, end, text)
	case types.KindEmbeddedFile:
		obj.Filename = objects.ReplaceRange(obj.Filename, start, end, text)
	}
	t.touch(n)
	return nil
}

// ReplaceNodeName renames a node.
func (t *Tree) ReplaceNodeName(id types.NodeID, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("node %d not found", id)
	}
	if n.meta.ReadOnly {
		return &types.ReadOnlyError{Node: id, Name: n.meta.Name}
	}
	n.meta.Name = name
	t.touch(n)
	return nil
}

// SetBody replaces a node's content without marking it dirty.
func (t *Tree) SetBody(id types.NodeID, body Body) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("node %d not found", id)
	}
	n.body = &body
	return nil
}

func (t *Tree) writable(id types.NodeID) (*node, error) {
	n, err := t.loaded(id)
	if err != nil {
		return nil, err
	}
	if n.meta.ReadOnly {
		return nil, &types.ReadOnlyError{Node: id, Name: n.meta.Name}
	}
	return n, nil
}

func checkRange(h types.ObjectHandle, text string, start, end int) error {
	if start < 0 || end < start || end > offsets.RuneLen(text) {
		return &types.ObjectMismatchError{Handle: h, Message: fmt.Sprintf("range [%d,%d) outside object text", start, end)}
	}
	return nil
}

// Compose inserts a placeholder rune into plain text at the display offset of
// every object that occupies one. Objects are indexed and sorted by offset.
func Compose(plain string, objs []types.EmbeddedObject) (Body, error) {
	objs = slices.Clone(objs)
	slices.SortStableFunc(objs, func(a, b types.EmbeddedObject) int { return a.Offset - b.Offset })

	var b strings.Builder
	rs := []rune(plain)
	pos, i := 0, 0
	for k := range objs {
		obj := &objs[k]
		obj.Index = k
		if !obj.OccupiesPlaceholder() {
			continue
		}
		for pos < obj.Offset && i < len(rs) {
			b.WriteRune(rs[i])
			i++
			pos++
		}
		if pos != obj.Offset {
			return Body{}, fmt.Errorf("%s object offset %d beyond text end %d", obj.Kind, obj.Offset, pos)
		}
		b.WriteRune(types.Placeholder)
		obj.End = obj.Offset + 1
		pos++
	}
	b.WriteString(string(rs[i:]))
	return Body{Text: b.String(), Objects: objs}, nil
}

// Decompose strips placeholders from a display text. It returns the plain
// text and the display offset of each placeholder.
func Decompose(display string) (string, []int) {
	var b strings.Builder
	var at []int
	pos := 0
	for _, r := range display {
		if r == types.Placeholder {
			at = append(at, pos)
		} else {
			b.WriteRune(r)
		}
		pos++
	}
	return b.String(), at
}
