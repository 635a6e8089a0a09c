// Package replace applies replacements at resolved match locations.
package replace

import (
	"github.com/taigrr/treefind/internal/objects"
	"github.com/taigrr/treefind/internal/offsets"
	"github.com/taigrr/treefind/internal/pattern"
	"github.com/taigrr/treefind/internal/types"
)

// MutationSink writes replacements into the document.
type MutationSink interface {
	// ReplaceRange replaces the display range [start, end) of a node's text.
	ReplaceRange(node types.NodeID, start, end int, text string) error
	// ReplaceInObject replaces [start, end) of an object's searchable text.
	// cell is the table cell index, or -1.
	ReplaceInObject(h types.ObjectHandle, cell, start, end int, text string) error
	// ReplaceNodeName renames a node.
	ReplaceNodeName(node types.NodeID, name string) error
}

// Engine performs replacements for one compiled pattern and template.
type Engine struct {
	sink     MutationSink
	pattern  *pattern.Compiled
	template string
}

// New creates an Engine.
func New(sink MutationSink, p *pattern.Compiled, template string) *Engine {
	return &Engine{sink: sink, pattern: p, template: template}
}

// Replacement returns the text that replaces one match. src is the original
// text the match was found in and loc its submatch indices in prepared form.
func (e *Engine) Replacement(src string, loc []int) string {
	return e.pattern.Expand(e.template, src, loc)
}

// ReplaceText replaces the display range [start, end) of node and returns the
// new end offset.
func (e *Engine) ReplaceText(node types.NodeID, start, end int, src string, loc []int) (int, error) {
	repl := e.Replacement(src, loc)
	if err := e.sink.ReplaceRange(node, start, end, repl); err != nil {
		return end, err
	}
	return start + offsets.RuneLen(repl), nil
}

// ReplaceName replaces every match in a node name. It reports whether the
// name changed.
func (e *Engine) ReplaceName(node types.NodeID, name string) (string, bool, error) {
	renamed, n := e.pattern.ReplaceAllIn(name, e.template)
	if n == 0 || renamed == name {
		return name, false, nil
	}
	if err := e.sink.ReplaceNodeName(node, renamed); err != nil {
		return name, false, err
	}
	return renamed, true, nil
}

// NewBatch starts a sequence of replacements inside embedded objects.
func (e *Engine) NewBatch() *Batch {
	return &Batch{engine: e}
}

type edit struct {
	end       int // code point end of the replaced match, in scan coordinates
	delta     int
	byteEnd   int // prepared byte end, in scan coordinates
	byteDelta int
}

// Batch replaces matches that were all computed by one scan of an object.
// Each match carries offsets from that scan; the batch keeps the running
// length change of earlier replacements in the same object and cell and
// shifts later matches by it. The delta resets whenever the object or cell
// changes. Objects of different kinds never share a delta, even at the same
// offset.
type Batch struct {
	engine *Engine
	node   types.NodeID
	key    types.ObjectKey
	source string
	edits  []edit
	active bool
}

// Delta returns the accumulated code point delta for the current object.
func (b *Batch) Delta() int {
	d := 0
	for _, ed := range b.edits {
		d += ed.delta
	}
	return d
}

// Shifted returns the span of m corrected for earlier replacements in the
// same object, without replacing anything.
func (b *Batch) Shifted(m types.ObjectMatch) types.MatchSpan {
	if !b.owns(m) {
		return m.Span
	}
	shift, _ := b.shift(m)
	return types.MatchSpan{Start: m.Span.Start + shift, End: m.Span.End + shift}
}

// Apply replaces m and returns the corrected local span of the inserted text.
func (b *Batch) Apply(m types.ObjectMatch) (types.MatchSpan, error) {
	if !b.owns(m) {
		b.reset(m)
	}

	shift, byteShift := b.shift(m)
	start, end := m.Span.Start+shift, m.Span.End+shift
	loc := make([]int, len(m.Loc))
	for i, v := range m.Loc {
		if v >= 0 {
			v += byteShift
		}
		loc[i] = v
	}

	repl := b.engine.Replacement(b.source, loc)
	if err := b.engine.sink.ReplaceInObject(m.Handle, m.Cell, start, end, repl); err != nil {
		return m.Span, err
	}

	replLen := offsets.RuneLen(repl)
	b.source = objects.ReplaceRange(b.source, start, end, repl)
	ed := edit{end: m.Span.End, delta: replLen - (end - start)}
	if len(m.Loc) >= 2 {
		ed.byteEnd = m.Loc[1]
		ed.byteDelta = len(b.engine.pattern.Prepare(repl)) - (m.Loc[1] - m.Loc[0])
	}
	b.edits = append(b.edits, ed)
	return types.MatchSpan{Start: start, End: start + replLen}, nil
}

func (b *Batch) owns(m types.ObjectMatch) bool {
	return b.active && b.node == m.Handle.Node && b.key == m.Key()
}

func (b *Batch) reset(m types.ObjectMatch) {
	b.node = m.Handle.Node
	b.key = m.Key()
	b.source = m.Source
	b.edits = b.edits[:0]
	b.active = true
}

// shift sums the deltas of replacements that ended at or before m started.
func (b *Batch) shift(m types.ObjectMatch) (int, int) {
	cp, bytes := 0, 0
	for _, ed := range b.edits {
		if ed.end <= m.Span.Start {
			cp += ed.delta
		}
		if len(m.Loc) > 0 && ed.byteEnd <= m.Loc[0] {
			bytes += ed.byteDelta
		}
	}
	return cp, bytes
}
