package replace

import (
	"errors"
	"testing"

	"github.com/taigrr/treefind/internal/objects"
	"github.com/taigrr/treefind/internal/pattern"
	"github.com/taigrr/treefind/internal/types"
)

type call struct {
	handle     types.ObjectHandle
	node       types.NodeID
	cell       int
	start, end int
	text       string
}

type recordingSink struct {
	calls []call
	err   error
}

func (s *recordingSink) ReplaceRange(node types.NodeID, start, end int, text string) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, call{node: node, start: start, end: end, text: text})
	return nil
}

func (s *recordingSink) ReplaceInObject(h types.ObjectHandle, cell, start, end int, text string) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, call{handle: h, node: h.Node, cell: cell, start: start, end: end, text: text})
	return nil
}

func (s *recordingSink) ReplaceNodeName(node types.NodeID, name string) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, call{node: node, text: name})
	return nil
}

func mustCompile(t *testing.T, raw string, f pattern.Flags) *pattern.Compiled {
	t.Helper()
	p, err := pattern.Compile(raw, f)
	if err != nil {
		t.Fatalf("Compile(%q) error = %v", raw, err)
	}
	return p
}

func TestBatch_AccumulatesDelta(t *testing.T) {
	p := mustCompile(t, "foo", pattern.Flags{})
	table := types.EmbeddedObject{Kind: types.KindTable, Offset: 4, End: 5, Cells: [][]string{{"foo foo"}}}
	matches := objects.Match(1, table, p)
	if len(matches) != 2 {
		t.Fatalf("Match() returned %d matches, want 2", len(matches))
	}

	sink := &recordingSink{}
	b := New(sink, p, "f").NewBatch()

	first, err := b.Apply(matches[0])
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if first != (types.MatchSpan{Start: 0, End: 1}) {
		t.Errorf("first span = %+v, want {0 1}", first)
	}
	if got := b.Shifted(matches[1]); got != (types.MatchSpan{Start: 2, End: 5}) {
		t.Errorf("Shifted(second) = %+v, want {2 5}", got)
	}

	second, err := b.Apply(matches[1])
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if second != (types.MatchSpan{Start: 2, End: 3}) {
		t.Errorf("second span = %+v, want {2 3}", second)
	}
	if b.Delta() != -4 {
		t.Errorf("Delta() = %d, want -4", b.Delta())
	}

	if len(sink.calls) != 2 {
		t.Fatalf("sink received %d calls, want 2", len(sink.calls))
	}
	if c := sink.calls[1]; c.start != 2 || c.end != 5 || c.cell != 0 {
		t.Errorf("second call = %+v, want cell 0 range [2,5)", c)
	}
}

func TestBatch_ResetsOnNewObject(t *testing.T) {
	p := mustCompile(t, "ab", pattern.Flags{})
	code := types.EmbeddedObject{Kind: types.KindCodeBlock, Offset: 3, End: 4, Code: "ab ab"}
	anchor := types.EmbeddedObject{Kind: types.KindAnchor, Offset: 3, End: 4, Anchor: "x ab"}

	codeMatches := objects.Match(1, code, p)
	anchorMatches := objects.Match(1, anchor, p)

	sink := &recordingSink{}
	b := New(sink, p, "abcd").NewBatch()
	if _, err := b.Apply(codeMatches[0]); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// Same offset, different kind: no shared delta.
	got, err := b.Apply(anchorMatches[0])
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got.Start != 2 {
		t.Errorf("anchor replacement start = %d, want 2", got.Start)
	}
	if b.Delta() != 2 {
		t.Errorf("Delta() = %d, want 2 after reset", b.Delta())
	}
}

func TestBatch_BackwardOrderNeedsNoShift(t *testing.T) {
	p := mustCompile(t, "foo", pattern.Flags{})
	obj := types.EmbeddedObject{Kind: types.KindCodeBlock, Offset: 0, End: 1, Code: "foo foo"}
	matches := objects.Match(1, obj, p)

	sink := &recordingSink{}
	b := New(sink, p, "xxxxx").NewBatch()
	if _, err := b.Apply(matches[1]); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got, err := b.Apply(matches[0])
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != (types.MatchSpan{Start: 0, End: 5}) {
		t.Errorf("earlier match span = %+v, want {0 5}", got)
	}
}

func TestBatch_RegexGroupsUseCurrentText(t *testing.T) {
	p := mustCompile(t, `(\w)(\w+)`, pattern.Flags{UseRegex: true})
	obj := types.EmbeddedObject{Kind: types.KindCodeBlock, Code: "ab cd"}
	matches := objects.Match(1, obj, p)

	sink := &recordingSink{}
	b := New(sink, p, "$2$1$1").NewBatch()
	for _, m := range matches {
		if _, err := b.Apply(m); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	if sink.calls[0].text != "baa" || sink.calls[1].text != "dcc" {
		t.Errorf("replacements = %q, %q", sink.calls[0].text, sink.calls[1].text)
	}
	if c := sink.calls[1]; c.start != 4 || c.end != 6 {
		t.Errorf("second range = [%d,%d), want [4,6)", c.start, c.end)
	}
}

func TestBatch_SinkErrorLeavesStateUnchanged(t *testing.T) {
	p := mustCompile(t, "a", pattern.Flags{})
	obj := types.EmbeddedObject{Kind: types.KindAnchor, Anchor: "a a"}
	matches := objects.Match(1, obj, p)

	sink := &recordingSink{err: &types.ObjectMismatchError{Message: "gone"}}
	b := New(sink, p, "bbb").NewBatch()
	if _, err := b.Apply(matches[0]); err == nil {
		t.Fatal("Apply() error = nil, want mismatch")
	}
	if b.Delta() != 0 {
		t.Errorf("Delta() = %d, want 0", b.Delta())
	}
}

func TestEngine_ReplaceText(t *testing.T) {
	p := mustCompile(t, "world", pattern.Flags{})
	sink := &recordingSink{}
	e := New(sink, p, "there")

	src := "hello world"
	loc := p.FindAll(src)[0]
	end, err := e.ReplaceText(2, 6, 11, src, loc)
	if err != nil {
		t.Fatalf("ReplaceText() error = %v", err)
	}
	if end != 11 {
		t.Errorf("end = %d, want 11", end)
	}
	if c := sink.calls[0]; c.node != 2 || c.start != 6 || c.text != "there" {
		t.Errorf("call = %+v", c)
	}

	sink.err = errors.New("boom")
	if _, err := e.ReplaceText(2, 6, 11, src, loc); err == nil {
		t.Error("ReplaceText() error = nil, want sink error")
	}
}

func TestEngine_ReplaceName(t *testing.T) {
	p := mustCompile(t, "draft", pattern.Flags{})
	sink := &recordingSink{}
	e := New(sink, p, "final")

	name, changed, err := e.ReplaceName(4, "Draft plan")
	if err != nil {
		t.Fatalf("ReplaceName() error = %v", err)
	}
	if !changed || name != "final plan" {
		t.Errorf("ReplaceName() = %q, %v", name, changed)
	}

	if _, changed, _ := e.ReplaceName(4, "other"); changed {
		t.Error("ReplaceName() changed a name without matches")
	}
	if len(sink.calls) != 1 {
		t.Errorf("sink received %d calls, want 1", len(sink.calls))
	}
}
