package document

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/taigrr/treefind/internal/types"
)

const ph = string(types.Placeholder)

func mustAdd(t *testing.T, tree *Tree, parent types.NodeID, name string, body *Body) types.NodeID {
	t.Helper()
	id, err := tree.Add(parent, types.NodeMeta{Name: name}, body)
	if err != nil {
		t.Fatalf("Add(%s) error = %v", name, err)
	}
	return id
}

func TestTree_Structure(t *testing.T) {
	tree := New()
	a := mustAdd(t, tree, types.NoNode, "A", &Body{})
	a1 := mustAdd(t, tree, a, "A1", &Body{})
	a2 := mustAdd(t, tree, a, "A2", &Body{})
	b := mustAdd(t, tree, types.NoNode, "B", &Body{})

	if got, _ := tree.FirstNode(); got != a {
		t.Errorf("FirstNode() = %d, want %d", got, a)
	}
	if got, _ := tree.LastTopLevelNode(); got != b {
		t.Errorf("LastTopLevelNode() = %d, want %d", got, b)
	}
	if got, ok := tree.ParentOf(a2); !ok || got != a {
		t.Errorf("ParentOf(A2) = %d, %v", got, ok)
	}
	if _, ok := tree.ParentOf(a); ok {
		t.Error("ParentOf(A) reported a parent for a top-level node")
	}
	if got, ok := tree.NextSibling(a1); !ok || got != a2 {
		t.Errorf("NextSibling(A1) = %d, %v", got, ok)
	}
	if _, ok := tree.PreviousSibling(a1); ok {
		t.Error("PreviousSibling(A1) should not exist")
	}
	if got, ok := tree.PreviousSibling(b); !ok || got != a {
		t.Errorf("PreviousSibling(B) = %d, %v", got, ok)
	}
	if got := tree.Nodes(); !slices.Equal(got, []types.NodeID{a, a1, a2, b}) {
		t.Errorf("Nodes() = %v", got)
	}
	info, _ := tree.Info(a2)
	if info.Path != "A/A2" || info.Parent != a {
		t.Errorf("Info(A2) = %+v", info)
	}

	if _, err := tree.Add(types.NoNode, types.NodeMeta{ID: a, Name: "dup"}, nil); err == nil {
		t.Error("Add() accepted a duplicate id")
	}
	if _, err := tree.Add(99, types.NodeMeta{Name: "orphan"}, nil); err == nil {
		t.Error("Add() accepted a missing parent")
	}
}

func TestTree_LazyLoad(t *testing.T) {
	calls := 0
	tree := New(WithLoader(func(id types.NodeID) (Body, error) {
		calls++
		if id == 2 {
			return Body{}, errors.New("unreadable")
		}
		return Body{Text: "loaded"}, nil
	}))
	mustAdd(t, tree, types.NoNode, "ok", nil)
	mustAdd(t, tree, types.NoNode, "bad", nil)

	for range 2 {
		got, err := tree.TextStream(1)
		if err != nil || got != "loaded" {
			t.Fatalf("TextStream(1) = %q, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	_, err := tree.TextStream(2)
	var unavailable *types.ContentUnavailableError
	if !errors.As(err, &unavailable) || unavailable.Node != 2 {
		t.Errorf("TextStream(2) error = %v, want ContentUnavailableError", err)
	}
}

func TestCompose(t *testing.T) {
	body, err := Compose("abcd", []types.EmbeddedObject{
		{Kind: types.KindCodeBlock, Offset: 4, Code: "x"},
		{Kind: types.KindAnchor, Offset: 1, Anchor: "y"},
	})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if body.Text != "a"+ph+"bc"+ph+"d" {
		t.Errorf("Text = %q", body.Text)
	}
	if body.Objects[0].Kind != types.KindAnchor || body.Objects[0].End != 2 || body.Objects[1].Index != 1 {
		t.Errorf("Objects = %+v", body.Objects)
	}

	plain, at := Decompose(body.Text)
	if plain != "abcd" || !slices.Equal(at, []int{1, 4}) {
		t.Errorf("Decompose() = %q, %v", plain, at)
	}

	if _, err := Compose("ab", []types.EmbeddedObject{{Kind: types.KindAnchor, Offset: 5}}); err == nil {
		t.Error("Compose() accepted an offset past the end")
	}
}

func TestTree_ReplaceRange(t *testing.T) {
	clock := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tree := New(WithClock(func() time.Time { return clock }))
	body, _ := Compose("hello big world", []types.EmbeddedObject{
		{Kind: types.KindAnchor, Offset: 6, Anchor: "a"},
		{Kind: types.KindCodeBlock, Offset: 16, Code: "c"},
	})
	body.Links = []types.LinkRun{{Start: 13, End: 17, Target: "webs x"}}
	n := mustAdd(t, tree, types.NoNode, "n", &body)

	// "hello ￼big world￼": replace "big" (7..10) with "huge".
	if err := tree.ReplaceRange(n, 7, 10, "huge"); err != nil {
		t.Fatalf("ReplaceRange() error = %v", err)
	}
	got, _ := tree.Body(n)
	if got.Text != "hello "+ph+"huge world"+ph {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Objects[0].Offset != 6 || got.Objects[1].Offset != 17 {
		t.Errorf("object offsets = %d, %d", got.Objects[0].Offset, got.Objects[1].Offset)
	}
	if got.Links[0].Start != 14 || got.Links[0].End != 18 {
		t.Errorf("link run = %+v", got.Links[0])
	}
	meta, _ := tree.Meta(n)
	if !meta.Modified.Equal(clock) {
		t.Errorf("Modified = %v, want %v", meta.Modified, clock)
	}
	if dirty := tree.Dirty(); !slices.Equal(dirty, []types.NodeID{n}) {
		t.Errorf("Dirty() = %v", dirty)
	}
	tree.MarkClean(n)
	if len(tree.Dirty()) != 0 {
		t.Error("MarkClean() left the node dirty")
	}

	// A range spanning a placeholder keeps the object.
	if err := tree.ReplaceRange(n, 5, 11, "-"); err != nil {
		t.Fatalf("ReplaceRange() error = %v", err)
	}
	got, _ = tree.Body(n)
	if got.Text != "hello-"+ph+" world"+ph {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Objects[0].Offset != 6 || got.Objects[1].Offset != 13 {
		t.Errorf("object offsets = %d, %d", got.Objects[0].Offset, got.Objects[1].Offset)
	}

	if err := tree.ReplaceRange(n, 5, 99, ""); err == nil {
		t.Error("ReplaceRange() accepted an out of range end")
	}
}

func TestTree_ReplaceInObject(t *testing.T) {
	tree := New()
	body, err := Compose("", []types.EmbeddedObject{
		{Kind: types.KindTable, Offset: 0, Cells: [][]string{{"a", "b"}, {"c", "dd"}}},
		{Kind: types.KindEmbeddedFile, Offset: 1, Filename: "notes.txt"},
	})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	n := mustAdd(t, tree, types.NoNode, "n", &body)
	table := types.ObjectHandle{Node: n, Kind: types.KindTable, Offset: 0}

	if err := tree.ReplaceInObject(table, 3, 0, 1, "x"); err != nil {
		t.Fatalf("ReplaceInObject() error = %v", err)
	}
	got, _ := tree.Body(n)
	if got.Objects[0].Cells[1][1] != "xd" {
		t.Errorf("cell = %q, want %q", got.Objects[0].Cells[1][1], "xd")
	}

	var mismatch *types.ObjectMismatchError
	wrongKind := types.ObjectHandle{Node: n, Kind: types.KindCodeBlock, Offset: 0}
	if err := tree.ReplaceInObject(wrongKind, -1, 0, 1, "x"); !errors.As(err, &mismatch) {
		t.Errorf("wrong kind error = %v, want ObjectMismatchError", err)
	}
	if err := tree.ReplaceInObject(table, 3, 0, 9, "x"); !errors.As(err, &mismatch) {
		t.Errorf("out of range error = %v, want ObjectMismatchError", err)
	}
	missing := types.ObjectHandle{Node: n, Kind: types.KindHyperlink, Offset: 3}
	if err := tree.ReplaceInObject(missing, -1, 0, 1, "x"); !errors.As(err, &mismatch) {
		t.Errorf("missing link error = %v, want ObjectMismatchError", err)
	}
}

func TestTree_ReadOnly(t *testing.T) {
	tree := New()
	n, err := tree.Add(types.NoNode, types.NodeMeta{Name: "locked", ReadOnly: true}, &Body{Text: "abc"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	var roErr *types.ReadOnlyError
	if err := tree.ReplaceRange(n, 0, 1, "x"); !errors.As(err, &roErr) {
		t.Errorf("ReplaceRange() error = %v, want ReadOnlyError", err)
	}
	if err := tree.ReplaceNodeName(n, "open"); !errors.As(err, &roErr) {
		t.Errorf("ReplaceNodeName() error = %v, want ReadOnlyError", err)
	}
	if len(tree.Dirty()) != 0 {
		t.Error("read-only node marked dirty")
	}
}
