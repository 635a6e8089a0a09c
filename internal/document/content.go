package document

import (
	"slices"
	"time"

	"github.com/taigrr/treefind/internal/types"
)

// FirstNode returns the first top-level node.
func (t *Tree) FirstNode() (types.NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.roots) == 0 {
		return types.NoNode, false
	}
	return t.roots[0], true
}

// LastTopLevelNode returns the last top-level node.
func (t *Tree) LastTopLevelNode() (types.NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.roots) == 0 {
		return types.NoNode, false
	}
	return t.roots[len(t.roots)-1], true
}

func (t *Tree) ParentOf(id types.NodeID) (types.NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok || n.parent == types.NoNode {
		return types.NoNode, false
	}
	return n.parent, true
}

func (t *Tree) NextSibling(id types.NodeID) (types.NodeID, bool) {
	return t.sibling(id, 1)
}

func (t *Tree) PreviousSibling(id types.NodeID) (types.NodeID, bool) {
	return t.sibling(id, -1)
}

func (t *Tree) sibling(id types.NodeID, step int) (types.NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return types.NoNode, false
	}
	siblings := t.roots
	if n.parent != types.NoNode {
		siblings = t.nodes[n.parent].children
	}
	i := slices.Index(siblings, id) + step
	if i < 0 || i >= len(siblings) {
		return types.NoNode, false
	}
	return siblings[i], true
}

func (t *Tree) ChildrenOf(id types.NodeID) []types.NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n, ok := t.nodes[id]; ok {
		return slices.Clone(n.children)
	}
	return nil
}

func (t *Tree) IsExcludedFromSearch(id types.NodeID) bool {
	meta, _ := t.Meta(id)
	return meta.Excluded
}

func (t *Tree) ChildrenExcludedFromSearch(id types.NodeID) bool {
	meta, _ := t.Meta(id)
	return meta.ExcludeChildren
}

// TextStream returns a node's display text, loading the body if needed.
func (t *Tree) TextStream(id types.NodeID) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.loaded(id)
	if err != nil {
		return "", err
	}
	return n.body.Text, nil
}

// EmbeddedObjects returns the objects with an offset in [start, end).
func (t *Tree) EmbeddedObjects(id types.NodeID, start, end int) []types.EmbeddedObject {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.loaded(id)
	if err != nil {
		return nil
	}
	var out []types.EmbeddedObject
	for _, obj := range n.body.Objects {
		if obj.Offset >= start && obj.Offset < end {
			out = append(out, obj)
		}
	}
	return out
}

// LinkRuns returns the hyperlink runs starting in [start, end).
func (t *Tree) LinkRuns(id types.NodeID, start, end int) []types.LinkRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.loaded(id)
	if err != nil {
		return nil
	}
	var out []types.LinkRun
	for _, run := range n.body.Links {
		if run.Start >= start && run.Start < end {
			out = append(out, run)
		}
	}
	return out
}

func (t *Tree) NameOf(id types.NodeID) string {
	meta, _ := t.Meta(id)
	return meta.Name
}

func (t *Tree) TagsOf(id types.NodeID) []string {
	meta, _ := t.Meta(id)
	return meta.Tags
}

func (t *Tree) CreationTime(id types.NodeID) time.Time {
	meta, _ := t.Meta(id)
	return meta.Created
}

func (t *Tree) ModificationTime(id types.NodeID) time.Time {
	meta, _ := t.Meta(id)
	return meta.Modified
}

func (t *Tree) IsReadOnly(id types.NodeID) bool {
	meta, _ := t.Meta(id)
	return meta.ReadOnly
}
