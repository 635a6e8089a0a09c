package search

import (
	"iter"

	"github.com/taigrr/treefind/internal/types"
)

// Walker visits nodes in pre-order: a node, then its children, then its
// next sibling, climbing to the parent's sibling when a level runs out.
// A backward walk mirrors the tree, taking the last child and the previous
// sibling instead. Walks restricted to a subtree stop at its root.
type Walker struct {
	tree     DocumentTree
	dir      types.Direction
	root     types.NodeID
	override bool
	single   bool
	next     types.NodeID
}

// NewWalker starts a walk at start. root bounds the walk to a subtree; pass
// types.NoNode to walk the whole tree. Children of nodes that exclude them
// are skipped unless override is set.
func NewWalker(tree DocumentTree, start, root types.NodeID, dir types.Direction, override bool) *Walker {
	return &Walker{tree: tree, dir: dir, root: root, override: override, next: start}
}

// SingleNode returns a walker that visits only n.
func SingleNode(n types.NodeID) *Walker {
	return &Walker{next: n, single: true}
}

// Next returns the next node, or false once the walk is done.
func (w *Walker) Next() (types.NodeID, bool) {
	n := w.next
	if n == types.NoNode {
		return n, false
	}
	if w.single {
		w.next = types.NoNode
	} else {
		w.next = w.advance(n)
	}
	return n, true
}

// All returns the remaining nodes as a sequence.
func (w *Walker) All() iter.Seq[types.NodeID] {
	return func(yield func(types.NodeID) bool) {
		for n, ok := w.Next(); ok; n, ok = w.Next() {
			if !yield(n) {
				return
			}
		}
	}
}

func (w *Walker) advance(n types.NodeID) types.NodeID {
	if w.override || !w.tree.ChildrenExcludedFromSearch(n) {
		if kids := w.tree.ChildrenOf(n); len(kids) > 0 {
			if w.dir == types.Forward {
				return kids[0]
			}
			return kids[len(kids)-1]
		}
	}
	for cur := n; cur != w.root; {
		if sib, ok := w.sibling(cur); ok {
			return sib
		}
		parent, ok := w.tree.ParentOf(cur)
		if !ok {
			break
		}
		cur = parent
	}
	return types.NoNode
}

func (w *Walker) sibling(n types.NodeID) (types.NodeID, bool) {
	if w.dir == types.Forward {
		return w.tree.NextSibling(n)
	}
	return w.tree.PreviousSibling(n)
}

// CountNodes returns how many nodes a forward walk over the scope visits.
func CountNodes(tree DocumentTree, root types.NodeID, override bool) int {
	start := root
	if start == types.NoNode {
		first, ok := tree.FirstNode()
		if !ok {
			return 0
		}
		start = first
	}
	n := 0
	for range NewWalker(tree, start, root, types.Forward, override).All() {
		n++
	}
	return n
}
