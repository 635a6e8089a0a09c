// Package document keeps a document tree in memory and implements the
// collaborators the search engine reads from and writes to.
package document

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/taigrr/treefind/internal/types"
)

// Body is the searchable content of a node.
type Body struct {
	// Text is the display text, one placeholder rune per embedded object.
	Text string
	// Objects are sorted by offset.
	Objects []types.EmbeddedObject
	Links   []types.LinkRun
}

// Loader fetches a node body on first use.
type Loader func(id types.NodeID) (Body, error)

type node struct {
	meta     types.NodeMeta
	body     *Body
	parent   types.NodeID
	children []types.NodeID
	dirty    bool
}

// Tree is an in-memory document tree. It is safe for concurrent use.
type Tree struct {
	mu     sync.RWMutex
	nodes  map[types.NodeID]*node
	roots  []types.NodeID
	loader Loader
	nextID types.NodeID
	now    func() time.Time
}

// Option configures a Tree.
type Option func(*Tree)

// WithLoader sets the loader used for nodes added without a body.
func WithLoader(l Loader) Option {
	return func(t *Tree) { t.loader = l }
}

// WithClock sets the clock used to stamp modification times.
func WithClock(now func() time.Time) Option {
	return func(t *Tree) { t.now = now }
}

// New creates an empty Tree.
func New(opts ...Option) *Tree {
	t := &Tree{
		nodes: make(map[types.NodeID]*node),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Add appends a node as the last child of parent, or as the last top-level
// node when parent is types.NoNode. A zero meta.ID is assigned. A nil body
// is fetched from the loader when first needed.
func (t *Tree) Add(parent types.NodeID, meta types.NodeMeta, body *Body) (types.NodeID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if meta.ID == types.NoNode {
		t.nextID++
		for t.nodes[t.nextID] != nil {
			t.nextID++
		}
		meta.ID = t.nextID
	} else if _, exists := t.nodes[meta.ID]; exists {
		return types.NoNode, fmt.Errorf("duplicate node id %d", meta.ID)
	}
	t.nextID = max(t.nextID, meta.ID)

	if parent != types.NoNode {
		p, ok := t.nodes[parent]
		if !ok {
			return types.NoNode, fmt.Errorf("parent node %d not found", parent)
		}
		p.children = append(p.children, meta.ID)
	} else {
		t.roots = append(t.roots, meta.ID)
	}

	n := &node{meta: meta, parent: parent}
	if body != nil {
		b := *body
		n.body = &b
	}
	t.nodes[meta.ID] = n
	return meta.ID, nil
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Nodes returns every node id in document order.
func (t *Tree) Nodes() []types.NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []types.NodeID
	var visit func(ids []types.NodeID)
	visit = func(ids []types.NodeID) {
		for _, id := range ids {
			out = append(out, id)
			visit(t.nodes[id].children)
		}
	}
	visit(t.roots)
	return out
}

// Meta returns a node's metadata.
func (t *Tree) Meta(id types.NodeID) (types.NodeMeta, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return types.NodeMeta{}, false
	}
	return n.meta, true
}

// Info returns the listing entry of a node. The path joins ancestor names
// with "/".
func (t *Tree) Info(id types.NodeID) (types.NodeInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return types.NodeInfo{}, false
	}
	path := n.meta.Name
	for p := n.parent; p != types.NoNode; p = t.nodes[p].parent {
		path = t.nodes[p].meta.Name + "/" + path
	}
	return types.NodeInfo{
		NodeMeta: n.meta,
		Path:     path,
		Parent:   n.parent,
		Children: len(n.children),
	}, true
}

// Body returns a node's content, loading it if needed.
func (t *Tree) Body(id types.NodeID) (Body, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.loaded(id)
	if err != nil {
		return Body{}, err
	}
	b := *n.body
	b.Objects = slices.Clone(b.Objects)
	b.Links = slices.Clone(b.Links)
	return b, nil
}

// Dirty returns the nodes changed since they were last marked clean.
func (t *Tree) Dirty() []types.NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []types.NodeID
	for id, n := range t.nodes {
		if n.dirty {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// MarkClean clears the dirty flag of the given nodes.
func (t *Tree) MarkClean(ids ...types.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if n, ok := t.nodes[id]; ok {
			n.dirty = false
		}
	}
}

// loaded returns the node with its body present. The write lock must be held.
func (t *Tree) loaded(id types.NodeID) (*node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, &types.ContentUnavailableError{Node: id, Err: fmt.Errorf("node not found")}
	}
	if n.body != nil {
		return n, nil
	}
	if t.loader == nil {
		n.body = &Body{}
		return n, nil
	}
	b, err := t.loader(id)
	if err != nil {
		return nil, &types.ContentUnavailableError{Node: id, Err: err}
	}
	n.body = &b
	return n, nil
}

func (t *Tree) touch(n *node) {
	n.dirty = true
	n.meta.Modified = t.now()
}
