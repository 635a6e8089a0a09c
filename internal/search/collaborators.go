package search

import (
	"time"

	"github.com/taigrr/treefind/internal/types"
)

// DocumentTree exposes the node hierarchy.
type DocumentTree interface {
	FirstNode() (types.NodeID, bool)
	LastTopLevelNode() (types.NodeID, bool)
	ParentOf(id types.NodeID) (types.NodeID, bool)
	NextSibling(id types.NodeID) (types.NodeID, bool)
	PreviousSibling(id types.NodeID) (types.NodeID, bool)
	ChildrenOf(id types.NodeID) []types.NodeID
	IsExcludedFromSearch(id types.NodeID) bool
	ChildrenExcludedFromSearch(id types.NodeID) bool
}

// NodeContent exposes the text, objects and metadata of nodes.
type NodeContent interface {
	// TextStream returns the display text of a node, with one placeholder
	// rune per embedded object.
	TextStream(id types.NodeID) (string, error)
	// EmbeddedObjects returns the objects whose offset is in [start, end),
	// ordered by offset.
	EmbeddedObjects(id types.NodeID, start, end int) []types.EmbeddedObject
	// LinkRuns returns the hyperlink runs starting in [start, end).
	LinkRuns(id types.NodeID, start, end int) []types.LinkRun
	NameOf(id types.NodeID) string
	TagsOf(id types.NodeID) []string
	CreationTime(id types.NodeID) time.Time
	ModificationTime(id types.NodeID) time.Time
	IsReadOnly(id types.NodeID) bool
}

// ProgressSink receives progress of whole-scope operations and may ask them
// to stop.
type ProgressSink interface {
	OnProgress(processed, total, matches int)
	IsCancelled() bool
}

// Observer is notified of session activity. It is used for metrics.
type Observer interface {
	OperationDone(op string, matches int, elapsed time.Duration, cancelled bool)
	NodeScanned()
	NodeSkipped(reason string)
	Replaced(kind string)
}

type nopProgress struct{}

func (nopProgress) OnProgress(int, int, int) {}
func (nopProgress) IsCancelled() bool        { return false }

type nopObserver struct{}

func (nopObserver) OperationDone(string, int, time.Duration, bool) {}
func (nopObserver) NodeScanned()                                   {}
func (nopObserver) NodeSkipped(string)                             {}
func (nopObserver) Replaced(string)                                {}
