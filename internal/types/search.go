package types

import "time"

// Direction is the order in which nodes and matches are visited.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Forward {
		return Backward
	}
	return Forward
}

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// ScopeMode selects which matches a search reports.
type ScopeMode int

const (
	// AllListMatches collects every match in scope.
	AllListMatches ScopeMode = iota
	// FirstFromSelection reports the first match after the current selection.
	FirstFromSelection
	// FirstInRange reports the first match of the whole scope, ignoring the selection.
	FirstInRange
)

func (m ScopeMode) String() string {
	switch m {
	case AllListMatches:
		return "all"
	case FirstFromSelection:
		return "first-from-selection"
	case FirstInRange:
		return "first-in-range"
	}
	return "unknown"
}

// Target selects the set of nodes a search walks.
type Target int

const (
	// TargetSelectedNode searches only the selected node's content.
	TargetSelectedNode Target = iota
	// TargetAllNodes walks the tree, or the selected subtree when OnlySelectedSubtree is set.
	TargetAllNodes
)

type (
	// TimeFilter is an optional bound on a node timestamp.
	TimeFilter struct {
		On   bool      `json:"on"`
		Time time.Time `json:"time"`
	}

	// SearchOptions contains everything a caller configures for one search invocation.
	SearchOptions struct {
		Pattern     string `json:"pattern"`
		Replacement string `json:"replacement,omitempty"`

		CaseSensitive      bool `json:"caseSensitive,omitempty"`
		UseRegex           bool `json:"useRegex,omitempty"`
		AccentInsensitive  bool `json:"accentInsensitive,omitempty"`
		WholeWord          bool `json:"wholeWord,omitempty"`
		StartWord          bool `json:"startWord,omitempty"`
		OverrideExclusions bool `json:"overrideExclusions,omitempty"`

		Direction Direction `json:"direction"`
		Scope     ScopeMode `json:"scope"`

		// SearchContent and SearchNameAndTags select the node scope. When both are
		// false, content is searched.
		SearchContent     bool `json:"searchContent,omitempty"`
		SearchNameAndTags bool `json:"searchNameAndTags,omitempty"`

		OnlySelectedSubtree bool `json:"onlySelectedSubtree,omitempty"`

		CreatedAfter   TimeFilter `json:"createdAfter"`
		CreatedBefore  TimeFilter `json:"createdBefore"`
		ModifiedAfter  TimeFilter `json:"modifiedAfter"`
		ModifiedBefore TimeFilter `json:"modifiedBefore"`
	}

	// Selection is the caller's current node and selected display range.
	// Start == End is a plain cursor.
	Selection struct {
		Node  NodeID `json:"node"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	}

	// MatchSpan is a half-open code-point range.
	MatchSpan struct {
		Start int `json:"start"`
		End   int `json:"end"`
	}

	// ObjectLocation locates a match inside an embedded object.
	ObjectLocation struct {
		Kind   ObjectKind `json:"kind"`
		Offset int        `json:"offset"`
		Cell   int        `json:"cell"`
		Start  int        `json:"start"`
		End    int        `json:"end"`
	}

	// MatchRecord is one reported match.
	MatchRecord struct {
		NodeID      NodeID          `json:"nodeId"`
		NodeName    string          `json:"nodeName"`
		NodePath    string          `json:"nodePath"`
		Start       int             `json:"start"`
		End         int             `json:"end"`
		Line        int             `json:"line"`
		LineContent string          `json:"lineContent"`
		InName      bool            `json:"inName,omitempty"`
		Object      *ObjectLocation `json:"object,omitempty"`
		Replaced    bool            `json:"replaced,omitempty"`
	}
)

// Content reports whether node content is in scope.
func (o SearchOptions) Content() bool {
	return o.SearchContent || !o.SearchNameAndTags
}

// WithinTimeFilter reports whether a node with the given timestamps passes
// every enabled time filter.
func (o SearchOptions) WithinTimeFilter(created, modified time.Time) bool {
	if o.CreatedAfter.On && created.Before(o.CreatedAfter.Time) {
		return false
	}
	if o.CreatedBefore.On && created.After(o.CreatedBefore.Time) {
		return false
	}
	if o.ModifiedAfter.On && modified.Before(o.ModifiedAfter.Time) {
		return false
	}
	if o.ModifiedBefore.On && modified.After(o.ModifiedBefore.Time) {
		return false
	}
	return true
}
