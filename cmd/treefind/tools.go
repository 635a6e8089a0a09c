package main

import "github.com/modelcontextprotocol/go-sdk/mcp"

type (
	// SearchInput contains parameters for starting a find or replace.
	SearchInput struct {
		Session     string `json:"session,omitempty" jsonschema:"Session id returned by an earlier call; omit to open a new session"`
		Pattern     string `json:"pattern" jsonschema:"Text to find (plain text, or a regex if useRegex=true)"`
		Replacement string `json:"replacement,omitempty" jsonschema:"Replacement text; with useRegex, $1 or \\1 insert capture groups"`

		UseRegex           bool `json:"useRegex,omitempty" jsonschema:"Treat pattern as a regex (default: false)"`
		CaseSensitive      bool `json:"caseSensitive,omitempty" jsonschema:"Case sensitive matching (default: false)"`
		AccentInsensitive  bool `json:"accentInsensitive,omitempty" jsonschema:"Ignore accents, so e matches é (default: false)"`
		WholeWord          bool `json:"wholeWord,omitempty" jsonschema:"Only match whole words (default: false)"`
		StartWord          bool `json:"startWord,omitempty" jsonschema:"Only match at the start of a word (default: false)"`
		OverrideExclusions bool `json:"overrideExclusions,omitempty" jsonschema:"Also search nodes excluded from search (default: false)"`

		Backward bool   `json:"backward,omitempty" jsonschema:"Search backward through the notebook (default: false)"`
		Scope    string `json:"scope,omitempty" jsonschema:"For find and replace: first-from-selection (default), first-in-range, or all"`

		SelectedNodeOnly bool `json:"selectedNodeOnly,omitempty" jsonschema:"Search only the content of the selected node"`
		Subtree          bool `json:"subtree,omitempty" jsonschema:"Search only the selected node and its descendants"`
		Names            bool `json:"names,omitempty" jsonschema:"Search node names and tags"`
		Content          bool `json:"content,omitempty" jsonschema:"Search node content (default when names is not set)"`

		Node  int64 `json:"node,omitempty" jsonschema:"Selected node id; the search starts from the selection"`
		Start int   `json:"start,omitempty" jsonschema:"Selection start offset in the node text"`
		End   int   `json:"end,omitempty" jsonschema:"Selection end offset in the node text"`

		CreatedAfter   string `json:"createdAfter,omitempty" jsonschema:"Only nodes created at or after this RFC 3339 time"`
		CreatedBefore  string `json:"createdBefore,omitempty" jsonschema:"Only nodes created at or before this RFC 3339 time"`
		ModifiedAfter  string `json:"modifiedAfter,omitempty" jsonschema:"Only nodes modified at or after this RFC 3339 time"`
		ModifiedBefore string `json:"modifiedBefore,omitempty" jsonschema:"Only nodes modified at or before this RFC 3339 time"`

		Limit  int `json:"limit,omitempty" jsonschema:"Maximum matches listed for find_all and replace_all (default: 50)"`
		Offset int `json:"offset,omitempty" jsonschema:"Skip first N listed matches for pagination (default: 0)"`
	}

	// SessionInput identifies a search session.
	SessionInput struct {
		Session string `json:"session" jsonschema:"Session id returned by find, replace, find_all or replace_all"`
	}

	// ObjectOutput locates a match inside an embedded object.
	ObjectOutput struct {
		Kind   string `json:"kind"`
		Offset int    `json:"offset"`
		Cell   int    `json:"cell"`
		Start  int    `json:"start"`
		End    int    `json:"end"`
	}

	// Match is one reported match.
	Match struct {
		Node        int64         `json:"node"`
		Name        string        `json:"name"`
		Path        string        `json:"path"`
		URI         string        `json:"uri,omitempty"`
		Start       int           `json:"start"`
		End         int           `json:"end"`
		Line        int           `json:"line"`
		LineContent string        `json:"lineContent"`
		InName      bool          `json:"inName,omitempty"`
		Replaced    bool          `json:"replaced,omitempty"`
		Object      *ObjectOutput `json:"object,omitempty"`
	}

	// SearchOutput contains the result of a search operation.
	SearchOutput struct {
		Session   string   `json:"session"`
		State     string   `json:"state"`
		Found     bool     `json:"found"`
		Count     int      `json:"count"`
		Match     *Match   `json:"match,omitempty"`
		Matches   []Match  `json:"matches,omitempty"`
		HasMore   bool     `json:"hasMore,omitempty"`
		Cancelled bool     `json:"cancelled,omitempty"`
		Skipped   []string `json:"skipped,omitempty"`
		Saved     int      `json:"saved,omitempty"`
	}

	// ResetInput contains parameters for resetting a session.
	ResetInput struct {
		Session string `json:"session" jsonschema:"Session id to reset"`
		Close   bool   `json:"close,omitempty" jsonschema:"Discard the session instead of keeping it idle (default: false)"`
	}

	// ResetOutput contains the result of resetting a session.
	ResetOutput struct {
		Session string `json:"session"`
		Closed  bool   `json:"closed,omitempty"`
	}

	// ReadNodeInput contains parameters for reading a node.
	ReadNodeInput struct {
		Node   int64  `json:"node,omitempty" jsonschema:"Node id"`
		URI    string `json:"uri,omitempty" jsonschema:"Node URI, as returned in matches; used when node is not set"`
		Offset int    `json:"offset,omitempty" jsonschema:"Line offset to start reading from (default: 0)"`
		Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of lines to return (default: all)"`
	}

	// NodeObject describes an embedded object of a node.
	NodeObject struct {
		Kind   string `json:"kind"`
		Offset int    `json:"offset"`
		End    int    `json:"end,omitempty"`
		Text   string `json:"text"`
	}

	// ReadNodeOutput contains the result of reading a node.
	ReadNodeOutput struct {
		Node       NodeOutput   `json:"node"`
		Content    string       `json:"content"`
		Objects    []NodeObject `json:"objects,omitempty"`
		TotalLines int          `json:"totalLines"`
		Truncated  bool         `json:"truncated,omitempty"`
	}

	// ListNodesInput contains parameters for listing nodes.
	ListNodesInput struct {
		Under  int64 `json:"under,omitempty" jsonschema:"Only list descendants of this node id"`
		Limit  int   `json:"limit,omitempty" jsonschema:"Maximum nodes to return (default: 100)"`
		Offset int   `json:"offset,omitempty" jsonschema:"Skip first N nodes for pagination (default: 0)"`
	}

	// NodeOutput is a listing entry for a node.
	NodeOutput struct {
		ID       int64    `json:"id"`
		Name     string   `json:"name"`
		Path     string   `json:"path"`
		URI      string   `json:"uri,omitempty"`
		Parent   int64    `json:"parent,omitempty"`
		Children int      `json:"children"`
		Tags     []string `json:"tags,omitempty"`
		ReadOnly bool     `json:"readOnly,omitempty"`
		Excluded bool     `json:"excluded,omitempty"`
		Created  string   `json:"created,omitempty"`
		Modified string   `json:"modified,omitempty"`
	}

	// ListNodesOutput contains the nodes of the notebook in document order.
	ListNodesOutput struct {
		Nodes   []NodeOutput `json:"nodes"`
		Total   int          `json:"total"`
		HasMore bool         `json:"hasMore,omitempty"`
	}

	// TagsInput contains parameters for listing all tags.
	TagsInput struct{}

	// TagInfo represents a tag with its occurrence count.
	TagInfo struct {
		Tag   string `json:"tag"`
		Count int    `json:"count"`
	}

	// TagsOutput contains all unique tags in the notebook with counts.
	TagsOutput struct {
		Tags          []TagInfo `json:"tags"`
		TotalTags     int       `json:"totalTags"`
		TotalNodes    int       `json:"totalNodes"`
		NodesWithTags int       `json:"nodesWithTags"`
	}
)

func (a *app) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "find",
		Description: "Start a search and report the first match after the selection, across node content, embedded code blocks, tables, images, anchors, files and link targets. Returns a session id for find_again, find_back and replace_again. With scope=all, lists every match.",
	}, a.handleFind)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_all",
		Description: "Start a search and list every match in scope. Supports pagination with offset/limit.",
	}, a.handleFindAll)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "replace",
		Description: "Start a search and replace the first match, beginning at the selection so a selected match is replaced. Changes are saved to the notebook files.",
	}, a.handleReplace)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "replace_all",
		Description: "Replace every match in scope, including inside embedded objects and node names. Read-only nodes are listed but not changed. Changes are saved to the notebook files.",
	}, a.handleReplaceAll)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_again",
		Description: "Report the next match of a session's search in its direction.",
	}, a.handleFindAgain)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_back",
		Description: "Report the next match of a session's search in the opposite direction.",
	}, a.handleFindBack)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "replace_again",
		Description: "Replace the next match of a session's search. After find, the match it reported is replaced first.",
	}, a.handleReplaceAgain)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reset_session",
		Description: "Forget a session's search, or close the session with close=true.",
	}, a.handleResetSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_node",
		Description: "Read the text of a node by id or URI. Embedded objects appear as U+FFFC in the text and are listed separately. Supports pagination with offset/limit over lines.",
	}, a.handleReadNode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_nodes",
		Description: "List notebook nodes in document order with ids, paths and URIs.",
	}, a.handleListNodes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tags",
		Description: "List all unique node tags with occurrence counts.",
	}, a.handleTags)
}
