package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/taigrr/treefind/internal/search"
	"github.com/taigrr/treefind/internal/types"
	"github.com/taigrr/treefind/internal/uri"
)

const (
	defaultMatchLimit = 50
	defaultNodeLimit  = 100
)

type (
	startFunc  func(*search.Session, context.Context, search.Request) (search.Result, error)
	repeatFunc func(*search.Session, context.Context) (search.Result, error)
)

func (a *app) handleFind(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	return a.startSearch(ctx, req, input, (*search.Session).Find, false)
}

func (a *app) handleFindAll(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	return a.startSearch(ctx, req, input, (*search.Session).FindAll, false)
}

func (a *app) handleReplace(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	return a.startSearch(ctx, req, input, (*search.Session).Replace, true)
}

func (a *app) handleReplaceAll(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	return a.startSearch(ctx, req, input, (*search.Session).ReplaceAll, true)
}

func (a *app) handleFindAgain(ctx context.Context, req *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, SearchOutput, error) {
	return a.repeatSearch(ctx, req, input, (*search.Session).FindAgain, false)
}

func (a *app) handleFindBack(ctx context.Context, req *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, SearchOutput, error) {
	return a.repeatSearch(ctx, req, input, (*search.Session).FindBack, false)
}

func (a *app) handleReplaceAgain(ctx context.Context, req *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, SearchOutput, error) {
	return a.repeatSearch(ctx, req, input, (*search.Session).ReplaceAgain, true)
}

func (a *app) startSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput, run startFunc, mutates bool) (*mcp.CallToolResult, SearchOutput, error) {
	sreq, err := a.buildRequest(input)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, SearchOutput{}, err
	}
	id, e, err := a.acquireSession(input.Session)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, SearchOutput{}, err
	}
	defer e.mu.Unlock()

	unbind := e.progress.bind(ctx, req)
	res, err := run(e.session, ctx, sreq)
	unbind()
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, SearchOutput{Session: id}, err
	}
	return a.searchOutput(id, e.session, res, mutates, input.Limit, input.Offset)
}

func (a *app) repeatSearch(ctx context.Context, req *mcp.CallToolRequest, input SessionInput, run repeatFunc, mutates bool) (*mcp.CallToolResult, SearchOutput, error) {
	id := strings.TrimSpace(input.Session)
	if id == "" {
		return &mcp.CallToolResult{IsError: true}, SearchOutput{}, fmt.Errorf("session cannot be empty")
	}
	_, e, err := a.acquireSession(id)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, SearchOutput{}, err
	}
	defer e.mu.Unlock()

	unbind := e.progress.bind(ctx, req)
	res, err := run(e.session, ctx)
	unbind()
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, SearchOutput{Session: id}, err
	}
	return a.searchOutput(id, e.session, res, mutates, 0, 0)
}

func (a *app) searchOutput(id string, s *search.Session, res search.Result, mutates bool, limit, offset int) (*mcp.CallToolResult, SearchOutput, error) {
	out := SearchOutput{
		Session:   id,
		State:     s.State().String(),
		Found:     res.Found,
		Count:     res.Count,
		Cancelled: res.Cancelled,
	}
	if res.Record != nil {
		m := a.toMatch(*res.Record)
		out.Match = &m
	}

	if limit <= 0 {
		limit = defaultMatchLimit
	}
	offset = max(offset, 0)
	if offset < len(res.Records) {
		end := min(offset+limit, len(res.Records))
		for _, rec := range res.Records[offset:end] {
			out.Matches = append(out.Matches, a.toMatch(rec))
		}
		out.HasMore = end < len(res.Records)
	}

	for _, err := range res.Skipped {
		out.Skipped = append(out.Skipped, err.Error())
	}

	if mutates && (res.Found || res.Count > 0) {
		saved, err := a.fs.Save()
		out.Saved = saved
		if err != nil {
			a.logger.Error("failed to save notebook", zap.Error(err))
			return &mcp.CallToolResult{IsError: true}, out, fmt.Errorf("replaced in memory but saving failed: %w", err)
		}
	}
	return nil, out, nil
}

func (a *app) buildRequest(input SearchInput) (search.Request, error) {
	if input.Pattern == "" {
		return search.Request{}, fmt.Errorf("pattern cannot be empty")
	}

	opts := types.SearchOptions{
		Pattern:             input.Pattern,
		Replacement:         input.Replacement,
		CaseSensitive:       input.CaseSensitive,
		UseRegex:            input.UseRegex,
		AccentInsensitive:   input.AccentInsensitive,
		WholeWord:           input.WholeWord,
		StartWord:           input.StartWord,
		OverrideExclusions:  input.OverrideExclusions,
		SearchContent:       input.Content,
		SearchNameAndTags:   input.Names,
		OnlySelectedSubtree: input.Subtree,
	}
	a.cfg.Search.Apply(&opts)
	if input.Backward {
		opts.Direction = types.Backward
	}

	scope, err := parseScope(input.Scope)
	if err != nil {
		return search.Request{}, err
	}
	opts.Scope = scope

	filters := []struct {
		raw string
		dst *types.TimeFilter
	}{
		{input.CreatedAfter, &opts.CreatedAfter},
		{input.CreatedBefore, &opts.CreatedBefore},
		{input.ModifiedAfter, &opts.ModifiedAfter},
		{input.ModifiedBefore, &opts.ModifiedBefore},
	}
	for _, f := range filters {
		if *f.dst, err = parseTimeFilter(f.raw); err != nil {
			return search.Request{}, err
		}
	}

	target := types.TargetAllNodes
	if input.SelectedNodeOnly {
		target = types.TargetSelectedNode
	}

	sel := types.Selection{Node: types.NodeID(input.Node), Start: input.Start, End: input.End}
	if sel.Node != types.NoNode {
		if _, ok := a.fs.Tree().Meta(sel.Node); !ok {
			return search.Request{}, fmt.Errorf("node %d not found", sel.Node)
		}
		if sel.Start < 0 || sel.End < sel.Start {
			return search.Request{}, fmt.Errorf("invalid selection %d..%d", sel.Start, sel.End)
		}
	}

	return search.Request{Options: opts, Target: target, Selection: sel}, nil
}

func parseScope(s string) (types.ScopeMode, error) {
	switch strings.TrimSpace(s) {
	case "", "first-from-selection":
		return types.FirstFromSelection, nil
	case "first-in-range":
		return types.FirstInRange, nil
	case "all":
		return types.AllListMatches, nil
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

func parseTimeFilter(s string) (types.TimeFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.TimeFilter{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return types.TimeFilter{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return types.TimeFilter{On: true, Time: t}, nil
}

func (a *app) toMatch(rec types.MatchRecord) Match {
	m := Match{
		Node:        int64(rec.NodeID),
		Name:        rec.NodeName,
		Path:        rec.NodePath,
		URI:         a.fs.URI(rec.NodeID),
		Start:       rec.Start,
		End:         rec.End,
		Line:        rec.Line,
		LineContent: rec.LineContent,
		InName:      rec.InName,
		Replaced:    rec.Replaced,
	}
	if loc := rec.Object; loc != nil {
		m.Object = &ObjectOutput{
			Kind:   loc.Kind.String(),
			Offset: loc.Offset,
			Cell:   loc.Cell,
			Start:  loc.Start,
			End:    loc.End,
		}
	}
	return m
}

func (a *app) handleResetSession(ctx context.Context, req *mcp.CallToolRequest, input ResetInput) (*mcp.CallToolResult, ResetOutput, error) {
	id := strings.TrimSpace(input.Session)
	if id == "" {
		return &mcp.CallToolResult{IsError: true}, ResetOutput{}, fmt.Errorf("session cannot be empty")
	}
	if input.Close {
		if !a.closeSession(id) {
			return &mcp.CallToolResult{IsError: true}, ResetOutput{}, fmt.Errorf("unknown session %q", id)
		}
		return nil, ResetOutput{Session: id, Closed: true}, nil
	}

	_, e, err := a.acquireSession(id)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, ResetOutput{}, err
	}
	defer e.mu.Unlock()
	e.session.Reset()
	return nil, ResetOutput{Session: id}, nil
}

func (a *app) handleReadNode(ctx context.Context, req *mcp.CallToolRequest, input ReadNodeInput) (*mcp.CallToolResult, ReadNodeOutput, error) {
	id := types.NodeID(input.Node)
	if id == types.NoNode {
		raw := strings.TrimSpace(input.URI)
		if raw == "" {
			return &mcp.CallToolResult{IsError: true}, ReadNodeOutput{}, fmt.Errorf("node or uri is required")
		}
		var err error
		if _, id, err = uri.ParseNodeURI(raw); err != nil {
			return &mcp.CallToolResult{IsError: true}, ReadNodeOutput{}, err
		}
		if id == types.NoNode {
			return &mcp.CallToolResult{IsError: true}, ReadNodeOutput{}, fmt.Errorf("uri %q has no node id", raw)
		}
	}

	info, ok := a.fs.Info(id)
	if !ok {
		return &mcp.CallToolResult{IsError: true}, ReadNodeOutput{}, fmt.Errorf("node %d not found", id)
	}
	tree := a.fs.Tree()
	text, err := tree.TextStream(id)
	if err != nil {
		var unavailable *types.ContentUnavailableError
		if errors.As(err, &unavailable) {
			a.logger.Warn("node content unavailable", zap.Int64("node", int64(id)), zap.Error(err))
		}
		return &mcp.CallToolResult{IsError: true}, ReadNodeOutput{}, err
	}

	out := ReadNodeOutput{Node: toNodeOutput(info)}
	size := utf8.RuneCountInString(text)
	for _, obj := range tree.EmbeddedObjects(id, 0, size) {
		out.Objects = append(out.Objects, NodeObject{Kind: obj.Kind.String(), Offset: obj.Offset, Text: describeObject(obj)})
	}
	for _, run := range tree.LinkRuns(id, 0, size) {
		out.Objects = append(out.Objects, NodeObject{Kind: types.KindHyperlink.String(), Offset: run.Start, End: run.End, Text: run.Target})
	}

	lines := strings.Split(text, "\n")
	out.TotalLines = len(lines)

	offset := max(input.Offset, 0)
	if offset >= len(lines) {
		out.Truncated = true
		return nil, out, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = len(lines)
	}
	end := offset + limit
	if end >= len(lines) {
		end = len(lines)
	} else {
		out.Truncated = true
	}
	out.Content = strings.Join(lines[offset:end], "\n")
	return nil, out, nil
}

func describeObject(obj types.EmbeddedObject) string {
	switch obj.Kind {
	case types.KindCodeBlock:
		return obj.Code
	case types.KindTable:
		rows := make([]string, 0, len(obj.Cells))
		for _, row := range obj.Cells {
			rows = append(rows, strings.Join(row, " | "))
		}
		return strings.Join(rows, "\n")
	case types.KindImageLink:
		return obj.Link
	case types.KindAnchor:
		return obj.Anchor
	case types.KindEmbeddedFile:
		return obj.Filename
	}
	return ""
}

func (a *app) handleListNodes(ctx context.Context, req *mcp.CallToolRequest, input ListNodesInput) (*mcp.CallToolResult, ListNodesOutput, error) {
	tree := a.fs.Tree()
	ids := tree.Nodes()

	if under := types.NodeID(input.Under); under != types.NoNode {
		if _, ok := tree.Meta(under); !ok {
			return &mcp.CallToolResult{IsError: true}, ListNodesOutput{}, fmt.Errorf("node %d not found", under)
		}
		var below []types.NodeID
		for _, id := range ids {
			if isDescendant(tree.ParentOf, id, under) {
				below = append(below, id)
			}
		}
		ids = below
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultNodeLimit
	}
	offset := max(input.Offset, 0)

	out := ListNodesOutput{Nodes: []NodeOutput{}, Total: len(ids)}
	if offset < len(ids) {
		end := min(offset+limit, len(ids))
		for _, id := range ids[offset:end] {
			if info, ok := a.fs.Info(id); ok {
				out.Nodes = append(out.Nodes, toNodeOutput(info))
			}
		}
		out.HasMore = end < len(ids)
	}
	return nil, out, nil
}

func isDescendant(parentOf func(types.NodeID) (types.NodeID, bool), id, ancestor types.NodeID) bool {
	for p, ok := parentOf(id); ok; p, ok = parentOf(p) {
		if p == ancestor {
			return true
		}
	}
	return false
}

func toNodeOutput(info types.NodeInfo) NodeOutput {
	out := NodeOutput{
		ID:       int64(info.ID),
		Name:     info.Name,
		Path:     info.Path,
		URI:      info.URI,
		Parent:   int64(info.Parent),
		Children: info.Children,
		Tags:     info.Tags,
		ReadOnly: info.ReadOnly,
		Excluded: info.Excluded,
	}
	if !info.Created.IsZero() {
		out.Created = info.Created.Format(time.RFC3339)
	}
	if !info.Modified.IsZero() {
		out.Modified = info.Modified.Format(time.RFC3339)
	}
	return out
}

func (a *app) handleTags(ctx context.Context, req *mcp.CallToolRequest, input TagsInput) (*mcp.CallToolResult, TagsOutput, error) {
	tree := a.fs.Tree()
	ids := tree.Nodes()

	tagCounts := make(map[string]int)
	nodesWithTags := 0
	for _, id := range ids {
		tags := tree.TagsOf(id)
		if len(tags) == 0 {
			continue
		}
		nodesWithTags++
		seen := make(map[string]bool, len(tags))
		for _, tag := range tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			tagCounts[tag]++
		}
	}

	tags := make([]TagInfo, 0, len(tagCounts))
	for tag, count := range tagCounts {
		tags = append(tags, TagInfo{Tag: tag, Count: count})
	}
	slices.SortFunc(tags, func(x, y TagInfo) int {
		return cmp.Or(cmp.Compare(y.Count, x.Count), cmp.Compare(x.Tag, y.Tag))
	})

	return nil, TagsOutput{
		Tags:          tags,
		TotalTags:     len(tags),
		TotalNodes:    len(ids),
		NodesWithTags: nodesWithTags,
	}, nil
}
