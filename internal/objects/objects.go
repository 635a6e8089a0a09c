// Package objects searches inside embedded objects: code blocks, tables,
// image links, anchors, embedded files and hyperlinks.
package objects

import (
	"slices"

	"github.com/taigrr/treefind/internal/offsets"
	"github.com/taigrr/treefind/internal/pattern"
	"github.com/taigrr/treefind/internal/types"
)

// NoCell marks a match outside any table cell.
const NoCell = -1

// Match runs p over the searchable text of obj and returns every match in
// document order. Spans are code points local to the searched text.
func Match(node types.NodeID, obj types.EmbeddedObject, p *pattern.Compiled) []types.ObjectMatch {
	handle := obj.Handle(node)

	if obj.Kind == types.KindTable {
		var matches []types.ObjectMatch
		cols := obj.Columns()
		for r, row := range obj.Cells {
			for c, text := range row {
				matches = append(matches, matchText(handle, r*cols+c, text, p)...)
			}
		}
		return matches
	}

	text, ok := searchable(obj)
	if !ok {
		return nil
	}
	return matchText(handle, NoCell, text, p)
}

// MatchAll matches every object and returns the combined list in document
// order, or reversed for a backward search.
func MatchAll(node types.NodeID, objs []types.EmbeddedObject, p *pattern.Compiled, dir types.Direction) []types.ObjectMatch {
	var all []types.ObjectMatch
	for _, obj := range objs {
		all = append(all, Match(node, obj, p)...)
	}
	if dir == types.Backward {
		slices.Reverse(all)
	}
	return all
}

// SearchableText returns the text a match in obj was found in. cell selects
// the table cell and is ignored for other kinds.
func SearchableText(obj types.EmbeddedObject, cell int) (string, bool) {
	if obj.Kind != types.KindTable {
		return searchable(obj)
	}
	cols := obj.Columns()
	if cols == 0 || cell < 0 {
		return "", false
	}
	r, c := cell/cols, cell%cols
	if r >= len(obj.Cells) || c >= len(obj.Cells[r]) {
		return "", false
	}
	return obj.Cells[r][c], true
}

// FromLinkRun synthesizes the hyperlink object for a rich-text link run. The
// object has no placeholder; it only exposes the link target as searchable text.
func FromLinkRun(run types.LinkRun, index int) types.EmbeddedObject {
	return types.EmbeddedObject{
		Kind:   types.KindHyperlink,
		Offset: run.Start,
		End:    run.End,
		Index:  index,
		Link:   run.Target,
	}
}

func searchable(obj types.EmbeddedObject) (string, bool) {
	switch obj.Kind {
	case types.KindCodeBlock:
		return obj.Code, true
	case types.KindImageLink, types.KindHyperlink:
		if obj.Link == "" {
			return "", false
		}
		return DecodeLink(obj.Link), true
	case types.KindAnchor:
		return obj.Anchor, true
	case types.KindEmbeddedFile:
		return obj.Filename, true
	}
	return "", false
}

func matchText(handle types.ObjectHandle, cell int, text string, p *pattern.Compiled) []types.ObjectMatch {
	if text == "" {
		return nil
	}
	prepared := p.Prepare(text)
	locs := p.FindAll(prepared)
	if len(locs) == 0 {
		return nil
	}
	matches := make([]types.ObjectMatch, 0, len(locs))
	for _, loc := range locs {
		matches = append(matches, types.ObjectMatch{
			Handle: handle,
			Cell:   cell,
			Span: types.MatchSpan{
				Start: offsets.ByteToCodepoint(prepared, loc[0]),
				End:   offsets.ByteToCodepoint(prepared, loc[1]),
			},
			Source: text,
			Loc:    loc,
		})
	}
	return matches
}
