package search

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/taigrr/treefind/internal/offsets"
	"github.com/taigrr/treefind/internal/types"
)

const (
	pathSeparator       = " << "
	defaultPreviewWidth = 160
)

func (s *Session) textRecord(n types.NodeID, nt *nodeText, span types.MatchSpan) types.MatchRecord {
	line, content := lineAt(nt.display, span.Start)
	return types.MatchRecord{
		NodeID:      n,
		NodeName:    s.content.NameOf(n),
		NodePath:    s.nodePath(n),
		Start:       span.Start,
		End:         span.End,
		Line:        line,
		LineContent: s.preview(content),
	}
}

func (s *Session) objectRecord(n types.NodeID, nt *nodeText, a anchored, local types.MatchSpan) types.MatchRecord {
	line := 1
	if nt != nil {
		line, _ = lineAt(nt.display, a.span.Start)
	}
	_, content := lineAt(a.match.Source, a.match.Span.Start)
	return types.MatchRecord{
		NodeID:      n,
		NodeName:    s.content.NameOf(n),
		NodePath:    s.nodePath(n),
		Start:       a.span.Start,
		End:         a.span.End,
		Line:        line,
		LineContent: s.preview(content),
		Object: &types.ObjectLocation{
			Kind:   a.match.Handle.Kind,
			Offset: a.match.Handle.Offset,
			Cell:   a.match.Cell,
			Start:  local.Start,
			End:    local.End,
		},
	}
}

// nameRecord reports a match in a node's name or tags. The preview is the
// first non-empty line of the node's text.
func (s *Session) nameRecord(n types.NodeID, nt *nodeText) types.MatchRecord {
	rec := types.MatchRecord{
		NodeID:   n,
		NodeName: s.content.NameOf(n),
		NodePath: s.nodePath(n),
		Line:     1,
		InName:   true,
	}
	if nt != nil {
		for i, line := range strings.Split(nt.display, "\n") {
			if p := s.preview(line); p != "" {
				rec.Line = i + 1
				rec.LineContent = p
				break
			}
		}
	}
	return rec
}

// nodePath renders a node's ancestry as "leaf << parent << root".
func (s *Session) nodePath(n types.NodeID) string {
	names := []string{s.content.NameOf(n)}
	for p, ok := s.tree.ParentOf(n); ok; p, ok = s.tree.ParentOf(p) {
		names = append(names, s.content.NameOf(p))
	}
	return strings.Join(names, pathSeparator)
}

func (s *Session) preview(line string) string {
	line = strings.TrimSpace(strings.ReplaceAll(line, string(types.Placeholder), ""))
	return truncate(line, s.previewWidth)
}

// lineAt returns the 1-based line number and the line containing code point cp.
func lineAt(text string, cp int) (int, string) {
	b := offsets.CodepointToByte(text, cp)
	line := strings.Count(text[:b], "\n") + 1
	start := strings.LastIndexByte(text[:b], '\n') + 1
	end := len(text)
	if i := strings.IndexByte(text[b:], '\n'); i >= 0 {
		end = b + i
	}
	return line, text[start:end]
}

// truncate cuts s to at most width grapheme clusters.
func truncate(s string, width int) string {
	if width <= 0 || uniseg.GraphemeClusterCount(s) <= width {
		return s
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for n := 0; n < width && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	return b.String() + "…"
}
