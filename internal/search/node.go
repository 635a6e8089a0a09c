package search

import (
	"slices"
	"strings"

	"github.com/taigrr/treefind/internal/objects"
	"github.com/taigrr/treefind/internal/offsets"
	"github.com/taigrr/treefind/internal/pattern"
	"github.com/taigrr/treefind/internal/types"
)

// nodeText is one node's display text prepared for matching.
type nodeText struct {
	display string
	// original is the regex text before accent folding; replacement templates
	// read their groups from it.
	original string
	tr       *offsets.Translator
	matches  []textMatch
}

type textMatch struct {
	span types.MatchSpan
	loc  []int
}

// anchored is one entry of an anchored match list: a match inside an
// embedded object plus the display span of that object.
type anchored struct {
	match types.ObjectMatch
	span  types.MatchSpan
}

// resume is where a search continues inside a node.
type resume struct {
	offset int
	// objects at exactly offset are still eligible.
	inclusive bool
	// a text match touching offset is not eligible; set after zero-width hits.
	strict bool
}

// wholeNode returns the resume point that covers an entire node.
func wholeNode(dir types.Direction, displayLen int) resume {
	if dir == types.Forward {
		return resume{offset: 0, inclusive: true}
	}
	return resume{offset: displayLen, inclusive: true}
}

func prepareText(display string, p *pattern.Compiled) *nodeText {
	tr := offsets.New(p.Prepare(display))
	nt := &nodeText{
		display:  display,
		original: strings.ReplaceAll(display, string(types.Placeholder), ""),
		tr:       tr,
	}
	for _, loc := range p.FindAll(tr.RegexText()) {
		nt.matches = append(nt.matches, textMatch{span: tr.Span(loc[0], loc[1]), loc: loc})
	}
	return nt
}

// nextText returns the first full-text match after r in direction dir.
func (nt *nodeText) nextText(r resume, dir types.Direction) *textMatch {
	if dir == types.Forward {
		for i := range nt.matches {
			m := &nt.matches[i]
			if m.span.Start > r.offset || (m.span.Start == r.offset && !r.strict) {
				return m
			}
		}
		return nil
	}
	for i := len(nt.matches) - 1; i >= 0; i-- {
		m := &nt.matches[i]
		if m.span.End < r.offset || (m.span.End == r.offset && !r.strict) {
			return m
		}
	}
	return nil
}

// contentHit is the next match inside a node: either a text match or a
// non-empty anchored list of object matches.
type contentHit struct {
	text    *textMatch
	objects []anchored
}

// searchNode finds the next match in node n after r. Objects that sit
// between r and the next text match win over it. On a tie at the same
// offset, an object precedes text going forward and follows it going
// backward.
func (s *Session) searchNode(n types.NodeID, nt *nodeText, r resume, dir types.Direction) (contentHit, bool) {
	tm := nt.nextText(r, dir)

	var lo, hi int
	if dir == types.Forward {
		lo = r.offset
		if !r.inclusive {
			lo++
		}
		hi = nt.tr.DisplayLen() + 1
		if tm != nil {
			hi = tm.span.Start + 1
		}
	} else {
		lo = 0
		if tm != nil {
			lo = tm.span.Start + 1
		}
		hi = r.offset
		if r.inclusive {
			hi++
		}
	}

	if lo < hi {
		if list := s.matchObjects(n, lo, hi, dir); len(list) > 0 {
			return contentHit{objects: list}, true
		}
	}
	if tm != nil {
		return contentHit{text: tm}, true
	}
	return contentHit{}, false
}

// matchObjects builds the anchored match list for the objects and hyperlinks
// whose offset is in [lo, hi), in visiting order.
func (s *Session) matchObjects(n types.NodeID, lo, hi int, dir types.Direction) []anchored {
	objs := s.content.EmbeddedObjects(n, lo, hi)
	for i, run := range s.content.LinkRuns(n, lo, hi) {
		objs = append(objs, objects.FromLinkRun(run, i))
	}
	if len(objs) == 0 {
		return nil
	}
	slices.SortStableFunc(objs, func(a, b types.EmbeddedObject) int {
		return a.Offset - b.Offset
	})

	var list []anchored
	for _, obj := range objs {
		end := obj.End
		if end <= obj.Offset {
			end = obj.Offset + 1
		}
		for _, m := range objects.Match(n, obj, s.compiled) {
			list = append(list, anchored{match: m, span: types.MatchSpan{Start: obj.Offset, End: end}})
		}
	}
	if dir == types.Backward {
		slices.Reverse(list)
	}
	return list
}

// matchName reports whether the pattern matches a node's name or tags.
func (s *Session) matchName(n types.NodeID) bool {
	if s.compiled.MatchString(s.content.NameOf(n)) {
		return true
	}
	tags := s.content.TagsOf(n)
	return len(tags) > 0 && s.compiled.MatchString(strings.Join(tags, " "))
}
