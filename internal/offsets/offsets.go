// Package offsets converts between the coordinate spaces of a node's text stream.
//
// Display offsets count code points of the stream as the caller sees it, one
// unit per embedded-object placeholder. Regex offsets are byte positions into
// the UTF-8 text with every placeholder removed, which is what the regular
// expression engine scans. A Translator is a snapshot: it must be rebuilt after
// the node is edited.
package offsets

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/taigrr/treefind/internal/types"
)

// Translator maps offsets for one node text stream.
type Translator struct {
	displayLen   int
	placeholders []int
	// shifted[i] is placeholders[i]-i: the regex code point the placeholder precedes.
	shifted    []int
	regexText  string
	runeStarts []int
}

// New builds a Translator for a display stream. Every types.Placeholder rune
// is treated as an embedded object.
func New(display string) *Translator {
	t := &Translator{}
	var b strings.Builder
	b.Grow(len(display))
	cp := 0
	for _, r := range display {
		if r == types.Placeholder {
			t.shifted = append(t.shifted, cp-len(t.placeholders))
			t.placeholders = append(t.placeholders, cp)
		} else {
			t.runeStarts = append(t.runeStarts, b.Len())
			b.WriteRune(r)
		}
		cp++
	}
	t.displayLen = cp
	t.regexText = b.String()
	t.runeStarts = append(t.runeStarts, b.Len())
	return t
}

// RegexText returns the stream with placeholders removed.
func (t *Translator) RegexText() string { return t.regexText }

// DisplayLen returns the number of display code points.
func (t *Translator) DisplayLen() int { return t.displayLen }

// Placeholders returns the sorted display offsets of every placeholder.
func (t *Translator) Placeholders() []int { return t.placeholders }

// IsPlaceholder reports whether a display offset holds a placeholder.
func (t *Translator) IsPlaceholder(display int) bool {
	i := sort.SearchInts(t.placeholders, display)
	return i < len(t.placeholders) && t.placeholders[i] == display
}

// CountObjectsBefore returns how many placeholders sit before a display offset.
func (t *Translator) CountObjectsBefore(display int) int {
	return sort.SearchInts(t.placeholders, display)
}

// ToRegexCodepoint converts a display offset to a code point of the regex text.
func (t *Translator) ToRegexCodepoint(display int) int {
	display = clamp(display, 0, t.displayLen)
	return clamp(display-t.CountObjectsBefore(display), 0, len(t.runeStarts)-1)
}

// ToRegexBytePosition converts a display offset to a byte position of the regex text.
func (t *Translator) ToRegexBytePosition(display int) int {
	return t.runeStarts[t.ToRegexCodepoint(display)]
}

// ToDisplay converts a regex byte position to the display offset of the
// character found there. Placeholders immediately before it are skipped over.
func (t *Translator) ToDisplay(bytePos int) int {
	cp := t.regexCodepoint(bytePos)
	n := sort.Search(len(t.shifted), func(i int) bool { return t.shifted[i] > cp })
	return cp + n
}

// ToDisplayEnd converts a regex byte position used as an exclusive end.
// Placeholders enclosed by the preceding character stay inside the range.
func (t *Translator) ToDisplayEnd(bytePos int) int {
	cp := t.regexCodepoint(bytePos)
	n := sort.Search(len(t.shifted), func(i int) bool { return t.shifted[i] >= cp })
	return cp + n
}

// Span converts a regex byte range to a display range.
func (t *Translator) Span(startByte, endByte int) types.MatchSpan {
	start := t.ToDisplay(startByte)
	if endByte <= startByte {
		return types.MatchSpan{Start: start, End: start}
	}
	return types.MatchSpan{Start: start, End: max(start, t.ToDisplayEnd(endByte))}
}

func (t *Translator) regexCodepoint(bytePos int) int {
	bytePos = clamp(bytePos, 0, len(t.regexText))
	return sort.SearchInts(t.runeStarts, bytePos)
}

// CodepointToByte returns the byte position of code point cp in s.
func CodepointToByte(s string, cp int) int {
	if cp <= 0 {
		return 0
	}
	i := 0
	for pos := range s {
		if i == cp {
			return pos
		}
		i++
	}
	return len(s)
}

// ByteToCodepoint returns the code point index of byte position b in s.
func ByteToCodepoint(s string, b int) int {
	return utf8.RuneCountInString(s[:clamp(b, 0, len(s))])
}

// RuneLen returns the number of code points in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
