package pattern

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldCache sync.Map // rune -> rune

// Fold strips diacritics from s one code point at a time. A code point whose
// base form is not a single code point is kept as is, so the result always
// has as many code points as s.
func Fold(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(foldRune(r))
	}
	return b.String()
}

func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		return r
	}
	if v, ok := foldCache.Load(r); ok {
		return v.(rune)
	}
	folded := r
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	if out, _, err := transform.String(t, string(r)); err == nil && utf8.RuneCountInString(out) == 1 {
		folded, _ = utf8.DecodeRuneInString(out)
	}
	foldCache.Store(r, folded)
	return folded
}
