// Package pattern turns search options into a compiled regular expression.
package pattern

import (
	"errors"
	"regexp"
	"strings"

	"github.com/taigrr/treefind/internal/offsets"
	"github.com/taigrr/treefind/internal/types"
)

// Flags are the options that shape the compiled expression.
type Flags struct {
	CaseSensitive     bool
	UseRegex          bool
	AccentInsensitive bool
	WholeWord         bool
	StartWord         bool
}

// FlagsFrom extracts pattern flags from search options.
func FlagsFrom(o types.SearchOptions) Flags {
	return Flags{
		CaseSensitive:     o.CaseSensitive,
		UseRegex:          o.UseRegex,
		AccentInsensitive: o.AccentInsensitive,
		WholeWord:         o.WholeWord,
		StartWord:         o.StartWord,
	}
}

// Compiled is a ready-to-run search pattern. It is read-only after Compile.
type Compiled struct {
	raw   string
	flags Flags
	re    *regexp.Regexp
}

// Compile builds the expression for raw. Errors are *types.PatternError.
func Compile(raw string, f Flags) (*Compiled, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &types.PatternError{Pattern: raw, Err: errors.New("pattern cannot be empty")}
	}

	expr := raw
	if f.AccentInsensitive {
		expr = Fold(expr)
	}
	if !f.UseRegex {
		expr = regexp.QuoteMeta(expr)
		if f.WholeWord {
			expr = `\b` + expr + `\b`
		} else if f.StartWord {
			expr = `\b` + expr
		}
	}

	prefix := "(?m)"
	if !f.CaseSensitive {
		prefix = "(?mi)"
	}
	re, err := regexp.Compile(prefix + expr)
	if err != nil {
		return nil, &types.PatternError{Pattern: raw, Err: err}
	}
	return &Compiled{raw: raw, flags: f, re: re}, nil
}

// Raw returns the pattern as the user typed it.
func (c *Compiled) Raw() string { return c.raw }

// Flags returns the flags the pattern was compiled with.
func (c *Compiled) Flags() Flags { return c.flags }

// Regexp returns the underlying expression.
func (c *Compiled) Regexp() *regexp.Regexp { return c.re }

// Prepare returns text in the form the expression expects.
func (c *Compiled) Prepare(text string) string {
	if c.flags.AccentInsensitive {
		return Fold(text)
	}
	return text
}

// FindAll returns the submatch byte indices of every leftmost non-overlapping
// match in prepared text.
func (c *Compiled) FindAll(prepared string) [][]int {
	return c.re.FindAllStringSubmatchIndex(prepared, -1)
}

// MatchString reports whether s contains a match.
func (c *Compiled) MatchString(s string) bool {
	return c.re.MatchString(c.Prepare(s))
}

// Expand returns the replacement for one match. src is the original
// (unprepared) text and loc the submatch indices found in its prepared form.
// Literal patterns return template unchanged.
func (c *Compiled) Expand(template, src string, loc []int) string {
	if !c.flags.UseRegex {
		return template
	}
	return c.expand(template, src, c.remap(src, loc))
}

// ReplaceAllIn replaces every match in s.
func (c *Compiled) ReplaceAllIn(s, template string) (string, int) {
	locs := c.FindAll(c.Prepare(s))
	if len(locs) == 0 {
		return s, 0
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		orig := c.remap(s, loc)
		b.WriteString(s[last:orig[0]])
		if c.flags.UseRegex {
			b.WriteString(c.expand(template, s, orig))
		} else {
			b.WriteString(template)
		}
		last = orig[1]
	}
	b.WriteString(s[last:])
	return b.String(), len(locs)
}

func (c *Compiled) expand(template, src string, loc []int) string {
	return string(c.re.ExpandString(nil, translateTemplate(template), src, loc))
}

// remap converts byte indices found in the prepared form of src back to src.
// Folding keeps code points 1:1, so indices travel through code point counts.
func (c *Compiled) remap(src string, loc []int) []int {
	if !c.flags.AccentInsensitive {
		return loc
	}
	prepared := Fold(src)
	if prepared == src {
		return loc
	}
	out := make([]int, len(loc))
	for i, b := range loc {
		if b < 0 {
			out[i] = b
			continue
		}
		out[i] = offsets.CodepointToByte(src, offsets.ByteToCodepoint(prepared, b))
	}
	return out
}

// translateTemplate accepts the backslash group syntax (\1, \0) and the
// common escapes next to Go's $1 / ${name} syntax.
func translateTemplate(template string) string {
	if !strings.Contains(template, `\`) {
		return template
	}
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		ch := template[i]
		if ch != '\\' || i+1 == len(template) {
			b.WriteByte(ch)
			continue
		}
		next := template[i+1]
		switch {
		case next >= '0' && next <= '9':
			b.WriteString("${")
			b.WriteByte(next)
			b.WriteString("}")
		case next == 'n':
			b.WriteByte('\n')
		case next == 't':
			b.WriteByte('\t')
		case next == '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(ch)
			b.WriteByte(next)
		}
		i++
	}
	return b.String()
}
