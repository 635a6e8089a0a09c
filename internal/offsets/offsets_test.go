package offsets

import (
	"testing"

	"github.com/taigrr/treefind/internal/types"
)

const ph = string(types.Placeholder)

func TestTranslator_RegexText(t *testing.T) {
	tr := New("ab" + ph + "cd" + ph)
	if got := tr.RegexText(); got != "abcd" {
		t.Errorf("RegexText() = %q, want %q", got, "abcd")
	}
	if got := tr.DisplayLen(); got != 6 {
		t.Errorf("DisplayLen() = %d, want 6", got)
	}
	if got := tr.Placeholders(); len(got) != 2 || got[0] != 2 || got[1] != 5 {
		t.Errorf("Placeholders() = %v, want [2 5]", got)
	}
}

func TestTranslator_CountObjectsBefore(t *testing.T) {
	tr := New("a" + ph + ph + "b" + ph + "c")
	tests := []struct {
		display int
		want    int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{6, 3},
	}
	for _, tt := range tests {
		if got := tr.CountObjectsBefore(tt.display); got != tt.want {
			t.Errorf("CountObjectsBefore(%d) = %d, want %d", tt.display, got, tt.want)
		}
	}
}

func TestTranslator_RoundTrip(t *testing.T) {
	streams := []string{
		"hello world",
		"héllo " + ph + " wörld",
		ph + "日本語" + ph + ph + "text" + ph,
		"",
		ph + ph,
		"emoji 🎉 " + ph + " ok",
	}
	for _, s := range streams {
		tr := New(s)
		for o := 0; o <= tr.DisplayLen(); o++ {
			if tr.IsPlaceholder(o) {
				continue
			}
			b := tr.ToRegexBytePosition(o)
			if got := tr.ToDisplay(b); got != o {
				t.Errorf("stream %q: ToDisplay(ToRegexBytePosition(%d)) = %d", s, o, got)
			}
		}
	}
}

func TestTranslator_ToRegexBytePosition(t *testing.T) {
	tr := New("é" + ph + "x")
	if got := tr.ToRegexBytePosition(2); got != 2 {
		t.Errorf("ToRegexBytePosition(2) = %d, want 2", got)
	}
	if got := tr.ToRegexBytePosition(3); got != 3 {
		t.Errorf("ToRegexBytePosition(3) = %d, want 3", got)
	}
	if got := tr.ToRegexBytePosition(99); got != 3 {
		t.Errorf("ToRegexBytePosition(99) = %d, want 3", got)
	}
}

func TestTranslator_Span(t *testing.T) {
	t.Run("match after placeholder", func(t *testing.T) {
		tr := New("ab" + ph + "cat")
		got := tr.Span(2, 5)
		if got.Start != 3 || got.End != 6 {
			t.Errorf("Span(2, 5) = %+v, want {3 6}", got)
		}
	})

	t.Run("match spanning placeholder", func(t *testing.T) {
		tr := New("foo" + ph + "bar")
		got := tr.Span(0, 6)
		if got.Start != 0 || got.End != 7 {
			t.Errorf("Span(0, 6) = %+v, want {0 7}", got)
		}
	})

	t.Run("match ending before placeholder", func(t *testing.T) {
		tr := New("foo" + ph + "bar")
		got := tr.Span(0, 3)
		if got.Start != 0 || got.End != 3 {
			t.Errorf("Span(0, 3) = %+v, want {0 3}", got)
		}
	})

	t.Run("empty match", func(t *testing.T) {
		tr := New("a" + ph + "b")
		got := tr.Span(1, 1)
		if got.Start != 2 || got.End != 2 {
			t.Errorf("Span(1, 1) = %+v, want {2 2}", got)
		}
	})
}

func TestCodepointHelpers(t *testing.T) {
	s := "aé日b"
	tests := []struct {
		cp   int
		byte int
	}{
		{0, 0},
		{1, 1},
		{2, 3},
		{3, 6},
		{4, 7},
	}
	for _, tt := range tests {
		if got := CodepointToByte(s, tt.cp); got != tt.byte {
			t.Errorf("CodepointToByte(%d) = %d, want %d", tt.cp, got, tt.byte)
		}
		if got := ByteToCodepoint(s, tt.byte); got != tt.cp {
			t.Errorf("ByteToCodepoint(%d) = %d, want %d", tt.byte, got, tt.cp)
		}
	}
	if got := RuneLen(s); got != 4 {
		t.Errorf("RuneLen() = %d, want 4", got)
	}
}
