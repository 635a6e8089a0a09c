package objects

import (
	"encoding/base64"
	"testing"

	"github.com/taigrr/treefind/internal/pattern"
	"github.com/taigrr/treefind/internal/types"
)

func mustCompile(t *testing.T, raw string, f pattern.Flags) *pattern.Compiled {
	t.Helper()
	p, err := pattern.Compile(raw, f)
	if err != nil {
		t.Fatalf("Compile(%q) error = %v", raw, err)
	}
	return p
}

func TestMatch_Table(t *testing.T) {
	p := mustCompile(t, "foo", pattern.Flags{})
	table := types.EmbeddedObject{
		Kind:   types.KindTable,
		Offset: 7,
		End:    8,
		Cells: [][]string{
			{"name", "value"},
			{"foo foo", "bar"},
			{"x", "food"},
		},
	}

	matches := Match(3, table, p)
	if len(matches) != 3 {
		t.Fatalf("Match() returned %d matches, want 3", len(matches))
	}

	want := []struct {
		cell       int
		start, end int
	}{
		{2, 0, 3},
		{2, 4, 7},
		{5, 0, 3},
	}
	for i, w := range want {
		m := matches[i]
		if m.Cell != w.cell || m.Span.Start != w.start || m.Span.End != w.end {
			t.Errorf("matches[%d] = cell %d span %+v, want cell %d span {%d %d}", i, m.Cell, m.Span, w.cell, w.start, w.end)
		}
		if m.Handle.Node != 3 || m.Handle.Kind != types.KindTable || m.Handle.Offset != 7 {
			t.Errorf("matches[%d].Handle = %+v", i, m.Handle)
		}
	}
}

func TestMatch_Kinds(t *testing.T) {
	path := base64.StdEncoding.EncodeToString([]byte("/home/user/report.pdf"))
	tests := []struct {
		name string
		obj  types.EmbeddedObject
		pat  string
		want int
	}{
		{"code block", types.EmbeddedObject{Kind: types.KindCodeBlock, Code: "func report() {}\n// report"}, "report", 2},
		{"anchor", types.EmbeddedObject{Kind: types.KindAnchor, Anchor: "report-anchor"}, "report", 1},
		{"embedded file", types.EmbeddedObject{Kind: types.KindEmbeddedFile, Filename: "Report.PDF"}, "report", 1},
		{"image web link", types.EmbeddedObject{Kind: types.KindImageLink, Link: "webs https://example.com/my_report"}, "my_report", 1},
		{"hyperlink file", types.EmbeddedObject{Kind: types.KindHyperlink, Link: "file " + path}, "report.pdf", 1},
		{"image without link", types.EmbeddedObject{Kind: types.KindImageLink}, "report", 0},
		{"no match", types.EmbeddedObject{Kind: types.KindCodeBlock, Code: "nothing here"}, "report", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustCompile(t, tt.pat, pattern.Flags{})
			got := Match(1, tt.obj, p)
			if len(got) != tt.want {
				t.Errorf("Match() returned %d matches, want %d", len(got), tt.want)
			}
			for _, m := range got {
				if m.Cell != NoCell {
					t.Errorf("Cell = %d, want NoCell", m.Cell)
				}
			}
		})
	}
}

func TestMatch_CodepointSpans(t *testing.T) {
	p := mustCompile(t, "cafe", pattern.Flags{AccentInsensitive: true})
	obj := types.EmbeddedObject{Kind: types.KindCodeBlock, Code: "日本 café"}
	got := Match(1, obj, p)
	if len(got) != 1 {
		t.Fatalf("Match() returned %d matches, want 1", len(got))
	}
	if got[0].Span.Start != 3 || got[0].Span.End != 7 {
		t.Errorf("Span = %+v, want {3 7}", got[0].Span)
	}
}

func TestMatchAll_Order(t *testing.T) {
	p := mustCompile(t, "a", pattern.Flags{})
	objs := []types.EmbeddedObject{
		{Kind: types.KindAnchor, Offset: 2, Anchor: "a"},
		{Kind: types.KindCodeBlock, Offset: 5, Code: "a a"},
	}

	fw := MatchAll(1, objs, p, types.Forward)
	if len(fw) != 3 {
		t.Fatalf("MatchAll() returned %d matches, want 3", len(fw))
	}
	if fw[0].Handle.Offset != 2 || fw[2].Handle.Offset != 5 || fw[2].Span.Start != 2 {
		t.Errorf("forward order wrong: %+v", fw)
	}

	bw := MatchAll(1, objs, p, types.Backward)
	if bw[0].Handle.Offset != 5 || bw[0].Span.Start != 2 || bw[2].Handle.Offset != 2 {
		t.Errorf("backward order wrong: %+v", bw)
	}
}

func TestSearchableText(t *testing.T) {
	table := types.EmbeddedObject{Kind: types.KindTable, Cells: [][]string{{"a", "b"}, {"c"}}}
	if got, ok := SearchableText(table, 2); !ok || got != "c" {
		t.Errorf("SearchableText(table, 2) = %q, %v", got, ok)
	}
	if _, ok := SearchableText(table, 3); ok {
		t.Error("SearchableText(table, 3) should not resolve a missing cell")
	}
	if got, ok := SearchableText(types.EmbeddedObject{Kind: types.KindAnchor, Anchor: "x"}, NoCell); !ok || got != "x" {
		t.Errorf("SearchableText(anchor) = %q, %v", got, ok)
	}
}

func TestLinks(t *testing.T) {
	path := base64.StdEncoding.EncodeToString([]byte("/tmp/old.txt"))
	tests := []struct {
		name    string
		link    string
		decoded string
	}{
		{"web", "webs https://a.b/c%20d", "https://a.b/c%20d"},
		{"file", "file " + path, "/tmp/old.txt"},
		{"node", "node 12 intro", "12 intro"},
		{"unknown", "plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeLink(tt.link); got != tt.decoded {
				t.Errorf("DecodeLink() = %q, want %q", got, tt.decoded)
			}
		})
	}

	replaced := ReplaceInLink("file "+path, 5, 8, "new")
	if got := DecodeLink(replaced); got != "/tmp/new.txt" {
		t.Errorf("ReplaceInLink() decoded = %q, want %q", got, "/tmp/new.txt")
	}

	t.Run("web replacement keeps escapes", func(t *testing.T) {
		link := "webs https://example.com/a%20b?q=x%26y"
		if got, want := ReplaceInLink(link, 8, 15, "example.org"), "webs https://example.org.com/a%20b?q=x%26y"; got != want {
			t.Errorf("ReplaceInLink() = %q, want %q", got, want)
		}
	})

	if got := FromLinkRun(types.LinkRun{Start: 4, End: 9, Target: "webs x"}, 0); got.OccupiesPlaceholder() || got.Offset != 4 || got.End != 9 {
		t.Errorf("FromLinkRun() = %+v", got)
	}
}
