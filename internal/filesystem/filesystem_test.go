package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/taigrr/treefind/internal/document"
	"github.com/taigrr/treefind/internal/search"
	"github.com/taigrr/treefind/internal/types"
)

const ph = string(types.Placeholder)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// setupTestNotebook creates:
//
//	Projects (sequence 1)
//	  Alpha
//	  Beta
//	Inbox (sequence 2)
func setupTestNotebook(t *testing.T) (string, *Service) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "projects.md", "---\nname: Projects\nsequence: 1\n---\nAll projects.")
	writeFile(t, root, "projects/beta.md", "---\nname: Beta\n---\nbeta notes")
	writeFile(t, root, "projects/alpha.md", "---\nname: Alpha\ntags: [work]\nobjects:\n  - kind: codebox\n    offset: 4\n    code: let alpha = 1\nlinks:\n  - start: 6\n    end: 10\n    target: webs https://alpha.example\n---\nsee  the docs")
	writeFile(t, root, "inbox.md", "---\nsequence: 2\n---\nplain inbox")
	writeFile(t, root, ".git/config.md", "ignored")
	writeFile(t, root, "image.png", "ignored")
	return root, New(root, nil, nil)
}

func names(tree *document.Tree) []string {
	var out []string
	for _, id := range tree.Nodes() {
		out = append(out, tree.NameOf(id))
	}
	return out
}

func TestService_Load(t *testing.T) {
	_, svc := setupTestNotebook(t)

	tree, err := svc.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := strings.Join(names(tree), ","); got != "Projects,Alpha,Beta,inbox" {
		t.Errorf("nodes = %s, want Projects,Alpha,Beta,inbox", got)
	}

	alpha := tree.Nodes()[1]
	text, err := tree.TextStream(alpha)
	if err != nil {
		t.Fatalf("TextStream() error = %v", err)
	}
	if text != "see "+ph+" the docs" {
		t.Errorf("TextStream() = %q", text)
	}
	if runs := tree.LinkRuns(alpha, 0, 100); len(runs) != 1 || runs[0].Start != 6 {
		t.Errorf("LinkRuns() = %+v", runs)
	}

	info, ok := svc.Info(alpha)
	if !ok || info.Path != "Projects/Alpha" {
		t.Errorf("Info() = %+v", info)
	}
	if !strings.HasPrefix(info.URI, "treefind:///") || !strings.HasSuffix(info.URI, "/projects/alpha#2") {
		t.Errorf("URI = %q", info.URI)
	}
}

func TestService_LoadErrors(t *testing.T) {
	t.Run("missing notebook", func(t *testing.T) {
		svc := New(filepath.Join(t.TempDir(), "missing"), nil, nil)
		if _, err := svc.Load(); err == nil || !strings.Contains(err.Error(), "notebook not found") {
			t.Errorf("Load() error = %v, want notebook not found", err)
		}
	})

	t.Run("invalid frontmatter is reported on read", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "bad.md", "---\nobjects:\n  - kind: widget\n    offset: 0\n---\nbody")
		svc := New(root, nil, nil)
		tree, err := svc.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		_, err = tree.TextStream(tree.Nodes()[0])
		var unavailable *types.ContentUnavailableError
		if !errors.As(err, &unavailable) {
			t.Errorf("TextStream() error = %v, want ContentUnavailableError", err)
		}
	})

	t.Run("duplicate ids are reassigned", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.md", "---\nid: 5\n---\na")
		writeFile(t, root, "b.md", "---\nid: 5\n---\nb")
		tree, err := New(root, nil, nil).Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if tree.Len() != 2 {
			t.Errorf("Len() = %d, want 2", tree.Len())
		}
	})
}

func TestService_ResolvePath(t *testing.T) {
	_, svc := setupTestNotebook(t)

	if _, err := svc.ResolvePath("../outside.md"); err == nil {
		t.Error("ResolvePath() allowed a path outside the notebook")
	}
	got, err := svc.ResolvePath("/projects/alpha.md")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if want := filepath.Join(svc.NotebookPath(), "projects", "alpha.md"); got != want {
		t.Errorf("ResolvePath() = %q, want %q", got, want)
	}
}

func TestService_ReplaceAllAndSave(t *testing.T) {
	root, svc := setupTestNotebook(t)
	tree, err := svc.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	first, _ := tree.FirstNode()
	s := search.NewSession(tree, tree, tree)
	res, err := s.ReplaceAll(context.Background(), search.Request{
		Options: types.SearchOptions{
			Pattern:     "alpha",
			Replacement: "gamma",
			Scope:       types.AllListMatches,
		},
		Target:    types.TargetAllNodes,
		Selection: types.Selection{Node: first},
	})
	if err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	// The code block and the link target.
	if res.Count != 2 {
		t.Errorf("Count = %d, want 2", res.Count)
	}

	saved, err := svc.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved != 1 {
		t.Errorf("Save() = %d, want 1", saved)
	}
	if len(tree.Dirty()) != 0 {
		t.Error("Save() left dirty nodes")
	}

	data, err := os.ReadFile(filepath.Join(root, "projects", "alpha.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "let gamma = 1") || !strings.Contains(content, "https://gamma.example") {
		t.Errorf("saved file = %q", content)
	}
	if !strings.HasSuffix(content, "---\nsee  the docs") || strings.Contains(content, ph) {
		t.Errorf("saved body = %q", content)
	}

	reloaded, err := svc.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	text, _ := reloaded.TextStream(reloaded.Nodes()[1])
	if text != "see "+ph+" the docs" {
		t.Errorf("reloaded TextStream() = %q", text)
	}
}

func TestService_SaveRename(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "draft.md", "just text")
	svc := New(root, nil, nil)
	tree, err := svc.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	id := tree.Nodes()[0]
	if err := tree.ReplaceNodeName(id, "Final"); err != nil {
		t.Fatalf("ReplaceNodeName() error = %v", err)
	}
	if _, err := svc.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(root, "draft.md"))
	if !strings.Contains(string(data), "name: Final") || !strings.HasSuffix(string(data), "just text") {
		t.Errorf("saved file = %q", data)
	}
}

func TestService_Watch(t *testing.T) {
	root, svc := setupTestNotebook(t)
	svc.debounce = 20 * time.Millisecond
	if _, err := svc.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan *document.Tree, 1)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, func(tree *document.Tree) {
			select {
			case reloaded <- tree:
			default:
			}
		})
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case tree := <-reloaded:
			if tree.Len() != 5 {
				t.Errorf("reloaded Len() = %d, want 5", tree.Len())
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch() error = %v", err)
			}
			return
		case <-tick.C:
			// Keep writing until the watcher is registered and picks it up.
			writeFile(t, root, "new.md", "fresh")
		case <-deadline:
			t.Fatal("Watch() did not reload")
		}
	}
}
