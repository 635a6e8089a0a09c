// Package filesystem loads a notebook directory into a document tree and
// writes changed nodes back.
//
// Every node file (see pathfilter) is a node. The children of "a.md" are the
// node files in directory "a/". Siblings are ordered by their frontmatter
// sequence, then by name.
package filesystem

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/taigrr/treefind/internal/document"
	"github.com/taigrr/treefind/internal/frontmatter"
	"github.com/taigrr/treefind/internal/pathfilter"
	"github.com/taigrr/treefind/internal/types"
	"github.com/taigrr/treefind/internal/uri"
)

// selfWriteWindow is how long watch events for a file we just saved are ignored.
const selfWriteWindow = time.Second

// Service provides file system operations for a notebook.
type Service struct {
	notebookPath       string
	pathFilter         *pathfilter.PathFilter
	frontmatterHandler *frontmatter.Handler
	logger             *zap.Logger
	debounce           time.Duration

	mu    sync.RWMutex
	tree  *document.Tree
	files map[types.NodeID]string

	writeMu sync.Mutex
	written map[string]time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithDebounce sets how long Watch waits for changes to settle before reloading.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) { s.debounce = d }
}

// New creates a new Service.
func New(notebookPath string, pf *pathfilter.PathFilter, fh *frontmatter.Handler, opts ...Option) *Service {
	absPath, _ := filepath.Abs(notebookPath)
	if pf == nil {
		pf = pathfilter.New(nil)
	}
	if fh == nil {
		fh = frontmatter.New()
	}
	s := &Service{
		notebookPath:       absPath,
		pathFilter:         pf,
		frontmatterHandler: fh,
		logger:             zap.NewNop(),
		debounce:           200 * time.Millisecond,
		written:            make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotebookPath returns the absolute notebook path.
func (s *Service) NotebookPath() string {
	return s.notebookPath
}

// ResolvePath resolves a relative path within the notebook and validates it.
func (s *Service) ResolvePath(relativePath string) (string, error) {
	normalizedPath := strings.TrimPrefix(strings.TrimSpace(relativePath), "/")

	fullPath := filepath.Join(s.notebookPath, normalizedPath)
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	// Security check: ensure path is within the notebook
	relPath, err := filepath.Rel(s.notebookPath, absPath)
	if err != nil {
		return "", err
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal not allowed: %s", relativePath)
	}

	return absPath, nil
}

// Tree returns the most recently loaded tree, or nil.
func (s *Service) Tree() *document.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

// FilePath returns the notebook-relative file of a node.
func (s *Service) FilePath(id types.NodeID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.files[id]
	return p, ok
}

// URI returns a link to a node, or "" for an unknown node.
func (s *Service) URI(id types.NodeID) string {
	p, ok := s.FilePath(id)
	if !ok {
		return ""
	}
	return uri.GenerateNodeURI(s.notebookPath, p, id)
}

// Info returns the listing entry of a node with its link filled in.
func (s *Service) Info(id types.NodeID) (types.NodeInfo, bool) {
	tree := s.Tree()
	if tree == nil {
		return types.NodeInfo{}, false
	}
	info, ok := tree.Info(id)
	if ok {
		info.URI = s.URI(id)
	}
	return info, ok
}

// Load reads the notebook structure. Node bodies are read when first needed.
func (s *Service) Load() (*document.Tree, error) {
	info, err := os.Stat(s.notebookPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("notebook not found: %s", s.notebookPath)
		}
		return nil, fmt.Errorf("failed to open notebook: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("notebook is not a directory: %s", s.notebookPath)
	}

	files := make(map[types.NodeID]string)
	tree := document.New(document.WithLoader(s.loader(files)))
	if err := s.loadDir(tree, files, "", types.NoNode); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tree, s.files = tree, files
	s.mu.Unlock()

	s.logger.Info("notebook loaded", zap.String("path", s.notebookPath), zap.Int("nodes", tree.Len()))
	return tree, nil
}

type entry struct {
	path string
	stem string
	meta types.NodeMeta
}

func (s *Service) loadDir(tree *document.Tree, files map[types.NodeID]string, rel string, parent types.NodeID) error {
	dirEntries, err := os.ReadDir(filepath.Join(s.notebookPath, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("permission denied: %s", rel)
		}
		return fmt.Errorf("failed to list directory: %s - %w", rel, err)
	}

	var entries []entry
	for _, de := range dirEntries {
		p := path.Join(rel, de.Name())
		if !de.Type().IsRegular() || !s.pathFilter.IsNodeFile(p) {
			continue
		}
		stem := strings.TrimSuffix(de.Name(), s.pathFilter.Extension(p))

		var node frontmatter.Node
		parsed, err := s.readFile(p)
		if err != nil {
			// The node stays listed; reading its body reports the error.
			s.logger.Warn("unreadable node file", zap.String("path", p), zap.Error(err))
		} else {
			node = parsed.Node
		}
		meta := node.Meta(stem)
		if fi, err := de.Info(); err == nil {
			if meta.Modified.IsZero() {
				meta.Modified = fi.ModTime()
			}
			if meta.Created.IsZero() {
				meta.Created = fi.ModTime()
			}
		}
		entries = append(entries, entry{path: p, stem: stem, meta: meta})
	}

	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.meta.Sequence, b.meta.Sequence); c != 0 {
			return c
		}
		return strings.Compare(a.meta.Name, b.meta.Name)
	})

	for _, e := range entries {
		id, err := tree.Add(parent, e.meta, nil)
		if err != nil && e.meta.ID != types.NoNode {
			s.logger.Warn("duplicate node id, assigning a new one", zap.String("path", e.path), zap.Int64("id", int64(e.meta.ID)))
			e.meta.ID = types.NoNode
			id, err = tree.Add(parent, e.meta, nil)
		}
		if err != nil {
			return fmt.Errorf("failed to add node %s: %w", e.path, err)
		}
		files[id] = e.path

		childDir := path.Join(rel, e.stem)
		if !s.pathFilter.AllowsDir(childDir) {
			continue
		}
		if fi, err := os.Stat(filepath.Join(s.notebookPath, filepath.FromSlash(childDir))); err == nil && fi.IsDir() {
			if err := s.loadDir(tree, files, childDir, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) readFile(rel string) (frontmatter.Parsed, error) {
	fullPath, err := s.ResolvePath(rel)
	if err != nil {
		return frontmatter.Parsed{}, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return frontmatter.Parsed{}, fmt.Errorf("file not found: %s", rel)
		}
		if errors.Is(err, fs.ErrPermission) {
			return frontmatter.Parsed{}, fmt.Errorf("permission denied: %s", rel)
		}
		return frontmatter.Parsed{}, fmt.Errorf("failed to read file: %s - %w", rel, err)
	}
	parsed, err := s.frontmatterHandler.Parse(string(content))
	if err != nil {
		return frontmatter.Parsed{}, fmt.Errorf("%s: %w", rel, err)
	}
	return parsed, nil
}

// loader reads node bodies. files is not modified after Load returns.
func (s *Service) loader(files map[types.NodeID]string) document.Loader {
	return func(id types.NodeID) (document.Body, error) {
		rel, ok := files[id]
		if !ok {
			return document.Body{}, fmt.Errorf("no file for node %d", id)
		}
		parsed, err := s.readFile(rel)
		if err != nil {
			return document.Body{}, err
		}
		plain := strings.ReplaceAll(parsed.Body, string(types.Placeholder), "")
		body, err := document.Compose(plain, parsed.Node.EmbeddedObjects())
		if err != nil {
			return document.Body{}, fmt.Errorf("%s: %w", rel, err)
		}
		body.Links = parsed.Node.LinkRuns()
		return body, nil
	}
}

// Save writes every changed node back to its file and returns how many were
// written. Nodes that fail stay dirty.
func (s *Service) Save() (int, error) {
	s.mu.RLock()
	tree, files := s.tree, s.files
	s.mu.RUnlock()
	if tree == nil {
		return 0, errors.New("notebook not loaded")
	}

	var errs []error
	saved := 0
	for _, id := range tree.Dirty() {
		if err := s.saveNode(tree, id, files[id]); err != nil {
			errs = append(errs, err)
			continue
		}
		tree.MarkClean(id)
		saved++
	}
	if saved > 0 {
		s.logger.Info("notebook saved", zap.Int("nodes", saved))
	}
	return saved, errors.Join(errs...)
}

func (s *Service) saveNode(tree *document.Tree, id types.NodeID, rel string) error {
	if rel == "" {
		return fmt.Errorf("no file for node %d", id)
	}
	meta, _ := tree.Meta(id)
	body, err := tree.Body(id)
	if err != nil {
		return err
	}
	plain, _ := document.Decompose(body.Text)
	content, err := s.frontmatterHandler.Stringify(frontmatter.FromNode(meta, body.Objects, body.Links), plain)
	if err != nil {
		return fmt.Errorf("%s: %w", rel, err)
	}

	fullPath, err := s.ResolvePath(rel)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	s.written[fullPath] = time.Now()
	s.writeMu.Unlock()
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %s - %w", rel, err)
	}
	return nil
}

// Watch reloads the notebook when its files change on disk and hands the new
// tree to onReload. It returns when ctx is done. Changes are not reloaded
// while the current tree has unsaved nodes.
func (s *Service) Watch(ctx context.Context, onReload func(*document.Tree)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()

	err = filepath.WalkDir(s.notebookPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(s.notebookPath, p); rel != "." && !s.pathFilter.AllowsDir(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
	if err != nil {
		return fmt.Errorf("failed to watch notebook: %w", err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !s.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
			pending = time.After(s.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("notebook watch error", zap.Error(err))

		case <-pending:
			pending = nil
			if tree := s.Tree(); tree != nil && len(tree.Dirty()) > 0 {
				s.logger.Warn("notebook changed on disk with unsaved nodes, not reloading")
				continue
			}
			tree, err := s.Load()
			if err != nil {
				s.logger.Warn("notebook reload failed", zap.Error(err))
				continue
			}
			if onReload != nil {
				onReload(tree)
			}
		}
	}
}

func (s *Service) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(s.notebookPath, ev.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	if ev.Has(fsnotify.Write) {
		s.writeMu.Lock()
		at, ok := s.written[ev.Name]
		if ok && time.Since(at) >= selfWriteWindow {
			delete(s.written, ev.Name)
			ok = false
		}
		s.writeMu.Unlock()
		if ok {
			return false
		}
	}
	if s.pathFilter.IsNodeFile(rel) {
		return true
	}
	return filepath.Ext(rel) == "" && s.pathFilter.AllowsDir(rel)
}
