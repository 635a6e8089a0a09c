// Package search finds and replaces text across the nodes of a document
// tree, including the text carried by embedded objects.
package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taigrr/treefind/internal/pattern"
	"github.com/taigrr/treefind/internal/replace"
	"github.com/taigrr/treefind/internal/types"
)

// State is the lifecycle state of a Session.
type State int32

const (
	Idle State = iota
	Configured
	Scanning
	Found
	Exhausted
	AllCollected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Configured:
		return "configured"
	case Scanning:
		return "scanning"
	case Found:
		return "found"
	case Exhausted:
		return "exhausted"
	case AllCollected:
		return "all-collected"
	}
	return "unknown"
}

// Request starts a new search.
type Request struct {
	Options   types.SearchOptions
	Target    types.Target
	Selection types.Selection
}

// Result is the outcome of one session operation.
type Result struct {
	Found bool
	// Record is the reported match of a single-match operation.
	Record *types.MatchRecord
	// Records holds every match of a whole-scope operation, in visiting order.
	Records   []types.MatchRecord
	Count     int
	Cancelled bool
	// Skipped lists nodes or objects that were left out, with the reason.
	Skipped []error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithProgress sets the progress sink of whole-scope operations.
func WithProgress(p ProgressSink) Option {
	return func(s *Session) { s.progress = p }
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithPreviewWidth caps match previews at width grapheme clusters. Zero
// disables truncation.
func WithPreviewWidth(width int) Option {
	return func(s *Session) { s.previewWidth = width }
}

type hitKind int

const (
	hitNone hitKind = iota
	hitText
	hitObject
	hitName
)

type call struct {
	dir      types.Direction
	replace  bool
	iterated bool
}

// scanPlan says which parts of a node to search. A nil resume searches the
// whole content.
type scanPlan struct {
	content bool
	name    bool
	resume  *resume
}

var wholePlan = scanPlan{content: true, name: true}

// Session runs find and replace operations and remembers enough state for
// the repeat operations to continue where the last one stopped. Operations
// are not reentrant; a call made while another is running gets ErrBusy.
type Session struct {
	tree         DocumentTree
	content      NodeContent
	sink         replace.MutationSink
	progress     ProgressSink
	observer     Observer
	logger       *zap.Logger
	previewWidth int

	mu    sync.Mutex
	state atomic.Int32

	req      Request
	compiled *pattern.Compiled
	engine   *replace.Engine
	batch    *replace.Batch
	root     types.NodeID

	selection    types.Selection
	last         hitKind
	lastZero     bool
	lastReplaced bool

	anchors     []anchored
	anchorIndex int
	anchorDir   types.Direction
	anchorNode  types.NodeID

	records []types.MatchRecord
	cache   map[types.NodeID]*nodeText
	skipped []error
}

// NewSession creates a Session over a document. sink may be nil when the
// session is only used to find.
func NewSession(tree DocumentTree, content NodeContent, sink replace.MutationSink, opts ...Option) *Session {
	s := &Session{
		tree:         tree,
		content:      content,
		sink:         sink,
		progress:     nopProgress{},
		observer:     nopObserver{},
		logger:       zap.NewNop(),
		previewWidth: defaultPreviewWidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Selection returns the last reported match location.
func (s *Session) Selection() types.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Records returns the matches collected by the last whole-scope operation.
func (s *Session) Records() []types.MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.MatchRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Reset forgets the configured search and returns the session to Idle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = Request{}
	s.compiled = nil
	s.engine = nil
	s.batch = nil
	s.root = types.NoNode
	s.selection = types.Selection{}
	s.last, s.lastZero, s.lastReplaced = hitNone, false, false
	s.records = nil
	s.clearAnchors()
	s.setState(Idle)
}

// Find configures a search and reports the first match. With the
// AllListMatches scope it collects every match instead.
func (s *Session) Find(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "find", func() (Result, error) {
		if err := s.configure(req); err != nil {
			return Result{}, err
		}
		c := call{dir: req.Options.Direction}
		if req.Options.Scope == types.AllListMatches {
			return s.collect(ctx, c)
		}
		return s.next(ctx, c)
	})
}

// FindAll configures a search and collects every match in scope.
func (s *Session) FindAll(ctx context.Context, req Request) (Result, error) {
	req.Options.Scope = types.AllListMatches
	return s.run(ctx, "find_all", func() (Result, error) {
		if err := s.configure(req); err != nil {
			return Result{}, err
		}
		return s.collect(ctx, call{dir: req.Options.Direction})
	})
}

// Replace configures a search and replaces the first match, starting from
// the opposite bound of the selection so a selected match is replaced.
// With the AllListMatches scope it replaces every match.
func (s *Session) Replace(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "replace", func() (Result, error) {
		if err := s.configure(req); err != nil {
			return Result{}, err
		}
		c := call{dir: req.Options.Direction, replace: true}
		if req.Options.Scope == types.AllListMatches {
			return s.collect(ctx, c)
		}
		return s.next(ctx, c)
	})
}

// ReplaceAll configures a search and replaces every match in scope.
func (s *Session) ReplaceAll(ctx context.Context, req Request) (Result, error) {
	req.Options.Scope = types.AllListMatches
	return s.run(ctx, "replace_all", func() (Result, error) {
		if err := s.configure(req); err != nil {
			return Result{}, err
		}
		return s.collect(ctx, call{dir: req.Options.Direction, replace: true})
	})
}

// FindAgain reports the next match in the configured direction.
func (s *Session) FindAgain(ctx context.Context) (Result, error) {
	return s.repeat(ctx, "find_again", false, false)
}

// FindBack reports the next match in the opposite direction.
func (s *Session) FindBack(ctx context.Context) (Result, error) {
	return s.repeat(ctx, "find_back", true, false)
}

// ReplaceAgain replaces the next match in the configured direction. After a
// find, the match it reported is replaced first.
func (s *Session) ReplaceAgain(ctx context.Context) (Result, error) {
	return s.repeat(ctx, "replace_again", false, true)
}

func (s *Session) repeat(ctx context.Context, op string, back, repl bool) (Result, error) {
	return s.run(ctx, op, func() (Result, error) {
		if s.compiled == nil {
			return Result{}, ErrNoPreviousSearch
		}
		dir := s.req.Options.Direction
		if back {
			dir = dir.Reverse()
		}
		return s.next(ctx, call{dir: dir, replace: repl, iterated: true})
	})
}

func (s *Session) run(ctx context.Context, op string, fn func() (Result, error)) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer s.mu.Unlock()

	started := time.Now()
	s.skipped = nil
	s.cache = make(map[types.NodeID]*nodeText)

	res, err := fn()
	res.Skipped = append(res.Skipped, s.skipped...)

	elapsed := time.Since(started)
	s.observer.OperationDone(op, res.Count, elapsed, res.Cancelled)
	if err != nil {
		s.logger.Debug("search operation failed", zap.String("op", op), zap.Error(err))
	} else {
		s.logger.Debug("search operation finished",
			zap.String("op", op),
			zap.Int("matches", res.Count),
			zap.Int("skipped", len(res.Skipped)),
			zap.Bool("cancelled", res.Cancelled),
			zap.Duration("elapsed", elapsed),
			zap.Stringer("state", s.State()),
		)
	}
	return res, err
}

func (s *Session) configure(req Request) error {
	opts := req.Options
	p, err := pattern.Compile(opts.Pattern, pattern.FlagsFrom(opts))
	if err != nil {
		s.compiled = nil
		s.setState(Idle)
		return err
	}
	if req.Target == types.TargetSelectedNode && req.Selection.Node == types.NoNode {
		s.setState(Idle)
		return &SearchError{Message: "no node selected"}
	}
	if req.Target == types.TargetAllNodes && opts.OnlySelectedSubtree && req.Selection.Node == types.NoNode {
		s.setState(Idle)
		return &SearchError{Message: "subtree search needs a selected node"}
	}
	s.req = req
	s.compiled = p
	s.engine = replace.New(s.sink, p, opts.Replacement)
	s.batch = s.engine.NewBatch()
	s.root = types.NoNode
	if req.Target == types.TargetAllNodes && opts.OnlySelectedSubtree {
		s.root = req.Selection.Node
	}
	s.selection = req.Selection
	s.last, s.lastZero, s.lastReplaced = hitNone, false, false
	s.records = nil
	s.clearAnchors()
	s.setState(Configured)

	s.logger.Debug("search configured",
		zap.String("pattern", opts.Pattern),
		zap.Bool("regex", opts.UseRegex),
		zap.Stringer("direction", opts.Direction),
		zap.Stringer("scope", opts.Scope),
		zap.Int64("node", int64(req.Selection.Node)),
	)
	return nil
}

// next reports one match, resuming from the session's selection when the
// call repeats a search or the scope starts at the selection.
func (s *Session) next(ctx context.Context, c call) (Result, error) {
	if c.replace && s.sink == nil {
		return Result{}, &SearchError{Message: "session has no mutation sink"}
	}
	s.setState(Scanning)

	if c.iterated && len(s.anchors) > 0 {
		step := 1
		if c.dir != s.anchorDir {
			step = -1
		}
		idx := s.anchorIndex
		if !c.replace || s.lastReplaced {
			idx += step
		}
		if res, ok, err := s.takeAnchor(s.anchorNode, idx, step, c); ok {
			return s.finish(res, err)
		}
	}

	start, plan := s.origin(c)
	w := s.walker(start, c.dir)
	first := true
	for n, ok := w.Next(); ok; n, ok = w.Next() {
		if s.cancelled(ctx) {
			s.setState(Exhausted)
			return Result{Cancelled: true}, nil
		}
		p := wholePlan
		if first {
			p, first = plan, false
		}
		res, found, err := s.scanNode(n, p, c)
		if found || err != nil {
			return s.finish(res, err)
		}
	}
	s.setState(Exhausted)
	return Result{}, nil
}

func (s *Session) finish(res Result, err error) (Result, error) {
	if res.Found {
		s.setState(Found)
	} else {
		s.setState(Exhausted)
	}
	return res, err
}

// origin picks the first node of a single-match walk and how much of it to
// search.
func (s *Session) origin(c call) (types.NodeID, scanPlan) {
	sel := s.selection
	fromSelection := c.iterated || s.req.Options.Scope == types.FirstFromSelection
	if sel.Node == types.NoNode || !fromSelection {
		return s.scopeStart(c.dir), wholePlan
	}

	opposite := c.replace && !s.lastReplaced
	if s.last == hitName {
		// A name hit means the node has no content match left to visit.
		if opposite {
			return sel.Node, wholePlan
		}
		return sel.Node, scanPlan{}
	}
	r := s.resumePoint(c.dir, opposite)
	return sel.Node, scanPlan{content: true, name: s.last == hitNone, resume: &r}
}

// resumePoint derives where to continue inside the selected node. A fresh
// replace starts from the opposite bound of the selection.
func (s *Session) resumePoint(dir types.Direction, opposite bool) resume {
	sel := s.selection
	if opposite {
		if dir == types.Forward {
			return resume{offset: sel.Start, inclusive: true}
		}
		return resume{offset: sel.End}
	}
	switch s.last {
	case hitObject:
		return resume{offset: sel.Start}
	case hitText:
		if dir == types.Forward {
			return resume{offset: sel.End, inclusive: true, strict: s.lastZero}
		}
		return resume{offset: sel.Start, inclusive: true, strict: s.lastZero}
	}
	if dir == types.Forward {
		return resume{offset: sel.End, inclusive: true}
	}
	return resume{offset: sel.Start}
}

// scopeStart returns the first node of the whole scope in direction dir.
func (s *Session) scopeStart(dir types.Direction) types.NodeID {
	if s.req.Target == types.TargetSelectedNode {
		return s.req.Selection.Node
	}
	if s.root != types.NoNode {
		return s.root
	}
	var n types.NodeID
	if dir == types.Forward {
		n, _ = s.tree.FirstNode()
	} else {
		n, _ = s.tree.LastTopLevelNode()
	}
	return n
}

func (s *Session) walker(start types.NodeID, dir types.Direction) *Walker {
	if s.req.Target == types.TargetSelectedNode {
		return SingleNode(start)
	}
	return NewWalker(s.tree, start, s.root, dir, s.req.Options.OverrideExclusions)
}

func (s *Session) scopeSize() int {
	if s.req.Target == types.TargetSelectedNode {
		return 1
	}
	return CountNodes(s.tree, s.root, s.req.Options.OverrideExclusions)
}

// eligible applies the exclusion flags and time filters to a node.
func (s *Session) eligible(n types.NodeID) bool {
	opts := s.req.Options
	if !opts.OverrideExclusions && s.tree.IsExcludedFromSearch(n) {
		s.observer.NodeSkipped("excluded")
		return false
	}
	if !opts.WithinTimeFilter(s.content.CreationTime(n), s.content.ModificationTime(n)) {
		s.observer.NodeSkipped("time_filter")
		return false
	}
	s.observer.NodeScanned()
	return true
}

func (s *Session) nameScope() bool {
	return s.req.Target == types.TargetAllNodes && s.req.Options.SearchNameAndTags
}

func (s *Session) contentScope() bool {
	return s.req.Target == types.TargetSelectedNode || s.req.Options.Content()
}

// scanNode looks for one match in node n. The name and tags are only
// tried when the node has no content match.
func (s *Session) scanNode(n types.NodeID, plan scanPlan, c call) (Result, bool, error) {
	if !s.eligible(n) {
		return Result{}, false, nil
	}
	var nt *nodeText
	if s.contentScope() {
		loaded, err := s.load(n)
		if err != nil {
			s.skip(n, err)
		}
		nt = loaded
	}
	if nt != nil && plan.content {
		r := wholeNode(c.dir, nt.tr.DisplayLen())
		if plan.resume != nil {
			r = *plan.resume
		}
		for {
			hit, ok := s.searchNode(n, nt, r, c.dir)
			if !ok {
				break
			}
			if hit.text != nil {
				res, err := s.reportText(n, nt, hit.text, c)
				return res, true, err
			}
			s.anchors = hit.objects
			s.anchorDir = c.dir
			s.anchorNode = n
			s.batch = s.engine.NewBatch()
			if res, ok, err := s.takeAnchor(n, 0, 1, c); ok {
				return res, true, err
			}
			// Every entry was dropped; continue after the last object.
			r = resume{offset: s.selection.Start}
		}
	}
	if plan.name && s.nameScope() && !s.hasContentMatch(n, nt) {
		if res, ok, err := s.nameHit(n, c); ok || err != nil {
			return res, true, err
		}
	}
	return Result{}, false, nil
}

// hasContentMatch reports whether node n has any content match.
func (s *Session) hasContentMatch(n types.NodeID, nt *nodeText) bool {
	if nt == nil {
		return false
	}
	_, ok := s.searchNode(n, nt, wholeNode(types.Forward, nt.tr.DisplayLen()), types.Forward)
	return ok
}

// takeAnchor reports anchored entries starting at idx and moving by step,
// dropping entries whose object no longer resolves. It returns false once
// the list is exhausted, leaving the selection on the last object tried.
func (s *Session) takeAnchor(n types.NodeID, idx, step int, c call) (Result, bool, error) {
	for ; idx >= 0 && idx < len(s.anchors); idx += step {
		a := s.anchors[idx]
		s.anchorIndex = idx
		s.selection = types.Selection{Node: n, Start: a.span.Start, End: a.span.End}
		s.last, s.lastZero = hitObject, false

		res, err := s.reportObject(n, a, c)
		var mismatch *types.ObjectMismatchError
		if errors.As(err, &mismatch) {
			s.skip(n, err)
			continue
		}
		return res, true, err
	}
	s.clearAnchors()
	return Result{}, false, nil
}

func (s *Session) reportObject(n types.NodeID, a anchored, c call) (Result, error) {
	nt, _ := s.load(n)
	local := s.batch.Shifted(a.match)
	s.lastReplaced = c.replace

	if c.replace {
		if s.content.IsReadOnly(n) {
			rec := s.objectRecord(n, nt, a, local)
			return Result{Found: true, Count: 1, Record: &rec}, &types.ReadOnlyError{Node: n, Name: s.content.NameOf(n)}
		}
		span, err := s.batch.Apply(a.match)
		if err != nil {
			return Result{}, err
		}
		local = span
		s.observer.Replaced(a.match.Handle.Kind.String())
	}

	rec := s.objectRecord(n, nt, a, local)
	rec.Replaced = c.replace
	return Result{Found: true, Count: 1, Record: &rec}, nil
}

func (s *Session) reportText(n types.NodeID, nt *nodeText, tm *textMatch, c call) (Result, error) {
	s.clearAnchors()
	rec := s.textRecord(n, nt, tm.span)
	s.selection = types.Selection{Node: n, Start: tm.span.Start, End: tm.span.End}
	s.last, s.lastZero = hitText, tm.span.Start == tm.span.End
	s.lastReplaced = c.replace

	if !c.replace {
		return Result{Found: true, Count: 1, Record: &rec}, nil
	}
	if s.content.IsReadOnly(n) {
		return Result{Found: true, Count: 1, Record: &rec}, &types.ReadOnlyError{Node: n, Name: rec.NodeName}
	}
	end, err := s.engine.ReplaceText(n, tm.span.Start, tm.span.End, nt.original, tm.loc)
	if err != nil {
		return Result{}, err
	}
	s.invalidate(n)
	s.observer.Replaced("text")

	rec.End, rec.Replaced = end, true
	s.selection.End = end
	s.lastZero = s.lastZero && end == tm.span.Start
	return Result{Found: true, Count: 1, Record: &rec}, nil
}

func (s *Session) nameHit(n types.NodeID, c call) (Result, bool, error) {
	if !s.matchName(n) {
		return Result{}, false, nil
	}
	s.clearAnchors()
	nt, _ := s.load(n)
	rec := s.nameRecord(n, nt)
	s.selection = types.Selection{Node: n}
	s.last, s.lastZero = hitName, false
	s.lastReplaced = c.replace

	if c.replace {
		if s.content.IsReadOnly(n) {
			return Result{Found: true, Count: 1, Record: &rec}, true, &types.ReadOnlyError{Node: n, Name: rec.NodeName}
		}
		if err := s.renameNode(n, &rec); err != nil {
			return Result{}, true, err
		}
	}
	return Result{Found: true, Count: 1, Record: &rec}, true, nil
}

func (s *Session) renameNode(n types.NodeID, rec *types.MatchRecord) error {
	name, changed, err := s.engine.ReplaceName(n, rec.NodeName)
	if err != nil {
		return err
	}
	if changed {
		rec.NodeName = name
		rec.NodePath = s.nodePath(n)
		rec.Replaced = true
		s.observer.Replaced("name")
	}
	return nil
}

// collect walks the whole scope and records every match, replacing each one
// when c.replace is set.
func (s *Session) collect(ctx context.Context, c call) (Result, error) {
	if c.replace && s.sink == nil {
		return Result{}, &SearchError{Message: "session has no mutation sink"}
	}
	s.setState(Scanning)

	var res Result
	total := s.scopeSize()
	processed := 0
	w := s.walker(s.scopeStart(c.dir), c.dir)
	for n, ok := w.Next(); ok; n, ok = w.Next() {
		if s.cancelled(ctx) {
			res.Cancelled = true
			break
		}
		if !s.collectNode(ctx, n, c, &res) {
			res.Cancelled = true
			break
		}
		processed++
		s.progress.OnProgress(processed, total, len(res.Records))
	}

	res.Count = len(res.Records)
	res.Found = res.Count > 0
	s.records = res.Records
	s.setState(AllCollected)
	return res, nil
}

// collectNode returns false when the operation was cancelled.
func (s *Session) collectNode(ctx context.Context, n types.NodeID, c call, res *Result) bool {
	if !s.eligible(n) {
		return true
	}
	readOnly := c.replace && s.content.IsReadOnly(n)
	roReported := false
	markReadOnly := func() {
		if readOnly && !roReported {
			roReported = true
			s.skip(n, &types.ReadOnlyError{Node: n, Name: s.content.NameOf(n)})
		}
	}

	before := len(res.Records)
	if s.contentScope() {
		if !s.collectContent(ctx, n, c, readOnly, markReadOnly, res) {
			return false
		}
	}
	if s.nameScope() && len(res.Records) == before {
		s.collectName(n, c, readOnly, markReadOnly, res)
	}
	return true
}

func (s *Session) collectName(n types.NodeID, c call, readOnly bool, markReadOnly func(), res *Result) {
	if !s.matchName(n) {
		return
	}
	nt, _ := s.load(n)
	rec := s.nameRecord(n, nt)
	if c.replace {
		if readOnly {
			markReadOnly()
		} else if err := s.renameNode(n, &rec); err != nil {
			s.skip(n, err)
		}
	}
	res.Records = append(res.Records, rec)
}

func (s *Session) collectContent(ctx context.Context, n types.NodeID, c call, readOnly bool, markReadOnly func(), res *Result) bool {
	nt, err := s.load(n)
	if err != nil {
		s.skip(n, err)
		return true
	}

	r := wholeNode(c.dir, nt.tr.DisplayLen())
	for {
		if s.cancelled(ctx) {
			return false
		}
		hit, ok := s.searchNode(n, nt, r, c.dir)
		if !ok {
			return true
		}
		if c.replace && readOnly {
			markReadOnly()
		}

		if hit.objects != nil {
			s.collectObjects(n, nt, hit.objects, c, readOnly, res)
			r = resume{offset: hit.objects[len(hit.objects)-1].span.Start}
			continue
		}

		tm := hit.text
		rec := s.textRecord(n, nt, tm.span)
		zero := tm.span.Start == tm.span.End
		end := tm.span.End
		if c.replace && !readOnly {
			newEnd, err := s.engine.ReplaceText(n, tm.span.Start, tm.span.End, nt.original, tm.loc)
			if err != nil {
				s.skip(n, err)
				return true
			}
			s.observer.Replaced("text")
			rec.End, rec.Replaced = newEnd, true
			end, zero = newEnd, zero && newEnd == tm.span.Start

			s.invalidate(n)
			if nt, err = s.load(n); err != nil {
				res.Records = append(res.Records, rec)
				s.skip(n, err)
				return true
			}
		}
		res.Records = append(res.Records, rec)

		if c.dir == types.Forward {
			r = resume{offset: end, inclusive: true, strict: zero}
		} else {
			r = resume{offset: tm.span.Start, inclusive: true, strict: zero}
		}
	}
}

// collectObjects records an anchored list. Replacements run in document
// order through one batch so that later matches in the same object and cell
// are shifted by the length change of earlier ones.
func (s *Session) collectObjects(n types.NodeID, nt *nodeText, list []anchored, c call, readOnly bool, res *Result) {
	spans := make([]types.MatchSpan, len(list))
	for i, a := range list {
		spans[i] = a.match.Span
	}
	dropped := make(map[int]bool)

	if c.replace && !readOnly {
		batch := s.engine.NewBatch()
		apply := func(i int) {
			span, err := batch.Apply(list[i].match)
			if err != nil {
				s.skip(n, err)
				dropped[i] = true
				return
			}
			spans[i] = span
			s.observer.Replaced(list[i].match.Handle.Kind.String())
		}
		if c.dir == types.Forward {
			for i := range list {
				apply(i)
			}
		} else {
			for i := len(list) - 1; i >= 0; i-- {
				apply(i)
			}
		}
	}

	for i, a := range list {
		if dropped[i] {
			continue
		}
		rec := s.objectRecord(n, nt, a, spans[i])
		rec.Replaced = c.replace && !readOnly
		res.Records = append(res.Records, rec)
	}
}

func (s *Session) load(n types.NodeID) (*nodeText, error) {
	if nt, ok := s.cache[n]; ok {
		return nt, nil
	}
	display, err := s.content.TextStream(n)
	if err != nil {
		var unavailable *types.ContentUnavailableError
		if !errors.As(err, &unavailable) {
			err = &types.ContentUnavailableError{Node: n, Err: err}
		}
		return nil, err
	}
	nt := prepareText(display, s.compiled)
	s.cache[n] = nt
	return nt, nil
}

func (s *Session) invalidate(n types.NodeID) {
	delete(s.cache, n)
}

func (s *Session) skip(n types.NodeID, err error) {
	s.skipped = append(s.skipped, err)
	reason := "error"
	var (
		unavailable *types.ContentUnavailableError
		readOnly    *types.ReadOnlyError
		mismatch    *types.ObjectMismatchError
	)
	switch {
	case errors.As(err, &unavailable):
		reason = "content_unavailable"
	case errors.As(err, &readOnly):
		reason = "read_only"
	case errors.As(err, &mismatch):
		reason = "object_mismatch"
	}
	s.observer.NodeSkipped(reason)
	s.logger.Warn("skipping match location",
		zap.Int64("node", int64(n)),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (s *Session) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || s.progress.IsCancelled()
}

func (s *Session) clearAnchors() {
	s.anchors = nil
	s.anchorIndex = 0
	s.anchorNode = types.NoNode
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}
