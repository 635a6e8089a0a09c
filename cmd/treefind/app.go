package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taigrr/treefind/internal/config"
	"github.com/taigrr/treefind/internal/document"
	"github.com/taigrr/treefind/internal/filesystem"
	"github.com/taigrr/treefind/internal/frontmatter"
	"github.com/taigrr/treefind/internal/logger"
	"github.com/taigrr/treefind/internal/metrics"
	"github.com/taigrr/treefind/internal/pathfilter"
	"github.com/taigrr/treefind/internal/search"
)

// app holds the services shared by the MCP tools and the find command.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	fs       *filesystem.Service
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	// mu is held for one tool call; the progress relay belongs to its holder.
	mu       sync.Mutex
	session  *search.Session
	progress *progressRelay
}

func setup(flags *rootFlags, args []string) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Notebook.Path = args[0]
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.httpAddr != "" {
		cfg.Server.HTTPAddr = flags.httpAddr
	}
	if flags.watch {
		cfg.Notebook.Watch = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

func newApp(cfg config.Config, log *zap.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		cfg:      cfg,
		logger:   log,
		registry: reg,
		metrics:  metrics.New(reg),
		sessions: make(map[string]*sessionEntry),
	}
	a.fs = filesystem.New(
		cfg.Notebook.Path,
		pathfilter.New(cfg.Notebook.PathFilter()),
		frontmatter.New(),
		filesystem.WithLogger(log.Named("notebook")),
		filesystem.WithDebounce(time.Duration(cfg.Notebook.WatchDebounceMS)*time.Millisecond),
	)
	if _, err := a.fs.Load(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.Notebook.Watch {
		go func() {
			if err := a.fs.Watch(ctx, a.reload); err != nil {
				a.logger.Error("notebook watch stopped", zap.Error(err))
			}
		}()
	}

	server := a.newMCPServer()
	if a.cfg.Server.HTTPAddr == "" {
		a.logger.Info("serving MCP over stdio", zap.String("notebook", a.fs.NotebookPath()))
		if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
			return fmt.Errorf("error running server: %w", err)
		}
		return nil
	}
	return a.serveHTTP(ctx, server)
}

func (a *app) newMCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "treefind",
		Version: version,
	}, nil)
	a.registerTools(server)
	return server
}

func (a *app) serveHTTP(ctx context.Context, server *mcp.Server) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           a.router(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving MCP over HTTP", zap.String("addr", srv.Addr), zap.String("notebook", a.fs.NotebookPath()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("error running server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Server.ShutdownSec)*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *app) router(server *mcp.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Middleware())

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, a.cfg.Server.MetricsPath, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	r.Handle("/mcp", mcpHandler)
	return r
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Nodes    int    `json:"nodes"`
	Sessions int    `json:"sessions"`
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: version}
	if tree := a.fs.Tree(); tree != nil {
		resp.Nodes = tree.Len()
	}
	a.mu.Lock()
	resp.Sessions = len(a.sessions)
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// reload drops every session; they refer to the replaced tree.
func (a *app) reload(tree *document.Tree) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for range a.sessions {
		a.metrics.SessionClosed()
	}
	a.sessions = make(map[string]*sessionEntry)
	a.logger.Info("notebook reloaded, search sessions reset", zap.Int("nodes", tree.Len()))
}

// openSession returns the session with the given id, or a new one when id is empty.
func (a *app) openSession(id string) (string, *sessionEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id != "" {
		e, ok := a.sessions[id]
		if !ok {
			return "", nil, fmt.Errorf("unknown session %q", id)
		}
		return id, e, nil
	}

	tree := a.fs.Tree()
	relay := &progressRelay{}
	e := &sessionEntry{
		session: search.NewSession(tree, tree, tree,
			search.WithLogger(a.logger.Named("search")),
			search.WithObserver(a.metrics),
			search.WithProgress(relay),
			search.WithPreviewWidth(a.cfg.Search.PreviewWidth),
		),
		progress: relay,
	}
	id = uuid.NewString()
	a.sessions[id] = e
	a.metrics.SessionOpened()
	return id, e, nil
}

// acquireSession is openSession with the session's call lock held. A session
// already serving a call yields search.ErrBusy.
func (a *app) acquireSession(id string) (string, *sessionEntry, error) {
	id, e, err := a.openSession(id)
	if err != nil {
		return "", nil, err
	}
	if !e.mu.TryLock() {
		return "", nil, fmt.Errorf("session %q: %w", id, search.ErrBusy)
	}
	return id, e, nil
}

func (a *app) closeSession(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[id]; !ok {
		return false
	}
	delete(a.sessions, id)
	a.metrics.SessionClosed()
	return true
}

// progressRelay forwards session progress to the MCP client of the running call.
type progressRelay struct {
	mu     sync.Mutex
	ctx    context.Context
	notify func(processed, total, matches int)
}

func (p *progressRelay) bind(ctx context.Context, req *mcp.CallToolRequest) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctx = ctx
	if req != nil && req.Params != nil && req.Session != nil {
		if token := req.Params.GetProgressToken(); token != nil {
			p.notify = func(processed, total, matches int) {
				_ = req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
					ProgressToken: token,
					Progress:      float64(processed),
					Total:         float64(total),
					Message:       fmt.Sprintf("%d matches", matches),
				})
			}
		}
	}
	return func() {
		p.mu.Lock()
		p.ctx, p.notify = nil, nil
		p.mu.Unlock()
	}
}

func (p *progressRelay) OnProgress(processed, total, matches int) {
	p.mu.Lock()
	notify := p.notify
	p.mu.Unlock()
	if notify != nil {
		notify(processed, total, matches)
	}
}

func (p *progressRelay) IsCancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx != nil && p.ctx.Err() != nil
}
