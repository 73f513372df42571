// Package server exposes workbench sessions over HTTP.
//
// Each session is a persisted composition. The server keeps one live
// workbench per session it has touched and writes the session back to the
// store after every change, so a restarted server resumes where it left
// off.
package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/pipeline"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
	"github.com/yczddgj/chartgalaxy/pkg/refine"
	"github.com/yczddgj/chartgalaxy/pkg/sampler"
	"github.com/yczddgj/chartgalaxy/pkg/session"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 8 << 20

// Config wires the server's dependencies. Store and Loader are required.
type Config struct {
	Store     session.Store
	Loader    compositor.Loader
	Workbench []workbench.Option
	// Refiner enables the refine and gallery endpoints.
	Refiner *refine.Runner
	// Pipeline serves the stateless render endpoint. Defaults to a
	// cacheless runner over Loader.
	Pipeline *pipeline.Runner
	Placer   *placer.Placer
	// SessionTTL is how long an untouched session lives.
	SessionTTL time.Duration
	Logger     *log.Logger
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	router chi.Router
	logger *log.Logger

	mu   sync.Mutex
	live map[string]*entry
}

// entry is a live session. mu serializes writes of sess back to the store.
type entry struct {
	mu   sync.Mutex
	wb   *workbench.Workbench
	sess *session.Session
}

// New builds a server from cfg.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = pipeline.NewRunner(cfg.Loader, nil, nil, cfg.Logger)
	}
	if cfg.Placer == nil {
		cfg.Placer = placer.New(sampler.DefaultParams())
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		live:   make(map[string]*entry),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/place", s.handlePlace)
		r.Post("/render", s.handleRender)
		r.Get("/gallery", s.handleGallery)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Get("/state", s.handleState)
				r.Post("/compose", s.handleCompose)
				r.Post("/reset", s.handleReset)
				r.Post("/undo", s.handleUndo)
				r.Post("/redo", s.handleQuickRedo)
				r.Patch("/elements/{element}", s.handleModify)
				r.Delete("/elements/{element}", s.handleDeleteElement)
				r.Get("/export.png", s.handleExport)
				r.Get("/base.png", s.handleCaptureBase)
				r.Post("/refine", s.handleRefine)
			})
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdown)
	s.Close()
	return err
}

// Close stops every live workbench.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.live {
		e.wb.Close()
		delete(s.live, id)
	}
	return nil
}

// open returns the live entry for id, loading it from the store on first
// use.
func (s *Server) open(ctx context.Context, id string) (*entry, error) {
	if err := errors.ValidateSessionID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	e, ok := s.live[id]
	s.mu.Unlock()
	if ok {
		if !e.expired() {
			return e, nil
		}
		s.evict(id, e)
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}

	sess, err := s.cfg.Store.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load session")
	}
	if sess == nil {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	wb := workbench.New(s.cfg.Loader, s.workbenchOptions()...)
	if err := wb.Open(ctx, sess); err != nil {
		wb.Close()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live[id]; ok {
		wb.Close()
		return existing, nil
	}
	e = &entry{wb: wb, sess: sess}
	s.live[id] = e
	return e, nil
}

func (s *Server) workbenchOptions() []workbench.Option {
	opts := append([]workbench.Option(nil), s.cfg.Workbench...)
	opts = append(opts, workbench.WithLogger(s.logger))
	if s.cfg.Refiner != nil {
		opts = append(opts, workbench.WithRefiner(s.cfg.Refiner))
	}
	return opts
}

// persist writes the workbench state back to the store. An entry whose
// session expired while it was in use is not written back.
func (s *Server) persist(ctx context.Context, e *entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.IsExpired() {
		return errors.New(errors.ErrCodeSessionNotFound, "session %s not found", e.sess.ID)
	}
	if err := e.wb.Save(e.sess); err != nil {
		return err
	}
	e.sess.Touch(s.cfg.SessionTTL)
	if err := s.cfg.Store.Set(ctx, e.sess); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "save session")
	}
	return nil
}

func (s *Server) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.live[id]; ok {
		e.wb.Close()
		delete(s.live, id)
	}
}

// evict drops id only if it still maps to e.
func (s *Server) evict(id string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live[id] == e {
		e.wb.Close()
		delete(s.live, id)
	}
}

func (e *entry) expired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.IsExpired()
}

// Cleanup closes live workbenches whose session has expired, then purges
// expired sessions from the store.
func (s *Server) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	var stale []string
	for id, e := range s.live {
		if e.expired() {
			e.wb.Close()
			delete(s.live, id)
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()
	if len(stale) > 0 {
		s.logger.Debug("evicted expired sessions", "count", len(stale))
	}
	return s.cfg.Store.Cleanup(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
