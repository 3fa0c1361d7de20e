// Package server exposes the build pipeline as an HTTP job service.
//
// A client starts a build, follows its progress as server-sent events and
// downloads the result once it is complete:
//
//	POST /api/v2/graph/start             -> {"job_id": "..."}
//	GET  /api/v2/graph/{id}               job status
//	GET  /api/v2/graph/{id}/progress      SSE: data: {"stage": "...", "progress": 42}
//	GET  /api/v2/graph/{id}/result        gzip JSON graph document
//	GET  /api/v2/graph/{id}/snapshot      GTOL snapshot
//	GET  /api/v2/graph/{id}/search?q=...  label search
//	DELETE /api/v2/graph/{id}             cancel
//
// Jobs live for one hour by default.
package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/canopyviz/canopy/pkg/pipeline"
)

// MaxRequestBody bounds start request bodies, which may carry Newick text.
const MaxRequestBody = 64 << 20

// Options configures a Server.
type Options struct {
	Addr string
	// DefaultInput is built when a start request names no input.
	DefaultInput string
	// DataDir is the directory "file" inputs are resolved in. Empty
	// disables file inputs.
	DataDir string
	// Template supplies the layout options of every job; requests may
	// override Polar, Strict, Limit and LeafStep.
	Template pipeline.Options
	JobTTL   time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics           http.Handler
	ReadHeaderTimeout time.Duration
	Logger            *log.Logger
}

// Server is the HTTP job service.
type Server struct {
	opts   Options
	runner *pipeline.Runner
	jobs   *pipeline.JobStore
	logger *log.Logger
	router chi.Router

	// base is the parent context of every job.
	base context.Context
}

// New builds a server running jobs on runner.
func New(runner *pipeline.Runner, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = runner.Logger
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 10 * time.Second
	}
	if opts.DataDir != "" {
		if abs, err := filepath.Abs(opts.DataDir); err == nil {
			opts.DataDir = abs
		}
	}
	s := &Server{
		opts:   opts,
		runner: runner,
		jobs:   pipeline.NewJobStore(runner, opts.JobTTL),
		logger: opts.Logger,
		base:   context.Background(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealthz)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/api/v2/graph", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Delete("/", s.handleCancel)
			r.Get("/progress", s.handleProgress)
			r.Get("/result", s.handleResult)
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/search", s.handleSearch)
		})
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Jobs returns the job store.
func (s *Server) Jobs() *pipeline.JobStore { return s.jobs }

// Run serves until ctx is done, then shuts down gracefully within five
// seconds and cancels the remaining jobs.
func (s *Server) Run(ctx context.Context) error {
	s.base = ctx
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
	}

	go s.jobs.Run(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.jobs.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	s.jobs.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
