// Package api exposes the classification engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/fredhutch/phiscan/internal/config"
	"github.com/fredhutch/phiscan/internal/engine"
	"github.com/fredhutch/phiscan/internal/patterns"
	"github.com/fredhutch/phiscan/internal/queue"
	"github.com/fredhutch/phiscan/internal/store"
)

type Server struct {
	cfg    *config.Config
	eng    *engine.Engine
	db     *store.Store
	jobs   *queue.Queue
	router chi.Router
	cron   *cron.Cron
	logger *slog.Logger
	srv    *http.Server
}

type Option func(*Server)

// WithStore enables result persistence and the pattern CRUD endpoints.
func WithStore(db *store.Store) Option {
	return func(s *Server) { s.db = db }
}

// WithQueue enables async batch endpoints.
func WithQueue(q *queue.Queue) Option {
	return func(s *Server) { s.jobs = q }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func New(cfg *config.Config, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		eng:    eng,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)

		if s.jobs != nil && s.db != nil {
			r.Post("/batches", s.handleCreateBatch)
			r.Get("/batches/{id}", s.handleGetBatch)
			r.Get("/batches/{id}/results", s.handleBatchResults)
			r.Get("/batches/{id}/report", s.handleBatchReport)
			r.Get("/queue/stats", s.handleQueueStats)
		}

		if s.db != nil {
			r.Get("/patterns", s.handleListPatterns)
			r.Post("/patterns", s.handleCreatePattern)
			r.Delete("/patterns/{id}", s.handleDeletePattern)
			r.Post("/patterns/reload", s.handleReloadPatterns)
		}
	})

	return r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the context is canceled, then shuts down gracefully.
// The cron schedule, when configured, rebuilds the pattern snapshot and
// sweeps stale queue jobs.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Library.ReloadSchedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.cfg.Library.ReloadSchedule, s.scheduledReload); err != nil {
			return fmt.Errorf("scheduling pattern reload: %w", err)
		}
		if s.jobs != nil {
			_, _ = s.cron.AddFunc("@every 5m", s.scheduledCleanup)
		}
		s.cron.Start()
		defer s.cron.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// scheduledReload rebuilds the library from config plus stored patterns
// and swaps it into the engine.
func (s *Server) scheduledReload() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.reloadPatterns(ctx); err != nil {
		s.logger.Error("scheduled pattern reload failed", "error", err)
	}
}

func (s *Server) reloadPatterns(ctx context.Context) error {
	var defs []patterns.Def
	if s.db != nil {
		var err error
		defs, err = s.db.EnabledDefs(ctx)
		if err != nil {
			return fmt.Errorf("loading stored patterns: %w", err)
		}
	}
	lib, err := s.cfg.BuildLibrary(defs)
	if err != nil {
		return err
	}
	s.eng.Reload(lib.Snapshot())
	return nil
}

func (s *Server) scheduledCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cleaned, err := s.jobs.CleanupStaleJobs(ctx, s.cfg.Worker.StaleJobTimeout)
	if err != nil {
		s.logger.Error("stale job cleanup failed", "error", err)
		return
	}
	if cleaned > 0 {
		s.logger.Info("requeued stale jobs", "count", cleaned)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
