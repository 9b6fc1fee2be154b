// Package httpapi exposes analysis sessions, bulk batches, progress streams
// and report exports over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/foxseedlab/callinsight/internal/bulk"
	"github.com/foxseedlab/callinsight/internal/config"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// BatchStarter starts a bulk run in the background. *bulk.Orchestrator
// implements it.
type BatchStarter interface {
	Start(ctx context.Context, req bulk.Request) (*repository.BulkAnalysisSession, error)
}

type Server struct {
	cfg      *config.Config
	repo     repository.Repository
	analyzer bulk.FileAnalyzer
	batches  BatchStarter
	tracker  *bulk.Tracker
	catalog  *language.Catalog
	log      *logger.Logger
	metrics  http.Handler
}

func NewServer(
	cfg *config.Config,
	repo repository.Repository,
	analyzer bulk.FileAnalyzer,
	batches BatchStarter,
	tracker *bulk.Tracker,
	catalog *language.Catalog,
	log *logger.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		repo:     repo,
		analyzer: analyzer,
		batches:  batches,
		tracker:  tracker,
		catalog:  catalog,
		log:      log.Component("http"),
		metrics:  promhttp.Handler(),
	}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/languages", s.handleLanguages)

		r.Route("/analysis", func(r chi.Router) {
			r.Post("/complete", s.handleCompleteAnalysis)
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.handleCreateAnalysisSession)
				r.Get("/", s.handleListAnalysisSessions)
				r.Post("/check-existing", s.handleCheckExisting)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetAnalysisSession)
					r.Patch("/", s.handleRenameAnalysisSession)
					r.Delete("/", s.handleDeleteAnalysisSession)
					r.Post("/result", s.handleStoreAnalysisResult)
				})
			})
		})

		r.Route("/bulk-analysis", func(r chi.Router) {
			r.Post("/run", s.handleRunBulk)
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.handleCreateBulkSession)
				r.Get("/", s.handleListBulkSessions)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetBulkSession)
					r.Delete("/", s.handleDeleteBulkSession)
					r.Post("/files", s.handleStoreBulkFile)
					r.Put("/summary", s.handleStoreBulkSummary)
					r.Get("/progress", s.handleBulkProgress)
					r.Post("/cancel", s.handleCancelBulk)
					r.Get("/export/{format}", s.handleExport)
				})
			})
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		s.log.WithRequest(r).WithFields(logrus.Fields{
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request handled")
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": s.catalog.All()})
}
