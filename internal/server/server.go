// Package server provides the HTTP API for docqa.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/answer"
	"github.com/hyperjump/docqa/internal/config"
	"github.com/hyperjump/docqa/internal/extract"
	"github.com/hyperjump/docqa/internal/lifecycle"
	"github.com/hyperjump/docqa/internal/metrics"
	"github.com/hyperjump/docqa/internal/retrieval"
	"github.com/hyperjump/docqa/internal/storage"
	"github.com/hyperjump/docqa/pkg/utils"
)

// Deps are the components the server routes requests to.
type Deps struct {
	Engine      *retrieval.Engine
	Synthesizer *answer.Synthesizer
	Lifecycle   *lifecycle.Manager
	Storage     storage.Storage
	Extractor   *extract.Extractor
	Metrics     *metrics.Metrics
	Config      *config.Config
	Logger      *zap.Logger
}

// Server is the HTTP server for the docqa API.
type Server struct {
	engine      *retrieval.Engine
	synthesizer *answer.Synthesizer
	lifecycle   *lifecycle.Manager
	storage     storage.Storage
	extractor   *extract.Extractor
	metrics     *metrics.Metrics
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies. A nil Config means defaults.
func NewServer(d Deps) *Server {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	ex := d.Extractor
	if ex == nil {
		ex = extract.NewExtractor(cfg.Server.MaxUploadBytes)
	}
	return &Server{
		engine:      d.Engine,
		synthesizer: d.Synthesizer,
		lifecycle:   d.Lifecycle,
		storage:     d.Storage,
		extractor:   ex,
		metrics:     d.Metrics,
		config:      cfg,
		logger:      utils.OrNop(d.Logger),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	if s.config.Metrics.EnabledOrDefault() && s.metrics != nil {
		r.Handle(s.config.Metrics.Path, s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)

		r.Group(func(r chi.Router) {
			r.Use(s.identify)
			r.Get("/documents", s.handleListDocuments)
			r.Post("/documents", s.handleUploadDocument)
			r.Delete("/documents/{id}", s.handleDeleteDocument)
			r.Post("/query", s.handleQuery)
			r.Get("/status", s.handleStatus)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/rebuild", s.handleRebuild)
				r.Post("/expire", s.handleExpire)
			})
		})
	})
	return r
}

// requestTimeout leaves room for one embedding and one generation call.
func (s *Server) requestTimeout() time.Duration {
	return s.config.Embedding.Timeout + s.config.Generation.Timeout + 30*time.Second
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
