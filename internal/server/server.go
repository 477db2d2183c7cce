// Package server provides the HTTP API for ResearchPilot.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/researchpilot/internal/config"
	"github.com/hyperjump/researchpilot/internal/metrics"
	"github.com/hyperjump/researchpilot/internal/models"
)

// Searcher runs semantic search over the collection.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]*models.QueryResult, error)
}

// Analyzer answers research questions.
type Analyzer interface {
	Analyze(ctx context.Context, req *models.AnalysisRequest) (*models.Analysis, error)
	Ready() bool
	Model() *string
}

// Ingester ingests the data directory and uploaded files.
type Ingester interface {
	IngestDirectory(ctx context.Context) (*models.IngestResult, error)
	SaveUpload(ctx context.Context, name string, r io.Reader) (*models.IngestResult, error)
}

// Collection exposes collection-level administration.
type Collection interface {
	Stats() models.CollectionStats
	Clear(ctx context.Context) error
}

// Dependencies are the pipeline components served over HTTP. A nil field makes
// the endpoints that need it answer 503.
type Dependencies struct {
	Retriever      Searcher
	Assistant      Analyzer
	Indexer        Ingester
	Collection     Collection
	EmbeddingModel string
}

// Server is the HTTP server for the ResearchPilot API.
type Server struct {
	deps    Dependencies
	config  *config.Config
	logger  *zap.Logger
	version string
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported by the root and status endpoints.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Dependencies, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:    deps,
		config:  cfg,
		logger:  logger,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Route("/papers", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Post("/ingest", s.handleIngest)
			r.Get("/search", s.handleSearchGet)
			r.Post("/search", s.handleSearchPost)
			r.Get("/stats", s.handleStats)
			r.Post("/clear", s.handleClear)
		})
		r.Route("/chat", func(r chi.Router) {
			r.Post("/chat", s.handleChat)
			r.Get("/health", s.handleChatHealth)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server",
		zap.String("addr", addr),
		zap.Strings("cors_origins", s.config.Server.CORSOrigins))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
