// Package server provides the HTTP API for Shashin.
package server

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/config"
	"github.com/hyperjump/shashin/internal/dialog"
	"github.com/hyperjump/shashin/internal/index"
	"github.com/hyperjump/shashin/internal/indexer"
	"github.com/hyperjump/shashin/internal/metrics"
	"github.com/hyperjump/shashin/internal/search"
	"github.com/hyperjump/shashin/internal/storage"
)

//go:embed web/index.html
var webFS embed.FS

// maxUploadBytes caps the size of an uploaded photo.
const maxUploadBytes = 50 << 20

// Verifier checks the signature of a photo URL.
type Verifier interface {
	Verify(container, key, expires, signature string) error
}

// Server is the HTTP server for the Shashin API.
type Server struct {
	engine   *search.Engine
	indexer  *indexer.Indexer
	storage  storage.Storage
	docs     index.Store
	verifier Verifier
	dialog   *dialog.Handler
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	st storage.Storage,
	docs index.Store,
	verifier Verifier,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:   engine,
		indexer:  idx,
		storage:  st,
		docs:     docs,
		verifier: verifier,
		dialog:   dialog.NewHandler(engine, logger),
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(cors)

	r.Get("/", s.handleIndexPage)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/photos/{container}/*", s.handlePhoto)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/search", s.handleSearch)
		r.Put("/upload/{container}/*", s.handleUpload)
		r.Post("/upload/{container}", s.handleUploadGenerated)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/events", s.handleEvents)
			r.Post("/events/inspect", s.handleInspectEvent)
			r.Post("/dialog", s.handleDialog)
			r.Delete("/photos/{container}/*", s.handleDeletePhoto)
			r.Get("/status", s.handleStatus)
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

// cors allows the browser frontend to call the API from any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, x-amz-meta-customLabels")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
