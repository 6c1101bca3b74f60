// Package api provides the HTTP API server and handlers for the mirror server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mirrorapp/mirror-server/internal/service"
	"github.com/mirrorapp/mirror-server/internal/store/sqlite"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store          *sqlite.Store
	queryService   *service.QueryService
	syncService    *service.SyncService
	overlayService *service.OverlayService
	router         *chi.Mux
	logger         *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store *sqlite.Store, queryService *service.QueryService, syncService *service.SyncService, overlayService *service.OverlayService, logger *slog.Logger) *Server {
	s := &Server{
		store:          store,
		queryService:   queryService,
		syncService:    syncService,
		overlayService: overlayService,
		router:         chi.NewRouter(),
		logger:         logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID", "X-User-Role"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1. Identity is asserted by the fronting system via headers;
	// this service does no authentication of its own.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity)

		r.Post("/query/{entityType}", s.handleQuery)
		r.Get("/entities/{entityType}/{id}", s.handleGetEntity)

		r.Route("/sync", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/full", s.handleTriggerFullSync)
			r.Post("/incremental", s.handleTriggerIncrementalSync)
			r.Get("/status", s.handleSyncStatus)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Put("/rating/{entityType}/{id}", s.handleSetRating)
			r.Delete("/rating/{entityType}/{id}", s.handleDeleteRating)
			r.Put("/favorite/{entityType}/{id}", s.handleSetFavorite)
			r.Delete("/favorite/{entityType}/{id}", s.handleUnfavorite)
			r.Post("/view/{entityType}/{id}", s.handleAddView)
			r.Post("/o/{entityType}/{id}", s.handleAddO)
			r.Put("/exclusion/{entityType}/{id}", s.handleExclude)
			r.Delete("/exclusion/{entityType}/{id}", s.handleUnexclude)
			r.Get("/exclusions/{entityType}", s.handleListExclusions)
		})
	})
}
