// Package api exposes the prompt repository over a local JSON HTTP API.
//
// Every route maps onto one repository operation and answers with the
// standard envelope:
//
//	{"success": true, "data": ..., "timestamp": "..."}
//	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}
//
// Routes:
//   - /api/v1/prompts: list, create
//   - /api/v1/prompts/{id}: get, patch, delete
//   - /api/v1/prompts/{id}/use, /api/v1/prompts/{id}/favorite: usage and favorites
//   - /api/v1/recent, /api/v1/favorites: derived lists
//   - /api/v1/search: substring or fuzzy search with filters
//   - /api/v1/categories, /api/v1/stats: library summaries
//   - /api/v1/export, /api/v1/import: document exchange
//   - /api/v1/health, /metrics: monitoring
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/repository"
)

// DefaultAddr binds to loopback only; the API has no authentication.
const DefaultAddr = "127.0.0.1:8765"

// maxBodyBytes bounds request bodies, imports included.
const maxBodyBytes = 16 << 20

// Options configures a Server.
type Options struct {
	Repository *repository.Repository
	Addr       string
	Logger     *slog.Logger
	// IncludeDetails adds error details and context to error responses.
	IncludeDetails bool
	// ShutdownTimeout bounds graceful shutdown; defaults to 5s.
	ShutdownTimeout time.Duration
}

// Server provides the HTTP API with middleware support
type Server struct {
	repo            *repository.Repository
	errorHandler    *apperrors.HTTPErrorHandler
	logger          *slog.Logger
	router          *chi.Mux
	addr            string
	shutdownTimeout time.Duration
	server          *http.Server
}

// NewServer creates a new API server instance
func NewServer(opts Options) *Server {
	s := &Server{
		repo:            opts.Repository,
		logger:          opts.Logger,
		addr:            opts.Addr,
		shutdownTimeout: opts.ShutdownTimeout,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 5 * time.Second
	}
	s.errorHandler = apperrors.NewHTTPErrorHandler(opts.IncludeDetails, s.logger)
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(s.recovery)
	router.Use(s.logging)
	router.Use(instrument)
	router.Use(cors)

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/health", s.handleHealth)

		r.Get("/prompts", s.handleListPrompts)
		r.Post("/prompts", s.handleCreatePrompt)
		r.Get("/prompts/{id}", s.handleGetPrompt)
		r.Patch("/prompts/{id}", s.handleUpdatePrompt)
		r.Delete("/prompts/{id}", s.handleDeletePrompt)
		r.Post("/prompts/{id}/use", s.handleUsePrompt)
		r.Post("/prompts/{id}/favorite", s.handleToggleFavorite)

		r.Get("/recent", s.handleRecent)
		r.Get("/favorites", s.handleFavorites)
		r.Get("/search", s.handleSearch)
		r.Get("/categories", s.handleCategories)
		r.Get("/stats", s.handleStats)

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, apperrors.NotFoundError("route "+r.URL.Path))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(s.errorHandler.FormatError(apperrors.ValidationError("Method not allowed"))))
	})
	return router
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "Failed to listen").
			WithContext("addr", s.addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start with a caller-provided listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", ln.Addr().String())
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// APIResponse represents a standardized API response
type APIResponse struct {
	Success   bool                 `json:"success"`
	Data      any                  `json:"data,omitempty"`
	Message   string               `json:"message,omitempty"`
	Error     *apperrors.ErrorBody `json:"error,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// writeResponse writes a standardized JSON response
func (s *Server) writeResponse(w http.ResponseWriter, data any, message string, statusCode int) {
	response := APIResponse{
		Success:   statusCode < 400,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	jsonData, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "Failed to encode response"))
		return
	}
	w.WriteHeader(statusCode)
	_, _ = w.Write(jsonData)
}

// writeError writes an error response using the error handler
func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.errorHandler.WriteHTTPError(w, err)
}
