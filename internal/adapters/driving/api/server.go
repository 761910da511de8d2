package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/atlas/internal/core/ports/driving"
	"github.com/custodia-labs/atlas/internal/logger"
)

// Server serves the snapshot HTTP API.
type Server struct {
	service driving.SnapshotService
	http    *http.Server
}

// NewServer creates an HTTP server for the snapshot service bound to
// addr.
func NewServer(service driving.SnapshotService, addr string) *Server {
	s := &Server{service: service}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/snapshots", s.handleCreateSnapshot)
		r.Get("/snapshots/{id}", s.handleGetSnapshot)
		r.Post("/webhooks/source", s.handleSourceWebhook)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the underlying HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	logger.Info("HTTP API listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
