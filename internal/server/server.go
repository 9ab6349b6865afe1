// Package server exposes the manager over HTTP: repository summaries, scan
// triggering, package retrieval, zip export, and a websocket stream of
// repository events.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/packhouse/packhouse/internal/manager"
)

// Server serves the packhouse HTTP API for one manager.
type Server struct {
	manager *manager.Manager
	log     *slog.Logger
	addr    string
}

// New creates a server for the given manager.
func New(m *manager.Manager, host string, port int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		manager: m,
		log:     log,
		addr:    fmt.Sprintf("%s:%d", host, port),
	}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/repositories", s.handleListRepositories)
		r.Route("/repositories/{repo}", func(r chi.Router) {
			r.Post("/scan", s.handleScan)
			r.Get("/packages", s.handleListPackages)
			r.Get("/invalid", s.handleListInvalid)
			r.Get("/packages/{identifier}", s.handleGetPackage)
			r.Get("/packages/{identifier}/archive", s.handleArchive)
		})
	})
	r.Get("/ws", s.handleWebSocket)

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
