package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server serves the local history and detail views
type Server struct {
	service  *Service
	scanner  *Scanner
	metrics  *Metrics
	location *time.Location
	mux      *http.ServeMux
	srv      *http.Server
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, scanner *Scanner, metrics *Metrics) *Server {
	return NewServerWithMux(service, scanner, metrics, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, scanner *Scanner, metrics *Metrics, mux *http.ServeMux) *Server {
	s := &Server{
		service:  service,
		scanner:  scanner,
		metrics:  metrics,
		location: time.Local,
		mux:      mux,
	}
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.registerRoutes()
	return s
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/scans/{id}", s.handleGetScan)
	s.mux.HandleFunc("POST /api/scans/{id}/focus", s.handleFocusScan)
	s.mux.HandleFunc("GET /api/scans", s.handleListScans)

	s.mux.HandleFunc("GET /api/focus", s.handleGetFocus)
	s.mux.HandleFunc("DELETE /api/focus", s.handleClearFocus)

	s.mux.HandleFunc("GET /api/scanner", s.handleScannerState)
	s.mux.HandleFunc("POST /api/scanner", s.handleOpenScanner)
	s.mux.HandleFunc("DELETE /api/scanner", s.handleCloseScanner)

	s.mux.Handle("GET /metrics", s.metrics.Handler())

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.handleIndex)
	s.mux.HandleFunc("GET /", s.handleIndex)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	slog.Info("Starting server", "address", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
