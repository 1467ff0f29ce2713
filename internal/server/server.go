// Package server serves the built documentation for local preview, together
// with a status endpoint and, optionally, Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
)

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Status     string    `json:"status"`
	OutputDir  string    `json:"output_dir"`
	RunID      string    `json:"run_id,omitempty"`
	LastBuild  string    `json:"last_build,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Server is the preview HTTP server.
type Server struct {
	outputDir string
	registry  *prom.Registry
	logger    *slog.Logger

	mu     sync.RWMutex
	status StatusResponse

	srv *http.Server
}

// New returns a server for outputDir. A nil registry disables /metrics.
func New(outputDir string, registry *prom.Registry) *Server {
	return &Server{
		outputDir: outputDir,
		registry:  registry,
		logger:    slog.Default(),
		status:    StatusResponse{Status: "ready", OutputDir: outputDir},
	}
}

// SetBuildStatus records the outcome of the latest build for /api/status.
func (s *Server) SetBuildStatus(runID, status string, finished time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.RunID = runID
	s.status.LastBuild = status
	s.status.FinishedAt = finished
	s.status.Error = ""
	if err != nil {
		s.status.Error = err.Error()
	}
}

// Handler returns the complete route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", hideDotPaths(http.FileServer(http.Dir(s.outputDir))))
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}
	return Chain(s.logger)(mux)
}

// hideDotPaths answers 404 for any path with a dot-prefixed segment, which
// keeps the publish snapshot under .git out of the preview.
func hideDotPaths(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, seg := range strings.Split(r.URL.Path, "/") {
			if strings.HasPrefix(seg, ".") {
				http.NotFound(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := s.status
	s.mu.RUnlock()
	resp.Timestamp = time.Now().UTC()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to write status", logfields.Error(err))
	}
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryNetwork, "failed to listen").
			WithContext("addr", addr).
			Build()
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Preview server error", logfields.Error(err))
		}
	}()
	bound := ln.Addr().String()
	s.logger.Info("Serving documentation", logfields.Path(s.outputDir), slog.String("addr", bound))
	return bound, nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
