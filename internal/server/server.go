// Package server exposes health, metrics and batch endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/opsbridge/internal/batch"
	"github.com/vietddude/opsbridge/internal/infra/remote"
	"github.com/vietddude/opsbridge/internal/session"
)

const maxBodyBytes = 10 << 20

// Health status values reported by /health.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

// Check is a named dependency probe, such as a database ping.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server provides HTTP endpoints for health monitoring and batch execution.
type Server struct {
	sessions *session.Cache
	executor *batch.Executor
	checks   []Check
	server   *http.Server
}

// Option customises a Server.
type Option func(*Server)

// WithCheck adds a dependency probe to /health.
func WithCheck(name string, probe func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.checks = append(s.checks, Check{Name: name, Probe: probe})
	}
}

// NewServer creates a new server listening on port.
func NewServer(sessions *session.Cache, executor *batch.Executor, port int, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		executor: executor,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/sessions", s.handleSessions)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/batch/create", s.handleCreate)
	mux.HandleFunc("POST /v1/batch/update", s.handleUpdate)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: StatusHealthy}

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for _, c := range s.checks {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			err := c.Probe(ctx)
			cancel()
			if err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = StatusCritical
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
	}

	// Aggregate status (worst case wins)
	if resp.Status == StatusHealthy {
		for _, info := range s.sessions.Snapshot() {
			if info.Monitor != nil && info.Monitor.Status != remote.StatusHealthy {
				resp.Status = StatusDegraded
				break
			}
		}
	}

	code := http.StatusOK
	if resp.Status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

type sessionsResponse struct {
	DefaultAlias string              `json:"default_alias,omitempty"`
	Sessions     []session.EntryInfo `json:"sessions"`
	Stats        session.Stats       `json:"stats"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionsResponse{
		DefaultAlias: s.sessions.DefaultAlias(),
		Sessions:     s.sessions.Snapshot(),
		Stats:        s.sessions.Stats(),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	req, err := batch.ParseCreateRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// A batch is not abandoned when the caller disconnects.
	result, err := s.executor.Create(context.WithoutCancel(r.Context()), req.Instance, req.Operations, req.Options()...)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	req, err := batch.ParseUpdateRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.executor.Update(context.WithoutCancel(r.Context()), req.Instance, req.Updates, req.Options()...)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// statusFor maps a batch setup failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoAlias):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrCredentialNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return nil, false
	}
	return body, true
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
