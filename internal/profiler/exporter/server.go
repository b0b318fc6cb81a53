package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wesleyorama2/perfcore/internal/profiler/metrics"
	"github.com/wesleyorama2/perfcore/internal/profiler/report"
	"github.com/wesleyorama2/perfcore/internal/profiler/sampler"
	"github.com/wesleyorama2/perfcore/pkg/jsonpath"
)

var (
	// ErrServerRunning is returned by Start on a server that is already
	// listening.
	ErrServerRunning = errors.New("exporter server already running")
	// ErrServerNotRunning is returned by Shutdown before Start.
	ErrServerNotRunning = errors.New("exporter server not running")
)

// Server serves the Prometheus endpoint and the JSON API.
type Server struct {
	src      Source
	addr     string
	logger   *zap.Logger
	registry *prometheus.Registry
	router   *mux.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRuntimeCollectors adds the standard Go runtime and process collectors
// to the metrics endpoint.
func WithRuntimeCollectors() ServerOption {
	return func(s *Server) {
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// NewServer creates a server for src listening on addr. The server does not
// listen until Start.
func NewServer(src Source, addr string, opts ...ServerOption) *Server {
	s := &Server{
		src:      src,
		addr:     addr,
		logger:   zap.NewNop(),
		registry: prometheus.NewRegistry(),
		router:   mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("exporter")
	s.registry.MustRegister(NewCollector(src))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/methods", s.handleMethods).Methods(http.MethodGet)
	api.HandleFunc("/methods/{name}", s.handleMethod).Methods(http.MethodGet)
	api.HandleFunc("/resources", s.handleResources).Methods(http.MethodGet)
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the Prometheus registry behind /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return ErrServerRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.listener = ln

	go func() {
		s.logger.Info("Starting exporter", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Exporter server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops the server, waiting for in-flight requests until ctx is
// done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return ErrServerNotRunning
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown exporter server: %w", err)
	}
	s.logger.Info("Exporter stopped")
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Sampling bool   `json:"sampling"`
}

type resourcesResponse struct {
	Memory  *sampler.MemorySnapshot            `json:"memory"`
	CPU     *sampler.CPUSnapshot               `json:"cpu"`
	Threads *sampler.ThreadSnapshot            `json:"threads"`
	History map[sampler.Series]sampler.Summary `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sampling: s.src.Sampling()})
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	rep := &report.Report{Methods: s.src.SnapshotAllMethods()}
	methods := rep.SortedMethods()
	if methods == nil {
		methods = []metrics.Snapshot{}
	}
	s.writeJSON(w, http.StatusOK, methods)
}

func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	snap, ok := s.src.Method(name)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("method %q not found", name)})
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	var resp resourcesResponse
	if m, ok := s.src.LatestMemory(); ok {
		resp.Memory = &m
	}
	if c, ok := s.src.LatestCPU(); ok {
		resp.CPU = &c
	}
	if t, ok := s.src.LatestThreads(); ok {
		resp.Threads = &t
	}
	resp.History = s.src.History().Summaries()
	s.writeJSON(w, http.StatusOK, resp)
}

// handleReport returns a full report. With ?path= it returns only the value
// the JSONPath expression selects.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep := report.Build(s.src)

	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeJSON(w, http.StatusOK, rep)
		return
	}

	doc, err := json.Marshal(rep)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	value, err := jsonpath.Query(doc, path)
	switch {
	case errors.Is(err, jsonpath.ErrInvalidPath):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, jsonpath.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(value.Raw))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}
