package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"shopflow/internal/config"
	"shopflow/internal/logging"
	"shopflow/internal/metrics"
	"shopflow/internal/workflow"
)

// Server exposes the engine on the configured bind address.
type Server struct {
	bind    string
	logger  *slog.Logger
	engine  *workflow.Engine
	metrics *metrics.Metrics
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New builds the router. m may be nil, in which case /metrics is not served.
func New(cfg *config.Config, engine *workflow.Engine, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	if cfg == nil || engine == nil {
		return nil, errors.New("httpapi: config and engine are required")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("httpapi: paths.api_bind is empty")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		engine:  engine,
		metrics: m,
	}
	s.handler = s.routes(cfg.Paths.APIToken)
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(token string) http.Handler {
	r := mux.NewRouter()
	r.Use(requestMiddleware(s.logger))
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware(token))
	api.HandleFunc("/stages", s.handleStages).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id:[0-9]+}", s.handleJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id:[0-9]+}/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id:[0-9]+}/transition", s.handleTransition).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id:[0-9]+}/board-stage", s.handleBoardStage).Methods(http.MethodPost)
	api.HandleFunc("/transitions/batch", s.handleBatch).Methods(http.MethodPost)
	api.HandleFunc("/shops/{shop}/workload", s.handleWorkload).Methods(http.MethodGet)
	api.HandleFunc("/shops/{shop}/assignments", s.handleAssignments).Methods(http.MethodGet)
	api.HandleFunc("/shops/{shop}/board", s.handleBoard).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens and serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
