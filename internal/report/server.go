package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psantana5/meshrender/internal/logging"
)

// Server exposes the run metrics over HTTP.
type Server struct {
	metrics *Metrics
	logger  *logging.Logger
	srv     *http.Server
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string, metrics *Metrics, logger *logging.Logger) *Server {
	s := &Server{metrics: metrics, logger: logger}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"child_up":  s.metrics.ChildUp(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Start serves in the background. Listen errors are logged, never fatal.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics endpoint listening", logging.Fields{"addr": s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server error", logging.Fields{"error": err.Error()})
		}
	}()
}

// Shutdown stops the server; it matches the shutdown hook signature.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
