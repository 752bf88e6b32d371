package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/p-arndt/installbench/internal/config"
)

type Server struct {
	cfg     *config.Config
	bench   BenchService
	metrics Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewServer wires the routes. metrics may be nil.
func NewServer(cfg *config.Config, svc BenchService, metrics Metrics, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		bench:   svc,
		metrics: metrics,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.authMiddleware(s.requestIDMiddleware(s.metricsMiddleware(s.mux)))
}

func (s *Server) routes() {
	// Benchmark routes (with auth)
	s.mux.HandleFunc("POST /v1/runs", s.handleStartRun)
	s.mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /v1/runs/current", s.handleCurrentRun)
	s.mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)

	// Live snapshots of the current matrix, polled by the UI
	s.mux.HandleFunc("GET /v1/progress", s.handleProgress)
	s.mux.HandleFunc("GET /v1/results", s.handleResults)
	s.mux.HandleFunc("GET /v1/logs", s.handleLogs)
	s.mux.HandleFunc("GET /v1/aggregate", s.handleAggregate)
	s.mux.HandleFunc("GET /v1/chart", s.handleChart)

	// Health check and metrics (no auth)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
