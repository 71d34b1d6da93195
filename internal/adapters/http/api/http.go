// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/profitshare/internal/adapters/repository"
	"github.com/okian/profitshare/internal/domain/compensation"
	"github.com/okian/profitshare/internal/domain/model"
	"github.com/okian/profitshare/internal/domain/simulation"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AllocationDependencies
	SimulationDependencies
	RunDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	allocationsHandler *AllocationsHandler
	simulationsHandler *SimulationsHandler
	runsHandler        *RunsHandler
}

// NewServer creates a new API server with all handlers. Limits below 1 use
// the package defaults.
func NewServer(deps Dependencies, statsProvider StatsProvider, limits Limits) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		allocationsHandler: NewAllocationsHandler(deps),
		simulationsHandler: NewSimulationsHandler(deps, limits),
		runsHandler:        NewRunsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/allocations", MetricsMiddleware(s.allocationsHandler.HandleGetAllocations, "allocations"))
	mux.HandleFunc("/simulations", MetricsMiddleware(s.simulationsHandler.HandlePostSimulation, "simulations"))
	mux.HandleFunc("/runs", MetricsMiddleware(s.runsHandler.HandleListRuns, "runs"))
	mux.HandleFunc("/runs/", MetricsMiddleware(s.runsHandler.HandleGetRun, "run"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeUpstreamError translates domain errors into HTTP statuses.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrNoStore):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, simulation.ErrInvalidInput),
		errors.Is(err, simulation.ErrInvalidHorizon),
		errors.Is(err, compensation.ErrUndefinedGrossUp):
		writeError(w, http.StatusUnprocessableEntity, "unprocessable", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "timeout", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// Summary mirrors the read shape of a simulation run.
type Summary = model.Summary
