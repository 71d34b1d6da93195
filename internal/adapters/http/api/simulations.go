// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Default request limits.
const (
	DefaultMaxMonths    = 1200
	DefaultMaxUniverses = 100000
	DefaultMaxN00bs     = 100
)

// Limits caps the size of a single simulation request.
type Limits struct {
	MaxMonths    int
	MaxUniverses int
	MaxN00bs     int
}

// withDefaults fills unset limits.
func (l Limits) withDefaults() Limits {
	if l.MaxMonths < 1 {
		l.MaxMonths = DefaultMaxMonths
	}
	if l.MaxUniverses < 1 {
		l.MaxUniverses = DefaultMaxUniverses
	}
	if l.MaxN00bs < 1 {
		l.MaxN00bs = DefaultMaxN00bs
	}
	return l
}

// SimulationDependencies defines the interface for running simulations.
type SimulationDependencies interface {
	Simulate(ctx context.Context, months, universes int) (Summary, error)
	Hire(ctx context.Context, n, months, universes int) (Summary, error)
}

// simulationRequest is the body of POST /simulations. Zero months or
// universes use the server defaults.
type simulationRequest struct {
	Months    int `json:"months"`
	Universes int `json:"universes"`
	N00bs     int `json:"n00bs"`
}

func (s simulationRequest) validate(limits Limits) error {
	switch {
	case s.Months < 0:
		return errors.New("months must not be negative")
	case s.Months > limits.MaxMonths:
		return fmt.Errorf("months must not exceed %d", limits.MaxMonths)
	case s.Universes < 0:
		return errors.New("universes must not be negative")
	case s.Universes > limits.MaxUniverses:
		return fmt.Errorf("universes must not exceed %d", limits.MaxUniverses)
	case s.N00bs < 0:
		return errors.New("n00bs must not be negative")
	case s.N00bs > limits.MaxN00bs:
		return fmt.Errorf("n00bs must not exceed %d", limits.MaxN00bs)
	}
	return nil
}

// SimulationsHandler handles simulation requests.
type SimulationsHandler struct {
	deps   SimulationDependencies
	limits Limits
}

// NewSimulationsHandler creates a new simulations handler.
func NewSimulationsHandler(deps SimulationDependencies, limits Limits) *SimulationsHandler {
	return &SimulationsHandler{deps: deps, limits: limits.withDefaults()}
}

// HandlePostSimulation handles POST /simulations requests.
func (h *SimulationsHandler) HandlePostSimulation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req simulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(h.limits); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	var (
		summary Summary
		err     error
	)
	if req.N00bs > 0 {
		summary, err = h.deps.Hire(r.Context(), req.N00bs, req.Months, req.Universes)
	} else {
		summary, err = h.deps.Simulate(r.Context(), req.Months, req.Universes)
	}
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}
