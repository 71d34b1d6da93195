// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/okian/profitshare/internal/domain/compensation"
)

// AllocationDependencies defines the interface for allocation projections.
type AllocationDependencies interface {
	Allocations(ctx context.Context, profit *float64) ([]compensation.Allocation, error)
}

// AllocationsHandler handles allocation requests.
type AllocationsHandler struct {
	deps AllocationDependencies
}

// NewAllocationsHandler creates a new allocations handler.
func NewAllocationsHandler(deps AllocationDependencies) *AllocationsHandler {
	return &AllocationsHandler{deps: deps}
}

// HandleGetAllocations handles GET /allocations?profit=P requests. Without
// profit the configured target profit is used.
func (h *AllocationsHandler) HandleGetAllocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	var profit *float64
	if raw := r.URL.Query().Get("profit"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: profit %q", ErrBadRequest, raw))
			return
		}
		profit = &p
	}
	allocations, err := h.deps.Allocations(r.Context(), profit)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allocations)
}
