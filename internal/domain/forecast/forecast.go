// Package forecast samples monthly after-tax profit for simulated universes.
package forecast

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/okian/profitshare/internal/domain/model"
)

// Sampler draws one month of after-tax profit. Implementations must only use
// rng for randomness so a seeded universe replays identically.
type Sampler interface {
	Sample(rng *rand.Rand) float64
}

// Option applies a configuration option to the Historical sampler.
type Option func(*Historical)

// WithScale multiplies every historical profit by factor, e.g. to project
// growth or to convert pre-tax history into after-tax figures.
func WithScale(factor float64) Option {
	return func(h *Historical) {
		if factor > 0 && !math.IsInf(factor, 1) {
			h.scale = factor
		}
	}
}

// WithWindow keeps only the most recent n months of history.
func WithWindow(n int) Option {
	return func(h *Historical) {
		if n > 0 {
			h.window = n
		}
	}
}

// Historical bootstraps monthly profit by resampling observed months
// uniformly with replacement.
type Historical struct {
	profits []float64
	scale   float64
	window  int
}

// NewHistorical builds a bootstrap sampler over the table's monthly profits.
func NewHistorical(table *model.Table, opts ...Option) (*Historical, error) {
	h := &Historical{scale: 1}
	for _, opt := range opts {
		opt(h)
	}
	if table == nil {
		return nil, ErrNoHistory
	}
	profits := table.Profits()
	if h.window > 0 && len(profits) > h.window {
		profits = profits[len(profits)-h.window:]
	}
	if len(profits) == 0 {
		return nil, ErrNoHistory
	}
	h.profits = make([]float64, len(profits))
	for i, p := range profits {
		h.profits[i] = p * h.scale
	}
	return h, nil
}

// Sample returns one observed month, scaled.
func (h *Historical) Sample(rng *rand.Rand) float64 {
	return h.profits[rng.Intn(len(h.profits))]
}

// Len returns the number of months being resampled.
func (h *Historical) Len() int { return len(h.profits) }

// Mean returns the average of the resampled months.
func (h *Historical) Mean() float64 {
	var sum float64
	for _, p := range h.profits {
		sum += p
	}
	return sum / float64(len(h.profits))
}

// Normal draws monthly profit from a normal distribution. It is the fallback
// when no report history is available.
type Normal struct {
	mean   float64
	stddev float64
}

// NewNormal validates the distribution parameters.
func NewNormal(mean, stddev float64) (*Normal, error) {
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil, fmt.Errorf("%w: mean %v", ErrInvalidDistribution, mean)
	}
	if !(stddev >= 0) || math.IsInf(stddev, 1) {
		return nil, fmt.Errorf("%w: stddev %v", ErrInvalidDistribution, stddev)
	}
	return &Normal{mean: mean, stddev: stddev}, nil
}

// Sample returns mean + stddev * N(0,1).
func (n *Normal) Sample(rng *rand.Rand) float64 {
	return n.mean + n.stddev*rng.NormFloat64()
}

// Constant always returns the same profit. Handy for deterministic runs.
type Constant float64

// Sample returns c.
func (c Constant) Sample(*rand.Rand) float64 { return float64(c) }
