package simulation

import "errors"

// Sentinel errors for simulation runs.
var (
	ErrInvalidInput   = errors.New("invalid simulation input")
	ErrInvalidHorizon = errors.New("months and universes must be positive")
	ErrMissingOutcome = errors.New("universe produced no outcome")
)
