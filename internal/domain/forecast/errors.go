package forecast

import "errors"

// Sentinel errors for profit samplers.
var (
	ErrNoHistory           = errors.New("no profit history")
	ErrInvalidDistribution = errors.New("invalid distribution parameters")
)
