package simulation

import (
	"github.com/okian/profitshare/pkg/logger"
)

type options struct {
	months    int
	universes int
	seed      int64
	workers   int
	verbose   bool
	logger    logger.Logger
}

// Option configures a simulation run.
type Option func(*options)

func newOptions(opts ...Option) options {
	o := options{
		months:    DefaultMonths,
		universes: DefaultUniverses,
		seed:      DefaultSeed,
		logger:    logger.Get().Named("simulation"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMonths sets the number of months per universe.
func WithMonths(n int) Option {
	return func(o *options) { o.months = n }
}

// WithUniverses sets the number of simulated universes.
func WithUniverses(n int) Option {
	return func(o *options) { o.universes = n }
}

// WithSeed sets the base seed. Universe u draws from seed+u.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithWorkers sets the worker pool size. Non-positive means one per CPU.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithVerbose logs every universe outcome at debug level.
func WithVerbose(verbose bool) Option {
	return func(o *options) { o.verbose = verbose }
}

// WithLogger sets the run logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
