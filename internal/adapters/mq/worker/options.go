package worker

import (
	"github.com/okian/profitshare/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithErrorHandler is called with every failed trial.
func WithErrorHandler(fn func(error)) Option {
	return func(w *InMemoryWorker) {
		w.onError = fn
	}
}

// WithDoneHandler is called after every trial, failed or not.
func WithDoneHandler(fn func()) Option {
	return func(w *InMemoryWorker) {
		w.onDone = fn
	}
}
