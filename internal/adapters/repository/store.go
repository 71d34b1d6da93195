// Package repository persists ingested report tables and simulation runs.
package repository

import (
	"context"

	"github.com/okian/profitshare/internal/domain/model"
)

// Store caches report tables by source and keeps the history of simulation runs.
type Store interface {
	// SaveTable replaces the cached table for source.
	SaveTable(ctx context.Context, source string, table *model.Table) error

	// LoadTable returns the cached table for source.
	// Returns ErrNotFound if source was never saved.
	LoadTable(ctx context.Context, source string) (*model.Table, error)

	// SaveRun persists a simulation summary under its ID.
	SaveRun(ctx context.Context, summary model.Summary) error

	// GetRun returns the summary with the given ID, people included.
	// Returns ErrNotFound if the run is unknown.
	GetRun(ctx context.Context, id string) (model.Summary, error)

	// ListRuns returns up to limit run headers, newest first. People are not loaded.
	ListRuns(ctx context.Context, limit int) ([]model.Summary, error)

	// Close releases the underlying database.
	Close() error
}
