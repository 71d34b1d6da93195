package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid run limit")
	ErrInvalidRun   = errors.New("invalid run")
	// ErrNoStore is returned by callers whose persistence is switched off.
	ErrNoStore = errors.New("no run store configured")
)
