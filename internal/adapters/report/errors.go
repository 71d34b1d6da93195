package report

import "errors"

// Sentinel errors for report ingestion.
var (
	ErrNoMonthHeader = errors.New("no month header row")
	ErrInvalidValue  = errors.New("invalid cell value")
)
