package service

import (
	"errors"

	"github.com/okian/profitshare/internal/adapters/repository"
)

var (
	// ErrNotStarted is returned when an operation needs a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrNoCompany is returned when no compensation model was configured.
	ErrNoCompany = errors.New("no company configured")
	// ErrNoStore is returned by run queries when persistence is disabled.
	ErrNoStore = repository.ErrNoStore
)
