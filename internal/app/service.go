// Package service wires the compensation model, report ingestion, the
// report cache and the simulation driver into the operations used by the
// CLI and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/okian/profitshare/internal/adapters/report"
	"github.com/okian/profitshare/internal/adapters/repository"
	"github.com/okian/profitshare/internal/domain/compensation"
	"github.com/okian/profitshare/internal/domain/forecast"
	"github.com/okian/profitshare/internal/domain/model"
	"github.com/okian/profitshare/internal/domain/simulation"
	"github.com/okian/profitshare/pkg/logger"
	"github.com/okian/profitshare/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultProfitStddev = 5000
	maxListedRuns       = 100
)

// Service implements the dependencies of the CLI and the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	company *compensation.Company
	sampler forecast.Sampler
	store   repository.Store
	reader  *report.Reader
	writer  *report.Writer

	// Imported history, used when no sampler was given.
	history       *model.Table
	historySource string

	// Configuration
	dbPath        string
	workerCount   int
	months        int
	universes     int
	seed          int64
	historyWindow int
	historyScale  float64
	profitStddev  float64
	verbose       bool

	// Report ingestion
	reportFrom  time.Time
	reportTo    time.Time
	reportSheet string

	// State
	started   bool
	ownsStore bool
	runs      int
	lastRunID string

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCompany sets the compensation model.
func WithCompany(c *compensation.Company) Option {
	return func(s *Service) {
		if c != nil {
			s.company = c
		}
	}
}

// WithSampler fixes the monthly profit forecast, ignoring imported history.
func WithSampler(sampler forecast.Sampler) Option {
	return func(s *Service) {
		s.sampler = sampler
	}
}

// WithStore uses an already opened store. The caller keeps ownership.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithDBPath opens a SQLite store at path on Start.
func WithDBPath(path string) Option {
	return func(s *Service) {
		s.dbPath = path
	}
}

// WithWorkerCount sets the number of simulation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithHorizon sets the default months and universes of a simulation.
func WithHorizon(months, universes int) Option {
	return func(s *Service) {
		if months > 0 {
			s.months = months
		}
		if universes > 0 {
			s.universes = universes
		}
	}
}

// WithSeed sets the base simulation seed.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithHistoryWindow keeps only the latest months of imported history.
func WithHistoryWindow(months int) Option {
	return func(s *Service) {
		if months > 0 {
			s.historyWindow = months
		}
	}
}

// WithHistoryScale multiplies imported monthly profits before sampling.
func WithHistoryScale(factor float64) Option {
	return func(s *Service) {
		if factor > 0 {
			s.historyScale = factor
		}
	}
}

// WithReportRange keeps only report months within [from, to]. A zero bound
// is open.
func WithReportRange(from, to time.Time) Option {
	return func(s *Service) {
		s.reportFrom = from
		s.reportTo = to
	}
}

// WithReportSheet reads the named workbook sheet instead of the active one.
func WithReportSheet(name string) Option {
	return func(s *Service) {
		s.reportSheet = name
	}
}

// WithProfitStddev sets the spread of the fallback normal forecast.
func WithProfitStddev(stddev float64) Option {
	return func(s *Service) {
		if stddev >= 0 {
			s.profitStddev = stddev
		}
	}
}

// WithVerbose logs every simulated universe at debug level.
func WithVerbose(verbose bool) Option {
	return func(s *Service) {
		s.verbose = verbose
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		months:       simulation.DefaultMonths,
		universes:    simulation.DefaultUniverses,
		seed:         simulation.DefaultSeed,
		historyScale: 1,
		profitStddev: defaultProfitStddev,
		writer:       report.NewWriter(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store and publishes the roster gauges.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.company == nil {
		return ErrNoCompany
	}
	s.reader = report.NewReader(
		report.WithLogger(s.logger.Named("report")),
		report.WithDateRange(s.reportFrom, s.reportTo),
		report.WithSheet(s.reportSheet),
	)

	if s.store == nil && s.dbPath != "" {
		store, err := repository.NewSQLiteStore(ctx, s.dbPath)
		if err != nil {
			return fmt.Errorf("open store %s: %w", s.dbPath, err)
		}
		s.store = store
		s.ownsStore = true
	}

	total := s.company.ProfitAllocationTotal()
	metrics.UpdateRosterSize(s.company.NumPeople())
	metrics.UpdateProfitAllocationTotal(total)
	if total > 1 {
		s.logger.Warn(ctx, "people are allocated more than the whole profit",
			logger.Float64("allocation_total", total),
			logger.Float64("ownership_total", s.company.TotalOwnership()),
		)
	}

	s.started = true
	s.logger.Info(ctx, "profitshare service started",
		logger.Int("people", s.company.NumPeople()),
		logger.Int("workers", s.workerCount),
		logger.Bool("persistent", s.store != nil),
	)
	return nil
}

// Stop releases the store when the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(context.Background(), "error closing store", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(context.Background(), "profitshare service stopped")
}

// Company returns the configured compensation model.
func (s *Service) Company() *compensation.Company {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.company
}

// Import reads a Profit & Loss workbook, or its cached copy when the file is
// unchanged, and makes it the forecast history.
func (s *Service) Import(ctx context.Context, path string) (*model.Table, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}

	source, err := s.sourceKey(path)
	if err != nil {
		return nil, err
	}

	var table *model.Table
	if s.store != nil {
		cached, err := s.store.LoadTable(ctx, source)
		switch {
		case err == nil:
			table = cached
			s.logger.Debug(ctx, "report cache hit", logger.String("source", source))
		case !errors.Is(err, repository.ErrNotFound):
			s.logger.Warn(ctx, "report cache unavailable", logger.String("source", source), logger.Error(err))
		}
	}
	if table == nil {
		table, err = s.reader.ReadProfitAndLoss(ctx, path)
		if err != nil {
			metrics.RecordErrorByComponent("report", "read_error")
			return nil, err
		}
		if s.store != nil {
			if err := s.store.SaveTable(ctx, source, table); err != nil {
				return nil, fmt.Errorf("cache report: %w", err)
			}
		}
	}

	s.mu.Lock()
	s.history = table
	s.historySource = source
	s.mu.Unlock()

	s.logger.Info(ctx, "report imported",
		logger.String("path", path),
		logger.Int("months", len(table.Months())),
		logger.Int("observations", table.Len()),
	)
	return table, nil
}

// sourceKey identifies a report file version, and the sheet and months read
// from it, for the cache.
func (s *Service) sourceKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("open report %s: %w", path, err)
	}
	key := fmt.Sprintf("%s@%d:%d", abs, info.ModTime().UnixNano(), info.Size())
	if s.reportSheet != "" || !s.reportFrom.IsZero() || !s.reportTo.IsZero() {
		key += fmt.Sprintf("#%s[%s,%s]", s.reportSheet, monthKey(s.reportFrom), monthKey(s.reportTo))
	}
	return key, nil
}

func monthKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01")
}

// Sampler returns the monthly profit forecast: the configured sampler, a
// bootstrap of the imported history, or a normal distribution around the
// company's target profit.
func (s *Service) Sampler() (forecast.Sampler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sampler != nil {
		return s.sampler, nil
	}
	if s.history != nil {
		var opts []forecast.Option
		if s.historyWindow > 0 {
			opts = append(opts, forecast.WithWindow(s.historyWindow))
		}
		if s.historyScale != 1 {
			opts = append(opts, forecast.WithScale(s.historyScale))
		}
		return forecast.NewHistorical(s.history, opts...)
	}
	if s.company == nil {
		return nil, ErrNoCompany
	}
	return forecast.NewNormal(s.company.AfterTaxTargetProfit(), s.profitStddev)
}

// Simulate runs the current roster. Non-positive months or universes use the
// service defaults.
func (s *Service) Simulate(ctx context.Context, months, universes int) (model.Summary, error) {
	if err := s.ensureStarted(); err != nil {
		return model.Summary{}, err
	}
	return s.simulate(ctx, s.Company(), months, universes)
}

// Hire runs the roster extended with n new hires.
func (s *Service) Hire(ctx context.Context, n, months, universes int) (model.Summary, error) {
	if err := s.ensureStarted(); err != nil {
		return model.Summary{}, err
	}
	company, err := simulation.Hire(s.Company(), n)
	if err != nil {
		return model.Summary{}, err
	}
	return s.simulate(ctx, company, months, universes)
}

func (s *Service) simulate(ctx context.Context, company *compensation.Company, months, universes int) (model.Summary, error) {
	if months <= 0 {
		months = s.months
	}
	if universes <= 0 {
		universes = s.universes
	}
	sampler, err := s.Sampler()
	if err != nil {
		return model.Summary{}, err
	}

	summary, err := simulation.Run(ctx, company, sampler,
		simulation.WithMonths(months),
		simulation.WithUniverses(universes),
		simulation.WithSeed(s.seed),
		simulation.WithWorkers(s.workerCount),
		simulation.WithVerbose(s.verbose),
		simulation.WithLogger(s.logger.Named("simulation")),
	)
	if err != nil {
		metrics.RecordErrorByComponent("simulation", "run_error")
		return model.Summary{}, err
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, summary); err != nil {
			return model.Summary{}, fmt.Errorf("save run: %w", err)
		}
	}

	s.mu.Lock()
	s.runs++
	s.lastRunID = summary.ID
	s.mu.Unlock()
	return summary, nil
}

// Allocations projects every person's figures at profit, or at the
// configured target profit when profit is nil.
func (s *Service) Allocations(ctx context.Context, profit *float64) ([]compensation.Allocation, error) {
	company := s.Company()
	if company == nil {
		return nil, ErrNoCompany
	}
	if profit != nil {
		company = company.WithTargetProfit(*profit)
	}
	allocations, err := company.Allocations()
	if err != nil {
		return nil, err
	}
	s.log().Debug(ctx, "allocations computed",
		logger.Float64("profit", company.AfterTaxTargetProfit()),
		logger.Int("people", len(allocations)),
	)
	return allocations, nil
}

// GetRun returns a persisted simulation run.
func (s *Service) GetRun(ctx context.Context, id string) (model.Summary, error) {
	if s.store == nil {
		return model.Summary{}, ErrNoStore
	}
	return s.store.GetRun(ctx, id)
}

// ListRuns returns the newest persisted runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]model.Summary, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if limit <= 0 || limit > maxListedRuns {
		limit = maxListedRuns
	}
	return s.store.ListRuns(ctx, limit)
}

// WriteAllocations saves allocations as an xlsx workbook.
func (s *Service) WriteAllocations(path string, allocations []compensation.Allocation) error {
	return s.writer.WriteAllocations(path, allocations)
}

// WriteSummary saves a simulation summary as an xlsx workbook.
func (s *Service) WriteSummary(path string, summary model.Summary) error {
	return s.writer.WriteSummary(path, summary)
}

// WriteTable saves an imported table as a Profit & Loss workbook.
func (s *Service) WriteTable(path string, table *model.Table) error {
	return s.writer.WriteTable(path, table)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"months":      s.months,
		"universes":   s.universes,
		"seed":        s.seed,
		"runs":        s.runs,
		"persistent":  s.store != nil,
	}
	if s.lastRunID != "" {
		stats["lastRunID"] = s.lastRunID
	}
	if s.company != nil {
		stats["people"] = s.company.NumPeople()
		stats["targetProfit"] = s.company.AfterTaxTargetProfit()
		stats["allocationTotal"] = s.company.ProfitAllocationTotal()
	}
	if s.history != nil {
		stats["historySource"] = s.historySource
		stats["historyMonths"] = len(s.history.Months())
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	metrics.UpdateSystemMemoryUsage(ms.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	return stats
}

func (s *Service) ensureStarted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}
