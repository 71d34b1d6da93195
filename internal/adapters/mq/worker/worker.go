// Package worker runs simulation trials pulled off a queue and hands their
// outcomes to a collector.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/profitshare/internal/domain/model"
	"github.com/okian/profitshare/pkg/logger"
	"github.com/okian/profitshare/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Runner executes one trial.
type Runner interface {
	RunTrial(ctx context.Context, trial model.Trial) (model.Outcome, error)
}

// Collector receives trial outcomes. It is called from many workers at once.
type Collector interface {
	Collect(ctx context.Context, outcome model.Outcome) error
}

// Queue defines how workers receive trials.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Trial
}

// Worker processes trials using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after the trial in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	runner    Runner
	collector Collector
	name      string
	onError   func(error)
	onDone    func()

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, runner Runner, collector Collector, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		runner:    runner,
		collector: collector,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	trials := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case trial, ok := <-trials:
			if !ok {
				return
			}
			if err := w.processTrial(ctx, trial); err != nil {
				w.logger.Error(ctx, "error processing trial", logger.Error(err))
				if w.onError != nil {
					w.onError(err)
				}
			}
			if w.onDone != nil {
				w.onDone()
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processTrial runs one trial and hands the outcome to the collector.
func (w *InMemoryWorker) processTrial(ctx context.Context, trial model.Trial) error {
	start := time.Now()
	outcome, err := w.runner.RunTrial(ctx, trial)
	metrics.RecordTrialLatency(float64(time.Since(start).Microseconds()) / 1000)

	if err != nil {
		metrics.RecordTrialError()
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "trial_error")
		return fmt.Errorf("universe %d: %w", trial.Universe, err)
	}

	if err := w.collector.Collect(ctx, outcome); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "collect_error")
		return fmt.Errorf("collect universe %d: %w", trial.Universe, err)
	}

	metrics.RecordTrialProcessed()
	return nil
}

// Pool manages multiple workers draining one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown     chan struct{}
	shutdownOnce sync.Once

	processedCount    atomic.Int64
	metricsMu         sync.Mutex
	lastProcessedTime time.Time

	errMu    sync.Mutex
	firstErr error

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker per CPU.
func NewPool(workerCount int, queue Queue, runner Runner, collector Collector) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             queue,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			runner,
			collector,
			WithName("worker-"+strconv.Itoa(i)),
			WithErrorHandler(pool.recordError),
			WithDoneHandler(pool.recordProcessed),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}

	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater periodically publishes throughput.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	now := time.Now()
	elapsed := now.Sub(p.lastProcessedTime).Seconds()
	if elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(p.processedCount.Swap(0)) / elapsed)
	}
	p.lastProcessedTime = now
}

func (p *Pool) recordProcessed() {
	p.processedCount.Add(1)
}

func (p *Pool) recordError(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.firstErr == nil {
		p.firstErr = err
	}
}

// Err returns the first trial error seen by any worker.
func (p *Pool) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.firstErr
}

// Wait blocks until every worker has exited, which happens once the queue is
// closed and drained or ctx given to Start is cancelled.
func (p *Pool) Wait(ctx context.Context) error {
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for workers: %w", ctx.Err())
		}
	}
	p.stopMetrics()
	p.updateMetrics()
	metrics.UpdateWorkerActiveCount(0)
	return nil
}

func (p *Pool) stopMetrics() {
	p.shutdownOnce.Do(func() { close(p.shutdown) })
}

// Shutdown closes the queue and stops every worker.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	p.stopMetrics()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)

	return nil
}
