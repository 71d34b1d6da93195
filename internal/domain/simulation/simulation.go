// Package simulation runs Monte Carlo universes of monthly profit through the
// compensation model and summarizes what everyone takes home.
//
// Every universe is a queued trial executed by a worker pool. A universe
// draws from its own generator seeded with seed+universe and outcomes are
// aggregated in universe order, so a summary only depends on the seed and
// never on how many workers ran it.
package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/okian/profitshare/internal/adapters/mq/queue"
	"github.com/okian/profitshare/internal/adapters/mq/worker"
	"github.com/okian/profitshare/internal/domain/compensation"
	"github.com/okian/profitshare/internal/domain/forecast"
	"github.com/okian/profitshare/internal/domain/model"
	"github.com/okian/profitshare/pkg/logger"
	"github.com/okian/profitshare/pkg/metrics"
)

// Defaults used when no option overrides them.
const (
	DefaultMonths    = 12
	DefaultUniverses = 1000
	DefaultN00bs     = 3
	DefaultSeed      = 42
)

// Run simulates universes of months for company, drawing monthly profit from
// sampler, and returns the aggregated summary.
func Run(ctx context.Context, company *compensation.Company, sampler forecast.Sampler, opts ...Option) (model.Summary, error) {
	o := newOptions(opts...)
	if company == nil || sampler == nil {
		return model.Summary{}, ErrInvalidInput
	}
	if o.months < 1 || o.universes < 1 {
		return model.Summary{}, fmt.Errorf("%w: %d months, %d universes", ErrInvalidHorizon, o.months, o.universes)
	}

	start := time.Now()
	runner := &trialRunner{
		company:  company,
		sampler:  sampler,
		seed:     o.seed,
		required: company.RequiredProfit(),
		verbose:  o.verbose,
		logger:   o.logger,
	}
	collector := newCollector(o.universes)

	q := queue.NewInMemoryQueue(queue.WithCapacity(o.universes))
	for u := 0; u < o.universes; u++ {
		if !q.Enqueue(ctx, model.Trial{Universe: u, Months: o.months}) {
			_ = q.Close()
			if err := ctx.Err(); err != nil {
				return model.Summary{}, fmt.Errorf("enqueue universe %d: %w", u, err)
			}
			return model.Summary{}, fmt.Errorf("enqueue universe %d: %w", u, queue.ErrQueueFull)
		}
	}
	_ = q.Close()

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool := worker.NewPool(o.workers, q, runner, collector)
	pool.Start(poolCtx)
	if err := pool.Wait(ctx); err != nil {
		cancel()
		stop(ctx, pool, o.logger)
		return model.Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		stop(ctx, pool, o.logger)
		return model.Summary{}, fmt.Errorf("simulation cancelled: %w", err)
	}
	if err := pool.Err(); err != nil {
		return model.Summary{}, err
	}

	summary, err := collector.summarize(company, o.months)
	if err != nil {
		return model.Summary{}, err
	}
	summary.ID = uuid.NewString()
	summary.CreatedAt = time.Now().UTC()
	summary.Seed = o.seed
	if math.IsInf(runner.required, 1) {
		summary.TargetUnreachable = true
	} else {
		summary.RequiredProfit = runner.required
	}

	elapsed := time.Since(start)
	metrics.RecordSimulationRun(float64(elapsed.Milliseconds()))
	o.logger.Info(ctx, "simulation finished",
		logger.String("run_id", summary.ID),
		logger.Int("months", o.months),
		logger.Int("universes", o.universes),
		logger.Int("workers", pool.Size()),
		logger.Duration("elapsed", elapsed),
	)
	return summary, nil
}

// stop joins the pool's workers after ctx ended so none outlives Run.
func stop(ctx context.Context, pool *worker.Pool, log logger.Logger) {
	if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
		log.Warn(ctx, "worker pool shutdown failed", logger.Error(err))
	}
}

// Hire returns a copy of company with n extra non-partner members named
// n00b-1 through n00b-n on the default target salary.
func Hire(company *compensation.Company, n int) (*compensation.Company, error) {
	if company == nil {
		return nil, ErrInvalidInput
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: cannot hire %d people", ErrInvalidInput, n)
	}
	extra := make([]compensation.Member, n)
	for i := range extra {
		extra[i] = compensation.Member{Name: fmt.Sprintf("n00b-%d", i+1)}
	}
	return company.WithMembers(extra...)
}

// trialRunner plays out one universe month by month.
type trialRunner struct {
	company  *compensation.Company
	sampler  forecast.Sampler
	seed     int64
	required float64
	verbose  bool
	logger   logger.Logger
}

func (r *trialRunner) RunTrial(ctx context.Context, trial model.Trial) (model.Outcome, error) {
	//nolint:gosec // simulation needs a seeded, reproducible generator
	rng := rand.New(rand.NewSource(r.seed + int64(trial.Universe)))

	people := r.company.People()
	outcome := model.Outcome{
		Universe: trial.Universe,
		People:   make([]model.PersonOutcome, len(people)),
	}
	for i, p := range people {
		outcome.People[i].Name = p.Name()
	}

	for m := 0; m < trial.Months; m++ {
		if err := ctx.Err(); err != nil {
			return model.Outcome{}, err
		}
		profit := r.sampler.Sample(rng)
		outcome.TotalProfit += profit
		if profit >= r.required {
			outcome.MonthsOnTarget++
		}

		view := r.company.WithTargetProfit(profit)
		for i, p := range view.People() {
			pay := p.AfterTaxSalary()
			outcome.People[i].TotalPay += pay
			if pay >= p.AfterTaxTargetSalary() {
				outcome.People[i].MonthsOnTarget++
			}
		}
	}

	if r.verbose {
		fields := []logger.Field{
			logger.Int("universe", trial.Universe),
			logger.Float64("total_profit", outcome.TotalProfit),
			logger.Int("months_on_target", outcome.MonthsOnTarget),
		}
		for _, p := range outcome.People {
			fields = append(fields, logger.Float64(p.Name, p.TotalPay))
		}
		r.logger.Debug(ctx, "universe finished", fields...)
	}
	return outcome, nil
}
