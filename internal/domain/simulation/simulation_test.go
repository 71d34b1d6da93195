package simulation_test

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/profitshare/internal/domain/compensation"
	"github.com/okian/profitshare/internal/domain/forecast"
	"github.com/okian/profitshare/internal/domain/model"
	"github.com/okian/profitshare/internal/domain/simulation"
	"github.com/okian/profitshare/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func pay(v float64) *float64 { return &v }

// cancellingSampler cancels its run after a number of draws.
type cancellingSampler struct {
	after  int64
	cancel context.CancelFunc
	calls  atomic.Int64
}

func (s *cancellingSampler) Sample(*rand.Rand) float64 {
	if s.calls.Add(1) == s.after {
		s.cancel()
	}
	return 20000
}

func newCompany() *compensation.Company {
	c, err := compensation.NewCompany(compensation.Settings{
		TaxRate:              0.3,
		AfterTaxSalary:       5000,
		BonusMonths:          1,
		DividendFraction:     0.4,
		AfterTaxTargetProfit: 20000,
	},
		compensation.Member{Name: "dean", Ownership: 0.1},
		compensation.Member{Name: "mike", Ownership: 0.5},
		compensation.Member{Name: "gabe", Ownership: 0.4, TakeHomePay: pay(9000)},
		compensation.Member{Name: "jess"},
		compensation.Member{Name: "vlad", TakeHomePay: pay(0)},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// stripIdentity drops the per-run id and timestamp.
func stripIdentity(s model.Summary) model.Summary {
	return model.Summary{
		Months:                    s.Months,
		Universes:                 s.Universes,
		Seed:                      s.Seed,
		People:                    s.People,
		RequiredProfit:            s.RequiredProfit,
		MeanProfit:                s.MeanProfit,
		ProbabilityProfitOnTarget: s.ProbabilityProfitOnTarget,
	}
}

func TestRunWithConstantProfit(t *testing.T) {
	_ = logger.Init()

	Convey("Given a company and a fixed monthly profit", t, func() {
		company := newCompany()
		ctx := context.Background()

		Convey("When simulating", func() {
			summary, err := simulation.Run(ctx, company, forecast.Constant(20000),
				simulation.WithMonths(12), simulation.WithUniverses(10), simulation.WithWorkers(3))

			Convey("Then every universe pays the same", func() {
				So(err, ShouldBeNil)
				So(summary.ID, ShouldNotBeEmpty)
				So(summary.Months, ShouldEqual, 12)
				So(summary.Universes, ShouldEqual, 10)
				So(len(summary.People), ShouldEqual, 5)

				dean := summary.People[0]
				So(dean.Name, ShouldEqual, "dean")
				So(dean.MeanPay, ShouldAlmostEqual, 8200*12, 1e-6)
				So(dean.P05Pay, ShouldAlmostEqual, dean.P95Pay, 1e-6)
				So(dean.TargetPay, ShouldAlmostEqual, 5000*(1+1.0/12)*12, 1e-6)
				So(dean.ProbabilityOnTarget, ShouldEqual, 1.0)
			})

			Convey("And the profit clears the required profit every month", func() {
				So(summary.MeanProfit, ShouldAlmostEqual, 20000, 1e-6)
				So(summary.RequiredProfit, ShouldAlmostEqual, 4000/0.28, 1e-6)
				So(summary.ProbabilityProfitOnTarget, ShouldEqual, 1.0)
			})
		})

		Convey("When profit never covers a target", func() {
			summary, err := simulation.Run(ctx, company, forecast.Constant(-5000),
				simulation.WithMonths(6), simulation.WithUniverses(4))

			Convey("Then losses are clamped and only base salary is paid", func() {
				So(err, ShouldBeNil)
				for _, p := range summary.People {
					So(p.MeanPay, ShouldAlmostEqual, 5000*6, 1e-6)
				}
				So(summary.People[2].ProbabilityOnTarget, ShouldEqual, 0.0)
				So(summary.People[4].ProbabilityOnTarget, ShouldEqual, 1.0)
				So(summary.ProbabilityProfitOnTarget, ShouldEqual, 0.0)
				So(summary.MeanProfit, ShouldAlmostEqual, -5000, 1e-6)
			})
		})
	})
}

func TestRunIsDeterministic(t *testing.T) {
	_ = logger.Init()

	Convey("Given a random profit distribution", t, func() {
		company := newCompany()
		sampler, err := forecast.NewNormal(15000, 8000)
		So(err, ShouldBeNil)
		ctx := context.Background()

		run := func(seed int64, workers int) model.Summary {
			s, err := simulation.Run(ctx, company, sampler,
				simulation.WithMonths(12), simulation.WithUniverses(200),
				simulation.WithSeed(seed), simulation.WithWorkers(workers))
			So(err, ShouldBeNil)
			return stripIdentity(s)
		}

		Convey("When the same seed runs on different pool sizes", func() {
			one := run(7, 1)
			many := run(7, 8)

			Convey("Then the summaries are identical", func() {
				So(many, ShouldResemble, one)
			})

			Convey("And quantiles are ordered", func() {
				for _, p := range one.People {
					So(p.P05Pay, ShouldBeLessThanOrEqualTo, p.P50Pay)
					So(p.P50Pay, ShouldBeLessThanOrEqualTo, p.P95Pay)
				}
			})
		})

		Convey("When the seed changes", func() {
			a := run(7, 4)
			b := run(8, 4)

			Convey("Then the outcome changes", func() {
				So(a.MeanProfit, ShouldNotEqual, b.MeanProfit)
			})
		})
	})
}

func TestRunValidation(t *testing.T) {
	_ = logger.Init()

	Convey("Given invalid run parameters", t, func() {
		company := newCompany()
		ctx := context.Background()

		Convey("When the horizon is empty", func() {
			_, err := simulation.Run(ctx, company, forecast.Constant(1), simulation.WithMonths(0))
			So(errors.Is(err, simulation.ErrInvalidHorizon), ShouldBeTrue)
		})

		Convey("When there is no sampler", func() {
			_, err := simulation.Run(ctx, company, nil)
			So(errors.Is(err, simulation.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the context is cancelled mid-run", func() {
			running, cancel := context.WithCancel(ctx)
			defer cancel()
			sampler := &cancellingSampler{after: 50, cancel: cancel}
			_, err := simulation.Run(running, company, sampler,
				simulation.WithUniverses(500), simulation.WithWorkers(4))

			Convey("Then it fails and no worker keeps sampling after it returns", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				drawn := sampler.calls.Load()
				time.Sleep(20 * time.Millisecond)
				So(sampler.calls.Load(), ShouldEqual, drawn)
			})
		})

		Convey("When the context is already cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := simulation.Run(cancelled, company, forecast.Constant(1))
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestHire(t *testing.T) {
	Convey("Given a company", t, func() {
		company := newCompany()

		Convey("When hiring three people", func() {
			bigger, err := simulation.Hire(company, simulation.DefaultN00bs)

			Convey("Then they join as non-partners on the default target", func() {
				So(err, ShouldBeNil)
				So(bigger.NumPeople(), ShouldEqual, 8)
				n00b, ok := bigger.Person("n00b-3")
				So(ok, ShouldBeTrue)
				So(n00b.IsPartner(), ShouldBeFalse)
				So(n00b.AfterTaxTargetSalary(), ShouldAlmostEqual, company.DefaultTargetSalary(), 1e-9)
				So(company.NumPeople(), ShouldEqual, 5)
			})
		})

		Convey("When hiring a negative number", func() {
			_, err := simulation.Hire(company, -1)
			So(errors.Is(err, simulation.ErrInvalidInput), ShouldBeTrue)
		})
	})
}
