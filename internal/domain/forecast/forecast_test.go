package forecast_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/profitshare/internal/domain/forecast"
	"github.com/okian/profitshare/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func history(profits ...float64) *model.Table {
	table := model.NewTable()
	start := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range profits {
		table.Set(start.AddDate(0, i, 0), model.MetricNetIncome, p)
	}
	return table
}

func TestHistorical(t *testing.T) {
	Convey("Given a profit history", t, func() {
		table := history(1000, 2000, 3000, 4000)

		Convey("When building a bootstrap sampler", func() {
			sampler, err := forecast.NewHistorical(table)

			Convey("Then every draw is an observed month", func() {
				So(err, ShouldBeNil)
				So(sampler.Len(), ShouldEqual, 4)
				So(sampler.Mean(), ShouldEqual, 2500.0)
				rng := rand.New(rand.NewSource(1))
				for i := 0; i < 100; i++ {
					So(sampler.Sample(rng), ShouldBeIn, 1000.0, 2000.0, 3000.0, 4000.0)
				}
			})

			Convey("And the same seed replays the same draws", func() {
				a := rand.New(rand.NewSource(7))
				b := rand.New(rand.NewSource(7))
				for i := 0; i < 20; i++ {
					So(sampler.Sample(a), ShouldEqual, sampler.Sample(b))
				}
			})
		})

		Convey("When scaling and windowing", func() {
			sampler, err := forecast.NewHistorical(table, forecast.WithScale(0.5), forecast.WithWindow(2))

			Convey("Then only recent months are kept and scaled", func() {
				So(err, ShouldBeNil)
				So(sampler.Len(), ShouldEqual, 2)
				So(sampler.Mean(), ShouldEqual, 1750.0)
			})
		})

		Convey("When the history is empty", func() {
			_, err := forecast.NewHistorical(model.NewTable())

			Convey("Then there is nothing to sample", func() {
				So(errors.Is(err, forecast.ErrNoHistory), ShouldBeTrue)
			})
		})

		Convey("When there is no table at all", func() {
			_, err := forecast.NewHistorical(nil)
			So(errors.Is(err, forecast.ErrNoHistory), ShouldBeTrue)
		})
	})
}

func TestNormal(t *testing.T) {
	Convey("Given a normal profit distribution", t, func() {
		Convey("When the spread is zero", func() {
			sampler, err := forecast.NewNormal(20000, 0)

			Convey("Then every draw is the mean", func() {
				So(err, ShouldBeNil)
				So(sampler.Sample(rand.New(rand.NewSource(3))), ShouldEqual, 20000.0)
			})
		})

		Convey("When drawing many samples", func() {
			sampler, err := forecast.NewNormal(20000, 5000)
			So(err, ShouldBeNil)
			rng := rand.New(rand.NewSource(11))
			var sum float64
			const n = 20000
			for i := 0; i < n; i++ {
				sum += sampler.Sample(rng)
			}

			Convey("Then the sample mean approaches the mean", func() {
				So(sum/n, ShouldAlmostEqual, 20000, 200)
			})
		})

		Convey("When the parameters are invalid", func() {
			_, negative := forecast.NewNormal(100, -1)
			_, nan := forecast.NewNormal(math.NaN(), 1)

			Convey("Then construction fails", func() {
				So(errors.Is(negative, forecast.ErrInvalidDistribution), ShouldBeTrue)
				So(errors.Is(nan, forecast.ErrInvalidDistribution), ShouldBeTrue)
			})
		})
	})

	Convey("Given a constant sampler", t, func() {
		So(forecast.Constant(42).Sample(nil), ShouldEqual, 42.0)
	})
}
