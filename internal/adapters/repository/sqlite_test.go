package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/profitshare/internal/adapters/repository"
	"github.com/okian/profitshare/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func jan(year int) time.Time {
	return time.Date(year, time.January, 31, 0, 0, 0, 0, time.UTC)
}

func TestSQLiteStoreTables(t *testing.T) {
	Convey("Given a fresh SQLite store", t, func() {
		ctx := context.Background()
		store, err := repository.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "nested", "cache.db"))
		So(err, ShouldBeNil)
		defer func() { _ = store.Close() }()

		Convey("When loading a table that was never saved", func() {
			_, err := store.LoadTable(ctx, "pl.xlsx")

			Convey("Then it should report not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When saving and loading a table", func() {
			table := model.NewTable(
				model.Observation{Month: jan(2015), Metric: model.MetricNetIncome, Value: 8000},
				model.Observation{Month: jan(2015), Metric: model.MetricRevenue, Value: 12000},
				model.Observation{Month: jan(2016), Metric: model.MetricNetIncome, Value: -300.25},
			)
			So(store.SaveTable(ctx, "pl.xlsx", table), ShouldBeNil)
			loaded, err := store.LoadTable(ctx, "pl.xlsx")

			Convey("Then the observations should round trip", func() {
				So(err, ShouldBeNil)
				So(loaded.Observations(), ShouldResemble, table.Observations())
			})

			Convey("And saving again should replace the cached table", func() {
				smaller := model.NewTable(model.Observation{Month: jan(2017), Metric: model.MetricNetIncome, Value: 1})
				So(store.SaveTable(ctx, "pl.xlsx", smaller), ShouldBeNil)
				loaded, err := store.LoadTable(ctx, "pl.xlsx")
				So(err, ShouldBeNil)
				So(loaded.Len(), ShouldEqual, 1)
			})
		})
	})
}

func TestSQLiteStoreRuns(t *testing.T) {
	Convey("Given a store with saved runs", t, func() {
		ctx := context.Background()
		store, err := repository.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "runs.db"))
		So(err, ShouldBeNil)
		defer func() { _ = store.Close() }()

		first := model.Summary{
			ID:        uuid.NewString(),
			CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Months:    12,
			Universes: 1000,
			Seed:      42,
			People: []model.PersonSummary{
				{Name: "dean", Partner: true, TargetPay: 65000, MeanPay: 98400, P05Pay: 90000, P50Pay: 98000, P95Pay: 105000, ProbabilityOnTarget: 0.97},
				{Name: "jess", TargetPay: 65000, MeanPay: 88000, ProbabilityOnTarget: 0.91},
			},
			RequiredProfit:            14285.71,
			MeanProfit:                20000,
			ProbabilityProfitOnTarget: 0.8,
		}
		second := model.Summary{
			ID:                uuid.NewString(),
			CreatedAt:         first.CreatedAt.Add(time.Hour),
			Months:            6,
			Universes:         10,
			Seed:              7,
			TargetUnreachable: true,
		}
		So(store.SaveRun(ctx, first), ShouldBeNil)
		So(store.SaveRun(ctx, second), ShouldBeNil)

		Convey("When fetching a run by id", func() {
			got, err := store.GetRun(ctx, first.ID)

			Convey("Then it should include people in roster order", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, first)
			})
		})

		Convey("When fetching an unknown run", func() {
			_, err := store.GetRun(ctx, uuid.NewString())
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When listing runs", func() {
			runs, err := store.ListRuns(ctx, 10)

			Convey("Then the newest comes first without people", func() {
				So(err, ShouldBeNil)
				So(len(runs), ShouldEqual, 2)
				So(runs[0].ID, ShouldEqual, second.ID)
				So(runs[0].TargetUnreachable, ShouldBeTrue)
				So(runs[1].People, ShouldBeNil)
			})
		})

		Convey("When listing with a bad limit", func() {
			_, err := store.ListRuns(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("When saving a run with a malformed id", func() {
			err := store.SaveRun(ctx, model.Summary{ID: "not-a-uuid"})
			So(errors.Is(err, repository.ErrInvalidRun), ShouldBeTrue)
		})

		Convey("When saving a run without an id", func() {
			err := store.SaveRun(ctx, model.Summary{Months: 1, Universes: 1})
			runs, listErr := store.ListRuns(ctx, 10)

			Convey("Then one is generated", func() {
				So(err, ShouldBeNil)
				So(listErr, ShouldBeNil)
				So(len(runs), ShouldEqual, 3)
			})
		})
	})
}
