package report_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/profitshare/internal/adapters/report"
	"github.com/okian/profitshare/internal/domain/compensation"
	"github.com/okian/profitshare/internal/domain/model"
	"github.com/okian/profitshare/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func endOf(y int, m time.Month) time.Time {
	return model.EndOfMonth(time.Date(y, m, 1, 0, 0, 0, 0, time.UTC))
}

// writeWorkbook saves rows to a single sheet workbook.
func writeWorkbook(path string, rows [][]any) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			panic(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		panic(err)
	}
}

func profitAndLoss() [][]any {
	return [][]any{
		{"Acme Consulting"},
		{"Profit and Loss"},
		{"January - March 2015"},
		{"", "Jan 2015", "Feb 2015", "Mar 2015", "Total"},
		{"Income"},
		{"   Services", "$12,000.00", "11000", "=9,500.00", "32500"},
		{"Total Income", "$12,000.00", "11000", "=9,500.00", "32500"},
		{"Total Cost of Goods Sold", "", "1,000.00", "500", "1500"},
		{"Total Expenses", "4000", "(250.00)", "4200", "7950"},
		{"Net Income", "8000", "10,250.00", "4800", "23050"},
		{"Cash Basis Tuesday, April 7, 2015"},
	}
}

func TestReadProfitAndLoss(t *testing.T) {
	_ = logger.Init()

	Convey("Given an exported profit and loss workbook", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "pl.xlsx")
		writeWorkbook(path, profitAndLoss())
		ctx := context.Background()

		Convey("When reading it", func() {
			table, err := report.NewReader().ReadProfitAndLoss(ctx, path)

			Convey("Then months come from the header row", func() {
				So(err, ShouldBeNil)
				months := table.Months()
				So(len(months), ShouldEqual, 3)
				So(months[0].Equal(endOf(2015, time.January)), ShouldBeTrue)
				So(months[2].Equal(endOf(2015, time.March)), ShouldBeTrue)
			})

			Convey("And totals map to canonical metrics", func() {
				v, ok := table.Value(endOf(2015, time.January), model.MetricRevenue)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 12000.0)
				v, _ = table.Value(endOf(2015, time.March), model.MetricRevenue)
				So(v, ShouldEqual, 9500.0)
				v, _ = table.Value(endOf(2015, time.February), model.MetricExpenses)
				So(v, ShouldEqual, -250.0)
			})

			Convey("And blank cells read as zero", func() {
				v, ok := table.Value(endOf(2015, time.January), model.MetricCOGS)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 0.0)
			})

			Convey("And other labels are kept as slugs", func() {
				v, ok := table.Value(endOf(2015, time.February), "services")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 11000.0)
				_, ok = table.Value(endOf(2015, time.January), "income")
				So(ok, ShouldBeFalse)
			})

			Convey("And profit prefers net income", func() {
				p, ok := table.Profit(endOf(2015, time.February))
				So(ok, ShouldBeTrue)
				So(p, ShouldEqual, 10250.0)
			})
		})

		Convey("When restricting to a date range", func() {
			table, err := report.NewReader(report.WithDateRange(endOf(2015, time.February), endOf(2015, time.February))).
				ReadProfitAndLoss(ctx, path)

			Convey("Then only that month is kept", func() {
				So(err, ShouldBeNil)
				So(len(table.Months()), ShouldEqual, 1)
			})
		})
	})
}

func TestReadProfitAndLossErrors(t *testing.T) {
	_ = logger.Init()

	Convey("Given malformed workbooks", t, func() {
		dir := t.TempDir()
		ctx := context.Background()

		Convey("When there is no month header", func() {
			path := filepath.Join(dir, "nohdr.xlsx")
			writeWorkbook(path, [][]any{{"Name", "Amount"}, {"x", 1}})
			_, err := report.NewReader().ReadProfitAndLoss(ctx, path)
			So(errors.Is(err, report.ErrNoMonthHeader), ShouldBeTrue)
		})

		Convey("When a value is not numeric", func() {
			path := filepath.Join(dir, "bad.xlsx")
			writeWorkbook(path, [][]any{{"", "Jan 2015"}, {"Net Income", "lots"}})
			_, err := report.NewReader().ReadProfitAndLoss(ctx, path)
			So(errors.Is(err, report.ErrInvalidValue), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "B2")
		})

		Convey("When the file does not exist", func() {
			_, err := report.NewReader().ReadProfitAndLoss(ctx, filepath.Join(dir, "missing.xlsx"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParseMonth(t *testing.T) {
	Convey("Given header cells in different formats", t, func() {
		jan := endOf(2015, time.January)

		Convey("Then each parses to the end of its month", func() {
			for _, cell := range []string{"Jan 2015", "January 2015", "01/31/2015", "1/15/2015", "2015-01-31", "42035"} {
				m, ok := report.ParseMonth(cell)
				So(ok, ShouldBeTrue)
				So(m.Equal(jan), ShouldBeTrue)
			}
		})

		Convey("Then labels and fractions are not months", func() {
			for _, cell := range []string{"", "Total", "12.5", "-3"} {
				_, ok := report.ParseMonth(cell)
				So(ok, ShouldBeFalse)
			}
		})
	})
}

func TestSlug(t *testing.T) {
	Convey("Given free form labels", t, func() {
		So(report.Slug("Total Payroll Expenses"), ShouldEqual, "total_payroll_expenses")
		So(report.Slug("  6000 Rent & Lease "), ShouldEqual, "6000_rent_lease")
		So(report.Slug("---"), ShouldEqual, "")
	})
}

func TestWriter(t *testing.T) {
	_ = logger.Init()

	Convey("Given a writer", t, func() {
		dir := t.TempDir()
		w := report.NewWriter()

		Convey("When writing a table", func() {
			table := model.NewTable(
				model.Observation{Month: endOf(2016, time.May), Metric: model.MetricNetIncome, Value: 1234.5},
				model.Observation{Month: endOf(2016, time.June), Metric: model.MetricNetIncome, Value: -20},
				model.Observation{Month: endOf(2016, time.June), Metric: "payroll", Value: 900},
			)
			path := filepath.Join(dir, "out", "table.xlsx")
			err := w.WriteTable(path, table)

			Convey("Then the reader gets the same figures back", func() {
				So(err, ShouldBeNil)
				back, err := report.NewReader().ReadProfitAndLoss(context.Background(), path)
				So(err, ShouldBeNil)
				So(back.Profits(), ShouldResemble, []float64{1234.5, -20})
				v, ok := back.Value(endOf(2016, time.June), "payroll")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 900.0)
			})
		})

		Convey("When writing allocations", func() {
			company, err := compensation.NewCompany(compensation.Settings{
				TaxRate: 0.3, AfterTaxSalary: 5000, BonusMonths: 1, DividendFraction: 0.4, AfterTaxTargetProfit: 20000,
			}, compensation.Member{Name: "dean", Ownership: 0.1}, compensation.Member{Name: "jess"})
			So(err, ShouldBeNil)
			allocations, err := company.Allocations()
			So(err, ShouldBeNil)
			path := filepath.Join(dir, "alloc.xlsx")

			Convey("Then there is a header and a row per person", func() {
				So(w.WriteAllocations(path, allocations), ShouldBeNil)
				f, err := excelize.OpenFile(path)
				So(err, ShouldBeNil)
				defer func() { _ = f.Close() }()
				rows, err := f.GetRows(report.SheetAllocations)
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 3)
				So(rows[1][0], ShouldEqual, "dean")
			})
		})

		Convey("When writing a summary", func() {
			path := filepath.Join(dir, "summary.xlsx")
			summary := model.Summary{
				ID: "run-1", Months: 12, Universes: 10, Seed: 42,
				People: []model.PersonSummary{{Name: "dean", MeanPay: 98400}},
			}

			Convey("Then run details precede the people table", func() {
				So(w.WriteSummary(path, summary), ShouldBeNil)
				f, err := excelize.OpenFile(path)
				So(err, ShouldBeNil)
				defer func() { _ = f.Close() }()
				id, err := f.GetCellValue(report.SheetSummary, "B1")
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "run-1")
				name, _ := f.GetCellValue(report.SheetSummary, "A11")
				So(name, ShouldEqual, "dean")
			})
		})
	})
}
