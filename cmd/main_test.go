package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/profitshare/internal/adapters/report"
	"github.com/okian/profitshare/internal/config"
	"github.com/okian/profitshare/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

const companyYAML = `
worker_count: 2
tax_rate: 0.3
after_tax_salary: 5000
bonus_months: 1
dividend_fraction: 0.4
after_tax_target_profit: 20000
profit_stddev: 0
people: [dean, mike, gabe, jess, vlad]
ownership:
  dean: 0.1
  mike: 0.5
  gabe: 0.4
take_home_pay:
  gabe: 9000
  vlad: 0
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profitshare.yaml")
	if err := os.WriteFile(path, []byte(companyYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROFITSHARE_DB_PATH", filepath.Join(dir, "profitshare.db"))
	configPath := writeConfig(t)

	convey.Convey("Given the command line", t, func() {
		ctx := context.Background()
		var stdout, stderr bytes.Buffer

		convey.Convey("When asking for help", func() {
			err := run(ctx, []string{"help"}, &stdout, &stderr)

			convey.Convey("Then usage is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout.String(), convey.ShouldContainSubstring, "simulate")
			})
		})

		convey.Convey("When the command is unknown", func() {
			err := run(ctx, []string{"dance"}, &stdout, &stderr)

			convey.Convey("Then it fails with usage", func() {
				convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
				convey.So(stderr.String(), convey.ShouldContainSubstring, "commands:")
			})
		})

		convey.Convey("When allocating at the target profit", func() {
			err := run(ctx, []string{"allocate", "--config", configPath, "--profit", "20000"}, &stdout, &stderr)

			convey.Convey("Then every person is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				out := stdout.String()
				convey.So(out, convey.ShouldContainSubstring, "dean")
				convey.So(out, convey.ShouldContainSubstring, "8200.00")
				convey.So(out, convey.ShouldContainSubstring, "vlad")
			})
		})

		convey.Convey("When simulating with outputs", func() {
			output := filepath.Join(dir, "summary.xlsx")
			metricsFile := filepath.Join(dir, "metrics.prom")
			err := run(ctx, []string{
				"simulate", "--config", configPath,
				"--n-months", "3", "--n-universes", "5", "--seed", "7",
				"--output", output, "--metrics-file", metricsFile,
			}, &stdout, &stderr)

			convey.Convey("Then the summary is printed and written", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout.String(), convey.ShouldContainSubstring, "5 universes x 3 months, seed 7")
				_, statErr := os.Stat(output)
				convey.So(statErr, convey.ShouldBeNil)
				_, statErr = os.Stat(metricsFile)
				convey.So(statErr, convey.ShouldBeNil)
			})
		})

		convey.Convey("When hiring", func() {
			err := run(ctx, []string{"hire", "--config", configPath, "--n-n00bs", "2", "--n-months", "2", "--n-universes", "3"}, &stdout, &stderr)

			convey.Convey("Then the new hires are listed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout.String(), convey.ShouldContainSubstring, "n00b-2")
			})
		})

		convey.Convey("When importing without a report", func() {
			err := run(ctx, []string{"import", "--config", configPath}, &stdout, &stderr)

			convey.Convey("Then the configuration is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the config file leaves the horizon empty", func() {
			path := filepath.Join(t.TempDir(), "no-horizon.yaml")
			convey.So(os.WriteFile(path, []byte(companyYAML+"months: 0\n"), 0o600), convey.ShouldBeNil)

			convey.Convey("Then the horizon flag completes it", func() {
				err := run(ctx, []string{"simulate", "--config", path, "--n-months", "6", "--n-universes", "2"}, &stdout, &stderr)
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout.String(), convey.ShouldContainSubstring, "2 universes x 6 months")
			})

			convey.Convey("And without the flag the configuration is rejected", func() {
				err := run(ctx, []string{"simulate", "--config", path}, &stdout, &stderr)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When importing part of a report", func() {
			reportPath := filepath.Join(t.TempDir(), "pl.xlsx")
			table := model.NewTable()
			for i := 0; i < 6; i++ {
				table.Set(time.Date(2015, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC), model.MetricNetIncome, 20000)
			}
			convey.So(report.NewWriter().WriteTable(reportPath, table), convey.ShouldBeNil)

			convey.Convey("Then only the selected months are imported", func() {
				err := run(ctx, []string{
					"import", "--config", configPath, "--report", reportPath,
					"--from", "2015-03", "--to", "2015-04", "--sheet", report.SheetProfitAndLoss,
				}, &stdout, &stderr)
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout.String(), convey.ShouldContainSubstring, "imported 2 months")
			})

			convey.Convey("And a reversed range is rejected", func() {
				err := run(ctx, []string{
					"import", "--config", configPath, "--report", reportPath,
					"--from", "2015-04", "--to", "2015-03",
				}, &stdout, &stderr)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a flag is not valid for the command", func() {
			err := run(ctx, []string{"allocate", "--n-n00bs", "3"}, &stdout, &stderr)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestParseFlags(t *testing.T) {
	convey.Convey("Given command line flags", t, func() {
		var stderr bytes.Buffer

		convey.Convey("When only some flags are set", func() {
			f, err := parseFlags("simulate", []string{"-v", "--n-months", "6"}, &stderr)
			convey.So(err, convey.ShouldBeNil)

			cfg := config.New()
			f.apply(cfg)

			convey.Convey("Then unset flags keep configured values", func() {
				convey.So(f.verbose, convey.ShouldBeTrue)
				convey.So(cfg.Months, convey.ShouldEqual, 6)
				convey.So(cfg.Universes, convey.ShouldEqual, 1000)
				convey.So(cfg.Seed, convey.ShouldEqual, 42)
			})
		})

		convey.Convey("When report flags are set", func() {
			f, err := parseFlags("import", []string{"--from", "2024-01", "--to", "Jun 2024", "--sheet", "P&L"}, &stderr)
			convey.So(err, convey.ShouldBeNil)

			cfg := config.New()
			f.apply(cfg)

			convey.Convey("Then they override the report settings", func() {
				convey.So(cfg.ReportFrom, convey.ShouldEqual, "2024-01")
				convey.So(cfg.ReportTo, convey.ShouldEqual, "Jun 2024")
				convey.So(cfg.ReportSheet, convey.ShouldEqual, "P&L")
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When positional arguments are left over", func() {
			_, err := parseFlags("simulate", []string{"extra"}, &stderr)
			convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
		})

		convey.Convey("When asking for flag help", func() {
			_, err := parseFlags("serve", []string{"-h"}, &stderr)
			convey.So(errors.Is(err, flag.ErrHelp), convey.ShouldBeTrue)
			convey.So(stderr.String(), convey.ShouldContainSubstring, "-addr")
		})
	})
}
