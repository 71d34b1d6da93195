// Package config defines process configuration: company knobs, the roster
// and the runtime settings shared by the CLI and the HTTP server.
//
// Conventions:
// - Provide New() to build a Config with defaults and Load to layer sources.
// - Defaulting of per-person values happens here, when the roster is built.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/profitshare/internal/domain/compensation"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of simulation workers.
	WorkerCount int `koanf:"worker_count"`

	// Months and Universes size a simulation run.
	Months    int `koanf:"months"`
	Universes int `koanf:"universes"`

	// N00bs is how many people the hiring scenario adds.
	N00bs int `koanf:"n00bs"`

	// Seed is the base seed of the simulation generators.
	Seed int64 `koanf:"seed"`

	// DBPath locates the SQLite report cache and run history.
	DBPath string `koanf:"db_path"`

	// ReportPath is the default Profit & Loss workbook to import.
	ReportPath string `koanf:"report_path"`

	// ReportSheet names the workbook sheet to read instead of the active one.
	ReportSheet string `koanf:"report_sheet"`

	// ReportFrom and ReportTo bound the imported months, inclusive. Either may
	// be empty. Accepted forms are 2006-01, 2006-01-02 and "Jan 2006".
	ReportFrom string `koanf:"report_from"`
	ReportTo   string `koanf:"report_to"`

	// OutputPath, when set, receives xlsx output of CLI commands.
	OutputPath string `koanf:"output_path"`

	// MetricsFile, when set, receives a Prometheus text dump after CLI runs.
	MetricsFile string `koanf:"metrics_file"`

	// HistoryWindow keeps only the most recent months of report history.
	HistoryWindow int `koanf:"history_window"`

	// HistoryScale multiplies every historical profit before sampling.
	HistoryScale float64 `koanf:"history_scale"`

	// ProfitStddev spreads the normal profit forecast used without a report.
	ProfitStddev float64 `koanf:"profit_stddev"`

	// Company-wide compensation knobs.
	TaxRate              float64 `koanf:"tax_rate"`
	AfterTaxSalary       float64 `koanf:"after_tax_salary"`
	BonusMonths          float64 `koanf:"bonus_months"`
	DividendFraction     float64 `koanf:"dividend_fraction"`
	AfterTaxTargetProfit float64 `koanf:"after_tax_target_profit"`

	// People lists the roster in order. Names that only appear in the
	// ownership or take_home_pay sections are appended in name order.
	People []string `koanf:"people"`

	// Ownership maps a person to their equity fraction as a decimal string.
	Ownership map[string]string `koanf:"ownership"`

	// TakeHomePay maps a person to their monthly after-tax target salary as a
	// decimal string.
	TakeHomePay map[string]string `koanf:"take_home_pay"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		WorkerCount:          runtime.NumCPU(),
		Months:               12,
		Universes:            1000,
		N00bs:                3,
		Seed:                 42,
		DBPath:               "profitshare.db",
		HistoryScale:         1,
		ProfitStddev:         5000,
		TaxRate:              0.3,
		AfterTaxSalary:       5000,
		BonusMonths:          1,
		DividendFraction:     0.4,
		AfterTaxTargetProfit: 20000,
		Ownership:            map[string]string{},
		TakeHomePay:          map[string]string{},
	}
}

// Validate checks the runtime settings and the company roster.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Months < 1:
		return fmt.Errorf("%w: months must be positive, got %d", ErrInvalidConfig, c.Months)
	case c.Universes < 1:
		return fmt.Errorf("%w: universes must be positive, got %d", ErrInvalidConfig, c.Universes)
	case c.N00bs < 0:
		return fmt.Errorf("%w: n00bs must not be negative, got %d", ErrInvalidConfig, c.N00bs)
	case c.ProfitStddev < 0:
		return fmt.Errorf("%w: profit_stddev must not be negative", ErrInvalidConfig)
	case !(c.HistoryScale > 0) || math.IsInf(c.HistoryScale, 0):
		return fmt.Errorf("%w: history_scale must be a finite positive number", ErrInvalidConfig)
	}
	if _, _, err := c.ReportRange(); err != nil {
		return err
	}
	_, err := c.Company()
	return err
}

// reportMonthLayouts are the accepted forms of report_from and report_to.
var reportMonthLayouts = []string{"2006-01", "2006-01-02", "Jan 2006"}

// ReportRange parses the report bounds to the first of their month. An empty
// bound is the zero time.
func (c *Config) ReportRange() (from, to time.Time, err error) {
	if from, err = parseReportMonth("report_from", c.ReportFrom); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to, err = parseReportMonth("report_to", c.ReportTo); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: report_to %s is before report_from %s", ErrInvalidConfig, c.ReportTo, c.ReportFrom)
	}
	return from, to, nil
}

func parseReportMonth(key, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range reportMonthLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s is %q, want a month like 2024-01", ErrInvalidConfig, key, raw)
}

// Settings returns the company-wide compensation knobs.
func (c *Config) Settings() compensation.Settings {
	return compensation.Settings{
		TaxRate:              c.TaxRate,
		AfterTaxSalary:       c.AfterTaxSalary,
		BonusMonths:          c.BonusMonths,
		DividendFraction:     c.DividendFraction,
		AfterTaxTargetProfit: c.AfterTaxTargetProfit,
	}
}

// Members builds the roster. Names match case-insensitively across People
// and the maps. Missing ownership is zero. A missing, malformed, infinite or
// negative take home pay falls back to the company default. Malformed
// ownership is a configuration error.
func (c *Config) Members() ([]compensation.Member, error) {
	ownership, err := foldNames("ownership", c.Ownership)
	if err != nil {
		return nil, err
	}
	takeHome, err := foldNames("take_home_pay", c.TakeHomePay)
	if err != nil {
		return nil, err
	}
	names, err := rosterNames(c.People, ownership, takeHome)
	if err != nil {
		return nil, err
	}

	members := make([]compensation.Member, 0, len(names))
	for _, name := range names {
		m := compensation.Member{Name: name}
		key := personKey(name)

		if raw, ok := ownership[key]; ok && strings.TrimSpace(raw) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: ownership of %s is %q", ErrInvalidConfig, name, raw)
			}
			m.Ownership = v
		}

		if raw, ok := takeHome[key]; ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err == nil && v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
				m.TakeHomePay = &v
			}
		}
		members = append(members, m)
	}
	return members, nil
}

// Company builds the compensation model described by the configuration.
func (c *Config) Company() (*compensation.Company, error) {
	members, err := c.Members()
	if err != nil {
		return nil, err
	}
	company, err := compensation.NewCompany(c.Settings(), members...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return company, nil
}

// personKey is the case-insensitive identity of a roster name.
func personKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// foldNames rekeys a per-person section by personKey.
func foldNames(section string, values map[string]string) (map[string]string, error) {
	folded := make(map[string]string, len(values))
	for name, v := range values {
		key := personKey(name)
		if _, dup := folded[key]; dup {
			return nil, fmt.Errorf("%w: %s lists %q more than once", ErrInvalidConfig, section, key)
		}
		folded[key] = v
	}
	return folded, nil
}

// rosterNames lists people first, then names only found in the folded maps.
// People keep their spelling. Names differing only in case are rejected.
func rosterNames(people []string, sections ...map[string]string) ([]string, error) {
	seen := make(map[string]string)
	var names []string
	for _, n := range people {
		n = strings.TrimSpace(n)
		key := personKey(n)
		if prev, ok := seen[key]; ok && n != "" && prev != n {
			return nil, fmt.Errorf("%w: %w: %q and %q", ErrInvalidConfig, compensation.ErrDuplicatePerson, prev, n)
		}
		// Blanks and exact duplicates are left to the company validation.
		if _, ok := seen[key]; !ok && n != "" {
			seen[key] = n
		}
		names = append(names, n)
	}

	var extra []string
	for _, section := range sections {
		for key := range section {
			if _, ok := seen[key]; !ok {
				seen[key] = key
				extra = append(extra, key)
			}
		}
	}
	sort.Strings(extra)
	return append(names, extra...), nil
}
