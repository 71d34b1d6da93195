package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/profitshare/internal/domain/compensation"
	"github.com/okian/profitshare/internal/domain/model"
)

// Sheet names used by the writer.
const (
	SheetAllocations   = "Allocations"
	SheetSummary       = "Summary"
	SheetProfitAndLoss = "Profit and Loss"
)

// exportLabels renders canonical metrics with the labels the reader accepts.
var exportLabels = map[string]string{
	model.MetricRevenue:       "Total Income",
	model.MetricCOGS:          "Total Cost of Goods Sold",
	model.MetricExpenses:      "Total Expenses",
	model.MetricOtherIncome:   "Total Other Income",
	model.MetricOtherExpenses: "Total Other Expenses",
	model.MetricNetIncome:     "Net Income",
}

// Writer saves computed tables as xlsx workbooks.
type Writer struct{}

// NewWriter creates a Writer.
func NewWriter() *Writer { return &Writer{} }

// WriteAllocations saves one row per person.
func (w *Writer) WriteAllocations(path string, allocations []compensation.Allocation) error {
	rows := make([][]any, 0, len(allocations)+1)
	rows = append(rows, []any{
		"Name", "Ownership", "Partner", "Active", "After-tax target salary",
		"Fraction dividends", "Fraction bonus", "Net fraction of profits",
		"After-tax salary from bonus", "After-tax salary from dividends",
		"After-tax salary", "Before-tax target bonus+dividends",
	})
	for _, a := range allocations {
		rows = append(rows, []any{
			a.Name, a.Ownership, a.Partner, a.Active, a.AfterTaxTargetSalary,
			a.FractionDividends, a.FractionBonus, a.NetFractionOfProfits,
			a.AfterTaxSalaryFromBonus, a.AfterTaxSalaryFromDividends,
			a.AfterTaxSalary, a.BeforeTaxTargetBonusDividends,
		})
	}
	return save(path, SheetAllocations, rows)
}

// WriteSummary saves a simulation summary, run details first.
func (w *Writer) WriteSummary(path string, s model.Summary) error {
	rows := [][]any{
		{"Run", s.ID},
		{"Created", s.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Months", s.Months},
		{"Universes", s.Universes},
		{"Seed", s.Seed},
		{"Required monthly profit", requiredProfit(s)},
		{"Mean monthly profit", s.MeanProfit},
		{"P(profit on target)", s.ProbabilityProfitOnTarget},
		{},
		{"Name", "Partner", "Target pay", "Mean pay", "P05 pay", "P50 pay", "P95 pay", "P(on target)"},
	}
	for _, p := range s.People {
		rows = append(rows, []any{
			p.Name, p.Partner, p.TargetPay, p.MeanPay, p.P05Pay, p.P50Pay, p.P95Pay, p.ProbabilityOnTarget,
		})
	}
	return save(path, SheetSummary, rows)
}

// WriteTable saves a monthly table in the layout ReadProfitAndLoss accepts.
func (w *Writer) WriteTable(path string, table *model.Table) error {
	months := table.Months()
	header := make([]any, 0, len(months)+1)
	header = append(header, "")
	for _, m := range months {
		header = append(header, m.Format("Jan 2006"))
	}

	metricSet := make(map[string]struct{})
	for _, o := range table.Observations() {
		metricSet[o.Metric] = struct{}{}
	}
	metrics := make([]string, 0, len(metricSet))
	for m := range metricSet {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	rows := [][]any{{SheetProfitAndLoss}, header}
	for _, metric := range metrics {
		label, ok := exportLabels[metric]
		if !ok {
			label = strings.ReplaceAll(metric, "_", " ")
		}
		row := []any{label}
		for _, m := range months {
			if v, ok := table.Value(m, metric); ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		rows = append(rows, row)
	}
	return save(path, SheetProfitAndLoss, rows)
}

func requiredProfit(s model.Summary) any {
	if s.TargetUnreachable {
		return "unreachable"
	}
	return s.RequiredProfit
}

func save(path, sheet string, rows [][]any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet %q: %w", sheet, err)
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
