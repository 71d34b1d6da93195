// Package report reads accounting exports into monthly tables and writes
// computed allocations and simulation summaries back out as workbooks.
package report

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/okian/profitshare/internal/domain/model"
	"github.com/okian/profitshare/pkg/logger"
	"github.com/okian/profitshare/pkg/metrics"
)

// labels maps the accounting export's row labels to canonical metrics.
var labels = map[string]string{
	"total income":             model.MetricRevenue,
	"total cost of goods sold": model.MetricCOGS,
	"total expenses":           model.MetricExpenses,
	"total other income":       model.MetricOtherIncome,
	"total other expenses":     model.MetricOtherExpenses,
	"net income":               model.MetricNetIncome,
}

// monthLayouts are the header formats accepted for month columns.
var monthLayouts = []string{
	"Jan 2006",
	"January 2006",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
}

// Highest serial excelize can convert (9999-12-31).
const maxExcelSerial = 2958465

// Option configures a Reader.
type Option func(*Reader)

// WithDateRange keeps only months within [from, to]. A zero bound is open.
func WithDateRange(from, to time.Time) Option {
	return func(r *Reader) {
		r.from = from
		r.to = to
	}
}

// WithSheet reads the named sheet instead of the active one.
func WithSheet(name string) Option {
	return func(r *Reader) {
		if name != "" {
			r.sheet = name
		}
	}
}

// WithLogger sets the reader's logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reader parses monthly Profit & Loss workbooks.
type Reader struct {
	from   time.Time
	to     time.Time
	sheet  string
	logger logger.Logger
}

// NewReader creates a reader with configuration options.
func NewReader(opts ...Option) *Reader {
	r := &Reader{logger: logger.Get().Named("report")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadProfitAndLoss loads the workbook at path into a table of monthly figures.
func (r *Reader) ReadProfitAndLoss(ctx context.Context, path string) (*model.Table, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}

	headerRow, months := findMonthHeader(rows)
	if headerRow < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMonthHeader, path)
	}

	table := model.NewTable()
	for i := headerRow + 1; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := rows[i]
		if len(row) == 0 {
			continue
		}
		metric := metricFor(row[0])
		if metric == "" || !hasValues(row, months) {
			continue
		}
		for col, month := range months {
			raw := ""
			if col < len(row) {
				raw = row[col]
			}
			v, err := parseValue(raw)
			if err != nil {
				cell, _ := excelize.CoordinatesToCellName(col+1, i+1)
				return nil, fmt.Errorf("%w: %s!%s in %s: %q", ErrInvalidValue, sheet, cell, path, raw)
			}
			table.Set(month, metric, v)
		}
	}

	if !r.from.IsZero() || !r.to.IsZero() {
		table = table.Between(r.from, r.to)
	}

	elapsed := time.Since(start)
	metrics.RecordReportImport(table.Len(), float64(elapsed.Milliseconds()))
	r.logger.Debug(ctx, "report parsed",
		logger.String("path", path),
		logger.String("sheet", sheet),
		logger.Int("months", len(table.Months())),
		logger.Int("observations", table.Len()),
	)
	return table, nil
}

// findMonthHeader returns the first row having month cells after the label
// column, along with the month of each such column. Numeric date serials
// only count on rows with a blank label, so figures are never mistaken for
// months.
func findMonthHeader(rows [][]string) (int, map[int]time.Time) {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		parse := parseMonthText
		if strings.TrimSpace(row[0]) == "" {
			parse = ParseMonth
		}
		months := make(map[int]time.Time)
		for col := 1; col < len(row); col++ {
			if m, ok := parse(row[col]); ok {
				months[col] = m
			}
		}
		if len(months) > 0 {
			return i, months
		}
	}
	return -1, nil
}

// ParseMonth parses a header cell, written out or as an excel date serial,
// and returns the end of its month.
func ParseMonth(cell string) (time.Time, bool) {
	if m, ok := parseMonthText(cell); ok {
		return m, true
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || serial < 1 || serial > maxExcelSerial || serial != math.Trunc(serial) {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return model.EndOfMonth(t), true
}

func parseMonthText(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return model.EndOfMonth(t), true
		}
	}
	return time.Time{}, false
}

// parseValue reads an accounting figure. Blank cells are zero and
// parentheses mark negatives.
func parseValue(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "=")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidValue
	}
	if negative {
		v = -v
	}
	return v, nil
}

func hasValues(row []string, months map[int]time.Time) bool {
	for col := range months {
		if col < len(row) && strings.TrimSpace(row[col]) != "" {
			return true
		}
	}
	return false
}

// metricFor maps a row label to its canonical metric or a slug of the label.
func metricFor(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	if metric, ok := labels[strings.ToLower(label)]; ok {
		return metric
	}
	return Slug(label)
}

// Slug lowercases s and joins its letter and digit runs with underscores.
func Slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
