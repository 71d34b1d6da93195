// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"time"
)

// Canonical metric names produced by report ingestion.
const (
	MetricRevenue       = "revenue"
	MetricCOGS          = "cogs"
	MetricExpenses      = "expenses"
	MetricOtherIncome   = "other_income"
	MetricOtherExpenses = "other_expenses"
	MetricNetIncome     = "net_income"
)

// Observation is one numeric figure for one month.
type Observation struct {
	Month  time.Time // last day of the month, UTC
	Metric string
	Value  float64
}

type key struct {
	month  time.Time
	metric string
}

// Table is a normalized set of monthly figures keyed by (month, metric).
// Setting an existing key replaces its value.
type Table struct {
	values map[key]float64
}

// NewTable builds a table from observations.
func NewTable(obs ...Observation) *Table {
	t := &Table{values: make(map[key]float64, len(obs))}
	for _, o := range obs {
		t.Set(o.Month, o.Metric, o.Value)
	}
	return t
}

// EndOfMonth returns the last day of t's month at midnight UTC.
func EndOfMonth(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1)
}

// Set records value for (month, metric). The month is normalized to its end.
func (t *Table) Set(month time.Time, metric string, value float64) {
	if t.values == nil {
		t.values = make(map[key]float64)
	}
	t.values[key{month: EndOfMonth(month), metric: metric}] = value
}

// Value returns the figure for (month, metric).
func (t *Table) Value(month time.Time, metric string) (float64, bool) {
	v, ok := t.values[key{month: EndOfMonth(month), metric: metric}]
	return v, ok
}

// Len returns the number of observations.
func (t *Table) Len() int { return len(t.values) }

// Months returns the distinct months in ascending order.
func (t *Table) Months() []time.Time {
	seen := make(map[time.Time]struct{})
	for k := range t.values {
		seen[k.month] = struct{}{}
	}
	months := make([]time.Time, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

// Observations returns every figure ordered by month then metric.
func (t *Table) Observations() []Observation {
	out := make([]Observation, 0, len(t.values))
	for k, v := range t.values {
		out = append(out, Observation{Month: k.month, Metric: k.metric, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Metric < out[j].Metric
	})
	return out
}

// Between returns a table restricted to months within [from, to]. A zero
// bound is open.
func (t *Table) Between(from, to time.Time) *Table {
	out := NewTable()
	for k, v := range t.values {
		if !from.IsZero() && k.month.Before(EndOfMonth(from)) {
			continue
		}
		if !to.IsZero() && k.month.After(EndOfMonth(to)) {
			continue
		}
		out.values[k] = v
	}
	return out
}

// Profit is the month's net income when reported, otherwise it is derived
// from the income and expense totals. The second result is false when the
// month has none of those figures.
func (t *Table) Profit(month time.Time) (float64, bool) {
	if v, ok := t.Value(month, MetricNetIncome); ok {
		return v, true
	}
	var profit float64
	found := false
	for _, term := range profitTerms {
		if v, ok := t.Value(month, term.metric); ok {
			profit += term.sign * v
			found = true
		}
	}
	return profit, found
}

// profitTerms derive profit when net income is missing. The order is fixed so
// the sum is reproducible to the last bit.
var profitTerms = []struct {
	metric string
	sign   float64
}{
	{MetricRevenue, 1},
	{MetricOtherIncome, 1},
	{MetricCOGS, -1},
	{MetricExpenses, -1},
	{MetricOtherExpenses, -1},
}

// Profits returns the monthly profit series in month order, skipping months
// without any profit figures.
func (t *Table) Profits() []float64 {
	months := t.Months()
	out := make([]float64, 0, len(months))
	for _, m := range months {
		if p, ok := t.Profit(m); ok {
			out = append(out, p)
		}
	}
	return out
}
