package simulation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/okian/profitshare/internal/domain/compensation"
	"github.com/okian/profitshare/internal/domain/model"
)

// collector stores outcomes by universe so the summary is built in a fixed
// order regardless of completion order.
type collector struct {
	mu       sync.Mutex
	outcomes []model.Outcome
	seen     []bool
}

func newCollector(universes int) *collector {
	return &collector{
		outcomes: make([]model.Outcome, universes),
		seen:     make([]bool, universes),
	}
}

func (c *collector) Collect(_ context.Context, o model.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o.Universe < 0 || o.Universe >= len(c.outcomes) {
		return fmt.Errorf("%w: universe %d out of range", ErrInvalidInput, o.Universe)
	}
	c.outcomes[o.Universe] = o
	c.seen[o.Universe] = true
	return nil
}

func (c *collector) summarize(company *compensation.Company, months int) (model.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	universes := len(c.outcomes)
	for u, ok := range c.seen {
		if !ok {
			return model.Summary{}, fmt.Errorf("%w: %d", ErrMissingOutcome, u)
		}
	}

	people := company.People()
	summary := model.Summary{
		Months:    months,
		Universes: universes,
		People:    make([]model.PersonSummary, len(people)),
	}
	simulatedMonths := float64(months * universes)

	pays := make([]float64, universes)
	for i, p := range people {
		var onTarget int
		for u, o := range c.outcomes {
			pays[u] = o.People[i].TotalPay
			onTarget += o.People[i].MonthsOnTarget
		}
		summary.People[i] = model.PersonSummary{
			Name:                p.Name(),
			Partner:             p.IsPartner(),
			TargetPay:           p.AfterTaxTargetSalary() * float64(months),
			MeanPay:             mean(pays),
			ProbabilityOnTarget: float64(onTarget) / simulatedMonths,
		}
		sorted := append([]float64(nil), pays...)
		sort.Float64s(sorted)
		summary.People[i].P05Pay = quantile(sorted, 0.05)
		summary.People[i].P50Pay = quantile(sorted, 0.50)
		summary.People[i].P95Pay = quantile(sorted, 0.95)
	}

	var profit float64
	var onTarget int
	for _, o := range c.outcomes {
		profit += o.TotalProfit
		onTarget += o.MonthsOnTarget
	}
	summary.MeanProfit = profit / simulatedMonths
	summary.ProbabilityProfitOnTarget = float64(onTarget) / simulatedMonths
	return summary, nil
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}
