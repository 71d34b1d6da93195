// Package compensation models how a company's monthly profit is turned into
// salary, bonus and dividends for the people on its roster.
//
// A Company is immutable once built. People hold a pointer back to the
// Company they belong to and derive every figure from it on demand; callers
// that need a different profit figure ask for a copy via WithTargetProfit.
package compensation

import (
	"fmt"
	"math"
	"strings"
)

// MonthsPerYear converts bonus months into a monthly uplift.
const MonthsPerYear = 12

// Settings holds the company-wide knobs every person reads.
type Settings struct {
	// TaxRate applied to bonuses, in [0, 1].
	TaxRate float64
	// AfterTaxSalary is the base after-tax salary per month.
	AfterTaxSalary float64
	// BonusMonths is the number of months of after-tax bonus expected per year.
	BonusMonths float64
	// DividendFraction is the share of profit paid out as dividends, in [0, 1].
	DividendFraction float64
	// AfterTaxTargetProfit is the monthly after-tax profit shared out.
	AfterTaxTargetProfit float64
}

// Validate reports the first setting outside its allowed range.
func (s Settings) Validate() error {
	switch {
	case !inUnitInterval(s.TaxRate):
		return fmt.Errorf("%w: tax rate %v not in [0,1]", ErrInvalidSettings, s.TaxRate)
	case !inUnitInterval(s.DividendFraction):
		return fmt.Errorf("%w: dividend fraction %v not in [0,1]", ErrInvalidSettings, s.DividendFraction)
	case !nonNegative(s.AfterTaxSalary):
		return fmt.Errorf("%w: after tax salary %v is negative", ErrInvalidSettings, s.AfterTaxSalary)
	case !nonNegative(s.BonusMonths):
		return fmt.Errorf("%w: bonus months %v is negative", ErrInvalidSettings, s.BonusMonths)
	case !nonNegative(s.AfterTaxTargetProfit):
		return fmt.Errorf("%w: target profit %v is negative", ErrInvalidSettings, s.AfterTaxTargetProfit)
	}
	return nil
}

// Member is the construction input for one person on the roster.
type Member struct {
	Name      string
	Ownership float64
	// TakeHomePay overrides the default after-tax target salary when set.
	TakeHomePay *float64
}

// Company is the aggregate holding the roster and the shared parameters.
type Company struct {
	settings Settings
	people   []*Person
	byName   map[string]*Person
}

// NewCompany validates settings and members and builds the roster in the
// order members are given.
func NewCompany(settings Settings, members ...Member) (*Company, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	c := &Company{
		settings: settings,
		people:   make([]*Person, 0, len(members)),
		byName:   make(map[string]*Person, len(members)),
	}
	for _, m := range members {
		if err := c.add(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Company) add(m Member) error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidMember)
	}
	if _, ok := c.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePerson, name)
	}
	if !inUnitInterval(m.Ownership) {
		return fmt.Errorf("%w: ownership of %s is %v, want [0,1]", ErrInvalidMember, name, m.Ownership)
	}
	p := &Person{company: c, name: name, ownership: m.Ownership}
	if m.TakeHomePay != nil {
		pay := *m.TakeHomePay
		if !nonNegative(pay) {
			return fmt.Errorf("%w: take home pay of %s is %v", ErrInvalidMember, name, pay)
		}
		p.takeHomePay = &pay
	}
	c.people = append(c.people, p)
	c.byName[name] = p
	return nil
}

// Members returns the construction inputs that would rebuild this roster.
func (c *Company) Members() []Member {
	out := make([]Member, len(c.people))
	for i, p := range c.people {
		out[i] = p.member()
	}
	return out
}

// WithTargetProfit returns a copy of the company sharing out profit instead of
// the configured target. Negative profit is clamped to zero. The receiver is
// left untouched.
func (c *Company) WithTargetProfit(profit float64) *Company {
	if !nonNegative(profit) {
		profit = 0
	}
	s := c.settings
	s.AfterTaxTargetProfit = profit
	// Members were validated when c was built.
	cp, _ := NewCompany(s, c.Members()...)
	return cp
}

// WithMembers returns a copy of the company with extra people appended.
func (c *Company) WithMembers(extra ...Member) (*Company, error) {
	members := append(c.Members(), extra...)
	return NewCompany(c.settings, members...)
}

// Settings returns the company-wide parameters.
func (c *Company) Settings() Settings { return c.settings }

// TaxRate returns the tax rate applied to bonuses.
func (c *Company) TaxRate() float64 { return c.settings.TaxRate }

// AfterTaxSalary returns the base after-tax salary per month.
func (c *Company) AfterTaxSalary() float64 { return c.settings.AfterTaxSalary }

// BonusMonths returns the number of bonus months expected per year.
func (c *Company) BonusMonths() float64 { return c.settings.BonusMonths }

// DividendFraction returns the share of profit reserved for dividends.
func (c *Company) DividendFraction() float64 { return c.settings.DividendFraction }

// AfterTaxTargetProfit returns the monthly profit shared out among people.
func (c *Company) AfterTaxTargetProfit() float64 { return c.settings.AfterTaxTargetProfit }

// NumPeople returns the roster size.
func (c *Company) NumPeople() int { return len(c.people) }

// People returns the roster in construction order.
func (c *Company) People() []*Person {
	out := make([]*Person, len(c.people))
	copy(out, c.people)
	return out
}

// Person looks a person up by name.
func (c *Company) Person(name string) (*Person, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// DefaultTargetSalary is the after-tax monthly target for anyone without an
// explicit take home pay: base salary plus the bonus months spread over a year.
func (c *Company) DefaultTargetSalary() float64 {
	return c.settings.AfterTaxSalary * (1 + c.settings.BonusMonths/MonthsPerYear)
}

// TotalOwnership sums ownership across the roster.
func (c *Company) TotalOwnership() float64 {
	var total float64
	for _, p := range c.people {
		total += p.ownership
	}
	return total
}

// ProfitAllocationTotal sums the net fraction of profit across the roster.
// It exceeds 1 when ownership sums above 1.
func (c *Company) ProfitAllocationTotal() float64 {
	var total float64
	for _, p := range c.people {
		total += p.NetFractionOfProfits()
	}
	return total
}

// RequiredProfit is the smallest monthly profit at which every active person
// reaches their target salary. It is +Inf when some active person can never
// get there.
func (c *Company) RequiredProfit() float64 {
	var required float64
	for _, p := range c.people {
		if !p.IsActive() {
			continue
		}
		required = math.Max(required, p.RequiredProfit())
	}
	return required
}

// Allocations projects every person's derived figures at the company's
// current target profit.
func (c *Company) Allocations() ([]Allocation, error) {
	out := make([]Allocation, 0, len(c.people))
	for _, p := range c.people {
		a, err := p.Allocation()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func inUnitInterval(x float64) bool {
	return x >= 0 && x <= 1
}

func nonNegative(x float64) bool {
	return x >= 0 && !math.IsInf(x, 1)
}
