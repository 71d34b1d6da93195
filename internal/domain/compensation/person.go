package compensation

import (
	"fmt"
	"math"
)

// Person is one employee or partner. All figures are derived from the
// owning Company and are monthly, after tax unless stated otherwise.
type Person struct {
	company     *Company
	name        string
	ownership   float64
	takeHomePay *float64
}

// Allocation is the read-only projection of a person's figures.
type Allocation struct {
	Name                          string  `json:"name"`
	Ownership                     float64 `json:"ownership"`
	Partner                       bool    `json:"partner"`
	Active                        bool    `json:"active"`
	AfterTaxTargetSalary          float64 `json:"after_tax_target_salary"`
	FractionDividends             float64 `json:"fraction_dividends"`
	FractionBonus                 float64 `json:"fraction_bonus"`
	NetFractionOfProfits          float64 `json:"net_fraction_of_profits"`
	AfterTaxSalaryFromBonus       float64 `json:"after_tax_salary_from_bonus"`
	AfterTaxSalaryFromDividends   float64 `json:"after_tax_salary_from_dividends"`
	AfterTaxSalary                float64 `json:"after_tax_salary"`
	BeforeTaxTargetBonusDividends float64 `json:"before_tax_target_bonus_dividends"`
}

func (p *Person) String() string {
	return fmt.Sprintf("<Person: %s>", p.name)
}

// Name returns the person's roster name.
func (p *Person) Name() string { return p.name }

// Ownership returns the equity fraction, zero when none was configured.
func (p *Person) Ownership() float64 { return p.ownership }

// IsPartner reports whether the person owns part of the company.
func (p *Person) IsPartner() bool { return p.ownership > 0 }

// IsActive reports whether the person has a positive target salary.
func (p *Person) IsActive() bool { return p.AfterTaxTargetSalary() > 0 }

// HasExplicitTarget reports whether take home pay was configured.
func (p *Person) HasExplicitTarget() bool { return p.takeHomePay != nil }

// AfterTaxTargetSalary includes salary plus the expected annual bonus and
// dividends spread per month. Without an explicit take home pay it falls
// back to the company default.
func (p *Person) AfterTaxTargetSalary() float64 {
	if p.takeHomePay != nil {
		return *p.takeHomePay
	}
	return p.company.DefaultTargetSalary()
}

// FractionDividends is the fraction of profits paid to this person as dividends.
func (p *Person) FractionDividends() float64 {
	return p.company.DividendFraction() * p.ownership
}

// FractionBonus is the fraction of profits paid to this person as bonus.
// The bonus pool is split evenly across the roster.
func (p *Person) FractionBonus() float64 {
	return (1 - p.company.DividendFraction()) / float64(p.company.NumPeople())
}

// NetFractionOfProfits is the person's total share of profits.
func (p *Person) NetFractionOfProfits() float64 {
	return p.FractionDividends() + p.FractionBonus()
}

// AfterTaxTargetSalaryFromBonusDividends is how much of the target salary has
// to come from bonus and dividends on top of the base salary.
func (p *Person) AfterTaxTargetSalaryFromBonusDividends() float64 {
	return p.AfterTaxTargetSalary() - p.company.AfterTaxSalary()
}

func (p *Person) AfterTaxSalaryFromBonus() float64 {
	return p.FractionBonus() * p.company.AfterTaxTargetProfit()
}

func (p *Person) AfterTaxSalaryFromDividends() float64 {
	return p.FractionDividends() * p.company.AfterTaxTargetProfit()
}

// AfterTaxSalary is base salary plus the bonus and dividend shares.
func (p *Person) AfterTaxSalary() float64 {
	return p.AfterTaxSalaryFromBonus() + p.AfterTaxSalaryFromDividends() + p.company.AfterTaxSalary()
}

// BeforeTaxTargetBonusDividends grosses the bonus up by the tax rate.
// Dividends are not taxed at this layer.
func (p *Person) BeforeTaxTargetBonusDividends() (float64, error) {
	taxRate := p.company.TaxRate()
	if taxRate >= 1 {
		return 0, fmt.Errorf("%w: tax rate %v", ErrUndefinedGrossUp, taxRate)
	}
	bonus := p.AfterTaxSalaryFromBonus() / (1 - taxRate)
	return bonus + p.AfterTaxSalaryFromDividends(), nil
}

// RequiredProfit is the monthly profit at which this person's share covers
// the gap between base salary and target salary.
func (p *Person) RequiredProfit() float64 {
	gap := p.AfterTaxTargetSalaryFromBonusDividends()
	if gap <= 0 {
		return 0
	}
	share := p.NetFractionOfProfits()
	if share <= 0 {
		return math.Inf(1)
	}
	return gap / share
}

// Allocation projects the person's figures at the company's target profit.
func (p *Person) Allocation() (Allocation, error) {
	grossed, err := p.BeforeTaxTargetBonusDividends()
	if err != nil {
		return Allocation{}, fmt.Errorf("allocation for %s: %w", p.name, err)
	}
	return Allocation{
		Name:                          p.name,
		Ownership:                     p.ownership,
		Partner:                       p.IsPartner(),
		Active:                        p.IsActive(),
		AfterTaxTargetSalary:          p.AfterTaxTargetSalary(),
		FractionDividends:             p.FractionDividends(),
		FractionBonus:                 p.FractionBonus(),
		NetFractionOfProfits:          p.NetFractionOfProfits(),
		AfterTaxSalaryFromBonus:       p.AfterTaxSalaryFromBonus(),
		AfterTaxSalaryFromDividends:   p.AfterTaxSalaryFromDividends(),
		AfterTaxSalary:                p.AfterTaxSalary(),
		BeforeTaxTargetBonusDividends: grossed,
	}, nil
}

func (p *Person) member() Member {
	m := Member{Name: p.name, Ownership: p.ownership}
	if p.takeHomePay != nil {
		pay := *p.takeHomePay
		m.TakeHomePay = &pay
	}
	return m
}
