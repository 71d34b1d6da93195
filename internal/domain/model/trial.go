package model

import "time"

// Trial is one simulated universe of Months consecutive months.
type Trial struct {
	Universe int
	Months   int
}

// PersonOutcome is what one person took home across a trial.
type PersonOutcome struct {
	Name           string
	TotalPay       float64
	MonthsOnTarget int
}

// Outcome is the result of running one Trial.
type Outcome struct {
	Universe int
	// People is ordered like the company roster.
	People []PersonOutcome
	// TotalProfit is the sum of sampled monthly profit.
	TotalProfit float64
	// MonthsOnTarget counts months whose profit covered the required profit.
	MonthsOnTarget int
}

// PersonSummary aggregates one person's pay across every universe.
type PersonSummary struct {
	Name      string  `json:"name"`
	Partner   bool    `json:"partner"`
	TargetPay float64 `json:"target_pay"`
	MeanPay   float64 `json:"mean_pay"`
	P05Pay    float64 `json:"p05_pay"`
	P50Pay    float64 `json:"p50_pay"`
	P95Pay    float64 `json:"p95_pay"`
	// ProbabilityOnTarget is the share of simulated months in which the
	// person's pay reached their target salary.
	ProbabilityOnTarget float64 `json:"probability_on_target"`
}

// Summary is the persisted result of a simulation run.
type Summary struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Months    int             `json:"months"`
	Universes int             `json:"universes"`
	Seed      int64           `json:"seed"`
	People    []PersonSummary `json:"people"`
	// RequiredProfit is the monthly profit at which every active person
	// reaches their target. It is zero when TargetUnreachable is set.
	RequiredProfit            float64 `json:"required_profit"`
	TargetUnreachable         bool    `json:"target_unreachable"`
	MeanProfit                float64 `json:"mean_profit"`
	ProbabilityProfitOnTarget float64 `json:"probability_profit_on_target"`
}
