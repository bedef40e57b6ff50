package analysis

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"snowops/core/metadata"
	"snowops/core/types"
)

// Severity classifies a cost spike.
type Severity string

const (
	SeverityNormal     Severity = "NORMAL"
	SeverityWarning    Severity = "WARNING"
	SeverityHigh       Severity = "HIGH"
	SeverityCritical   Severity = "CRITICAL"
	SeverityNoBaseline Severity = "NO_BASELINE"
)

// Spike ratio tiers
const (
	WarningRatio  = 1.2
	HighRatio     = 1.5
	CriticalRatio = 2.0
)

// AnomalyOptions configures DetectSpikes.
type AnomalyOptions struct {
	// BaselinePeriods is the trailing window N; zero means 7
	BaselinePeriods int

	// ThresholdPercent is the current/baseline ratio, in percent, that a
	// period must exceed to be reported; zero means 120
	ThresholdPercent float64

	// AllPeriods evaluates every period instead of only the latest
	AllPeriods bool
}

func (o AnomalyOptions) withDefaults() AnomalyOptions {
	if o.BaselinePeriods <= 0 {
		o.BaselinePeriods = 7
	}
	if o.ThresholdPercent <= 0 {
		o.ThresholdPercent = WarningRatio * 100
	}
	return o
}

// Spike compares one period against its trailing baseline.
type Spike struct {
	Warehouse string
	Day       time.Time
	Credits   float64
	Baseline  float64
	Ratio     float64
	Severity  Severity
}

// ClassifyRatio maps a current/baseline ratio to a severity tier.
func ClassifyRatio(r float64) Severity {
	switch {
	case r > CriticalRatio:
		return SeverityCritical
	case r > HighRatio:
		return SeverityHigh
	case r > WarningRatio:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// DetectSpikes compares each series' current period with the mean of the
// preceding BaselinePeriods periods. Series are keyed by warehouse; an empty
// warehouse is the account total. A zero or missing baseline is reported as
// NO_BASELINE without dividing.
func DetectSpikes(points []metadata.CreditPoint, opts AnomalyOptions) []Spike {
	opts = opts.withDefaults()

	series := make(map[string][]metadata.CreditPoint)
	for _, p := range points {
		key := upper(p.Warehouse)
		series[key] = append(series[key], p)
	}

	var out []Spike
	for _, name := range sortedKeys(series) {
		s := series[name]
		sort.SliceStable(s, func(i, j int) bool { return s[i].Day.Before(s[j].Day) })

		first := len(s) - 1
		if opts.AllPeriods {
			first = 0
		}
		for i := first; i < len(s); i++ {
			spike, report := evaluate(name, s, i, opts)
			if report {
				out = append(out, spike)
			}
		}
	}
	return out
}

func evaluate(name string, s []metadata.CreditPoint, i int, opts AnomalyOptions) (Spike, bool) {
	current := s[i]
	spike := Spike{Warehouse: name, Day: current.Day, Credits: current.Credits}

	start := max(0, i-opts.BaselinePeriods)
	window := s[start:i]

	var sum float64
	for _, p := range window {
		sum += p.Credits
	}
	baseline, ok := ratio(sum, float64(len(window)))
	spike.Baseline = baseline

	if !ok || baseline == 0 {
		spike.Severity = SeverityNoBaseline
		return spike, current.Credits > 0
	}

	spike.Ratio = current.Credits / baseline
	spike.Severity = ClassifyRatio(spike.Ratio)
	return spike, spike.Ratio > opts.ThresholdPercent/100
}

// BudgetDay is one day measured against a daily budget.
type BudgetDay struct {
	Day     time.Time
	Credits float64
	Cost    decimal.Decimal
	Percent float64
	Over    bool
}

// CheckBudget prices account-wide daily credits against a daily budget.
// A zero budget yields no rows.
func CheckBudget(daily []metadata.CreditPoint, pricing types.Pricing, budget decimal.Decimal) []BudgetDay {
	if !budget.IsPositive() {
		return nil
	}

	points := append([]metadata.CreditPoint(nil), daily...)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Day.Before(points[j].Day) })

	out := make([]BudgetDay, 0, len(points))
	for _, p := range points {
		cost := pricing.Cost(p.Credits)
		out = append(out, BudgetDay{
			Day:     p.Day,
			Credits: p.Credits,
			Cost:    cost,
			Percent: cost.Div(budget).Mul(decimal.NewFromInt(100)).InexactFloat64(),
			Over:    cost.GreaterThan(budget),
		})
	}
	return out
}
