package analysis

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"snowops/core/metadata"
	"snowops/core/types"
)

// LowUtilizationRatio is the share of possible hours below which a
// warehouse is reported as underused.
const LowUtilizationRatio = 0.2

// Savings bands of the oversized-warehouse opportunity, in currency units
var (
	OversizedMinSavings  = decimal.NewFromInt(100)
	OversizedHighSavings = decimal.NewFromInt(500)
)

// Priority ranks an optimization opportunity.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
)

// Opportunity kinds
const (
	OpportunityLowUtilization = "LOW_UTILIZATION"
	OpportunityOversized      = "OVERSIZED"
)

// UsageOptions configures AnalyzeUsage.
type UsageOptions struct {
	// Days is the lookback window the usage covers
	Days    int
	Pricing types.Pricing
}

// WarehouseCost is the spend and utilization of one warehouse.
type WarehouseCost struct {
	Warehouse string
	Size      types.Size

	TotalCredits      float64
	TotalCost         decimal.Decimal
	ComputeCost       decimal.Decimal
	CloudServicesCost decimal.Decimal
	AvgCostPerDay     decimal.Decimal
	ActiveDays        int
	ActiveHours       int
	QueryCount        int

	// Utilization is active hours over every hour in the window
	Utilization       float64
	AvgCreditsPerHour float64

	// Recommended is the smallest size that covers the hourly burn
	Recommended      types.Size
	PotentialSavings decimal.Decimal
}

// Opportunity is one suggested change with its estimated savings.
type Opportunity struct {
	Warehouse      string
	Kind           string
	Current        string
	Recommendation string
	Savings        decimal.Decimal
	Priority       Priority
}

// Recommendation converts to the generic form
func (o Opportunity) Recommendation() types.Recommendation {
	confidence := types.ConfidenceMedium
	if o.Priority == PriorityHigh {
		confidence = types.ConfidenceHigh
	}
	return types.Recommendation{
		Kind:       "usage",
		Subject:    o.Warehouse,
		Current:    o.Current,
		Proposed:   o.Recommendation,
		Rationale:  o.Kind,
		Confidence: confidence,
	}
}

// UsageReport is the account cost summary over one window.
type UsageReport struct {
	Warehouses    []WarehouseCost
	Opportunities []Opportunity

	TotalCredits     float64
	TotalCost        decimal.Decimal
	PotentialSavings decimal.Decimal

	// ReductionPercent is savings over total cost, zero without spend
	ReductionPercent float64
}

// SizeForCredits is the smallest size whose hourly burn covers
// creditsPerHour, capped at the largest size.
func SizeForCredits(creditsPerHour float64) types.Size {
	for _, size := range types.Sizes {
		if creditsPerHour <= size.CreditsPerHour() {
			return size
		}
	}
	return types.Sizes[len(types.Sizes)-1]
}

// AnalyzeUsage prices each warehouse and lists the opportunities. Warehouses
// are ordered by cost descending and opportunities by savings descending.
func AnalyzeUsage(usage []metadata.WarehouseUsage, opts UsageOptions) UsageReport {
	report := UsageReport{}
	possibleHours := float64(opts.Days * 24)

	for _, u := range usage {
		wc := warehouseCost(u, possibleHours, opts.Pricing)
		report.Warehouses = append(report.Warehouses, wc)
		report.TotalCredits += wc.TotalCredits
		report.TotalCost = report.TotalCost.Add(wc.TotalCost)
		report.PotentialSavings = report.PotentialSavings.Add(wc.PotentialSavings)
		report.Opportunities = append(report.Opportunities, opportunities(wc, possibleHours)...)
	}

	sort.SliceStable(report.Warehouses, func(i, j int) bool {
		a, b := report.Warehouses[i], report.Warehouses[j]
		if c := a.TotalCost.Cmp(b.TotalCost); c != 0 {
			return c > 0
		}
		return a.Warehouse < b.Warehouse
	})
	sort.SliceStable(report.Opportunities, func(i, j int) bool {
		a, b := report.Opportunities[i], report.Opportunities[j]
		if c := a.Savings.Cmp(b.Savings); c != 0 {
			return c > 0
		}
		return a.Warehouse < b.Warehouse
	})

	if report.TotalCost.IsPositive() {
		report.ReductionPercent = report.PotentialSavings.Div(report.TotalCost).InexactFloat64() * 100
	}
	return report
}

func warehouseCost(u metadata.WarehouseUsage, possibleHours float64, pricing types.Pricing) WarehouseCost {
	wc := WarehouseCost{
		Warehouse:         u.Warehouse,
		Size:              u.Size,
		TotalCredits:      u.TotalCredits,
		TotalCost:         pricing.Cost(u.TotalCredits),
		ComputeCost:       pricing.Cost(u.ComputeCredits),
		CloudServicesCost: pricing.Cost(u.CloudServicesCredits),
		ActiveDays:        u.ActiveDays,
		ActiveHours:       u.ActiveHours,
		QueryCount:        u.QueryCount,
	}
	if perDay, ok := ratio(u.TotalCredits, float64(u.ActiveDays)); ok {
		wc.AvgCostPerDay = pricing.Cost(perDay)
	}
	wc.Utilization, _ = ratio(float64(u.ActiveHours), possibleHours)
	wc.AvgCreditsPerHour, _ = ratio(u.TotalCredits, float64(u.ActiveHours))
	wc.Recommended = SizeForCredits(wc.AvgCreditsPerHour)

	// an unknown current size yields no savings estimate
	current := u.Size.CreditsPerHour()
	if share, ok := ratio(current-wc.Recommended.CreditsPerHour(), current); ok && share > 0 {
		wc.PotentialSavings = wc.TotalCost.Mul(decimal.NewFromFloat(share))
	}
	return wc
}

func opportunities(wc WarehouseCost, possibleHours float64) []Opportunity {
	var out []Opportunity
	if possibleHours > 0 && wc.Utilization < LowUtilizationRatio {
		out = append(out, Opportunity{
			Warehouse:      wc.Warehouse,
			Kind:           OpportunityLowUtilization,
			Current:        fmt.Sprintf("%.1f%% utilized", wc.Utilization*100),
			Recommendation: "consolidate workloads or reduce size",
			Savings:        wc.PotentialSavings,
			Priority:       PriorityHigh,
		})
	}
	if wc.Size != "" && wc.Size != wc.Recommended && wc.PotentialSavings.GreaterThan(OversizedMinSavings) {
		priority := PriorityMedium
		if wc.PotentialSavings.GreaterThan(OversizedHighSavings) {
			priority = PriorityHigh
		}
		out = append(out, Opportunity{
			Warehouse:      wc.Warehouse,
			Kind:           OpportunityOversized,
			Current:        string(wc.Size),
			Recommendation: "resize to " + string(wc.Recommended),
			Savings:        wc.PotentialSavings,
			Priority:       priority,
		})
	}
	return out
}
