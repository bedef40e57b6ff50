package analysis

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"snowops/core/metadata"
	"snowops/core/types"
)

// MinQueriesForCadence is the query count below which gaps are not trusted.
const MinQueriesForCadence = 10

// SuspendRecommendation proposes an auto-suspend for one warehouse.
type SuspendRecommendation struct {
	Warehouse        string
	Configured       bool
	AutoSuspend      int
	AutoResume       bool
	Recommended      int
	QueryCount       int
	MedianGapSeconds float64
	IdleCredits      float64
	MonthlySavings   decimal.Decimal
	Issues           []string
}

// Status joins the issues, or "OK"
func (r SuspendRecommendation) Status() string {
	if len(r.Issues) == 0 {
		return "OK"
	}
	return strings.Join(r.Issues, " | ")
}

// OptimalAutoSuspend maps the median query gap to a suspend time in seconds.
func OptimalAutoSuspend(gap metadata.QueryGap) int {
	if !gap.HasGap || gap.QueryCount < MinQueriesForCadence {
		return types.Defaults.AutoSuspend
	}
	switch {
	case gap.MedianGapSeconds < 60:
		return 60
	case gap.MedianGapSeconds < 300:
		return 180
	case gap.MedianGapSeconds < 600:
		return 300
	default:
		return 600
	}
}

// RecommendAutoSuspend reviews cadence against the live settings. windowDays
// scales idle credits to a monthly figure.
func RecommendAutoSuspend(gaps []metadata.QueryGap, inventory []types.Warehouse, pricing types.Pricing, windowDays int) []SuspendRecommendation {
	live := make(map[string]types.Warehouse, len(inventory))
	for _, wh := range inventory {
		live[upper(wh.Name)] = wh
	}

	monthly := 0.0
	if windowDays > 0 {
		monthly = 30 / float64(windowDays)
	}

	out := make([]SuspendRecommendation, 0, len(gaps))
	for _, gap := range gaps {
		name := upper(gap.Warehouse)
		rec := SuspendRecommendation{
			Warehouse:        name,
			Recommended:      OptimalAutoSuspend(gap),
			QueryCount:       gap.QueryCount,
			MedianGapSeconds: gap.MedianGapSeconds,
			IdleCredits:      gap.IdleCredits,
			MonthlySavings:   pricing.Cost(gap.IdleCredits * monthly),
		}

		if wh, ok := live[name]; ok {
			rec.Configured = true
			rec.AutoSuspend = wh.AutoSuspend
			rec.AutoResume = wh.AutoResume
			rec.Issues = suspendIssues(wh)
		}
		if gap.IdleCredits > 1 {
			rec.Issues = append(rec.Issues, fmt.Sprintf("idle waste: %.1f credits", gap.IdleCredits))
		}
		if gap.QueryCount < MinQueriesForCadence {
			rec.Issues = append(rec.Issues, "very low usage")
		}

		out = append(out, rec)
	}
	return out
}

func suspendIssues(wh types.Warehouse) []string {
	var issues []string
	switch {
	case wh.AutoSuspend == 0:
		issues = append(issues, "auto-suspend disabled")
	case wh.AutoSuspend > 600:
		issues = append(issues, fmt.Sprintf("auto-suspend too long (%dm)", wh.AutoSuspend/60))
	case wh.AutoSuspend < 60:
		issues = append(issues, fmt.Sprintf("auto-suspend very aggressive (%ds)", wh.AutoSuspend))
	}
	if !wh.AutoResume {
		issues = append(issues, "auto-resume disabled")
	}
	return issues
}
