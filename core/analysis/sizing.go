package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"snowops/core/metadata"
	"snowops/core/types"
)

// QueuingGuardPercent is the share of queued hours above which a
// warehouse is never downsized.
const QueuingGuardPercent = 10.0

// SizeRecommendation compares the current and suggested size of a warehouse.
type SizeRecommendation struct {
	Warehouse       string
	Current         types.Size
	Recommended     types.Size
	PeakConcurrency float64
	AvgConcurrency  float64
	ActiveHours     float64
	QueuedPercent   float64

	// CreditDelta is recommended minus current credits over the window
	CreditDelta float64
	CostDelta   decimal.Decimal

	Confidence types.Confidence
	Rationale  string
}

// Changed reports whether the recommendation differs from the current size
func (r SizeRecommendation) Changed() bool {
	return r.Current != r.Recommended
}

// Recommendation converts to the generic form
func (r SizeRecommendation) Recommendation() types.Recommendation {
	return types.Recommendation{
		Kind:       "rightsize",
		Subject:    r.Warehouse,
		Current:    string(r.Current),
		Proposed:   string(r.Recommended),
		Rationale:  r.Rationale,
		Credits:    r.CreditDelta,
		Confidence: r.Confidence,
	}
}

// SizeForConcurrency maps peak concurrent queries to a size band.
func SizeForConcurrency(peak float64) types.Size {
	switch {
	case peak < 5:
		return types.SizeSmall
	case peak < 10:
		return types.SizeMedium
	case peak <= 20:
		return types.SizeLarge
	default:
		return types.SizeXLarge
	}
}

// RecommendSizes proposes a size per warehouse from its peak concurrency.
func RecommendSizes(loads []metadata.WarehouseLoad, pricing types.Pricing) []SizeRecommendation {
	out := make([]SizeRecommendation, 0, len(loads))
	for _, load := range loads {
		out = append(out, recommendSize(load, pricing))
	}
	return out
}

func recommendSize(load metadata.WarehouseLoad, pricing types.Pricing) SizeRecommendation {
	rec := SizeRecommendation{
		Warehouse:       load.Warehouse,
		Current:         load.Size,
		Recommended:     SizeForConcurrency(load.PeakConcurrency),
		PeakConcurrency: load.PeakConcurrency,
		AvgConcurrency:  load.AvgConcurrency,
		ActiveHours:     load.ActiveHours,
		QueuedPercent:   percent(load.QueuedHours, load.ActiveHours),
		CostDelta:       decimal.Zero,
	}

	band := fmt.Sprintf("peak concurrency %.1f maps to %s", load.PeakConcurrency, rec.Recommended)

	if !load.Size.IsValid() {
		rec.Confidence = types.ConfidenceLow
		rec.Rationale = band + "; current size unknown"
		return rec
	}

	if rec.QueuedPercent > QueuingGuardPercent && rec.Recommended.Ordinal() < load.Size.Ordinal() {
		rec.Recommended = load.Size
		rec.Confidence = types.ConfidenceHigh
		rec.Rationale = fmt.Sprintf("%.1f%% of active hours queued; keeping %s", rec.QueuedPercent, load.Size)
		return rec
	}

	rec.CreditDelta = (rec.Recommended.CreditsPerHour() - load.Size.CreditsPerHour()) * load.ActiveHours
	rec.CostDelta = pricing.Cost(rec.CreditDelta)
	rec.Confidence = sizingConfidence(load.ActiveHours)

	switch {
	case rec.Recommended.Ordinal() < load.Size.Ordinal():
		rec.Rationale = band + "; downsize"
	case rec.Recommended.Ordinal() > load.Size.Ordinal():
		rec.Rationale = band + "; upsize"
	default:
		rec.Rationale = band + "; size is appropriate"
	}
	if rec.QueuedPercent > QueuingGuardPercent {
		rec.Rationale += fmt.Sprintf(" (%.1f%% of hours queued)", rec.QueuedPercent)
	}
	return rec
}

// a week of active hours is high confidence, a day is medium
func sizingConfidence(activeHours float64) types.Confidence {
	switch {
	case activeHours >= 168:
		return types.ConfidenceHigh
	case activeHours >= 24:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
