package analysis

import (
	"fmt"
	"strings"

	"snowops/core/metadata"
	"snowops/core/types"
)

// Scaling heuristics
const (
	QueriesPerCluster   = 8
	ScalingQueuePercent = 5.0
	ScalingMaxQueued    = 5.0
)

// ScalingRecommendation proposes multi-cluster settings for one warehouse.
type ScalingRecommendation struct {
	Warehouse      string
	CurrentMin     int
	CurrentMax     int
	CurrentPolicy  types.ScalingPolicy
	RecommendedMin int
	RecommendedMax int
	Policy         types.ScalingPolicy
	MultiCluster   bool
	QueuedPercent  float64
	Rationale      []string
}

// Changed reports whether any setting differs from the live one
func (r ScalingRecommendation) Changed() bool {
	return r.CurrentMin != r.RecommendedMin || r.CurrentMax != r.RecommendedMax ||
		(r.RecommendedMax > 1 && r.CurrentPolicy != r.Policy)
}

// Summary joins the rationale
func (r ScalingRecommendation) Summary() string {
	return strings.Join(r.Rationale, "; ")
}

// RecommendScaling sizes cluster counts at QueriesPerCluster concurrent
// queries per cluster, capped at the platform limit.
func RecommendScaling(profiles []metadata.ScalingProfile, inventory []types.Warehouse) []ScalingRecommendation {
	live := make(map[string]types.Warehouse, len(inventory))
	for _, wh := range inventory {
		live[upper(wh.Name)] = wh
	}

	out := make([]ScalingRecommendation, 0, len(profiles))
	for _, p := range profiles {
		name := upper(p.Warehouse)
		rec := ScalingRecommendation{
			Warehouse:     name,
			CurrentMin:    types.Defaults.MinClusterCount,
			CurrentMax:    types.Defaults.MaxClusterCount,
			CurrentPolicy: types.Defaults.ScalingPolicy,
			Policy:        types.ScalingStandard,
			QueuedPercent: percent(p.QueuedHours, p.ActiveHours),
		}
		if wh, ok := live[name]; ok {
			rec.CurrentMin = wh.MinClusterCount
			rec.CurrentMax = wh.MaxClusterCount
			rec.CurrentPolicy = wh.ScalingPolicy
		}

		rec.MultiCluster = p.PeakConcurrency > QueriesPerCluster ||
			rec.QueuedPercent > ScalingQueuePercent ||
			p.MaxQueued > ScalingMaxQueued

		if !rec.MultiCluster {
			rec.RecommendedMin, rec.RecommendedMax = 1, 1
			rec.Policy = rec.CurrentPolicy
			if rec.CurrentMax > 1 {
				rec.Rationale = append(rec.Rationale, "over-provisioned: single cluster sufficient")
			} else {
				rec.Rationale = append(rec.Rationale, "low concurrency: single cluster sufficient")
			}
			out = append(out, rec)
			continue
		}

		rec.RecommendedMin = min(max(1, int(p.AvgConcurrency/QueriesPerCluster)), types.MaxClusterLimit)
		rec.RecommendedMax = min(max(rec.RecommendedMin, int(p.PeakConcurrency/QueriesPerCluster)+1), types.MaxClusterLimit)

		rec.Rationale = append(rec.Rationale, fmt.Sprintf("peak concurrency %.1f, %.1f%% of hours queued", p.PeakConcurrency, rec.QueuedPercent))
		if p.BusinessHoursPeak > 2*p.OffHoursPeak {
			rec.Policy = types.ScalingEconomy
			rec.Rationale = append(rec.Rationale, "business-hours peak exceeds twice off-hours: ECONOMY")
		} else {
			rec.Rationale = append(rec.Rationale, "steady demand: STANDARD")
		}
		out = append(out, rec)
	}
	return out
}
