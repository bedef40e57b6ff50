package analysis

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"snowops/core/metadata"
	"snowops/core/types"
)

// IdleStatus classifies how long a warehouse has gone unused.
type IdleStatus string

const (
	StatusActive           IdleStatus = "ACTIVE"
	StatusIdle             IdleStatus = "IDLE"
	StatusVeryIdle         IdleStatus = "VERY_IDLE"
	StatusAbandoned        IdleStatus = "ABANDONED"
	StatusNoRecentActivity IdleStatus = "NO_RECENT_ACTIVITY"
)

// Idle tiers
const (
	VeryIdleAfter  = 24 * time.Hour
	AbandonedAfter = 7 * 24 * time.Hour
)

// IdleOptions configures DetectIdle.
type IdleOptions struct {
	// Lookback is the query window
	Lookback time.Duration

	// Threshold overrides the staleness threshold; zero uses the default
	Threshold time.Duration

	// Now is the evaluation time
	Now time.Time

	Pricing types.Pricing

	// Inventory lists live warehouses so ones absent from usage still appear
	Inventory []types.Warehouse
}

// DefaultIdleThreshold is a quarter of the lookback, floored at the view latency.
func DefaultIdleThreshold(lookback time.Duration) time.Duration {
	return max(lookback/4, metadata.MaxViewLatency)
}

func (o IdleOptions) threshold() time.Duration {
	if o.Threshold > 0 {
		return max(o.Threshold, metadata.MaxViewLatency)
	}
	return DefaultIdleThreshold(o.Lookback)
}

// IdleWarehouse is the idle verdict of one warehouse.
type IdleWarehouse struct {
	Warehouse    string
	Size         types.Size
	Status       IdleStatus
	Idle         bool
	LastQueryEnd *time.Time
	IdleFor      time.Duration

	CreditsSinceLastUse float64
	CostSinceLastUse    decimal.Decimal

	// MonthlyCostIfRunning is the burn of one cluster running 24x30
	MonthlyCostIfRunning decimal.Decimal
}

// Recommendation converts to the generic form
func (w IdleWarehouse) Recommendation() types.Recommendation {
	return types.Recommendation{
		Kind:       "idle",
		Subject:    w.Warehouse,
		Current:    string(w.Status),
		Proposed:   "SUSPEND or DROP",
		Rationale:  "no queries within the staleness threshold",
		Credits:    -w.CreditsSinceLastUse,
		Confidence: types.ConfidenceMedium,
	}
}

// DetectIdle flags warehouses whose last query ended before the threshold.
// Warehouses without any query in the window are idle with NO_RECENT_ACTIVITY.
func DetectIdle(activity []metadata.WarehouseActivity, opts IdleOptions) []IdleWarehouse {
	threshold := opts.threshold()
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	sizes := make(map[string]types.Size, len(opts.Inventory))
	for _, wh := range opts.Inventory {
		sizes[upper(wh.Name)] = wh.Size
	}

	seen := make(map[string]bool, len(activity))
	out := make([]IdleWarehouse, 0, len(activity)+len(opts.Inventory))

	for _, act := range activity {
		name := upper(act.Warehouse)
		seen[name] = true

		size := act.Size
		if s, ok := sizes[name]; ok && s.IsValid() {
			size = s
		}

		w := IdleWarehouse{
			Warehouse:           name,
			Size:                size,
			LastQueryEnd:        act.LastQueryEnd,
			CreditsSinceLastUse: act.CreditsSinceLastUse,
		}

		if act.LastQueryEnd == nil || act.QueryCount == 0 {
			w.Status = StatusNoRecentActivity
			w.Idle = true
			w.CreditsSinceLastUse = max(act.CreditsSinceLastUse, act.CreditsInWindow)
		} else {
			w.IdleFor = now.Sub(*act.LastQueryEnd)
			w.Status = idleTier(w.IdleFor, threshold)
			w.Idle = w.Status != StatusActive
		}

		out = append(out, price(w, opts.Pricing))
	}

	for _, wh := range opts.Inventory {
		name := upper(wh.Name)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, price(IdleWarehouse{
			Warehouse: name,
			Size:      wh.Size,
			Status:    StatusNoRecentActivity,
			Idle:      true,
		}, opts.Pricing))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Warehouse < out[j].Warehouse })
	return out
}

func idleTier(idleFor, threshold time.Duration) IdleStatus {
	switch {
	case idleFor <= threshold:
		return StatusActive
	case idleFor > AbandonedAfter:
		return StatusAbandoned
	case idleFor > VeryIdleAfter:
		return StatusVeryIdle
	default:
		return StatusIdle
	}
}

func price(w IdleWarehouse, pricing types.Pricing) IdleWarehouse {
	w.CostSinceLastUse = pricing.Cost(w.CreditsSinceLastUse)
	w.MonthlyCostIfRunning = pricing.Cost(w.Size.CreditsPerHour() * 24 * 30)
	return w
}
