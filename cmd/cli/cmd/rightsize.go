package cmd

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/output"
)

// rightsizeCmd recommends warehouse sizes and auto-suspend settings
var rightsizeCmd = &cobra.Command{
	Use:   "rightsize",
	Short: "Recommend warehouse sizes and auto-suspend settings",
	Long: `Compare each warehouse's peak concurrency with its size and its query
cadence with its auto-suspend setting.

Examples:
  snowops rightsize
  snowops rightsize --days 14 --warehouse ANALYTICS_WH --detailed`,
	Args: cobra.NoArgs,
	RunE: run(runRightsize),
}

func runRightsize(inv *invocation, s *snowflake.Session) error {
	r := inv.reader(s)
	f := inv.filter()
	pricing := inv.pricing()

	loads, err := r.WarehouseLoad(inv.ctx, f)
	if err != nil {
		return err
	}
	gaps, err := r.QueryGaps(inv.ctx, f)
	if err != nil {
		return err
	}
	if len(loads) == 0 && len(gaps) == 0 {
		return inv.noData()
	}
	inventory, err := inv.inventory(s)
	if err != nil {
		return err
	}

	sizes := analysis.RecommendSizes(loads, pricing)
	suspends := analysis.RecommendAutoSuspend(gaps, inventory, pricing, f.Days)

	headers := []string{"Warehouse", "Current", "Recommended", "Peak", "Avg", "Active Hours", "Queued", "Cost Delta", "Confidence"}
	if inv.cfg.Output.Detailed {
		headers = append(headers, "Rationale")
	}
	sizing := output.NewTable("Warehouse Sizing", headers...)
	savings := decimal.Zero
	changed := 0
	for _, rec := range sizes {
		row := []string{
			rec.Warehouse, string(rec.Current), string(rec.Recommended),
			num(rec.PeakConcurrency), num(rec.AvgConcurrency), num(rec.ActiveHours),
			pct(rec.QueuedPercent), money(pricing, rec.CostDelta), string(rec.Confidence),
		}
		if inv.cfg.Output.Detailed {
			row = append(row, rec.Rationale)
		}
		sizing.AddRow(row...)
		if rec.Changed() {
			changed++
		}
		if rec.CostDelta.IsNegative() {
			savings = savings.Sub(rec.CostDelta)
		}
	}

	suspend := output.NewTable("Auto-Suspend", "Warehouse", "Current", "Recommended", "Queries", "Median Gap", "Monthly Savings", "Status")
	suspendSavings := decimal.Zero
	for _, rec := range suspends {
		current := "unknown"
		if rec.Configured {
			current = strconv.Itoa(rec.AutoSuspend) + "s"
		}
		suspend.AddRow(
			rec.Warehouse, current, strconv.Itoa(rec.Recommended)+"s",
			strconv.Itoa(rec.QueryCount), fmt.Sprintf("%.0fs", rec.MedianGapSeconds),
			money(pricing, rec.MonthlySavings), rec.Status(),
		)
		suspendSavings = suspendSavings.Add(rec.MonthlySavings)
	}

	s64, _ := savings.Float64()
	inv.metrics.Recommendations("rightsize", changed, s64)
	sus64, _ := suspendSavings.Float64()
	inv.metrics.Recommendations("auto_suspend", len(suspends), sus64)

	if err := inv.emit(sizing, suspend); err != nil {
		return err
	}
	inv.out.NewSummary("Rightsizing").
		Add("Warehouses analyzed", strconv.Itoa(len(sizes))).
		Add("Size changes", strconv.Itoa(changed)).
		Add(fmt.Sprintf("Savings over %dd", f.Days), money(pricing, savings)).
		Add("Idle savings per month", money(pricing, suspendSavings)).
		Render()
	return nil
}
