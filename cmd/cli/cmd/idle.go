package cmd

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/output"
)

var idleHours int

// idleCmd finds warehouses without recent queries
var idleCmd = &cobra.Command{
	Use:   "idle",
	Short: "Find warehouses without recent queries",
	Long: `List warehouses whose last query ended before the staleness threshold,
with the credits burned since and the monthly cost of leaving them running.

The threshold defaults to a quarter of the lookback window and is never
shorter than the account-usage view latency.`,
	Args: cobra.NoArgs,
	RunE: run(runIdle),
}

func init() {
	idleCmd.Flags().IntVar(&idleHours, "idle-hours", 0, "staleness threshold in hours (default days*6)")
}

func runIdle(inv *invocation, s *snowflake.Session) error {
	activity, err := inv.reader(s).WarehouseActivity(inv.ctx, inv.filter())
	if err != nil {
		return err
	}
	inventory, err := inv.inventory(s)
	if err != nil {
		return err
	}
	if len(activity) == 0 && len(inventory) == 0 {
		return inv.noData()
	}

	pricing := inv.pricing()
	found := analysis.DetectIdle(activity, analysis.IdleOptions{
		Lookback:  time.Duration(inv.cfg.Analysis.Days) * 24 * time.Hour,
		Threshold: time.Duration(idleHours) * time.Hour,
		Now:       time.Now(),
		Pricing:   pricing,
		Inventory: inventory,
	})

	t := output.NewTable("Idle Warehouses", "Warehouse", "Size", "Status", "Last Query", "Idle For", "Credits Since", "Cost Since", "Monthly If Running")
	wasted := decimal.Zero
	idle := 0
	for _, w := range found {
		if !w.Idle && !inv.cfg.Output.Detailed {
			continue
		}
		t.AddRow(
			w.Warehouse, string(w.Size), string(w.Status), timestamp(w.LastQueryEnd), since(w.IdleFor),
			num(w.CreditsSinceLastUse), money(pricing, w.CostSinceLastUse), money(pricing, w.MonthlyCostIfRunning),
		)
		if w.Idle {
			idle++
			wasted = wasted.Add(w.CostSinceLastUse)
		}
	}

	inv.metrics.IdleWarehouses(idle)
	w64, _ := wasted.Float64()
	inv.metrics.Recommendations("idle", idle, w64)

	if err := inv.emit(t); err != nil {
		return err
	}
	if idle == 0 {
		inv.out.Success("No idle warehouses in the last %d days", inv.cfg.Analysis.Days)
		return nil
	}
	inv.out.Warning("%d idle warehouse(s); %s burned since last use", idle, money(pricing, wasted))
	return nil
}
