package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/output"
)

// usageCmd reports warehouse spend, utilization and savings opportunities
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Report warehouse cost and utilization",
	Long: `Price each warehouse's credits over the window, compare its active hours
with every hour in the window and size it to its average hourly burn.

Examples:
  snowops usage
  snowops usage --days 7 --output usage.json`,
	Args: cobra.NoArgs,
	RunE: run(runUsage),
}

func runUsage(inv *invocation, s *snowflake.Session) error {
	f := inv.filter()
	pricing := inv.pricing()

	usage, err := inv.reader(s).WarehouseUsage(inv.ctx, f)
	if err != nil {
		return err
	}
	if len(usage) == 0 {
		return inv.noData()
	}
	report := analysis.AnalyzeUsage(usage, analysis.UsageOptions{Days: f.Days, Pricing: pricing})

	costs := output.NewTable("Warehouse Costs", "Warehouse", "Size", "Credits", "Cost", "Compute", "Cloud Services", "Avg/Day", "Active Days", "Queries")
	for _, wc := range report.Warehouses {
		costs.AddRow(
			wc.Warehouse, sizeOrUnknown(string(wc.Size)), num(wc.TotalCredits),
			money(pricing, wc.TotalCost), money(pricing, wc.ComputeCost), money(pricing, wc.CloudServicesCost),
			money(pricing, wc.AvgCostPerDay), strconv.Itoa(wc.ActiveDays), strconv.Itoa(wc.QueryCount),
		)
	}

	utilization := output.NewTable("Warehouse Utilization", "Warehouse", "Size", "Active Hours", "Utilization", "Credits/Hour", "Recommended", "Potential Savings")
	for _, wc := range report.Warehouses {
		utilization.AddRow(
			wc.Warehouse, sizeOrUnknown(string(wc.Size)), strconv.Itoa(wc.ActiveHours),
			pct(wc.Utilization*100), num(wc.AvgCreditsPerHour), string(wc.Recommended),
			money(pricing, wc.PotentialSavings),
		)
	}

	opps := output.NewTable("Optimization Opportunities", "Warehouse", "Opportunity", "Current", "Recommendation", "Savings", "Priority")
	for _, o := range report.Opportunities {
		opps.AddRow(o.Warehouse, o.Kind, o.Current, o.Recommendation, money(pricing, o.Savings), string(o.Priority))
	}

	savings, _ := report.PotentialSavings.Float64()
	inv.metrics.Recommendations("usage", len(report.Opportunities), savings)

	if err := inv.emit(costs, utilization, opps); err != nil {
		return err
	}
	inv.out.NewSummary("Warehouse Usage").
		Add(fmt.Sprintf("Spend over %dd", f.Days), money(pricing, report.TotalCost)).
		Add("Credits", num(report.TotalCredits)).
		Add("Potential savings", money(pricing, report.PotentialSavings)).
		Add("Potential reduction", pct(report.ReductionPercent)).
		Add("Opportunities", strconv.Itoa(len(report.Opportunities))).
		Render()
	return nil
}

func sizeOrUnknown(size string) string {
	if size == "" {
		return "unknown"
	}
	return size
}
