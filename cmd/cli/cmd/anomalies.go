package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/output"
	"snowops/internal/errors"
)

var (
	budget     string
	allPeriods bool
)

// anomaliesCmd detects credit spikes and budget overruns
var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Detect daily credit spikes and budget overruns",
	Long: `Compare each day's credits with the trailing mean of the preceding days.
Ratios above 1.2 are WARNING, above 1.5 HIGH and above 2.0 CRITICAL.

Examples:
  snowops anomalies
  snowops anomalies --threshold 150 --all
  snowops anomalies --budget 500`,
	Args: cobra.NoArgs,
	RunE: run(runAnomalies),
}

func init() {
	anomaliesCmd.Flags().StringVar(&budget, "budget", "", "daily budget in the pricing currency")
	anomaliesCmd.Flags().BoolVar(&allPeriods, "all", false, "evaluate every day, not only the latest")
}

func runAnomalies(inv *invocation, s *snowflake.Session) error {
	var limit decimal.Decimal
	if budget != "" {
		var err error
		if limit, err = decimal.NewFromString(budget); err != nil || !limit.IsPositive() {
			return errors.Configf("--budget must be a positive amount, got %q", budget)
		}
	}

	r := inv.reader(s)
	f := inv.filter()
	history, err := r.CreditHistory(inv.ctx, f)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return inv.noData()
	}

	spikes := analysis.DetectSpikes(history, analysis.AnomalyOptions{
		BaselinePeriods:  inv.cfg.Analysis.BaselinePeriods,
		ThresholdPercent: inv.cfg.Analysis.SpikeThreshold,
		AllPeriods:       allPeriods,
	})

	t := output.NewTable("Cost Spikes", "Warehouse", "Day", "Credits", "Baseline", "Ratio", "Severity")
	for _, sp := range spikes {
		ratio := "-"
		if sp.Severity != analysis.SeverityNoBaseline {
			ratio = fmt.Sprintf("%.2fx", sp.Ratio)
			inv.metrics.CostSpike(sp.Warehouse, sp.Ratio)
		}
		t.AddRow(sp.Warehouse, sp.Day.Format("2006-01-02"), num(sp.Credits), num(sp.Baseline), ratio, string(sp.Severity))
	}
	inv.metrics.Recommendations("anomalies", len(spikes), 0)
	tables := []*output.Table{t}

	over := 0
	if budget != "" {
		daily, err := r.DailyCredits(inv.ctx, f)
		if err != nil {
			return err
		}
		pricing := inv.pricing()
		b := output.NewTable("Daily Budget", "Day", "Credits", "Cost", "Of Budget", "Status")
		for _, d := range analysis.CheckBudget(daily, pricing, limit) {
			status := "OK"
			if d.Over {
				status = "OVER"
				over++
			}
			b.AddRow(d.Day.Format("2006-01-02"), num(d.Credits), money(pricing, d.Cost), pct(d.Percent), status)
		}
		tables = append(tables, b)
	}

	if err := inv.emit(tables...); err != nil {
		return err
	}
	if over > 0 {
		inv.out.Warning("%d day(s) over the %s budget", over, money(inv.pricing(), limit))
	}
	return nil
}
