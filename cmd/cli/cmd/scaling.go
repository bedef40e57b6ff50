package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/output"
)

// scalingCmd recommends multi-cluster settings
var scalingCmd = &cobra.Command{
	Use:   "scaling",
	Short: "Recommend multi-cluster counts and scaling policy",
	Args:  cobra.NoArgs,
	RunE:  run(runScaling),
}

func runScaling(inv *invocation, s *snowflake.Session) error {
	profiles, err := inv.reader(s).ScalingProfile(inv.ctx, inv.filter())
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return inv.noData()
	}
	inventory, err := inv.inventory(s)
	if err != nil {
		return err
	}

	recs := analysis.RecommendScaling(profiles, inventory)
	t := output.NewTable("Multi-Cluster Scaling", "Warehouse", "Current", "Recommended", "Policy", "Queued", "Rationale")
	changed := 0
	for _, r := range recs {
		if r.Changed() {
			changed++
		} else if !inv.cfg.Output.Detailed {
			continue
		}
		t.AddRow(
			r.Warehouse,
			fmt.Sprintf("%d-%d %s", r.CurrentMin, r.CurrentMax, r.CurrentPolicy),
			fmt.Sprintf("%d-%d", r.RecommendedMin, r.RecommendedMax),
			string(r.Policy), pct(r.QueuedPercent), r.Summary(),
		)
	}
	inv.metrics.Recommendations("scaling", changed, 0)

	if err := inv.emit(t); err != nil {
		return err
	}
	if changed == 0 {
		inv.out.Success("Cluster settings match observed concurrency")
	}
	return nil
}
