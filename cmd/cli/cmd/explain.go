package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/output"
	"snowops/internal/errors"
)

var queryID string

// explainCmd analyzes the plan of a past query
var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain a past query and flag plan problems",
	Long: `Look up a query in history, re-explain its text and report cartesian
joins, full scans over a million rows, large sorts and poor pruning.

Example:
  snowops explain --query-id 01b2c3d4-0000-1234-0000-000000000001`,
	Args: cobra.NoArgs,
	RunE: run(runExplain),
}

func init() {
	explainCmd.Flags().StringVar(&queryID, "query-id", "", "query id from query history")
	_ = explainCmd.MarkFlagRequired("query-id")
}

func runExplain(inv *invocation, s *snowflake.Session) error {
	r := inv.reader(s)
	q, err := r.QueryInfo(inv.ctx, strings.TrimSpace(queryID))
	if err != nil {
		return err
	}
	if q == nil {
		return errors.Newf(errors.TypeDataUnavailable, "query %s not found in history; recent queries can take up to 45 minutes to appear", queryID)
	}

	plan, err := r.ExplainPlan(inv.ctx, q.QueryText)
	if err != nil {
		return err
	}

	inv.out.NewSummary("Query "+q.ID).
		Add("Warehouse", q.Warehouse).
		Add("User", q.User).
		Add("Elapsed", fmt.Sprintf("%.1fs", q.ElapsedMS/1000)).
		Add("Partitions", fmt.Sprintf("%.0f of %.0f", q.PartitionsScanned, q.PartitionsTotal)).
		Render()
	inv.out.Println("")

	insights := analysis.AnalyzePlan(plan)
	t := output.NewTable("Plan Insights", "Type", "Severity", "Message")
	for _, in := range insights {
		t.AddRow(in.Type, string(in.Severity), in.Message)
	}
	inv.metrics.Recommendations("explain", len(insights), 0)

	if err := inv.emit(t); err != nil {
		return err
	}
	if len(insights) == 0 {
		inv.out.Success("No plan problems found")
	}
	if inv.cfg.Output.Detailed {
		inv.out.SubHeader("Query")
		inv.out.Println("%s", q.QueryText)
	}
	return nil
}
