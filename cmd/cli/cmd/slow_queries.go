package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/output"
)

var minSeconds float64

// slowQueriesCmd diagnoses slow queries
var slowQueriesCmd = &cobra.Command{
	Use:   "slow-queries",
	Short: "Diagnose queries slower than a cutoff",
	Long: `Classify each slow query by its primary issue: remote or local spilling,
compilation, queuing, poor partition pruning, large scans or lock waits.

Examples:
  snowops slow-queries
  snowops slow-queries --min-seconds 300 --warehouse ETL_WH --detailed`,
	Args: cobra.NoArgs,
	RunE: run(runSlowQueries),
}

func init() {
	slowQueriesCmd.Flags().Float64Var(&minSeconds, "min-seconds", 0, "slow-query cutoff in seconds (default from config, 60)")
}

func runSlowQueries(inv *invocation, s *snowflake.Session) error {
	cutoff := inv.cfg.Analysis.SlowQuerySeconds
	if minSeconds > 0 {
		cutoff = minSeconds
	}

	queries, err := inv.reader(s).SlowQueries(inv.ctx, inv.filter(), cutoff)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return inv.noData()
	}

	diagnoses := analysis.DiagnoseSlowQueries(queries)
	headers := []string{"Query ID", "Warehouse", "User", "Seconds", "Category", "Severity", "Issues"}
	if inv.cfg.Output.Detailed {
		headers = append(headers, "Suggestions", "Query")
	}
	t := output.NewTable("Slow Queries", headers...)
	counts := make(map[analysis.Severity]int)
	for _, d := range diagnoses {
		row := []string{
			d.Query.QueryID, d.Query.Warehouse, d.Query.User, fmt.Sprintf("%.0f", d.Query.TotalSeconds),
			string(d.Category), string(d.Severity), strings.Join(d.Issues, "; "),
		}
		if inv.cfg.Output.Detailed {
			row = append(row, strings.Join(d.Suggestions, "; "), truncate(d.Query.QueryText, 80))
		}
		t.AddRow(row...)
		counts[d.Severity]++
	}
	inv.metrics.Recommendations("slow_queries", len(diagnoses), 0)

	if err := inv.emit(t); err != nil {
		return err
	}
	for _, sev := range []analysis.Severity{analysis.SeverityCritical, analysis.SeverityHigh} {
		if n := counts[sev]; n > 0 {
			inv.out.Warning("%d %s slow quer(ies)", n, inv.out.Severity(string(sev)))
		}
	}
	return nil
}
