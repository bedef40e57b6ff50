package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/output"
	"snowops/internal/errors"
)

var groupBy string

// attributionCmd splits warehouse credits across users, roles or databases
var attributionCmd = &cobra.Command{
	Use:   "attribution",
	Short: "Attribute warehouse cost to users, roles or databases",
	Long: `Split each warehouse's credits across subjects by their share of elapsed
query time. Warehouses that burned credits without recorded query time are
listed as unattributed.

Examples:
  snowops attribution --group-by role
  snowops attribution --group-by database --detailed --output cost.json`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		switch strings.ToLower(groupBy) {
		case "user", "role", "database":
			return nil
		}
		return errors.Configf("--group-by must be user, role or database, got %q", groupBy)
	},
	RunE: run(runAttribution),
}

func init() {
	attributionCmd.Flags().StringVar(&groupBy, "group-by", "user", "subject to attribute to (user, role, database)")
}

func runAttribution(inv *invocation, s *snowflake.Session) error {
	r := inv.reader(s)
	f := inv.filter()

	credits, err := r.WarehouseCredits(inv.ctx, f)
	if err != nil {
		return err
	}
	if len(credits) == 0 {
		return inv.noData()
	}
	elapsed, err := r.QueryElapsed(inv.ctx, f, groupBy)
	if err != nil {
		return err
	}

	pricing := inv.pricing()
	report := analysis.AttributeCosts(credits, elapsed, pricing)
	subject := strings.ToUpper(groupBy[:1]) + strings.ToLower(groupBy[1:])

	totals := output.NewTable("Cost by "+subject, subject, "Queries", "Credits", "Cost")
	for _, t := range report.BySubject(pricing) {
		totals.AddRow(t.Subject, strconv.Itoa(t.QueryCount), num(t.Credits), money(pricing, t.Cost))
	}
	tables := []*output.Table{totals}

	if inv.cfg.Output.Detailed {
		rows := output.NewTable("Cost by Warehouse and "+subject, "Warehouse", subject, "Queries", "Share", "Credits", "Cost")
		for _, a := range report.Rows {
			rows.AddRow(a.Warehouse, a.Subject, strconv.Itoa(a.QueryCount), pct(a.Share*100), num(a.Credits), money(pricing, a.Cost))
		}
		tables = append(tables, rows)
	}

	if len(report.Unattributed) > 0 {
		un := output.NewTable("Unattributed Warehouses", "Warehouse", "Credits")
		for _, w := range report.Unattributed {
			un.AddRow(w.Warehouse, num(w.Credits))
		}
		tables = append(tables, un)
	}

	inv.metrics.Recommendations("attribution", totals.Len(), 0)
	if err := inv.emit(tables...); err != nil {
		return err
	}
	if len(report.Unattributed) > 0 {
		inv.out.Warning("%d warehouse(s) burned credits with no query time recorded; their cost is unattributed", len(report.Unattributed))
	}
	return nil
}
