package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/metadata"
	"snowops/core/output"
	"snowops/internal/errors"
)

var clusterTable string

// clusteringCmd proposes a clustering key for one table
var clusteringCmd = &cobra.Command{
	Use:   "clustering",
	Short: "Propose a clustering key from filter usage",
	Long: `Score the table's columns by how often recent queries filter on them,
weighted by predicate selectivity and partition scan ratio.

Example:
  snowops clustering --table SALES.PUBLIC.ORDERS`,
	Args: cobra.NoArgs,
	RunE: run(runClustering),
}

func init() {
	clusteringCmd.Flags().StringVar(&clusterTable, "table", "", "table as DATABASE.SCHEMA.TABLE")
	_ = clusteringCmd.MarkFlagRequired("table")
}

func runClustering(inv *invocation, s *snowflake.Session) error {
	ref, err := metadata.ParseTableRef(clusterTable)
	if err != nil {
		return errors.Wrap(errors.TypeConfig, "invalid --table", err)
	}

	r := inv.reader(s)
	columns, err := r.TableColumns(inv.ctx, ref)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return errors.Configf("table %s not found or has no columns", ref)
	}
	scans, err := r.TableScans(inv.ctx, inv.cfg.Analysis.Days, ref)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		return inv.noData()
	}
	info, err := r.TableInfo(inv.ctx, ref)
	if err != nil {
		return err
	}

	rec := analysis.RecommendClusteringKeys(analysis.TableUsage{
		Table:   ref,
		Columns: columns,
		Scans:   scans,
		Info:    info,
	}, inv.cfg.Analysis.MaxClusteringKeys)

	t := output.NewTable("Filter Column Scores", "Column", "Uses", "Score")
	for _, sc := range rec.Scores {
		t.AddRow(sc.Column, strconv.Itoa(sc.Uses), fmt.Sprintf("%.2f", sc.Score))
	}
	proposed := 0
	if len(rec.Key) > 0 {
		proposed = 1
	}
	inv.metrics.Recommendations("clustering", proposed, 0)

	if err := inv.emit(t); err != nil {
		return err
	}

	summary := inv.out.NewSummary("Clustering " + rec.Table).
		Add("Queries analyzed", strconv.Itoa(rec.QueriesAnalyzed)).
		Add("Avg scan ratio", pct(rec.AvgScanRatio*100)).
		Add("Confidence", string(rec.Confidence))
	if rec.CurrentKey != "" {
		summary.Add("Current key", rec.CurrentKey)
	}
	summary.Render()

	if rec.DDL == "" {
		inv.out.Info("%s", rec.Rationale)
		return nil
	}
	inv.out.Println("")
	inv.out.Println("%s", rec.DDL)
	if inv.cfg.Output.Detailed {
		inv.out.Info("%s", rec.Rationale)
	}
	return nil
}
