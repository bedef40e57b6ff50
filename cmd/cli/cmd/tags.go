package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/metadata"
	"snowops/core/output"
	"snowops/internal/errors"
	"snowops/internal/logging"
)

var (
	resourceType string
	tagSchema    string
	applyTags    bool
)

// tagsCmd checks resources against the tagging standard
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Recommend governance tags for untagged resources",
	Long: `List warehouses, databases or tables missing a required tag (COST_CENTER,
OWNER, ENVIRONMENT) or carrying a value outside the allowed set, infer values
from naming conventions and render the ALTER ... SET TAG statements.

Only missing tags are set. Invalid values are listed for review and never
overwritten.

Examples:
  snowops tags
  snowops tags --resource-type database --tag-schema GOVERNANCE.TAGS
  snowops tags --apply --auto-approve`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		for _, kind := range metadata.TaggedResourceKinds {
			if strings.EqualFold(resourceType, kind) {
				return nil
			}
		}
		return errors.Configf("--resource-type must be %s, got %q",
			strings.Join(metadata.TaggedResourceKinds, ", "), resourceType)
	},
	RunE: run(runTags),
}

func init() {
	tagsCmd.Flags().StringVar(&resourceType, "resource-type", "warehouse", "objects to check (warehouse, database, table)")
	tagsCmd.Flags().StringVar(&tagSchema, "tag-schema", "GOVERNANCE.TAGS", "database and schema that hold the tag objects")
	tagsCmd.Flags().BoolVar(&applyTags, "apply", false, "run the rendered statements")
	tagsCmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "skip the confirmation prompt")
}

func runTags(inv *invocation, s *snowflake.Session) error {
	resources, err := inv.reader(s).TaggedResources(inv.ctx, resourceType, inv.cfg.Analysis.Days)
	if err != nil {
		return err
	}
	if len(resources) == 0 {
		return inv.noData()
	}

	recs := analysis.RecommendTags(resources)
	statements, err := tagStatements(recs, tagSchema)
	if err != nil {
		return err
	}

	table := output.NewTable("Tagging Recommendations", "Resource", "Type", "Missing", "Environment", "Cost Center", "Confidence", "Action")
	review := 0
	for _, rec := range recs {
		table.AddRow(
			truncate(rec.Resource, 40), rec.Kind, strings.Join(rec.Missing, ", "),
			orUnknown(rec.Proposed[analysis.TagEnvironment]), orUnknown(rec.Proposed[analysis.TagCostCenter]),
			string(rec.Confidence), rec.Action,
		)
		if rec.Action == analysis.ActionReview {
			review++
		}
	}

	invalid := output.NewTable("Invalid Tag Values", "Resource", "Tag", "Value", "Allowed")
	for _, rec := range recs {
		tags := make([]string, 0, len(rec.Invalid))
		for tag := range rec.Invalid {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			invalid.AddRow(rec.Resource, tag, rec.Invalid[tag], strings.Join(analysis.AllowedTagValues[tag], ", "))
		}
	}

	inv.metrics.Recommendations("tags", len(recs), 0)

	tables := []*output.Table{table}
	if len(invalid.Rows) > 0 {
		tables = append(tables, invalid)
	}
	if err := inv.emit(tables...); err != nil {
		return err
	}
	inv.out.NewSummary("Tag Compliance").
		Add("Resources checked", strconv.Itoa(len(resources))).
		Add("Non-compliant", strconv.Itoa(len(recs))).
		Add("Requiring review", strconv.Itoa(review)).
		Render()

	if len(statements) == 0 {
		return nil
	}
	inv.out.Println("")
	for _, stmt := range statements {
		inv.out.Println("%s;", stmt)
	}
	if !applyTags {
		return nil
	}
	if !autoApprove && !inv.confirm("Apply tags to %d resource(s)?", len(statements)) {
		inv.out.Warning("Tagging cancelled")
		return nil
	}

	for i, stmt := range statements {
		inv.logger.Info("executing DDL", logging.Statement(stmt))
		if err := s.Exec(inv.ctx, stmt); err != nil {
			inv.logger.Error("tagging stopped", zap.Int("applied", i), zap.Int("remaining", len(statements)-i))
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	inv.out.Success("Tagged %d resource(s)", len(statements))
	return nil
}

// tagStatements renders one ALTER per resource with a proposed tag
func tagStatements(recs []analysis.TagRecommendation, schema string) ([]string, error) {
	var out []string
	for _, rec := range recs {
		if len(rec.Proposed) == 0 {
			continue
		}
		stmt, err := snowflake.TagStatement(rec.Kind, rec.Resource, schema, rec.Proposed)
		if err != nil {
			return nil, errors.Wrap(errors.TypeConfig, "render tag statement", err)
		}
		out = append(out, stmt)
	}
	return out, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}
