package cmd

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snowops/adapters/declare"
	"snowops/adapters/snowflake"
	"snowops/core/output"
	"snowops/core/reconcile"
	"snowops/internal/errors"
)

var (
	declareVars     []string
	autoApprove     bool
	wantFingerprint string
)

// validateCmd checks declarations without connecting
var validateCmd = &cobra.Command{
	Use:   "validate PATH",
	Short: "Validate declared warehouses and resource monitors offline",
	Long: `Load HCL, YAML or JSON declarations from a file or directory and report
every problem at once. No connection is made, so resource monitors must be
declared alongside the warehouses that reference them.

Examples:
  snowops validate ./warehouses
  snowops validate main.hcl --var env=prod`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

// planCmd diffs declarations against live state
var planCmd = &cobra.Command{
	Use:   "plan PATH",
	Short: "Show the changes apply would make",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

// applyCmd reconciles live state with declarations
var applyCmd = &cobra.Command{
	Use:   "apply PATH",
	Short: "Create or alter warehouses and resource monitors to match declarations",
	Long: `Compute the plan, ask for confirmation and apply the changes one at a
time: resource monitors first, then warehouses, each in declaration order.
The first rejected change stops the run; changes already applied stay
applied.

Examples:
  snowops apply ./warehouses
  snowops apply ./warehouses --auto-approve
  snowops apply ./warehouses --fingerprint 3f9a0c1d2b7e4a65`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	for _, c := range []*cobra.Command{validateCmd, planCmd, applyCmd} {
		c.Flags().StringArrayVar(&declareVars, "var", nil, "set an HCL variable (name=value), repeatable")
	}
	applyCmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "skip the confirmation prompt")
	applyCmd.Flags().StringVar(&wantFingerprint, "fingerprint", "", "refuse to apply unless the plan matches this fingerprint from 'snowops plan'")
}

func loadDeclarations(path string) (reconcile.DesiredState, error) {
	vars, err := declare.ParseVars(declareVars)
	if err != nil {
		return reconcile.DesiredState{}, err
	}
	d, err := declare.NewLoader(vars).Load(path)
	if err != nil {
		return reconcile.DesiredState{}, err
	}
	if d.Empty() {
		return d, errors.Validation("nothing declared", fmt.Errorf("%s declares no warehouse or resource monitor", path))
	}
	return d, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	inv := newInvocation(cmd)
	d, err := loadDeclarations(args[0])
	if err != nil {
		return inv.finish(err)
	}
	if err := reconcile.Validate(d); err != nil {
		return inv.finish(err)
	}
	inv.out.Success("%d resource monitor(s) and %d warehouse(s) are valid", len(d.Monitors), len(d.Warehouses))
	return inv.finish(nil)
}

// planned loads, connects and plans. The caller closes the session.
func planned(inv *invocation, path string) (*reconcile.Reconciler, *reconcile.Plan, *snowflake.Session, error) {
	d, err := loadDeclarations(path)
	if err != nil {
		return nil, nil, nil, err
	}

	s, err := inv.connect(snowflake.WithRateLimit(inv.cfg.Apply.StatementsPerSecond))
	if err != nil {
		return nil, nil, nil, err
	}

	platform := snowflake.NewPlatform(s, inv.logger)
	platform.TrackTags(declaredTags(d)...)

	rec := reconcile.NewReconciler(platform, inv.logger)
	plan, err := rec.Plan(inv.ctx, d)
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}
	return rec, plan, s, nil
}

func declaredTags(d reconcile.DesiredState) []string {
	var tags []string
	for _, w := range d.Warehouses {
		for k := range w.Tags {
			tags = append(tags, k)
		}
	}
	return tags
}

func runPlan(cmd *cobra.Command, args []string) error {
	inv := newInvocation(cmd)
	_, plan, s, err := planned(inv, args[0])
	if err != nil {
		return inv.finish(err)
	}
	defer s.Close()

	inv.out.Plan(plan)
	if !plan.Empty() {
		inv.out.Println("Plan fingerprint: %s", plan.Fingerprint())
	}
	creates, alters := plan.Counts()
	inv.metrics.Recommendations("plan", creates+alters, 0)
	return inv.finish(nil)
}

func runApply(cmd *cobra.Command, args []string) error {
	inv := newInvocation(cmd)
	rec, plan, s, err := planned(inv, args[0])
	if err != nil {
		return inv.finish(err)
	}
	defer s.Close()

	inv.out.Plan(plan)
	if plan.Empty() {
		return inv.finish(nil)
	}
	if got := plan.Fingerprint(); wantFingerprint != "" && got != wantFingerprint {
		inv.metrics.ApplyOutcome(0, 0, len(plan.Changes))
		return inv.finish(errors.Validation("plan changed since it was reviewed",
			fmt.Errorf("fingerprint is %s, expected %s; run 'snowops plan' again", got, wantFingerprint)))
	}

	if !autoApprove {
		if !inv.confirm("Apply %d change(s)?", len(plan.Changes)) {
			inv.out.Warning("Apply cancelled")
			inv.metrics.ApplyOutcome(0, 0, len(plan.Changes))
			return inv.finish(nil)
		}
	}

	result, err := rec.Apply(inv.ctx, plan)
	if err != nil {
		var applyErr *errors.ApplyError
		if stderrors.As(err, &applyErr) {
			inv.metrics.ApplyOutcome(len(applyErr.Succeeded), 1, len(applyErr.Remaining))
			for _, label := range applyErr.Succeeded {
				inv.out.Success("%s", label)
			}
			inv.out.Error("%s: %v", applyErr.Failed, applyErr.Cause)
			for _, label := range applyErr.Remaining {
				inv.out.Warning("%s not attempted", label)
			}
		}
		return inv.finish(err)
	}

	inv.metrics.ApplyOutcome(len(result.Applied), 0, 0)
	for _, label := range result.Applied {
		inv.out.Success("%s", label)
	}
	inv.logger.Info("apply succeeded", zap.Int("changes", len(result.Applied)))
	return inv.finish(inv.emit(outputsTable(result.Outputs)))
}

func outputsTable(o reconcile.Outputs) *output.Table {
	names := make([]string, 0, len(o.WarehouseIDs))
	for name := range o.WarehouseIDs {
		names = append(names, name)
	}
	sort.Strings(names)

	t := output.NewTable("Outputs", "Warehouse", "ID", "Fully Qualified Name")
	for _, name := range names {
		t.AddRow(name, o.WarehouseIDs[name], o.WarehouseFQNs[name])
	}
	return t
}
