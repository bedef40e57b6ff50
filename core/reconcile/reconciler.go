package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"snowops/core/types"
	"snowops/internal/errors"
)

// Outputs maps each declared warehouse to its platform identifier and its
// fully-qualified (quoted) name.
type Outputs struct {
	WarehouseIDs  map[string]string `json:"warehouse_ids"`
	WarehouseFQNs map[string]string `json:"warehouse_fully_qualified_names"`
}

// OutputsFor computes the outputs of a desired state
func OutputsFor(d DesiredState) Outputs {
	out := Outputs{
		WarehouseIDs:  make(map[string]string, len(d.Warehouses)),
		WarehouseFQNs: make(map[string]string, len(d.Warehouses)),
	}
	for _, spec := range d.Warehouses {
		name := NormalizeName(spec.Name)
		out.WarehouseIDs[name] = name
		out.WarehouseFQNs[name] = QuoteIdentifier(name)
	}
	return out
}

// Result is the outcome of a completed apply.
type Result struct {
	Applied []string
	Outputs Outputs
}

// Reconciler plans and applies desired state against a platform.
type Reconciler struct {
	platform Platform
	logger   *zap.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(platform Platform, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{platform: platform, logger: logger}
}

// Plan validates the desired state and diffs it against live state. A
// validation failure returns before anything is compared.
func (r *Reconciler) Plan(ctx context.Context, desired DesiredState) (*Plan, error) {
	if err := Validate(desired); err != nil && !onlyUnresolvedReferences(desired) {
		return nil, err
	}

	liveMonitors, err := r.platform.ResourceMonitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("read live resource monitors: %w", err)
	}
	liveWarehouses, err := r.platform.Warehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("read live warehouses: %w", err)
	}

	known := make([]string, 0, len(liveMonitors))
	monitors := make(map[string]*types.ResourceMonitor, len(liveMonitors))
	for i := range liveMonitors {
		name := NormalizeName(liveMonitors[i].Name)
		known = append(known, name)
		monitors[name] = &liveMonitors[i]
	}
	if err := Validate(desired, known...); err != nil {
		return nil, err
	}

	warehouses := make(map[string]*types.Warehouse, len(liveWarehouses))
	for i := range liveWarehouses {
		warehouses[NormalizeName(liveWarehouses[i].Name)] = &liveWarehouses[i]
	}

	plan := &Plan{Outputs: OutputsFor(desired)}
	for _, spec := range desired.Monitors {
		want, err := ResolveMonitor(spec)
		if err != nil {
			return nil, errors.Validation("resolve "+spec.Name, err)
		}
		if change := diffMonitor(spec, want, monitors[want.Name]); len(change.Attributes) > 0 {
			plan.Changes = append(plan.Changes, change)
		}
	}
	for _, spec := range desired.Warehouses {
		want, err := ResolveWarehouse(spec)
		if err != nil {
			return nil, errors.Validation("resolve "+spec.Name, err)
		}
		if change := diffWarehouse(spec, want, warehouses[want.Name]); len(change.Attributes) > 0 {
			plan.Changes = append(plan.Changes, change)
		}
	}

	creates, alters := plan.Counts()
	r.logger.Info("plan computed",
		zap.Int("monitors", len(desired.Monitors)),
		zap.Int("warehouses", len(desired.Warehouses)),
		zap.Int("creates", creates),
		zap.Int("alters", alters),
	)
	return plan, nil
}

// Apply executes the plan's changes one at a time in order. The first
// rejected change stops the batch; changes already applied stay applied.
func (r *Reconciler) Apply(ctx context.Context, plan *Plan) (*Result, error) {
	result := &Result{}
	if plan == nil {
		return result, nil
	}
	result.Outputs = plan.Outputs

	for i, change := range plan.Changes {
		if err := ctx.Err(); err != nil {
			return result, r.stopped(plan, i, result.Applied, err)
		}

		r.logger.Info("applying change",
			zap.String("object", change.Label()),
			zap.String("action", change.Action.String()),
			zap.Int("attributes", len(change.Attributes)),
		)
		if err := r.platform.Apply(ctx, change); err != nil {
			return result, r.stopped(plan, i, result.Applied, err)
		}
		result.Applied = append(result.Applied, change.Label())
	}

	r.logger.Info("apply complete", zap.Int("applied", len(result.Applied)))
	return result, nil
}

func (r *Reconciler) stopped(plan *Plan, at int, applied []string, cause error) error {
	remaining := make([]string, 0, len(plan.Changes)-at-1)
	for _, c := range plan.Changes[at+1:] {
		remaining = append(remaining, c.Label())
	}
	failed := plan.Changes[at].Label()

	r.logger.Error("apply stopped; earlier changes remain applied",
		zap.String("failed", failed),
		zap.Strings("succeeded", applied),
		zap.Strings("remaining", remaining),
		zap.Error(cause),
	)
	return &errors.ApplyError{
		Failed:    failed,
		Succeeded: append([]string(nil), applied...),
		Remaining: remaining,
		Cause:     cause,
	}
}

// onlyUnresolvedReferences reports whether static validation fails solely
// because of monitor references that live state may still satisfy.
func onlyUnresolvedReferences(d DesiredState) bool {
	stripped := d
	stripped.Warehouses = make([]WarehouseSpec, len(d.Warehouses))
	for i, w := range d.Warehouses {
		w.ResourceMonitor = nil
		stripped.Warehouses[i] = w
	}
	return Validate(stripped) == nil
}
