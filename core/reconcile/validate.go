package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"snowops/core/record"
	"snowops/core/types"
	"snowops/internal/errors"
)

// Validate checks the declared state and reports every problem at once.
// Monitor references must resolve to a declared monitor or one of known.
func Validate(d DesiredState, known ...string) error {
	var result *multierror.Error

	monitors := make(map[string]bool, len(d.Monitors)+len(known))
	for _, name := range known {
		monitors[NormalizeName(name)] = true
	}

	seen := make(map[string]bool, len(d.Monitors))
	for i, spec := range d.Monitors {
		label := specLabel(types.KindResourceMonitor, spec.Name, i)
		name := NormalizeName(spec.Name)
		if name == "" {
			result = multierror.Append(result, fmt.Errorf("%s: name is required", label))
		} else if seen[name] {
			result = multierror.Append(result, fmt.Errorf("%s: declared more than once", label))
		}
		seen[name] = true
		monitors[name] = true

		for _, err := range validateMonitor(spec) {
			result = multierror.Append(result, fmt.Errorf("%s: %w", label, err))
		}
	}

	seen = make(map[string]bool, len(d.Warehouses))
	for i, spec := range d.Warehouses {
		label := specLabel(types.KindWarehouse, spec.Name, i)
		name := NormalizeName(spec.Name)
		if name == "" {
			result = multierror.Append(result, fmt.Errorf("%s: name is required", label))
		} else if seen[name] {
			result = multierror.Append(result, fmt.Errorf("%s: declared more than once", label))
		}
		seen[name] = true

		for _, err := range validateWarehouse(spec) {
			result = multierror.Append(result, fmt.Errorf("%s: %w", label, err))
		}
		if spec.ResourceMonitor != nil && *spec.ResourceMonitor != "" && !monitors[NormalizeName(*spec.ResourceMonitor)] {
			result = multierror.Append(result, fmt.Errorf("%s: resource monitor %q is neither declared nor present", label, NormalizeName(*spec.ResourceMonitor)))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.Validation(fmt.Sprintf("%d problem(s) in declared configuration", len(result.Errors)), err)
	}
	return nil
}

func specLabel(kind types.ObjectKind, name string, index int) string {
	if n := NormalizeName(name); n != "" {
		return objectLabel(kind, n)
	}
	return fmt.Sprintf("%s #%d", kind, index+1)
}

func validateMonitor(spec ResourceMonitorSpec) []error {
	var errs []error
	if spec.CreditQuota < 0 {
		errs = append(errs, fmt.Errorf("credit_quota must be non-negative, got %v", spec.CreditQuota))
	}

	rm, err := ResolveMonitor(spec)
	if err != nil {
		return append(errs, err)
	}

	if spec.StartTimestamp != nil && !IsImmediate(*spec.StartTimestamp) {
		if _, ok := record.ParseTime(*spec.StartTimestamp); !ok {
			errs = append(errs, fmt.Errorf("start_timestamp %q is neither IMMEDIATELY nor a timestamp", *spec.StartTimestamp))
		}
	}
	if spec.EndTimestamp != nil && strings.TrimSpace(*spec.EndTimestamp) != "" {
		if _, ok := record.ParseTime(*spec.EndTimestamp); !ok {
			errs = append(errs, fmt.Errorf("end_timestamp %q is not a timestamp", *spec.EndTimestamp))
		}
	}

	groups := []struct {
		name     string
		triggers []int
	}{
		{"notify_triggers", rm.NotifyTriggers},
		{"suspend_triggers", rm.SuspendTriggers},
		{"suspend_immediate_triggers", rm.SuspendImmediateTriggers},
	}

	// each group must start at or above everything before it
	prevMax, prevName := 0, ""
	for _, g := range groups {
		for _, p := range g.triggers {
			if p < types.MinTriggerPercent || p > types.MaxTriggerPercent {
				errs = append(errs, fmt.Errorf("%s: %d%% is outside %d..%d", g.name, p, types.MinTriggerPercent, types.MaxTriggerPercent))
			}
		}
		if len(g.triggers) == 0 {
			continue
		}
		// strictly increasing once sorted
		sorted := append([]int(nil), g.triggers...)
		sort.Ints(sorted)
		for i := 1; i < len(sorted); i++ {
			if sorted[i] == sorted[i-1] {
				errs = append(errs, fmt.Errorf("%s: %d%% is listed more than once", g.name, sorted[i]))
			}
		}
		lo, hi := minMax(g.triggers)
		if prevName != "" && lo < prevMax {
			errs = append(errs, fmt.Errorf("%s: %d%% is below %s %d%%", g.name, lo, prevName, prevMax))
		}
		if hi >= prevMax {
			prevMax, prevName = hi, g.name
		}
	}
	return errs
}

func validateWarehouse(spec WarehouseSpec) []error {
	var errs []error
	if spec.Size == "" {
		errs = append(errs, fmt.Errorf("size is required"))
	}

	wh, err := ResolveWarehouse(spec)
	if err != nil {
		if spec.Size != "" {
			errs = append(errs, err)
		}
		return errs
	}

	if wh.MinClusterCount < 1 || wh.MinClusterCount > types.MaxClusterLimit {
		errs = append(errs, fmt.Errorf("min_cluster_count must be 1..%d, got %d", types.MaxClusterLimit, wh.MinClusterCount))
	}
	if wh.MaxClusterCount < 1 || wh.MaxClusterCount > types.MaxClusterLimit {
		errs = append(errs, fmt.Errorf("max_cluster_count must be 1..%d, got %d", types.MaxClusterLimit, wh.MaxClusterCount))
	}
	if wh.MinClusterCount > wh.MaxClusterCount {
		errs = append(errs, fmt.Errorf("min_cluster_count %d exceeds max_cluster_count %d", wh.MinClusterCount, wh.MaxClusterCount))
	}
	if wh.AutoSuspend < 0 {
		errs = append(errs, fmt.Errorf("auto_suspend must be non-negative, got %d", wh.AutoSuspend))
	}
	if wh.StatementTimeout < 0 {
		errs = append(errs, fmt.Errorf("statement_timeout must be non-negative, got %d", wh.StatementTimeout))
	}
	if wh.QueuedTimeout < 0 {
		errs = append(errs, fmt.Errorf("queued_timeout must be non-negative, got %d", wh.QueuedTimeout))
	}
	return errs
}

func minMax(v []int) (int, int) {
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	return lo, hi
}
