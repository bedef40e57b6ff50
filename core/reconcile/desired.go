// Package reconcile diffs declared warehouse and resource monitor
// configuration against live state and applies the difference.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"snowops/core/record"
	"snowops/core/types"
)

// TimestampLayout is the form monitor timestamps are compared in: UTC at
// minute precision, as the platform reports them.
const TimestampLayout = "2006-01-02 15:04"

// WarehouseSpec is a declared warehouse. Nil fields take the value from
// types.Defaults; Comment, ResourceMonitor and Tags are left unmanaged when
// nil.
type WarehouseSpec struct {
	Name             string            `yaml:"name" json:"name"`
	Comment          *string           `yaml:"comment,omitempty" json:"comment,omitempty"`
	Size             string            `yaml:"size" json:"size"`
	MinClusterCount  *int              `yaml:"min_cluster_count,omitempty" json:"min_cluster_count,omitempty"`
	MaxClusterCount  *int              `yaml:"max_cluster_count,omitempty" json:"max_cluster_count,omitempty"`
	ScalingPolicy    *string           `yaml:"scaling_policy,omitempty" json:"scaling_policy,omitempty"`
	AutoSuspend      *int              `yaml:"auto_suspend,omitempty" json:"auto_suspend,omitempty"`
	AutoResume       *bool             `yaml:"auto_resume,omitempty" json:"auto_resume,omitempty"`
	ResourceMonitor  *string           `yaml:"resource_monitor,omitempty" json:"resource_monitor,omitempty"`
	StatementTimeout *int              `yaml:"statement_timeout,omitempty" json:"statement_timeout,omitempty"`
	QueuedTimeout    *int              `yaml:"queued_timeout,omitempty" json:"queued_timeout,omitempty"`
	Tags             map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// ResourceMonitorSpec is a declared resource monitor. Nil trigger lists take
// the default; an empty list means no trigger of that kind.
type ResourceMonitorSpec struct {
	Name                     string   `yaml:"name" json:"name"`
	CreditQuota              float64  `yaml:"credit_quota" json:"credit_quota"`
	Frequency                *string  `yaml:"frequency,omitempty" json:"frequency,omitempty"`
	StartTimestamp           *string  `yaml:"start_timestamp,omitempty" json:"start_timestamp,omitempty"`
	EndTimestamp             *string  `yaml:"end_timestamp,omitempty" json:"end_timestamp,omitempty"`
	NotifyTriggers           []int    `yaml:"notify_triggers,omitempty" json:"notify_triggers,omitempty"`
	SuspendTriggers          []int    `yaml:"suspend_triggers,omitempty" json:"suspend_triggers,omitempty"`
	SuspendImmediateTriggers []int    `yaml:"suspend_immediate_triggers,omitempty" json:"suspend_immediate_triggers,omitempty"`
	NotifyUsers              []string `yaml:"notify_users,omitempty" json:"notify_users,omitempty"`
}

// DesiredState is the declared configuration in declaration order.
type DesiredState struct {
	Monitors   []ResourceMonitorSpec `yaml:"resource_monitors,omitempty" json:"resource_monitors,omitempty"`
	Warehouses []WarehouseSpec       `yaml:"warehouses,omitempty" json:"warehouses,omitempty"`
}

// Merge appends other's declarations after d's.
func (d DesiredState) Merge(other DesiredState) DesiredState {
	return DesiredState{
		Monitors:   append(append([]ResourceMonitorSpec(nil), d.Monitors...), other.Monitors...),
		Warehouses: append(append([]WarehouseSpec(nil), d.Warehouses...), other.Warehouses...),
	}
}

// Empty reports whether nothing is declared
func (d DesiredState) Empty() bool {
	return len(d.Monitors) == 0 && len(d.Warehouses) == 0
}

// NormalizeName upper-cases an unquoted identifier.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// QuoteIdentifier renders a name as a quoted identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(NormalizeName(name), `"`, `""`) + `"`
}

// ResolveWarehouse fills unset attributes from types.Defaults.
func ResolveWarehouse(spec WarehouseSpec) (types.Warehouse, error) {
	size, err := types.ParseSize(spec.Size)
	if err != nil {
		return types.Warehouse{}, err
	}

	policy := types.Defaults.ScalingPolicy
	if spec.ScalingPolicy != nil {
		if policy, err = types.ParseScalingPolicy(*spec.ScalingPolicy); err != nil {
			return types.Warehouse{}, err
		}
	}

	wh := types.Warehouse{
		Name:             NormalizeName(spec.Name),
		Size:             size,
		MinClusterCount:  intOr(spec.MinClusterCount, types.Defaults.MinClusterCount),
		MaxClusterCount:  intOr(spec.MaxClusterCount, types.Defaults.MaxClusterCount),
		ScalingPolicy:    policy,
		AutoSuspend:      intOr(spec.AutoSuspend, types.Defaults.AutoSuspend),
		AutoResume:       types.Defaults.AutoResume,
		StatementTimeout: intOr(spec.StatementTimeout, types.Defaults.StatementTimeout),
		QueuedTimeout:    intOr(spec.QueuedTimeout, types.Defaults.QueuedTimeout),
	}
	if spec.AutoResume != nil {
		wh.AutoResume = *spec.AutoResume
	}
	if spec.Comment != nil {
		wh.Comment = *spec.Comment
	}
	if spec.ResourceMonitor != nil {
		wh.ResourceMonitor = NormalizeName(*spec.ResourceMonitor)
	}
	if len(spec.Tags) > 0 {
		wh.Tags = make(map[string]string, len(spec.Tags))
		for k, v := range spec.Tags {
			wh.Tags[NormalizeName(k)] = v
		}
	}
	return wh, nil
}

// ResolveMonitor fills unset attributes from types.Defaults.
func ResolveMonitor(spec ResourceMonitorSpec) (types.ResourceMonitor, error) {
	freq := types.Defaults.MonitorFrequency
	if spec.Frequency != nil {
		var err error
		if freq, err = types.ParseFrequency(*spec.Frequency); err != nil {
			return types.ResourceMonitor{}, err
		}
	}

	rm := types.ResourceMonitor{
		Name:                     NormalizeName(spec.Name),
		CreditQuota:              spec.CreditQuota,
		Frequency:                freq,
		StartTimestamp:           types.Defaults.StartTimestamp,
		NotifyTriggers:           triggersOr(spec.NotifyTriggers, types.Defaults.NotifyTriggers),
		SuspendTriggers:          triggersOr(spec.SuspendTriggers, types.Defaults.SuspendTriggers),
		SuspendImmediateTriggers: triggersOr(spec.SuspendImmediateTriggers, types.Defaults.SuspendImmediateTriggers),
	}
	if spec.StartTimestamp != nil {
		rm.StartTimestamp = NormalizeTimestamp(*spec.StartTimestamp)
	}
	if spec.EndTimestamp != nil {
		rm.EndTimestamp = NormalizeTimestamp(*spec.EndTimestamp)
	}
	for _, u := range spec.NotifyUsers {
		rm.NotifyUsers = append(rm.NotifyUsers, NormalizeName(u))
	}
	return rm, nil
}

// NormalizeTimestamp renders a timestamp in TimestampLayout. IMMEDIATELY is
// upper-cased; other text that is not a timestamp is returned trimmed.
func NormalizeTimestamp(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if IsImmediate(s) {
		return types.Defaults.StartTimestamp
	}
	if t, ok := record.ParseTime(s); ok {
		return t.UTC().Format(TimestampLayout)
	}
	return s
}

// IsImmediate reports whether a start timestamp means "start now"
func IsImmediate(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, types.Defaults.StartTimestamp)
}

// FormatUsers renders notified users as a sorted, comma-joined set.
func FormatUsers(users []string) string {
	sorted := make([]string, len(users))
	for i, u := range users {
		sorted[i] = NormalizeName(u)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func triggersOr(v, def []int) []int {
	if v == nil {
		return append([]int(nil), def...)
	}
	return append([]int{}, v...)
}

func objectLabel(kind types.ObjectKind, name string) string {
	return fmt.Sprintf("%s %s", kind, name)
}
