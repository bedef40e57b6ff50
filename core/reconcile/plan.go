package reconcile

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"snowops/core/types"
)

// Action is the kind of change applied to one object
type Action int

const (
	ActionCreate Action = iota // Object does not exist
	ActionAlter                // Object exists with differing attributes
)

// String returns the action name
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionAlter:
		return "alter"
	default:
		return "unknown"
	}
}

// Attribute names as declared
const (
	AttrComment          = "comment"
	AttrSize             = "size"
	AttrMinClusterCount  = "min_cluster_count"
	AttrMaxClusterCount  = "max_cluster_count"
	AttrScalingPolicy    = "scaling_policy"
	AttrAutoSuspend      = "auto_suspend"
	AttrAutoResume       = "auto_resume"
	AttrResourceMonitor  = "resource_monitor"
	AttrStatementTimeout = "statement_timeout"
	AttrQueuedTimeout    = "queued_timeout"

	AttrCreditQuota      = "credit_quota"
	AttrFrequency        = "frequency"
	AttrStartTimestamp   = "start_timestamp"
	AttrEndTimestamp     = "end_timestamp"
	AttrNotifyTriggers   = "notify_triggers"
	AttrSuspendTriggers  = "suspend_triggers"
	AttrSuspendImmediate = "suspend_immediate_triggers"
	AttrNotifyUsers      = "notify_users"

	// TagPrefix prefixes tag attributes, e.g. "tag.GOVERNANCE.TAGS.COST_CENTER"
	TagPrefix = "tag."
)

// AttributeChange is one attribute moving from its live to its declared value.
type AttributeChange struct {
	Name string
	From string
	To   string
}

// ObjectChange is the change to one object. Warehouse or Monitor carries the
// fully resolved declared object.
type ObjectChange struct {
	Kind       types.ObjectKind
	Name       string
	Action     Action
	Attributes []AttributeChange

	Warehouse *types.Warehouse
	Monitor   *types.ResourceMonitor
}

// Label identifies the object in messages
func (c ObjectChange) Label() string {
	return objectLabel(c.Kind, c.Name)
}

// Changed reports whether the named attribute is part of the change
func (c ObjectChange) Changed(name string) bool {
	for _, a := range c.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Plan is the ordered set of changes for a desired state: monitors first,
// then warehouses, each in declaration order.
type Plan struct {
	Changes []ObjectChange
	Outputs Outputs
}

// Empty reports whether live state already matches
func (p *Plan) Empty() bool {
	return p == nil || len(p.Changes) == 0
}

// Counts returns the number of creates and alters
func (p *Plan) Counts() (creates, alters int) {
	if p == nil {
		return 0, 0
	}
	for _, c := range p.Changes {
		if c.Action == ActionCreate {
			creates++
		} else {
			alters++
		}
	}
	return creates, alters
}

// Platform reads live state and applies single object changes.
type Platform interface {
	Warehouses(ctx context.Context) ([]types.Warehouse, error)
	ResourceMonitors(ctx context.Context) ([]types.ResourceMonitor, error)
	Apply(ctx context.Context, change ObjectChange) error
}

func diffWarehouse(spec WarehouseSpec, want types.Warehouse, live *types.Warehouse) ObjectChange {
	change := ObjectChange{Kind: types.KindWarehouse, Name: want.Name, Warehouse: &want}
	if live == nil {
		change.Action = ActionCreate
		live = &types.Warehouse{}
	} else {
		change.Action = ActionAlter
	}

	add := func(name, from, to string) {
		if change.Action == ActionCreate {
			change.Attributes = append(change.Attributes, AttributeChange{Name: name, To: to})
		} else if from != to {
			change.Attributes = append(change.Attributes, AttributeChange{Name: name, From: from, To: to})
		}
	}

	if spec.Comment != nil {
		add(AttrComment, live.Comment, want.Comment)
	}
	add(AttrSize, string(live.Size), string(want.Size))
	add(AttrMinClusterCount, itoa(live.MinClusterCount), itoa(want.MinClusterCount))
	add(AttrMaxClusterCount, itoa(live.MaxClusterCount), itoa(want.MaxClusterCount))
	add(AttrScalingPolicy, string(live.ScalingPolicy), string(want.ScalingPolicy))
	add(AttrAutoSuspend, itoa(live.AutoSuspend), itoa(want.AutoSuspend))
	add(AttrAutoResume, strconv.FormatBool(live.AutoResume), strconv.FormatBool(want.AutoResume))
	if spec.ResourceMonitor != nil {
		add(AttrResourceMonitor, live.ResourceMonitor, want.ResourceMonitor)
	}
	add(AttrStatementTimeout, itoa(live.StatementTimeout), itoa(want.StatementTimeout))
	add(AttrQueuedTimeout, itoa(live.QueuedTimeout), itoa(want.QueuedTimeout))

	for _, key := range types.SortedTagKeys(want.Tags) {
		add(TagPrefix+key, live.Tags[key], want.Tags[key])
	}
	return change
}

func diffMonitor(spec ResourceMonitorSpec, want types.ResourceMonitor, live *types.ResourceMonitor) ObjectChange {
	change := ObjectChange{Kind: types.KindResourceMonitor, Name: want.Name, Monitor: &want}
	if live == nil {
		change.Action = ActionCreate
		live = &types.ResourceMonitor{}
	} else {
		change.Action = ActionAlter
	}

	add := func(name, from, to string) {
		if change.Action == ActionCreate {
			change.Attributes = append(change.Attributes, AttributeChange{Name: name, To: to})
		} else if from != to {
			change.Attributes = append(change.Attributes, AttributeChange{Name: name, From: from, To: to})
		}
	}

	add(AttrCreditQuota, formatQuota(live.CreditQuota), formatQuota(want.CreditQuota))
	add(AttrFrequency, string(live.Frequency), string(want.Frequency))

	// only declared timestamps are compared; IMMEDIATELY matches whatever
	// start the platform recorded
	if change.Action == ActionCreate || (spec.StartTimestamp != nil && !IsImmediate(want.StartTimestamp)) {
		add(AttrStartTimestamp, NormalizeTimestamp(live.StartTimestamp), want.StartTimestamp)
	}
	if spec.EndTimestamp != nil {
		add(AttrEndTimestamp, NormalizeTimestamp(live.EndTimestamp), want.EndTimestamp)
	}

	add(AttrNotifyTriggers, FormatTriggers(live.NotifyTriggers), FormatTriggers(want.NotifyTriggers))
	add(AttrSuspendTriggers, FormatTriggers(live.SuspendTriggers), FormatTriggers(want.SuspendTriggers))
	add(AttrSuspendImmediate, FormatTriggers(live.SuspendImmediateTriggers), FormatTriggers(want.SuspendImmediateTriggers))
	if spec.NotifyUsers != nil {
		add(AttrNotifyUsers, FormatUsers(live.NotifyUsers), FormatUsers(want.NotifyUsers))
	}
	return change
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

// formatQuota drops float noise so 1000 and 1000.0000000001 compare equal
func formatQuota(q float64) string {
	return strconv.FormatFloat(math.Round(q*1e6)/1e6, 'f', -1, 64)
}

// FormatTriggers renders percentages as "80%,90%", sorted ascending.
func FormatTriggers(t []int) string {
	sorted := append([]int(nil), t...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = fmt.Sprintf("%d%%", p)
	}
	return strings.Join(parts, ",")
}
