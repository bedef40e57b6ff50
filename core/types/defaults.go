// Package types - Shared defaults
package types

// DefaultTable holds the values applied to unset optional attributes.
// Reconciliation, the declarative loaders and the reports all read Defaults.
type DefaultTable struct {
	AutoSuspend      int
	AutoResume       bool
	ScalingPolicy    ScalingPolicy
	MinClusterCount  int
	MaxClusterCount  int
	StatementTimeout int
	QueuedTimeout    int

	MonitorFrequency         Frequency
	StartTimestamp           string
	NotifyTriggers           []int
	SuspendTriggers          []int
	SuspendImmediateTriggers []int
}

// Defaults is the single defaults table
var Defaults = DefaultTable{
	AutoSuspend:      300,
	AutoResume:       true,
	ScalingPolicy:    ScalingStandard,
	MinClusterCount:  1,
	MaxClusterCount:  1,
	StatementTimeout: 3600,
	QueuedTimeout:    0,

	MonitorFrequency:         FrequencyMonthly,
	StartTimestamp:           "IMMEDIATELY",
	NotifyTriggers:           []int{80},
	SuspendTriggers:          []int{100},
	SuspendImmediateTriggers: []int{110},
}

// Platform limits checked before apply
const (
	MaxClusterLimit   = 10
	MinTriggerPercent = 1
	MaxTriggerPercent = 1000
)
