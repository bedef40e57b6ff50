// Package types - Warehouse and resource monitor objects
package types

import (
	"sort"
	"time"
)

// Warehouse is the fully resolved configuration of a warehouse, as read
// from the platform or as declared with defaults filled in.
type Warehouse struct {
	// Name is the upper-cased identifier
	Name string `json:"name"`

	// Comment is free text
	Comment string `json:"comment,omitempty"`

	// Size is the compute size
	Size Size `json:"size"`

	// MinClusterCount and MaxClusterCount bound multi-cluster scaling
	MinClusterCount int `json:"min_cluster_count"`
	MaxClusterCount int `json:"max_cluster_count"`

	// ScalingPolicy applies when MaxClusterCount > 1
	ScalingPolicy ScalingPolicy `json:"scaling_policy"`

	// AutoSuspend is the idle time in seconds before suspension; 0 disables it
	AutoSuspend int `json:"auto_suspend"`

	// AutoResume resumes the warehouse when a query arrives
	AutoResume bool `json:"auto_resume"`

	// ResourceMonitor is the attached monitor name, empty when none
	ResourceMonitor string `json:"resource_monitor,omitempty"`

	// StatementTimeout is STATEMENT_TIMEOUT_IN_SECONDS
	StatementTimeout int `json:"statement_timeout"`

	// QueuedTimeout is STATEMENT_QUEUED_TIMEOUT_IN_SECONDS
	QueuedTimeout int `json:"queued_timeout"`

	// Tags maps fully-qualified tag names to values
	Tags map[string]string `json:"tags,omitempty"`
}

// ResourceMonitor is a spend-limit policy.
type ResourceMonitor struct {
	Name                     string     `json:"name"`
	CreditQuota              float64    `json:"credit_quota"`
	Frequency                Frequency  `json:"frequency"`
	StartTimestamp           string     `json:"start_timestamp,omitempty"`
	EndTimestamp             string     `json:"end_timestamp,omitempty"`
	NotifyTriggers           []int      `json:"notify_triggers"`
	SuspendTriggers          []int      `json:"suspend_triggers"`
	SuspendImmediateTriggers []int      `json:"suspend_immediate_triggers"`
	NotifyUsers              []string   `json:"notify_users,omitempty"`
	CreatedOn                *time.Time `json:"created_on,omitempty"`
}

// QueryRecord is one row of query history. It is never mutated.
type QueryRecord struct {
	ID                string    `json:"query_id"`
	Warehouse         string    `json:"warehouse_name"`
	User              string    `json:"user_name"`
	Role              string    `json:"role_name"`
	Database          string    `json:"database_name"`
	QueryText         string    `json:"query_text,omitempty"`
	ElapsedMS         float64   `json:"total_elapsed_time"`
	BytesScanned      float64   `json:"bytes_scanned"`
	PartitionsScanned float64   `json:"partitions_scanned"`
	PartitionsTotal   float64   `json:"partitions_total"`
	CreditsUsed       float64   `json:"credits_used_cloud_services"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
}

// Recommendation is a derived, unpersisted proposal for one subject.
type Recommendation struct {
	// Kind is the report that produced it (rightsize, idle, ...)
	Kind string `json:"kind"`

	// Subject names the warehouse, table or role
	Subject string `json:"subject"`

	Current   string `json:"current"`
	Proposed  string `json:"proposed"`
	Rationale string `json:"rationale"`

	// Credits is the estimated credit impact over the window; negative saves
	Credits float64 `json:"credits"`

	Confidence Confidence `json:"confidence"`
}

// SortedTagKeys returns tag names in lexical order for stable output
func SortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
