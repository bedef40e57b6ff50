package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"snowops/core/record"
	"snowops/core/types"
)

// WarehouseLoad is the concurrency profile of one warehouse over the window.
type WarehouseLoad struct {
	Warehouse       string
	Size            types.Size
	ActiveHours     float64
	PeakConcurrency float64
	AvgConcurrency  float64
	QueuedHours     float64
}

// WarehouseActivity is the last use of one warehouse.
type WarehouseActivity struct {
	Warehouse           string
	Size                types.Size
	LastQueryEnd        *time.Time
	QueryCount          int
	CreditsInWindow     float64
	CreditsSinceLastUse float64
}

// QueryGap is the cadence of queries on one warehouse.
type QueryGap struct {
	Warehouse        string
	QueryCount       int
	MedianGapSeconds float64
	HasGap           bool
	IdleCredits      float64
}

// ScalingProfile is the hourly concurrency shape of one warehouse.
type ScalingProfile struct {
	Warehouse         string
	ActiveHours       float64
	PeakConcurrency   float64
	AvgConcurrency    float64
	BusinessHoursPeak float64
	OffHoursPeak      float64
	QueuedHours       float64
	MaxQueued         float64
}

// CreditPoint is the credit total of one day, for one warehouse or the account.
type CreditPoint struct {
	Warehouse string
	Day       time.Time
	Credits   float64
}

// WarehouseCredits is the credit total of one warehouse.
type WarehouseCredits struct {
	Warehouse string
	Credits   float64
}

// QueryElapsed is the elapsed query time of one subject on one warehouse.
type QueryElapsed struct {
	Warehouse  string
	Subject    string
	QueryCount int
	ElapsedMS  float64
}

// TableScan is one query that referenced a table.
type TableScan struct {
	QueryID           string
	QueryText         string
	PartitionsScanned float64
	PartitionsTotal   float64
}

// TableRef names a table as DATABASE.SCHEMA.TABLE.
type TableRef struct {
	Database string
	Schema   string
	Table    string
}

// ParseTableRef parses a fully qualified, upper-cased table name.
func ParseTableRef(s string) (TableRef, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(s)), ".")
	if len(parts) != 3 {
		return TableRef{}, fmt.Errorf("table %q must be DATABASE.SCHEMA.TABLE", s)
	}
	for _, p := range parts {
		if p == "" {
			return TableRef{}, fmt.Errorf("table %q must be DATABASE.SCHEMA.TABLE", s)
		}
	}
	return TableRef{Database: parts[0], Schema: parts[1], Table: parts[2]}, nil
}

// String returns the dotted name
func (t TableRef) String() string {
	return t.Database + "." + t.Schema + "." + t.Table
}

// TableInfo is the catalog entry of a table.
type TableInfo struct {
	Rows          float64
	Bytes         float64
	ClusteringKey string
}

// SlowQuery is one query over the slow cutoff.
type SlowQuery struct {
	QueryID            string
	QueryText          string
	User               string
	Warehouse          string
	Size               string
	TotalSeconds       float64
	CompilationSeconds float64
	QueuedSeconds      float64
	BlockedSeconds     float64
	BytesScanned       float64
	LocalSpillBytes    float64
	RemoteSpillBytes   float64
	PartitionsScanned  float64
	PartitionsTotal    float64
}

// PrivilegeGrant is one high-risk grant to a role.
type PrivilegeGrant struct {
	Role      string
	Privilege string
	GrantedOn string
	Object    string
}

// InactiveUser is an enabled user without a recent login.
type InactiveUser struct {
	User         string
	LastLogin    *time.Time
	DaysInactive int
}

// RoleUsage is the activity of one role over the window.
type RoleUsage struct {
	Role       string
	QueryCount int
	LastUsed   *time.Time
	UserCount  int
}

// WarehouseUsage is the credit and activity summary of one warehouse.
type WarehouseUsage struct {
	Warehouse            string
	Size                 types.Size
	TotalCredits         float64
	ComputeCredits       float64
	CloudServicesCredits float64
	ActiveDays           int
	ActiveHours          int
	QueryCount           int
	FirstUsage           *time.Time
	LastUsage            *time.Time
}

// TaggedResource is one taggable object with the tags set on it. Tag names
// are upper-cased without their database and schema.
type TaggedResource struct {
	Kind  string
	Name  string
	Owner string
	Tags  map[string]string
}

func optionalTime(r record.Record, column string) *time.Time {
	if t, ok := r.Time(column); ok {
		return &t
	}
	return nil
}

func parseSize(r record.Record, column string) types.Size {
	size, err := types.ParseSize(r.String(column))
	if err != nil {
		return ""
	}
	return size
}

// WarehouseLoad reads the right-sizing input.
func (r *Reader) WarehouseLoad(ctx context.Context, f Filter) ([]WarehouseLoad, error) {
	recs, err := r.run(ctx, QueryWarehouseLoad, f.Days, f.warehouseArg(), f.Days)
	if err != nil {
		return nil, err
	}

	out := make([]WarehouseLoad, 0, len(recs))
	for _, rec := range recs {
		out = append(out, WarehouseLoad{
			Warehouse:       rec.String("warehouse_name"),
			Size:            parseSize(rec, "warehouse_size"),
			ActiveHours:     rec.FloatOr("active_hours", 0),
			PeakConcurrency: rec.FloatOr("peak_concurrency", 0),
			AvgConcurrency:  rec.FloatOr("avg_concurrency", 0),
			QueuedHours:     rec.FloatOr("queued_hours", 0),
		})
	}
	return out, nil
}

// WarehouseActivity reads the idle-detection input.
func (r *Reader) WarehouseActivity(ctx context.Context, f Filter) ([]WarehouseActivity, error) {
	recs, err := r.run(ctx, QueryWarehouseActivity, f.Days, f.warehouseArg(), f.Days, f.warehouseArg())
	if err != nil {
		return nil, err
	}

	out := make([]WarehouseActivity, 0, len(recs))
	for _, rec := range recs {
		count, _ := rec.Int("query_count")
		out = append(out, WarehouseActivity{
			Warehouse:           rec.String("warehouse_name"),
			Size:                parseSize(rec, "warehouse_size"),
			LastQueryEnd:        optionalTime(rec, "last_query_end"),
			QueryCount:          count,
			CreditsInWindow:     rec.FloatOr("credits_in_window", 0),
			CreditsSinceLastUse: rec.FloatOr("credits_since_last_use", 0),
		})
	}
	return out, nil
}

// QueryGaps reads the auto-suspend tuning input.
func (r *Reader) QueryGaps(ctx context.Context, f Filter) ([]QueryGap, error) {
	recs, err := r.run(ctx, QueryQueryGaps, f.Days, f.warehouseArg(), f.Days)
	if err != nil {
		return nil, err
	}

	out := make([]QueryGap, 0, len(recs))
	for _, rec := range recs {
		count, _ := rec.Int("query_count")
		gap, ok := rec.Float("median_gap_seconds")
		out = append(out, QueryGap{
			Warehouse:        rec.String("warehouse_name"),
			QueryCount:       count,
			MedianGapSeconds: gap,
			HasGap:           ok,
			IdleCredits:      rec.FloatOr("idle_credits", 0),
		})
	}
	return out, nil
}

// ScalingProfile reads the multi-cluster scaling input.
func (r *Reader) ScalingProfile(ctx context.Context, f Filter) ([]ScalingProfile, error) {
	recs, err := r.run(ctx, QueryScalingProfile, f.Days, f.warehouseArg())
	if err != nil {
		return nil, err
	}

	out := make([]ScalingProfile, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ScalingProfile{
			Warehouse:         rec.String("warehouse_name"),
			ActiveHours:       rec.FloatOr("active_hours", 0),
			PeakConcurrency:   rec.FloatOr("peak_concurrency", 0),
			AvgConcurrency:    rec.FloatOr("avg_concurrency", 0),
			BusinessHoursPeak: rec.FloatOr("business_hours_peak", 0),
			OffHoursPeak:      rec.FloatOr("off_hours_peak", 0),
			QueuedHours:       rec.FloatOr("queued_hours", 0),
			MaxQueued:         rec.FloatOr("max_queued", 0),
		})
	}
	return out, nil
}

// CreditHistory reads daily credits per warehouse.
func (r *Reader) CreditHistory(ctx context.Context, f Filter) ([]CreditPoint, error) {
	recs, err := r.run(ctx, QueryCreditHistory, f.Days, f.warehouseArg())
	if err != nil {
		return nil, err
	}
	return creditPoints(recs), nil
}

// DailyCredits reads account-wide daily credits.
func (r *Reader) DailyCredits(ctx context.Context, f Filter) ([]CreditPoint, error) {
	recs, err := r.run(ctx, QueryDailyCredits, f.Days)
	if err != nil {
		return nil, err
	}
	return creditPoints(recs), nil
}

func creditPoints(recs []record.Record) []CreditPoint {
	out := make([]CreditPoint, 0, len(recs))
	for _, rec := range recs {
		day, _ := rec.Time("day")
		out = append(out, CreditPoint{
			Warehouse: rec.String("warehouse_name"),
			Day:       day,
			Credits:   rec.FloatOr("credits", 0),
		})
	}
	return out
}

// WarehouseCredits reads total credits per warehouse.
func (r *Reader) WarehouseCredits(ctx context.Context, f Filter) ([]WarehouseCredits, error) {
	recs, err := r.run(ctx, QueryWarehouseCredits, f.Days, f.warehouseArg())
	if err != nil {
		return nil, err
	}

	out := make([]WarehouseCredits, 0, len(recs))
	for _, rec := range recs {
		out = append(out, WarehouseCredits{
			Warehouse: rec.String("warehouse_name"),
			Credits:   rec.FloatOr("credits", 0),
		})
	}
	return out, nil
}

// QueryElapsed reads elapsed time grouped by user, role or database.
func (r *Reader) QueryElapsed(ctx context.Context, f Filter, groupBy string) ([]QueryElapsed, error) {
	column, ok := subjectColumns[strings.ToLower(groupBy)]
	if !ok {
		return nil, fmt.Errorf("unknown attribution subject %q: use user, role or database", groupBy)
	}

	recs, err := r.run(ctx, QueryElapsedBy(column), f.Days, f.warehouseArg())
	if err != nil {
		return nil, err
	}

	out := make([]QueryElapsed, 0, len(recs))
	for _, rec := range recs {
		count, _ := rec.Int("query_count")
		out = append(out, QueryElapsed{
			Warehouse:  rec.String("warehouse_name"),
			Subject:    rec.String("subject"),
			QueryCount: count,
			ElapsedMS:  rec.FloatOr("elapsed_ms", 0),
		})
	}
	return out, nil
}

// TableScans reads recent queries mentioning the table name.
func (r *Reader) TableScans(ctx context.Context, days int, table TableRef) ([]TableScan, error) {
	recs, err := r.run(ctx, QueryTableScans, days, "%"+table.Table+"%")
	if err != nil {
		return nil, err
	}

	out := make([]TableScan, 0, len(recs))
	for _, rec := range recs {
		out = append(out, TableScan{
			QueryID:           rec.String("query_id"),
			QueryText:         rec.String("query_text"),
			PartitionsScanned: rec.FloatOr("partitions_scanned", 0),
			PartitionsTotal:   rec.FloatOr("partitions_total", 0),
		})
	}
	return out, nil
}

// TableColumns reads the column names of a table.
func (r *Reader) TableColumns(ctx context.Context, table TableRef) ([]string, error) {
	recs, err := r.run(ctx, QueryTableColumns, table.Database, table.Schema, table.Table)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, strings.ToUpper(rec.String("column_name")))
	}
	return out, nil
}

// TableInfo reads row count and current clustering of a table.
func (r *Reader) TableInfo(ctx context.Context, table TableRef) (*TableInfo, error) {
	recs, err := r.run(ctx, QueryTableSize, table.Database, table.Schema, table.Table)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &TableInfo{
		Rows:          recs[0].FloatOr("row_count", 0),
		Bytes:         recs[0].FloatOr("bytes", 0),
		ClusteringKey: recs[0].String("clustering_key"),
	}, nil
}

// SlowQueries reads queries slower than minSeconds.
func (r *Reader) SlowQueries(ctx context.Context, f Filter, minSeconds float64) ([]SlowQuery, error) {
	recs, err := r.run(ctx, QuerySlowQueries, f.Days, minSeconds, f.warehouseArg())
	if err != nil {
		return nil, err
	}

	out := make([]SlowQuery, 0, len(recs))
	for _, rec := range recs {
		out = append(out, SlowQuery{
			QueryID:            rec.String("query_id"),
			QueryText:          rec.String("query_text"),
			User:               rec.String("user_name"),
			Warehouse:          rec.String("warehouse_name"),
			Size:               rec.String("warehouse_size"),
			TotalSeconds:       rec.FloatOr("total_seconds", 0),
			CompilationSeconds: rec.FloatOr("compilation_seconds", 0),
			QueuedSeconds:      rec.FloatOr("queued_seconds", 0),
			BlockedSeconds:     rec.FloatOr("blocked_seconds", 0),
			BytesScanned:       rec.FloatOr("bytes_scanned", 0),
			LocalSpillBytes:    rec.FloatOr("bytes_spilled_to_local_storage", 0),
			RemoteSpillBytes:   rec.FloatOr("bytes_spilled_to_remote_storage", 0),
			PartitionsScanned:  rec.FloatOr("partitions_scanned", 0),
			PartitionsTotal:    rec.FloatOr("partitions_total", 0),
		})
	}
	return out, nil
}

// QueryInfo reads one query record; nil when the id is unknown or not yet visible.
func (r *Reader) QueryInfo(ctx context.Context, queryID string) (*types.QueryRecord, error) {
	recs, err := r.run(ctx, QueryQueryInfo, queryID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	rec := recs[0]
	start, _ := rec.Time("start_time")
	end, _ := rec.Time("end_time")
	return &types.QueryRecord{
		ID:                rec.String("query_id"),
		Warehouse:         rec.String("warehouse_name"),
		User:              rec.String("user_name"),
		Role:              rec.String("role_name"),
		Database:          rec.String("database_name"),
		QueryText:         rec.String("query_text"),
		ElapsedMS:         rec.FloatOr("total_elapsed_time", 0),
		BytesScanned:      rec.FloatOr("bytes_scanned", 0),
		PartitionsScanned: rec.FloatOr("partitions_scanned", 0),
		PartitionsTotal:   rec.FloatOr("partitions_total", 0),
		CreditsUsed:       rec.FloatOr("credits_used_cloud_services", 0),
		StartTime:         start,
		EndTime:           end,
	}, nil
}

// ExplainPlan returns the raw JSON plan of a statement.
func (r *Reader) ExplainPlan(ctx context.Context, statement string) (string, error) {
	recs, err := r.run(ctx, QueryExplainPlan, statement)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", nil
	}
	return recs[0].String("plan"), nil
}

// PrivilegedRoles reads high-risk grants.
func (r *Reader) PrivilegedRoles(ctx context.Context) ([]PrivilegeGrant, error) {
	recs, err := r.run(ctx, QueryPrivilegedRoles)
	if err != nil {
		return nil, err
	}

	out := make([]PrivilegeGrant, 0, len(recs))
	for _, rec := range recs {
		out = append(out, PrivilegeGrant{
			Role:      rec.String("role_name"),
			Privilege: rec.String("privilege"),
			GrantedOn: rec.String("granted_on"),
			Object:    rec.String("object_name"),
		})
	}
	return out, nil
}

// InactiveUsers reads users without a login in inactiveDays.
func (r *Reader) InactiveUsers(ctx context.Context, inactiveDays int) ([]InactiveUser, error) {
	recs, err := r.run(ctx, QueryInactiveUsers, inactiveDays)
	if err != nil {
		return nil, err
	}

	out := make([]InactiveUser, 0, len(recs))
	for _, rec := range recs {
		days, _ := rec.Int("days_inactive")
		out = append(out, InactiveUser{
			User:         rec.String("user_name"),
			LastLogin:    optionalTime(rec, "last_login"),
			DaysInactive: days,
		})
	}
	return out, nil
}

// RoleUsage reads per-role activity.
func (r *Reader) RoleUsage(ctx context.Context, days int) ([]RoleUsage, error) {
	recs, err := r.run(ctx, QueryRoleUsage, days)
	if err != nil {
		return nil, err
	}

	out := make([]RoleUsage, 0, len(recs))
	for _, rec := range recs {
		queries, _ := rec.Int("query_count")
		users, _ := rec.Int("user_count")
		out = append(out, RoleUsage{
			Role:       rec.String("role_name"),
			QueryCount: queries,
			LastUsed:   optionalTime(rec, "last_used"),
			UserCount:  users,
		})
	}
	return out, nil
}

// WarehouseUsage reads the cost and utilization report input.
func (r *Reader) WarehouseUsage(ctx context.Context, f Filter) ([]WarehouseUsage, error) {
	recs, err := r.run(ctx, QueryWarehouseUsage, f.Days, f.warehouseArg(), f.Days)
	if err != nil {
		return nil, err
	}

	out := make([]WarehouseUsage, 0, len(recs))
	for _, rec := range recs {
		days, _ := rec.Int("active_days")
		hours, _ := rec.Int("active_hours")
		queries, _ := rec.Int("query_count")
		out = append(out, WarehouseUsage{
			Warehouse:            rec.String("warehouse_name"),
			Size:                 parseSize(rec, "warehouse_size"),
			TotalCredits:         rec.FloatOr("total_credits", 0),
			ComputeCredits:       rec.FloatOr("compute_credits", 0),
			CloudServicesCredits: rec.FloatOr("cloud_services_credits", 0),
			ActiveDays:           days,
			ActiveHours:          hours,
			QueryCount:           queries,
			FirstUsage:           optionalTime(rec, "first_usage"),
			LastUsage:            optionalTime(rec, "last_usage"),
		})
	}
	return out, nil
}

// TaggedResources reads objects of one kind with their current tags.
// Warehouses are those that ran a query in the last days.
func (r *Reader) TaggedResources(ctx context.Context, kind string, days int) ([]TaggedResource, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	query, ok := taggedResourceQueries[kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q: use %s", kind, strings.Join(TaggedResourceKinds, ", "))
	}

	var args []interface{}
	if kind == "warehouse" {
		args = append(args, days)
	}
	recs, err := r.run(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// one row per tag; rows of a resource arrive together
	var out []TaggedResource
	index := make(map[string]int)
	for _, rec := range recs {
		name := rec.String("resource_name")
		i, seen := index[name]
		if !seen {
			i = len(out)
			index[name] = i
			out = append(out, TaggedResource{Kind: strings.ToUpper(kind), Name: name, Owner: rec.String("owner")})
		}
		tag := rec.String("tag_name")
		if tag == "" {
			continue
		}
		if dot := strings.LastIndex(tag, "."); dot >= 0 {
			tag = tag[dot+1:]
		}
		if out[i].Tags == nil {
			out[i].Tags = make(map[string]string)
		}
		out[i].Tags[strings.ToUpper(tag)] = rec.String("tag_value")
	}
	return out, nil
}
