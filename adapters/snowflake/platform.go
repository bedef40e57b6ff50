package snowflake

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"snowops/core/reconcile"
	"snowops/core/record"
	"snowops/core/types"
	"snowops/internal/logging"
)

var (
	warehouseNumeric = []string{"MIN_CLUSTER_COUNT", "MAX_CLUSTER_COUNT", "AUTO_SUSPEND"}
	monitorNumeric   = []string{"CREDIT_QUOTA"}
	parameterNumeric = []string{"VALUE"}
)

var _ reconcile.Platform = (*Platform)(nil)

type executor interface {
	Query(ctx context.Context, statement string, numeric []string, args ...interface{}) (*record.Result, error)
	Exec(ctx context.Context, statement string, args ...interface{}) error
}

// Platform reads live warehouse and resource monitor state and applies
// planned changes as DDL.
type Platform struct {
	exec   executor
	logger *zap.Logger
	tags   []string
}

// NewPlatform creates a platform over a session
func NewPlatform(exec executor, logger *zap.Logger) *Platform {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Platform{exec: exec, logger: logger}
}

// TrackTags sets the fully-qualified tag names read for every warehouse.
func (p *Platform) TrackTags(names ...string) {
	seen := make(map[string]bool, len(names))
	p.tags = p.tags[:0]
	for _, n := range names {
		n = reconcile.NormalizeName(n)
		if n != "" && !seen[n] {
			seen[n] = true
			p.tags = append(p.tags, n)
		}
	}
	sort.Strings(p.tags)
}

// Warehouses returns the live warehouses with their timeouts and tracked tags.
func (p *Platform) Warehouses(ctx context.Context) ([]types.Warehouse, error) {
	result, err := p.exec.Query(ctx, "SHOW WAREHOUSES", warehouseNumeric)
	if err != nil {
		return nil, err
	}

	out := make([]types.Warehouse, 0, result.Len())
	for _, r := range result.Records {
		wh := warehouseFromRecord(r)
		if err := p.readParameters(ctx, &wh); err != nil {
			return nil, err
		}
		if err := p.readTags(ctx, &wh); err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	p.logger.Debug("read live warehouses", zap.Int("count", len(out)))
	return out, nil
}

func warehouseFromRecord(r record.Record) types.Warehouse {
	wh := types.Warehouse{
		Name:             reconcile.NormalizeName(r.String("name")),
		Comment:          r.String("comment"),
		MinClusterCount:  1,
		MaxClusterCount:  1,
		ScalingPolicy:    types.ScalingStandard,
		StatementTimeout: types.Defaults.StatementTimeout,
		QueuedTimeout:    types.Defaults.QueuedTimeout,
	}
	if size, err := types.ParseSize(r.String("size")); err == nil {
		wh.Size = size
	}
	if n, ok := r.Int("min_cluster_count"); ok {
		wh.MinClusterCount = n
	}
	if n, ok := r.Int("max_cluster_count"); ok {
		wh.MaxClusterCount = n
	}
	if policy, err := types.ParseScalingPolicy(r.String("scaling_policy")); err == nil {
		wh.ScalingPolicy = policy
	}
	if n, ok := r.Int("auto_suspend"); ok {
		wh.AutoSuspend = n
	}
	wh.AutoResume, _ = r.Bool("auto_resume")
	wh.ResourceMonitor = nullable(r.String("resource_monitor"))
	return wh
}

func (p *Platform) readParameters(ctx context.Context, wh *types.Warehouse) error {
	stmt := "SHOW PARAMETERS LIKE 'STATEMENT%' IN WAREHOUSE " + reconcile.QuoteIdentifier(wh.Name)
	result, err := p.exec.Query(ctx, stmt, parameterNumeric)
	if err != nil {
		return fmt.Errorf("read parameters of %s: %w", wh.Name, err)
	}
	for _, r := range result.Records {
		v, ok := r.Int("value")
		if !ok {
			continue
		}
		switch strings.ToUpper(r.String("key")) {
		case "STATEMENT_TIMEOUT_IN_SECONDS":
			wh.StatementTimeout = v
		case "STATEMENT_QUEUED_TIMEOUT_IN_SECONDS":
			wh.QueuedTimeout = v
		}
	}
	return nil
}

func (p *Platform) readTags(ctx context.Context, wh *types.Warehouse) error {
	for _, tag := range p.tags {
		result, err := p.exec.Query(ctx, "SELECT SYSTEM$GET_TAG(?, ?, 'warehouse') AS TAG_VALUE", nil, tag, wh.Name)
		if err != nil {
			return fmt.Errorf("read tag %s of %s: %w", tag, wh.Name, err)
		}
		if result.Empty() || !result.Records[0].Has("TAG_VALUE") {
			continue
		}
		if wh.Tags == nil {
			wh.Tags = make(map[string]string)
		}
		wh.Tags[tag] = result.Records[0].String("TAG_VALUE")
	}
	return nil
}

// ResourceMonitors returns the live resource monitors.
func (p *Platform) ResourceMonitors(ctx context.Context) ([]types.ResourceMonitor, error) {
	result, err := p.exec.Query(ctx, "SHOW RESOURCE MONITORS", monitorNumeric)
	if err != nil {
		return nil, err
	}

	out := make([]types.ResourceMonitor, 0, result.Len())
	for _, r := range result.Records {
		rm := types.ResourceMonitor{
			Name:                     reconcile.NormalizeName(r.String("name")),
			CreditQuota:              r.FloatOr("credit_quota", 0),
			NotifyTriggers:           parseTriggers(r.String("notify_at")),
			SuspendTriggers:          parseTriggers(r.String("suspend_at")),
			SuspendImmediateTriggers: parseTriggers(r.String("suspend_immediately_at")),
			NotifyUsers:              parseUsers(r.String("notify_users")),
		}
		if freq, err := types.ParseFrequency(r.String("frequency")); err == nil {
			rm.Frequency = freq
		}
		if t, ok := r.Time("start_time"); ok {
			rm.StartTimestamp = t.UTC().Format(reconcile.TimestampLayout)
		}
		if t, ok := r.Time("end_time"); ok {
			rm.EndTimestamp = t.UTC().Format(reconcile.TimestampLayout)
		}
		if t, ok := r.Time("created_on"); ok {
			rm.CreatedOn = &t
		}
		out = append(out, rm)
	}
	p.logger.Debug("read live resource monitors", zap.Int("count", len(out)))
	return out, nil
}

// Apply executes the DDL for one change, statement by statement.
func (p *Platform) Apply(ctx context.Context, change reconcile.ObjectChange) error {
	statements, err := Statements(change)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		p.logger.Info("executing DDL", zap.String("object", change.Label()), logging.Statement(stmt))
		if err := p.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// parseTriggers reads "80%,90%" as [80 90]
func parseTriggers(s string) []int {
	s = nullable(s)
	if s == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSuffix(strings.TrimSpace(part), "%")
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func parseUsers(s string) []string {
	s = strings.Trim(nullable(s), "[] ")
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if u := strings.Trim(part, `"' `); u != "" {
			out = append(out, reconcile.NormalizeName(u))
		}
	}
	return out
}

// SHOW output spells missing values as "null"
func nullable(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") {
		return ""
	}
	return s
}
