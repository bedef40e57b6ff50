package reconcile

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowops/core/types"
	"snowops/internal/errors"
)

// memoryPlatform keeps live state in memory and applies only the attributes
// named in each change.
type memoryPlatform struct {
	warehouses map[string]types.Warehouse
	monitors   map[string]types.ResourceMonitor
	failOn     map[string]error
	reads      int
	applied    []string
}

func newMemoryPlatform() *memoryPlatform {
	return &memoryPlatform{
		warehouses: map[string]types.Warehouse{},
		monitors:   map[string]types.ResourceMonitor{},
		failOn:     map[string]error{},
	}
}

func (p *memoryPlatform) Warehouses(context.Context) ([]types.Warehouse, error) {
	p.reads++
	var out []types.Warehouse
	for _, name := range sortedNames(p.warehouses) {
		out = append(out, p.warehouses[name])
	}
	return out, nil
}

func (p *memoryPlatform) ResourceMonitors(context.Context) ([]types.ResourceMonitor, error) {
	p.reads++
	var out []types.ResourceMonitor
	for _, name := range sortedNames(p.monitors) {
		out = append(out, p.monitors[name])
	}
	return out, nil
}

func (p *memoryPlatform) Apply(_ context.Context, change ObjectChange) error {
	if err := p.failOn[change.Label()]; err != nil {
		return err
	}
	p.applied = append(p.applied, change.Label())

	switch change.Kind {
	case types.KindWarehouse:
		live := p.warehouses[change.Name]
		want := change.Warehouse
		live.Name = want.Name
		for _, a := range change.Attributes {
			switch {
			case a.Name == AttrComment:
				live.Comment = want.Comment
			case a.Name == AttrSize:
				live.Size = want.Size
			case a.Name == AttrMinClusterCount:
				live.MinClusterCount = want.MinClusterCount
			case a.Name == AttrMaxClusterCount:
				live.MaxClusterCount = want.MaxClusterCount
			case a.Name == AttrScalingPolicy:
				live.ScalingPolicy = want.ScalingPolicy
			case a.Name == AttrAutoSuspend:
				live.AutoSuspend = want.AutoSuspend
			case a.Name == AttrAutoResume:
				live.AutoResume = want.AutoResume
			case a.Name == AttrResourceMonitor:
				live.ResourceMonitor = want.ResourceMonitor
			case a.Name == AttrStatementTimeout:
				live.StatementTimeout = want.StatementTimeout
			case a.Name == AttrQueuedTimeout:
				live.QueuedTimeout = want.QueuedTimeout
			case strings.HasPrefix(a.Name, TagPrefix):
				if live.Tags == nil {
					live.Tags = map[string]string{}
				}
				key := strings.TrimPrefix(a.Name, TagPrefix)
				live.Tags[key] = want.Tags[key]
			}
		}
		p.warehouses[change.Name] = live
	case types.KindResourceMonitor:
		live := p.monitors[change.Name]
		want := change.Monitor
		live.Name = want.Name
		for _, a := range change.Attributes {
			switch a.Name {
			case AttrCreditQuota:
				live.CreditQuota = want.CreditQuota
			case AttrFrequency:
				live.Frequency = want.Frequency
			case AttrStartTimestamp:
				live.StartTimestamp = want.StartTimestamp
			case AttrEndTimestamp:
				live.EndTimestamp = want.EndTimestamp
			case AttrNotifyTriggers:
				live.NotifyTriggers = want.NotifyTriggers
			case AttrSuspendTriggers:
				live.SuspendTriggers = want.SuspendTriggers
			case AttrSuspendImmediate:
				live.SuspendImmediateTriggers = want.SuspendImmediateTriggers
			case AttrNotifyUsers:
				live.NotifyUsers = want.NotifyUsers
			}
		}
		p.monitors[change.Name] = live
	}
	return nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func ptr[T any](v T) *T { return &v }

func defaultWarehouse(name string, size types.Size) types.Warehouse {
	return types.Warehouse{
		Name:             name,
		Size:             size,
		MinClusterCount:  1,
		MaxClusterCount:  1,
		ScalingPolicy:    types.ScalingStandard,
		AutoSuspend:      300,
		AutoResume:       true,
		StatementTimeout: 3600,
	}
}

func TestPlanSingleSizeChange(t *testing.T) {
	platform := newMemoryPlatform()
	platform.warehouses["ANALYTICS_WH"] = defaultWarehouse("ANALYTICS_WH", types.SizeMedium)

	desired := DesiredState{Warehouses: []WarehouseSpec{{
		Name:            "ANALYTICS_WH",
		Size:            "LARGE",
		MinClusterCount: ptr(1),
		MaxClusterCount: ptr(1),
	}}}

	plan, err := NewReconciler(platform, nil).Plan(context.Background(), desired)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)

	change := plan.Changes[0]
	assert.Equal(t, ActionAlter, change.Action)
	assert.Equal(t, []AttributeChange{{Name: AttrSize, From: "MEDIUM", To: "LARGE"}}, change.Attributes)
	assert.Equal(t, "warehouse ANALYTICS_WH", change.Label())
}

func TestApplyIsIdempotent(t *testing.T) {
	platform := newMemoryPlatform()
	desired := DesiredState{
		Warehouses: []WarehouseSpec{
			{Name: "etl_wh", Size: "X-Small", ResourceMonitor: ptr("etl_rm"), Comment: ptr("nightly loads"),
				Tags: map[string]string{"governance.tags.cost_center": "data"}},
			{Name: "BI_WH", Size: "MEDIUM", MaxClusterCount: ptr(3), ScalingPolicy: ptr("economy"), AutoResume: ptr(false)},
		},
		Monitors: []ResourceMonitorSpec{
			{Name: "ETL_RM", CreditQuota: 1000, NotifyUsers: []string{"ops"}},
		},
	}
	ctx := context.Background()
	r := NewReconciler(platform, nil)

	plan, err := r.Plan(ctx, desired)
	require.NoError(t, err)
	creates, alters := plan.Counts()
	assert.Equal(t, 3, creates)
	assert.Zero(t, alters)
	assert.Equal(t, types.KindResourceMonitor, plan.Changes[0].Kind, "monitors apply before warehouses")
	assert.Equal(t, "ETL_WH", plan.Changes[1].Name)
	assert.Equal(t, "BI_WH", plan.Changes[2].Name)

	result, err := r.Apply(ctx, plan)
	require.NoError(t, err)
	assert.Len(t, result.Applied, 3)
	assert.Equal(t, `"ETL_WH"`, result.Outputs.WarehouseFQNs["ETL_WH"])
	assert.Equal(t, "BI_WH", result.Outputs.WarehouseIDs["BI_WH"])

	second, err := r.Plan(ctx, desired)
	require.NoError(t, err)
	assert.True(t, second.Empty(), "second plan: %+v", second.Changes)

	_, err = r.Apply(ctx, second)
	require.NoError(t, err)
	assert.Len(t, platform.applied, 3)
}

func TestValidateTriggers(t *testing.T) {
	ok := ResourceMonitorSpec{
		Name:                     "RM",
		CreditQuota:              1000,
		NotifyTriggers:           []int{80},
		SuspendTriggers:          []int{100},
		SuspendImmediateTriggers: []int{110},
	}
	assert.NoError(t, Validate(DesiredState{Monitors: []ResourceMonitorSpec{ok}}))

	bad := ok
	bad.SuspendTriggers = []int{70}
	err := Validate(DesiredState{Monitors: []ResourceMonitorSpec{bad}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeValidation))
	assert.Contains(t, err.Error(), "suspend_triggers: 70% is below notify_triggers 80%")

	noSuspend := ok
	noSuspend.SuspendTriggers = []int{}
	noSuspend.SuspendImmediateTriggers = []int{75}
	err = Validate(DesiredState{Monitors: []ResourceMonitorSpec{noSuspend}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suspend_immediate_triggers: 75% is below notify_triggers 80%")

	outOfRange := ok
	outOfRange.NotifyTriggers = []int{0}
	outOfRange.SuspendImmediateTriggers = []int{1001}
	err = Validate(DesiredState{Monitors: []ResourceMonitorSpec{outOfRange}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0% is outside")
	assert.Contains(t, err.Error(), "1001% is outside")
}

func TestValidationFailureAppliesNothing(t *testing.T) {
	platform := newMemoryPlatform()
	desired := DesiredState{
		Monitors: []ResourceMonitorSpec{{Name: "RM", CreditQuota: 10, SuspendTriggers: []int{70}}},
		Warehouses: []WarehouseSpec{{Name: "WH", Size: "SMALL"}},
	}

	plan, err := NewReconciler(platform, nil).Plan(context.Background(), desired)
	require.Error(t, err)
	assert.Nil(t, plan)
	assert.Equal(t, 2, errors.ExitCode(err))
	assert.Zero(t, platform.reads)
	assert.Empty(t, platform.applied)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	desired := DesiredState{
		Monitors: []ResourceMonitorSpec{
			{Name: "RM", CreditQuota: -1},
			{Name: "rm", Frequency: ptr("hourly")},
		},
		Warehouses: []WarehouseSpec{
			{Name: "A", Size: "HUGE"},
			{Name: "B", Size: "SMALL", MinClusterCount: ptr(3), MaxClusterCount: ptr(2)},
			{Name: "C", Size: "SMALL", MaxClusterCount: ptr(11), AutoSuspend: ptr(-1), StatementTimeout: ptr(-5)},
			{Name: "c", Size: "SMALL", ResourceMonitor: ptr("MISSING")},
			{Size: ""},
		},
	}

	err := Validate(desired)
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"credit_quota must be non-negative",
		"resource_monitor RM: declared more than once",
		`unknown monitor frequency "hourly"`,
		`unknown warehouse size`,
		"min_cluster_count 3 exceeds max_cluster_count 2",
		"max_cluster_count must be 1..10, got 11",
		"auto_suspend must be non-negative",
		"statement_timeout must be non-negative",
		"warehouse C: declared more than once",
		`resource monitor "MISSING" is neither declared nor present`,
		"warehouse #5: name is required",
		"size is required",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestPlanResolvesLiveMonitorReference(t *testing.T) {
	platform := newMemoryPlatform()
	platform.monitors["SHARED_RM"] = types.ResourceMonitor{Name: "SHARED_RM"}
	desired := DesiredState{Warehouses: []WarehouseSpec{{Name: "WH", Size: "SMALL", ResourceMonitor: ptr("shared_rm")}}}

	plan, err := NewReconciler(platform, nil).Plan(context.Background(), desired)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.True(t, plan.Changes[0].Changed(AttrResourceMonitor))

	delete(platform.monitors, "SHARED_RM")
	_, err = NewReconciler(platform, nil).Plan(context.Background(), desired)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeValidation))
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	platform := newMemoryPlatform()
	rejected := stderrors.New("insufficient privileges")
	platform.failOn["warehouse B_WH"] = rejected

	desired := DesiredState{Warehouses: []WarehouseSpec{
		{Name: "A_WH", Size: "SMALL"},
		{Name: "B_WH", Size: "SMALL"},
		{Name: "C_WH", Size: "SMALL"},
	}}
	r := NewReconciler(platform, nil)
	plan, err := r.Plan(context.Background(), desired)
	require.NoError(t, err)

	result, err := r.Apply(context.Background(), plan)
	require.Error(t, err)

	var applyErr *errors.ApplyError
	require.True(t, stderrors.As(err, &applyErr))
	assert.Equal(t, "warehouse B_WH", applyErr.Failed)
	assert.Equal(t, []string{"warehouse A_WH"}, applyErr.Succeeded)
	assert.Equal(t, []string{"warehouse C_WH"}, applyErr.Remaining)
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, errors.ExitCode(err))

	assert.Equal(t, []string{"warehouse A_WH"}, result.Applied)
	assert.Contains(t, platform.warehouses, "A_WH", "earlier changes stay applied")
	assert.NotContains(t, platform.warehouses, "C_WH")
}

func TestApplyCancelledContext(t *testing.T) {
	platform := newMemoryPlatform()
	r := NewReconciler(platform, nil)
	plan, err := r.Plan(context.Background(), DesiredState{Warehouses: []WarehouseSpec{{Name: "WH", Size: "SMALL"}}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Apply(ctx, plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, platform.applied)
}

func TestResolveDefaults(t *testing.T) {
	wh, err := ResolveWarehouse(WarehouseSpec{Name: " dev_wh ", Size: "2X-Large"})
	require.NoError(t, err)
	assert.Equal(t, defaultWarehouse("DEV_WH", types.SizeXXLarge), wh)

	rm, err := ResolveMonitor(ResourceMonitorSpec{Name: "rm", CreditQuota: 5})
	require.NoError(t, err)
	assert.Equal(t, types.FrequencyMonthly, rm.Frequency)
	assert.Equal(t, "IMMEDIATELY", rm.StartTimestamp)
	assert.Equal(t, []int{80}, rm.NotifyTriggers)
	assert.Equal(t, []int{100}, rm.SuspendTriggers)
	assert.Equal(t, []int{110}, rm.SuspendImmediateTriggers)

	rm.NotifyTriggers[0] = 1
	assert.Equal(t, []int{80}, types.Defaults.NotifyTriggers, "defaults table must not be aliased")
}

func TestMonitorAlterOnlyChangedTriggers(t *testing.T) {
	platform := newMemoryPlatform()
	platform.monitors["RM"] = types.ResourceMonitor{
		Name:                     "RM",
		CreditQuota:              1000,
		Frequency:                types.FrequencyMonthly,
		StartTimestamp:           "2024-01-01 00:00",
		NotifyTriggers:           []int{90, 80},
		SuspendTriggers:          []int{100},
		SuspendImmediateTriggers: []int{110},
	}
	desired := DesiredState{Monitors: []ResourceMonitorSpec{{
		Name:            "RM",
		CreditQuota:     1000,
		NotifyTriggers:  []int{80, 90},
		SuspendTriggers: []int{95},
	}}}

	plan, err := NewReconciler(platform, nil).Plan(context.Background(), desired)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, []AttributeChange{{Name: AttrSuspendTriggers, From: "100%", To: "95%"}}, plan.Changes[0].Attributes)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"ANALYTICS_WH"`, QuoteIdentifier("analytics_wh"))
	assert.Equal(t, `"A""B"`, QuoteIdentifier(`a"b`))
}

func TestMonitorTimestampsCompareNormalized(t *testing.T) {
	live := types.ResourceMonitor{
		Name:                     "RM",
		CreditQuota:              500,
		Frequency:                types.FrequencyMonthly,
		StartTimestamp:           "2024-01-01 00:00",
		EndTimestamp:             "2024-12-31 23:59",
		NotifyTriggers:           []int{80},
		SuspendTriggers:          []int{100},
		SuspendImmediateTriggers: []int{110},
	}

	for _, start := range []string{"2024-01-01 00:00:00", "2024-01-01T00:00:00Z", "2024-01-01", "immediately", "IMMEDIATELY"} {
		t.Run(start, func(t *testing.T) {
			platform := newMemoryPlatform()
			platform.monitors["RM"] = live
			desired := DesiredState{Monitors: []ResourceMonitorSpec{{
				Name:           "RM",
				CreditQuota:    500,
				StartTimestamp: ptr(start),
				EndTimestamp:   ptr("2024-12-31T23:59:00Z"),
			}}}

			plan, err := NewReconciler(platform, nil).Plan(context.Background(), desired)
			require.NoError(t, err)
			assert.True(t, plan.Empty(), "changes: %+v", plan.Changes)
		})
	}

	platform := newMemoryPlatform()
	platform.monitors["RM"] = live
	moved := DesiredState{Monitors: []ResourceMonitorSpec{{Name: "RM", CreditQuota: 500, StartTimestamp: ptr("2024-02-01 08:30:00")}}}
	plan, err := NewReconciler(platform, nil).Plan(context.Background(), moved)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, []AttributeChange{{Name: AttrStartTimestamp, From: "2024-01-01 00:00", To: "2024-02-01 08:30"}}, plan.Changes[0].Attributes)
}

func TestNotifyUsersCompareAsSet(t *testing.T) {
	platform := newMemoryPlatform()
	platform.monitors["RM"] = types.ResourceMonitor{
		Name:                     "RM",
		CreditQuota:              500,
		Frequency:                types.FrequencyMonthly,
		NotifyTriggers:           []int{80},
		SuspendTriggers:          []int{100},
		SuspendImmediateTriggers: []int{110},
		NotifyUsers:              []string{"FINANCE", "OPS"},
	}
	r := NewReconciler(platform, nil)

	plan, err := r.Plan(context.Background(), DesiredState{Monitors: []ResourceMonitorSpec{{
		Name: "RM", CreditQuota: 500, NotifyUsers: []string{"ops", "finance"},
	}}})
	require.NoError(t, err)
	assert.True(t, plan.Empty(), "changes: %+v", plan.Changes)

	plan, err = r.Plan(context.Background(), DesiredState{Monitors: []ResourceMonitorSpec{{
		Name: "RM", CreditQuota: 500, NotifyUsers: []string{"ops"},
	}}})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, []AttributeChange{{Name: AttrNotifyUsers, From: "FINANCE,OPS", To: "OPS"}}, plan.Changes[0].Attributes)
}

func TestValidateTimestampsAndDuplicateTriggers(t *testing.T) {
	err := Validate(DesiredState{Monitors: []ResourceMonitorSpec{{
		Name:           "RM",
		CreditQuota:    100,
		StartTimestamp: ptr("next tuesday"),
		EndTimestamp:   ptr("never"),
		NotifyTriggers: []int{80, 80},
	}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `start_timestamp "next tuesday" is neither IMMEDIATELY nor a timestamp`)
	assert.Contains(t, err.Error(), `end_timestamp "never" is not a timestamp`)
	assert.Contains(t, err.Error(), "notify_triggers: 80% is listed more than once")

	assert.NoError(t, Validate(DesiredState{Monitors: []ResourceMonitorSpec{{
		Name:           "RM",
		CreditQuota:    100,
		StartTimestamp: ptr("immediately"),
		EndTimestamp:   ptr("2025-01-01 00:00:00"),
	}}}))
}

func TestNormalizeTimestamp(t *testing.T) {
	assert.Equal(t, "2024-01-01 00:00", NormalizeTimestamp("2024-01-01T00:00:00Z"))
	assert.Equal(t, "2024-01-01 05:30", NormalizeTimestamp("2024-01-01 00:00:00 -0530"))
	assert.Equal(t, "IMMEDIATELY", NormalizeTimestamp(" immediately "))
	assert.Equal(t, "", NormalizeTimestamp(""))
	assert.Equal(t, "soon", NormalizeTimestamp("soon"))
}
