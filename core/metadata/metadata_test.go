package metadata

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowops/core/record"
	"snowops/core/types"
)

type call struct {
	statement string
	numeric   []string
	args      []interface{}
}

type fakeQuerier struct {
	calls   []call
	results []*record.Result
	err     error
}

func (f *fakeQuerier) Query(_ context.Context, statement string, numeric []string, args ...interface{}) (*record.Result, error) {
	f.calls = append(f.calls, call{statement: statement, numeric: numeric, args: args})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &record.Result{}, nil
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res, nil
}

func result(rows ...map[string]interface{}) *record.Result {
	res := &record.Result{}
	for _, r := range rows {
		res.Records = append(res.Records, record.New(r))
	}
	return res
}

func TestCatalogBindsEveryParameter(t *testing.T) {
	for _, q := range Catalog {
		assert.NotEmpty(t, q.Name)
		assert.NotEmpty(t, q.View, q.Name)
		assert.NotContains(t, q.SQL, "%s", q.Name)
		assert.NotContains(t, q.SQL, "{", q.Name)
	}
}

func TestReadersPassExactlyOneArgPerPlaceholder(t *testing.T) {
	ctx := context.Background()
	f := Filter{Days: 30, Warehouse: "ANALYTICS_WH"}
	table := TableRef{Database: "DB", Schema: "PUBLIC", Table: "EVENTS"}

	fq := &fakeQuerier{}
	r := NewReader(fq, nil)

	_, _ = r.WarehouseLoad(ctx, f)
	_, _ = r.WarehouseActivity(ctx, f)
	_, _ = r.QueryGaps(ctx, f)
	_, _ = r.ScalingProfile(ctx, f)
	_, _ = r.CreditHistory(ctx, f)
	_, _ = r.DailyCredits(ctx, f)
	_, _ = r.WarehouseCredits(ctx, f)
	_, _ = r.QueryElapsed(ctx, f, "role")
	_, _ = r.TableScans(ctx, 30, table)
	_, _ = r.TableColumns(ctx, table)
	_, _ = r.TableInfo(ctx, table)
	_, _ = r.SlowQueries(ctx, f, 60)
	_, _ = r.QueryInfo(ctx, "01b2")
	_, _ = r.ExplainPlan(ctx, "SELECT 1")
	_, _ = r.PrivilegedRoles(ctx)
	_, _ = r.InactiveUsers(ctx, 90)
	_, _ = r.RoleUsage(ctx, 30)
	_, _ = r.WarehouseUsage(ctx, f)
	for _, kind := range TaggedResourceKinds {
		_, _ = r.TaggedResources(ctx, kind, 30)
	}

	require.Len(t, fq.calls, 21)
	for _, c := range fq.calls {
		assert.Equal(t, strings.Count(c.statement, "?"), len(c.args), c.statement)
	}
}

func TestEmptyWarehouseFilterBindsNull(t *testing.T) {
	fq := &fakeQuerier{}
	_, err := NewReader(fq, nil).WarehouseCredits(context.Background(), Filter{Days: 7})
	require.NoError(t, err)
	require.Len(t, fq.calls, 1)
	assert.Equal(t, []interface{}{7, nil}, fq.calls[0].args)
}

func TestWarehouseLoadMapping(t *testing.T) {
	fq := &fakeQuerier{results: []*record.Result{result(map[string]interface{}{
		"WAREHOUSE_NAME":   "ANALYTICS_WH",
		"WAREHOUSE_SIZE":   "Medium",
		"ACTIVE_HOURS":     120.0,
		"PEAK_CONCURRENCY": 12.0,
		"AVG_CONCURRENCY":  3.5,
		"QUEUED_HOURS":     4.0,
	})}}

	loads, err := NewReader(fq, nil).WarehouseLoad(context.Background(), Filter{Days: 30})
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.Equal(t, WarehouseLoad{
		Warehouse:       "ANALYTICS_WH",
		Size:            types.SizeMedium,
		ActiveHours:     120,
		PeakConcurrency: 12,
		AvgConcurrency:  3.5,
		QueuedHours:     4,
	}, loads[0])
}

func TestWarehouseActivityKeepsNullLastQuery(t *testing.T) {
	last := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	fq := &fakeQuerier{results: []*record.Result{result(
		map[string]interface{}{"warehouse_name": "ETL_WH", "last_query_end": last, "query_count": 10.0, "credits_since_last_use": 2.0},
		map[string]interface{}{"warehouse_name": "OLD_WH", "last_query_end": nil, "query_count": 0.0, "credits_in_window": 1.5},
	)}}

	acts, err := NewReader(fq, nil).WarehouseActivity(context.Background(), Filter{Days: 30})
	require.NoError(t, err)
	require.Len(t, acts, 2)
	require.NotNil(t, acts[0].LastQueryEnd)
	assert.True(t, last.Equal(*acts[0].LastQueryEnd))
	assert.Nil(t, acts[1].LastQueryEnd)
	assert.Equal(t, 0, acts[1].QueryCount)
	assert.Equal(t, 1.5, acts[1].CreditsInWindow)
}

func TestQueryElapsedRejectsUnknownSubject(t *testing.T) {
	fq := &fakeQuerier{}
	_, err := NewReader(fq, nil).QueryElapsed(context.Background(), Filter{Days: 1}, "user_name; DROP TABLE x")
	assert.Error(t, err)
	assert.Empty(t, fq.calls)
}

func TestQueryInfoMissing(t *testing.T) {
	info, err := NewReader(&fakeQuerier{}, nil).QueryInfo(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestReaderPropagatesErrors(t *testing.T) {
	fq := &fakeQuerier{err: assert.AnError}
	_, err := NewReader(fq, nil).DailyCredits(context.Background(), Filter{Days: 1})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestParseTableRef(t *testing.T) {
	ref, err := ParseTableRef("analytics.public.events")
	require.NoError(t, err)
	assert.Equal(t, TableRef{Database: "ANALYTICS", Schema: "PUBLIC", Table: "EVENTS"}, ref)
	assert.Equal(t, "ANALYTICS.PUBLIC.EVENTS", ref.String())

	for _, bad := range []string{"events", "a.b", "a..c", "a.b.c.d"} {
		_, err := ParseTableRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestWarehouseUsageMapping(t *testing.T) {
	first := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	fq := &fakeQuerier{results: []*record.Result{result(map[string]interface{}{
		"WAREHOUSE_NAME":         "ETL_WH",
		"WAREHOUSE_SIZE":         "Large",
		"TOTAL_CREDITS":          420.5,
		"COMPUTE_CREDITS":        400.0,
		"CLOUD_SERVICES_CREDITS": 20.5,
		"ACTIVE_DAYS":            30.0,
		"ACTIVE_HOURS":           96.0,
		"QUERY_COUNT":            1200.0,
		"FIRST_USAGE":            first,
		"LAST_USAGE":             nil,
	})}}

	usage, err := NewReader(fq, nil).WarehouseUsage(context.Background(), Filter{Days: 30})
	require.NoError(t, err)
	require.Len(t, usage, 1)

	u := usage[0]
	assert.Equal(t, "ETL_WH", u.Warehouse)
	assert.Equal(t, types.SizeLarge, u.Size)
	assert.Equal(t, 420.5, u.TotalCredits)
	assert.Equal(t, 30, u.ActiveDays)
	assert.Equal(t, 96, u.ActiveHours)
	assert.Equal(t, 1200, u.QueryCount)
	require.NotNil(t, u.FirstUsage)
	assert.True(t, first.Equal(*u.FirstUsage))
	assert.Nil(t, u.LastUsage)
	assert.Equal(t, []interface{}{30, nil, 30}, fq.calls[0].args)
}

func TestTaggedResourcesGroupsTagRows(t *testing.T) {
	fq := &fakeQuerier{results: []*record.Result{result(
		map[string]interface{}{"resource_name": "ANALYTICS", "owner": "SYSADMIN", "tag_name": "COST_CENTER", "tag_value": "analytics"},
		map[string]interface{}{"resource_name": "ANALYTICS", "owner": "SYSADMIN", "tag_name": "governance.tags.owner", "tag_value": "bi"},
		map[string]interface{}{"resource_name": "RAW", "owner": "LOADER", "tag_name": nil, "tag_value": nil},
	)}}

	got, err := NewReader(fq, nil).TaggedResources(context.Background(), "Database", 30)
	require.NoError(t, err)
	assert.Equal(t, []TaggedResource{
		{Kind: "DATABASE", Name: "ANALYTICS", Owner: "SYSADMIN", Tags: map[string]string{"COST_CENTER": "analytics", "OWNER": "bi"}},
		{Kind: "DATABASE", Name: "RAW", Owner: "LOADER"},
	}, got)
	assert.Empty(t, fq.calls[0].args)
}

func TestTaggedResourcesRejectsUnknownKind(t *testing.T) {
	fq := &fakeQuerier{}
	_, err := NewReader(fq, nil).TaggedResources(context.Background(), "schema", 30)
	require.Error(t, err)
	assert.Empty(t, fq.calls)
}
