package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.Recommendations("rightsize", 3, 1440)
	r.IdleWarehouses(2)
	r.CostSpike("ETL_WH", 2.5)
	r.CostSpike("ETL_WH", 4)
	r.CostSpike("ETL_WH", 3)
	r.ApplyOutcome(2, 1, 3)
	r.ApplyOutcome(1, 0, 0)
	r.ObserveCommand("rightsize", 1500*time.Millisecond)

	assert.InDelta(t, 3, testutil.ToFloat64(r.recommendations.WithLabelValues("rightsize")), 1e-9)
	assert.InDelta(t, 1440, testutil.ToFloat64(r.estimatedSavings.WithLabelValues("rightsize")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(r.idleWarehouses), 1e-9)
	assert.InDelta(t, 4, testutil.ToFloat64(r.costSpikeRatio.WithLabelValues("ETL_WH")), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(r.applyChanges.WithLabelValues(ResultApplied)), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.applyChanges.WithLabelValues(ResultFailed)), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(r.applyChanges.WithLabelValues(ResultSkipped)), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(r.commandDuration))
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.IdleWarehouses(5)
	assert.InDelta(t, 0, testutil.ToFloat64(b.idleWarehouses), 1e-9)
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Recommendations("idle", 1, 250.5)
	r.IdleWarehouses(1)

	path := filepath.Join(t.TempDir(), "snowops.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `snowops_recommendations{report="idle"} 1`)
	assert.Contains(t, text, `snowops_estimated_savings{report="idle"} 250.5`)
	assert.Contains(t, text, "snowops_idle_warehouses 1")
	assert.Contains(t, text, "# TYPE snowops_idle_warehouses gauge")
}
