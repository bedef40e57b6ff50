package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"snowops/core/output"
	"snowops/core/reconcile"
	"snowops/core/types"
)

func TestTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)

	tbl := output.NewTable("Idle Warehouses", "Warehouse", "Hours")
	tbl.AddRow("ANALYTICS_WH", "6")
	tbl.AddRow("BI", "120")
	w.Table(tbl)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"▸ Idle Warehouses",
		"Warehouse    │ Hours",
		"─────────────┼──────",
		"ANALYTICS_WH │ 6",
		"BI           │ 120",
	}, lines)
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, true).Table(output.NewTable("Cost Spikes", "Warehouse"))
	assert.Contains(t, buf.String(), "(no rows)")
}

func TestNoColor(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.Warning("budget at %d%%", 90)
	assert.Equal(t, "⚠ budget at 90%\n", buf.String())
	assert.Equal(t, "CRITICAL", w.Severity("CRITICAL"))

	buf.Reset()
	NewWriter(&buf, false).Error("failed")
	assert.Contains(t, buf.String(), Red)
}

func TestVerbosity(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.Debug("hidden")
	assert.Empty(t, buf.String())

	w.SetVerbosity(2)
	w.Debug("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	w.SetVerbosity(0)
	w.Info("quiet")
	assert.Empty(t, buf.String())
}

func TestPlan(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)

	w.Plan(&reconcile.Plan{Changes: []reconcile.ObjectChange{
		{
			Kind:       types.KindResourceMonitor,
			Name:       "ETL_RM",
			Action:     reconcile.ActionCreate,
			Attributes: []reconcile.AttributeChange{{Name: reconcile.AttrCreditQuota, To: "1000"}},
		},
		{
			Kind:       types.KindWarehouse,
			Name:       "ANALYTICS_WH",
			Action:     reconcile.ActionAlter,
			Attributes: []reconcile.AttributeChange{{Name: reconcile.AttrSize, From: "MEDIUM", To: "LARGE"}},
		},
	}})

	out := buf.String()
	assert.Contains(t, out, "+ resource_monitor ETL_RM")
	assert.Contains(t, out, "credit_quota = 1000")
	assert.Contains(t, out, "~ warehouse ANALYTICS_WH")
	assert.Contains(t, out, "size: MEDIUM → LARGE")
	assert.Contains(t, out, "1 to create, 1 to alter")
}

func TestPlanEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, true).Plan(&reconcile.Plan{})
	assert.Contains(t, buf.String(), "No changes")
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, true).NewSummary("Rightsizing").
		Add("Recommendations", "3").
		Add("Monthly savings", "$1,440.00").
		Render()

	out := buf.String()
	assert.Contains(t, out, "━━━ Rightsizing ━━━")
	assert.Contains(t, out, "Monthly savings:  $1,440.00")
}
