package declare

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowops/core/reconcile"
	"snowops/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const analyticsHCL = `
variable "env" {
  default = "dev"
}

resource_monitor "etl_rm" {
  credit_quota     = 1000
  frequency        = "MONTHLY"
  notify_triggers  = [80, 90]
  suspend_triggers = [100]
}

warehouse "analytics_wh" {
  size             = "LARGE"
  auto_suspend     = 60
  auto_resume      = true
  resource_monitor = "etl_rm"
  comment          = "bi ${var.env}"
  tags = {
    "GOVERNANCE.TAGS.COST_CENTER" = "bi"
  }
}
`

func TestLoadHCL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.hcl", analyticsHCL)

	d, err := NewLoader(nil).Load(path)
	require.NoError(t, err)

	require.Len(t, d.Monitors, 1)
	rm := d.Monitors[0]
	assert.Equal(t, "etl_rm", rm.Name)
	assert.InDelta(t, 1000, rm.CreditQuota, 1e-9)
	require.NotNil(t, rm.Frequency)
	assert.Equal(t, "MONTHLY", *rm.Frequency)
	assert.Equal(t, []int{80, 90}, rm.NotifyTriggers)
	assert.Equal(t, []int{100}, rm.SuspendTriggers)
	assert.Nil(t, rm.SuspendImmediateTriggers)
	assert.Nil(t, rm.StartTimestamp)

	require.Len(t, d.Warehouses, 1)
	wh := d.Warehouses[0]
	assert.Equal(t, "analytics_wh", wh.Name)
	assert.Equal(t, "LARGE", wh.Size)
	require.NotNil(t, wh.AutoSuspend)
	assert.Equal(t, 60, *wh.AutoSuspend)
	require.NotNil(t, wh.AutoResume)
	assert.True(t, *wh.AutoResume)
	require.NotNil(t, wh.Comment)
	assert.Equal(t, "bi dev", *wh.Comment)
	assert.Nil(t, wh.MaxClusterCount)
	assert.Equal(t, map[string]string{"GOVERNANCE.TAGS.COST_CENTER": "bi"}, wh.Tags)

	assert.NoError(t, reconcile.Validate(d))
}

func TestLoadHCLVariables(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.hcl", `
variable "size" {}

warehouse "etl_wh" {
  size         = var.size
  auto_suspend = var.suspend
}
`)

	vars, err := ParseVars([]string{"size=XSMALL", "suspend=300"})
	require.NoError(t, err)

	d, err := NewLoader(vars).Load(path)
	require.NoError(t, err)
	require.Len(t, d.Warehouses, 1)
	assert.Equal(t, "XSMALL", d.Warehouses[0].Size)
	require.NotNil(t, d.Warehouses[0].AutoSuspend)
	assert.Equal(t, 300, *d.Warehouses[0].AutoSuspend)

	t.Run("declared variable without value", func(t *testing.T) {
		_, err := NewLoader(nil).Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.TypeValidation))
		assert.Contains(t, err.Error(), `variable "size" has no default`)
	})
}

func TestLoadHCLErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("syntax", func(t *testing.T) {
		path := writeFile(t, dir, "broken.hcl", `warehouse "x" {`)
		_, err := NewLoader(nil).Load(path)
		require.Error(t, err)
		assert.Equal(t, 2, errors.ExitCode(err))
		assert.Contains(t, err.Error(), "broken.hcl")
	})

	t.Run("unknown attribute", func(t *testing.T) {
		path := writeFile(t, dir, "typo.hcl", `
warehouse "x" {
  size        = "SMALL"
  auto_suspnd = 60
}
`)
		_, err := NewLoader(nil).Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auto_suspnd")
	})

	t.Run("missing size", func(t *testing.T) {
		path := writeFile(t, dir, "nosize.hcl", `warehouse "x" {}`)
		_, err := NewLoader(nil).Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "size")
	})
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "state.yaml", `
resource_monitors:
  - name: etl_rm
    credit_quota: 500
    suspend_immediate_triggers: []
warehouses:
  - name: analytics_wh
    size: MEDIUM
    min_cluster_count: 1
    max_cluster_count: 3
    scaling_policy: ECONOMY
`)

	d, err := NewLoader(nil).Load(path)
	require.NoError(t, err)

	require.Len(t, d.Monitors, 1)
	assert.Nil(t, d.Monitors[0].NotifyTriggers)
	assert.NotNil(t, d.Monitors[0].SuspendImmediateTriggers)
	assert.Empty(t, d.Monitors[0].SuspendImmediateTriggers)

	require.Len(t, d.Warehouses, 1)
	wh := d.Warehouses[0]
	assert.Equal(t, "MEDIUM", wh.Size)
	require.NotNil(t, wh.MaxClusterCount)
	assert.Equal(t, 3, *wh.MaxClusterCount)
	require.NotNil(t, wh.ScalingPolicy)
	assert.Equal(t, "ECONOMY", *wh.ScalingPolicy)

	t.Run("unknown field", func(t *testing.T) {
		path := writeFile(t, dir, "typo.yml", "warehouses:\n  - name: x\n    sise: SMALL\n")
		_, err := NewLoader(nil).Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.TypeValidation))
	})
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_monitors.json", `{"resource_monitors": [{"name": "bi_rm", "credit_quota": 100}]}`)
	writeFile(t, dir, "b_warehouses.hcl", `
warehouse "bi_wh" {
  size             = "SMALL"
  resource_monitor = "bi_rm"
}
`)
	writeFile(t, dir, "c_more.yaml", "warehouses:\n  - name: etl_wh\n    size: XLARGE\n")
	writeFile(t, dir, "README.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".hidden"), 0o755))
	writeFile(t, filepath.Join(dir, ".hidden"), "skip.yaml", "not: [valid")

	d, err := NewLoader(nil).Load(dir)
	require.NoError(t, err)

	require.Len(t, d.Monitors, 1)
	assert.Equal(t, "bi_rm", d.Monitors[0].Name)
	require.Len(t, d.Warehouses, 2)
	assert.Equal(t, "bi_wh", d.Warehouses[0].Name)
	assert.Equal(t, "etl_wh", d.Warehouses[1].Name)
	assert.NoError(t, reconcile.Validate(d))
}

func TestLoadPathErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewLoader(nil).Load(filepath.Join(dir, "missing.hcl"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeConfig))

	path := writeFile(t, dir, "state.toml", "")
	_, err = NewLoader(nil).Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized declaration format")

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	_, err = NewLoader(nil).Load(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no declaration files")
}

func TestParseVars(t *testing.T) {
	vars, err := ParseVars([]string{"a=1", "b=x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "c": ""}, vars)

	_, err = ParseVars([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseVars([]string{"=v"})
	assert.Error(t, err)
}
