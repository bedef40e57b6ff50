package declare

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"snowops/core/reconcile"
	"snowops/internal/errors"
)

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "warehouse", LabelNames: []string{"name"}},
		{Type: "resource_monitor", LabelNames: []string{"name"}},
		{Type: "variable", LabelNames: []string{"name"}},
	},
}

type hclWarehouse struct {
	Comment          *string           `hcl:"comment,optional"`
	Size             string            `hcl:"size"`
	MinClusterCount  *int              `hcl:"min_cluster_count,optional"`
	MaxClusterCount  *int              `hcl:"max_cluster_count,optional"`
	ScalingPolicy    *string           `hcl:"scaling_policy,optional"`
	AutoSuspend      *int              `hcl:"auto_suspend,optional"`
	AutoResume       *bool             `hcl:"auto_resume,optional"`
	ResourceMonitor  *string           `hcl:"resource_monitor,optional"`
	StatementTimeout *int              `hcl:"statement_timeout,optional"`
	QueuedTimeout    *int              `hcl:"queued_timeout,optional"`
	Tags             map[string]string `hcl:"tags,optional"`
}

type hclMonitor struct {
	CreditQuota              float64  `hcl:"credit_quota"`
	Frequency                *string  `hcl:"frequency,optional"`
	StartTimestamp           *string  `hcl:"start_timestamp,optional"`
	EndTimestamp             *string  `hcl:"end_timestamp,optional"`
	NotifyTriggers           []int    `hcl:"notify_triggers,optional"`
	SuspendTriggers          []int    `hcl:"suspend_triggers,optional"`
	SuspendImmediateTriggers []int    `hcl:"suspend_immediate_triggers,optional"`
	NotifyUsers              []string `hcl:"notify_users,optional"`
}

type hclVariable struct {
	Description *string   `hcl:"description,optional"`
	Default     cty.Value `hcl:"default,optional"`
}

// hclDecoder parses every HCL file up front so variable blocks from any file
// are visible to all of them.
type hclDecoder struct {
	parser   *hclparse.Parser
	supplied map[string]string
	bodies   map[string]*hcl.BodyContent
	ctx      *hcl.EvalContext
}

func newHCLDecoder(vars map[string]string) *hclDecoder {
	return &hclDecoder{
		parser:   hclparse.NewParser(),
		supplied: vars,
		bodies:   make(map[string]*hcl.BodyContent),
	}
}

func (d *hclDecoder) parse(files []string) error {
	defaults := make(map[string]cty.Value)
	var declared []string

	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return errors.Configf("failed to read %s: %v", file, err)
		}
		f, diags := d.parser.ParseHCL(src, file)
		if err := diagError(diags); err != nil {
			return parseError(file, err)
		}
		content, diags := f.Body.Content(fileSchema)
		if err := diagError(diags); err != nil {
			return parseError(file, err)
		}
		d.bodies[file] = content

		for _, block := range content.Blocks {
			if block.Type != "variable" {
				continue
			}
			var v hclVariable
			if err := diagError(gohcl.DecodeBody(block.Body, nil, &v)); err != nil {
				return parseError(file, err)
			}
			name := block.Labels[0]
			declared = append(declared, name)
			if !v.Default.IsNull() {
				defaults[name] = v.Default
			}
		}
	}

	values := make(map[string]cty.Value, len(defaults)+len(d.supplied))
	for k, v := range defaults {
		values[k] = v
	}
	for k, v := range d.supplied {
		values[k] = cty.StringVal(v)
	}

	var missing *multierror.Error
	for _, name := range declared {
		if _, ok := values[name]; !ok {
			missing = multierror.Append(missing, fmt.Errorf("variable %q has no default; pass --var %s=VALUE", name, name))
		}
	}
	if err := missing.ErrorOrNil(); err != nil {
		return errors.Validation("unset variables", err)
	}

	d.ctx = &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(values)},
	}
	return nil
}

func (d *hclDecoder) decodeFile(file string) (reconcile.DesiredState, error) {
	content, ok := d.bodies[file]
	if !ok {
		return reconcile.DesiredState{}, errors.Internal("file was not parsed", fmt.Errorf("%s", file))
	}

	var state reconcile.DesiredState
	var result *multierror.Error
	for _, block := range content.Blocks {
		name := block.Labels[0]
		switch block.Type {
		case "warehouse":
			var w hclWarehouse
			if err := diagError(gohcl.DecodeBody(block.Body, d.ctx, &w)); err != nil {
				result = multierror.Append(result, err)
				continue
			}
			state.Warehouses = append(state.Warehouses, reconcile.WarehouseSpec{
				Name:             name,
				Comment:          w.Comment,
				Size:             w.Size,
				MinClusterCount:  w.MinClusterCount,
				MaxClusterCount:  w.MaxClusterCount,
				ScalingPolicy:    w.ScalingPolicy,
				AutoSuspend:      w.AutoSuspend,
				AutoResume:       w.AutoResume,
				ResourceMonitor:  w.ResourceMonitor,
				StatementTimeout: w.StatementTimeout,
				QueuedTimeout:    w.QueuedTimeout,
				Tags:             w.Tags,
			})
		case "resource_monitor":
			var m hclMonitor
			if err := diagError(gohcl.DecodeBody(block.Body, d.ctx, &m)); err != nil {
				result = multierror.Append(result, err)
				continue
			}
			state.Monitors = append(state.Monitors, reconcile.ResourceMonitorSpec{
				Name:                     name,
				CreditQuota:              m.CreditQuota,
				Frequency:                m.Frequency,
				StartTimestamp:           m.StartTimestamp,
				EndTimestamp:             m.EndTimestamp,
				NotifyTriggers:           m.NotifyTriggers,
				SuspendTriggers:          m.SuspendTriggers,
				SuspendImmediateTriggers: m.SuspendImmediateTriggers,
				NotifyUsers:              m.NotifyUsers,
			})
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return reconcile.DesiredState{}, parseError(file, err)
	}
	return state, nil
}

// diagError flattens error diagnostics into one error per diagnostic,
// positioned as file:line,column.
func diagError(diags hcl.Diagnostics) error {
	var result *multierror.Error
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		msg := diag.Summary
		if diag.Detail != "" {
			msg += ": " + diag.Detail
		}
		if diag.Subject != nil {
			msg = diag.Subject.String() + ": " + msg
		}
		result = multierror.Append(result, fmt.Errorf("%s", msg))
	}
	return result.ErrorOrNil()
}
