package snowflake

import (
	"fmt"
	"strconv"
	"strings"

	"snowops/core/reconcile"
	"snowops/core/types"
)

// Statements renders the DDL for one planned change. Only the attributes in
// the change are touched.
func Statements(change reconcile.ObjectChange) ([]string, error) {
	switch change.Kind {
	case types.KindWarehouse:
		if change.Warehouse == nil {
			return nil, fmt.Errorf("%s: change carries no warehouse", change.Label())
		}
		return warehouseStatements(change), nil
	case types.KindResourceMonitor:
		if change.Monitor == nil {
			return nil, fmt.Errorf("%s: change carries no resource monitor", change.Label())
		}
		return monitorStatements(change), nil
	default:
		return nil, fmt.Errorf("unsupported object kind %q", change.Kind)
	}
}

func warehouseStatements(change reconcile.ObjectChange) []string {
	wh := change.Warehouse
	name := reconcile.QuoteIdentifier(wh.Name)

	var set, unset, tags []string
	for _, attr := range change.Attributes {
		switch {
		case attr.Name == reconcile.AttrComment:
			set = append(set, "COMMENT = "+quoteString(wh.Comment))
		case attr.Name == reconcile.AttrSize:
			set = append(set, "WAREHOUSE_SIZE = "+quoteString(string(wh.Size)))
		case attr.Name == reconcile.AttrMinClusterCount:
			set = append(set, "MIN_CLUSTER_COUNT = "+strconv.Itoa(wh.MinClusterCount))
		case attr.Name == reconcile.AttrMaxClusterCount:
			set = append(set, "MAX_CLUSTER_COUNT = "+strconv.Itoa(wh.MaxClusterCount))
		case attr.Name == reconcile.AttrScalingPolicy:
			set = append(set, "SCALING_POLICY = "+quoteString(string(wh.ScalingPolicy)))
		case attr.Name == reconcile.AttrAutoSuspend:
			set = append(set, "AUTO_SUSPEND = "+strconv.Itoa(wh.AutoSuspend))
		case attr.Name == reconcile.AttrAutoResume:
			set = append(set, "AUTO_RESUME = "+boolLiteral(wh.AutoResume))
		case attr.Name == reconcile.AttrResourceMonitor:
			if wh.ResourceMonitor == "" {
				unset = append(unset, "RESOURCE_MONITOR")
			} else {
				set = append(set, "RESOURCE_MONITOR = "+reconcile.QuoteIdentifier(wh.ResourceMonitor))
			}
		case attr.Name == reconcile.AttrStatementTimeout:
			set = append(set, "STATEMENT_TIMEOUT_IN_SECONDS = "+strconv.Itoa(wh.StatementTimeout))
		case attr.Name == reconcile.AttrQueuedTimeout:
			set = append(set, "STATEMENT_QUEUED_TIMEOUT_IN_SECONDS = "+strconv.Itoa(wh.QueuedTimeout))
		case strings.HasPrefix(attr.Name, reconcile.TagPrefix):
			tag := strings.TrimPrefix(attr.Name, reconcile.TagPrefix)
			tags = append(tags, quotePath(tag)+" = "+quoteString(wh.Tags[tag]))
		}
	}

	var out []string
	if change.Action == reconcile.ActionCreate {
		stmt := "CREATE WAREHOUSE " + name
		if len(set) > 0 {
			stmt += " WITH " + strings.Join(set, " ")
		}
		out = append(out, stmt+" INITIALLY_SUSPENDED = TRUE")
	} else if len(set) > 0 {
		out = append(out, "ALTER WAREHOUSE "+name+" SET "+strings.Join(set, " "))
	}
	if len(unset) > 0 {
		out = append(out, "ALTER WAREHOUSE "+name+" UNSET "+strings.Join(unset, ", "))
	}
	if len(tags) > 0 {
		out = append(out, "ALTER WAREHOUSE "+name+" SET TAG "+strings.Join(tags, ", "))
	}
	return out
}

func monitorStatements(change reconcile.ObjectChange) []string {
	rm := change.Monitor
	name := reconcile.QuoteIdentifier(rm.Name)

	var set []string
	triggers := false
	for _, attr := range change.Attributes {
		switch attr.Name {
		case reconcile.AttrCreditQuota:
			set = append(set, "CREDIT_QUOTA = "+strconv.FormatFloat(rm.CreditQuota, 'f', -1, 64))
		case reconcile.AttrFrequency:
			set = append(set, "FREQUENCY = "+string(rm.Frequency))
			// the platform requires a start with every frequency change
			if !change.Changed(reconcile.AttrStartTimestamp) {
				set = append(set, "START_TIMESTAMP = "+startLiteral(rm.StartTimestamp))
			}
		case reconcile.AttrStartTimestamp:
			set = append(set, "START_TIMESTAMP = "+startLiteral(rm.StartTimestamp))
		case reconcile.AttrEndTimestamp:
			set = append(set, "END_TIMESTAMP = "+quoteString(rm.EndTimestamp))
		case reconcile.AttrNotifyUsers:
			users := make([]string, len(rm.NotifyUsers))
			for i, u := range rm.NotifyUsers {
				users[i] = reconcile.QuoteIdentifier(u)
			}
			set = append(set, "NOTIFY_USERS = ("+strings.Join(users, ", ")+")")
		case reconcile.AttrNotifyTriggers, reconcile.AttrSuspendTriggers, reconcile.AttrSuspendImmediate:
			triggers = true
		}
	}

	clause := triggerClause(rm)
	if change.Action == reconcile.ActionCreate {
		stmt := "CREATE RESOURCE MONITOR " + name
		if len(set) > 0 {
			stmt += " WITH " + strings.Join(set, " ")
		}
		if clause != "" {
			stmt += " TRIGGERS " + clause
		}
		return []string{stmt}
	}

	stmt := "ALTER RESOURCE MONITOR " + name
	if len(set) > 0 {
		stmt += " SET " + strings.Join(set, " ")
	}
	if triggers {
		// triggers are replaced as a whole
		if clause == "" {
			stmt += " NOTRIGGERS"
		} else {
			stmt += " TRIGGERS " + clause
		}
	}
	return []string{stmt}
}

func triggerClause(rm *types.ResourceMonitor) string {
	var parts []string
	add := func(percents []int, action string) {
		for _, p := range percents {
			parts = append(parts, fmt.Sprintf("ON %d PERCENT DO %s", p, action))
		}
	}
	add(rm.NotifyTriggers, "NOTIFY")
	add(rm.SuspendTriggers, "SUSPEND")
	add(rm.SuspendImmediateTriggers, "SUSPEND_IMMEDIATE")
	return strings.Join(parts, " ")
}

func startLiteral(ts string) string {
	if ts == "" || strings.EqualFold(ts, "IMMEDIATELY") {
		return "IMMEDIATELY"
	}
	return quoteString(ts)
}

func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quotePath quotes each part of a dotted object name
func quotePath(path string) string {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		parts[i] = reconcile.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func boolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// TagStatement renders one ALTER that sets tags on an object. Tag names are
// qualified with schema; the set is rendered in name order.
func TagStatement(kind, object, schema string, tags map[string]string) (string, error) {
	kind = strings.ToUpper(strings.TrimSpace(kind))
	switch kind {
	case "WAREHOUSE", "DATABASE", "TABLE":
	default:
		return "", fmt.Errorf("unsupported object kind %q for tagging", kind)
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("%s %s: no tags to set", kind, object)
	}

	parts := make([]string, 0, len(tags))
	for _, name := range types.SortedTagKeys(tags) {
		tag := name
		if schema != "" {
			tag = schema + "." + name
		}
		parts = append(parts, quotePath(tag)+" = "+quoteString(tags[name]))
	}
	return "ALTER " + kind + " " + quotePath(object) + " SET TAG " + strings.Join(parts, ", "), nil
}
