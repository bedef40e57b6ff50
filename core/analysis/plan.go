package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LargeOperatorRows is the row count above which scans and sorts are flagged.
const LargeOperatorRows = 1_000_000

// PlanOperation is one operator of an explain plan.
type PlanOperation struct {
	ID                 int      `json:"id"`
	Parent             *int     `json:"parent,omitempty"`
	Operation          string   `json:"operation"`
	Objects            []string `json:"objects,omitempty"`
	Expressions        []string `json:"expressions,omitempty"`
	OutputRows         float64  `json:"output_rows"`
	PartitionsAssigned float64  `json:"partitionsAssigned"`
	PartitionsTotal    float64  `json:"partitionsTotal"`
	BytesAssigned      float64  `json:"bytesAssigned"`
}

// PlanStats are the global statistics of a plan.
type PlanStats struct {
	PartitionsTotal    float64 `json:"partitionsTotal"`
	PartitionsAssigned float64 `json:"partitionsAssigned"`
	BytesAssigned      float64 `json:"bytesAssigned"`
}

// Plan is a parsed JSON explain plan.
type Plan struct {
	GlobalStats PlanStats
	Operations  []PlanOperation
}

// ParsePlan decodes a JSON plan. Operations may be a flat list or a list
// of per-step lists.
func ParsePlan(raw string) (*Plan, error) {
	var doc struct {
		GlobalStats PlanStats       `json:"GlobalStats"`
		Operations  json.RawMessage `json:"Operations"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	plan := &Plan{GlobalStats: doc.GlobalStats}
	if len(doc.Operations) == 0 {
		return plan, nil
	}

	var nested [][]PlanOperation
	if err := json.Unmarshal(doc.Operations, &nested); err == nil {
		for _, step := range nested {
			plan.Operations = append(plan.Operations, step...)
		}
		return plan, nil
	}
	if err := json.Unmarshal(doc.Operations, &plan.Operations); err != nil {
		return nil, fmt.Errorf("parse plan operations: %w", err)
	}
	return plan, nil
}

// PlanInsight is one finding from a plan.
type PlanInsight struct {
	Type     string
	Severity Severity
	Message  string
}

// AnalyzePlan reports expensive operators. Input that is not JSON is treated
// as a text plan and only yields informational findings.
func AnalyzePlan(raw string) []PlanInsight {
	plan, err := ParsePlan(raw)
	if err != nil {
		return analyzeTextPlan(raw)
	}

	var out []PlanInsight
	for _, op := range plan.Operations {
		name := op.Operation
		switch {
		case strings.Contains(name, "CartesianJoin"):
			out = append(out, PlanInsight{
				Type:     "CARTESIAN_JOIN",
				Severity: SeverityCritical,
				Message:  "cartesian join detected",
			})
		case strings.Contains(name, "TableScan") && op.OutputRows > LargeOperatorRows:
			out = append(out, PlanInsight{
				Type:     "LARGE_SCAN",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("large table scan of %s: %.0f rows", strings.Join(op.Objects, ", "), op.OutputRows),
			})
		case strings.Contains(name, "Sort") && op.OutputRows > LargeOperatorRows:
			out = append(out, PlanInsight{
				Type:     "LARGE_SORT",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("large sort: %.0f rows", op.OutputRows),
			})
		}
	}

	stats := plan.GlobalStats
	if stats.PartitionsTotal > PruningMinPartitions {
		if assigned := percent(stats.PartitionsAssigned, stats.PartitionsTotal); assigned > PoorPruningPercent {
			out = append(out, PlanInsight{
				Type:     "POOR_PRUNING",
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("%.1f%% of %.0f partitions assigned", assigned, stats.PartitionsTotal),
			})
		}
	}
	return out
}

func analyzeTextPlan(plan string) []PlanInsight {
	text := strings.ToUpper(plan)
	var out []PlanInsight
	if strings.Contains(text, "TABLESCAN") {
		out = append(out, PlanInsight{Type: "SCAN", Severity: SeverityNormal, Message: "query includes table scans"})
	}
	if strings.Contains(text, "JOIN") {
		out = append(out, PlanInsight{Type: "JOIN", Severity: SeverityNormal, Message: "query includes join operations"})
	}
	if strings.Contains(text, "AGGREGATE") {
		out = append(out, PlanInsight{Type: "AGGREGATE", Severity: SeverityNormal, Message: "query includes aggregation"})
	}
	return out
}
