package analysis

import (
	"fmt"

	"snowops/core/metadata"
)

// IssueCategory is the primary cause of a slow query.
type IssueCategory string

const (
	IssueRemoteSpill IssueCategory = "SPILLING_REMOTE"
	IssueLocalSpill  IssueCategory = "SPILLING_LOCAL"
	IssueCompilation IssueCategory = "COMPILATION"
	IssueQueueing    IssueCategory = "QUEUEING"
	IssuePruning     IssueCategory = "PARTITION_PRUNING"
	IssueLargeScan   IssueCategory = "LARGE_SCAN"
	IssueLocking     IssueCategory = "LOCKING"
	IssueOther       IssueCategory = "OTHER"
)

const gib = 1 << 30

// Slow-query thresholds
const (
	CompilationSharePercent = 20.0
	QueueSeconds            = 5.0
	PoorPruningPercent      = 50.0
	PruningMinPartitions    = 100
	LargeScanGiB            = 100.0
	BlockedSeconds          = 5.0
)

// category order decides the primary issue
var categoryOrder = []IssueCategory{
	IssueRemoteSpill, IssueLocalSpill, IssueCompilation, IssueQueueing,
	IssuePruning, IssueLargeScan, IssueLocking,
}

var categorySeverity = map[IssueCategory]Severity{
	IssueRemoteSpill: SeverityCritical,
	IssueLocalSpill:  SeverityHigh,
	IssueCompilation: SeverityWarning,
	IssueQueueing:    SeverityWarning,
	IssuePruning:     SeverityHigh,
	IssueLargeScan:   SeverityWarning,
	IssueLocking:     SeverityWarning,
	IssueOther:       SeverityNormal,
}

var categorySuggestions = map[IssueCategory][]string{
	IssueRemoteSpill: {
		"increase warehouse size for more memory",
		"filter earlier to reduce data processed",
		"break the query into smaller CTEs",
	},
	IssueLocalSpill: {
		"consider a larger warehouse",
		"reduce columns selected and tighten GROUP BY / ORDER BY",
	},
	IssueCompilation: {
		"simplify deeply nested views and large IN lists",
		"reuse results through the result cache where possible",
	},
	IssueQueueing: {
		"enable multi-cluster scaling or raise max cluster count",
		"move the workload to a dedicated warehouse",
	},
	IssuePruning: {
		"add a clustering key on the filter columns",
		"avoid functions on filter columns so pruning applies",
	},
	IssueLargeScan: {
		"select only required columns",
		"add selective filters or a materialized aggregate",
	},
	IssueLocking: {
		"avoid concurrent DML against the same table",
		"batch small updates into fewer transactions",
	},
	IssueOther: {
		"review the query profile for the slowest operator",
	},
}

// Diagnosis explains why one query was slow.
type Diagnosis struct {
	Query       metadata.SlowQuery
	Issues      []string
	Category    IssueCategory
	Severity    Severity
	Suggestions []string
}

// DiagnoseSlowQueries classifies each slow query by its primary issue.
func DiagnoseSlowQueries(queries []metadata.SlowQuery) []Diagnosis {
	out := make([]Diagnosis, 0, len(queries))
	for _, q := range queries {
		found := make(map[IssueCategory]bool)
		d := Diagnosis{Query: q, Category: IssueOther}

		if q.RemoteSpillBytes > 0 {
			found[IssueRemoteSpill] = true
			d.Issues = append(d.Issues, fmt.Sprintf("remote spill: %.2fGB", q.RemoteSpillBytes/gib))
		}
		if q.LocalSpillBytes > 0 {
			found[IssueLocalSpill] = true
			d.Issues = append(d.Issues, fmt.Sprintf("local spill: %.2fGB", q.LocalSpillBytes/gib))
		}
		if share := percent(q.CompilationSeconds, q.TotalSeconds); share > CompilationSharePercent {
			found[IssueCompilation] = true
			d.Issues = append(d.Issues, fmt.Sprintf("high compilation: %.1f%%", share))
		}
		if q.QueuedSeconds > QueueSeconds {
			found[IssueQueueing] = true
			d.Issues = append(d.Issues, fmt.Sprintf("queued: %.1fs", q.QueuedSeconds))
		}
		if q.PartitionsTotal > PruningMinPartitions {
			if scanned := percent(q.PartitionsScanned, q.PartitionsTotal); scanned > PoorPruningPercent {
				found[IssuePruning] = true
				d.Issues = append(d.Issues, fmt.Sprintf("poor pruning: %.1f%% partitions scanned", scanned))
			}
		}
		if scan := q.BytesScanned / gib; scan > LargeScanGiB {
			found[IssueLargeScan] = true
			d.Issues = append(d.Issues, fmt.Sprintf("large scan: %.1fGB", scan))
		}
		if q.BlockedSeconds > BlockedSeconds {
			found[IssueLocking] = true
			d.Issues = append(d.Issues, fmt.Sprintf("transaction blocked: %.1fs", q.BlockedSeconds))
		}

		for _, c := range categoryOrder {
			if found[c] {
				d.Category = c
				break
			}
		}
		if len(d.Issues) == 0 {
			d.Issues = []string{"general slowness"}
		}
		d.Severity = categorySeverity[d.Category]
		d.Suggestions = categorySuggestions[d.Category]
		out = append(out, d)
	}
	return out
}
