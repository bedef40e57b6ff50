package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"snowops/core/metadata"
	"snowops/core/types"
)

// PredicateKind is the comparison a filter column appears in.
type PredicateKind string

const (
	PredicateEquality PredicateKind = "EQUALITY"
	PredicateIn       PredicateKind = "IN"
	PredicateRange    PredicateKind = "RANGE"
	PredicateLike     PredicateKind = "LIKE"
)

// Selectivity weights per predicate kind
var Selectivity = map[PredicateKind]float64{
	PredicateEquality: 1.0,
	PredicateIn:       0.8,
	PredicateRange:    0.6,
	PredicateLike:     0.3,
}

// MaxClusteringKeys bounds the proposed key
const MaxClusteringKeys = 4

// clustering pays off only on large tables
const minClusteringRows = 1_000_000

// Predicate is one filter column occurrence
type Predicate struct {
	Column string
	Kind   PredicateKind
}

var (
	stringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)
	whereClause   = regexp.MustCompile(`(?is)\bWHERE\b(.*?)(?:\bGROUP\s+BY\b|\bORDER\s+BY\b|\bHAVING\b|\bQUALIFY\b|\bLIMIT\b|\bUNION\b|\)\s*SELECT\b|;|$)`)
	predicate     = regexp.MustCompile(`(?i)([A-Za-z_][\w$]*(?:\.[A-Za-z_][\w$]*)*)\s*(<=|>=|<>|!=|=|<|>|\bNOT\s+IN\b|\bIN\b|\bNOT\s+BETWEEN\b|\bBETWEEN\b|\bNOT\s+I?LIKE\b|\bI?LIKE\b)`)
)

var sqlKeywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "WHERE": true, "ON": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "NULL": true,
	"SELECT": true, "FROM": true, "IS": true, "EXISTS": true,
}

// ExtractFilterColumns returns the columns compared in the WHERE clauses of
// a statement, in order of appearance. Negated comparisons are skipped.
func ExtractFilterColumns(query string) []Predicate {
	text := stringLiteral.ReplaceAllString(query, "''")

	var out []Predicate
	for _, clause := range whereClause.FindAllStringSubmatch(text, -1) {
		for _, m := range predicate.FindAllStringSubmatch(clause[1], -1) {
			column := upper(m[1])
			if i := strings.LastIndex(column, "."); i >= 0 {
				column = column[i+1:]
			}
			if sqlKeywords[column] {
				continue
			}

			op := strings.Join(strings.Fields(upper(m[2])), " ")
			kind, ok := predicateKind(op)
			if !ok {
				continue
			}
			out = append(out, Predicate{Column: column, Kind: kind})
		}
	}
	return out
}

func predicateKind(op string) (PredicateKind, bool) {
	switch op {
	case "=":
		return PredicateEquality, true
	case "IN":
		return PredicateIn, true
	case "<", ">", "<=", ">=", "BETWEEN":
		return PredicateRange, true
	case "LIKE", "ILIKE":
		return PredicateLike, true
	default:
		return "", false
	}
}

// TableUsage is the clustering input for one table.
type TableUsage struct {
	Table   metadata.TableRef
	Columns []string
	Scans   []metadata.TableScan
	Info    *metadata.TableInfo
}

// ColumnScore is the weighted filter usage of one column.
type ColumnScore struct {
	Column string
	Uses   int
	Score  float64
}

// ClusteringRecommendation is the proposed key for a table.
type ClusteringRecommendation struct {
	Table           string
	CurrentKey      string
	Scores          []ColumnScore
	Key             []string
	DDL             string
	QueriesAnalyzed int
	AvgScanRatio    float64
	Confidence      types.Confidence
	Rationale       string
}

// Recommendation converts to the generic form
func (r ClusteringRecommendation) Recommendation() types.Recommendation {
	return types.Recommendation{
		Kind:       "clustering",
		Subject:    r.Table,
		Current:    r.CurrentKey,
		Proposed:   strings.Join(r.Key, ", "),
		Rationale:  r.Rationale,
		Confidence: r.Confidence,
	}
}

// RecommendClusteringKeys ranks the table's known columns by selectivity-
// weighted filter usage, each use scaled by the query's partition scan
// ratio. The top maxKeys (at most MaxClusteringKeys) form the key.
func RecommendClusteringKeys(usage TableUsage, maxKeys int) ClusteringRecommendation {
	if maxKeys <= 0 || maxKeys > MaxClusteringKeys {
		maxKeys = MaxClusteringKeys
	}

	known := make(map[string]bool, len(usage.Columns))
	for _, c := range usage.Columns {
		known[upper(c)] = true
	}

	scores := make(map[string]*ColumnScore)
	var ratioSum float64
	analyzed := 0

	for _, scan := range usage.Scans {
		preds := ExtractFilterColumns(scan.QueryText)
		if len(preds) == 0 {
			continue
		}
		analyzed++

		scanRatio, ok := ratio(scan.PartitionsScanned, scan.PartitionsTotal)
		if !ok {
			scanRatio = 1
		}
		scanRatio = math.Min(math.Max(scanRatio, 0), 1)
		ratioSum += scanRatio

		for _, p := range preds {
			if !known[p.Column] {
				continue
			}
			s, ok := scores[p.Column]
			if !ok {
				s = &ColumnScore{Column: p.Column}
				scores[p.Column] = s
			}
			s.Uses++
			s.Score += Selectivity[p.Kind] * scanRatio
		}
	}

	ranked := make([]ColumnScore, 0, len(scores))
	for _, name := range sortedKeys(scores) {
		if scores[name].Score > 0 {
			ranked = append(ranked, *scores[name])
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Column < ranked[j].Column
	})

	rec := ClusteringRecommendation{
		Table:           usage.Table.String(),
		Scores:          ranked,
		QueriesAnalyzed: analyzed,
		Confidence:      types.ConfidenceLow,
	}
	if usage.Info != nil {
		rec.CurrentKey = usage.Info.ClusteringKey
	}
	if analyzed > 0 {
		rec.AvgScanRatio = ratioSum / float64(analyzed)
	}

	if len(ranked) == 0 {
		rec.Rationale = "no filter columns found in query history"
		return rec
	}

	for i := 0; i < len(ranked) && i < maxKeys; i++ {
		rec.Key = append(rec.Key, ranked[i].Column)
	}
	rec.DDL = fmt.Sprintf("ALTER TABLE %s CLUSTER BY (%s);", rec.Table, strings.Join(rec.Key, ", "))
	rec.Rationale = fmt.Sprintf("%d filtering queries, average %.0f%% of partitions scanned", analyzed, rec.AvgScanRatio*100)

	switch {
	case usage.Info != nil && usage.Info.Rows < minClusteringRows:
		rec.Rationale += "; table is small, clustering rarely pays off"
	case analyzed >= 20 && rec.AvgScanRatio > 0.5:
		rec.Confidence = types.ConfidenceHigh
	case analyzed >= 5:
		rec.Confidence = types.ConfidenceMedium
	}
	return rec
}
