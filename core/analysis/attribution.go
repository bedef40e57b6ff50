package analysis

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"snowops/core/metadata"
	"snowops/core/types"
)

// Attribution is the share of one warehouse's credits charged to a subject.
type Attribution struct {
	Warehouse  string
	Subject    string
	QueryCount int
	ElapsedMS  float64
	Share      float64
	Credits    float64
	Cost       decimal.Decimal
}

// SubjectTotal rolls a subject's attributions up across warehouses.
type SubjectTotal struct {
	Subject    string
	QueryCount int
	Credits    float64
	Cost       decimal.Decimal
}

// AttributionReport is the result of AttributeCosts.
type AttributionReport struct {
	Rows []Attribution

	// Unattributed lists warehouses that burned credits without recorded
	// query time; their cost is unknown, not zero.
	Unattributed []metadata.WarehouseCredits
}

// AttributeCosts splits each warehouse's credits across subjects by their
// share of elapsed query time. Shares of a warehouse sum to its total; any
// floating-point residual is charged to the largest share.
func AttributeCosts(credits []metadata.WarehouseCredits, elapsed []metadata.QueryElapsed, pricing types.Pricing) AttributionReport {
	bySubject := make(map[string][]metadata.QueryElapsed)
	for _, e := range elapsed {
		name := upper(e.Warehouse)
		bySubject[name] = append(bySubject[name], e)
	}

	totals := make(map[string]float64, len(credits))
	for _, c := range credits {
		totals[upper(c.Warehouse)] += c.Credits
	}

	var report AttributionReport
	for _, warehouse := range sortedKeys(totals) {
		total := totals[warehouse]
		subjects := bySubject[warehouse]

		var elapsedSum float64
		for _, s := range subjects {
			elapsedSum += math.Max(s.ElapsedMS, 0)
		}
		if elapsedSum <= 0 {
			report.Unattributed = append(report.Unattributed, metadata.WarehouseCredits{Warehouse: warehouse, Credits: total})
			continue
		}

		rows := make([]Attribution, 0, len(subjects))
		var allocated float64
		largest, largestShare := 0, -1.0
		for i, s := range subjects {
			share := math.Max(s.ElapsedMS, 0) / elapsedSum
			row := Attribution{
				Warehouse:  warehouse,
				Subject:    s.Subject,
				QueryCount: s.QueryCount,
				ElapsedMS:  s.ElapsedMS,
				Share:      share,
				Credits:    share * total,
			}
			allocated += row.Credits
			if share > largestShare {
				largest, largestShare = i, share
			}
			rows = append(rows, row)
		}
		rows[largest].Credits += total - allocated

		for i := range rows {
			rows[i].Cost = pricing.Cost(rows[i].Credits)
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Credits != rows[j].Credits {
				return rows[i].Credits > rows[j].Credits
			}
			return rows[i].Subject < rows[j].Subject
		})
		report.Rows = append(report.Rows, rows...)
	}
	return report
}

// WarehouseTotal sums the attributed credits of one warehouse.
func (r AttributionReport) WarehouseTotal(warehouse string) float64 {
	var sum float64
	for _, row := range r.Rows {
		if row.Warehouse == upper(warehouse) {
			sum += row.Credits
		}
	}
	return sum
}

// BySubject rolls attributions up per subject, largest first.
func (r AttributionReport) BySubject(pricing types.Pricing) []SubjectTotal {
	totals := make(map[string]*SubjectTotal)
	for _, row := range r.Rows {
		t, ok := totals[row.Subject]
		if !ok {
			t = &SubjectTotal{Subject: row.Subject}
			totals[row.Subject] = t
		}
		t.QueryCount += row.QueryCount
		t.Credits += row.Credits
	}

	out := make([]SubjectTotal, 0, len(totals))
	for _, name := range sortedKeys(totals) {
		t := *totals[name]
		t.Cost = pricing.Cost(t.Credits)
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Credits > out[j].Credits })
	return out
}
