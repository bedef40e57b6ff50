package analysis

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowops/core/metadata"
	"snowops/core/types"
)

func TestSizeForCredits(t *testing.T) {
	tests := []struct {
		credits float64
		want    types.Size
	}{
		{0, types.SizeXSmall},
		{1, types.SizeXSmall},
		{1.5, types.SizeSmall},
		{4, types.SizeMedium},
		{8.1, types.SizeXLarge},
		{128, types.SizeX4Large},
		{900, types.SizeX4Large},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SizeForCredits(tt.credits), "credits %v", tt.credits)
	}
}

func TestAnalyzeUsage(t *testing.T) {
	usage := []metadata.WarehouseUsage{
		{Warehouse: "ETL_WH", Size: types.SizeLarge, TotalCredits: 200, ComputeCredits: 190, CloudServicesCredits: 10, ActiveDays: 20, ActiveHours: 100},
		{Warehouse: "NEW_WH", TotalCredits: 10, ActiveDays: 1},
		{Warehouse: "BI_WH", Size: types.SizeMedium, TotalCredits: 1000, ActiveDays: 30, ActiveHours: 300},
	}
	report := AnalyzeUsage(usage, UsageOptions{Days: 30, Pricing: types.DefaultPricing()})

	require.Len(t, report.Warehouses, 3)
	assert.Equal(t, "BI_WH", report.Warehouses[0].Warehouse)
	assert.Equal(t, "ETL_WH", report.Warehouses[1].Warehouse)
	assert.Equal(t, "NEW_WH", report.Warehouses[2].Warehouse)

	etl := report.Warehouses[1]
	assert.True(t, decimal.NewFromInt(600).Equal(etl.TotalCost), etl.TotalCost.String())
	assert.True(t, decimal.NewFromInt(570).Equal(etl.ComputeCost))
	assert.True(t, decimal.NewFromInt(30).Equal(etl.AvgCostPerDay))
	assert.InDelta(t, 100.0/720, etl.Utilization, 1e-9)
	assert.InDelta(t, 2, etl.AvgCreditsPerHour, 1e-9)
	assert.Equal(t, types.SizeSmall, etl.Recommended)
	assert.True(t, decimal.NewFromInt(450).Equal(etl.PotentialSavings), etl.PotentialSavings.String())

	bi := report.Warehouses[0]
	assert.Equal(t, types.SizeMedium, bi.Recommended)
	assert.True(t, bi.PotentialSavings.IsZero())

	// no size and no active hours: nothing to save, still underused
	fresh := report.Warehouses[2]
	assert.Zero(t, fresh.AvgCreditsPerHour)
	assert.True(t, fresh.PotentialSavings.IsZero())

	require.Len(t, report.Opportunities, 3)
	assert.Equal(t, Opportunity{
		Warehouse:      "ETL_WH",
		Kind:           OpportunityLowUtilization,
		Current:        "13.9% utilized",
		Recommendation: "consolidate workloads or reduce size",
		Savings:        etl.PotentialSavings,
		Priority:       PriorityHigh,
	}, report.Opportunities[0])
	assert.Equal(t, OpportunityOversized, report.Opportunities[1].Kind)
	assert.Equal(t, "resize to SMALL", report.Opportunities[1].Recommendation)
	assert.Equal(t, PriorityMedium, report.Opportunities[1].Priority)
	assert.Equal(t, "NEW_WH", report.Opportunities[2].Warehouse)
	assert.Equal(t, OpportunityLowUtilization, report.Opportunities[2].Kind)

	assert.InDelta(t, 1210, report.TotalCredits, 1e-9)
	assert.True(t, decimal.NewFromInt(3630).Equal(report.TotalCost))
	assert.True(t, decimal.NewFromInt(450).Equal(report.PotentialSavings))
	assert.InDelta(t, 450.0/3630*100, report.ReductionPercent, 1e-6)
}

func TestAnalyzeUsageOversizedPriority(t *testing.T) {
	report := AnalyzeUsage([]metadata.WarehouseUsage{
		{Warehouse: "BIG_WH", Size: types.SizeXLarge, TotalCredits: 400, ActiveDays: 10, ActiveHours: 200},
	}, UsageOptions{Days: 30, Pricing: types.DefaultPricing()})

	// 200 of 720 hours is above the low-utilization line
	require.Len(t, report.Opportunities, 1)
	opp := report.Opportunities[0]
	assert.Equal(t, OpportunityOversized, opp.Kind)
	assert.Equal(t, PriorityHigh, opp.Priority)
	assert.True(t, decimal.NewFromInt(1050).Equal(opp.Savings), opp.Savings.String())
	assert.Equal(t, types.ConfidenceHigh, opp.Recommendation().Confidence)
}

func TestAnalyzeUsageEmpty(t *testing.T) {
	report := AnalyzeUsage(nil, UsageOptions{Days: 30, Pricing: types.DefaultPricing()})
	assert.Empty(t, report.Warehouses)
	assert.Empty(t, report.Opportunities)
	assert.Zero(t, report.ReductionPercent)
}
