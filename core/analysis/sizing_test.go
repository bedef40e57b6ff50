package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowops/core/metadata"
	"snowops/core/types"
)

func TestSizeForConcurrency(t *testing.T) {
	tests := []struct {
		peak float64
		want types.Size
	}{
		{0, types.SizeSmall},
		{4.9, types.SizeSmall},
		{5, types.SizeMedium},
		{9.9, types.SizeMedium},
		{10, types.SizeLarge},
		{20, types.SizeLarge},
		{20.1, types.SizeXLarge},
		{500, types.SizeXLarge},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SizeForConcurrency(tt.peak), "peak %v", tt.peak)
	}
}

func TestRecommendSizes(t *testing.T) {
	pricing := types.DefaultPricing()

	t.Run("downsize", func(t *testing.T) {
		recs := RecommendSizes([]metadata.WarehouseLoad{{
			Warehouse:       "ETL_WH",
			Size:            types.SizeLarge,
			ActiveHours:     200,
			PeakConcurrency: 3,
		}}, pricing)
		require.Len(t, recs, 1)
		r := recs[0]
		assert.True(t, r.Changed())
		assert.Equal(t, types.SizeSmall, r.Recommended)
		assert.InDelta(t, (2.0-8.0)*200, r.CreditDelta, 1e-9)
		assert.Equal(t, "-3600", r.CostDelta.String())
		assert.Equal(t, types.ConfidenceHigh, r.Confidence)
	})

	t.Run("queuing guard keeps size", func(t *testing.T) {
		recs := RecommendSizes([]metadata.WarehouseLoad{{
			Warehouse:       "BI_WH",
			Size:            types.SizeLarge,
			ActiveHours:     100,
			PeakConcurrency: 2,
			QueuedHours:     20,
		}}, pricing)
		require.Len(t, recs, 1)
		assert.False(t, recs[0].Changed())
		assert.Zero(t, recs[0].CreditDelta)
		assert.Contains(t, recs[0].Rationale, "queued")
	})

	t.Run("upsize is not guarded", func(t *testing.T) {
		recs := RecommendSizes([]metadata.WarehouseLoad{{
			Warehouse:       "BI_WH",
			Size:            types.SizeSmall,
			ActiveHours:     30,
			PeakConcurrency: 25,
			QueuedHours:     10,
		}}, pricing)
		require.Len(t, recs, 1)
		assert.Equal(t, types.SizeXLarge, recs[0].Recommended)
		assert.Equal(t, types.ConfidenceMedium, recs[0].Confidence)
		assert.Greater(t, recs[0].CreditDelta, 0.0)
	})

	t.Run("unknown current size", func(t *testing.T) {
		recs := RecommendSizes([]metadata.WarehouseLoad{{Warehouse: "X", PeakConcurrency: 7}}, pricing)
		require.Len(t, recs, 1)
		assert.Equal(t, types.ConfidenceLow, recs[0].Confidence)
		assert.True(t, recs[0].CostDelta.IsZero())
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, RecommendSizes(nil, pricing))
	})
}
