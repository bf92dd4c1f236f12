package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkim/hanaro-trader/internal/strategy"
	"github.com/kkim/hanaro-trader/internal/strategy/examples"
)

func TestExpandGrid_ProducesCartesianProductInSortedKeyOrder(t *testing.T) {
	combos := expandGrid(ParamGrid{
		"long":  {20, 40},
		"short": {5, 10},
	})
	require.Len(t, combos, 4)
	assert.Equal(t, map[string]float64{"short": 5, "long": 20}, combos[0])
	assert.Equal(t, map[string]float64{"short": 10, "long": 20}, combos[1])
	assert.Equal(t, map[string]float64{"short": 5, "long": 40}, combos[2])
	assert.Equal(t, map[string]float64{"short": 10, "long": 40}, combos[3])
}

func TestRunGrid_RankingIsStableAcrossRepeatedRuns(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 160, 150, 140, 90, 80, 120, 130}
	bars := buildBars(closes)
	cfg := DefaultConfig(10_000_000)
	grid := ParamGrid{"short": {2, 3}, "long": {4, 6}}

	newStrategy := func(params map[string]float64) strategy.Strategy {
		return examples.NewMACrossStrategy("005930", int(params["short"]), int(params["long"]), 0.1)
	}

	run1 := RunGrid(context.Background(), grid, newStrategy, "005930", bars, cfg, 2)
	run2 := RunGrid(context.Background(), grid, newStrategy, "005930", bars, cfg, 2)

	require.Len(t, run1, 4)
	require.Len(t, run2, 4)
	for i := range run1 {
		assert.Equal(t, run1[i].Params, run2[i].Params)
		assert.Equal(t, run1[i].Result.Sharpe, run2[i].Result.Sharpe)
	}
}
