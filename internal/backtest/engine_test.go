package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/strategy/examples"
)

func buildBars(closes []float64) []domain.OHLC {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]domain.OHLC, len(closes))
	for i, c := range closes {
		rows[i] = domain.NewOHLC("005930", base.AddDate(0, 0, i), c, c, c, c, 1000, 0)
	}
	return rows
}

func TestRun_IsDeterministicAcrossRepeatedRuns(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 160, 150, 140, 90, 80}
	bars := buildBars(closes)
	cfg := DefaultConfig(10_000_000)

	strat1 := examples.NewMACrossStrategy("005930", 2, 4, 0.1)
	result1, err := Run(strat1, "005930", bars, cfg)
	require.NoError(t, err)

	strat2 := examples.NewMACrossStrategy("005930", 2, 4, 0.1)
	result2, err := Run(strat2, "005930", bars, cfg)
	require.NoError(t, err)

	assert.Equal(t, result1.FinalEquity, result2.FinalEquity)
	require.Equal(t, len(result1.Trades), len(result2.Trades))
	for i := range result1.Trades {
		assert.Equal(t, result1.Trades[i], result2.Trades[i])
	}
}

func TestRun_RequiresAtLeastTwoBars(t *testing.T) {
	strat := examples.NewMACrossStrategy("005930", 2, 4, 0.1)
	_, err := Run(strat, "005930", buildBars([]float64{100}), DefaultConfig(1_000_000))
	assert.Error(t, err)
}

func TestRun_GoldenCrossProducesBuyTradeAndEquityCurve(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 160, 150}
	bars := buildBars(closes)
	cfg := DefaultConfig(10_000_000)

	strat := examples.NewMACrossStrategy("005930", 2, 4, 0.1)
	result, err := Run(strat, "005930", bars, cfg)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(result.Trades), 1)
	assert.Equal(t, domain.Buy, result.Trades[0].Side)
	assert.Equal(t, result.StrategyName, "MACrossStrategy")
	assert.Equal(t, bars[0].Timestamp, result.Start)
	assert.Equal(t, bars[len(bars)-1].Timestamp, result.End)
	assert.Len(t, result.EquityCurve, len(bars)-1)
}

func TestMaxDrawdown_TracksRunningPeak(t *testing.T) {
	curve := []float64{100, 120, 90, 150, 75}
	mdd := maxDrawdown(curve)
	assert.InDelta(t, 0.5, mdd, 1e-9)
}

func TestTradeStats_ComputesWinRateAndProfitFactor(t *testing.T) {
	winRate, pf := tradeStats([]float64{100, -50, 200, -25})
	assert.InDelta(t, 0.5, winRate, 1e-9)
	assert.InDelta(t, 300.0/75.0, pf, 1e-9)
}

func TestTradeStats_NoLossesYieldsInfiniteProfitFactor(t *testing.T) {
	winRate, pf := tradeStats([]float64{10, 20})
	assert.Equal(t, 1.0, winRate)
	assert.True(t, pf > 1e300)
}

func TestTradeStats_NoClosedTradesYieldsZeroWinRate(t *testing.T) {
	winRate, pf := tradeStats(nil)
	assert.Equal(t, 0.0, winRate)
	assert.True(t, pf > 1e300)
}
