// Package backtest implements C13 (the deterministic single-threaded
// engine) and C14 (the parallel parameter-grid driver). Grounded on
// original_source/core/backtest/position.py's PositionManager for ledger
// bookkeeping and spec §4.11 for the per-bar pipeline.
package backtest

import (
	"fmt"
	"math"

	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/strategy"
)

// Config bounds one backtest run (spec §4.11's commission/slippage
// defaults, 0.0015/0.0005).
type Config struct {
	InitialCapital float64
	Commission     float64
	Slippage       float64
}

// DefaultConfig returns the spec-default commission/slippage pair.
func DefaultConfig(capital float64) Config {
	return Config{InitialCapital: capital, Commission: 0.0015, Slippage: 0.0005}
}

// Run executes strat over bars deterministically and returns the result.
// Single-symbol only; portfolio-kind rebalancing is not performed.
// Two calls with identical strat/bars/cfg produce byte-identical results
// (spec §8 scenario S1) since nothing here reads wall-clock time or
// randomness.
func Run(strat strategy.Strategy, symbol string, bars []domain.OHLC, cfg Config) (domain.BacktestResult, error) {
	if len(bars) < 2 {
		return domain.BacktestResult{}, fmt.Errorf("backtest.Run: need at least 2 bars, got %d", len(bars))
	}

	book := newLedger(cfg.Commission)
	balance := cfg.InitialCapital

	var curve []float64
	var realizedPnLs []float64

	result := domain.BacktestResult{
		StrategyName:   strat.Name(),
		Start:          bars[0].Timestamp,
		InitialCapital: cfg.InitialCapital,
	}

	for t := 0; t < len(bars)-1; t++ {
		window := strategy.Bars{Symbol: symbol, Rows: bars[:t+1]}
		account := domain.Account{Balance: balance, Equity: domain.RecomputeEquity(balance, book.all())}

		intents, err := strat.OnBar(window, book.all(), account)
		if err != nil {
			return domain.BacktestResult{}, fmt.Errorf("backtest.Run: on_bar at t=%d: %w", t, err)
		}

		fillPrice := bars[t+1].Open
		for _, intent := range intents {
			trade, execPrice, pnl := book.execute(intent, fillPrice, cfg.Slippage, bars[t+1].Timestamp)
			balance -= signedCashFlow(intent.Side, intent.Quantity, execPrice, trade.Commission)
			result.Trades = append(result.Trades, trade)
			if intent.Side == domain.Sell {
				realizedPnLs = append(realizedPnLs, pnl)
			}
			strat.OnFill(domain.Order{
				Symbol: intent.Symbol, Side: intent.Side, OrderType: intent.OrderType,
				Quantity: intent.Quantity, FilledQuantity: intent.Quantity, Status: domain.Filled,
			}, book.get(intent.Symbol))
		}

		book.markToClose(bars[t])
		equity := domain.RecomputeEquity(balance, book.all())
		curve = append(curve, equity)
		result.EquityTimestamps = append(result.EquityTimestamps, bars[t].Timestamp)
	}

	result.End = bars[len(bars)-1].Timestamp
	result.EquityCurve = curve
	result.FinalEquity = lastOr(curve, cfg.InitialCapital)
	result.TotalReturn = (result.FinalEquity - cfg.InitialCapital) / cfg.InitialCapital
	result.MDD = maxDrawdown(curve)
	result.Sharpe = sharpe(curve)
	result.WinRate, result.ProfitFactor = tradeStats(realizedPnLs)
	result.TotalTrades = len(result.Trades)

	return result, nil
}

func signedCashFlow(side domain.Side, qty, price, commission float64) float64 {
	cash := qty * price
	if side == domain.Buy {
		return cash + commission
	}
	return -cash + commission
}

func lastOr(xs []float64, fallback float64) float64 {
	if len(xs) == 0 {
		return fallback
	}
	return xs[len(xs)-1]
}

// maxDrawdown is the running-peak drawdown over the equity curve.
func maxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0]
	var mdd float64
	for _, eq := range curve {
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			dd := (peak - eq) / peak
			if dd > mdd {
				mdd = dd
			}
		}
	}
	return mdd
}

// sharpe annualizes the per-bar return series with 252 trading days (spec §4.11).
func sharpe(curve []float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			continue
		}
		rets = append(rets, (curve[i]-curve[i-1])/curve[i-1])
	}
	if len(rets) == 0 {
		return 0
	}
	mean := avg(rets)
	sd := stddev(rets, mean)
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(252)
}

func avg(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, mean float64) float64 {
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// tradeStats returns win rate (share of closed trades with positive
// realized pnl) and profit factor (sum wins / |sum losses|, +Inf with no
// losses) over the realized-pnl series produced by each closing trade.
func tradeStats(realizedPnLs []float64) (winRate, profitFactor float64) {
	if len(realizedPnLs) == 0 {
		return 0, math.Inf(1)
	}
	var wins, losses float64
	var winCount int
	for _, pnl := range realizedPnLs {
		if pnl > 0 {
			wins += pnl
			winCount++
		} else {
			losses += -pnl
		}
	}
	winRate = float64(winCount) / float64(len(realizedPnLs))
	if losses == 0 {
		return winRate, math.Inf(1)
	}
	return winRate, wins / losses
}
