// Package examples holds concrete strategy implementations of the strategy
// interface, grounded on original_source/core/strategy/examples/*.py. It
// contains only MACrossStrategy, which does not use the DynamicStrategy DSL.
package examples

import (
	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/strategy"
)

// MACrossStrategy trades golden-cross/dead-cross of a short and long simple
// moving average, single-symbol. Grounded directly on
// original_source/core/strategy/examples/ma_cross.py.
type MACrossStrategy struct {
	strategy.BaseBehavior
	Symbol       string
	ShortPeriod  int
	LongPeriod   int
	PositionSize float64
}

// NewMACrossStrategy constructs one pinned to symbol with the given
// short/long MA periods and position-size fraction of equity.
func NewMACrossStrategy(symbol string, short, long int, positionSize float64) *MACrossStrategy {
	if positionSize <= 0 {
		positionSize = 0.1
	}
	return &MACrossStrategy{Symbol: symbol, ShortPeriod: short, LongPeriod: long, PositionSize: positionSize}
}

func (m *MACrossStrategy) Name() string { return "MACrossStrategy" }

func (m *MACrossStrategy) OnBar(bars strategy.Bars, positions []domain.Position, account domain.Account) ([]domain.OrderIntent, error) {
	if len(bars.Rows) < m.LongPeriod {
		return nil, nil
	}

	shortMA := sma(bars.Rows, m.ShortPeriod)
	longMA := sma(bars.Rows, m.LongPeriod)
	n := len(bars.Rows)

	currentShort, currentLong := shortMA[n-1], longMA[n-1]
	prevShort, prevLong := currentShort, currentLong
	if n > 1 {
		prevShort, prevLong = shortMA[n-2], longMA[n-2]
	}

	goldenCross := prevShort <= prevLong && currentShort > currentLong
	deadCross := prevShort >= prevLong && currentShort < currentLong

	pos := positionOf(m.Symbol, positions)
	currentPrice := bars.Rows[n-1].Close

	switch {
	case goldenCross && pos == nil:
		qty := m.quantity(account.Equity, currentPrice)
		if qty <= 0 {
			return nil, nil
		}
		return []domain.OrderIntent{{
			Symbol: m.Symbol, Side: domain.Buy, Quantity: qty, OrderType: domain.Market,
		}}, nil

	case deadCross && pos != nil && pos.Quantity > 0:
		return []domain.OrderIntent{{
			Symbol: m.Symbol, Side: domain.Sell, Quantity: pos.Quantity, OrderType: domain.Market,
		}}, nil
	}

	return nil, nil
}

func (m *MACrossStrategy) OnFill(domain.Order, domain.Position) {}

func (m *MACrossStrategy) quantity(equity, price float64) float64 {
	if price <= 0 {
		return 0
	}
	qty := float64(int(equity * m.PositionSize / price))
	if qty < 1 {
		qty = 1
	}
	return qty
}

func sma(rows []domain.OHLC, period int) []float64 {
	out := make([]float64, len(rows))
	var sum float64
	for i, r := range rows {
		sum += r.Close
		if i >= period {
			sum -= rows[i-period].Close
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		} else if i > 0 {
			out[i] = out[i-1]
		}
	}
	return out
}

func positionOf(symbol string, positions []domain.Position) *domain.Position {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i]
		}
	}
	return nil
}
