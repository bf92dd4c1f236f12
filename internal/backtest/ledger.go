package backtest

import (
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
)

// ledger tracks positions through a backtest run, grounded on
// original_source/core/backtest/position.go's PositionManager: open/close
// with weighted-average cost basis and commission deducted per trade.
type ledger struct {
	commission float64
	positions  map[string]domain.Position
	seq        int
}

func newLedger(commission float64) *ledger {
	return &ledger{commission: commission, positions: make(map[string]domain.Position)}
}

func (l *ledger) get(symbol string) domain.Position {
	return l.positions[symbol]
}

func (l *ledger) all() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		if p.Quantity > 0 {
			out = append(out, p)
		}
	}
	return out
}

// execute simulates filling intent at basePrice adjusted by slippage (spec
// §4.11: price*(1±slip) for BUY/SELL), charges commission, and updates the
// ledger. realizedPnL is only meaningful when the trade reduces a position
// (a SELL against an existing BUY).
func (l *ledger) execute(intent domain.OrderIntent, basePrice, slippage float64, ts time.Time) (trade domain.Trade, execPrice, realizedPnL float64) {
	switch intent.Side {
	case domain.Buy:
		execPrice = basePrice * (1 + slippage)
	default:
		execPrice = basePrice * (1 - slippage)
	}

	commission := intent.Quantity * execPrice * l.commission
	pos := l.positions[intent.Symbol]
	pos.Symbol = intent.Symbol

	switch intent.Side {
	case domain.Buy:
		pos = pos.Increase(intent.Quantity, execPrice)
	default:
		before := pos
		pos = pos.Reduce(intent.Quantity, execPrice)
		realizedPnL = pos.RealizedPnL - before.RealizedPnL - commission
	}
	l.positions[intent.Symbol] = pos

	l.seq++
	trade = domain.Trade{
		TradeID:    symbolSeqID(intent.Symbol, l.seq),
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		Quantity:   intent.Quantity,
		Price:      execPrice,
		Commission: commission,
		Timestamp:  ts,
	}
	return trade, execPrice, realizedPnL
}

// markToClose refreshes CurrentPrice/UnrealizedPnL for every open position
// at bar's close (spec §4.11 step 4).
func (l *ledger) markToClose(bar domain.OHLC) {
	if pos, ok := l.positions[bar.Symbol]; ok {
		l.positions[bar.Symbol] = pos.UpdatePrice(bar.Close)
	}
}

func symbolSeqID(symbol string, seq int) string {
	return symbol + "-" + itoa(seq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
