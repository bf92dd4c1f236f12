// Package strategy implements C11 (the Strategy interface and declarative
// DynamicStrategy DSL). Grounded on original_source/core/strategy/base.go's
// BaseStrategy contract (on_bar/on_fill/select_universe/get_target_weights)
// and dynamic.go's condition-tree interpreter, translated into accept
// interfaces/return structs Go rather than an abstract base class.
package strategy

import (
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
)

// Bars is ascending-by-timestamp bar history for one symbol, the Go analog
// of original_source's bars_df: fixed columns plus whatever indicator
// pre-pass columns a DynamicStrategy needs, keyed by name.
type Bars struct {
	Symbol     string
	Rows       []domain.OHLC
	Indicators map[string][]float64 // e.g. "RSI_14" -> one value per row
}

// Last returns the most recent bar and reports whether Rows is non-empty.
func (b Bars) Last() (domain.OHLC, bool) {
	if len(b.Rows) == 0 {
		return domain.OHLC{}, false
	}
	return b.Rows[len(b.Rows)-1], true
}

// Indicator returns the most recent value of a pre-computed indicator
// series, or (0, false) if it isn't present.
func (b Bars) Indicator(name string) (float64, bool) {
	series, ok := b.Indicators[name]
	if !ok || len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// Strategy is the contract every trading strategy implements (spec §4.10).
// A strategy never calls the broker directly — it only receives data and
// returns intents; the execution engine (C16) does everything else.
type Strategy interface {
	Name() string

	// OnBar is called on every new bar (backtest) or validated bar
	// (realtime). positions/account reflect current state; bars holds
	// history up to and including the latest closed bar.
	OnBar(bars Bars, positions []domain.Position, account domain.Account) ([]domain.OrderIntent, error)

	// OnFill notifies the strategy a fill occurred, for state tracking.
	OnFill(order domain.Order, position domain.Position)

	// IsPortfolio reports whether this strategy selects its own universe
	// (overrides SelectUniverse) rather than being pinned to one symbol.
	IsPortfolio() bool

	// SelectUniverse picks the tradable symbol set for date, given a market
	// snapshot keyed by symbol. Single-symbol strategies return nil.
	SelectUniverse(date time.Time, marketData map[string]SymbolSnapshot) []string

	// GetTargetWeights returns each universe symbol's target portfolio
	// weight (summing to 1.0). Default behavior is equal-weight.
	GetTargetWeights(universe []string, marketData map[string]SymbolSnapshot, account domain.Account) map[string]float64
}

// SymbolSnapshot is the per-symbol market-data row select_universe and
// get_target_weights filter/rank on (spec §4.10's market_data DataFrame,
// flattened to one row per symbol since Go has no DataFrame).
type SymbolSnapshot struct {
	Close       float64
	Volume      float64
	PER         float64
	PBR         float64
	ROE         float64
	MarketCap   float64
	HasPER      bool
	HasPBR      bool
	HasROE      bool
}

// SymbolState is per-symbol scratch state a strategy may keep across calls
// (spec §9's design note, promoted to a concrete type here rather than left
// as scattered fields). No strategy in this module uses it.
type SymbolState struct {
	EntryPrice      float64
	EntryTime       time.Time
	AddOns          int
	LastSignalTime  time.Time
	ConsecutiveLoss int
}

// BaseBehavior supplies the default, overridable-by-embedding
// implementations for IsPortfolio/SelectUniverse/GetTargetWeights that
// single-symbol strategies normally don't need to write themselves —
// mirroring BaseStrategy's non-abstract default methods.
type BaseBehavior struct {
	Portfolio bool
}

func (b BaseBehavior) IsPortfolio() bool { return b.Portfolio }

func (b BaseBehavior) SelectUniverse(time.Time, map[string]SymbolSnapshot) []string { return nil }

// GetTargetWeights defaults to equal-weight across universe.
func (b BaseBehavior) GetTargetWeights(universe []string, _ map[string]SymbolSnapshot, _ domain.Account) map[string]float64 {
	if len(universe) == 0 {
		return nil
	}
	w := 1.0 / float64(len(universe))
	out := make(map[string]float64, len(universe))
	for _, s := range universe {
		out[s] = w
	}
	return out
}
