package strategy

import (
	"github.com/kkim/hanaro-trader/internal/domain"
)

// DynamicConfig is the declarative "builder" strategy shape, the Go analog
// of original_source/dynamic.py's config_json: indicator pre-pass specs,
// buy/sell condition trees, and free-form parameters.
type DynamicConfig struct {
	Indicators     []IndicatorSpec
	BuyConditions  []*Node
	SellConditions []*Node
	Parameters     map[string]float64
	IsPortfolio    bool
}

// DynamicStrategy interprets a DynamicConfig at call time rather than
// compiling a Go type per strategy — spec §4.10's declarative "builder"
// strategy. Condition lists are AND-ed together (original_source's
// _check_conditions: every entry must hold).
type DynamicStrategy struct {
	BaseBehavior
	StrategyName string
	Config       DynamicConfig
	symbol       string
}

// NewDynamicStrategy constructs a DynamicStrategy pinned to symbol (ignored
// for portfolio-kind configs, which select their own universe elsewhere).
func NewDynamicStrategy(name, symbol string, cfg DynamicConfig) *DynamicStrategy {
	return &DynamicStrategy{
		BaseBehavior: BaseBehavior{Portfolio: cfg.IsPortfolio},
		StrategyName: name,
		Config:       cfg,
		symbol:       symbol,
	}
}

func (d *DynamicStrategy) Name() string { return d.StrategyName }

func (d *DynamicStrategy) OnBar(bars Bars, positions []domain.Position, account domain.Account) ([]domain.OrderIntent, error) {
	last, ok := bars.Last()
	if !ok {
		return nil, nil
	}
	bars = ApplyIndicators(bars, d.Config.Indicators)

	symbol := d.symbol
	if symbol == "" {
		symbol = bars.Symbol
	}
	if symbol == "" {
		return nil, nil
	}

	pos := positionOf(symbol, positions)
	hasPosition := pos != nil && pos.Quantity > 0

	var intents []domain.OrderIntent

	if !hasPosition {
		ok, err := allConditionsHold(bars, d.Config.BuyConditions)
		if err != nil {
			return nil, err
		}
		if ok {
			qty := d.calculateQuantity(account, last.Close)
			if qty > 0 {
				intents = append(intents, domain.OrderIntent{
					Symbol: symbol, Side: domain.Buy, Quantity: qty, OrderType: domain.Market,
				})
			}
		}
	}

	if hasPosition {
		ok, err := allConditionsHold(bars, d.Config.SellConditions)
		if err != nil {
			return nil, err
		}
		if ok {
			intents = append(intents, domain.OrderIntent{
				Symbol: symbol, Side: domain.Sell, Quantity: pos.Quantity, OrderType: domain.Market,
			})
		}
	}

	return intents, nil
}

func (d *DynamicStrategy) OnFill(domain.Order, domain.Position) {}

func (d *DynamicStrategy) calculateQuantity(account domain.Account, price float64) float64 {
	ratio := d.Config.Parameters["position_size"]
	if ratio <= 0 {
		ratio = 0.1
	}
	if price <= 0 {
		return 0
	}
	qty := float64(int(account.Equity * ratio / price))
	if qty < 1 {
		qty = 1
	}
	return qty
}

func allConditionsHold(bars Bars, conditions []*Node) (bool, error) {
	if len(conditions) == 0 {
		return false, nil
	}
	for _, c := range conditions {
		v, err := c.Eval(bars)
		if err != nil {
			return false, err
		}
		if v == 0 {
			return false, nil
		}
	}
	return true, nil
}

func positionOf(symbol string, positions []domain.Position) *domain.Position {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i]
		}
	}
	return nil
}
