package strategy

import "time"

// staticUniverse overrides SelectUniverse with a fixed symbol list,
// letting a single-symbol strategy (whose own SelectUniverse is the
// BaseBehavior nil default) participate in the daily universe scan
// without becoming a portfolio strategy itself.
type staticUniverse struct {
	Strategy
	symbols []string
}

// WithStaticUniverse wraps strat so SelectUniverse always returns symbols,
// regardless of what strat itself would return.
func WithStaticUniverse(strat Strategy, symbols []string) Strategy {
	return staticUniverse{Strategy: strat, symbols: symbols}
}

func (s staticUniverse) SelectUniverse(time.Time, map[string]SymbolSnapshot) []string {
	return s.symbols
}
