package risk

import (
	"log/slog"
	"time"
)

// ConsecutiveLossGuard wraps a Manager with a cool-down triggered by a run
// of losing closes on one symbol. Supplemental to spec §4.14 (SPEC_FULL.md
// S4) — grounded on the consecutive-loss tracking
// original_source/core/risk/advanced_manager.py layers over the base
// manager, kept here as an opt-in decorator rather than folded into Manager
// so the base manager's spec §8 pass/fail semantics never change whether or
// not this is wired in. Off by default (zero Threshold disables it).
type ConsecutiveLossGuard struct {
	*Manager

	Threshold int           // losing streak length that triggers a cooldown, 0 disables
	Cooldown  time.Duration // how long a symbol is blocked from new orders once tripped

	streaks   map[string]int
	coolUntil map[string]time.Time
}

// NewConsecutiveLossGuard wraps manager with a streak-based cooldown.
// threshold <= 0 disables the guard entirely — RecordClose/Blocked become
// no-ops/always-false. cmd/trader does not construct a guard, so the
// risk.consecutive_loss_cooldown config value has no effect there.
func NewConsecutiveLossGuard(manager *Manager, threshold int, cooldown time.Duration) *ConsecutiveLossGuard {
	return &ConsecutiveLossGuard{
		Manager:   manager,
		Threshold: threshold,
		Cooldown:  cooldown,
		streaks:   make(map[string]int),
		coolUntil: make(map[string]time.Time),
	}
}

// RecordClose updates symbol's losing streak from a closing trade's
// realized P&L; a non-positive threshold disables tracking.
func (g *ConsecutiveLossGuard) RecordClose(symbol string, realizedPnL float64, now time.Time) {
	if g.Threshold <= 0 {
		return
	}
	if realizedPnL < 0 {
		g.streaks[symbol]++
	} else {
		g.streaks[symbol] = 0
	}
	if g.streaks[symbol] >= g.Threshold {
		g.coolUntil[symbol] = now.Add(g.Cooldown)
		slog.Warn("risk: consecutive loss cooldown triggered", "symbol", symbol, "streak", g.streaks[symbol])
		g.streaks[symbol] = 0
	}
}

// Blocked reports whether symbol is currently inside a cooldown window.
func (g *ConsecutiveLossGuard) Blocked(symbol string, now time.Time) bool {
	if g.Threshold <= 0 {
		return false
	}
	until, ok := g.coolUntil[symbol]
	if !ok {
		return false
	}
	return now.Before(until)
}
