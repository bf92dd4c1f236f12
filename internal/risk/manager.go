// Package risk implements C15, the risk manager guarding every order before
// it reaches the execution engine. Grounded on
// original_source/core/risk/manager.py's RiskManager: drawdown and daily-loss
// tracking, position-size and slippage caps, per-symbol daily trade caps,
// and a one-way emergency stop.
package risk

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
)

// Limits bounds one Manager instance (spec §4.14 defaults).
type Limits struct {
	MaxMDD                  float64
	MaxPositionSize         float64
	MaxDailyLoss            float64
	MaxSlippage             float64
	MaxDailyTradesPerSymbol int
}

// DefaultLimits returns the spec-default limit set.
func DefaultLimits() Limits {
	return Limits{
		MaxMDD:                  0.20,
		MaxPositionSize:         0.10,
		MaxDailyLoss:            0.05,
		MaxSlippage:             0.005,
		MaxDailyTradesPerSymbol: 10,
	}
}

// Manager tracks MDD, daily loss, and per-symbol trade counts across one
// trading session and decides whether an account or order is within limits.
// Safe for concurrent use: update_equity runs off the market-state reader
// while validate_order is called from the engine task (spec §5).
type Manager struct {
	mu     sync.Mutex
	limits Limits

	peakEquity       float64
	currentMDD       float64
	dailyStartEquity float64
	dailyLoss        float64
	currentDate      time.Time // truncated to exchange-local day

	dailyTradeCounts map[string]map[time.Time]int // symbol -> day -> count

	emergencyStop bool
}

// NewManager seeds peak/daily-start equity from initialCapital, matching
// RiskManager.__init__'s initial_capital-seeded peak_equity.
func NewManager(limits Limits, initialCapital float64, now time.Time) *Manager {
	return &Manager{
		limits:           limits,
		peakEquity:       initialCapital,
		dailyStartEquity: initialCapital,
		currentDate:      dayOf(now),
		dailyTradeCounts: make(map[string]map[time.Time]int),
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// UpdateEquity records a new equity mark, resetting daily tracking on a
// calendar-day rollover and recomputing current MDD and daily loss (spec
// §4.14 update_equity).
func (m *Manager) UpdateEquity(equity float64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayOf(now)
	if day.After(m.currentDate) {
		m.resetDailyTracking(equity, day)
	}

	if equity > m.peakEquity {
		m.peakEquity = equity
	}
	m.currentMDD = m.mddLocked(equity)
	m.dailyLoss = m.dailyLossLocked(equity)
}

func (m *Manager) resetDailyTracking(equity float64, day time.Time) {
	m.dailyStartEquity = equity
	m.dailyLoss = 0
	m.currentDate = day
	m.cleanupOldTradeCounts(day)
	slog.Info("risk: daily tracking reset", "start_equity", equity, "date", day.Format("2006-01-02"))
}

// cleanupOldTradeCounts drops per-symbol counts older than 30 days, matching
// RiskManager._cleanup_old_trade_counts.
func (m *Manager) cleanupOldTradeCounts(day time.Time) {
	cutoff := day.AddDate(0, 0, -30)
	for symbol, counts := range m.dailyTradeCounts {
		for d := range counts {
			if d.Before(cutoff) {
				delete(counts, d)
			}
		}
		if len(counts) == 0 {
			delete(m.dailyTradeCounts, symbol)
		}
	}
}

func (m *Manager) mddLocked(equity float64) float64 {
	if m.peakEquity == 0 {
		return 0
	}
	dd := (m.peakEquity - equity) / m.peakEquity
	if dd < 0 {
		return 0
	}
	return dd
}

func (m *Manager) dailyLossLocked(equity float64) float64 {
	if m.dailyStartEquity == 0 {
		return 0
	}
	loss := (m.dailyStartEquity - equity) / m.dailyStartEquity
	if loss < 0 {
		return 0
	}
	return loss
}

// CheckRiskLimits reports whether the account is within MDD and daily-loss
// limits. An MDD breach latches emergency stop; a daily-loss breach blocks
// new activity for the day without latching it (spec §4.14).
func (m *Manager) CheckRiskLimits(account domain.Account) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emergencyStop {
		slog.Warn("risk: emergency stop active")
		return false
	}

	mdd := m.mddLocked(account.Equity)
	if mdd >= m.limits.MaxMDD {
		slog.Error("risk: MDD limit exceeded", "mdd", mdd, "limit", m.limits.MaxMDD)
		m.triggerEmergencyStopLocked("MDD limit exceeded")
		return false
	}

	dailyLoss := m.dailyLossLocked(account.Equity)
	if dailyLoss >= m.limits.MaxDailyLoss {
		slog.Error("risk: daily loss limit exceeded", "loss", dailyLoss, "limit", m.limits.MaxDailyLoss)
		return false
	}

	return true
}

// ValidateOrder checks an OrderIntent against the emergency stop, the
// per-symbol daily trade cap, the slippage cap (when both currentPrice and
// intent.Price are known — MARKET orders carry no intent price and bypass
// this check), and the position-size cap on BUY orders (spec §4.14
// validate_order).
func (m *Manager) ValidateOrder(intent domain.OrderIntent, account domain.Account, now time.Time, currentPrice float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emergencyStop {
		slog.Warn("risk: order rejected, emergency stop active", "symbol", intent.Symbol)
		return false
	}

	if !m.checkDailyTradeLimitLocked(intent.Symbol, now) {
		slog.Warn("risk: order rejected, daily trade limit exceeded", "symbol", intent.Symbol,
			"max", m.limits.MaxDailyTradesPerSymbol)
		return false
	}

	if currentPrice > 0 && intent.Price > 0 {
		if !m.checkSlippage(intent.Price, currentPrice) {
			slog.Warn("risk: order rejected, slippage exceeds limit", "symbol", intent.Symbol,
				"max_slippage", m.limits.MaxSlippage)
			return false
		}
	}

	if intent.Side == domain.Buy {
		price := intent.Price
		if price <= 0 {
			price = currentPrice
		}
		orderValue := intent.Quantity * price
		if orderValue > 0 && account.Equity > 0 {
			ratio := orderValue / account.Equity
			if ratio > m.limits.MaxPositionSize {
				slog.Warn("risk: order rejected, position size exceeds limit", "symbol", intent.Symbol,
					"ratio", ratio, "limit", m.limits.MaxPositionSize)
				return false
			}
		}
	}

	return true
}

func (m *Manager) checkSlippage(orderPrice, currentPrice float64) bool {
	diff := orderPrice - currentPrice
	if diff < 0 {
		diff = -diff
	}
	return diff/currentPrice <= m.limits.MaxSlippage
}

func (m *Manager) checkDailyTradeLimitLocked(symbol string, now time.Time) bool {
	day := dayOf(now)
	if day.After(m.currentDate) {
		m.cleanupOldTradeCounts(day)
	}
	counts := m.dailyTradeCounts[symbol]
	return counts[day] < m.limits.MaxDailyTradesPerSymbol
}

// RecordTrade increments the daily trade count for symbol, called by the
// execution engine on every successful order submission.
func (m *Manager) RecordTrade(symbol string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayOf(now)
	counts, ok := m.dailyTradeCounts[symbol]
	if !ok {
		counts = make(map[time.Time]int)
		m.dailyTradeCounts[symbol] = counts
	}
	counts[day]++
}

// TriggerEmergencyStop latches the one-way stop flag.
func (m *Manager) TriggerEmergencyStop(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerEmergencyStopLocked(reason)
}

func (m *Manager) triggerEmergencyStopLocked(reason string) {
	m.emergencyStop = true
	slog.Error("risk: EMERGENCY STOP TRIGGERED", "reason", reason, "mdd", m.currentMDD, "peak_equity", m.peakEquity)
}

// ResetEmergencyStop clears the stop flag — an explicit operator action,
// never automatic.
func (m *Manager) ResetEmergencyStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emergencyStop = false
	slog.Info("risk: emergency stop reset")
}

// Status is a snapshot of the manager's current risk posture.
type Status struct {
	EmergencyStop    bool
	CurrentMDD       float64
	MaxMDD           float64
	DailyLoss        float64
	MaxDailyLoss     float64
	PeakEquity       float64
	DailyStartEquity float64
}

// GetRiskStatus returns a point-in-time snapshot for reporting/monitoring.
func (m *Manager) GetRiskStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		EmergencyStop:    m.emergencyStop,
		CurrentMDD:       m.currentMDD,
		MaxMDD:           m.limits.MaxMDD,
		DailyLoss:        m.dailyLoss,
		MaxDailyLoss:     m.limits.MaxDailyLoss,
		PeakEquity:       m.peakEquity,
		DailyStartEquity: m.dailyStartEquity,
	}
}
