package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kkim/hanaro-trader/internal/domain"
)

var day1 = time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)
var day2 = time.Date(2026, 7, 2, 9, 30, 0, 0, time.UTC)

func TestUpdateEquity_TracksPeakAndMDD(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	m.UpdateEquity(12_000_000, day1)
	m.UpdateEquity(9_600_000, day1) // 20% off the 12M peak

	status := m.GetRiskStatus()
	assert.Equal(t, 12_000_000.0, status.PeakEquity)
	assert.InDelta(t, 0.20, status.CurrentMDD, 1e-9)
}

func TestCheckRiskLimits_MDDBreachLatchesEmergencyStop(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	m.UpdateEquity(10_000_000, day1)
	m.UpdateEquity(7_900_000, day1) // 21% drawdown, breaches 20% default

	account := domain.Account{Equity: 7_900_000}
	assert.False(t, m.CheckRiskLimits(account))
	assert.True(t, m.GetRiskStatus().EmergencyStop)

	// emergency stop is one-way until explicitly reset
	assert.False(t, m.CheckRiskLimits(account))
}

func TestCheckRiskLimits_DailyLossBreachDoesNotLatch(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	m.UpdateEquity(9_400_000, day1) // 6% daily loss, breaches 5% default but no MDD breach

	assert.False(t, m.CheckRiskLimits(domain.Account{Equity: 9_400_000}))
	assert.False(t, m.GetRiskStatus().EmergencyStop)
}

func TestUpdateEquity_DayRolloverResetsDailyTracking(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	m.UpdateEquity(9_400_000, day1) // 6% loss day1

	m.UpdateEquity(9_400_000, day2) // same equity, new day => daily loss resets to 0
	status := m.GetRiskStatus()
	assert.Equal(t, 9_400_000.0, status.DailyStartEquity)
	assert.InDelta(t, 0, status.DailyLoss, 1e-9)
}

func TestValidateOrder_RejectsOversizedBuy(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	intent := domain.OrderIntent{Symbol: "005930", Side: domain.Buy, Quantity: 200, Price: 10_000}
	account := domain.Account{Equity: 10_000_000} // order value 2M = 20% > 10% cap

	assert.False(t, m.ValidateOrder(intent, account, day1, 10_000))
}

func TestValidateOrder_AllowsBuyWithinCap(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	intent := domain.OrderIntent{Symbol: "005930", Side: domain.Buy, Quantity: 50, Price: 10_000}
	account := domain.Account{Equity: 10_000_000} // order value 500K = 5% <= 10% cap

	assert.True(t, m.ValidateOrder(intent, account, day1, 10_000))
}

func TestValidateOrder_RejectsExcessiveSlippage(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	intent := domain.OrderIntent{Symbol: "005930", Side: domain.Buy, Quantity: 1, Price: 10_200}
	account := domain.Account{Equity: 10_000_000}

	// |10200-10000|/10000 = 2% > 0.5% default max_slippage
	assert.False(t, m.ValidateOrder(intent, account, day1, 10_000))
}

func TestValidateOrder_MarketOrderBypassesSlippageCheck(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	intent := domain.OrderIntent{Symbol: "005930", Side: domain.Buy, Quantity: 1, OrderType: domain.Market}
	account := domain.Account{Equity: 10_000_000}

	assert.True(t, m.ValidateOrder(intent, account, day1, 10_000))
}

func TestValidateOrder_RejectsAfterDailyTradeCapReached(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxDailyTradesPerSymbol = 2
	m := NewManager(limits, 10_000_000, day1)
	account := domain.Account{Equity: 10_000_000}
	intent := domain.OrderIntent{Symbol: "005930", Side: domain.Sell, Quantity: 1}

	m.RecordTrade("005930", day1)
	m.RecordTrade("005930", day1)
	assert.False(t, m.ValidateOrder(intent, account, day1, 0))
}

func TestValidateOrder_RejectsWhenEmergencyStopActive(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	m.TriggerEmergencyStop("test")

	intent := domain.OrderIntent{Symbol: "005930", Side: domain.Sell, Quantity: 1}
	assert.False(t, m.ValidateOrder(intent, domain.Account{Equity: 10_000_000}, day1, 0))
}

func TestResetEmergencyStop_AllowsOrdersAgain(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	m.TriggerEmergencyStop("test")
	m.ResetEmergencyStop()

	assert.True(t, m.CheckRiskLimits(domain.Account{Equity: 10_000_000}))
}

func TestConsecutiveLossGuard_TripsAfterThresholdLosses(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	guard := NewConsecutiveLossGuard(m, 3, time.Hour)

	guard.RecordClose("005930", -100, day1)
	guard.RecordClose("005930", -50, day1)
	assert.False(t, guard.Blocked("005930", day1))

	guard.RecordClose("005930", -10, day1)
	assert.True(t, guard.Blocked("005930", day1))
	assert.False(t, guard.Blocked("005930", day1.Add(2*time.Hour)))
}

func TestConsecutiveLossGuard_WinResetsStreak(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	guard := NewConsecutiveLossGuard(m, 2, time.Hour)

	guard.RecordClose("005930", -100, day1)
	guard.RecordClose("005930", 50, day1)
	guard.RecordClose("005930", -10, day1)
	assert.False(t, guard.Blocked("005930", day1))
}

func TestConsecutiveLossGuard_ZeroThresholdDisablesGuard(t *testing.T) {
	m := NewManager(DefaultLimits(), 10_000_000, day1)
	guard := NewConsecutiveLossGuard(m, 0, time.Hour)

	for i := 0; i < 10; i++ {
		guard.RecordClose("005930", -100, day1)
	}
	assert.False(t, guard.Blocked("005930", day1))
}
