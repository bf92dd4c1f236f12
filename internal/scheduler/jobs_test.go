package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/domain/xtime"
	"github.com/kkim/hanaro-trader/internal/execution"
	"github.com/kkim/hanaro-trader/internal/marketstate"
	"github.com/kkim/hanaro-trader/internal/ports"
	"github.com/kkim/hanaro-trader/internal/risk"
	"github.com/kkim/hanaro-trader/internal/strategy"
)

type fakeJobBroker struct {
	mu        sync.Mutex
	account   domain.Account
	positions []domain.Position
}

func (f *fakeJobBroker) GetOHLC(context.Context, string, string, time.Time, time.Time) ([]domain.OHLC, error) {
	return nil, nil
}
func (f *fakeJobBroker) GetCurrentPrice(context.Context, string) (float64, error) { return 0, nil }
func (f *fakeJobBroker) PlaceOrder(context.Context, domain.Order) (string, error) { return "", nil }
func (f *fakeJobBroker) CancelOrder(context.Context, string, string) (bool, error) {
	return false, nil
}
func (f *fakeJobBroker) AmendOrder(context.Context, string, string, float64, float64) (bool, error) {
	return true, nil
}

func (f *fakeJobBroker) GetAccount(context.Context) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account, nil
}

func (f *fakeJobBroker) GetPositions(context.Context) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, nil
}

func (f *fakeJobBroker) GetOpenOrders(context.Context) ([]domain.Order, error) { return nil, nil }
func (f *fakeJobBroker) GetOrders(context.Context, time.Duration) ([]domain.Order, error) {
	return nil, nil
}
func (f *fakeJobBroker) StreamRealtime(context.Context, []string) (<-chan ports.Tick, error) {
	return make(chan ports.Tick), nil
}
func (f *fakeJobBroker) SyncServerTime(context.Context) (time.Time, error) {
	return time.Now(), nil
}
func (f *fakeJobBroker) Close() error { return nil }

type fixedUniverseStrategy struct {
	strategy.BaseBehavior
	universe []string
}

func (fixedUniverseStrategy) Name() string { return "fixed-universe" }
func (fixedUniverseStrategy) OnBar(strategy.Bars, []domain.Position, domain.Account) ([]domain.OrderIntent, error) {
	return nil, nil
}
func (fixedUniverseStrategy) OnFill(domain.Order, domain.Position) {}
func (s fixedUniverseStrategy) SelectUniverse(time.Time, map[string]strategy.SymbolSnapshot) []string {
	return s.universe
}

type fakeMarketData struct {
	snapshot map[string]strategy.SymbolSnapshot
}

func (f *fakeMarketData) Snapshot(context.Context) (map[string]strategy.SymbolSnapshot, error) {
	return f.snapshot, nil
}

func newTestAutomation(t *testing.T, broker *fakeJobBroker, strat strategy.Strategy, reportDir string) (*Automation, *xtime.Clock) {
	clock := xtime.New()
	market := marketstate.New()
	riskMgr := risk.NewManager(risk.DefaultLimits(), 10_000_000, time.Now())
	eng := execution.New(broker, riskMgr, market, clock, strat, nil, execution.DefaultConfig(time.Minute), nil)
	md := &fakeMarketData{snapshot: map[string]strategy.SymbolSnapshot{
		"005930": {Close: 70_000, MarketCap: 400_000_000_000},
	}}
	return NewAutomation(broker, eng, strat, clock, nil, md, reportDir), clock
}

func TestScanUniverse_PersistsResultAndSetsActiveUniverse(t *testing.T) {
	dir := t.TempDir()
	strat := fixedUniverseStrategy{universe: []string{"005930", "000660"}}
	broker := &fakeJobBroker{account: domain.Account{Equity: 10_000_000}}
	a, _ := newTestAutomation(t, broker, strat, dir)

	require.NoError(t, a.scanUniverse(context.Background()))

	a.mu.Lock()
	universe := a.universe
	a.mu.Unlock()
	assert.Equal(t, []string{"005930", "000660"}, universe)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			found = true
		}
	}
	assert.True(t, found, "expected a persisted universe_*.json file")
}

func TestStartEngine_SkipsWhenUniverseNotScannedToday(t *testing.T) {
	strat := fixedUniverseStrategy{}
	broker := &fakeJobBroker{account: domain.Account{Equity: 10_000_000}}
	a, _ := newTestAutomation(t, broker, strat, t.TempDir())

	require.NoError(t, a.startEngine(context.Background()))
	assert.False(t, a.engine.IsRunning())
}

func TestSettle_ComputesDailyReturnAgainstPersistedPriorEquity(t *testing.T) {
	dir := t.TempDir()
	strat := fixedUniverseStrategy{}
	broker := &fakeJobBroker{account: domain.Account{Equity: 11_000_000}}
	a, _ := newTestAutomation(t, broker, strat, dir)

	require.NoError(t, a.saveSettlementState(settlementState{Date: "2026-07-29", Equity: 10_000_000}))
	require.NoError(t, a.settle(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	hasReport := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".txt" {
			hasReport = true
		}
	}
	assert.True(t, hasReport, "expected a settlement_*.txt report file")

	state, ok := a.loadSettlementState()
	require.True(t, ok)
	assert.Equal(t, 11_000_000.0, state.Equity)
}

func TestPrimarySessionNotice_NotifiesWhenNotifierPresent(t *testing.T) {
	strat := fixedUniverseStrategy{}
	broker := &fakeJobBroker{}
	notifier := &recordingNotifier{}
	a, _ := newTestAutomation(t, broker, strat, t.TempDir())
	a.notify = notifier

	require.NoError(t, a.primarySessionNotice(context.Background()))
	assert.Equal(t, 1, notifier.count())
}
