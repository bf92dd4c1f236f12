package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/domain/xtime"
	"github.com/kkim/hanaro-trader/internal/marketstate"
	"github.com/kkim/hanaro-trader/internal/ports"
	"github.com/kkim/hanaro-trader/internal/risk"
	"github.com/kkim/hanaro-trader/internal/strategy"
)

type fakeBroker struct {
	mu           sync.Mutex
	account      domain.Account
	positions    []domain.Position
	openOrders   []domain.Order
	placedOrders []domain.Order
	placeErr     error
	nextOrderID  int
	serverTime   time.Time
}

func (f *fakeBroker) GetOHLC(context.Context, string, string, time.Time, time.Time) ([]domain.OHLC, error) {
	return nil, nil
}
func (f *fakeBroker) GetCurrentPrice(context.Context, string) (float64, error) { return 0, nil }

func (f *fakeBroker) PlaceOrder(ctx context.Context, order domain.Order) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.nextOrderID++
	order.OrderID = "ord-" + itoaTest(f.nextOrderID)
	order.Status = domain.Submitted
	f.placedOrders = append(f.placedOrders, order)
	f.openOrders = append(f.openOrders, order)
	return order.OrderID, nil
}

func itoaTest(n int) string {
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

func (f *fakeBroker) CancelOrder(ctx context.Context, orderID, symbol string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, o := range f.openOrders {
		if o.OrderID == orderID {
			f.openOrders = append(f.openOrders[:i], f.openOrders[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBroker) AmendOrder(context.Context, string, string, float64, float64) (bool, error) {
	return true, nil
}

func (f *fakeBroker) GetAccount(context.Context) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account, nil
}

func (f *fakeBroker) GetPositions(context.Context) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, nil
}

func (f *fakeBroker) GetOpenOrders(context.Context) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Order, len(f.openOrders))
	copy(out, f.openOrders)
	return out, nil
}

func (f *fakeBroker) GetOrders(context.Context, time.Duration) ([]domain.Order, error) {
	return nil, nil
}

func (f *fakeBroker) StreamRealtime(ctx context.Context, symbols []string) (<-chan ports.Tick, error) {
	return make(chan ports.Tick), nil
}

func (f *fakeBroker) SyncServerTime(context.Context) (time.Time, error) {
	return f.serverTime, nil
}

func (f *fakeBroker) Close() error { return nil }

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, subject+": "+body)
	return nil
}

// silentStrategy never emits intents on its own; tests drive executeSignal
// directly rather than through the tick pipeline.
type silentStrategy struct {
	strategy.BaseBehavior
}

func (silentStrategy) Name() string { return "silent" }
func (silentStrategy) OnBar(strategy.Bars, []domain.Position, domain.Account) ([]domain.OrderIntent, error) {
	return nil, nil
}
func (silentStrategy) OnFill(domain.Order, domain.Position) {}

func newTestEngine(broker *fakeBroker, market *marketstate.Tracker, riskMgr *risk.Manager, notify *fakeNotifier) *Engine {
	clock := xtime.New()
	return New(broker, riskMgr, market, clock, silentStrategy{}, notify, DefaultConfig(time.Minute), nil)
}

func TestExecuteSignal_DropsIntentWhenNoVenueOpen(t *testing.T) {
	broker := &fakeBroker{account: domain.Account{Equity: 10_000_000}}
	market := marketstate.New() // no JIF data yet
	riskMgr := risk.NewManager(risk.DefaultLimits(), 10_000_000, time.Now())
	e := newTestEngine(broker, market, riskMgr, &fakeNotifier{})

	// wall-clock fallback with no JIF data: pick a time outside all bands.
	e.clock.Sync(time.Date(2026, 1, 1, 21, 0, 0, 0, time.UTC))

	intent := domain.OrderIntent{Symbol: "005930", Side: domain.Buy, Quantity: 1, OrderType: domain.Market}
	e.executeSignal(context.Background(), intent, broker.account, nil, 10_000)

	assert.Empty(t, broker.placedOrders)
}

func TestExecuteSignal_RejectsDuplicateBuyAgainstExistingPosition(t *testing.T) {
	broker := &fakeBroker{account: domain.Account{Equity: 10_000_000}}
	market := marketstate.New()
	market.Update(1, "30") // KRX active
	riskMgr := risk.NewManager(risk.DefaultLimits(), 10_000_000, time.Now())
	e := newTestEngine(broker, market, riskMgr, &fakeNotifier{})

	intent := domain.OrderIntent{Symbol: "005930", Side: domain.Buy, Quantity: 1, OrderType: domain.Market}
	positions := []domain.Position{{Symbol: "005930", Quantity: 10, AvgPrice: 100}}
	e.executeSignal(context.Background(), intent, broker.account, positions, 100)

	assert.Empty(t, broker.placedOrders)
}

func TestExecuteSignal_SubmitsAndAwaitsFillViaNotify(t *testing.T) {
	broker := &fakeBroker{account: domain.Account{Equity: 10_000_000}}
	market := marketstate.New()
	market.Update(1, "30")
	riskMgr := risk.NewManager(risk.DefaultLimits(), 10_000_000, time.Now())
	e := newTestEngine(broker, market, riskMgr, &fakeNotifier{})
	e.cfg.FillAwait = 2 * time.Second
	e.cfg.PollInterval = 50 * time.Millisecond

	intent := domain.OrderIntent{Symbol: "005930", Side: domain.Buy, Quantity: 1, OrderType: domain.Market}

	done := make(chan struct{})
	go func() {
		e.executeSignal(context.Background(), intent, broker.account, nil, 70_000)
		close(done)
	}()

	require.Eventually(t, func() bool {
		broker.mu.Lock()
		defer broker.mu.Unlock()
		return len(broker.placedOrders) == 1
	}, time.Second, 10*time.Millisecond)

	broker.mu.Lock()
	orderID := broker.placedOrders[0].OrderID
	broker.mu.Unlock()

	filled := domain.Order{OrderID: orderID, Symbol: "005930", Side: domain.Buy, Quantity: 1, Status: domain.Filled}
	e.NotifyOrderFilled(filled)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("executeSignal did not return after fill notification")
	}
}

func TestHandleSessionEndCancel_CancelsOpenOrdersOncePerTransition(t *testing.T) {
	broker := &fakeBroker{
		openOrders: []domain.Order{{OrderID: "o1", Symbol: "005930"}},
	}
	market := marketstate.New()
	market.Update(1, "41") // KRX session end
	riskMgr := risk.NewManager(risk.DefaultLimits(), 10_000_000, time.Now())
	e := newTestEngine(broker, market, riskMgr, &fakeNotifier{})

	e.handleSessionEndCancel(context.Background())
	assert.Empty(t, broker.openOrders)

	broker.openOrders = []domain.Order{{OrderID: "o2", Symbol: "005930"}}
	e.handleSessionEndCancel(context.Background()) // latched: should not cancel again
	assert.Len(t, broker.openOrders, 1)
}
