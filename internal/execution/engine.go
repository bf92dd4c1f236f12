// Package execution implements C16, the realtime execution engine that
// drives ticks through bar construction, strategy dispatch, risk checks,
// market routing, and order submission. Grounded on spec §4.13 and on
// internal/application/engine/live's numbered-pipeline orchestration style
// (RunOnce's protection → scan → sync → maintenance → merge → placement
// steps), adapted from one cycle-per-call to one tick-per-call.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kkim/hanaro-trader/internal/bar"
	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/domain/xtime"
	"github.com/kkim/hanaro-trader/internal/marketstate"
	"github.com/kkim/hanaro-trader/internal/ports"
	"github.com/kkim/hanaro-trader/internal/risk"
	"github.com/kkim/hanaro-trader/internal/router"
	"github.com/kkim/hanaro-trader/internal/strategy"
)

// Config bounds one Engine's behavior (spec §4.13, §5 timeouts).
type Config struct {
	Timeframe      time.Duration
	FillAwait      time.Duration
	PollInterval   time.Duration
	SubmitRetries  int
	SubmitBackoff  time.Duration
}

// DefaultConfig returns the spec-default timeouts (§5).
func DefaultConfig(timeframe time.Duration) Config {
	return Config{
		Timeframe:     timeframe,
		FillAwait:     domain.FillAwaitDefault,
		PollInterval:  1 * time.Second,
		SubmitRetries: domain.OrderSubmitRetries,
		SubmitBackoff: domain.OrderSubmitBackoff,
	}
}

// Engine owns the realtime loop for one trading session: one Engine per
// process, any number of symbols (spec §5's "one engine instance per
// trading session").
type Engine struct {
	broker  ports.Broker
	risk    *risk.Manager
	market  *marketstate.Tracker
	clock   *xtime.Clock
	strat   strategy.Strategy
	notify  ports.Notifier
	cfg     Config

	mu       sync.Mutex
	running  bool
	builders map[string]*bar.Builder
	history  map[string][]domain.OHLC

	fillMu   sync.Mutex
	fillWait map[string]chan domain.Order // orderID -> signalled on fill/terminal status

	onFill func(domain.Order, domain.Position)
}

// New constructs an Engine. onFill may be nil; when set, it's invoked after
// every finalized fill (spec §4.13's "user-supplied fill callback").
func New(broker ports.Broker, riskMgr *risk.Manager, market *marketstate.Tracker, clock *xtime.Clock, strat strategy.Strategy, notify ports.Notifier, cfg Config, onFill func(domain.Order, domain.Position)) *Engine {
	return &Engine{
		broker:               broker,
		risk:                 riskMgr,
		market:               market,
		clock:                clock,
		strat:                strat,
		notify:               notify,
		cfg:                  cfg,
		builders:             make(map[string]*bar.Builder),
		history:              make(map[string][]domain.OHLC),
		fillWait:             make(map[string]chan domain.Order),
		onFill:               onFill,
	}
}

// Start marks the engine running, syncs server time once, and consumes
// StreamRealtime until ctx is cancelled or the stream ends (spec §4.13
// Lifecycle). Each tick triggers processTick.
func (e *Engine) Start(ctx context.Context, symbols []string) error {
	e.mu.Lock()
	e.running = true
	for _, s := range symbols {
		e.builders[s] = bar.NewBuilder(s, e.cfg.Timeframe, e.broker)
	}
	e.mu.Unlock()

	if serverTime, err := e.broker.SyncServerTime(ctx); err != nil {
		slog.Warn("execution: server time sync failed, falling back to OS clock", "err", err)
	} else {
		e.clock.Sync(serverTime)
	}

	ticks, err := e.broker.StreamRealtime(ctx, symbols)
	if err != nil {
		return fmt.Errorf("execution.Start: stream realtime: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.Stop(ctx)
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			e.processTick(ctx, tick)
		}
	}
}

// IsRunning reports whether Start is actively consuming the realtime
// stream — consulted by the daily scheduler before issuing a duplicate
// start.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stop flips the running flag and emits a shutdown notification; the tick
// source is expected to terminate promptly once its context is cancelled.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	if e.notify != nil {
		if err := e.notify.Notify(ctx, "engine stopped", "execution engine shutting down"); err != nil {
			slog.Warn("execution: stop notification failed", "err", err)
		}
	}
}

// processTick runs the per-tick pipeline (spec §4.13): refresh account
// state, maintain the session-end cancel latch, check risk, build bars,
// and dispatch to the strategy.
func (e *Engine) processTick(ctx context.Context, tick ports.Tick) {
	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		slog.Warn("execution: get account failed", "err", err)
		return
	}
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		slog.Warn("execution: get positions failed", "err", err)
		return
	}

	e.risk.UpdateEquity(account.Equity, tick.Timestamp)
	e.handleSessionEndCancel(ctx)

	if !e.risk.CheckRiskLimits(account) {
		e.maybeLiquidate(ctx, positions)
		return
	}

	e.mu.Lock()
	builder, ok := e.builders[tick.Symbol]
	e.mu.Unlock()
	if !ok {
		return
	}

	completed, closed := builder.AddTick(tick)
	if !closed {
		return
	}

	e.mu.Lock()
	e.history[tick.Symbol] = append(e.history[tick.Symbol], completed)
	window := strategy.Bars{Symbol: tick.Symbol, Rows: e.history[tick.Symbol]}
	e.mu.Unlock()

	intents, err := e.strat.OnBar(window, positions, account)
	if err != nil {
		slog.Warn("execution: strategy on_bar failed", "symbol", tick.Symbol, "err", err)
		return
	}
	for _, intent := range intents {
		e.executeSignal(ctx, intent, account, positions, tick.Price)
	}
}

// handleSessionEndCancel cancels every open order exactly once per venue
// transition into session-end (spec §4.13 step 2), consulting
// marketstate.Tracker's idempotent latch.
func (e *Engine) handleSessionEndCancel(ctx context.Context) {
	for _, venue := range []string{domain.VenueKRX, domain.VenueNXT} {
		if !e.market.CheckAndLatchSessionEnd(venue) {
			continue
		}
		orders, err := e.broker.GetOpenOrders(ctx)
		if err != nil {
			slog.Warn("execution: get open orders for session-end cancel failed", "venue", venue, "err", err)
			continue
		}
		for _, o := range orders {
			if _, err := e.broker.CancelOrder(ctx, o.OrderID, o.Symbol); err != nil {
				slog.Warn("execution: session-end cancel failed", "order_id", o.OrderID, "err", err)
			}
		}
	}
}

// maybeLiquidate emergency-sells every positive-quantity position when the
// risk manager's emergency flag is set (spec §4.13 step 3).
func (e *Engine) maybeLiquidate(ctx context.Context, positions []domain.Position) {
	status := e.risk.GetRiskStatus()
	if !status.EmergencyStop {
		return
	}
	for _, p := range positions {
		if p.Quantity <= 0 {
			continue
		}
		order := domain.Order{
			Symbol: p.Symbol, Side: domain.Sell, OrderType: domain.Market,
			Quantity: p.Quantity, Status: domain.Pending, CreatedAt: e.clock.Now(),
		}
		if _, err := e.broker.PlaceOrder(ctx, order); err != nil {
			slog.Error("execution: emergency liquidation order failed", "symbol", p.Symbol, "err", err)
		} else {
			slog.Warn("execution: emergency liquidation submitted", "symbol", p.Symbol, "quantity", p.Quantity)
		}
	}
}

// executeSignal runs one emitted OrderIntent through routing, the
// duplicate-entry guard, risk validation, retrying submission, and the
// fill-await protocol (spec §4.13 _execute_signal).
func (e *Engine) executeSignal(ctx context.Context, intent domain.OrderIntent, account domain.Account, positions []domain.Position, currentPrice float64) {
	venue := router.Determine(e.market.Snapshot(), e.market.HasData(), e.clock.Now())
	if venue == "" {
		slog.Debug("execution: no venue open, dropping intent", "symbol", intent.Symbol)
		return
	}

	if intent.Side == domain.Buy {
		if existing := findPosition(intent.Symbol, positions); existing != nil && existing.Quantity > 0 {
			slog.Debug("execution: duplicate-entry guard rejected intent", "symbol", intent.Symbol)
			return
		}
	}

	if !e.risk.ValidateOrder(intent, account, e.clock.Now(), currentPrice) {
		return
	}

	order := domain.Order{
		Symbol: intent.Symbol, Side: intent.Side, OrderType: intent.OrderType,
		Quantity: intent.Quantity, Price: intent.Price,
		Status: domain.Pending, CreatedAt: e.clock.Now(),
	}.WithMBRNo(venue)

	orderID, err := e.submitWithRetry(ctx, order)
	if err != nil {
		slog.Warn("execution: order submission failed", "symbol", intent.Symbol, "err", err)
		return
	}
	e.risk.RecordTrade(intent.Symbol, e.clock.Now())

	final, err := e.awaitFill(ctx, orderID, intent.Symbol)
	if err != nil {
		slog.Warn("execution: fill await failed", "order_id", orderID, "err", err)
		return
	}
	e.finalizeFill(ctx, final)
}

// submitWithRetry attempts PlaceOrder up to cfg.SubmitRetries times with
// exponential backoff for timeout/network errors (spec §4.13 step 4); any
// other error is terminal.
func (e *Engine) submitWithRetry(ctx context.Context, order domain.Order) (string, error) {
	backoff := e.cfg.SubmitBackoff
	var lastErr error
	for attempt := 0; attempt < e.cfg.SubmitRetries; attempt++ {
		orderID, err := e.broker.PlaceOrder(ctx, order)
		if err == nil {
			return orderID, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", fmt.Errorf("execution.submitWithRetry: exhausted %d attempts: %w", e.cfg.SubmitRetries, lastErr)
}

func isRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrRetryExhausted)
}

// awaitFill creates a per-order wait channel and blocks until
// NotifyOrderFilled signals it, a status poll observes a terminal state, or
// the deadline expires (spec §4.13 fill-await protocol).
func (e *Engine) awaitFill(ctx context.Context, orderID, symbol string) (domain.Order, error) {
	ch := make(chan domain.Order, 1)
	e.fillMu.Lock()
	e.fillWait[orderID] = ch
	e.fillMu.Unlock()
	defer func() {
		e.fillMu.Lock()
		delete(e.fillWait, orderID)
		e.fillMu.Unlock()
	}()

	deadline := time.After(e.cfg.FillAwait)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.Order{}, ctx.Err()
		case order := <-ch:
			return order, nil
		case <-ticker.C:
			orders, err := e.broker.GetOpenOrders(ctx)
			if err != nil {
				continue
			}
			if o, found := findOrder(orderID, orders); found {
				switch o.Status {
				case domain.Filled:
					return o, nil
				case domain.Cancelled, domain.Rejected:
					return domain.Order{}, fmt.Errorf("execution.awaitFill: order %s terminated as %s", orderID, o.Status)
				}
				continue
			}
			// not in open orders anymore and never signalled: treat as filled
			// elsewhere is unsafe to assume, so keep polling until deadline.
		case <-deadline:
			if _, err := e.broker.CancelOrder(ctx, orderID, symbol); err != nil {
				slog.Warn("execution: deadline cancel failed", "order_id", orderID, "err", err)
			}
			return domain.Order{}, fmt.Errorf("execution.awaitFill: %w for order %s", domain.ErrRetryExhausted, orderID)
		}
	}
}

// NotifyOrderFilled is the WebSocket fill-notification path (spec §4.13):
// the realtime feed's fill event calls this with the final order state. It
// is the one cross-task write spec §5 calls out — lookup-then-signal under
// a lock so a concurrent deadline/poll-driven cleanup in awaitFill can't
// race it.
func (e *Engine) NotifyOrderFilled(order domain.Order) {
	e.fillMu.Lock()
	ch, ok := e.fillWait[order.OrderID]
	e.fillMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- order:
	default:
	}
}

// finalizeFill refreshes account/positions, invokes the fill callback, and
// notifies the operator (spec §4.13's "finalize").
func (e *Engine) finalizeFill(ctx context.Context, order domain.Order) {
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		slog.Warn("execution: finalize: get positions failed", "err", err)
		return
	}
	pos := findPosition(order.Symbol, positions)
	var p domain.Position
	if pos != nil {
		p = *pos
	}
	if e.onFill != nil {
		e.onFill(order, p)
	}
	e.strat.OnFill(order, p)
	if e.notify != nil {
		body := fmt.Sprintf("%s %s %.0f @ %.0f", order.Symbol, order.Side, order.Quantity, order.Price)
		if err := e.notify.Notify(ctx, "order filled", body); err != nil {
			slog.Warn("execution: fill notification failed", "err", err)
		}
	}
}

func findPosition(symbol string, positions []domain.Position) *domain.Position {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i]
		}
	}
	return nil
}

func findOrder(orderID string, orders []domain.Order) (domain.Order, bool) {
	for _, o := range orders {
		if o.OrderID == orderID {
			return o, true
		}
	}
	return domain.Order{}, false
}
