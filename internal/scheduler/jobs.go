package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kkim/hanaro-trader/internal/domain/xtime"
	"github.com/kkim/hanaro-trader/internal/execution"
	"github.com/kkim/hanaro-trader/internal/ports"
	"github.com/kkim/hanaro-trader/internal/strategy"
)

// MarketDataProvider supplies the per-symbol snapshot a strategy's
// SelectUniverse filters on. No broker adapter in this module fetches
// financial-statement data (PER/PBR/ROE) directly, so the scheduler
// depends on this seam rather than a concrete fetcher; a real deployment
// wires it to whatever data service computes those fields.
type MarketDataProvider interface {
	Snapshot(ctx context.Context) (map[string]strategy.SymbolSnapshot, error)
}

// settlementState is the one persisted field the settlement job needs
// across restarts: yesterday's closing equity. A single JSON file mirrors
// the teacher's report-file-on-disk idiom rather than adding a
// single-row SQLite table for one float.
type settlementState struct {
	Date   string  `json:"date"` // YYYY-MM-DD, exchange-local
	Equity float64 `json:"equity"`
}

// Automation wires the four spec §4.15 jobs to this module's broker,
// engine, strategy, and risk components, grounded on run_trading.py's
// TradingAutomation.job_daily_scan/job_start_engine/job_market_open/
// job_market_close.
type Automation struct {
	broker     ports.Broker
	engine     *execution.Engine
	strat      strategy.Strategy
	clock      *xtime.Clock
	notify     ports.Notifier
	marketData MarketDataProvider
	reportDir  string

	mu          sync.Mutex
	universe    []string
	universeSet time.Time // exchange-local day the universe was last scanned
}

// NewAutomation constructs an Automation. reportDir is created if absent.
func NewAutomation(broker ports.Broker, engine *execution.Engine, strat strategy.Strategy, clock *xtime.Clock, notify ports.Notifier, marketData MarketDataProvider, reportDir string) *Automation {
	return &Automation{
		broker:     broker,
		engine:     engine,
		strat:      strat,
		clock:      clock,
		notify:     notify,
		marketData: marketData,
		reportDir:  reportDir,
	}
}

// Jobs returns the four scheduled jobs bound to their configured times.
func (a *Automation) Jobs(universeScanAt, engineStartAt, primarySessionAt, settlementAt string) []Job {
	return []Job{
		{Name: "universe_scan", At: universeScanAt, Run: a.scanUniverse},
		{Name: "engine_start", At: engineStartAt, Run: a.startEngine},
		{Name: "primary_session_notice", At: primarySessionAt, Run: a.primarySessionNotice},
		{Name: "settlement", At: settlementAt, Run: a.settle},
	}
}

// scanUniverse runs the strategy's universe filter over the latest market
// snapshot and persists the result (spec §4.15's 08:10 job).
func (a *Automation) scanUniverse(ctx context.Context) error {
	snapshot, err := a.marketData.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: universe scan: fetch snapshot: %w", err)
	}

	today := a.clock.Now()
	universe := a.strat.SelectUniverse(today, snapshot)

	a.mu.Lock()
	a.universe = universe
	a.universeSet = dayOf(today)
	a.mu.Unlock()

	if err := a.persistUniverse(today, universe); err != nil {
		slog.Warn("scheduler: universe scan: persist failed", "err", err)
	}

	slog.Info("scheduler: universe scan complete", "count", len(universe))
	if a.notify != nil {
		body := fmt.Sprintf("universe filtered: %d symbols", len(universe))
		_ = a.notify.Notify(ctx, "universe scan complete", body)
	}
	return nil
}

func (a *Automation) persistUniverse(today time.Time, universe []string) error {
	if a.reportDir == "" {
		return nil
	}
	if err := os.MkdirAll(a.reportDir, 0o755); err != nil {
		return fmt.Errorf("mkdir report dir: %w", err)
	}
	path := filepath.Join(a.reportDir, fmt.Sprintf("universe_%s.json", today.Format("20060102")))
	data, err := json.MarshalIndent(universe, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal universe: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// startEngine brings up the realtime execution engine over the universe
// scanned earlier today (spec §4.15's 08:30 job, NXT session ahead of
// KRX's 09:00 open).
func (a *Automation) startEngine(ctx context.Context) error {
	a.mu.Lock()
	universe := a.universe
	scannedToday := a.universeSet.Equal(dayOf(a.clock.Now()))
	a.mu.Unlock()

	if !scannedToday || len(universe) == 0 {
		slog.Warn("scheduler: engine start: no universe scanned today, nothing to trade")
		if a.notify != nil {
			_ = a.notify.Notify(ctx, "engine start skipped", "no universe scanned today")
		}
		return nil
	}

	if a.engine.IsRunning() {
		slog.Info("scheduler: engine start: already running")
		return nil
	}

	go func() {
		if err := a.engine.Start(ctx, universe); err != nil && ctx.Err() == nil {
			slog.Error("execution: engine exited with error", "err", err)
		}
	}()

	slog.Info("scheduler: engine start: started", "symbols", len(universe))
	if a.notify != nil {
		_ = a.notify.Notify(ctx, "engine started", fmt.Sprintf("tracking %d symbols, waiting for NXT/KRX open", len(universe)))
	}
	return nil
}

// primarySessionNotice is informational: routing to KRX happens
// automatically via the market router once the JIF feed reports it open
// (spec §4.15's 09:00 job).
func (a *Automation) primarySessionNotice(ctx context.Context) error {
	slog.Info("scheduler: primary session notice")
	if a.notify != nil {
		return a.notify.Notify(ctx, "KRX primary session open", "trading is now active for the primary session")
	}
	return nil
}

// settle snapshots equity against yesterday's close, writes a
// human-readable report file, and notifies (spec §4.15's 15:30 job).
func (a *Automation) settle(ctx context.Context) error {
	account, err := a.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: settlement: get account: %w", err)
	}
	positions, err := a.broker.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: settlement: get positions: %w", err)
	}

	today := a.clock.Now()
	prev, havePrev := a.loadSettlementState()
	prevEquity := account.Equity
	if havePrev {
		prevEquity = prev.Equity
	}

	dailyPnL := account.Equity - prevEquity
	dailyReturn := 0.0
	if prevEquity > 0 {
		dailyReturn = dailyPnL / prevEquity
	}

	report := settlementReport{
		Date:        today.Format("2006-01-02"),
		PrevEquity:  prevEquity,
		Equity:      account.Equity,
		DailyPnL:    dailyPnL,
		DailyReturn: dailyReturn,
		Positions:   len(positions),
	}

	reportPath, err := a.writeReport(today, report)
	if err != nil {
		slog.Warn("scheduler: settlement: write report failed", "err", err)
	}

	if err := a.saveSettlementState(settlementState{Date: today.Format("2006-01-02"), Equity: account.Equity}); err != nil {
		slog.Warn("scheduler: settlement: persist state failed", "err", err)
	}

	slog.Info("scheduler: settlement complete", "daily_return", dailyReturn, "daily_pnl", dailyPnL, "report", reportPath)
	if a.notify != nil {
		body := fmt.Sprintf("equity %.0f, daily pnl %+.0f (%.2f%%), %d positions, report %s",
			account.Equity, dailyPnL, dailyReturn*100, len(positions), reportPath)
		_ = a.notify.Notify(ctx, "settlement complete", body)
	}
	return nil
}

type settlementReport struct {
	Date        string
	PrevEquity  float64
	Equity      float64
	DailyPnL    float64
	DailyReturn float64
	Positions   int
}

func (a *Automation) writeReport(today time.Time, r settlementReport) (string, error) {
	if a.reportDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(a.reportDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir report dir: %w", err)
	}
	path := filepath.Join(a.reportDir, fmt.Sprintf("settlement_%s.txt", today.Format("20060102")))
	text := fmt.Sprintf(
		"settlement report %s\n\nprev equity: %.0f\ncurrent equity: %.0f\ndaily pnl: %+.0f\ndaily return: %.2f%%\npositions: %d\n",
		r.Date, r.PrevEquity, r.Equity, r.DailyPnL, r.DailyReturn*100, r.Positions,
	)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (a *Automation) settlementStatePath() string {
	return filepath.Join(a.reportDir, "settlement_state.json")
}

func (a *Automation) loadSettlementState() (settlementState, bool) {
	if a.reportDir == "" {
		return settlementState{}, false
	}
	data, err := os.ReadFile(a.settlementStatePath())
	if err != nil {
		return settlementState{}, false
	}
	var s settlementState
	if err := json.Unmarshal(data, &s); err != nil {
		return settlementState{}, false
	}
	return s, true
}

func (a *Automation) saveSettlementState(s settlementState) error {
	if a.reportDir == "" {
		return nil
	}
	if err := os.MkdirAll(a.reportDir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(a.settlementStatePath(), data, 0o644)
}
