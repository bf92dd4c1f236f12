// Command trader is the platform entrypoint: it loads configuration, wires
// the broker adapter, risk manager, execution engine, and daily scheduler,
// then runs until SIGINT/SIGTERM, grounded on cmd/scanner/main.go's
// flag-parsing + config.Load + setupLogger + signal.NotifyContext shape.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kkim/hanaro-trader/config"
	"github.com/kkim/hanaro-trader/internal/adapters/ls"
	"github.com/kkim/hanaro-trader/internal/adapters/notify"
	"github.com/kkim/hanaro-trader/internal/domain/xtime"
	"github.com/kkim/hanaro-trader/internal/execution"
	"github.com/kkim/hanaro-trader/internal/marketstate"
	"github.com/kkim/hanaro-trader/internal/risk"
	"github.com/kkim/hanaro-trader/internal/scheduler"
	"github.com/kkim/hanaro-trader/internal/storage"
	"github.com/kkim/hanaro-trader/internal/strategy"
	"github.com/kkim/hanaro-trader/internal/strategy/examples"
	"github.com/kkim/hanaro-trader/internal/strategy/registry"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("trader starting",
		"config", *configPath,
		"strategy", cfg.Strategy.Name,
		"symbols", len(cfg.Strategy.Symbols),
		"paper_trading", cfg.Broker.PaperTrading,
	)

	market := marketstate.New()

	tokenStore := &ls.FileTokenStore{Path: cfg.Broker.TokenPath}
	broker := ls.NewClient(ls.Config{
		RESTBase:        cfg.Broker.RESTBase,
		WSBase:          cfg.Broker.WSBase,
		AppKey:          cfg.Broker.AppKey,
		AppSecretKey:    cfg.Broker.AppSecretKey,
		AccountID:       cfg.Broker.AccountID,
		AccountPassword: cfg.Broker.AccountPassword,
		PaperTrading:    cfg.Broker.PaperTrading,
	}, tokenStore, market)

	barStore, err := storage.Open(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open bar store", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer barStore.Close()

	notifier := notify.NewConsole()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := xtime.New()
	if serverTime, err := broker.SyncServerTime(ctx); err != nil {
		slog.Warn("server time sync failed, falling back to local KST clock", "err", err)
	} else {
		clock.Sync(serverTime)
	}

	riskMgr := buildRiskManager(ctx, broker, cfg.Risk)

	strat, err := buildStrategy(cfg.Strategy)
	if err != nil {
		slog.Error("failed to build strategy", "err", err)
		os.Exit(1)
	}

	engineCfg := execution.DefaultConfig(cfg.Execution.BarInterval())
	engineCfg.FillAwait = cfg.Execution.FillAwait()

	engine := execution.New(broker, riskMgr, market, clock, strat, notifier, engineCfg, strat.OnFill)

	automation := scheduler.NewAutomation(broker, engine, strat, clock, notifier, noopMarketData{}, cfg.Scheduler.ReportDir)
	jobs := automation.Jobs(cfg.Scheduler.UniverseScanAt, cfg.Scheduler.EngineStartAt, cfg.Scheduler.PrimarySessionAt, cfg.Scheduler.SettlementAt)
	sched := scheduler.New(clock, notifier, jobs)

	go func() {
		if err := runRetentionPruning(ctx, barStore); err != nil && ctx.Err() == nil {
			slog.Warn("bar retention pruning stopped", "err", err)
		}
	}()

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("scheduler exited with error", "err", err)
	}

	engine.Stop(context.Background())
	slog.Info("trader stopped cleanly")
}

// buildRiskManager seeds the manager with the account's current equity so
// peak-equity and daily-loss tracking start from a real baseline rather
// than zero.
func buildRiskManager(ctx context.Context, broker *ls.Client, cfg config.RiskConfig) *risk.Manager {
	limits := risk.DefaultLimits()
	if cfg.MaxMDD > 0 {
		limits.MaxMDD = cfg.MaxMDD
	}
	if cfg.MaxPositionSize > 0 {
		limits.MaxPositionSize = cfg.MaxPositionSize
	}
	if cfg.MaxDailyLoss > 0 {
		limits.MaxDailyLoss = cfg.MaxDailyLoss
	}
	if cfg.MaxSlippage > 0 {
		limits.MaxSlippage = cfg.MaxSlippage
	}
	if cfg.MaxDailyTradesPerSymbol > 0 {
		limits.MaxDailyTradesPerSymbol = cfg.MaxDailyTradesPerSymbol
	}

	initialEquity := 0.0
	if account, err := broker.GetAccount(ctx); err != nil {
		slog.Warn("failed to read initial equity, risk manager starting from zero", "err", err)
	} else {
		initialEquity = account.Equity
	}

	return risk.NewManager(limits, initialEquity, time.Now())
}

// buildStrategy instantiates the configured strategy via the registry and,
// for single-symbol strategies, wraps it so the scheduler's universe scan
// always has something to trade.
func buildStrategy(cfg config.StrategyConfig) (strategy.Strategy, error) {
	reg := registry.New()
	reg.Register("MACrossStrategy", func(params map[string]float64) (strategy.Strategy, error) {
		symbol := ""
		if len(cfg.Symbols) > 0 {
			symbol = cfg.Symbols[0]
		}
		short := int(params["short_period"])
		if short <= 0 {
			short = 5
		}
		long := int(params["long_period"])
		if long <= 0 {
			long = 20
		}
		return examples.NewMACrossStrategy(symbol, short, long, params["position_size"]), nil
	})

	strat, err := reg.Build(cfg.Name, cfg.Params)
	if err != nil {
		return nil, err
	}
	if !strat.IsPortfolio() {
		strat = strategy.WithStaticUniverse(strat, cfg.Symbols)
	}
	return strat, nil
}

// noopMarketData is the MarketDataProvider seam's default implementation:
// no broker adapter in this module fetches PER/PBR/ROE financial-statement
// fields, so the universe scan sees an empty snapshot until one is wired.
type noopMarketData struct{}

func (noopMarketData) Snapshot(ctx context.Context) (map[string]strategy.SymbolSnapshot, error) {
	return map[string]strategy.SymbolSnapshot{}, nil
}

func runRetentionPruning(ctx context.Context, store *storage.BarStore) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := store.PruneExpired(ctx); err != nil {
				slog.Warn("bar retention pruning failed", "err", err)
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
